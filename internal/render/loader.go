/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Loader fetches and decodes an image source.
type Loader interface {
	Load(ctx context.Context, src string) (image.Image, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, src string) (image.Image, error)

func (f LoaderFunc) Load(ctx context.Context, src string) (image.Image, error) { return f(ctx, src) }

// DefaultMaxBytes caps a single source at 64 MiB.
const DefaultMaxBytes = 64 << 20

// FileLoader resolves http(s) URLs, data: URIs, file:// URLs and plain paths.
// Relative paths are joined to Root. PNG, JPEG, GIF, WebP and BMP decode.
type FileLoader struct {
	Client   *http.Client
	Root     string
	MaxBytes int64
}

func (l FileLoader) client() *http.Client {
	if l.Client != nil {
		return l.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (l FileLoader) limit() int64 {
	if l.MaxBytes > 0 {
		return l.MaxBytes
	}
	return DefaultMaxBytes
}

func (l FileLoader) Load(ctx context.Context, src string) (image.Image, error) {
	if src == "" {
		return nil, errors.New("empty image source")
	}
	var (
		r   io.ReadCloser
		err error
	)
	switch {
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		r, err = l.fetch(ctx, src)
	case strings.HasPrefix(src, "data:"):
		var b []byte
		b, err = decodeDataURI(src)
		r = io.NopCloser(bytes.NewReader(b))
	case strings.HasPrefix(src, "file://"):
		var u *url.URL
		if u, err = url.Parse(src); err == nil {
			r, err = os.Open(filepath.FromSlash(u.Path))
		}
	default:
		p := src
		if !filepath.IsAbs(p) && l.Root != "" {
			p = filepath.Join(l.Root, p)
		}
		r, err = os.Open(p)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", shortSrc(src), err)
	}
	defer r.Close()
	img, _, err := image.Decode(io.LimitReader(r, l.limit()))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", shortSrc(src), err)
	}
	return img, nil
}

func (l FileLoader) fetch(ctx context.Context, src string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// decodeDataURI handles base64 and percent-encoded payloads.
func decodeDataURI(src string) ([]byte, error) {
	meta, data, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data URI")
	}
	if strings.HasSuffix(meta, ";base64") {
		return base64.StdEncoding.DecodeString(data)
	}
	s, err := url.PathUnescape(data)
	return []byte(s), err
}

// shortSrc keeps data URIs out of error messages.
func shortSrc(src string) string {
	if strings.HasPrefix(src, "data:") && len(src) > 32 {
		return src[:32] + "..."
	}
	return src
}
