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
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"sketchboard/internal/canvas"
	"sketchboard/internal/shape"
	"sketchboard/internal/textlayout"
	"sketchboard/internal/vector"
	"sketchboard/internal/viewport"
)

var (
	_ Scene               = (*canvas.Engine)(nil)
	_ canvas.ImageEvictor = (*ImageCache)(nil)
	_ Surface             = (*Raster)(nil)

	blue  = vector.Color{B: 255, A: 255}
	white = color.RGBA{255, 255, 255, 255}
)

type scene struct {
	shapes   []shape.Shape
	selected []string
	vp       viewport.Viewport
	hover    string
}

func (s *scene) Shapes() []shape.Shape       { return s.shapes }
func (s *scene) SelectedIDs() []string       { return s.selected }
func (s *scene) Viewport() viewport.Viewport { return s.vp }
func (s *scene) HoverID() string             { return s.hover }

func textSpec(size float64) textlayout.FontSpec { return textlayout.FontSpec{SizePt: size} }

func blueRect(x, y, w, h float64) *shape.Rectangle {
	r := shape.NewRectangle(x, y, w, h)
	r.Style.Fill = blue
	r.Style.Stroke = vector.Transparent
	return r
}

func frame(t *testing.T, rn *Renderer, sc Scene, opts Options) *image.RGBA {
	t.Helper()
	out := NewRaster(50, 50, 1, nil)
	if opts.Background == (vector.Color{}) {
		opts.Background = vector.White
	}
	rn.Render(out, sc, opts)
	return out.Image()
}

func solidImage(c color.RGBA, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestRenderShapesInViewport(t *testing.T) {
	r := blueRect(10, 10, 20, 20)
	sc := &scene{shapes: []shape.Shape{r}, vp: viewport.New()}
	rn := NewRenderer(nil, nil)

	img := frame(t, rn, sc, Options{})
	if got := img.RGBAAt(20, 20); got != (color.RGBA{0, 0, 255, 255}) {
		t.Fatalf("shape pixel = %v", got)
	}
	if got := img.RGBAAt(5, 5); got != white {
		t.Fatalf("background pixel = %v", got)
	}

	sc.vp = viewport.Viewport{X: 10, Y: 10, Zoom: 1}
	img = frame(t, rn, sc, Options{})
	if img.RGBAAt(35, 35) != (color.RGBA{0, 0, 255, 255}) || img.RGBAAt(15, 15) != white {
		t.Fatalf("pan not applied")
	}
}

func TestRenderExcludeAndHidden(t *testing.T) {
	r := blueRect(10, 10, 20, 20)
	sc := &scene{shapes: []shape.Shape{r}, vp: viewport.New()}
	rn := NewRenderer(nil, nil)
	if got := frame(t, rn, sc, Options{ExcludeID: r.ID}).RGBAAt(20, 20); got != white {
		t.Fatalf("excluded shape drawn: %v", got)
	}
	r.Visible = false
	if got := frame(t, rn, sc, Options{}).RGBAAt(20, 20); got != white {
		t.Fatalf("hidden shape drawn: %v", got)
	}
}

func TestRenderRotation(t *testing.T) {
	r := blueRect(10, 20, 30, 10)
	r.Rotation = 90
	sc := &scene{shapes: []shape.Shape{r}, vp: viewport.New()}
	img := frame(t, NewRenderer(nil, nil), sc, Options{})
	if img.RGBAAt(25, 12).B != 255 {
		t.Fatalf("rotated shape missing at (25,12): %v", img.RGBAAt(25, 12))
	}
	if img.RGBAAt(12, 25) != white {
		t.Fatalf("unrotated footprint still painted")
	}
}

func TestRenderSelectionOverlay(t *testing.T) {
	r := blueRect(10, 10, 20, 20)
	sc := &scene{shapes: []shape.Shape{r}, selected: []string{r.ID}, vp: viewport.New()}
	rn := NewRenderer(nil, nil)

	// Top-left handle is a white square centered on (10,10).
	if got := frame(t, rn, sc, Options{}).RGBAAt(11, 11); got != white {
		t.Fatalf("handle pixel = %v", got)
	}
	if got := frame(t, rn, sc, Options{SuppressSelection: true}).RGBAAt(11, 11); got != (color.RGBA{0, 0, 255, 255}) {
		t.Fatalf("suppressed overlay still drawn: %v", got)
	}

	r.Locked = true
	if got := frame(t, rn, sc, Options{}).RGBAAt(11, 11); got == white {
		t.Fatalf("locked shape shows handles")
	}
}

func TestRenderHover(t *testing.T) {
	r := blueRect(10, 10, 20, 20)
	sc := &scene{shapes: []shape.Shape{r}, hover: r.ID, vp: viewport.New()}
	rn := NewRenderer(nil, nil)
	got := frame(t, rn, sc, Options{}).RGBAAt(10, 20)
	want := color.RGBA{HoverColor.R, HoverColor.G, HoverColor.B, 255}
	if got != want {
		t.Fatalf("hover outline = %v, want %v", got, want)
	}
	sc.selected = []string{r.ID}
	if got := frame(t, rn, sc, Options{}).RGBAAt(10, 20); got == want {
		t.Fatalf("hover outline drawn on a selected shape")
	}
}

func TestRenderText(t *testing.T) {
	txt := shape.NewText(2, 2, 46, 46, "hello world")
	txt.Color = vector.Black
	sc := &scene{shapes: []shape.Shape{txt}, vp: viewport.New()}
	img := frame(t, NewRenderer(nil, nil), sc, Options{})
	dark := 0
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			if img.RGBAAt(x, y).R < 128 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Fatalf("no glyph pixels")
	}
	for y := 0; y < 50; y++ {
		if img.RGBAAt(0, y).R < 128 {
			t.Fatalf("text escaped its box at (0,%d)", y)
		}
	}
}

func TestShadowTaps(t *testing.T) {
	if taps := shadowTaps(0); len(taps) != 1 || taps[0].alpha != 1 || taps[0].d != (vector.Pt{}) {
		t.Fatalf("sharp shadow taps = %+v", taps)
	}
	taps := shadowTaps(4)
	if len(taps) != 17 {
		t.Fatalf("taps = %d, want 17", len(taps))
	}
	far := 0.0
	for _, tap := range taps {
		if tap.alpha <= 0 || tap.alpha >= 1 {
			t.Fatalf("tap alpha %v not partial", tap.alpha)
		}
		far = math.Max(far, math.Hypot(tap.d.X, tap.d.Y))
	}
	if math.Abs(far-4) > 1e-9 {
		t.Fatalf("outer ring radius %v, want 4", far)
	}
}

func TestRenderBlurredShadowSpreads(t *testing.T) {
	inked := func(blur float64) int {
		txt := shape.NewText(4, 4, 42, 42, "Hi")
		txt.FontSize = 20
		txt.Color = vector.White
		txt.Shadow = &shape.TextShadow{Color: vector.Black, OffsetX: 2, OffsetY: 2, Blur: blur}
		img := frame(t, NewRenderer(nil, nil), &scene{shapes: []shape.Shape{txt}, vp: viewport.New()}, Options{})
		n := 0
		for y := 0; y < 50; y++ {
			for x := 0; x < 50; x++ {
				if img.RGBAAt(x, y).R < 250 {
					n++
				}
			}
		}
		return n
	}
	sharp, blurred := inked(0), inked(3)
	if sharp == 0 {
		t.Fatalf("shadow not drawn")
	}
	if blurred <= sharp {
		t.Fatalf("blurred shadow covers %d px, sharp %d", blurred, sharp)
	}
}

func TestRenderImagePlaceholderThenBitmap(t *testing.T) {
	var ready atomic.Int32
	loader := LoaderFunc(func(context.Context, string) (image.Image, error) {
		return solidImage(color.RGBA{0, 255, 0, 255}, 4, 4), nil
	})
	cache := NewImageCache(loader, func(string) { ready.Add(1) })
	im := shape.NewImage(10, 10, 20, 20, "mem://green")
	sc := &scene{shapes: []shape.Shape{im}, vp: viewport.New()}
	rn := NewRenderer(cache, nil)

	first := frame(t, rn, sc, Options{}).RGBAAt(20, 20)
	if first != (color.RGBA{PlaceholderFill.R, PlaceholderFill.G, PlaceholderFill.B, 255}) {
		t.Fatalf("placeholder pixel = %v", first)
	}
	cache.Wait()
	if ready.Load() != 1 {
		t.Fatalf("ready callbacks = %d, want 1", ready.Load())
	}
	if c := frame(t, rn, sc, Options{}).RGBAAt(20, 20); c.G < 250 || c.R > 5 {
		t.Fatalf("bitmap pixel = %v", c)
	}
	if ready.Load() != 1 {
		t.Fatalf("cache hit fired the callback again")
	}
}

func TestImageCacheFailureIsPermanent(t *testing.T) {
	var calls atomic.Int32
	cache := NewImageCache(LoaderFunc(func(context.Context, string) (image.Image, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	}), func(string) { t.Error("onReady called for a failed load") })
	cache.Get("x")
	cache.Wait()
	if _, ok := cache.Get("x"); ok {
		t.Fatalf("failed source returned a bitmap")
	}
	cache.Wait()
	if calls.Load() != 1 {
		t.Fatalf("loads = %d, want 1", calls.Load())
	}
	if cache.Err("x") == nil {
		t.Fatalf("Err = nil")
	}
	cache.Evict("x")
	cache.Get("x")
	cache.Wait()
	if calls.Load() != 2 {
		t.Fatalf("evicted failure not retried")
	}
}

func TestImageCacheDedupAndClear(t *testing.T) {
	var calls, ready atomic.Int32
	release := make(chan struct{})
	cache := NewImageCache(LoaderFunc(func(context.Context, string) (image.Image, error) {
		calls.Add(1)
		<-release
		return solidImage(color.RGBA{A: 255}, 1, 1), nil
	}), func(string) { ready.Add(1) })

	cache.Get("a")
	cache.Get("a")
	if !cache.Pending("a") {
		t.Fatalf("load not pending")
	}
	cache.Clear()
	close(release)
	cache.Wait()
	if calls.Load() != 1 {
		t.Fatalf("loads = %d, want 1", calls.Load())
	}
	if cache.Len() != 0 || ready.Load() != 0 {
		t.Fatalf("cleared load was stored (len %d, ready %d)", cache.Len(), ready.Load())
	}
	if cache.Pending("a") {
		t.Fatalf("still pending after Clear")
	}
}

func TestImageCacheEvictDuringLoadKeepsOneLoader(t *testing.T) {
	var calls, running, peak, ready atomic.Int32
	release := make(chan struct{})
	cache := NewImageCache(LoaderFunc(func(context.Context, string) (image.Image, error) {
		calls.Add(1)
		if n := running.Add(1); n > peak.Load() {
			peak.Store(n)
		}
		defer running.Add(-1)
		<-release
		return solidImage(color.RGBA{A: 255}, 1, 1), nil
	}), func(string) { ready.Add(1) })

	cache.Get("u")
	cache.Evict("u")
	if !cache.Pending("u") {
		t.Fatalf("evicted load no longer reported as pending")
	}
	cache.Get("u")
	close(release)
	cache.Wait()
	if calls.Load() != 1 || peak.Load() != 1 {
		t.Fatalf("loads = %d, concurrent = %d, want 1 and 1", calls.Load(), peak.Load())
	}
	if _, ok := cache.Get("u"); !ok || ready.Load() != 1 {
		t.Fatalf("re-requested load was not stored (ready %d)", ready.Load())
	}

	// Evicted and never asked for again: the result is dropped.
	release2 := make(chan struct{})
	cache2 := NewImageCache(LoaderFunc(func(context.Context, string) (image.Image, error) {
		<-release2
		return solidImage(color.RGBA{A: 255}, 1, 1), nil
	}), nil)
	cache2.Get("v")
	cache2.Evict("v")
	close(release2)
	cache2.Wait()
	if cache2.Len() != 0 {
		t.Fatalf("evicted load was stored")
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(color.RGBA{255, 0, 0, 255}, w, h)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestFileLoaderSources(t *testing.T) {
	data := pngBytes(t, 3, 2)
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/img.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := FileLoader{Root: dir, Client: srv.Client()}
	ctx := context.Background()
	for _, src := range []string{
		"img.png",
		path,
		"file://" + filepath.ToSlash(path),
		srv.URL + "/img.png",
		"data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
	} {
		img, err := l.Load(ctx, src)
		if err != nil {
			t.Fatalf("load %.40s: %v", src, err)
		}
		if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
			t.Fatalf("load %.40s: bounds %v", src, b)
		}
	}
	for _, src := range []string{"", "missing.png", srv.URL + "/nope.png", "data:nocomma"} {
		if _, err := l.Load(ctx, src); err == nil {
			t.Fatalf("load %q: expected error", src)
		}
	}
}
