/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"context"
	"image"
	"log/slog"
	"sync"

	"sketchboard/internal/log"
)

// ImageCache holds decoded bitmaps keyed by source URL. The first Get for a
// source starts one background load; later calls return immediately until
// it finishes. Failed sources are remembered and never retried.
type ImageCache struct {
	loader  Loader
	onReady func(src string)
	log     *slog.Logger

	mu       sync.Mutex
	images   map[string]image.Image
	failed   map[string]error
	inflight map[string]bool
	dropped  map[string]bool
	wg       sync.WaitGroup
}

// NewImageCache returns a cache that loads through loader. onReady runs on
// the loading goroutine once per successfully stored bitmap; it typically
// schedules a re-render.
func NewImageCache(loader Loader, onReady func(src string)) *ImageCache {
	return &ImageCache{
		loader:   loader,
		onReady:  onReady,
		log:      log.WithComponent("render.images"),
		images:   map[string]image.Image{},
		failed:   map[string]error{},
		inflight: map[string]bool{},
		dropped:  map[string]bool{},
	}
}

// Get returns the cached bitmap for src. On a miss it starts a load unless
// one is in flight or the source already failed. Asking again for a source
// evicted mid-load adopts the running load instead of starting another.
func (c *ImageCache) Get(src string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.images[src]; ok {
		return img, true
	}
	if _, ok := c.failed[src]; ok {
		return nil, false
	}
	if c.inflight[src] {
		delete(c.dropped, src)
		return nil, false
	}
	if c.loader == nil {
		return nil, false
	}
	c.inflight[src] = true
	c.wg.Add(1)
	go c.load(src)
	return nil, false
}

func (c *ImageCache) load(src string) {
	defer c.wg.Done()
	img, err := c.loader.Load(context.Background(), src)

	c.mu.Lock()
	delete(c.inflight, src)
	if c.dropped[src] {
		// Evicted or cleared while loading.
		delete(c.dropped, src)
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.failed[src] = err
		c.mu.Unlock()
		c.log.Warn("image load failed", slog.String("src", src), slog.Any("err", err))
		return
	}
	c.images[src] = img
	cb := c.onReady
	c.mu.Unlock()

	c.log.Debug("image loaded", slog.String("src", src), slog.Int("w", img.Bounds().Dx()), slog.Int("h", img.Bounds().Dy()))
	if cb != nil {
		cb(src)
	}
}

// Err reports why src failed to load, or nil.
func (c *ImageCache) Err(src string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed[src]
}

// Pending reports whether a load for src is in flight.
func (c *ImageCache) Pending(src string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight[src]
}

// Len is the number of cached bitmaps.
func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}

// Evict forgets src. A load in flight for it keeps running but its result
// is discarded unless src is asked for again first.
func (c *ImageCache) Evict(src string) {
	c.mu.Lock()
	delete(c.images, src)
	delete(c.failed, src)
	if c.inflight[src] {
		c.dropped[src] = true
	}
	c.mu.Unlock()
}

// Clear forgets everything. Loads in flight keep running but their results
// are discarded.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = map[string]image.Image{}
	c.failed = map[string]error{}
	for src := range c.inflight {
		c.dropped[src] = true
	}
	c.mu.Unlock()
}

// Wait blocks until every started load has finished.
func (c *ImageCache) Wait() { c.wg.Wait() }
