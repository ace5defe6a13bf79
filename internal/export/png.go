/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	"sketchboard/internal/render"
	"sketchboard/internal/shape"
	"sketchboard/internal/textlayout"
	"sketchboard/internal/vector"
	"sketchboard/internal/viewport"
)

// MaxRasterSide caps the longer output edge in pixels.
const MaxRasterSide = 8192

// PNGOptions controls raster export.
// - Scale is output pixels per world unit (device pixel ratio); default 1
// - Background defaults to white; use vector.Transparent for an alpha PNG
// - Images, when set, is warmed and waited on so bitmaps are drawn instead of placeholders
type PNGOptions struct {
	Padding    float64
	Scale      float64
	Background *vector.Color
	Images     *render.ImageCache
	Fonts      textlayout.Provider
	Layouter   textlayout.Layouter
}

func (o PNGOptions) scale() float64 {
	if o.Scale <= 0 {
		return 1
	}
	return o.Scale
}

// RenderImage rasterizes the visible content of scene.
func RenderImage(scene render.Scene, opt PNGOptions) (*image.RGBA, error) {
	padding := opt.Padding
	if padding == 0 {
		padding = DefaultPadding
	}
	f, err := contentFrame(scene, padding)
	if err != nil {
		return nil, err
	}
	scale := opt.scale()
	if side := math.Max(f.world.W, f.world.H) * scale; side > MaxRasterSide {
		scale *= MaxRasterSide / side
	}
	if opt.Images != nil {
		warmImages(opt.Images, f.shapes)
	}
	bg := vector.White
	if opt.Background != nil {
		bg = *opt.Background
	}
	w := int(math.Ceil(f.world.W))
	h := int(math.Ceil(f.world.H))
	out := render.NewRaster(w, h, scale, opt.Fonts)
	lay := opt.Layouter
	if lay == nil {
		lay = textlayout.NewCharWrap(opt.Fonts)
	}
	rn := render.NewRenderer(opt.Images, lay)
	vp := viewport.Viewport{X: -f.world.X, Y: -f.world.Y, Zoom: 1}
	rn.Render(out, framedScene{Scene: scene, vp: vp}, render.Options{SuppressSelection: true, Background: bg})
	return out.Image(), nil
}

// PNG renders scene and writes it to outPath.
func PNG(scene render.Scene, outPath string, opt PNGOptions) error {
	img, err := RenderImage(scene, opt)
	if err != nil {
		return err
	}
	if err := ensureDir(outPath); err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

// warmImages starts loads for every image source and waits for them.
func warmImages(cache *render.ImageCache, shapes []shape.Shape) {
	for _, s := range shapes {
		if im, ok := s.(*shape.Image); ok && im.Src != "" {
			cache.Get(im.Src)
		}
	}
	cache.Wait()
}
