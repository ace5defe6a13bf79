/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes a canvas to PNG, PDF and SVG files, framed to its
// content. Selection and hover overlays are never exported.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sketchboard/internal/render"
	"sketchboard/internal/shape"
	"sketchboard/internal/vector"
	"sketchboard/internal/viewport"
)

// ErrEmptyCanvas is returned when no visible shape exists to export.
var ErrEmptyCanvas = errors.New("canvas has no visible shapes")

// DefaultPadding surrounds the content in every format.
const DefaultPadding = 20.0

// frame is the exported region: content bounds plus padding, in world units.
type frame struct {
	shapes []shape.Shape
	world  vector.Rect
}

func contentFrame(scene render.Scene, padding float64) (frame, error) {
	if padding < 0 {
		padding = 0
	}
	var vis []shape.Shape
	for _, s := range scene.Shapes() {
		if s.Common().Visible {
			vis = append(vis, s)
		}
	}
	b, ok := shape.UnionBounds(vis)
	if !ok {
		return frame{}, ErrEmptyCanvas
	}
	return frame{shapes: vis, world: b.Expand(padding)}, nil
}

// toPage maps a world point into frame coordinates with the origin at the
// frame's top-left corner.
func (f frame) toPage(p vector.Pt) vector.Pt {
	return vector.Pt{X: p.X - f.world.X, Y: p.Y - f.world.Y}
}

// framedScene presents a scene through a viewport that puts the frame at the
// surface origin.
type framedScene struct {
	render.Scene
	vp viewport.Viewport
}

func (s framedScene) Viewport() viewport.Viewport { return s.vp }
func (s framedScene) SelectedIDs() []string       { return nil }
func (s framedScene) HoverID() string             { return "" }

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	return nil
}

func hexRGB(c vector.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
