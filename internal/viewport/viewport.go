/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package viewport maps between world coordinates (shape space) and screen
// coordinates (surface pixels) through a uniform zoom and a pan offset.
package viewport

import (
	"math"

	"sketchboard/internal/vector"
)

const (
	MinZoom = 0.1
	MaxZoom = 5.0
)

// Viewport is the (offset, zoom) pair: screen = world*Zoom + (X, Y).
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// New returns the identity viewport.
func New() Viewport { return Viewport{Zoom: 1} }

func (v Viewport) WorldToScreen(p vector.Pt) vector.Pt {
	return vector.Pt{X: p.X*v.Zoom + v.X, Y: p.Y*v.Zoom + v.Y}
}

func (v Viewport) ScreenToWorld(p vector.Pt) vector.Pt {
	z := v.zoom()
	return vector.Pt{X: (p.X - v.X) / z, Y: (p.Y - v.Y) / z}
}

// Transform returns the world-to-screen matrix.
func (v Viewport) Transform() vector.Affine2D {
	return vector.Translate(v.X, v.Y).Mul(vector.Scale(v.zoom(), v.zoom()))
}

// ScreenLen converts a length in screen pixels to world units.
func (v Viewport) ScreenLen(px float64) float64 { return px / v.zoom() }

// Pan moves the offset only.
func (v *Viewport) Pan(dx, dy float64) {
	v.X += dx
	v.Y += dy
}

// ZoomAt multiplies the zoom by factor, clamped to [MinZoom, MaxZoom], keeping
// the world point under screenPt fixed on screen.
func (v *Viewport) ZoomAt(factor float64, screenPt vector.Pt) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return
	}
	anchor := v.ScreenToWorld(screenPt)
	v.Zoom = ClampZoom(v.zoom() * factor)
	v.X = screenPt.X - anchor.X*v.Zoom
	v.Y = screenPt.Y - anchor.Y*v.Zoom
}

// SetZoom sets an absolute zoom around screenPt.
func (v *Viewport) SetZoom(zoom float64, screenPt vector.Pt) {
	if zoom <= 0 {
		return
	}
	v.ZoomAt(zoom/v.zoom(), screenPt)
}

// FitTo centers content on a canvasW x canvasH surface, leaving padding on
// every side. Zoom never exceeds 1, so small drawings are not upscaled.
// An empty content rect leaves the viewport unchanged and reports false.
func (v *Viewport) FitTo(content vector.Rect, canvasW, canvasH, padding float64) bool {
	if content.W <= 0 && content.H <= 0 {
		return false
	}
	cw := math.Max(content.W, 1)
	ch := math.Max(content.H, 1)
	availW := math.Max(canvasW-2*padding, 1)
	availH := math.Max(canvasH-2*padding, 1)
	z := math.Min(math.Min(availW/cw, availH/ch), 1)
	v.Zoom = ClampZoom(z)
	c := content.Center()
	v.X = canvasW/2 - c.X*v.Zoom
	v.Y = canvasH/2 - c.Y*v.Zoom
	return true
}

// VisibleWorld returns the world rectangle visible on a canvasW x canvasH surface.
func (v Viewport) VisibleWorld(canvasW, canvasH float64) vector.Rect {
	return vector.RectFromPoints(v.ScreenToWorld(vector.Pt{}), v.ScreenToWorld(vector.Pt{X: canvasW, Y: canvasH}))
}

// Normalize repairs a zero or out-of-range zoom, e.g. after decoding.
func (v *Viewport) Normalize() {
	if v.Zoom == 0 || math.IsNaN(v.Zoom) {
		v.Zoom = 1
	}
	v.Zoom = ClampZoom(v.Zoom)
}

func ClampZoom(z float64) float64 { return vector.Clamp(z, MinZoom, MaxZoom) }

func (v Viewport) zoom() float64 {
	if v.Zoom == 0 {
		return 1
	}
	return v.Zoom
}
