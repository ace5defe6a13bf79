/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render draws a canvas scene onto an abstract Surface. Raster is the
// built-in Surface backed by an *image.RGBA.
package render

import (
	"image"
	"math"

	"sketchboard/internal/textlayout"
	"sketchboard/internal/vector"
)

// Stroke describes how outlines are painted. Width and Dash are in the
// coordinate space of the current transform.
type Stroke struct {
	Color vector.Color
	Width float64
	Dash  []float64
}

// Surface is a 2D drawing target with a transform stack and rectangular
// clipping. Coordinates passed to drawing calls go through the current
// transform; the surface applies its device pixel ratio on top.
type Surface interface {
	// Size is the logical size in CSS pixels.
	Size() (w, h float64)
	DevicePixelRatio() float64

	Clear(c vector.Color)
	Save()
	Restore()
	SetTransform(m vector.Affine2D)
	Transform() vector.Affine2D
	ClipRect(r vector.Rect)

	FillPath(p *Path, c vector.Color)
	StrokePath(p *Path, st Stroke)

	// FillText draws s with its baseline starting at (x, y).
	FillText(s string, x, y float64, font textlayout.FontSpec, c vector.Color)
	// StrokeText outlines s, width wide.
	StrokeText(s string, x, y float64, font textlayout.FontSpec, c vector.Color, width float64)
	MeasureText(s string, font textlayout.FontSpec) float64

	DrawImage(img image.Image, dst vector.Rect)
}

// Path is a list of flattened subpaths. Curves are converted to line
// segments when they are added.
type Path struct {
	subs []subpath
}

type subpath struct {
	pts    []vector.Pt
	closed bool
}

// arcSegments is the number of segments used for a full circle.
const arcSegments = 48

func (p *Path) MoveTo(pt vector.Pt) {
	p.subs = append(p.subs, subpath{pts: []vector.Pt{pt}})
}

func (p *Path) LineTo(pt vector.Pt) {
	if len(p.subs) == 0 {
		p.MoveTo(pt)
		return
	}
	last := &p.subs[len(p.subs)-1]
	last.pts = append(last.pts, pt)
}

// Close marks the current subpath closed.
func (p *Path) Close() {
	if len(p.subs) > 0 {
		p.subs[len(p.subs)-1].closed = true
	}
}

// Polyline adds an open subpath through pts.
func (p *Path) Polyline(pts []vector.Pt) {
	if len(pts) == 0 {
		return
	}
	p.subs = append(p.subs, subpath{pts: append([]vector.Pt(nil), pts...)})
}

// Rect adds a closed rectangle.
func (p *Path) Rect(r vector.Rect) {
	p.MoveTo(vector.Pt{X: r.X, Y: r.Y})
	p.LineTo(vector.Pt{X: r.Right(), Y: r.Y})
	p.LineTo(vector.Pt{X: r.Right(), Y: r.Bottom()})
	p.LineTo(vector.Pt{X: r.X, Y: r.Bottom()})
	p.Close()
}

// RoundRect adds a closed rectangle with circular corners. The radius is
// limited to half the shorter side.
func (p *Path) RoundRect(r vector.Rect, radius float64) {
	radius = math.Min(radius, math.Min(r.W, r.H)/2)
	if radius <= 0 {
		p.Rect(r)
		return
	}
	p.MoveTo(vector.Pt{X: r.X + radius, Y: r.Y})
	p.arc(vector.Pt{X: r.Right() - radius, Y: r.Y + radius}, radius, -math.Pi/2, 0)
	p.arc(vector.Pt{X: r.Right() - radius, Y: r.Bottom() - radius}, radius, 0, math.Pi/2)
	p.arc(vector.Pt{X: r.X + radius, Y: r.Bottom() - radius}, radius, math.Pi/2, math.Pi)
	p.arc(vector.Pt{X: r.X + radius, Y: r.Y + radius}, radius, math.Pi, 3*math.Pi/2)
	p.Close()
}

// Circle adds a closed circle.
func (p *Path) Circle(c vector.Pt, radius float64) {
	p.MoveTo(vector.Pt{X: c.X + radius, Y: c.Y})
	p.arc(c, radius, 0, 2*math.Pi)
	p.Close()
}

func (p *Path) arc(c vector.Pt, radius, from, to float64) {
	n := int(math.Ceil(arcSegments * math.Abs(to-from) / (2 * math.Pi)))
	if n < 1 {
		n = 1
	}
	for i := 0; i <= n; i++ {
		a := from + (to-from)*float64(i)/float64(n)
		p.LineTo(vector.Pt{X: c.X + radius*math.Cos(a), Y: c.Y + radius*math.Sin(a)})
	}
}

// Transform returns a copy of p with every point mapped through m.
func (p *Path) Transform(m vector.Affine2D) *Path {
	out := &Path{subs: make([]subpath, len(p.subs))}
	for i, s := range p.subs {
		pts := make([]vector.Pt, len(s.pts))
		for j, pt := range s.pts {
			pts[j] = m.Apply(pt)
		}
		out.subs[i] = subpath{pts: pts, closed: s.closed}
	}
	return out
}

// Bounds is the box around every point of p.
func (p *Path) Bounds() (vector.Rect, bool) {
	var all []vector.Pt
	for _, s := range p.subs {
		all = append(all, s.pts...)
	}
	return vector.BoundsOf(all)
}

// Empty reports whether p has no points.
func (p *Path) Empty() bool { return len(p.subs) == 0 }

// Each calls fn for every subpath in order. fn must not retain pts.
func (p *Path) Each(fn func(pts []vector.Pt, closed bool)) {
	for _, s := range p.subs {
		fn(s.pts, s.closed)
	}
}
