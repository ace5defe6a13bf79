/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

// Pure resize and move math for shapes. Every function here works from the
// state captured when the gesture started, so repeated calls during a drag
// never accumulate rounding error.

import (
	"math"

	"sketchboard/internal/shape"
	"sketchboard/internal/textlayout"
	"sketchboard/internal/vector"
)

// DefaultMinSize is the smallest width, height or diameter in screen pixels.
// Callers divide it by the zoom to get world units.
const DefaultMinSize = 10.0

// Handle names a resize grip on a shape's bounding box.
type Handle string

const (
	None        Handle = ""
	TopLeft     Handle = "topLeft"
	Top         Handle = "top"
	TopRight    Handle = "topRight"
	Right       Handle = "right"
	BottomRight Handle = "bottomRight"
	Bottom      Handle = "bottom"
	BottomLeft  Handle = "bottomLeft"
	Left        Handle = "left"
)

var (
	allHandles    = []Handle{TopLeft, Top, TopRight, Right, BottomRight, Bottom, BottomLeft, Left}
	cornerHandles = []Handle{TopLeft, TopRight, BottomRight, BottomLeft}
	textHandles   = []Handle{TopLeft, TopRight, BottomRight, BottomLeft, Left, Right}
)

// HandlesFor lists the grips offered for a kind. Polylines have none.
func HandlesFor(k shape.Kind) []Handle {
	switch k {
	case shape.KindRectangle, shape.KindCircle:
		return allHandles
	case shape.KindImage:
		return cornerHandles
	case shape.KindText:
		return textHandles
	default:
		return nil
	}
}

// CornerHandles are the grips offered on a multi-selection.
func CornerHandles() []Handle { return cornerHandles }

func (h Handle) movesLeft() bool   { return h == TopLeft || h == Left || h == BottomLeft }
func (h Handle) movesRight() bool  { return h == TopRight || h == Right || h == BottomRight }
func (h Handle) movesTop() bool    { return h == TopLeft || h == Top || h == TopRight }
func (h Handle) movesBottom() bool { return h == BottomLeft || h == Bottom || h == BottomRight }

// IsCorner reports whether h moves both axes.
func (h Handle) IsCorner() bool {
	return (h.movesLeft() || h.movesRight()) && (h.movesTop() || h.movesBottom())
}

// Point returns the location of h on b.
func (h Handle) Point(b vector.Rect) vector.Pt {
	x, y := b.X+b.W/2, b.Y+b.H/2
	switch {
	case h.movesLeft():
		x = b.X
	case h.movesRight():
		x = b.Right()
	}
	switch {
	case h.movesTop():
		y = b.Y
	case h.movesBottom():
		y = b.Bottom()
	}
	return vector.Pt{X: x, Y: y}
}

// Options tune the resize math.
type Options struct {
	// MinSize in world units; zero means DefaultMinSize.
	MinSize float64
	// Layouter measures text for auto height; nil uses character wrap with BasicProvider.
	Layouter textlayout.Layouter
}

func (o Options) minSize() float64 {
	if o.MinSize <= 0 {
		return DefaultMinSize
	}
	return o.MinSize
}

func (o Options) layouter() textlayout.Layouter {
	if o.Layouter == nil {
		return textlayout.NewCharWrap(textlayout.BasicProvider{})
	}
	return o.Layouter
}

// ResizeRect moves the edges h controls to p while the opposite edges stay
// fixed. Dragging past the opposite edge clamps at minSize instead of flipping.
func ResizeRect(b vector.Rect, h Handle, p vector.Pt, minSize float64) vector.Rect {
	left, top, right, bottom := b.X, b.Y, b.Right(), b.Bottom()
	switch {
	case h.movesLeft():
		left = math.Min(p.X, right-minSize)
	case h.movesRight():
		right = math.Max(p.X, left+minSize)
	}
	switch {
	case h.movesTop():
		top = math.Min(p.Y, bottom-minSize)
	case h.movesBottom():
		bottom = math.Max(p.Y, top+minSize)
	}
	return vector.Rect{X: left, Y: top, W: right - left, H: bottom - top}
}

// ResizeAspect resizes b from a corner keeping W/H exactly equal to the
// ratio at gesture start. The axis that moved proportionally more drives the
// other. Non-corner handles return b unchanged.
func ResizeAspect(b vector.Rect, h Handle, p vector.Pt, minSize float64) vector.Rect {
	if !h.IsCorner() || b.W <= 0 || b.H <= 0 {
		return b
	}
	anchor := opposite(h).Point(b)
	ratio := b.W / b.H
	w := p.X - anchor.X
	if h.movesLeft() {
		w = anchor.X - p.X
	}
	hgt := p.Y - anchor.Y
	if h.movesTop() {
		hgt = anchor.Y - p.Y
	}
	if math.Abs(w/b.W-1) >= math.Abs(hgt/b.H-1) {
		hgt = w / ratio
	} else {
		w = hgt * ratio
	}
	if w < minSize {
		w = minSize
		hgt = w / ratio
	}
	if hgt < minSize {
		hgt = minSize
		w = hgt * ratio
	}
	out := vector.Rect{X: anchor.X, Y: anchor.Y, W: w, H: hgt}
	if h.movesLeft() {
		out.X = anchor.X - w
	}
	if h.movesTop() {
		out.Y = anchor.Y - hgt
	}
	return out
}

func opposite(h Handle) Handle {
	switch h {
	case TopLeft:
		return BottomRight
	case Top:
		return Bottom
	case TopRight:
		return BottomLeft
	case Right:
		return Left
	case BottomRight:
		return TopLeft
	case Bottom:
		return Top
	case BottomLeft:
		return TopRight
	case Left:
		return Right
	default:
		return None
	}
}

// Resize returns a copy of initial resized by dragging h to p. initial must be
// the shape as it was when the gesture started. Shapes without handles come
// back as an unchanged copy.
func Resize(initial shape.Shape, h Handle, p vector.Pt, opts Options) shape.Shape {
	out := initial.Clone()
	minSize := opts.minSize()
	switch v := out.(type) {
	case *shape.Rectangle:
		r := ResizeRect(vector.R(v.X, v.Y, v.W, v.H), h, p, minSize)
		v.X, v.Y, v.W, v.H = r.X, r.Y, r.W, r.H
	case *shape.Image:
		r := ResizeAspect(vector.R(v.X, v.Y, v.W, v.H), h, p, minSize)
		v.X, v.Y, v.W, v.H = r.X, r.Y, r.W, r.H
	case *shape.Circle:
		v.Radius = math.Max(vector.Pt{X: v.X, Y: v.Y}.Dist(p), minSize/2)
	case *shape.Text:
		resizeText(v, h, p, minSize, opts.layouter())
	case *shape.Line, *shape.Arrow, *shape.Freehand:
	default:
		panic("transform: unknown shape variant")
	}
	return out
}

// resizeText mutates t, which holds the gesture-start state.
//
// Vertical and corner grips scale the font by the height ratio. Side grips
// change the width only: shrinking refits the height to the wrapped text,
// growing keeps the height.
func resizeText(t *shape.Text, h Handle, p vector.Pt, minSize float64, l textlayout.Layouter) {
	base := vector.R(t.X, t.Y, t.W, t.H)
	switch h {
	case Left, Right:
		r := ResizeRect(base, h, p, minSize)
		t.X, t.W = r.X, r.W
		if r.W < base.W {
			t.H = AutoHeight(t, l)
		}
	case Top, Bottom:
		r := ResizeRect(base, h, p, minSize)
		t.Y, t.H = r.Y, r.H
		t.FontSize = scaledFont(t.FontSize, r.H, base.H)
	case TopLeft, TopRight, BottomLeft, BottomRight:
		r := ResizeRect(base, h, p, minSize)
		t.X, t.Y, t.W, t.H = r.X, r.Y, r.W, r.H
		t.FontSize = scaledFont(t.FontSize, r.H, base.H)
	}
}

func scaledFont(size, newH, oldH float64) float64 {
	if oldH <= 0 {
		return size
	}
	return textlayout.ClampFontSize(size * newH / oldH)
}

// AutoHeight is the height t needs to show all of its text at its current
// width and font size.
func AutoHeight(t *shape.Text, l textlayout.Layouter) float64 {
	if l == nil {
		l = textlayout.NewCharWrap(textlayout.BasicProvider{})
	}
	box := l.Layout(t.Text, FontSpec(t), t.W)
	return textlayout.FitHeight(len(box.Lines), t.FontSize)
}

// FontSpec describes the font t is drawn with.
func FontSpec(t *shape.Text) textlayout.FontSpec {
	return textlayout.FontSpec{Family: t.FontFamily, SizePt: t.FontSize, Weight: 400}
}
