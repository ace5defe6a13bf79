/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render draws a canvas scene onto a Surface: shapes in z-order,
// cached bitmaps for image shapes, wrapped text and selection overlays.
package render

import (
	"log/slog"
	"math"

	"sketchboard/internal/log"
	"sketchboard/internal/shape"
	"sketchboard/internal/textlayout"
	"sketchboard/internal/transform"
	"sketchboard/internal/vector"
	"sketchboard/internal/viewport"
)

// Scene is the read side of a canvas the renderer needs. *canvas.Engine
// satisfies it.
type Scene interface {
	Shapes() []shape.Shape
	SelectedIDs() []string
	Viewport() viewport.Viewport
	HoverID() string
}

// Options tune a single frame.
type Options struct {
	// ExcludeID skips one shape, e.g. the text box under an edit overlay.
	ExcludeID string
	// SuppressSelection omits selection and hover overlays (exports).
	SuppressSelection bool
	Background        vector.Color
}

var (
	SelectionColor  = vector.MustHex("#2563eb")
	HoverColor      = vector.MustHex("#f59e0b")
	PlaceholderFill = vector.MustHex("#f1f5f9")
	PlaceholderEdge = vector.MustHex("#94a3b8")
)

var (
	placeholderDash = []float64{6, 4}
	selectionDash   = []float64{4, 4} // screen px
)

const (
	defaultHandlePx = 10.0
	ascentFactor    = 0.8
)

// Renderer paints scenes. A zero Renderer draws image shapes as
// placeholders and lays text out with the basic provider.
type Renderer struct {
	Images   *ImageCache
	Layouter textlayout.Layouter
	HandlePx float64
	log      *slog.Logger
}

func NewRenderer(images *ImageCache, layouter textlayout.Layouter) *Renderer {
	return &Renderer{Images: images, Layouter: layouter, HandlePx: defaultHandlePx, log: log.WithComponent("render")}
}

func (r *Renderer) layouter() textlayout.Layouter {
	if r.Layouter == nil {
		return textlayout.NewCharWrap(nil)
	}
	return r.Layouter
}

func (r *Renderer) handlePx() float64 {
	if r.HandlePx <= 0 {
		return defaultHandlePx
	}
	return r.HandlePx
}

// Render clears s and draws one frame of scene.
func (r *Renderer) Render(s Surface, scene Scene, opts Options) {
	s.SetTransform(vector.Identity)
	s.Clear(opts.Background)
	vp := scene.Viewport()
	s.Save()
	defer s.Restore()
	s.SetTransform(vp.Transform())
	shapes := scene.Shapes()
	drawn := 0
	for _, sh := range shapes {
		b := sh.Common()
		if !b.Visible || b.ID == opts.ExcludeID {
			continue
		}
		r.drawShape(s, sh)
		drawn++
	}
	if !opts.SuppressSelection {
		r.drawOverlays(s, shapes, scene.SelectedIDs(), scene.HoverID(), vp)
	}
	if r.log != nil {
		r.log.Debug("frame", slog.Int("shapes", drawn), slog.Float64("zoom", vp.Zoom))
	}
}

// DrawShape paints a single shape under the surface's current transform.
func (r *Renderer) DrawShape(s Surface, sh shape.Shape) { r.drawShape(s, sh) }

// drawShape applies rotation (degrees, around the center of the shape's
// bounds) and dispatches on the variant.
func (r *Renderer) drawShape(s Surface, sh shape.Shape) {
	if rot := sh.Common().Rotation; rot != 0 {
		c := shape.Bounds(sh).Center()
		s.Save()
		defer s.Restore()
		s.SetTransform(s.Transform().
			Mul(vector.Translate(c.X, c.Y)).
			Mul(vector.Rotate(rot * math.Pi / 180)).
			Mul(vector.Translate(-c.X, -c.Y)))
	}
	st := sh.Common().Style
	switch v := sh.(type) {
	case *shape.Rectangle:
		p := &Path{}
		p.RoundRect(vector.R(v.X, v.Y, v.W, v.H), v.CornerRadius)
		paint(s, p, st)
	case *shape.Circle:
		p := &Path{}
		p.Circle(vector.Pt{X: v.X, Y: v.Y}, v.Radius)
		paint(s, p, st)
	case *shape.Line:
		strokeOpen(s, v.Points, st)
	case *shape.Freehand:
		strokeOpen(s, v.Points, st)
	case *shape.Arrow:
		strokeOpen(s, v.Points, st)
		arrowHead(s, v.Points, st)
	case *shape.Text:
		r.drawText(s, v)
	case *shape.Image:
		r.drawImage(s, v)
	default:
		panic("render: unknown shape variant")
	}
}

func opacity(st shape.Style) float64 {
	if st.Opacity <= 0 {
		return 0
	}
	return math.Min(st.Opacity, 1)
}

func paint(s Surface, p *Path, st shape.Style) {
	a := opacity(st)
	s.FillPath(p, st.Fill.WithAlpha(a))
	s.StrokePath(p, Stroke{Color: st.Stroke.WithAlpha(a), Width: st.StrokeWidth, Dash: st.Dash})
}

func strokeOpen(s Surface, pts []vector.Pt, st shape.Style) {
	if len(pts) < 2 {
		return
	}
	p := &Path{}
	p.Polyline(pts)
	s.StrokePath(p, Stroke{Color: st.Stroke.WithAlpha(opacity(st)), Width: st.StrokeWidth, Dash: st.Dash})
}

// arrowHead fills a triangle at the last point, pointing along the final
// segment.
func arrowHead(s Surface, pts []vector.Pt, st shape.Style) {
	if len(pts) < 2 {
		return
	}
	tip, from := pts[len(pts)-1], pts[len(pts)-2]
	d := tip.Sub(from)
	l := math.Hypot(d.X, d.Y)
	if l == 0 {
		return
	}
	u := d.Mul(1 / l)
	n := vector.Pt{X: -u.Y, Y: u.X}
	size := 8 + 2*st.StrokeWidth
	base := tip.Sub(u.Mul(size))
	p := &Path{}
	p.MoveTo(tip)
	p.LineTo(base.Add(n.Mul(size / 2)))
	p.LineTo(base.Sub(n.Mul(size / 2)))
	p.Close()
	s.FillPath(p, st.Stroke.WithAlpha(opacity(st)))
}

// drawText wraps at character granularity, clips to the box and paints
// shadow, border and fill in that order. Justified text renders as left.
func (r *Renderer) drawText(s Surface, t *shape.Text) {
	a := opacity(t.Style)
	box := vector.R(t.X, t.Y, t.W, t.H)
	if !t.Style.Fill.IsTransparent() {
		p := &Path{}
		p.Rect(box)
		s.FillPath(p, t.Style.Fill.WithAlpha(a))
	}
	if t.Text == "" {
		return
	}
	spec := transform.FontSpec(t)
	layout := r.layouter().Layout(t.Text, spec, t.W)
	s.Save()
	defer s.Restore()
	s.ClipRect(box)
	lead := (layout.LineHeight - spec.SizePt) / 2
	for i, line := range layout.Lines {
		y := t.Y + float64(i)*layout.LineHeight + lead + spec.SizePt*ascentFactor
		if y-spec.SizePt > t.Y+t.H {
			break
		}
		x := t.X
		switch t.Align {
		case shape.AlignCenter:
			x += (t.W - line.Width) / 2
		case shape.AlignRight:
			x += t.W - line.Width
		}
		if sh := t.Shadow; sh != nil && !sh.Color.IsTransparent() {
			for _, tap := range shadowTaps(sh.Blur) {
				s.FillText(line.Text, x+sh.OffsetX+tap.d.X, y+sh.OffsetY+tap.d.Y, spec, sh.Color.WithAlpha(a*tap.alpha))
			}
		}
		if b := t.Border; b != nil && b.Width > 0 && !b.Color.IsTransparent() {
			s.StrokeText(line.Text, x, y, spec, b.Color.WithAlpha(a), b.Width)
		}
		s.FillText(line.Text, x, y, spec, t.Color.WithAlpha(a))
	}
}

type shadowTap struct {
	d     vector.Pt
	alpha float64
}

// shadowTaps approximates a blur of the given radius with low-alpha copies
// on two rings around the offset. A non-positive blur is one opaque tap.
func shadowTaps(blur float64) []shadowTap {
	if blur <= 0 {
		return []shadowTap{{alpha: 1}}
	}
	taps := []shadowTap{{alpha: 0.4}}
	for _, ring := range []struct{ r, alpha float64 }{{blur / 2, 0.15}, {blur, 0.06}} {
		for i := 0; i < 8; i++ {
			ang := float64(i) * math.Pi / 4
			taps = append(taps, shadowTap{d: vector.Pt{X: ring.r * math.Cos(ang), Y: ring.r * math.Sin(ang)}, alpha: ring.alpha})
		}
	}
	return taps
}

// drawImage paints the cached bitmap, or a dashed placeholder while the
// source is loading or after it failed.
func (r *Renderer) drawImage(s Surface, im *shape.Image) {
	box := vector.R(im.X, im.Y, im.W, im.H)
	if r.Images != nil && im.Src != "" {
		if bmp, ok := r.Images.Get(im.Src); ok {
			s.DrawImage(bmp, box)
			return
		}
	}
	p := &Path{}
	p.Rect(box)
	s.FillPath(p, PlaceholderFill)
	s.StrokePath(p, Stroke{Color: PlaceholderEdge, Width: 1, Dash: placeholderDash})
}

// drawOverlays draws the selection box with handles and the hover outline.
// Widths are divided by zoom so overlays keep a constant screen size.
func (r *Renderer) drawOverlays(s Surface, shapes []shape.Shape, selected []string, hover string, vp viewport.Viewport) {
	byID := make(map[string]shape.Shape, len(shapes))
	for _, sh := range shapes {
		byID[sh.Common().ID] = sh
	}
	px := vp.ScreenLen(1)
	dash := []float64{selectionDash[0] * px, selectionDash[1] * px}
	isSelected := make(map[string]bool, len(selected))
	var members []shape.Shape
	for _, id := range selected {
		if sh, ok := byID[id]; ok && sh.Common().Visible {
			members = append(members, sh)
			isSelected[id] = true
		}
	}

	if h, ok := byID[hover]; ok && !isSelected[hover] && h.Common().Visible {
		outline(s, shape.Bounds(h), Stroke{Color: HoverColor, Width: 2 * px})
	}

	switch len(members) {
	case 0:
		return
	case 1:
		sh := members[0]
		b := shape.Bounds(sh)
		outline(s, b, Stroke{Color: SelectionColor, Width: px, Dash: dash})
		if !sh.Common().Locked {
			r.drawHandles(s, b, transform.HandlesFor(sh.Kind()), px)
		}
	default:
		union, _ := shape.UnionBounds(members)
		for _, sh := range members {
			outline(s, shape.Bounds(sh), Stroke{Color: SelectionColor, Width: px})
		}
		outline(s, union, Stroke{Color: SelectionColor, Width: px, Dash: dash})
		r.drawHandles(s, union, transform.CornerHandles(), px)
	}
}

func (r *Renderer) drawHandles(s Surface, b vector.Rect, handles []transform.Handle, px float64) {
	size := r.handlePx() * px
	for _, h := range handles {
		c := h.Point(b)
		p := &Path{}
		p.Rect(vector.R(c.X-size/2, c.Y-size/2, size, size))
		s.FillPath(p, vector.White)
		s.StrokePath(p, Stroke{Color: SelectionColor, Width: px})
	}
}

func outline(s Surface, b vector.Rect, st Stroke) {
	p := &Path{}
	p.Rect(b)
	s.StrokePath(p, st)
}
