/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	xvector "golang.org/x/image/vector"

	"sketchboard/internal/textlayout"
	"sketchboard/internal/vector"
)

// Raster is a Surface that paints into an *image.RGBA. Logical coordinates
// are multiplied by the device pixel ratio, so a 100x50 raster at ratio 2
// owns a 200x100 image.
type Raster struct {
	img   *image.RGBA
	dpr   float64
	fonts textlayout.Provider
	st    rasterState
	stack []rasterState
}

type rasterState struct {
	m    vector.Affine2D
	clip image.Rectangle // device pixels
}

// NewRaster allocates a w x h logical surface. fonts may be nil.
func NewRaster(w, h int, dpr float64, fonts textlayout.Provider) *Raster {
	if dpr <= 0 {
		dpr = 1
	}
	if fonts == nil {
		fonts = textlayout.BasicProvider{}
	}
	img := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(float64(w)*dpr)), int(math.Ceil(float64(h)*dpr))))
	return &Raster{
		img:   img,
		dpr:   dpr,
		fonts: fonts,
		st:    rasterState{m: vector.Identity, clip: img.Bounds()},
	}
}

// Image returns the backing image.
func (r *Raster) Image() *image.RGBA { return r.img }

func (r *Raster) Size() (w, h float64) {
	b := r.img.Bounds()
	return float64(b.Dx()) / r.dpr, float64(b.Dy()) / r.dpr
}

func (r *Raster) DevicePixelRatio() float64 { return r.dpr }

func (r *Raster) Clear(c vector.Color) {
	draw.Draw(r.img, r.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

func (r *Raster) Save() { r.stack = append(r.stack, r.st) }

func (r *Raster) Restore() {
	if n := len(r.stack); n > 0 {
		r.st = r.stack[n-1]
		r.stack = r.stack[:n-1]
	}
}

func (r *Raster) SetTransform(m vector.Affine2D) { r.st.m = m }
func (r *Raster) Transform() vector.Affine2D     { return r.st.m }

// device maps logical coordinates under the current transform to pixels.
func (r *Raster) device() vector.Affine2D { return vector.Scale(r.dpr, r.dpr).Mul(r.st.m) }

// deviceScale is the uniform part of the device transform.
func (r *Raster) deviceScale() float64 {
	m := r.device()
	return math.Sqrt(math.Abs(m.A*m.D - m.B*m.C))
}

// ClipRect intersects the clip with rect (in transformed coordinates).
func (r *Raster) ClipRect(rect vector.Rect) {
	m := r.device()
	b, _ := vector.BoundsOf([]vector.Pt{
		m.Apply(rect.Min()),
		m.Apply(vector.Pt{X: rect.Right(), Y: rect.Y}),
		m.Apply(rect.Max()),
		m.Apply(vector.Pt{X: rect.X, Y: rect.Bottom()}),
	})
	dr := image.Rect(int(math.Floor(b.X)), int(math.Floor(b.Y)), int(math.Ceil(b.Right())), int(math.Ceil(b.Bottom())))
	r.st.clip = r.st.clip.Intersect(dr)
}

func (r *Raster) FillPath(p *Path, c vector.Color) {
	if p == nil || p.Empty() || c.IsTransparent() {
		return
	}
	dp := p.Transform(r.device())
	polys := make([][]vector.Pt, 0, len(dp.subs))
	for _, s := range dp.subs {
		polys = append(polys, s.pts)
	}
	r.fillPolys(polys, c)
}

func (r *Raster) StrokePath(p *Path, st Stroke) {
	if p == nil || p.Empty() || st.Color.IsTransparent() || st.Width <= 0 {
		return
	}
	scale := r.deviceScale()
	hw := math.Max(st.Width*scale, 1) / 2
	var dash []float64
	for _, d := range st.Dash {
		dash = append(dash, d*scale)
	}
	dp := p.Transform(r.device())
	var polys [][]vector.Pt
	for _, s := range dp.subs {
		pts := s.pts
		if s.closed && len(pts) > 1 {
			pts = append(pts[:len(pts):len(pts)], pts[0])
		}
		for _, run := range dashPolyline(pts, dash) {
			polys = append(polys, strokePolys(run, hw)...)
		}
	}
	r.fillPolys(polys, st.Color)
}

// fillPolys rasterizes polys as one coverage mask and composites c through
// it. Overlapping polygons do not darken each other.
func (r *Raster) fillPolys(polys [][]vector.Pt, c vector.Color) {
	var all []vector.Pt
	for _, p := range polys {
		all = append(all, p...)
	}
	b, ok := vector.BoundsOf(all)
	if !ok {
		return
	}
	area := image.Rect(int(math.Floor(b.X)), int(math.Floor(b.Y)), int(math.Ceil(b.Right()))+1, int(math.Ceil(b.Bottom()))+1).
		Intersect(r.st.clip)
	if area.Empty() {
		return
	}
	w, h := area.Dx(), area.Dy()
	window := vector.R(0, 0, float64(w), float64(h))
	off := vector.Pt{X: float64(area.Min.X), Y: float64(area.Min.Y)}
	z := xvector.NewRasterizer(w, h)
	drawn := false
	for _, p := range polys {
		local := make([]vector.Pt, len(p))
		for i, pt := range p {
			local[i] = pt.Sub(off)
		}
		local = clipPolygon(local, window)
		if len(local) < 3 {
			continue
		}
		z.MoveTo(float32(local[0].X), float32(local[0].Y))
		for _, pt := range local[1:] {
			z.LineTo(float32(pt.X), float32(pt.Y))
		}
		z.ClosePath()
		drawn = true
	}
	if !drawn {
		return
	}
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	draw.DrawMask(r.img, area, image.NewUniform(c), image.Point{}, mask, image.Point{}, draw.Over)
}

func (r *Raster) FillText(s string, x, y float64, spec textlayout.FontSpec, c vector.Color) {
	if s == "" || c.IsTransparent() {
		return
	}
	dev := spec
	dev.SizePt = spec.SizePt * r.deviceScale()
	face, _ := r.fonts.Resolve(dev)
	p := r.device().Apply(vector.Pt{X: x, Y: y})
	dst, ok := r.img.SubImage(r.st.clip).(*image.RGBA)
	if !ok || dst.Bounds().Empty() {
		return
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(math.Round(p.X * 64)), Y: fixed.Int26_6(math.Round(p.Y * 64))},
	}
	d.DrawString(s)
}

// StrokeText approximates an outline by stamping the text around its
// origin in eight directions.
func (r *Raster) StrokeText(s string, x, y float64, spec textlayout.FontSpec, c vector.Color, width float64) {
	if width <= 0 {
		return
	}
	for dy := -1.0; dy <= 1; dy++ {
		for dx := -1.0; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			r.FillText(s, x+dx*width, y+dy*width, spec, c)
		}
	}
}

func (r *Raster) MeasureText(s string, spec textlayout.FontSpec) float64 {
	return r.fonts.Advance(s, spec)
}

// DrawImage scales img into dst. Rotation in the transform is ignored; the
// image fills the bounding box of the transformed rectangle.
func (r *Raster) DrawImage(img image.Image, dst vector.Rect) {
	if img == nil || img.Bounds().Empty() {
		return
	}
	m := r.device()
	b, _ := vector.BoundsOf([]vector.Pt{m.Apply(dst.Min()), m.Apply(dst.Max())})
	dr := image.Rect(int(math.Round(b.X)), int(math.Round(b.Y)), int(math.Round(b.Right())), int(math.Round(b.Bottom())))
	target, ok := r.img.SubImage(r.st.clip).(*image.RGBA)
	if !ok || dr.Intersect(target.Bounds()).Empty() {
		return
	}
	draw.CatmullRom.Scale(target, dr, img, img.Bounds(), draw.Over, nil)
}

// strokePolys turns a polyline into quads per segment plus round joins at
// interior vertices, all wound the same way.
func strokePolys(pts []vector.Pt, hw float64) [][]vector.Pt {
	var out [][]vector.Pt
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		d := b.Sub(a)
		l := math.Hypot(d.X, d.Y)
		if l == 0 {
			continue
		}
		n := vector.Pt{X: -d.Y / l * hw, Y: d.X / l * hw}
		out = append(out, orient([]vector.Pt{a.Add(n), b.Add(n), b.Sub(n), a.Sub(n)}))
		if i > 1 && hw >= 1 {
			out = append(out, disc(a, hw))
		}
	}
	if len(pts) > 2 && pts[0] == pts[len(pts)-1] && hw >= 1 {
		out = append(out, disc(pts[0], hw))
	}
	return out
}

func disc(c vector.Pt, radius float64) []vector.Pt {
	const n = 12
	pts := make([]vector.Pt, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / n
		pts[i] = vector.Pt{X: c.X + radius*math.Cos(a), Y: c.Y + radius*math.Sin(a)}
	}
	return orient(pts)
}

// orient reverses pts if needed so the signed area is positive.
func orient(pts []vector.Pt) []vector.Pt {
	var area float64
	for i := range pts {
		j := (i + 1) % len(pts)
		area += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	if area < 0 {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	return pts
}

// dashPolyline splits pts into the "on" runs of an on/off pattern. An odd
// pattern is repeated to make it even. No pattern returns pts unchanged.
func dashPolyline(pts []vector.Pt, pattern []float64) [][]vector.Pt {
	total := 0.0
	for _, d := range pattern {
		if d < 0 {
			return [][]vector.Pt{pts}
		}
		total += d
	}
	if total <= 0 || len(pts) < 2 {
		return [][]vector.Pt{pts}
	}
	if len(pattern)%2 == 1 {
		pattern = append(pattern[:len(pattern):len(pattern)], pattern...)
	}
	var (
		out    [][]vector.Pt
		cur    []vector.Pt
		idx    int
		remain = pattern[0]
		on     = true
	)
	cur = []vector.Pt{pts[0]}
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		segLen := a.Dist(b)
		pos := 0.0
		for segLen-pos > remain {
			pos += remain
			p := a.Add(b.Sub(a).Mul(pos / segLen))
			if on {
				cur = append(cur, p)
				out = append(out, cur)
				cur = nil
			} else {
				cur = []vector.Pt{p}
			}
			on = !on
			idx = (idx + 1) % len(pattern)
			remain = pattern[idx]
		}
		remain -= segLen - pos
		if on {
			cur = append(cur, b)
		}
	}
	if on && len(cur) > 1 {
		out = append(out, cur)
	}
	return out
}

// clipPolygon clips a closed polygon to an axis-aligned window
// (Sutherland-Hodgman).
func clipPolygon(pts []vector.Pt, w vector.Rect) []vector.Pt {
	edges := []struct {
		inside func(vector.Pt) bool
		cross  func(a, b vector.Pt) vector.Pt
	}{
		{func(p vector.Pt) bool { return p.X >= w.X }, func(a, b vector.Pt) vector.Pt { return atX(a, b, w.X) }},
		{func(p vector.Pt) bool { return p.X <= w.Right() }, func(a, b vector.Pt) vector.Pt { return atX(a, b, w.Right()) }},
		{func(p vector.Pt) bool { return p.Y >= w.Y }, func(a, b vector.Pt) vector.Pt { return atY(a, b, w.Y) }},
		{func(p vector.Pt) bool { return p.Y <= w.Bottom() }, func(a, b vector.Pt) vector.Pt { return atY(a, b, w.Bottom()) }},
	}
	for _, e := range edges {
		if len(pts) == 0 {
			return nil
		}
		in := pts
		pts = make([]vector.Pt, 0, len(in)+4)
		prev := in[len(in)-1]
		for _, cur := range in {
			switch {
			case e.inside(cur) && e.inside(prev):
				pts = append(pts, cur)
			case e.inside(cur):
				pts = append(pts, e.cross(prev, cur), cur)
			case e.inside(prev):
				pts = append(pts, e.cross(prev, cur))
			}
			prev = cur
		}
	}
	return pts
}

func atX(a, b vector.Pt, x float64) vector.Pt {
	t := (x - a.X) / (b.X - a.X)
	return vector.Pt{X: x, Y: a.Y + t*(b.Y-a.Y)}
}

func atY(a, b vector.Pt, y float64) vector.Pt {
	t := (y - a.Y) / (b.Y - a.Y)
	return vector.Pt{X: a.X + t*(b.X-a.X), Y: y}
}
