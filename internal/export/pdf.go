/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/font"

	"sketchboard/internal/render"
	"sketchboard/internal/textlayout"
	"sketchboard/internal/vector"
	"sketchboard/internal/viewport"
)

// PDFOptions controls PDF export. Units are points; one world unit maps to
// one point. Text uses the built-in Helvetica so nothing is embedded.
type PDFOptions struct {
	Padding    float64
	Title      string
	Author     string
	Background *vector.Color
	Images     *render.ImageCache
}

// PDF renders the visible content of scene as a single page sized to it.
func PDF(scene render.Scene, w io.Writer, opt PDFOptions) error {
	padding := opt.Padding
	if padding == 0 {
		padding = DefaultPadding
	}
	f, err := contentFrame(scene, padding)
	if err != nil {
		return err
	}
	if opt.Images != nil {
		warmImages(opt.Images, f.shapes)
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: f.world.W, Ht: f.world.H},
	})
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	if opt.Author != "" {
		pdf.SetAuthor(opt.Author, true)
	}
	pdf.SetCreator("sketchboard", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	surf := newPDFSurface(pdf, f.world.W, f.world.H)
	bg := vector.White
	if opt.Background != nil {
		bg = *opt.Background
	}
	rn := render.NewRenderer(opt.Images, textlayout.NewCharWrap(surf))
	vp := viewport.Viewport{X: -f.world.X, Y: -f.world.Y, Zoom: 1}
	rn.Render(surf, framedScene{Scene: scene, vp: vp}, render.Options{SuppressSelection: true, Background: bg})
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// PDFFile is PDF written to outPath.
func PDFFile(scene render.Scene, outPath string, opt PDFOptions) error {
	if err := ensureDir(outPath); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := PDF(scene, &buf, opt); err != nil {
		return err
	}
	return writeFile(outPath, buf.Bytes())
}

const pdfFont = "Helvetica"

type pdfState struct {
	m     vector.Affine2D
	clips int
}

// pdfSurface draws onto a gofpdf page. Geometry is transformed here so the
// PDF graphics state only ever carries rotation for text and images.
type pdfSurface struct {
	pdf    *gofpdf.Fpdf
	w, h   float64
	st     pdfState
	stack  []pdfState
	tr     func(string) string
	images int
}

func newPDFSurface(pdf *gofpdf.Fpdf, w, h float64) *pdfSurface {
	return &pdfSurface{
		pdf: pdf,
		w:   w,
		h:   h,
		st:  pdfState{m: vector.Identity},
		tr:  pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

func (s *pdfSurface) Size() (w, h float64)           { return s.w, s.h }
func (s *pdfSurface) DevicePixelRatio() float64      { return 1 }
func (s *pdfSurface) SetTransform(m vector.Affine2D) { s.st.m = m }
func (s *pdfSurface) Transform() vector.Affine2D     { return s.st.m }

func (s *pdfSurface) Clear(c vector.Color) {
	if c.IsTransparent() {
		return
	}
	s.fill(c)
	s.pdf.Rect(0, 0, s.w, s.h, "F")
}

func (s *pdfSurface) Save() {
	s.stack = append(s.stack, s.st)
	s.st.clips = 0
}

func (s *pdfSurface) Restore() {
	for ; s.st.clips > 0; s.st.clips-- {
		s.pdf.ClipEnd()
	}
	if n := len(s.stack); n > 0 {
		s.st = s.stack[n-1]
		s.stack = s.stack[:n-1]
	}
}

func (s *pdfSurface) ClipRect(r vector.Rect) {
	corners := []vector.Pt{r.Min(), {X: r.Right(), Y: r.Y}, r.Max(), {X: r.X, Y: r.Bottom()}}
	pts := make([]gofpdf.PointType, len(corners))
	for i, c := range corners {
		p := s.st.m.Apply(c)
		pts[i] = gofpdf.PointType{X: p.X, Y: p.Y}
	}
	s.pdf.ClipPolygon(pts, false)
	s.st.clips++
}

func (s *pdfSurface) FillPath(p *render.Path, c vector.Color) {
	if c.IsTransparent() || p.Empty() {
		return
	}
	s.fill(c)
	s.trace(p, true)
	s.pdf.DrawPath("F")
}

func (s *pdfSurface) StrokePath(p *render.Path, st render.Stroke) {
	if st.Color.IsTransparent() || st.Width <= 0 || p.Empty() {
		return
	}
	k := s.scale()
	s.pdf.SetDrawColor(int(st.Color.R), int(st.Color.G), int(st.Color.B))
	s.pdf.SetAlpha(float64(st.Color.A)/255, "Normal")
	s.pdf.SetLineWidth(st.Width * k)
	s.pdf.SetLineCapStyle("round")
	s.pdf.SetLineJoinStyle("round")
	if len(st.Dash) > 0 {
		dash := make([]float64, len(st.Dash))
		for i, d := range st.Dash {
			dash[i] = d * k
		}
		s.pdf.SetDashPattern(dash, 0)
		defer s.pdf.SetDashPattern([]float64{}, 0)
	}
	s.trace(p, false)
	s.pdf.DrawPath("D")
}

// trace emits every subpath of p in page coordinates. Filled subpaths are
// always closed.
func (s *pdfSurface) trace(p *render.Path, fill bool) {
	p.Each(func(pts []vector.Pt, closed bool) {
		for i, pt := range pts {
			q := s.st.m.Apply(pt)
			if i == 0 {
				s.pdf.MoveTo(q.X, q.Y)
				continue
			}
			s.pdf.LineTo(q.X, q.Y)
		}
		if closed || fill {
			s.pdf.ClosePath()
		}
	})
}

func (s *pdfSurface) FillText(str string, x, y float64, spec textlayout.FontSpec, c vector.Color) {
	if str == "" || c.IsTransparent() {
		return
	}
	p := s.st.m.Apply(vector.Pt{X: x, Y: y})
	s.setFont(spec, spec.SizePt*s.scale())
	s.pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
	s.pdf.SetAlpha(float64(c.A)/255, "Normal")
	rotated := s.rotate(p)
	s.pdf.Text(p.X, p.Y, s.tr(str))
	if rotated {
		s.pdf.TransformEnd()
	}
}

// StrokeText stamps the fill in eight directions, matching the raster
// surface.
func (s *pdfSurface) StrokeText(str string, x, y float64, spec textlayout.FontSpec, c vector.Color, width float64) {
	if width <= 0 {
		return
	}
	for dy := -1.0; dy <= 1; dy++ {
		for dx := -1.0; dx <= 1; dx++ {
			if dx != 0 || dy != 0 {
				s.FillText(str, x+dx*width, y+dy*width, spec, c)
			}
		}
	}
}

func (s *pdfSurface) MeasureText(str string, spec textlayout.FontSpec) float64 {
	return s.Advance(str, spec)
}

// Resolve satisfies textlayout.Provider. Layout only needs advances, so
// the face is the basic fallback.
func (s *pdfSurface) Resolve(spec textlayout.FontSpec) (font.Face, textlayout.Metrics) {
	return textlayout.BasicProvider{}.Resolve(spec)
}

// Advance measures str in Helvetica at spec.SizePt.
func (s *pdfSurface) Advance(str string, spec textlayout.FontSpec) float64 {
	s.setFont(spec, spec.SizePt)
	return s.pdf.GetStringWidth(s.tr(str))
}

func (s *pdfSurface) DrawImage(img image.Image, dst vector.Rect) {
	if img == nil || img.Bounds().Empty() {
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		s.pdf.SetError(fmt.Errorf("encode image: %w", err))
		return
	}
	s.images++
	name := fmt.Sprintf("img%d", s.images)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	s.pdf.RegisterImageOptionsReader(name, opts, &buf)
	k := s.scale()
	c := s.st.m.Apply(dst.Center())
	w, h := dst.W*k, dst.H*k
	rotated := s.rotate(c)
	s.pdf.ImageOptions(name, c.X-w/2, c.Y-h/2, w, h, false, opts, 0, "")
	if rotated {
		s.pdf.TransformEnd()
	}
}

func (s *pdfSurface) fill(c vector.Color) {
	s.pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
	s.pdf.SetAlpha(float64(c.A)/255, "Normal")
}

func (s *pdfSurface) setFont(spec textlayout.FontSpec, size float64) {
	style := ""
	if spec.Weight >= 600 {
		style += "B"
	}
	if spec.Italic {
		style += "I"
	}
	s.pdf.SetFont(pdfFont, style, size)
}

// scale is the uniform scale of the current transform.
func (s *pdfSurface) scale() float64 {
	m := s.st.m
	return math.Sqrt(math.Abs(m.A*m.D - m.B*m.C))
}

// rotate opens a rotated graphics state around p when the current
// transform rotates. The caller closes it with TransformEnd.
func (s *pdfSurface) rotate(p vector.Pt) bool {
	deg := math.Atan2(s.st.m.B, s.st.m.A) * 180 / math.Pi
	if math.Abs(deg) < 1e-6 {
		return false
	}
	s.pdf.TransformBegin()
	s.pdf.TransformRotate(-deg, p.X, p.Y)
	return true
}
