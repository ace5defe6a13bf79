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
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"image"
	"image/png"
	"io"
	"strconv"
	"strings"

	"sketchboard/internal/render"
	"sketchboard/internal/textlayout"
	"sketchboard/internal/vector"
	"sketchboard/internal/viewport"
)

// SVGOptions controls SVG export. The document uses world units as user
// units; width and height carry the same numbers in pixels.
type SVGOptions struct {
	Padding    float64
	Background *vector.Color
	Images     *render.ImageCache
	// Fonts measures text for wrapping; nil uses the basic provider.
	Fonts textlayout.Provider
}

const svgFontFamily = "Helvetica, Arial, sans-serif"

// SVG renders the visible content of scene as a standalone SVG document.
func SVG(scene render.Scene, w io.Writer, opt SVGOptions) error {
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
	fonts := opt.Fonts
	if fonts == nil {
		fonts = textlayout.BasicProvider{}
	}
	surf := &svgSurface{w: f.world.W, h: f.world.H, fonts: fonts, st: svgState{m: vector.Identity}}
	surf.wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	surf.wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%spx\" height=\"%spx\" viewBox=\"0 0 %s %s\">\n",
		num(f.world.W), num(f.world.H), num(f.world.W), num(f.world.H))
	bg := vector.White
	if opt.Background != nil {
		bg = *opt.Background
	}
	rn := render.NewRenderer(opt.Images, textlayout.NewCharWrap(fonts))
	vp := viewport.Viewport{X: -f.world.X, Y: -f.world.Y, Zoom: 1}
	rn.Render(surf, framedScene{Scene: scene, vp: vp}, render.Options{SuppressSelection: true, Background: bg})
	surf.Restore() // closes clip groups opened outside any Save
	surf.wf("</svg>\n")
	if surf.err != nil {
		return fmt.Errorf("build svg: %w", surf.err)
	}
	if _, err := w.Write(surf.buf.Bytes()); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

// SVGFile is SVG written to outPath.
func SVGFile(scene render.Scene, outPath string, opt SVGOptions) error {
	if err := ensureDir(outPath); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := SVG(scene, &buf, opt); err != nil {
		return err
	}
	return writeFile(outPath, buf.Bytes())
}

type svgState struct {
	m      vector.Affine2D
	groups int
}

// svgSurface emits one element per drawing call. Every element carries the
// current transform as a matrix attribute; clips open nested groups that
// Restore closes.
type svgSurface struct {
	buf   bytes.Buffer
	err   error
	w, h  float64
	fonts textlayout.Provider
	st    svgState
	stack []svgState
	clips int
}

func (s *svgSurface) wf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(&s.buf, format, args...)
}

func (s *svgSurface) Size() (w, h float64)           { return s.w, s.h }
func (s *svgSurface) DevicePixelRatio() float64      { return 1 }
func (s *svgSurface) SetTransform(m vector.Affine2D) { s.st.m = m }
func (s *svgSurface) Transform() vector.Affine2D     { return s.st.m }

func (s *svgSurface) Clear(c vector.Color) {
	if c.IsTransparent() {
		return
	}
	s.wf("  <rect x=\"0\" y=\"0\" width=\"%s\" height=\"%s\" %s/>\n", num(s.w), num(s.h), paintAttr("fill", c))
}

func (s *svgSurface) Save() {
	s.stack = append(s.stack, s.st)
	s.st.groups = 0
}

func (s *svgSurface) Restore() {
	for ; s.st.groups > 0; s.st.groups-- {
		s.wf("  </g>\n")
	}
	if n := len(s.stack); n > 0 {
		s.st = s.stack[n-1]
		s.stack = s.stack[:n-1]
	}
}

func (s *svgSurface) ClipRect(r vector.Rect) {
	s.clips++
	id := "clip" + strconv.Itoa(s.clips)
	s.wf("  <clipPath id=\"%s\"><rect x=\"%s\" y=\"%s\" width=\"%s\" height=\"%s\"%s/></clipPath>\n",
		id, num(r.X), num(r.Y), num(r.W), num(r.H), s.matrix())
	s.wf("  <g clip-path=\"url(#%s)\">\n", id)
	s.st.groups++
}

func (s *svgSurface) FillPath(p *render.Path, c vector.Color) {
	if c.IsTransparent() || p.Empty() {
		return
	}
	s.wf("  <path d=\"%s\" %s stroke=\"none\"%s/>\n", pathData(p, true), paintAttr("fill", c), s.matrix())
}

func (s *svgSurface) StrokePath(p *render.Path, st render.Stroke) {
	if st.Color.IsTransparent() || st.Width <= 0 || p.Empty() {
		return
	}
	dash := ""
	if len(st.Dash) > 0 {
		parts := make([]string, len(st.Dash))
		for i, d := range st.Dash {
			parts[i] = num(d)
		}
		dash = fmt.Sprintf(" stroke-dasharray=\"%s\"", strings.Join(parts, " "))
	}
	s.wf("  <path d=\"%s\" fill=\"none\" %s stroke-width=\"%s\" stroke-linecap=\"round\" stroke-linejoin=\"round\"%s%s/>\n",
		pathData(p, false), paintAttr("stroke", st.Color), num(st.Width), dash, s.matrix())
}

func (s *svgSurface) FillText(str string, x, y float64, spec textlayout.FontSpec, c vector.Color) {
	if str == "" || c.IsTransparent() {
		return
	}
	s.wf("  <text x=\"%s\" y=\"%s\" %s %s xml:space=\"preserve\"%s>%s</text>\n",
		num(x), num(y), fontAttrs(spec), paintAttr("fill", c), s.matrix(), esc(str))
}

// StrokeText uses a centered stroke twice as wide so the outline extends
// width beyond the glyph edge.
func (s *svgSurface) StrokeText(str string, x, y float64, spec textlayout.FontSpec, c vector.Color, width float64) {
	if str == "" || width <= 0 || c.IsTransparent() {
		return
	}
	s.wf("  <text x=\"%s\" y=\"%s\" %s fill=\"none\" %s stroke-width=\"%s\" stroke-linejoin=\"round\" xml:space=\"preserve\"%s>%s</text>\n",
		num(x), num(y), fontAttrs(spec), paintAttr("stroke", c), num(2*width), s.matrix(), esc(str))
}

func (s *svgSurface) MeasureText(str string, spec textlayout.FontSpec) float64 {
	return s.fonts.Advance(str, spec)
}

// DrawImage embeds img as a PNG data URI stretched over dst.
func (s *svgSurface) DrawImage(img image.Image, dst vector.Rect) {
	if img == nil || img.Bounds().Empty() {
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		if s.err == nil {
			s.err = fmt.Errorf("encode image: %w", err)
		}
		return
	}
	s.wf("  <image x=\"%s\" y=\"%s\" width=\"%s\" height=\"%s\" preserveAspectRatio=\"none\" href=\"data:image/png;base64,%s\"%s/>\n",
		num(dst.X), num(dst.Y), num(dst.W), num(dst.H), base64.StdEncoding.EncodeToString(buf.Bytes()), s.matrix())
}

// matrix renders the current transform as an attribute, or nothing for
// the identity.
func (s *svgSurface) matrix() string {
	m := s.st.m
	if m == vector.Identity {
		return ""
	}
	return fmt.Sprintf(" transform=\"matrix(%s %s %s %s %s %s)\"", num(m.A), num(m.B), num(m.C), num(m.D), num(m.E), num(m.F))
}

func pathData(p *render.Path, fill bool) string {
	var b strings.Builder
	p.Each(func(pts []vector.Pt, closed bool) {
		for i, pt := range pts {
			if i == 0 {
				b.WriteString("M")
			} else {
				b.WriteString(" L")
			}
			b.WriteString(num(pt.X))
			b.WriteByte(' ')
			b.WriteString(num(pt.Y))
		}
		if closed || fill {
			b.WriteString(" Z")
		}
		b.WriteByte(' ')
	})
	return strings.TrimSpace(b.String())
}

func paintAttr(attr string, c vector.Color) string {
	if c.A == 255 {
		return fmt.Sprintf("%s=\"%s\"", attr, hexRGB(c))
	}
	return fmt.Sprintf("%s=\"%s\" %s-opacity=\"%s\"", attr, hexRGB(c), attr, num(float64(c.A)/255))
}

func fontAttrs(spec textlayout.FontSpec) string {
	family := svgFontFamily
	if spec.Family != "" {
		family = spec.Family + ", " + svgFontFamily
	}
	out := fmt.Sprintf("font-family=\"%s\" font-size=\"%s\"", esc(family), num(spec.SizePt))
	if spec.Weight >= 600 {
		out += " font-weight=\"bold\""
	}
	if spec.Italic {
		out += " font-style=\"italic\""
	}
	return out
}

// num prints v with at most three decimals and no trailing zeros.
func num(v float64) string {
	r := vector.FloatRound(v, 3)
	if r == 0 {
		return "0"
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func esc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
