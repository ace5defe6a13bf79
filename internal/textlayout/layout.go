/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// Abstractions for text measurement and line breaking.
// All measurement goes through a Provider so layout stays deterministic in
// tests (BasicProvider) and accurate at runtime (OTProvider).

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// LineHeightFactor converts a font size to the distance between baselines.
const LineHeightFactor = 1.2

// Font size bounds applied when text is scaled by a resize gesture.
const (
	MinFontSize = 8.0
	MaxFontSize = 200.0
)

// FontSpec describes a requested font.
type FontSpec struct {
	Family string // logical family name
	SizePt float64
	Weight int // 100..900
	Italic bool
}

// Metrics provides font metrics in pixels for the resolved face.
type Metrics struct {
	Ascent, Descent, LineGap float64
}

// Line is a single laid out line.
type Line struct {
	Text  string
	Width float64
}

// TextBox is the result of laying out text into a box width.
type TextBox struct {
	Lines      []Line
	Width      float64 // widest line
	Height     float64
	LineHeight float64
}

// Provider maps FontSpec to a concrete font.Face and measures strings.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
	// Advance returns the horizontal advance of s in pixels at spec.SizePt.
	Advance(s string, spec FontSpec) float64
}

// Layouter performs line-breaking and measurement.
type Layouter interface {
	Layout(text string, spec FontSpec, maxWidth float64) TextBox
}

// basicNominalSize is the pixel height basicfont.Face7x13 was designed for.
const basicNominalSize = 13.0

// BasicProvider uses x/image/basicfont Face7x13 for deterministic tests.
// Advances scale linearly with the requested size; the glyphs themselves do not.
type BasicProvider struct{}

func (BasicProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	m := f.Metrics()
	return f, Metrics{
		Ascent:  float64(m.Ascent.Round()),
		Descent: float64(m.Descent.Round()),
		LineGap: float64(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
	}
}

func (BasicProvider) Advance(s string, spec FontSpec) float64 {
	size := spec.SizePt
	if size <= 0 {
		size = basicNominalSize
	}
	return fixedToFloat(font.MeasureString(basicfont.Face7x13, s)) * size / basicNominalSize
}

// CharWrapLayouter breaks lines at character granularity: a line accumulates
// runes until the next one would overflow the width, then breaks. Explicit
// newlines always break. Every line holds at least one rune, so a box narrower
// than a single glyph still terminates.
type CharWrapLayouter struct{ Provider Provider }

func NewCharWrap(provider Provider) *CharWrapLayouter { return &CharWrapLayouter{Provider: provider} }

func (l *CharWrapLayouter) provider() Provider {
	if l == nil || l.Provider == nil {
		return BasicProvider{}
	}
	return l.Provider
}

// Layout wraps text into maxWidth. maxWidth <= 0 disables wrapping.
func (l *CharWrapLayouter) Layout(text string, spec FontSpec, maxWidth float64) TextBox {
	p := l.provider()
	box := TextBox{LineHeight: LineHeight(spec.SizePt)}
	emit := func(s string) {
		w := p.Advance(s, spec)
		box.Lines = append(box.Lines, Line{Text: s, Width: w})
		if w > box.Width {
			box.Width = w
		}
	}
	for _, para := range strings.Split(text, "\n") {
		if maxWidth <= 0 || para == "" {
			emit(para)
			continue
		}
		var cur strings.Builder
		for len(para) > 0 {
			r, size := utf8.DecodeRuneInString(para)
			next := cur.String() + string(r)
			if cur.Len() > 0 && p.Advance(next, spec) > maxWidth {
				emit(cur.String())
				cur.Reset()
			}
			cur.WriteRune(r)
			para = para[size:]
		}
		emit(cur.String())
	}
	box.Height = FitHeight(len(box.Lines), spec.SizePt)
	return box
}

// MeasureString returns the unwrapped width of s.
func (l *CharWrapLayouter) MeasureString(s string, spec FontSpec) float64 {
	return l.provider().Advance(s, spec)
}

// LineHeight is fontSize * LineHeightFactor.
func LineHeight(fontSize float64) float64 { return fontSize * LineHeightFactor }

// FitHeight returns max(lineHeight, lines*lineHeight).
func FitHeight(lines int, fontSize float64) float64 {
	lh := LineHeight(fontSize)
	if lines < 1 {
		return lh
	}
	return float64(lines) * lh
}

// ClampFontSize limits a scaled font size to [MinFontSize, MaxFontSize].
func ClampFontSize(v float64) float64 {
	if v < MinFontSize {
		return MinFontSize
	}
	if v > MaxFontSize {
		return MaxFontSize
	}
	return v
}

// Measure provides a quick way to measure a single unwrapped line.
func Measure(provider Provider, s string, spec FontSpec) (w, h float64) {
	if provider == nil {
		provider = BasicProvider{}
	}
	return provider.Advance(s, spec), LineHeight(spec.SizePt)
}
