/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package shape defines the canvas data model: a closed set of shape variants
// sharing an identity, a style and lock/visibility flags.
//
// Shape is a sealed interface; the only implementations are the pointer types
// declared in this package. Consumers switch exhaustively over them and treat
// any other value as a programming error.
package shape

import (
	"time"

	"github.com/google/uuid"

	"sketchboard/internal/vector"
)

// Kind is the persisted type discriminator of a shape.
type Kind string

const (
	KindRectangle Kind = "rectangle"
	KindCircle    Kind = "circle"
	KindLine      Kind = "line"
	KindArrow     Kind = "arrow"
	KindFreehand  Kind = "freehand"
	KindText      Kind = "text"
	KindImage     Kind = "image"
)

// Style holds paint attributes shared by all variants.
type Style struct {
	Fill        vector.Color `json:"fill"`
	Stroke      vector.Color `json:"stroke"`
	StrokeWidth float64      `json:"strokeWidth"`
	Opacity     float64      `json:"opacity"`
	Dash        []float64    `json:"dash,omitempty"`
}

// DefaultStyle is a 2px black outline with no fill.
func DefaultStyle() Style {
	return Style{Fill: vector.Transparent, Stroke: vector.Black, StrokeWidth: 2, Opacity: 1}
}

func (s Style) clone() Style {
	if s.Dash != nil {
		s.Dash = append([]float64(nil), s.Dash...)
	}
	return s
}

// Base carries the fields every variant has.
type Base struct {
	ID       string  `json:"id"`
	Rotation float64 `json:"rotation,omitempty"`
	Style    Style   `json:"style"`
	Locked   bool    `json:"locked,omitempty"`
	Visible  bool    `json:"visible"`
}

func newBase() Base {
	return Base{ID: NewID(), Style: DefaultStyle(), Visible: true}
}

// NewID returns a fresh unique shape id.
func NewID() string { return uuid.NewString() }

// Shape is implemented by *Rectangle, *Circle, *Line, *Arrow, *Freehand, *Text and *Image.
type Shape interface {
	Kind() Kind
	// Common exposes the shared fields for in-place mutation.
	Common() *Base
	// Clone returns a deep copy that shares no memory with the receiver.
	Clone() Shape
	sealed()
}

type Rectangle struct {
	Base
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	W            float64 `json:"width"`
	H            float64 `json:"height"`
	CornerRadius float64 `json:"cornerRadius,omitempty"`
}

// Circle is positioned by its center.
type Circle struct {
	Base
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

type Line struct {
	Base
	Points []vector.Pt `json:"points"`
}

// Arrow is a line whose endpoints may be attached to other shapes. SourceID and
// TargetID are weak references resolved through the store; they may name shapes
// that no longer exist. Index offsets parallel connectors between the same pair.
type Arrow struct {
	Base
	Points   []vector.Pt `json:"points"`
	SourceID string      `json:"sourceId,omitempty"`
	TargetID string      `json:"targetId,omitempty"`
	Index    int         `json:"index,omitempty"`
}

type Freehand struct {
	Base
	Points []vector.Pt `json:"points"`
}

// Align is the horizontal alignment of text lines within their box.
type Align string

const (
	AlignLeft    Align = "left"
	AlignCenter  Align = "center"
	AlignRight   Align = "right"
	AlignJustify Align = "justify"
)

// TextShadow is drawn beneath the fill pass, offset and optionally blurred.
type TextShadow struct {
	Color   vector.Color `json:"color"`
	OffsetX float64      `json:"offsetX"`
	OffsetY float64      `json:"offsetY"`
	Blur    float64      `json:"blur,omitempty"`
}

// TextBorder is a stroked outline around each glyph run.
type TextBorder struct {
	Color vector.Color `json:"color"`
	Width float64      `json:"width"`
}

type Text struct {
	Base
	X          float64      `json:"x"`
	Y          float64      `json:"y"`
	W          float64      `json:"width"`
	H          float64      `json:"height"`
	Text       string       `json:"text"`
	FontSize   float64      `json:"fontSize"`
	FontFamily string       `json:"fontFamily,omitempty"`
	Align      Align        `json:"align,omitempty"`
	Color      vector.Color `json:"color"`
	Shadow     *TextShadow  `json:"shadow,omitempty"`
	Border     *TextBorder  `json:"border,omitempty"`
}

// GenerationMeta describes how a generated image was produced.
type GenerationMeta struct {
	ReferenceIDs []string  `json:"referenceIds,omitempty"`
	CreatedAt    time.Time `json:"timestamp"`
	Prompt       string    `json:"prompt,omitempty"`
}

type Image struct {
	Base
	X    float64         `json:"x"`
	Y    float64         `json:"y"`
	W    float64         `json:"width"`
	H    float64         `json:"height"`
	Src  string          `json:"src"`
	Meta *GenerationMeta `json:"generation,omitempty"`
}

func (*Rectangle) Kind() Kind { return KindRectangle }
func (*Circle) Kind() Kind    { return KindCircle }
func (*Line) Kind() Kind      { return KindLine }
func (*Arrow) Kind() Kind     { return KindArrow }
func (*Freehand) Kind() Kind  { return KindFreehand }
func (*Text) Kind() Kind      { return KindText }
func (*Image) Kind() Kind     { return KindImage }

func (s *Rectangle) Common() *Base { return &s.Base }
func (s *Circle) Common() *Base    { return &s.Base }
func (s *Line) Common() *Base      { return &s.Base }
func (s *Arrow) Common() *Base     { return &s.Base }
func (s *Freehand) Common() *Base  { return &s.Base }
func (s *Text) Common() *Base      { return &s.Base }
func (s *Image) Common() *Base     { return &s.Base }

func (*Rectangle) sealed() {}
func (*Circle) sealed()    {}
func (*Line) sealed()      {}
func (*Arrow) sealed()     {}
func (*Freehand) sealed()  {}
func (*Text) sealed()      {}
func (*Image) sealed()     {}

func (s *Rectangle) Clone() Shape {
	c := *s
	c.Style = s.Style.clone()
	return &c
}

func (s *Circle) Clone() Shape {
	c := *s
	c.Style = s.Style.clone()
	return &c
}

func (s *Line) Clone() Shape {
	c := *s
	c.Style = s.Style.clone()
	c.Points = clonePoints(s.Points)
	return &c
}

func (s *Arrow) Clone() Shape {
	c := *s
	c.Style = s.Style.clone()
	c.Points = clonePoints(s.Points)
	return &c
}

func (s *Freehand) Clone() Shape {
	c := *s
	c.Style = s.Style.clone()
	c.Points = clonePoints(s.Points)
	return &c
}

func (s *Text) Clone() Shape {
	c := *s
	c.Style = s.Style.clone()
	if s.Shadow != nil {
		sh := *s.Shadow
		c.Shadow = &sh
	}
	if s.Border != nil {
		b := *s.Border
		c.Border = &b
	}
	return &c
}

func (s *Image) Clone() Shape {
	c := *s
	c.Style = s.Style.clone()
	if s.Meta != nil {
		m := *s.Meta
		m.ReferenceIDs = append([]string(nil), s.Meta.ReferenceIDs...)
		c.Meta = &m
	}
	return &c
}

func clonePoints(p []vector.Pt) []vector.Pt {
	if p == nil {
		return nil
	}
	return append([]vector.Pt(nil), p...)
}

// NewRectangle returns a rectangle with a fresh id and default style.
func NewRectangle(x, y, w, h float64) *Rectangle {
	return &Rectangle{Base: newBase(), X: x, Y: y, W: w, H: h}
}

func NewCircle(cx, cy, r float64) *Circle {
	return &Circle{Base: newBase(), X: cx, Y: cy, Radius: r}
}

func NewLine(pts ...vector.Pt) *Line {
	return &Line{Base: newBase(), Points: clonePoints(pts)}
}

func NewArrow(pts ...vector.Pt) *Arrow {
	return &Arrow{Base: newBase(), Points: clonePoints(pts)}
}

func NewFreehand(pts ...vector.Pt) *Freehand {
	return &Freehand{Base: newBase(), Points: clonePoints(pts)}
}

// NewText returns a left-aligned 16px text box.
func NewText(x, y, w, h float64, text string) *Text {
	b := newBase()
	b.Style.StrokeWidth = 0
	return &Text{Base: b, X: x, Y: y, W: w, H: h, Text: text, FontSize: 16, Align: AlignLeft, Color: vector.Black}
}

func NewImage(x, y, w, h float64, src string) *Image {
	b := newBase()
	b.Style.StrokeWidth = 0
	return &Image{Base: b, X: x, Y: y, W: w, H: h, Src: src}
}
