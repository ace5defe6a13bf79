/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

import (
	"math"
	"testing"

	"sketchboard/internal/shape"
	"sketchboard/internal/textlayout"
	"sketchboard/internal/vector"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestResizeRect_BottomRight(t *testing.T) {
	r := shape.NewRectangle(0, 0, 100, 100)
	got := Resize(r, BottomRight, vector.Pt{X: 150, Y: 80}, Options{}).(*shape.Rectangle)
	if got.X != 0 || got.Y != 0 || got.W != 150 || got.H != 80 {
		t.Fatalf("unexpected rect %+v", got)
	}
	if r.W != 100 {
		t.Fatalf("initial shape mutated")
	}
}

func TestResizeRect_ClampKeepsOppositeEdge(t *testing.T) {
	b := vector.R(10, 10, 100, 50)
	got := ResizeRect(b, TopLeft, vector.Pt{X: 500, Y: 500}, 10)
	if got.Right() != 110 || got.Bottom() != 60 {
		t.Fatalf("opposite edges moved: %+v", got)
	}
	if got.W != 10 || got.H != 10 {
		t.Fatalf("expected min size clamp, got %+v", got)
	}
	side := ResizeRect(b, Right, vector.Pt{X: 200, Y: 999}, 10)
	if side.Y != 10 || side.H != 50 || side.W != 190 {
		t.Fatalf("side grip changed the wrong axis: %+v", side)
	}
}

func TestResizeImage_KeepsAspect(t *testing.T) {
	img := shape.NewImage(0, 0, 100, 200, "a.png")
	got := Resize(img, TopLeft, vector.Pt{X: -100, Y: 100}, Options{}).(*shape.Image)
	if !near(got.W, 200) || !near(got.W/got.H, 0.5) {
		t.Fatalf("aspect lost: %+v", got)
	}
	// opposite corner stays fixed
	if !near(got.X+got.W, 100) || !near(got.Y+got.H, 200) {
		t.Fatalf("anchor moved: %+v", got)
	}
}

func TestResizeImage_AspectInvariantUnderManyDrags(t *testing.T) {
	img := shape.NewImage(20, 30, 160, 90, "a.png")
	ratio := img.W / img.H
	for _, h := range CornerHandles() {
		for _, p := range []vector.Pt{{X: -300, Y: 7}, {X: 25, Y: 31}, {X: 900, Y: 900}, {X: 100, Y: -40}} {
			got := Resize(img, h, p, Options{MinSize: 10}).(*shape.Image)
			if math.Abs(got.W/got.H-ratio) > 1e-9 {
				t.Fatalf("%s to %+v: ratio %v want %v", h, p, got.W/got.H, ratio)
			}
			if got.W < 10-eps || got.H < 10-eps {
				t.Fatalf("%s to %+v: below min size %+v", h, p, got)
			}
		}
	}
	// side grips are not offered and leave the image alone
	same := Resize(img, Right, vector.Pt{X: 999, Y: 0}, Options{}).(*shape.Image)
	if same.W != img.W || same.H != img.H {
		t.Fatalf("side grip resized image: %+v", same)
	}
}

func TestResizeCircle(t *testing.T) {
	c := shape.NewCircle(50, 50, 10)
	got := Resize(c, Right, vector.Pt{X: 80, Y: 90}, Options{}).(*shape.Circle)
	if got.X != 50 || got.Y != 50 || got.Radius != 50 {
		t.Fatalf("unexpected circle %+v", got)
	}
	small := Resize(c, Right, vector.Pt{X: 50, Y: 51}, Options{MinSize: 20}).(*shape.Circle)
	if small.Radius != 10 {
		t.Fatalf("expected radius clamp to 10, got %v", small.Radius)
	}
}

func TestResizeText_CornerScalesFont(t *testing.T) {
	txt := shape.NewText(0, 0, 200, 40, "hello")
	txt.FontSize = 20
	got := Resize(txt, BottomRight, vector.Pt{X: 200, Y: 80}, Options{}).(*shape.Text)
	if got.FontSize != 40 || got.H != 80 {
		t.Fatalf("expected doubled font, got size=%v h=%v", got.FontSize, got.H)
	}
	huge := Resize(txt, BottomRight, vector.Pt{X: 200, Y: 4000}, Options{}).(*shape.Text)
	if huge.FontSize != textlayout.MaxFontSize {
		t.Fatalf("font not clamped: %v", huge.FontSize)
	}
}

func TestResizeText_SideGrips(t *testing.T) {
	txt := shape.NewText(0, 0, 140, 30, "abcdefghijklmnopqrst")
	txt.FontSize = 13
	// 20 runes at 7px = 140px on one line; shrinking to 70 wraps to two lines
	narrow := Resize(txt, Right, vector.Pt{X: 70, Y: 0}, Options{}).(*shape.Text)
	if narrow.W != 70 || !near(narrow.H, 2*13*textlayout.LineHeightFactor) {
		t.Fatalf("unexpected auto height: %+v", narrow)
	}
	if narrow.FontSize != 13 {
		t.Fatalf("side grip changed the font")
	}
	wide := Resize(txt, Right, vector.Pt{X: 300, Y: 0}, Options{}).(*shape.Text)
	if wide.W != 300 || wide.H != 30 {
		t.Fatalf("growing should keep height: %+v", wide)
	}
}

func TestGroupMove_PreservesOffsets(t *testing.T) {
	a := shape.NewRectangle(0, 0, 10, 10)
	b := shape.NewCircle(50, 60, 5)
	l := shape.NewLine(vector.Pt{X: 1, Y: 1}, vector.Pt{X: 9, Y: 4})
	g := NewGroup([]shape.Shape{a, b, l})
	for _, d := range []vector.Pt{{X: 5, Y: 5}, {X: 12, Y: -3}, {X: 40, Y: 2}} {
		out := g.Move(d)
		for i, m := range []shape.Shape{a, b, l} {
			if got, want := shape.Position(out[i]), shape.Position(m).Add(d); !got.Eq(want, eps) {
				t.Fatalf("member %d at %+v, want %+v", i, got, want)
			}
		}
		pts, _ := shape.Points(out[2])
		if !pts[1].Eq(vector.Pt{X: 9 + d.X, Y: 4 + d.Y}, eps) {
			t.Fatalf("line lost its form: %+v", pts)
		}
	}
}

func TestGroupResize_UniformFromAnchor(t *testing.T) {
	a := shape.NewRectangle(0, 0, 100, 100)
	txt := shape.NewText(100, 100, 100, 100, "x")
	txt.FontSize = 20
	g := NewGroup([]shape.Shape{a, txt})
	// bounds 0,0,200,200; drag bottomRight to (400, 300): scale = min(2, 1.5)
	out := g.Resize(BottomRight, vector.Pt{X: 400, Y: 300}, 10)
	r := out[0].(*shape.Rectangle)
	tt := out[1].(*shape.Text)
	if r.X != 0 || r.Y != 0 || r.W != 150 || r.H != 150 {
		t.Fatalf("rect %+v", r)
	}
	if tt.X != 150 || tt.Y != 150 || tt.FontSize != 30 {
		t.Fatalf("text %+v", tt)
	}
	// dragging topLeft keeps bottomRight fixed
	out = g.Resize(TopLeft, vector.Pt{X: 100, Y: 100}, 10)
	b, _ := shape.UnionBounds(out)
	if !near(b.Right(), 200) || !near(b.Bottom(), 200) || !near(b.W, 100) {
		t.Fatalf("unexpected bounds after topLeft drag %+v", b)
	}
}

func TestGroupResize_MembersKeepMinSize(t *testing.T) {
	a := shape.NewRectangle(0, 0, 20, 20)
	b := shape.NewRectangle(980, 980, 20, 20)
	c := shape.NewCircle(500, 500, 15)
	g := NewGroup([]shape.Shape{a, b, c})
	out := g.Resize(BottomRight, vector.Pt{X: -500, Y: -500}, 10)
	for i, m := range out[:2] {
		r := m.(*shape.Rectangle)
		if r.W < 10-1e-9 || r.H < 10-1e-9 {
			t.Fatalf("member %d shrank to %vx%v", i, r.W, r.H)
		}
	}
	if r := out[2].(*shape.Circle).Radius; r < 5-1e-9 {
		t.Fatalf("circle radius %v below 5", r)
	}
	// the 20px members cap the factor at 0.5
	if r := out[0].(*shape.Rectangle); !near(r.W, 10) {
		t.Fatalf("rect width %v, want 10", r.W)
	}
	// members already below the minimum do not pin the factor
	tiny := NewGroup([]shape.Shape{shape.NewRectangle(0, 0, 4, 4), shape.NewRectangle(96, 96, 4, 4)})
	if s := tiny.Scale(BottomRight, vector.Pt{X: 50, Y: 50}, 10); !near(s, 0.5) {
		t.Fatalf("scale %v, want 0.5", s)
	}
}

func TestHandlesFor(t *testing.T) {
	if len(HandlesFor(shape.KindRectangle)) != 8 || len(HandlesFor(shape.KindImage)) != 4 ||
		len(HandlesFor(shape.KindText)) != 6 || HandlesFor(shape.KindArrow) != nil {
		t.Fatalf("unexpected handle sets")
	}
	if p := BottomLeft.Point(vector.R(10, 20, 30, 40)); p.X != 10 || p.Y != 60 {
		t.Fatalf("bottomLeft point %+v", p)
	}
}
