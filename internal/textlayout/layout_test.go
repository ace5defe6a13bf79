/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"strings"
	"testing"
)

// BasicProvider advances are 7px per rune at 13px, so at size 13 a 70px box fits 10 runes.
var spec13 = FontSpec{SizePt: 13}

func TestCharWrap_BreaksInsideWords(t *testing.T) {
	l := NewCharWrap(BasicProvider{})
	box := l.Layout("abcdefghijklmnopqrstuvwxy", spec13, 70)
	if len(box.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %+v", len(box.Lines), box.Lines)
	}
	if box.Lines[0].Text != "abcdefghij" || box.Lines[2].Text != "uvwxy" {
		t.Fatalf("unexpected wrap: %+v", box.Lines)
	}
	if box.Width != 70 {
		t.Fatalf("widest line = %v, want 70", box.Width)
	}
	if want := 3 * 13 * LineHeightFactor; box.Height != want {
		t.Fatalf("height = %v, want %v", box.Height, want)
	}
}

func TestCharWrap_HardBreaksAndEmpty(t *testing.T) {
	l := NewCharWrap(BasicProvider{})
	box := l.Layout("ab\n\ncd", spec13, 1000)
	if len(box.Lines) != 3 || box.Lines[1].Text != "" {
		t.Fatalf("expected 3 lines with an empty middle line, got %+v", box.Lines)
	}
	empty := l.Layout("", spec13, 100)
	if len(empty.Lines) != 1 || empty.Height != LineHeight(13) {
		t.Fatalf("empty text should occupy one line: %+v", empty)
	}
}

func TestCharWrap_NarrowBoxTerminates(t *testing.T) {
	l := NewCharWrap(BasicProvider{})
	box := l.Layout("abc", spec13, 1)
	if len(box.Lines) != 3 {
		t.Fatalf("expected one rune per line, got %+v", box.Lines)
	}
}

func TestAdvanceScalesWithSize(t *testing.T) {
	w13, _ := Measure(BasicProvider{}, "ABC", spec13)
	w26, h26 := Measure(BasicProvider{}, "ABC", FontSpec{SizePt: 26})
	if w13 != 21 || w26 != 42 {
		t.Fatalf("unexpected advances: %v %v", w13, w26)
	}
	if h26 != 26*LineHeightFactor {
		t.Fatalf("unexpected line height %v", h26)
	}
}

func TestOTProviderMeasuresDefaultFont(t *testing.T) {
	p := NewOTProvider(nil)
	small := p.Advance(strings.Repeat("m", 10), FontSpec{Family: "unknown", SizePt: 10})
	large := p.Advance(strings.Repeat("m", 10), FontSpec{Family: "unknown", SizePt: 20})
	if small <= 0 || large <= small*1.8 {
		t.Fatalf("expected advance to grow with size: small=%v large=%v", small, large)
	}
	_, m := p.Resolve(FontSpec{SizePt: 16})
	if m.Ascent <= 0 {
		t.Fatalf("expected positive ascent, got %+v", m)
	}
}

func TestClampFontSize(t *testing.T) {
	if ClampFontSize(2) != MinFontSize || ClampFontSize(500) != MaxFontSize || ClampFontSize(40) != 40 {
		t.Fatalf("font clamp out of range")
	}
}
