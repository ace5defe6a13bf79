/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package viewport

import (
	"testing"

	"sketchboard/internal/vector"
)

func TestWorldScreenRoundTrip(t *testing.T) {
	v := Viewport{X: 30, Y: -12, Zoom: 2.5}
	p := vector.Pt{X: 17, Y: 4}
	s := v.WorldToScreen(p)
	if s.X != 17*2.5+30 || s.Y != 4*2.5-12 {
		t.Fatalf("unexpected screen point %+v", s)
	}
	if back := v.ScreenToWorld(s); !back.Eq(p, 1e-9) {
		t.Fatalf("inverse mismatch: %+v", back)
	}
}

func TestPanOnlyMovesOffset(t *testing.T) {
	v := New()
	v.Pan(10, -5)
	if v.X != 10 || v.Y != -5 || v.Zoom != 1 {
		t.Fatalf("unexpected viewport after pan: %+v", v)
	}
}

func TestZoomAtKeepsCursorFixed(t *testing.T) {
	v := Viewport{X: 40, Y: 20, Zoom: 1}
	cursor := vector.Pt{X: 300, Y: 200}
	before := v.ScreenToWorld(cursor)
	v.ZoomAt(1.7, cursor)
	after := v.ScreenToWorld(cursor)
	if !before.Eq(after, 1e-9) {
		t.Fatalf("world point under cursor moved: %+v -> %+v", before, after)
	}
	if v.Zoom != 1.7 {
		t.Fatalf("zoom = %v, want 1.7", v.Zoom)
	}
}

func TestZoomClamped(t *testing.T) {
	v := New()
	v.ZoomAt(100, vector.Pt{})
	if v.Zoom != MaxZoom {
		t.Fatalf("zoom = %v, want %v", v.Zoom, MaxZoom)
	}
	v.ZoomAt(0.0001, vector.Pt{})
	if v.Zoom != MinZoom {
		t.Fatalf("zoom = %v, want %v", v.Zoom, MinZoom)
	}
}

func TestFitToNeverUpscales(t *testing.T) {
	v := New()
	if !v.FitTo(vector.R(0, 0, 100, 50), 800, 600, 20) {
		t.Fatalf("expected fit to succeed")
	}
	if v.Zoom != 1 {
		t.Fatalf("small content should stay at 100%%, got %v", v.Zoom)
	}
	c := v.WorldToScreen(vector.Pt{X: 50, Y: 25})
	if c.X != 400 || c.Y != 300 {
		t.Fatalf("content not centered: %+v", c)
	}
}

func TestFitToShrinksLargeContent(t *testing.T) {
	v := New()
	v.FitTo(vector.R(-1000, 0, 4000, 1000), 820, 620, 10)
	if v.Zoom != 0.2 {
		t.Fatalf("zoom = %v, want 0.2", v.Zoom)
	}
	if v.FitTo(vector.Rect{}, 800, 600, 0) {
		t.Fatalf("empty content should not fit")
	}
}
