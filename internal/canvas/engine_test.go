/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"sketchboard/internal/shape"
	"sketchboard/internal/transform"
	"sketchboard/internal/vector"
	"sketchboard/internal/viewport"
)

func pt(x, y float64) vector.Pt { return vector.Pt{X: x, Y: y} }

func mustSerialize(t *testing.T, e *Engine) []byte {
	t.Helper()
	b, err := e.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return b
}

func rectOf(t *testing.T, e *Engine, id string) *shape.Rectangle {
	t.Helper()
	s, ok := e.Get(id)
	if !ok {
		t.Fatalf("shape %s missing", id)
	}
	r, ok := s.(*shape.Rectangle)
	if !ok {
		t.Fatalf("shape %s is %T", id, s)
	}
	return r
}

func sampleEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(Options{})
	e.Add(shape.NewRectangle(0, 0, 100, 50))
	e.Add(shape.NewCircle(200, 200, 30))
	e.Add(shape.NewArrow(pt(0, 0), pt(40, 40)))
	txt := shape.NewText(10, 300, 120, 40, "hello")
	txt.Align = shape.AlignCenter
	txt.Shadow = &shape.TextShadow{Color: vector.Black, OffsetX: 2, OffsetY: 2}
	e.Add(txt)
	img := shape.NewImage(400, 0, 64, 32, "file:///tmp/a.png")
	img.Meta = &shape.GenerationMeta{ReferenceIDs: []string{"r1"}, CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), Prompt: "cat"}
	e.Add(img)
	e.SetViewport(viewport.Viewport{X: 12, Y: -4, Zoom: 1.5})
	return e
}

func TestSerializeRoundTrip(t *testing.T) {
	e := sampleEngine(t)
	data := mustSerialize(t, e)

	f := New(Options{})
	if err := f.Deserialize(data); err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got := mustSerialize(t, f); !bytes.Equal(got, data) {
		t.Fatalf("round trip differs:\n%s\n%s", data, got)
	}
	if f.Viewport() != e.Viewport() {
		t.Fatalf("viewport not restored: %+v", f.Viewport())
	}
	ids := f.IDs()
	img, _ := f.Get(ids[len(ids)-1])
	meta := img.(*shape.Image).Meta
	if meta == nil || !meta.CreatedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp not rehydrated: %+v", meta)
	}
}

func TestDeserializeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"shapes": [`,
		"missing shapes": `{"viewport":{"x":0,"y":0,"zoom":1}}`,
		"pair length":    `{"shapes":[["a"]]}`,
		"unknown type":   `{"shapes":[["a",{"type":"hexagon","id":"a"}]]}`,
		"duplicate id":   `{"shapes":[["a",{"type":"circle","id":"a","radius":1}],["a",{"type":"circle","id":"a","radius":2}]]}`,
		"bad zoom":       `{"shapes":[],"viewport":{"x":0,"y":0,"zoom":0}}`,
		"bad timestamp":  `{"shapes":[["a",{"type":"image","id":"a","generation":{"timestamp":"yesterday"}}]]}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			e := sampleEngine(t)
			before := mustSerialize(t, e)
			err := e.Deserialize([]byte(in))
			if !errors.Is(err, ErrMalformedPayload) {
				t.Fatalf("expected ErrMalformedPayload, got %v", err)
			}
			if after := mustSerialize(t, e); !bytes.Equal(before, after) {
				t.Fatalf("state changed on malformed input")
			}
		})
	}
}

func TestDeserializeMillisTimestampAndMissingViewport(t *testing.T) {
	e := New(Options{})
	e.Pan(5, 5)
	in := `{"shapes":[["img",{"type":"image","id":"img","x":1,"y":2,"width":3,"height":4,"src":"u","generation":{"timestamp":1714564800000}}]]}`
	if err := e.Deserialize([]byte(in)); err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	s, _ := e.Get("img")
	if got := s.(*shape.Image).Meta.CreatedAt; !got.Equal(time.UnixMilli(1714564800000)) {
		t.Fatalf("millis timestamp = %v", got)
	}
	if vp := e.Viewport(); vp.X != 5 || vp.Zoom != 1 {
		t.Fatalf("viewport should be kept when absent: %+v", vp)
	}
}

func TestPayloadSchemaAcceptsSerializedOutput(t *testing.T) {
	if err := ValidatePayload(mustSerialize(t, sampleEngine(t))); err != nil {
		t.Fatalf("own output fails schema: %v", err)
	}
}

func TestUndoRedoInverse(t *testing.T) {
	e := New(Options{})
	states := [][]byte{mustSerialize(t, e)}
	a := e.Add(shape.NewRectangle(0, 0, 10, 10))
	states = append(states, mustSerialize(t, e))
	e.Update(a, func(s shape.Shape) { shape.Translate(s, pt(5, 5)) }, true)
	states = append(states, mustSerialize(t, e))
	b := e.Add(shape.NewCircle(50, 50, 5))
	states = append(states, mustSerialize(t, e))
	e.BringToFront(a)
	states = append(states, mustSerialize(t, e))
	e.Remove(b)
	states = append(states, mustSerialize(t, e))

	for i := len(states) - 2; i >= 0; i-- {
		if !e.Undo() {
			t.Fatalf("undo %d failed", i)
		}
		if got := mustSerialize(t, e); !bytes.Equal(got, states[i]) {
			t.Fatalf("after undo expected state %d:\n%s\ngot\n%s", i, states[i], got)
		}
	}
	if e.Undo() {
		t.Fatalf("undo past the beginning succeeded")
	}
	for i := 1; i < len(states); i++ {
		if !e.Redo() {
			t.Fatalf("redo %d failed", i)
		}
		if got := mustSerialize(t, e); !bytes.Equal(got, states[i]) {
			t.Fatalf("after redo expected state %d", i)
		}
	}
	if e.Redo() {
		t.Fatalf("redo past the end succeeded")
	}
}

func TestLiveUpdatesCoalesceIntoOneStep(t *testing.T) {
	e := New(Options{})
	id := e.Add(shape.NewRectangle(0, 0, 10, 10))
	for i := 1; i <= 5; i++ {
		e.Update(id, func(s shape.Shape) { s.(*shape.Rectangle).X = float64(i) }, false)
	}
	if u, _ := e.HistoryDepth(); u != 1 {
		t.Fatalf("live updates recorded history: %d", u)
	}
	e.Update(id, func(s shape.Shape) { s.(*shape.Rectangle).X = 6 }, true)
	if u, _ := e.HistoryDepth(); u != 2 {
		t.Fatalf("expected one step for the gesture, got %d", u)
	}
	e.Undo()
	if r := rectOf(t, e, id); r.X != 0 {
		t.Fatalf("undo should restore the pre-gesture state, got x=%v", r.X)
	}
}

func TestHistoryDepthCap(t *testing.T) {
	e := New(Options{HistoryDepth: 3})
	for i := 0; i < 10; i++ {
		e.Add(shape.NewRectangle(float64(i), 0, 1, 1))
	}
	n := 0
	for e.Undo() {
		n++
	}
	if n != 3 || e.Len() != 7 {
		t.Fatalf("expected 3 undo steps leaving 7 shapes, got %d steps and %d shapes", n, e.Len())
	}
}

func TestUnknownIDsAreNoops(t *testing.T) {
	e := New(Options{})
	if e.Update("nope", func(shape.Shape) { t.Fatal("called") }, true) || e.Remove("nope") || e.BringToFront("nope") {
		t.Fatalf("unknown id reported success")
	}
	if _, ok := e.Get("nope"); ok {
		t.Fatalf("unknown id found")
	}
	if e.CanUndo() {
		t.Fatalf("no-ops recorded history")
	}
}

func TestSelectionAndHide(t *testing.T) {
	e := New(Options{})
	a := e.Add(shape.NewRectangle(0, 0, 10, 10))
	b := e.Add(shape.NewRectangle(20, 0, 10, 10))
	e.Select(a, false)
	e.Select(b, true)
	if got := e.SelectedIDs(); len(got) != 2 {
		t.Fatalf("multi select: %v", got)
	}
	e.Select(a, true)
	if got := e.SelectedIDs(); len(got) != 1 || got[0] != b {
		t.Fatalf("toggle off: %v", got)
	}
	e.Select(a, false)
	e.HideSelection()
	if len(e.SelectedIDs()) != 0 {
		t.Fatalf("selection visible while hidden")
	}
	e.RestoreSelection()
	if got := e.SelectedIDs(); len(got) != 1 || got[0] != a {
		t.Fatalf("restore: %v", got)
	}
	e.Remove(a)
	if len(e.SelectedIDs()) != 0 {
		t.Fatalf("removed shape still selected")
	}
}

func TestHiddenSelectionSurvivesUndo(t *testing.T) {
	e := New(Options{})
	a := e.Add(shape.NewRectangle(0, 0, 10, 10))
	b := e.Add(shape.NewRectangle(20, 0, 10, 10))
	e.Select(a, false)
	e.Select(b, true)
	e.HideSelection()
	e.Add(shape.NewRectangle(40, 0, 10, 10))
	if !e.Undo() {
		t.Fatalf("nothing to undo")
	}
	e.RestoreSelection()
	if got := e.SelectedIDs(); len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("selection after undo: %v", got)
	}

	// a parked shape undone out of existence is dropped
	e.ClearSelection()
	e.Select(b, false)
	e.HideSelection()
	e.Undo() // removes b
	e.RestoreSelection()
	if got := e.SelectedIDs(); len(got) != 0 {
		t.Fatalf("undone shape restored into selection: %v", got)
	}
}

type evictRecorder struct{ srcs []string }

func (r *evictRecorder) Evict(src string) { r.srcs = append(r.srcs, src) }

func TestRemoveEvictsImageOnce(t *testing.T) {
	ev := &evictRecorder{}
	e := New(Options{Images: ev})
	a := e.Add(shape.NewImage(0, 0, 10, 10, "u1"))
	b := e.Add(shape.NewImage(20, 0, 10, 10, "u1"))
	e.Remove(a)
	if len(ev.srcs) != 0 {
		t.Fatalf("evicted a source still in use")
	}
	e.Remove(b)
	if len(ev.srcs) != 1 || ev.srcs[0] != "u1" {
		t.Fatalf("evictions: %v", ev.srcs)
	}
}

func TestFitToScreenUsesWrappedTextWidth(t *testing.T) {
	e := New(Options{})
	txt := shape.NewText(0, 0, 400, 100, "abc")
	txt.FontSize = 13
	e.Add(txt)
	if !e.FitToScreen(200, 200, 0) {
		t.Fatalf("fit reported no content")
	}
	// "abc" is 21px wide, so the content is centered on x=10.5 at zoom 1
	if vp := e.Viewport(); vp.Zoom != 1 || vp.X != 89.5 {
		t.Fatalf("unexpected viewport %+v", vp)
	}
	empty := New(Options{})
	if empty.FitToScreen(200, 200, 10) || empty.Viewport() != viewport.New() {
		t.Fatalf("empty canvas changed the viewport")
	}
	empty.Add(shape.NewLine())
	if empty.FitToScreen(200, 200, 10) {
		t.Fatalf("a line without points counted as content")
	}
}

func TestInsertGeneratedNextToReference(t *testing.T) {
	e := New(Options{})
	ref := e.Add(shape.NewRectangle(0, 0, 200, 200))
	id, pl := e.InsertGenerated(Asset{Src: "gen.png", W: 100, H: 100, Prompt: "p"}, []string{ref, "missing"})
	if pl.Pos != pt(280, 0) {
		t.Fatalf("placement %+v", pl)
	}
	s, _ := e.Get(id)
	img := s.(*shape.Image)
	if img.X != 280 || img.Meta == nil || len(img.Meta.ReferenceIDs) != 1 || img.Meta.ReferenceIDs[0] != ref {
		t.Fatalf("unexpected image %+v meta %+v", img, img.Meta)
	}
	if got := e.SelectedIDs(); len(got) != 1 || got[0] != id {
		t.Fatalf("inserted image not selected: %v", got)
	}
	ids := e.InsertBatch([]Asset{{Src: "a", W: 50, H: 50}, {Src: "b", W: 50, H: 50}}, nil)
	if len(ids) != 2 || len(e.SelectedIDs()) != 2 {
		t.Fatalf("batch insert: %v", ids)
	}
	e.Undo()
	if e.Len() != 2 {
		t.Fatalf("batch should undo as one step, have %d shapes", e.Len())
	}
}

func TestZOrderAndDuplicate(t *testing.T) {
	e := New(Options{})
	a := e.Add(shape.NewRectangle(0, 0, 10, 10))
	b := e.Add(shape.NewRectangle(0, 0, 10, 10))
	if id, _ := e.HitTest(pt(5, 5)); id != b {
		t.Fatalf("topmost should be b")
	}
	e.BringToFront(a)
	if id, _ := e.HitTest(pt(5, 5)); id != a {
		t.Fatalf("topmost should be a after BringToFront")
	}
	e.SendToBack(a)
	if e.IDs()[0] != a {
		t.Fatalf("SendToBack: %v", e.IDs())
	}
	e.Select(a, false)
	dups := e.DuplicateSelection(pt(15, 0))
	if len(dups) != 1 || dups[0] == a {
		t.Fatalf("duplicate ids: %v", dups)
	}
	if r := rectOf(t, e, dups[0]); r.X != 15 {
		t.Fatalf("duplicate not offset: %+v", r)
	}
}

func TestHitTestVariants(t *testing.T) {
	e := New(Options{})
	line := e.Add(shape.NewLine(pt(0, 0), pt(100, 0)))
	circle := e.Add(shape.NewCircle(300, 300, 20))
	hidden := shape.NewRectangle(500, 500, 10, 10)
	hidden.Visible = false
	e.Add(hidden)

	if id, ok := e.HitTest(pt(50, 4)); !ok || id != line {
		t.Fatalf("expected line hit within tolerance")
	}
	if _, ok := e.HitTest(pt(50, 6)); ok {
		t.Fatalf("hit outside tolerance")
	}
	if id, ok := e.HitTest(pt(314, 314)); !ok || id != circle {
		t.Fatalf("expected circle hit")
	}
	if _, ok := e.HitTest(pt(318, 318)); ok {
		t.Fatalf("hit inside bbox corner but outside circle")
	}
	if _, ok := e.HitTest(pt(505, 505)); ok {
		t.Fatalf("hidden shape hit")
	}
	// at zoom 2 screen (100,8) is world (50,4)
	e.SetViewport(viewport.Viewport{Zoom: 2})
	if id, ok := e.HitTest(pt(100, 8)); !ok || id != line {
		t.Fatalf("zoomed hit failed")
	}
}

func TestResizeHandleScalesWithZoom(t *testing.T) {
	e := New(Options{})
	id := e.Add(shape.NewRectangle(0, 0, 100, 100))
	if h := e.ResizeHandleAt(pt(104, 104), id); h != transform.BottomRight {
		t.Fatalf("expected bottomRight, got %q", h)
	}
	if h := e.ResizeHandleAt(pt(50, 0), id); h != transform.Top {
		t.Fatalf("expected top, got %q", h)
	}
	e.SetViewport(viewport.Viewport{Zoom: 2})
	// the grip is still 10 screen px: (204,204) hits, (206,206) misses
	if h := e.ResizeHandleAt(pt(204, 204), id); h != transform.BottomRight {
		t.Fatalf("zoomed grip miss: %q", h)
	}
	if h := e.ResizeHandleAt(pt(206, 206), id); h != transform.None {
		t.Fatalf("zoomed grip too large: %q", h)
	}
	// right edge midpoint of the image is world (350,25)
	img := e.Add(shape.NewImage(300, 0, 50, 50, "u"))
	if h := e.ResizeHandleAt(pt(700, 50), img); h != transform.None {
		t.Fatalf("image offers side grips: %q", h)
	}
}
