/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package canvas holds the editable scene: the ordered shape store, the
// selection, the viewport and the undo history, plus hit-testing, pointer
// gestures and payload (de)serialization on top of them.
//
// An Engine is not safe for concurrent mutation. Hosts drive it from one
// goroutine; callbacks from background image loads must be marshalled back
// onto that goroutine before touching the engine.
package canvas

import (
	"log/slog"
	"time"

	"sketchboard/internal/log"
	"sketchboard/internal/placement"
	"sketchboard/internal/shape"
	"sketchboard/internal/textlayout"
	"sketchboard/internal/undo"
	"sketchboard/internal/vector"
	"sketchboard/internal/viewport"
)

// ImageEvictor drops cached bitmaps for an image source.
type ImageEvictor interface {
	Evict(src string)
}

// Options configure an Engine. Zero fields fall back to the defaults below.
type Options struct {
	MinSize      float64 // screen px, default 10
	HandlePx     float64 // screen px, default 10
	HitTolerance float64 // world units, default 5
	HistoryDepth int     // default 50
	// SnapPx snaps moved shapes to the edges and centers of other visible
	// shapes within this many screen px. Zero disables snapping.
	SnapPx       float64
	Placement    placement.Config
	Layouter     textlayout.Layouter
	Images       ImageEvictor
	// OnChange is called after every mutation, live or committed.
	OnChange func()
}

func (o Options) withDefaults() Options {
	if o.MinSize <= 0 {
		o.MinSize = 10
	}
	if o.HandlePx <= 0 {
		o.HandlePx = 10
	}
	if o.HitTolerance <= 0 {
		o.HitTolerance = 5
	}
	if o.HistoryDepth <= 0 {
		o.HistoryDepth = undo.DefaultMaxDepth
	}
	if o.Placement == (placement.Config{}) {
		o.Placement = placement.DefaultConfig()
	}
	if o.Layouter == nil {
		o.Layouter = textlayout.NewCharWrap(textlayout.BasicProvider{})
	}
	return o
}

// Engine is the shape store plus everything that edits it.
type Engine struct {
	opts Options
	log  *slog.Logger

	order    []string
	shapes   map[string]shape.Shape
	selected []string
	hidden   []string // selection parked by HideSelection
	hover    string
	vp       viewport.Viewport

	history *undo.Manager
	// pending is the state before the first uncommitted live update of the
	// current gesture. A committed update records it instead of the live state.
	pending *undo.Snapshot
	gesture *gesture
}

// New returns an empty engine with the identity viewport.
func New(opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		opts:    opts,
		log:     log.WithComponent("canvas"),
		shapes:  make(map[string]shape.Shape),
		vp:      viewport.New(),
		history: undo.NewManager(undo.Config{MaxDepth: opts.HistoryDepth}),
	}
}

// Len returns the number of shapes.
func (e *Engine) Len() int { return len(e.order) }

// Get returns a copy of the shape with id.
func (e *Engine) Get(id string) (shape.Shape, bool) {
	s, ok := e.shapes[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Shapes returns copies of all shapes in z-order, bottom first.
func (e *Engine) Shapes() []shape.Shape {
	out := make([]shape.Shape, len(e.order))
	for i, id := range e.order {
		out[i] = e.shapes[id].Clone()
	}
	return out
}

// IDs returns the shape ids in z-order.
func (e *Engine) IDs() []string { return append([]string(nil), e.order...) }

// Viewport returns the current viewport.
func (e *Engine) Viewport() viewport.Viewport { return e.vp }

// SetViewport replaces the viewport. Viewport changes are not undoable.
func (e *Engine) SetViewport(v viewport.Viewport) {
	v.Normalize()
	e.vp = v
	e.changed()
}

// Pan moves the viewport by a screen-space delta.
func (e *Engine) Pan(dx, dy float64) {
	e.vp.Pan(dx, dy)
	e.changed()
}

// ZoomAt zooms around a screen point.
func (e *Engine) ZoomAt(factor float64, screen vector.Pt) {
	e.vp.ZoomAt(factor, screen)
	e.changed()
}

// FitToScreen frames all visible shapes on a canvasW x canvasH surface. Text
// counts with its wrapped extent when that is narrower than its box. Returns
// false and leaves the viewport alone when there is nothing to show.
func (e *Engine) FitToScreen(canvasW, canvasH, padding float64) bool {
	content, ok := e.contentBounds()
	if !ok || !e.vp.FitTo(content, canvasW, canvasH, padding) {
		return false
	}
	e.changed()
	return true
}

func (e *Engine) contentBounds() (vector.Rect, bool) {
	var (
		r  vector.Rect
		ok bool
	)
	for _, id := range e.order {
		s := e.shapes[id]
		if !s.Common().Visible {
			continue
		}
		b, has := shape.BoundsOK(s)
		if !has {
			continue
		}
		if t, isText := s.(*shape.Text); isText {
			box := e.opts.Layouter.Layout(t.Text, textFont(t), t.W)
			if box.Width < t.W {
				b.W = box.Width
				if box.Height < b.H {
					b.H = box.Height
				}
			}
		}
		if !ok {
			r, ok = b, true
			continue
		}
		r = r.Union(b)
	}
	return r, ok
}

func textFont(t *shape.Text) textlayout.FontSpec {
	return textlayout.FontSpec{Family: t.FontFamily, SizePt: t.FontSize, Weight: 400}
}

// MinSize is the minimum shape size in world units at the current zoom.
func (e *Engine) MinSize() float64 { return e.vp.ScreenLen(e.opts.MinSize) }

// Add inserts s on top of the z-order as a committed change and returns its
// id. A missing or already used id is replaced with a fresh one.
func (e *Engine) Add(s shape.Shape) string {
	var id string
	e.commit(func() { id = e.insert(s) })
	return id
}

func (e *Engine) insert(s shape.Shape) string {
	b := s.Common()
	if b.ID == "" {
		b.ID = shape.NewID()
	} else if _, dup := e.shapes[b.ID]; dup {
		e.log.Debug("duplicate shape id replaced", slog.String("id", b.ID))
		b.ID = shape.NewID()
	}
	e.shapes[b.ID] = s
	e.order = append(e.order, b.ID)
	return b.ID
}

// Update applies fn to the shape with id. With commit=false the change is a
// live preview and records no history; with commit=true it becomes one undo
// step covering every live update since the last commit. Unknown ids are a
// no-op and return false.
func (e *Engine) Update(id string, fn func(shape.Shape), commit bool) bool {
	s, ok := e.shapes[id]
	if !ok {
		return false
	}
	e.mutate(commit, func() {
		fn(s)
		e.refreshConnectors(id)
	})
	return true
}

// Set replaces the shape stored under id with a copy of s, keeping its
// z-position. The copy's id is forced to id.
func (e *Engine) Set(id string, s shape.Shape, commit bool) bool {
	if _, ok := e.shapes[id]; !ok {
		return false
	}
	c := s.Clone()
	c.Common().ID = id
	e.mutate(commit, func() {
		e.shapes[id] = c
		e.refreshConnectors(id)
	})
	return true
}

// Remove deletes id as a committed change, drops it from the selection and
// evicts its bitmap. Arrows pointing at it are left in place.
func (e *Engine) Remove(id string) bool {
	if _, ok := e.shapes[id]; !ok {
		return false
	}
	e.commit(func() { e.remove(id) })
	return true
}

// RemoveSelected deletes every selected shape as one undo step.
func (e *Engine) RemoveSelected() int {
	ids := e.SelectedIDs()
	if len(ids) == 0 {
		return 0
	}
	e.commit(func() {
		for _, id := range ids {
			e.remove(id)
		}
	})
	return len(ids)
}

func (e *Engine) remove(id string) {
	s := e.shapes[id]
	delete(e.shapes, id)
	e.order = without(e.order, id)
	e.selected = without(e.selected, id)
	e.hidden = without(e.hidden, id)
	if e.hover == id {
		e.hover = ""
	}
	if img, ok := s.(*shape.Image); ok && e.opts.Images != nil && !e.srcInUse(img.Src) {
		e.opts.Images.Evict(img.Src)
	}
}

func (e *Engine) srcInUse(src string) bool {
	for _, s := range e.shapes {
		if img, ok := s.(*shape.Image); ok && img.Src == src {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

// mutate runs fn as a live or committed change.
func (e *Engine) mutate(commit bool, fn func()) {
	if commit {
		e.commit(fn)
		return
	}
	if e.pending == nil {
		snap := e.snapshot()
		e.pending = &snap
	}
	fn()
	e.changed()
}

// commit records the pre-change state (the pre-gesture state when live
// updates preceded this call) and then runs fn.
func (e *Engine) commit(fn func()) {
	before := e.pending
	if before == nil {
		snap := e.snapshot()
		before = &snap
	}
	e.pending = nil
	e.history.SaveState(*before)
	fn()
	e.changed()
}

func (e *Engine) snapshot() undo.Snapshot {
	return undo.Snapshot{
		Shapes:   e.Shapes(),
		Selected: e.SelectedIDs(),
		Viewport: e.vp,
		TS:       time.Now(),
	}
}

func (e *Engine) restore(s undo.Snapshot) {
	e.shapes = make(map[string]shape.Shape, len(s.Shapes))
	e.order = e.order[:0]
	for _, sh := range s.Shapes {
		id := sh.Common().ID
		e.shapes[id] = sh
		e.order = append(e.order, id)
	}
	e.selected = e.selected[:0]
	for _, id := range s.Selected {
		if _, ok := e.shapes[id]; ok {
			e.selected = append(e.selected, id)
		}
	}
	parked := e.hidden[:0]
	for _, id := range e.hidden {
		if _, ok := e.shapes[id]; ok {
			parked = append(parked, id)
		}
	}
	e.hidden = parked
	if _, ok := e.shapes[e.hover]; !ok {
		e.hover = ""
	}
	e.vp = s.Viewport
}

// cancelLive rolls back uncommitted live updates.
func (e *Engine) cancelLive() {
	if e.pending != nil {
		e.restore(*e.pending)
		e.pending = nil
	}
	e.gesture = nil
}

// Undo reverts the last committed change. A live preview in progress is
// discarded first. Returns false when there is nothing to undo.
func (e *Engine) Undo() bool {
	e.cancelLive()
	prev, ok := e.history.Undo(e.snapshot())
	if !ok {
		return false
	}
	e.restore(prev)
	e.changed()
	return true
}

// Redo re-applies the last undone change.
func (e *Engine) Redo() bool {
	e.cancelLive()
	next, ok := e.history.Redo(e.snapshot())
	if !ok {
		return false
	}
	e.restore(next)
	e.changed()
	return true
}

func (e *Engine) CanUndo() bool { return e.history.CanUndo() }
func (e *Engine) CanRedo() bool { return e.history.CanRedo() }

// HistoryDepth returns the number of undo and redo steps available.
func (e *Engine) HistoryDepth() (undoSteps, redoSteps int) { return e.history.Stats() }

func (e *Engine) changed() {
	if e.opts.OnChange != nil {
		e.opts.OnChange()
	}
}
