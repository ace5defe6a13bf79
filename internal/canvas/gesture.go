/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"sketchboard/internal/shape"
	"sketchboard/internal/transform"
	"sketchboard/internal/vector"
)

// GestureKind is the state of the pointer state machine.
type GestureKind int

const (
	GestureIdle GestureKind = iota
	GesturePan
	GestureMove
	GestureResize
	GestureGroupResize
)

func (k GestureKind) String() string {
	switch k {
	case GesturePan:
		return "pan"
	case GestureMove:
		return "move"
	case GestureResize:
		return "resize"
	case GestureGroupResize:
		return "group-resize"
	default:
		return "idle"
	}
}

// gesture is the state captured at pointer down. Every frame is computed
// from it, never from the previous frame.
type gesture struct {
	kind       GestureKind
	start      vector.Pt // world
	lastScreen vector.Pt
	handle     transform.Handle
	ids        []string
	initial    shape.Shape // GestureResize
	group      *transform.Group
	moved      bool
	anchors    []vector.Rect // GestureMove with snapping
	guides     []vector.Guide
}

// Gesture returns the active gesture kind.
func (e *Engine) Gesture() GestureKind {
	if e.gesture == nil {
		return GestureIdle
	}
	return e.gesture.kind
}

// PointerDown starts a gesture at a screen point. A grip of the selection
// starts a resize, a shape starts a move (selecting it first), and empty
// space clears the selection and starts a pan. With multi, clicking a shape
// toggles it in the selection.
func (e *Engine) PointerDown(screen vector.Pt, multi bool) GestureKind {
	if e.gesture != nil {
		e.CancelGesture()
	}
	world := e.vp.ScreenToWorld(screen)
	if !multi {
		if h := e.SelectionHandleAt(screen); h != transform.None {
			e.BeginResize(h, world)
			return e.Gesture()
		}
	}
	if id, ok := e.HitTest(screen); ok {
		switch {
		case multi:
			e.Select(id, true)
		case !e.IsSelected(id):
			e.Select(id, false)
		}
		if e.IsSelected(id) {
			e.BeginMove(world)
		}
		return e.Gesture()
	}
	if !multi {
		e.ClearSelection()
	}
	e.gesture = &gesture{kind: GesturePan, lastScreen: screen}
	return GesturePan
}

// PointerMove advances the active gesture as a live preview, or updates the
// hover target when idle.
func (e *Engine) PointerMove(screen vector.Pt) {
	g := e.gesture
	if g == nil {
		id, _ := e.HitTest(screen)
		if e.IsSelected(id) {
			id = ""
		}
		if id != e.hover {
			e.hover = id
			e.changed()
		}
		return
	}
	if g.kind == GesturePan {
		e.vp.Pan(screen.X-g.lastScreen.X, screen.Y-g.lastScreen.Y)
		g.lastScreen = screen
		e.changed()
		return
	}
	e.DragTo(e.vp.ScreenToWorld(screen))
}

// PointerUp finishes the gesture at screen, committing it as one undo step.
func (e *Engine) PointerUp(screen vector.Pt) {
	if e.gesture == nil {
		return
	}
	e.PointerMove(screen)
	e.EndGesture()
}

// BeginMove starts moving the unlocked part of the selection from a world point.
func (e *Engine) BeginMove(world vector.Pt) bool {
	members := e.unlockedSelection()
	if len(members) == 0 {
		return false
	}
	e.gesture = &gesture{
		kind:  GestureMove,
		start: world,
		ids:   idsOf(members),
		group: transform.NewGroup(members),
	}
	if e.opts.SnapPx > 0 {
		e.gesture.anchors = e.snapAnchors(e.gesture.ids)
	}
	return true
}

// snapAnchors returns the bounds of visible shapes outside moving.
// Arrows are skipped since they follow what they connect.
func (e *Engine) snapAnchors(moving []string) []vector.Rect {
	skip := make(map[string]bool, len(moving))
	for _, id := range moving {
		skip[id] = true
	}
	var out []vector.Rect
	for _, id := range e.order {
		s := e.shapes[id]
		if skip[id] || !s.Common().Visible || s.Kind() == shape.KindArrow {
			continue
		}
		if b, ok := shape.BoundsOK(s); ok {
			out = append(out, b)
		}
	}
	return out
}

// Guides returns the alignment guides of the active move, if it snapped.
func (e *Engine) Guides() []vector.Guide {
	if e.gesture == nil {
		return nil
	}
	return append([]vector.Guide(nil), e.gesture.guides...)
}

// BeginResize starts resizing the selection by grip h. A single shape uses
// its own resize rules; several shapes scale uniformly and need a corner.
func (e *Engine) BeginResize(h transform.Handle, world vector.Pt) bool {
	members := e.unlockedSelection()
	switch {
	case len(members) == 0 || h == transform.None:
		return false
	case len(members) == 1 && len(e.selected) == 1:
		e.gesture = &gesture{
			kind:    GestureResize,
			start:   world,
			handle:  h,
			ids:     idsOf(members),
			initial: members[0].Clone(),
		}
	case !h.IsCorner():
		return false
	default:
		e.gesture = &gesture{
			kind:   GestureGroupResize,
			start:  world,
			handle: h,
			ids:    idsOf(members),
			group:  transform.NewGroup(members),
		}
	}
	return true
}

// DragTo previews the active move or resize with the pointer at world.
func (e *Engine) DragTo(world vector.Pt) {
	g := e.gesture
	if g == nil || (!g.moved && world == g.start) {
		return
	}
	var frame []shape.Shape
	switch g.kind {
	case GestureMove:
		d := world.Sub(g.start)
		g.guides = nil
		if len(g.anchors) > 0 {
			moved := g.group.Bounds().Translate(d)
			snapped, guides := vector.Snap(moved, g.anchors, vector.SnapOptions{
				Threshold: e.vp.ScreenLen(e.opts.SnapPx),
				Edges:     true,
				Centers:   true,
			})
			d = d.Add(snapped.Min().Sub(moved.Min()))
			g.guides = guides
		}
		frame = g.group.Move(d)
	case GestureResize:
		frame = []shape.Shape{transform.Resize(g.initial, g.handle, world, transform.Options{
			MinSize:  e.MinSize(),
			Layouter: e.opts.Layouter,
		})}
	case GestureGroupResize:
		frame = g.group.Resize(g.handle, world, e.MinSize())
	default:
		return
	}
	g.moved = true
	e.mutate(false, func() {
		for i, id := range g.ids {
			if _, ok := e.shapes[id]; ok {
				e.shapes[id] = frame[i]
			}
		}
		e.refreshConnectors(g.ids...)
	})
}

// EndGesture commits the live preview as a single undo step restoring the
// state from before the gesture. A gesture that never moved records nothing.
func (e *Engine) EndGesture() {
	g := e.gesture
	e.gesture = nil
	if g == nil || !g.moved || e.pending == nil {
		return
	}
	e.commit(func() {})
}

// CancelGesture rolls back the live preview of the active gesture.
func (e *Engine) CancelGesture() {
	if e.gesture == nil && e.pending == nil {
		return
	}
	e.cancelLive()
	e.changed()
}

func idsOf(shapes []shape.Shape) []string {
	ids := make([]string, len(shapes))
	for i, s := range shapes {
		ids[i] = s.Common().ID
	}
	return ids
}
