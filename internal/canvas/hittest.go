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

// HitTest returns the id of the topmost visible shape under a screen point.
func (e *Engine) HitTest(screen vector.Pt) (string, bool) {
	return e.ShapeAt(e.vp.ScreenToWorld(screen))
}

// ShapeAt is HitTest in world coordinates.
func (e *Engine) ShapeAt(world vector.Pt) (string, bool) {
	for i := len(e.order) - 1; i >= 0; i-- {
		s := e.shapes[e.order[i]]
		if s.Common().Visible && Contains(s, world, e.opts.HitTolerance) {
			return e.order[i], true
		}
	}
	return "", false
}

// Contains reports whether world point p is on s. Boxes use their
// axis-aligned bounds, circles their radius, and polylines hit when p is
// closer than tol to any segment.
func Contains(s shape.Shape, p vector.Pt, tol float64) bool {
	switch v := s.(type) {
	case *shape.Rectangle, *shape.Text, *shape.Image:
		return shape.Bounds(v).Contains(p)
	case *shape.Circle:
		return p.Dist(vector.Pt{X: v.X, Y: v.Y}) <= v.Radius
	case *shape.Line, *shape.Arrow, *shape.Freehand:
		pts, _ := shape.Points(v)
		return nearPolyline(pts, p, tol)
	default:
		panic("canvas: unknown shape variant")
	}
}

func nearPolyline(pts []vector.Pt, p vector.Pt, tol float64) bool {
	if len(pts) == 1 {
		return pts[0].Dist(p) < tol
	}
	for i := 1; i < len(pts); i++ {
		if vector.SegmentDist(p, pts[i-1], pts[i]) < tol {
			return true
		}
	}
	return false
}

// handleBox is the world-space square for a grip at p. Its screen size is
// fixed, so the world size shrinks as the zoom grows.
func (e *Engine) handleBox(p vector.Pt) vector.Rect {
	half := e.vp.ScreenLen(e.opts.HandlePx) / 2
	return vector.R(p.X-half, p.Y-half, 2*half, 2*half)
}

// ResizeHandleAt returns the grip of shape id under a screen point, or
// transform.None. Locked shapes offer no grips.
func (e *Engine) ResizeHandleAt(screen vector.Pt, id string) transform.Handle {
	s, ok := e.shapes[id]
	if !ok || s.Common().Locked {
		return transform.None
	}
	return e.handleAt(e.vp.ScreenToWorld(screen), shape.Bounds(s), transform.HandlesFor(s.Kind()))
}

// SelectionHandleAt returns the grip under a screen point for the current
// selection: the shape's own grips for a single selection, the corners of
// the combined box for several.
func (e *Engine) SelectionHandleAt(screen vector.Pt) transform.Handle {
	switch len(e.selected) {
	case 0:
		return transform.None
	case 1:
		return e.ResizeHandleAt(screen, e.selected[0])
	}
	b, ok := shape.UnionBounds(e.unlockedSelection())
	if !ok {
		return transform.None
	}
	return e.handleAt(e.vp.ScreenToWorld(screen), b, transform.CornerHandles())
}

func (e *Engine) handleAt(world vector.Pt, b vector.Rect, handles []transform.Handle) transform.Handle {
	for _, h := range handles {
		if e.handleBox(h.Point(b)).Contains(world) {
			return h
		}
	}
	return transform.None
}

func (e *Engine) unlockedSelection() []shape.Shape {
	var out []shape.Shape
	for _, id := range e.order {
		if e.IsSelected(id) && !e.shapes[id].Common().Locked {
			out = append(out, e.shapes[id])
		}
	}
	return out
}
