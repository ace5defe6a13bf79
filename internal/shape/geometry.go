/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package shape

import (
	"fmt"

	"sketchboard/internal/vector"
)

// Bounds returns the world-space axis-aligned bounding box of s. Polylines use
// the min/max of their points; rotation is not taken into account. A polyline
// without points yields the zero rect; use BoundsOK to tell it apart.
func Bounds(s Shape) vector.Rect {
	r, _ := BoundsOK(s)
	return r
}

// BoundsOK is Bounds with ok false for a polyline that has no points.
func BoundsOK(s Shape) (vector.Rect, bool) {
	switch v := s.(type) {
	case *Rectangle:
		return vector.R(v.X, v.Y, v.W, v.H), true
	case *Circle:
		return vector.R(v.X-v.Radius, v.Y-v.Radius, 2*v.Radius, 2*v.Radius), true
	case *Line:
		return vector.BoundsOf(v.Points)
	case *Arrow:
		return vector.BoundsOf(v.Points)
	case *Freehand:
		return vector.BoundsOf(v.Points)
	case *Text:
		return vector.R(v.X, v.Y, v.W, v.H), true
	case *Image:
		return vector.R(v.X, v.Y, v.W, v.H), true
	default:
		panic(unknown(s))
	}
}

// Points returns the vertex list of a polyline variant. ok is false for boxed shapes.
func Points(s Shape) (pts []vector.Pt, ok bool) {
	switch v := s.(type) {
	case *Line:
		return v.Points, true
	case *Arrow:
		return v.Points, true
	case *Freehand:
		return v.Points, true
	case *Rectangle, *Circle, *Text, *Image:
		return nil, false
	default:
		panic(unknown(s))
	}
}

// Position returns the anchor used for moves: the top-left corner for boxed
// shapes, the center for circles and the first point for polylines.
func Position(s Shape) vector.Pt {
	switch v := s.(type) {
	case *Rectangle:
		return vector.Pt{X: v.X, Y: v.Y}
	case *Circle:
		return vector.Pt{X: v.X, Y: v.Y}
	case *Text:
		return vector.Pt{X: v.X, Y: v.Y}
	case *Image:
		return vector.Pt{X: v.X, Y: v.Y}
	case *Line, *Arrow, *Freehand:
		pts, _ := Points(s)
		if len(pts) == 0 {
			return vector.Pt{}
		}
		return pts[0]
	default:
		panic(unknown(s))
	}
}

// MoveTo places the anchor returned by Position at p. For polylines every
// point shifts by the same delta so the path keeps its form.
func MoveTo(s Shape, p vector.Pt) {
	switch v := s.(type) {
	case *Rectangle:
		v.X, v.Y = p.X, p.Y
	case *Circle:
		v.X, v.Y = p.X, p.Y
	case *Text:
		v.X, v.Y = p.X, p.Y
	case *Image:
		v.X, v.Y = p.X, p.Y
	case *Line, *Arrow, *Freehand:
		Translate(s, p.Sub(Position(s)))
	default:
		panic(unknown(s))
	}
}

// Translate moves s by d.
func Translate(s Shape, d vector.Pt) {
	switch v := s.(type) {
	case *Rectangle:
		v.X += d.X
		v.Y += d.Y
	case *Circle:
		v.X += d.X
		v.Y += d.Y
	case *Text:
		v.X += d.X
		v.Y += d.Y
	case *Image:
		v.X += d.X
		v.Y += d.Y
	case *Line:
		shiftPoints(v.Points, d)
	case *Arrow:
		shiftPoints(v.Points, d)
	case *Freehand:
		shiftPoints(v.Points, d)
	default:
		panic(unknown(s))
	}
}

func shiftPoints(pts []vector.Pt, d vector.Pt) {
	for i := range pts {
		pts[i] = pts[i].Add(d)
	}
}

// UnionBounds returns the combined bounds of shapes. ok is false when the list is empty.
func UnionBounds(shapes []Shape) (r vector.Rect, ok bool) {
	for _, s := range shapes {
		b, has := BoundsOK(s)
		if !has {
			continue
		}
		if !ok {
			r, ok = b, true
			continue
		}
		r = r.Union(b)
	}
	return r, ok
}

func unknown(s Shape) string { return fmt.Sprintf("shape: unknown variant %T", s) }
