/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package placement

import (
	"sketchboard/internal/shape"
	"sketchboard/internal/vector"
)

// ShapeBounds returns the axis-aligned box used for collision checks. ok is
// false for shapes with no extent, which never collide.
func ShapeBounds(s shape.Shape) (vector.Rect, bool) { return shape.BoundsOK(s) }

// RectsOverlap reports whether a and b intersect. Touching edges count.
func RectsOverlap(a, b vector.Rect) bool { return a.Overlaps(b) }

// HasCollision reports whether candidate overlaps any visible shape in shapes
// whose id is not in exclude, after growing that shape's bounds by buffer on
// every side.
func HasCollision(candidate vector.Rect, shapes []shape.Shape, exclude map[string]bool, buffer float64) bool {
	for _, s := range shapes {
		b := s.Common()
		if !b.Visible || exclude[b.ID] {
			continue
		}
		if r, ok := ShapeBounds(s); ok && RectsOverlap(candidate, r.Expand(buffer)) {
			return true
		}
	}
	return false
}

// Occupied collects the bounds of every visible, non-excluded shape.
func Occupied(shapes []shape.Shape, exclude map[string]bool) []vector.Rect {
	out := make([]vector.Rect, 0, len(shapes))
	for _, s := range shapes {
		b := s.Common()
		if !b.Visible || exclude[b.ID] {
			continue
		}
		if r, ok := ShapeBounds(s); ok {
			out = append(out, r)
		}
	}
	return out
}

func excludeSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
