/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import "sketchboard/internal/shape"

// Select changes the selection. Without multi, id replaces the selection;
// with multi, id is toggled. An empty or unknown id without multi clears it.
func (e *Engine) Select(id string, multi bool) {
	_, known := e.shapes[id]
	switch {
	case !known && !multi:
		e.selected = nil
	case !known:
		return
	case !multi:
		e.selected = []string{id}
	case e.IsSelected(id):
		e.selected = without(e.selected, id)
	default:
		e.selected = append(e.selected, id)
	}
	e.changed()
}

// SelectAll selects every visible shape.
func (e *Engine) SelectAll() {
	e.selected = e.selected[:0]
	for _, id := range e.order {
		if e.shapes[id].Common().Visible {
			e.selected = append(e.selected, id)
		}
	}
	e.changed()
}

// ClearSelection empties the selection.
func (e *Engine) ClearSelection() {
	if len(e.selected) == 0 {
		return
	}
	e.selected = nil
	e.changed()
}

// SelectedIDs returns the selection in the order shapes were selected.
func (e *Engine) SelectedIDs() []string { return append([]string(nil), e.selected...) }

// Selected returns copies of the selected shapes in z-order.
func (e *Engine) Selected() []shape.Shape {
	var out []shape.Shape
	for _, id := range e.order {
		if e.IsSelected(id) {
			out = append(out, e.shapes[id].Clone())
		}
	}
	return out
}

func (e *Engine) IsSelected(id string) bool {
	for _, s := range e.selected {
		if s == id {
			return true
		}
	}
	return false
}

// HideSelection parks the selection, e.g. while exporting, so overlays are
// not drawn. RestoreSelection brings it back, minus shapes deleted since.
func (e *Engine) HideSelection() {
	if len(e.selected) == 0 {
		return
	}
	e.hidden = append(e.hidden, e.selected...)
	e.selected = nil
	e.changed()
}

func (e *Engine) RestoreSelection() {
	if len(e.hidden) == 0 {
		return
	}
	for _, id := range e.hidden {
		if _, ok := e.shapes[id]; ok && !e.IsSelected(id) {
			e.selected = append(e.selected, id)
		}
	}
	e.hidden = nil
	e.changed()
}

// HoverID is the shape under the pointer, or "".
func (e *Engine) HoverID() string { return e.hover }
