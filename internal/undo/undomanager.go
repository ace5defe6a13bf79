/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps the canvas undo/redo history as stacks of snapshots.
//
// The live engine state plays the role of "present". A committed mutation
// first records the pre-mutation state on the past stack; undo hands the live
// state to the future stack and returns the newest past entry, redo does the
// reverse. Every snapshot entering or leaving the manager is deep-copied, so
// history never aliases live shapes.
package undo

import (
	"sync"
	"time"

	"sketchboard/internal/shape"
	"sketchboard/internal/viewport"
)

// DefaultMaxDepth bounds the past stack.
const DefaultMaxDepth = 50

// Snapshot is a structurally independent copy of the canvas state.
type Snapshot struct {
	Shapes   []shape.Shape
	Selected []string
	Viewport viewport.Viewport
	TS       time.Time
}

// Clone deep-copies every shape and the selection list.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Viewport: s.Viewport, TS: s.TS}
	if s.Shapes != nil {
		out.Shapes = make([]shape.Shape, len(s.Shapes))
		for i, sh := range s.Shapes {
			out.Shapes[i] = sh.Clone()
		}
	}
	if s.Selected != nil {
		out.Selected = append([]string(nil), s.Selected...)
	}
	return out
}

// Config controls depth caps.
type Config struct {
	// MaxDepth limits the number of undo steps kept; the oldest are dropped.
	MaxDepth int
}

// Manager provides the undo/redo stacks. It is safe for concurrent use.
type Manager struct {
	cfg    Config
	mu     sync.Mutex
	past   []Snapshot
	future []Snapshot // top of stack is the last element
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return &Manager{cfg: cfg}
}

// SaveState records the state preceding a committed mutation and clears redo.
func (m *Manager) SaveState(before Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.past = append(m.past, before.Clone())
	if n := len(m.past); n > m.cfg.MaxDepth {
		// drop the oldest extras
		m.past = append([]Snapshot(nil), m.past[n-m.cfg.MaxDepth:]...)
	}
	m.future = nil
}

// Undo moves live onto the redo stack and returns the state to restore.
func (m *Manager) Undo(live Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.past) == 0 {
		return Snapshot{}, false
	}
	prev := m.past[len(m.past)-1]
	m.past = m.past[:len(m.past)-1]
	m.future = append(m.future, live.Clone())
	return prev.Clone(), true
}

// Redo moves live back onto the undo stack and returns the state to restore.
func (m *Manager) Redo(live Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.future) == 0 {
		return Snapshot{}, false
	}
	next := m.future[len(m.future)-1]
	m.future = m.future[:len(m.future)-1]
	m.past = append(m.past, live.Clone())
	if n := len(m.past); n > m.cfg.MaxDepth {
		m.past = append([]Snapshot(nil), m.past[n-m.cfg.MaxDepth:]...)
	}
	return next.Clone(), true
}

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.past) > 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.future) > 0
}

// Clear drops both stacks, e.g. after loading a different canvas.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.past = nil
	m.future = nil
}

// Stats returns current stack depths for diagnostics.
func (m *Manager) Stats() (undoDepth, redoDepth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.past), len(m.future)
}
