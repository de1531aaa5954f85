/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps a bounded undo/redo history of quest documents.
// Documents are immutable values, so an entry holds the document itself;
// its size is estimated from the exported JSON.
package undo

import (
	"sync"
	"time"

	"questeditor/internal/quest"
)

// Entry is one restorable document state.
type Entry struct {
	Label  string // what the change did, e.g. "move item"
	Doc    quest.Document
	Active string // quest id selected when the state was current
	Size   int
	TS     time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxDepth limits the number of undo entries (0 means unlimited).
	MaxDepth int
	// MinInterval coalesces changes with the same label recorded within the
	// interval: the earlier state is kept and the newer one dropped.
	MinInterval time.Duration
}

// History is safe for concurrent use.
type History struct {
	cfg        Config
	mu         sync.Mutex
	undo       []Entry
	redo       []Entry
	totalBytes int
}

func NewHistory(cfg Config) *History {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	return &History{cfg: cfg}
}

func sizeOf(d quest.Document) int {
	b, err := quest.Export(d)
	if err != nil {
		return 0
	}
	return len(b)
}

// Record stores before, the state preceding a change, and clears redo.
func (h *History) Record(label string, before quest.Document, active string, ts time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.redo = nil
	if n := len(h.undo); n > 0 {
		last := h.undo[n-1]
		if last.Label == label && ts.Sub(last.TS) < h.cfg.MinInterval {
			h.undo[n-1].TS = ts
			return
		}
	}
	e := Entry{Label: label, Doc: before, Active: active, Size: sizeOf(before), TS: ts}
	h.undo = append(h.undo, e)
	h.totalBytes += e.Size
	h.enforceCapsLocked()
}

// Undo returns the previous state and keeps current for Redo.
func (h *History) Undo(current quest.Document, active string) (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.undo)
	if n == 0 {
		return Entry{}, false
	}
	e := h.undo[n-1]
	h.undo = h.undo[:n-1]
	h.totalBytes -= e.Size
	h.redo = append(h.redo, Entry{Label: e.Label, Doc: current, Active: active, TS: time.Now()})
	return e, true
}

// Redo re-applies the change last undone and keeps current for Undo.
func (h *History) Redo(current quest.Document, active string) (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.redo)
	if n == 0 {
		return Entry{}, false
	}
	e := h.redo[n-1]
	h.redo = h.redo[:n-1]
	back := Entry{Label: e.Label, Doc: current, Active: active, Size: sizeOf(current), TS: time.Now()}
	h.undo = append(h.undo, back)
	h.totalBytes += back.Size
	h.enforceCapsLocked()
	return e, true
}

// CanUndo reports whether Undo has an entry, and its label.
func (h *History) CanUndo() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.undo) == 0 {
		return "", false
	}
	return h.undo[len(h.undo)-1].Label, true
}

// CanRedo reports whether Redo has an entry, and its label.
func (h *History) CanRedo() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.redo) == 0 {
		return "", false
	}
	return h.redo[len(h.redo)-1].Label, true
}

// Clear drops all entries, e.g. after loading a different document.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo, h.redo, h.totalBytes = nil, nil, 0
}

// Stats returns current sizes for diagnostics.
func (h *History) Stats() (totalBytes, undoDepth, redoDepth int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totalBytes, len(h.undo), len(h.redo)
}

func (h *History) enforceCapsLocked() {
	drop := 0
	if h.cfg.MaxDepth > 0 && len(h.undo) > h.cfg.MaxDepth {
		drop = len(h.undo) - h.cfg.MaxDepth
	}
	bytes := h.totalBytes
	for i := 0; i < drop; i++ {
		bytes -= h.undo[i].Size
	}
	// keep at least the newest entry even when it alone exceeds the cap
	for bytes > h.cfg.MaxBytes && drop < len(h.undo)-1 {
		bytes -= h.undo[drop].Size
		drop++
	}
	if drop > 0 {
		h.undo = append([]Entry(nil), h.undo[drop:]...)
		h.totalBytes = bytes
	}
}
