/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editor

import (
	"errors"
	"fmt"
	"log/slog"

	"questeditor/internal/action"
	"questeditor/internal/quest"
)

// commit replaces the document and records the previous one for undo.
func (s *Session) commit(label string, next quest.Document) { s.commitTo(label, next, s.active) }

// commitTo is commit that also selects active.
func (s *Session) commitTo(label string, next quest.Document, active string) {
	s.history.Record(label, s.doc, s.active, s.now())
	s.doc = next
	s.dirty = true
	s.active = active
	if !s.doc.Has(s.active) {
		s.active = s.doc.First()
	}
	s.changed()
}

// SelectQuest switches the active quest. Any capture in progress is abandoned.
func (s *Session) SelectQuest(id string) error {
	if !s.doc.Has(id) {
		return fmt.Errorf("select quest %q: %w", id, quest.ErrNotFound)
	}
	if id != s.active {
		s.abortCapture()
		s.active = id
		s.changed()
	}
	return nil
}

// SelectTab switches between the dungeon and village lists, abandoning any capture.
func (s *Session) SelectTab(k quest.ListKind) error {
	if !k.Valid() {
		return fmt.Errorf("unknown list %q", k)
	}
	if k != s.tab {
		s.abortCapture()
		s.tab = k
		s.changed()
	}
	return nil
}

func (s *Session) reject(op string, err error) error {
	s.log.Warn(op+" rejected", slog.Any("err", err))
	return err
}

// CreateQuest adds an empty quest and selects it.
func (s *Session) CreateQuest(id, displayName, typ string) error {
	next, err := s.doc.Create(id, displayName, typ)
	if err != nil {
		return s.reject("create quest", err)
	}
	s.abortCapture()
	s.commitTo("create quest", next, id)
	return nil
}

// CloneQuest deep-copies src under newID and selects the copy.
func (s *Session) CloneQuest(src, newID string) error {
	next, err := s.doc.Clone(src, newID)
	if err != nil {
		return s.reject("clone quest", err)
	}
	s.abortCapture()
	s.commitTo("clone quest", next, newID)
	return nil
}

// UpdateQuest edits metadata and renames origID to newID.
func (s *Session) UpdateQuest(origID, newID, displayName, typ string) error {
	next, err := s.doc.Update(origID, newID, displayName, typ)
	if err != nil {
		return s.reject("update quest", err)
	}
	active := s.active
	if active == origID {
		active = newID
	}
	s.abortCapture()
	s.commitTo("update quest", next, active)
	return nil
}

// DeleteQuest removes id; the first remaining quest becomes active when id was.
func (s *Session) DeleteQuest(id string) error {
	if !s.doc.Has(id) {
		return s.reject("delete quest", fmt.Errorf("delete quest %q: %w", id, quest.ErrNotFound))
	}
	next, nextID := s.doc.Delete(id)
	active := s.active
	if active == id {
		active = nextID
	}
	s.abortCapture()
	s.commitTo("delete quest", next, active)
	return nil
}

func (s *Session) requireActive() error {
	if s.active == "" {
		return fmt.Errorf("no quest selected: %w", quest.ErrNotFound)
	}
	return nil
}

// Items returns the selected list of the active quest.
func (s *Session) Items() action.List {
	sc, ok := s.doc.Get(s.active)
	if !ok {
		return nil
	}
	return sc.List(s.tab)
}

// AddItem appends the default item of v to the selected list.
func (s *Session) AddItem(v action.Variant) error {
	if err := s.requireActive(); err != nil {
		return s.reject("add item", err)
	}
	it, err := action.Default(v)
	if err != nil {
		return s.reject("add item", err)
	}
	next, err := s.doc.AppendItem(s.active, s.tab, it)
	if err != nil {
		return s.reject("add item", err)
	}
	s.commit("add item", next)
	return nil
}

// ReplaceItem overwrites item index of the selected list, as a form edit does.
func (s *Session) ReplaceItem(index int, it action.Item) error {
	next, err := s.doc.ReplaceItem(s.active, s.tab, index, it)
	if err != nil {
		return s.reject("edit item", err)
	}
	s.commit("edit item", next)
	return nil
}

// EditItem applies fn to item index of the selected list; fn reports whether it changed anything.
func (s *Session) EditItem(index int, fn func(action.Item) (action.Item, bool)) error {
	next, changed, err := s.doc.UpdateItem(s.active, s.tab, index, fn)
	if err != nil {
		return s.reject("edit item", err)
	}
	if changed {
		s.commit("edit item", next)
	}
	return nil
}

// MoveItem reorders the selected list, as a drag and drop does.
func (s *Session) MoveItem(from, to int) error {
	if from == to {
		return nil
	}
	s.abortCapture()
	next, err := s.doc.MoveItem(s.active, s.tab, from, to)
	if err != nil {
		return s.reject("move item", err)
	}
	s.commit("move item", next)
	return nil
}

// RemoveItem deletes item index of the selected list.
func (s *Session) RemoveItem(index int) error {
	s.abortCapture()
	next, err := s.doc.RemoveItem(s.active, s.tab, index)
	if err != nil {
		return s.reject("remove item", err)
	}
	s.commit("remove item", next)
	return nil
}

// Undo restores the document before the last change.
func (s *Session) Undo() bool {
	e, ok := s.history.Undo(s.doc, s.active)
	if !ok {
		return false
	}
	s.restore(e.Doc, e.Active)
	s.log.Info("undo " + e.Label)
	return true
}

// Redo re-applies the change last undone.
func (s *Session) Redo() bool {
	e, ok := s.history.Redo(s.doc, s.active)
	if !ok {
		return false
	}
	s.restore(e.Doc, e.Active)
	s.log.Info("redo " + e.Label)
	return true
}

func (s *Session) restore(d quest.Document, active string) {
	s.abortCapture()
	s.doc = d
	s.dirty = true
	s.active = active
	if !d.Has(active) {
		s.active = d.First()
	}
	s.changed()
}

// stale reports whether err means the addressed item no longer exists.
func stale(err error) bool {
	return errors.Is(err, quest.ErrNoItem) || errors.Is(err, quest.ErrNotFound)
}
