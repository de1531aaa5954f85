/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package quest holds the quest document: an ordered map from quest id to
// script record. Documents are values; every edit returns a new Document and
// leaves the receiver untouched, so any Document obtained earlier stays a valid
// snapshot for undo.
package quest

import (
	"errors"
	"fmt"
	"strings"

	"questeditor/internal/action"
)

var (
	ErrEmptyID     = errors.New("quest id is empty")
	ErrDuplicateID = errors.New("quest id already exists")
	ErrNotFound    = errors.New("quest not found")
	ErrNoItem      = errors.New("no action item at index")
	ErrMalformed   = errors.New("malformed quest document")
)

// Document is an ordered quest id to Script mapping. The zero value is empty
// and ready to use.
type Document struct {
	ids    []string
	quests map[string]Script
}

// New builds a document from scripts in the given id order.
func New(ids []string, scripts map[string]Script) (Document, error) {
	d := Document{quests: make(map[string]Script, len(ids))}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return Document{}, ErrEmptyID
		}
		if _, dup := d.quests[id]; dup {
			return Document{}, fmt.Errorf("%q: %w", id, ErrDuplicateID)
		}
		s, ok := scripts[id]
		if !ok {
			return Document{}, fmt.Errorf("%q: %w", id, ErrNotFound)
		}
		d.ids = append(d.ids, id)
		d.quests[id] = normalizeScript(s.Clone())
	}
	return d, nil
}

func normalizeScript(s Script) Script {
	if s.Dungeon == nil {
		s.Dungeon = action.List{}
	}
	if s.Village == nil {
		s.Village = action.List{}
	}
	return s
}

// IDs returns quest ids in display order.
func (d Document) IDs() []string { return append([]string(nil), d.ids...) }

// Len returns the number of quests.
func (d Document) Len() int { return len(d.ids) }

// Has reports whether id exists.
func (d Document) Has(id string) bool {
	_, ok := d.quests[id]
	return ok
}

// Get returns a copy of the script stored under id.
func (d Document) Get(id string) (Script, bool) {
	s, ok := d.quests[id]
	if !ok {
		return Script{}, false
	}
	return s.Clone(), true
}

// First returns the first quest id or "".
func (d Document) First() string {
	if len(d.ids) == 0 {
		return ""
	}
	return d.ids[0]
}

// Item returns the action at index of list k in quest id.
func (d Document) Item(id string, k ListKind, index int) (action.Item, error) {
	s, ok := d.quests[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	l := s.List(k)
	if index < 0 || index >= len(l) {
		return nil, fmt.Errorf("%s[%d] of %q: %w", k, index, id, ErrNoItem)
	}
	return action.Clone(l[index]), nil
}

// Equal reports whether both documents encode to the same JSON.
func (d Document) Equal(o Document) bool {
	a, errA := d.MarshalJSON()
	b, errB := o.MarshalJSON()
	return errA == nil && errB == nil && string(a) == string(b)
}

// copyShallow duplicates the id order and map; scripts are shared and must be
// replaced, never mutated.
func (d Document) copyShallow() Document {
	out := Document{ids: append([]string(nil), d.ids...), quests: make(map[string]Script, len(d.quests)+1)}
	for k, v := range d.quests {
		out.quests[k] = v
	}
	return out
}

func (d Document) checkNewID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}
	if d.Has(id) {
		return fmt.Errorf("%q: %w", id, ErrDuplicateID)
	}
	return nil
}

// Create appends a quest with empty action lists.
func (d Document) Create(id, displayName, typ string) (Document, error) {
	if err := d.checkNewID(id); err != nil {
		return d, err
	}
	if typ == "" {
		typ = TypeDungeon
	}
	out := d.copyShallow()
	out.ids = append(out.ids, id)
	out.quests[id] = Script{Type: typ, DisplayName: displayName, Dungeon: action.List{}, Village: action.List{}}
	return out, nil
}

// Clone appends a deep copy of quest src under newID.
func (d Document) Clone(src, newID string) (Document, error) {
	s, ok := d.quests[src]
	if !ok {
		return d, fmt.Errorf("%q: %w", src, ErrNotFound)
	}
	if err := d.checkNewID(newID); err != nil {
		return d, err
	}
	out := d.copyShallow()
	out.ids = append(out.ids, newID)
	out.quests[newID] = s.Clone()
	return out, nil
}

// Update edits quest metadata and renames it when newID differs from origID.
// The renamed quest keeps its position; a collision leaves d unchanged.
func (d Document) Update(origID, newID, displayName, typ string) (Document, error) {
	s, ok := d.quests[origID]
	if !ok {
		return d, fmt.Errorf("%q: %w", origID, ErrNotFound)
	}
	if newID != origID {
		if err := d.checkNewID(newID); err != nil {
			return d, err
		}
	}
	s.DisplayName = displayName
	if typ != "" {
		s.Type = typ
	}
	out := d.copyShallow()
	if newID != origID {
		delete(out.quests, origID)
		for i, id := range out.ids {
			if id == origID {
				out.ids[i] = newID
				break
			}
		}
	}
	out.quests[newID] = s
	return out, nil
}

// Delete removes id and returns the id that should be selected next: the first
// remaining quest, or "" when none is left.
func (d Document) Delete(id string) (Document, string) {
	if !d.Has(id) {
		return d, d.First()
	}
	out := d.copyShallow()
	delete(out.quests, id)
	for i, v := range out.ids {
		if v == id {
			out.ids = append(out.ids[:i], out.ids[i+1:]...)
			break
		}
	}
	return out, out.First()
}

// editList runs fn on a private copy of list k of quest id.
func (d Document) editList(id string, k ListKind, fn func(action.List) (action.List, error)) (Document, error) {
	s, ok := d.quests[id]
	if !ok {
		return d, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	if !k.Valid() {
		return d, fmt.Errorf("list %q: %w", k, ErrNoItem)
	}
	l, err := fn(append(action.List{}, s.List(k)...))
	if err != nil {
		return d, fmt.Errorf("%s of %q: %w", k, id, err)
	}
	out := d.copyShallow()
	out.quests[id] = s.WithList(k, l)
	return out, nil
}

// AppendItem adds it to the end of list k.
func (d Document) AppendItem(id string, k ListKind, it action.Item) (Document, error) {
	return d.editList(id, k, func(l action.List) (action.List, error) {
		return append(l, action.Clone(it)), nil
	})
}

// ReplaceItem swaps the action at index for it.
func (d Document) ReplaceItem(id string, k ListKind, index int, it action.Item) (Document, error) {
	return d.editList(id, k, func(l action.List) (action.List, error) {
		if index < 0 || index >= len(l) {
			return nil, fmt.Errorf("index %d: %w", index, ErrNoItem)
		}
		l[index] = action.Clone(it)
		return l, nil
	})
}

// MoveItem moves the action at from so that it ends up at index to.
func (d Document) MoveItem(id string, k ListKind, from, to int) (Document, error) {
	return d.editList(id, k, func(l action.List) (action.List, error) {
		if from < 0 || from >= len(l) || to < 0 || to >= len(l) {
			return nil, fmt.Errorf("move %d to %d: %w", from, to, ErrNoItem)
		}
		it := l[from]
		l = append(l[:from], l[from+1:]...)
		l = append(l[:to], append(action.List{it}, l[to:]...)...)
		return l, nil
	})
}

// RemoveItem deletes the action at index.
func (d Document) RemoveItem(id string, k ListKind, index int) (Document, error) {
	return d.editList(id, k, func(l action.List) (action.List, error) {
		if index < 0 || index >= len(l) {
			return nil, fmt.Errorf("index %d: %w", index, ErrNoItem)
		}
		return append(l[:index], l[index+1:]...), nil
	})
}

// UpdateItem applies fn to the action at index and stores the result when fn
// reports a change.
func (d Document) UpdateItem(id string, k ListKind, index int, fn func(action.Item) (action.Item, bool)) (Document, bool, error) {
	cur, err := d.Item(id, k, index)
	if err != nil {
		return d, false, err
	}
	next, changed := fn(cur)
	if !changed {
		return d, false, nil
	}
	out, err := d.ReplaceItem(id, k, index, next)
	if err != nil {
		return d, false, err
	}
	return out, true, nil
}
