/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Decode parses one JSON tuple into an Item. Only invalid JSON is an error;
// any well-formed value that matches no variant becomes Unknown.
func Decode(data []byte) (Item, error) {
	v, err := decodeValue(data)
	if err != nil {
		return nil, fmt.Errorf("decode action item: %w", err)
	}
	return FromValue(v), nil
}

// FromValue builds an Item from a decoded JSON value, normalizing legacy slot
// shapes. Slots with the wrong JSON type read as their zero value; the value
// as read is remembered and written back while the field stays unedited.
func FromValue(v any) Item {
	variant := Classify(v)
	if variant == VariantUnknown {
		return Unknown{Value: deepCopy(v)}
	}
	t := v.([]any)
	r := &reader{t: t, src: source{arity: len(t)}}
	switch variant {
	case VariantSimple:
		return Simple{Command: t[0].(string)}
	case VariantPosition:
		return Position{Direction: r.str(1), Coord: r.coord(2), Extra: tail(t, 3), src: r.done()}
	case VariantStair:
		return Stair{ID: t[0].(string), Direction: r.str(1), Coord: r.coord(2), Extra: tail(t, 3), src: r.done()}
	case VariantMinimapStair:
		return MinimapStair{Direction: r.str(1), Coord: r.coord(2), Image: r.str(3), Extra: tail(t, 4), src: r.done()}
	case VariantHarken:
		return Harken{Direction: r.str(1), ROI: r.harken(2), Image: r.str(3), Extra: tail(t, 4), src: r.done()}
	case VariantChest:
		return Chest{Direction: r.str(1), ROIs: r.chest(2), Extra: tail(t, 3), src: r.done()}
	case VariantChestAuto:
		return ChestAuto{Extra: tail(t, 1)}
	case VariantPress:
		return Press{Pattern: r.str(1), Fallbacks: r.fallbacks(2), Delay: r.number(3), Extra: tail(t, 4), src: r.done()}
	}
	return Unknown{Value: deepCopy(v)}
}

// source remembers how a tuple looked when it was read: its length, and the
// slots the typed fields could not hold exactly. Items built in code have a
// zero source and are always written in canonical form.
type source struct {
	arity int
	kept  map[int]keptSlot
}

type keptSlot struct {
	raw  any // slot value as read
	seen any // field value it decoded to
}

// slotOut is one slot about to be written.
type slotOut struct {
	field any // current field value, compared against keptSlot.seen
	out   any // canonical encoding of field
	zero  bool
}

// values lays out the slots after the head. A slot whose field still holds
// what was read is written as read. Trailing zero slots the source tuple never
// had are left out.
func (s source) values(slots []slotOut) []any {
	n := len(slots)
	for s.arity > 0 && n > 0 && n >= s.arity && slots[n-1].zero {
		n--
	}
	out := make([]any, 0, n)
	for i, sv := range slots[:n] {
		if k, ok := s.kept[i+1]; ok && reflect.DeepEqual(sv.field, k.seen) {
			out = append(out, k.raw)
			continue
		}
		out = append(out, sv.out)
	}
	return out
}

type reader struct {
	t   []any
	src source
}

// done returns what was recorded. It is a call so that, inside a composite
// literal, it runs after the slot reads to its left.
func (r *reader) done() source { return r.src }

func (r *reader) keep(i int, seen any) {
	if r.src.kept == nil {
		r.src.kept = make(map[int]keptSlot)
	}
	r.src.kept[i] = keptSlot{raw: deepCopy(r.t[i]), seen: seen}
}

func (r *reader) present(i int) bool { return i < len(r.t) }

func (r *reader) str(i int) string {
	s, ok := slot(r.t, i).(string)
	if !ok && r.present(i) {
		r.keep(i, s)
	}
	return s
}

func (r *reader) coord(i int) *Coord {
	v := slot(r.t, i)
	c := toCoord(v)
	if c == nil && v != nil {
		r.keep(i, (*Coord)(nil))
	}
	return c
}

func (r *reader) number(i int) float64 {
	n, ok := asNumber(slot(r.t, i))
	if !ok && r.present(i) {
		r.keep(i, n)
	}
	return n
}

func (r *reader) harken(i int) *ROI {
	roi, exact := harkenROI(slot(r.t, i))
	if !exact {
		r.keep(i, cloneROI(roi))
	}
	return roi
}

func (r *reader) chest(i int) []ROI {
	rois, exact := chestROIs(slot(r.t, i))
	if !exact {
		r.keep(i, append([]ROI(nil), rois...))
	}
	return rois
}

func (r *reader) fallbacks(i int) []Fallback {
	v := slot(r.t, i)
	fbs := fallbacks(v)
	switch v.(type) {
	case nil, string, []any:
	default:
		seen := make([]Fallback, len(fbs))
		for j, f := range fbs {
			seen[j] = f.clone()
		}
		r.keep(i, seen)
	}
	return fbs
}

// NormalizeFallbacks expands a press fallback slot into a list of actions. A
// bare coordinate pair is one tap action, not a list of two scalars.
func NormalizeFallbacks(v any) []Fallback { return fallbacks(v) }

// NormalizeChestROIs expands a chest ROI slot into a list of quads. Elements
// that are not quads are skipped.
func NormalizeChestROIs(v any) []ROI {
	rois, _ := chestROIs(v)
	return rois
}

func fallbacks(v any) []Fallback {
	if v == nil {
		return []Fallback{}
	}
	list, ok := v.([]any)
	if !ok || IsCoordinatePair(v) {
		list = []any{v}
	}
	out := make([]Fallback, 0, len(list))
	for _, e := range list {
		out = append(out, fallbackFrom(e))
	}
	return out
}

func fallbackFrom(v any) Fallback {
	if c := toCoord(v); c != nil {
		return Fallback{Coord: c}
	}
	if s, ok := v.(string); ok {
		return Fallback{Text: s}
	}
	if v == nil {
		return Fallback{raw: jsonNull}
	}
	return Fallback{raw: deepCopy(v)}
}

// chestROIs reports false when part of v could not be read as a quad.
func chestROIs(v any) ([]ROI, bool) {
	if v == nil {
		return nil, true
	}
	if r, ok := toROI(v); ok {
		return []ROI{r}, true
	}
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	var out []ROI
	exact := true
	for _, e := range list {
		if r, ok := toROI(e); ok {
			out = append(out, r)
		} else {
			exact = false
		}
	}
	return out, exact
}

// harkenROI accepts null, a bare quad, [null] and [quad]; anything else
// yields the first quad found and false.
func harkenROI(v any) (*ROI, bool) {
	if v == nil {
		return nil, true
	}
	if r, ok := toROI(v); ok {
		return &r, true
	}
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	if len(list) == 1 && list[0] == nil {
		return nil, true
	}
	for j, e := range list {
		if r, ok := toROI(e); ok {
			return &r, j == 0 && len(list) == 1
		}
	}
	return nil, false
}

func cloneROI(r *ROI) *ROI {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func slot(t []any, i int) any {
	if i < len(t) {
		return t[i]
	}
	return nil
}

func tail(t []any, from int) []any {
	if from >= len(t) {
		return nil
	}
	return cloneAny(t[from:])
}

func toCoord(v any) *Coord {
	if !IsCoordinatePair(v) {
		return nil
	}
	l := v.([]any)
	x, _ := asNumber(l[0])
	y, _ := asNumber(l[1])
	return &Coord{X: int(math.Round(x)), Y: int(math.Round(y))}
}

func toROI(v any) (ROI, bool) {
	if !IsRoiQuad(v) {
		return ROI{}, false
	}
	var r ROI
	for i, e := range v.([]any) {
		n, _ := asNumber(e)
		r[i] = int(math.Round(n))
	}
	return r, true
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func marshalTuple(head string, slots []any, extra []any) ([]byte, error) {
	t := make([]any, 0, 1+len(slots)+len(extra))
	t = append(t, head)
	t = append(t, slots...)
	t = append(t, extra...)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(t); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func coordValue(c *Coord) any {
	if c == nil {
		return nil
	}
	return *c
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s Simple) MarshalJSON() ([]byte, error) { return marshalTuple(s.Command, nil, nil) }

func dirSlot(dir string) slotOut { return slotOut{field: dir, out: dir, zero: dir == ""} }

func coordSlot(c *Coord) slotOut { return slotOut{field: c, out: coordValue(c), zero: c == nil} }

func imageSlot(name string) slotOut { return slotOut{field: name, out: nullableString(name), zero: name == ""} }

func (p Position) MarshalJSON() ([]byte, error) {
	return marshalTuple(headPosition, p.src.values([]slotOut{dirSlot(p.Direction), coordSlot(p.Coord)}), p.Extra)
}

func (s Stair) MarshalJSON() ([]byte, error) {
	id := s.ID
	if strings.TrimSpace(id) == "" {
		id = stairPrefix
	}
	return marshalTuple(id, s.src.values([]slotOut{dirSlot(s.Direction), coordSlot(s.Coord)}), s.Extra)
}

func (m MinimapStair) MarshalJSON() ([]byte, error) {
	slots := []slotOut{dirSlot(m.Direction), coordSlot(m.Coord), imageSlot(m.Image)}
	return marshalTuple(headMinimapStair, m.src.values(slots), m.Extra)
}

func (h Harken) MarshalJSON() ([]byte, error) {
	wrapped := []any{nil}
	if h.ROI != nil {
		wrapped = []any{*h.ROI}
	}
	slots := []slotOut{dirSlot(h.Direction), {field: h.ROI, out: wrapped, zero: h.ROI == nil}, imageSlot(h.Image)}
	return marshalTuple(headHarken, h.src.values(slots), h.Extra)
}

func (c Chest) MarshalJSON() ([]byte, error) {
	var rois any
	if len(c.ROIs) > 0 {
		rois = c.ROIs
	}
	slots := []slotOut{dirSlot(c.Direction), {field: c.ROIs, out: rois, zero: len(c.ROIs) == 0}}
	return marshalTuple(headChest, c.src.values(slots), c.Extra)
}

func (c ChestAuto) MarshalJSON() ([]byte, error) { return marshalTuple(headChestAuto, nil, c.Extra) }

func (p Press) MarshalJSON() ([]byte, error) {
	fbs := p.Fallbacks
	if fbs == nil {
		fbs = []Fallback{}
	}
	slots := []slotOut{
		dirSlot(p.Pattern),
		{field: p.Fallbacks, out: fbs, zero: len(p.Fallbacks) == 0},
		{field: p.Delay, out: p.Delay, zero: p.Delay == 0},
	}
	return marshalTuple(headPress, p.src.values(slots), p.Extra)
}

func (u Unknown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(u.Value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// List is an ordered sequence of items with JSON support.
type List []Item

func (l List) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, it := range l {
		b, err := it.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encode item %d: %w", i, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (l *List) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode action list: %w", err)
	}
	out := make(List, 0, len(raw))
	for i, r := range raw {
		it, err := Decode(r)
		if err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, it)
	}
	*l = out
	return nil
}

// Clone deep-copies the list.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	for i, it := range l {
		out[i] = Clone(it)
	}
	return out
}
