/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package capture binds pointer gestures over the device mirror to one field
// of one action item. A Controller tracks the armed mode and target and turns
// gestures into events; Apply merges a captured value into the addressed item.
package capture

import (
	"fmt"

	"questeditor/internal/action"
	"questeditor/internal/quest"
)

// Mode is the interaction mode of the controller.
type Mode int

const (
	ModeNone Mode = iota
	ModePick
	ModeRect
	ModeSwipe
)

func (m Mode) String() string {
	switch m {
	case ModePick:
		return "pick"
	case ModeRect:
		return "rect"
	case ModeSwipe:
		return "swipe"
	default:
		return "none"
	}
}

// Field names the slot of an action item a capture writes.
type Field string

const (
	FieldCoord         Field = "coord"
	FieldCoordSimple   Field = "coord_simple"
	FieldCoordFallback Field = "coord_fallback"
	FieldTargetPattern Field = "target_pattern"
	FieldFallbackValue Field = "fallback_value"
	FieldROI           Field = "roi"
)

// Target addresses the field a capture writes. Token correlates an image save
// with its acknowledgement and is empty until one is dispatched.
type Target struct {
	QuestID  string         `json:"questId"`
	List     quest.ListKind `json:"list"`
	Index    int            `json:"itemIndex"`
	Field    Field          `json:"field"`
	SubIndex *int           `json:"subIndex,omitempty"`
	Token    string         `json:"token,omitempty"`
}

// Sub returns the sub-index when one is set.
func (t Target) Sub() (int, bool) {
	if t.SubIndex == nil {
		return 0, false
	}
	return *t.SubIndex, true
}

// WithSub returns a copy of t addressing sub-index i.
func (t Target) WithSub(i int) Target {
	t.SubIndex = &i
	return t
}

func (t Target) String() string {
	s := fmt.Sprintf("%s/%s[%d].%s", t.QuestID, t.List, t.Index, t.Field)
	if i, ok := t.Sub(); ok {
		s += fmt.Sprintf("[%d]", i)
	}
	return s
}

// ResultKind tells which value a Result carries.
type ResultKind int

const (
	ResultCoord ResultKind = iota
	ResultQuad
	ResultText
)

// Result is a captured value: a coordinate, a rectangle quad or a string.
type Result struct {
	Kind  ResultKind
	Coord action.Coord
	ROI   action.ROI
	Text  string
}

func CoordResult(c action.Coord) Result { return Result{Kind: ResultCoord, Coord: c} }
func QuadResult(r action.ROI) Result    { return Result{Kind: ResultQuad, ROI: r} }
func TextResult(s string) Result        { return Result{Kind: ResultText, Text: s} }

func (r Result) String() string {
	switch r.Kind {
	case ResultCoord:
		return r.Coord.String()
	case ResultQuad:
		return r.ROI.String()
	default:
		return r.Text
	}
}
