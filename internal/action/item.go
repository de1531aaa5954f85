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
	"encoding/json"
	"fmt"
	"strings"
)

// Item is one script step. The set of implementations is closed; use a type
// switch over the concrete types below.
type Item interface {
	Variant() Variant
	json.Marshaler
	isItem()
}

// Coord is a point in virtual device resolution.
type Coord struct {
	X int
	Y int
}

func (c Coord) MarshalJSON() ([]byte, error) { return json.Marshal([2]int{c.X, c.Y}) }

func (c Coord) String() string { return fmt.Sprintf("[%d, %d]", c.X, c.Y) }

// ROI is a region of interest [x1, y1, x2, y2].
type ROI [4]int

// Ordered reports whether x1<x2 and y1<y2.
func (r ROI) Ordered() bool { return r[0] < r[2] && r[1] < r[3] }

func (r ROI) String() string { return fmt.Sprintf("[%d, %d, %d, %d]", r[0], r[1], r[2], r[3]) }

// CommandPrefix marks a fallback or simple item as a raw device command.
const CommandPrefix = "input "

// TapCommand synthesizes a device tap at c.
func TapCommand(c Coord) string { return fmt.Sprintf("input tap %d %d", c.X, c.Y) }

// SwipeCommand synthesizes a device swipe from a to b.
func SwipeCommand(a, b Coord) string {
	return fmt.Sprintf("input swipe %d %d %d %d", a.X, a.Y, b.X, b.Y)
}

// IsCommand reports whether s is a raw device command.
func IsCommand(s string) bool { return strings.HasPrefix(s, CommandPrefix) }

// FallbackKind classifies one fallback action of a press item.
type FallbackKind int

const (
	FallbackImage FallbackKind = iota
	FallbackTap
	FallbackCommand
	FallbackOther
)

func (k FallbackKind) String() string {
	switch k {
	case FallbackTap:
		return "XY"
	case FallbackCommand:
		return "CMD"
	case FallbackImage:
		return "IMG"
	default:
		return "?"
	}
}

// Fallback is a secondary action tried when a press item's pattern is not found:
// a coordinate to tap, a raw command, or an image name to match and click.
type Fallback struct {
	Coord *Coord
	Text  string
	raw   any // shapes that are neither coordinate nor string, kept verbatim
}

var jsonNull = json.RawMessage("null")

// TapAt returns a coordinate fallback.
func TapAt(c Coord) Fallback { return Fallback{Coord: &c} }

// TextFallback returns a command or image-name fallback.
func TextFallback(s string) Fallback { return Fallback{Text: s} }

// Kind reports which action the fallback performs.
func (f Fallback) Kind() FallbackKind {
	switch {
	case f.Coord != nil:
		return FallbackTap
	case f.raw != nil:
		return FallbackOther
	case IsCommand(f.Text):
		return FallbackCommand
	default:
		return FallbackImage
	}
}

func (f Fallback) MarshalJSON() ([]byte, error) {
	switch {
	case f.Coord != nil:
		return f.Coord.MarshalJSON()
	case f.raw != nil:
		return json.Marshal(f.raw)
	default:
		return json.Marshal(f.Text)
	}
}

func (f Fallback) clone() Fallback {
	if f.Coord != nil {
		c := *f.Coord
		f.Coord = &c
	}
	return f
}

// Simple is a single command string, usually a raw device command.
type Simple struct {
	Command string
}

// Position taps a target coordinate after a directional search.
type Position struct {
	Direction string
	Coord     *Coord
	Extra     []any
	src       source
}

// Stair is a named stair target; ID starts with "stair" unless retyped by the user.
type Stair struct {
	ID        string
	Direction string
	Coord     *Coord
	Extra     []any
	src       source
}

// MinimapStair targets a floor identified by a minimap image.
type MinimapStair struct {
	Direction string
	Coord     *Coord
	Image     string
	Extra     []any
	src       source
}

// Harken matches Image inside an optional single ROI.
type Harken struct {
	Direction string
	ROI       *ROI
	Image     string
	Extra     []any
	src       source
}

// Chest scans regions for chests. ROIs[0] is the search region, the rest are exclusions.
type Chest struct {
	Direction string
	ROIs      []ROI
	Extra     []any
	src       source
}

// ChestAuto detects and opens chests without parameters.
type ChestAuto struct {
	Extra []any
}

// Press matches Pattern and presses it, running Fallbacks when no match is found.
type Press struct {
	Pattern   string
	Fallbacks []Fallback
	Delay     float64
	Extra     []any
	src       source
}

// Unknown preserves a tuple that matches no variant.
type Unknown struct {
	Value any
}

func (Simple) Variant() Variant       { return VariantSimple }
func (Position) Variant() Variant     { return VariantPosition }
func (Stair) Variant() Variant        { return VariantStair }
func (MinimapStair) Variant() Variant { return VariantMinimapStair }
func (Harken) Variant() Variant       { return VariantHarken }
func (Chest) Variant() Variant        { return VariantChest }
func (ChestAuto) Variant() Variant    { return VariantChestAuto }
func (Press) Variant() Variant        { return VariantPress }
func (Unknown) Variant() Variant      { return VariantUnknown }

func (Simple) isItem()       {}
func (Position) isItem()     {}
func (Stair) isItem()        {}
func (MinimapStair) isItem() {}
func (Harken) isItem()       {}
func (Chest) isItem()        {}
func (ChestAuto) isItem()    {}
func (Press) isItem()        {}
func (Unknown) isItem()      {}

// Clone returns a deep copy of it that shares no mutable state.
func Clone(it Item) Item {
	switch v := it.(type) {
	case Simple:
		return v
	case Position:
		v.Coord = cloneCoord(v.Coord)
		v.Extra = cloneAny(v.Extra)
		return v
	case Stair:
		v.Coord = cloneCoord(v.Coord)
		v.Extra = cloneAny(v.Extra)
		return v
	case MinimapStair:
		v.Coord = cloneCoord(v.Coord)
		v.Extra = cloneAny(v.Extra)
		return v
	case Harken:
		if v.ROI != nil {
			r := *v.ROI
			v.ROI = &r
		}
		v.Extra = cloneAny(v.Extra)
		return v
	case Chest:
		v.ROIs = append([]ROI(nil), v.ROIs...)
		v.Extra = cloneAny(v.Extra)
		return v
	case ChestAuto:
		v.Extra = cloneAny(v.Extra)
		return v
	case Press:
		fbs := make([]Fallback, len(v.Fallbacks))
		for i, f := range v.Fallbacks {
			fbs[i] = f.clone()
		}
		v.Fallbacks = fbs
		v.Extra = cloneAny(v.Extra)
		return v
	case Unknown:
		return Unknown{Value: deepCopy(v.Value)}
	default:
		return it
	}
}

func cloneCoord(c *Coord) *Coord {
	if c == nil {
		return nil
	}
	cc := *c
	return &cc
}

func cloneAny(list []any) []any {
	if list == nil {
		return nil
	}
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = deepCopy(v)
	}
	return out
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case []any:
		return cloneAny(t)
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = deepCopy(e)
		}
		return m
	default:
		return v
	}
}

// Direction returns the direction label of items that carry one.
func Direction(it Item) (string, bool) {
	switch v := it.(type) {
	case Position:
		return v.Direction, true
	case Stair:
		return v.Direction, true
	case MinimapStair:
		return v.Direction, true
	case Harken:
		return v.Direction, true
	case Chest:
		return v.Direction, true
	}
	return "", false
}

// WithDirection returns a copy of it with the direction label replaced.
func WithDirection(it Item, dir string) (Item, bool) {
	switch v := Clone(it).(type) {
	case Position:
		v.Direction = dir
		return v, true
	case Stair:
		v.Direction = dir
		return v, true
	case MinimapStair:
		v.Direction = dir
		return v, true
	case Harken:
		v.Direction = dir
		return v, true
	case Chest:
		v.Direction = dir
		return v, true
	}
	return it, false
}

// WithFallback returns a copy of p with fallback i set. i == len appends; larger
// indexes report false.
func (p Press) WithFallback(i int, f Fallback) (Press, bool) {
	if i < 0 || i > len(p.Fallbacks) {
		return p, false
	}
	out := Clone(p).(Press)
	if i == len(out.Fallbacks) {
		out.Fallbacks = append(out.Fallbacks, f.clone())
	} else {
		out.Fallbacks[i] = f.clone()
	}
	return out, true
}

// WithoutFallback returns a copy of p with fallback i removed.
func (p Press) WithoutFallback(i int) (Press, bool) {
	if i < 0 || i >= len(p.Fallbacks) {
		return p, false
	}
	out := Clone(p).(Press)
	out.Fallbacks = append(out.Fallbacks[:i], out.Fallbacks[i+1:]...)
	return out, true
}

// WithROI returns a copy of c with r appended after the existing regions.
func (c Chest) WithROI(r ROI) Chest {
	out := Clone(c).(Chest)
	out.ROIs = append(out.ROIs, r)
	return out
}

// WithoutROI returns a copy of c with region i removed.
func (c Chest) WithoutROI(i int) (Chest, bool) {
	if i < 0 || i >= len(c.ROIs) {
		return c, false
	}
	out := Clone(c).(Chest)
	out.ROIs = append(out.ROIs[:i], out.ROIs[i+1:]...)
	return out, true
}

// Summary is a one-line human description used by lists and exports.
func Summary(it Item) string {
	switch v := it.(type) {
	case Simple:
		return v.Command
	case Position:
		return fmt.Sprintf("%s %s", v.Direction, coordString(v.Coord))
	case Stair:
		return fmt.Sprintf("%s %s %s", v.ID, v.Direction, coordString(v.Coord))
	case MinimapStair:
		return fmt.Sprintf("%s %s -> %s", v.Direction, coordString(v.Coord), v.Image)
	case Harken:
		roi := "full screen"
		if v.ROI != nil {
			roi = v.ROI.String()
		}
		return fmt.Sprintf("%s %s in %s", v.Direction, v.Image, roi)
	case Chest:
		return fmt.Sprintf("%s %d roi", v.Direction, len(v.ROIs))
	case ChestAuto:
		return "auto"
	case Press:
		parts := make([]string, 0, len(v.Fallbacks))
		for _, f := range v.Fallbacks {
			b, _ := f.MarshalJSON()
			parts = append(parts, string(b))
		}
		return fmt.Sprintf("%s fallback=[%s] delay=%gs", v.Pattern, strings.Join(parts, ", "), v.Delay)
	case Unknown:
		b, _ := json.Marshal(v.Value)
		return string(b)
	}
	return ""
}

func coordString(c *Coord) string {
	if c == nil {
		return "[-]"
	}
	return c.String()
}
