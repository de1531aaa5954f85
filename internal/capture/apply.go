/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package capture

import "questeditor/internal/action"

// Apply merges r into it for target field t.Field and reports whether the item
// changed. Combinations of field and variant that have no rule, and sub-indexes
// past the end of the fallback list, leave it untouched.
func Apply(it action.Item, t Target, mode Mode, r Result) (action.Item, bool) {
	switch t.Field {
	case FieldCoord:
		if r.Kind != ResultCoord {
			return it, false
		}
		return setCoord(it, r.Coord)
	case FieldCoordSimple:
		s, ok := it.(action.Simple)
		if !ok || r.Kind != ResultCoord {
			return it, false
		}
		s.Command = action.TapCommand(r.Coord)
		return s, true
	case FieldROI:
		if r.Kind != ResultQuad {
			return it, false
		}
		return setROI(it, r.ROI)
	case FieldTargetPattern:
		if r.Kind != ResultText {
			return it, false
		}
		return setImage(it, r.Text)
	case FieldCoordFallback:
		p, ok := it.(action.Press)
		i, hasSub := t.Sub()
		if !ok || !hasSub || r.Kind != ResultCoord {
			return it, false
		}
		out, ok := p.WithFallback(i, action.TextFallback(action.TapCommand(r.Coord)))
		if !ok {
			return it, false
		}
		return out, true
	case FieldFallbackValue:
		return setFallbackValue(it, t, mode, r)
	}
	return it, false
}

func setCoord(it action.Item, c action.Coord) (action.Item, bool) {
	switch v := action.Clone(it).(type) {
	case action.Position:
		v.Coord = &c
		return v, true
	case action.Stair:
		v.Coord = &c
		return v, true
	case action.MinimapStair:
		v.Coord = &c
		return v, true
	}
	return it, false
}

func setROI(it action.Item, r action.ROI) (action.Item, bool) {
	switch v := it.(type) {
	case action.Harken:
		v = action.Clone(v).(action.Harken)
		v.ROI = &r
		return v, true
	case action.Chest:
		return v.WithROI(r), true
	}
	return it, false
}

func setImage(it action.Item, name string) (action.Item, bool) {
	switch v := action.Clone(it).(type) {
	case action.Press:
		v.Pattern = name
		return v, true
	case action.MinimapStair:
		v.Image = name
		return v, true
	case action.Harken:
		v.Image = name
		return v, true
	}
	return it, false
}

func setFallbackValue(it action.Item, t Target, mode Mode, r Result) (action.Item, bool) {
	i, hasSub := t.Sub()
	if !hasSub {
		s, ok := it.(action.Simple)
		if !ok || mode != ModeSwipe || r.Kind != ResultText {
			return it, false
		}
		s.Command = r.Text
		return s, true
	}
	p, ok := it.(action.Press)
	if !ok {
		return it, false
	}
	var f action.Fallback
	switch r.Kind {
	case ResultCoord:
		f = action.TapAt(r.Coord)
	case ResultText:
		f = action.TextFallback(r.Text)
	default:
		return it, false
	}
	out, ok := p.WithFallback(i, f)
	if !ok {
		return it, false
	}
	return out, true
}

// DefaultImageName returns the image name currently stored at the field the
// target addresses, or "" when the field holds no image name.
func DefaultImageName(it action.Item, t Target) string {
	switch v := it.(type) {
	case action.Press:
		if t.Field == FieldFallbackValue {
			if i, ok := t.Sub(); ok && i >= 0 && i < len(v.Fallbacks) && v.Fallbacks[i].Kind() == action.FallbackImage {
				return v.Fallbacks[i].Text
			}
			return ""
		}
		return v.Pattern
	case action.Harken:
		return v.Image
	case action.MinimapStair:
		return v.Image
	}
	return ""
}
