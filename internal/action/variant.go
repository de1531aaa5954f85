/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package action models one step of a quest script. On disk a step is a compact
// JSON tuple whose head element and arity select its variant; in memory it is a
// closed set of Go types, one per variant, with polymorphic legacy slots
// (scalar-or-list fallbacks, single-or-multi ROI) normalized to list form.
package action

import "strings"

// Variant names the kind of an action item.
type Variant string

const (
	VariantSimple       Variant = "simple"
	VariantPosition     Variant = "position"
	VariantStair        Variant = "stair"
	VariantMinimapStair Variant = "minimap_stair"
	VariantHarken       Variant = "harken"
	VariantChest        Variant = "chest"
	VariantChestAuto    Variant = "chest_auto"
	VariantPress        Variant = "press"
	VariantUnknown      Variant = "unknown"
)

// Variants lists every editable variant in the order the editor offers them.
var Variants = []Variant{
	VariantPosition,
	VariantStair,
	VariantMinimapStair,
	VariantHarken,
	VariantChest,
	VariantChestAuto,
	VariantPress,
	VariantSimple,
}

// Head values of tagged tuples.
const (
	headPress        = "press"
	headChestAuto    = "chest_auto"
	headHarken       = "harken"
	headPosition     = "position"
	headMinimapStair = "minimap_stair"
	headChest        = "chest"
	stairPrefix      = "stair"
)

// Classify returns the variant of a decoded JSON value. The checks run in a
// fixed priority order so "position" and "minimap_stair" are never taken for
// stair ids. It never fails; unmatched shapes are VariantUnknown.
func Classify(v any) Variant {
	tuple, ok := v.([]any)
	if !ok || len(tuple) == 0 {
		return VariantUnknown
	}
	head, ok := tuple[0].(string)
	if !ok {
		return VariantUnknown
	}
	switch {
	case head == headPress:
		return VariantPress
	case head == headChestAuto:
		return VariantChestAuto
	case head == headHarken:
		return VariantHarken
	case head == headPosition:
		return VariantPosition
	case head == headMinimapStair:
		return VariantMinimapStair
	case strings.HasPrefix(head, stairPrefix):
		return VariantStair
	case head == headChest:
		return VariantChest
	case len(tuple) == 1:
		return VariantSimple
	default:
		return VariantUnknown
	}
}

// ClassifyJSON classifies a raw JSON tuple; invalid JSON is VariantUnknown.
func ClassifyJSON(data []byte) Variant {
	v, err := decodeValue(data)
	if err != nil {
		return VariantUnknown
	}
	return Classify(v)
}

// IsCoordinatePair reports whether v is exactly two numbers.
func IsCoordinatePair(v any) bool { return isNumberList(v, 2) }

// IsRoiQuad reports whether v is exactly four numbers.
func IsRoiQuad(v any) bool { return isNumberList(v, 4) }

func isNumberList(v any, n int) bool {
	list, ok := v.([]any)
	if !ok || len(list) != n {
		return false
	}
	for _, e := range list {
		if _, ok := asNumber(e); !ok {
			return false
		}
	}
	return true
}
