/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"math"
	"strings"
	"testing"

	"questeditor/internal/action"
	"questeditor/internal/capture"
)

func almostEqual(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestFitMirror_TallArea(t *testing.T) {
	r := FitMirror(450, 1000)
	if !almostEqual(r.Width, 450, 0.01) || !almostEqual(r.Height, 800, 0.01) {
		t.Fatalf("size: got %vx%v want 450x800", r.Width, r.Height)
	}
	if !almostEqual(r.Left, 0, 0.01) || !almostEqual(r.Top, 100, 0.01) {
		t.Fatalf("origin: got (%v,%v) want (0,100)", r.Left, r.Top)
	}
}

func TestFitMirror_WideArea(t *testing.T) {
	r := FitMirror(1000, 800)
	if !almostEqual(r.Width, 450, 0.01) || !almostEqual(r.Height, 800, 0.01) {
		t.Fatalf("size: got %vx%v want 450x800", r.Width, r.Height)
	}
	if !almostEqual(r.Left, 275, 0.01) || r.Top != 0 {
		t.Fatalf("origin: got (%v,%v) want (275,0)", r.Left, r.Top)
	}
}

func TestFitMirror_Empty(t *testing.T) {
	if r := FitMirror(0, 100); !r.Empty() {
		t.Fatalf("expected empty rect, got %+v", r)
	}
}

func TestCaptureChoices_Press(t *testing.T) {
	p := action.Press{Pattern: "ok", Fallbacks: []action.Fallback{action.TextFallback("input tap 1 2")}}
	got := captureChoices(p)
	if len(got) != 5 {
		t.Fatalf("choices: got %d want 5", len(got))
	}
	last := got[len(got)-1]
	if last.Field != capture.FieldCoordFallback || last.Sub == nil || *last.Sub != 1 {
		t.Fatalf("append choice: got %+v", last)
	}
}

func TestCaptureChoices_ChestAutoHasNone(t *testing.T) {
	if got := captureChoices(action.ChestAuto{}); len(got) != 0 {
		t.Fatalf("chest_auto choices: got %v", got)
	}
}

func TestItemRow(t *testing.T) {
	row := itemRow(2, action.Position{Direction: "右下", Coord: &action.Coord{X: 1, Y: 2}})
	if !strings.HasPrefix(row, "2. [position]") || !strings.Contains(row, "[1, 2]") {
		t.Fatalf("row: got %q", row)
	}
}
