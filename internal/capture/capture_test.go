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

import (
	"testing"

	"questeditor/internal/action"
	"questeditor/internal/quest"
	"questeditor/internal/viewport"
)

func dungeonTarget(index int, f Field) Target {
	return Target{QuestID: "q", List: quest.ListDungeon, Index: index, Field: f}
}

func TestPickPositionEndToEnd(t *testing.T) {
	doc, _ := quest.Document{}.Create("q", "", quest.TypeDungeon)
	doc, _ = doc.AppendItem("q", quest.ListDungeon, action.Position{Direction: "右下", Coord: &action.Coord{}})

	c := NewController()
	tgt := dungeonTarget(0, FieldCoord)
	c.StartPick(tgt)
	surface := viewport.Rect{Left: 10, Top: 20, Width: 450, Height: 800}
	ev := c.PointerDown(viewport.ToVirtual(235, 420, surface))
	if ev.Kind != EventCommit || c.Mode() != ModeNone {
		t.Fatalf("event %v mode %s", ev.Kind, c.Mode())
	}
	next, changed, err := doc.UpdateItem("q", quest.ListDungeon, 0, func(it action.Item) (action.Item, bool) {
		return Apply(it, ev.Target, ev.Mode, ev.Result)
	})
	if err != nil || !changed {
		t.Fatalf("UpdateItem changed=%v err=%v", changed, err)
	}
	s, _ := next.Get("q")
	b, _ := s.Dungeon[0].MarshalJSON()
	if got, want := string(b), `["position","右下",[450,800]]`; got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestChestROIAppends(t *testing.T) {
	c := NewController()
	var it action.Item = action.Chest{Direction: "右下"}
	for _, drag := range [][2]viewport.Point{{{X: 10, Y: 10}, {X: 100, Y: 200}}, {{X: 300, Y: 300}, {X: 200, Y: 250}}} {
		c.StartROI(dungeonTarget(0, FieldCoord))
		c.PointerDown(drag[0])
		ev := c.PointerUp(drag[1])
		if ev.Kind != EventCommit || ev.Target.Field != FieldROI {
			t.Fatalf("event: %+v", ev)
		}
		var ok bool
		if it, ok = Apply(it, ev.Target, ev.Mode, ev.Result); !ok {
			t.Fatal("chest roi not applied")
		}
	}
	ch := it.(action.Chest)
	want := []action.ROI{{10, 10, 100, 200}, {200, 250, 300, 300}}
	if len(ch.ROIs) != 2 || ch.ROIs[0] != want[0] || ch.ROIs[1] != want[1] {
		t.Fatalf("rois: got %v want %v", ch.ROIs, want)
	}
}

func TestHarkenROIStaysSingle(t *testing.T) {
	var it action.Item = action.Harken{Direction: "右下", Image: "gate"}
	tgt := dungeonTarget(0, FieldROI)
	it, _ = Apply(it, tgt, ModeRect, QuadResult(action.ROI{1, 2, 3, 4}))
	it, _ = Apply(it, tgt, ModeRect, QuadResult(action.ROI{5, 6, 7, 8}))
	b, _ := it.MarshalJSON()
	if got, want := string(b), `["harken","右下",[[5,6,7,8]],"gate"]`; got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestStartingNewCaptureAbandonsPrevious(t *testing.T) {
	c := NewController()
	c.StartPick(dungeonTarget(0, FieldCoord))
	c.StartROI(dungeonTarget(1, FieldROI))
	if ev := c.PointerDown(viewport.Point{X: 5, Y: 5}); ev.Kind != EventNone {
		t.Fatalf("rect pointer-down committed: %+v", ev)
	}
	tgt, ok := c.Target()
	if !ok || tgt.Index != 1 || c.Mode() != ModeRect {
		t.Fatalf("target %+v mode %s", tgt, c.Mode())
	}
	c.Abort()
	if c.Mode() != ModeNone {
		t.Fatalf("after abort: %s", c.Mode())
	}
	if ev := c.PointerUp(viewport.Point{X: 50, Y: 50}); ev.Kind != EventNone {
		t.Fatalf("aborted capture produced %+v", ev)
	}
}

func TestEmptyDragKeepsModeArmed(t *testing.T) {
	c := NewController()
	c.StartROI(dungeonTarget(0, FieldROI))
	c.PointerDown(viewport.Point{X: 5, Y: 5})
	if ev := c.PointerUp(viewport.Point{X: 5, Y: 90}); ev.Kind != EventNone {
		t.Fatalf("zero-width drag committed: %+v", ev)
	}
	if c.Mode() != ModeRect {
		t.Fatalf("mode: got %s want rect", c.Mode())
	}
}

func TestCropRequestStaysPendingUntilResolved(t *testing.T) {
	c := NewController()
	c.StartCrop(dungeonTarget(0, FieldTargetPattern))
	c.PointerDown(viewport.Point{X: 0, Y: 0})
	ev := c.PointerUp(viewport.Point{X: 90, Y: 160})
	if ev.Kind != EventCropRequested || ev.Box != (viewport.Box{X: 0, Y: 0, W: 90, H: 160}) {
		t.Fatalf("event: %+v", ev)
	}
	if !c.Pending() {
		t.Fatal("crop should be pending")
	}
	if ev := c.PointerDown(viewport.Point{X: 1, Y: 1}); ev.Kind != EventNone || !c.Pending() {
		t.Fatal("pointer events must be ignored while pending")
	}
	c.Resolve()
	if c.Mode() != ModeNone || c.Pending() {
		t.Fatalf("after resolve: mode %s pending %v", c.Mode(), c.Pending())
	}
}

func TestSwipeCommitsOrLogs(t *testing.T) {
	c := NewController()
	c.StartSwipe(dungeonTarget(0, "").WithSub(1))
	c.PointerDown(viewport.Point{X: 100, Y: 800})
	ev := c.PointerUp(viewport.Point{X: 100, Y: 200})
	if ev.Kind != EventCommit || ev.Result.Text != "input swipe 100 800 100 200" {
		t.Fatalf("event: %+v", ev)
	}
	p := action.Press{Pattern: "x", Fallbacks: []action.Fallback{action.TextFallback("img")}}
	out, ok := Apply(p, ev.Target, ev.Mode, ev.Result)
	if !ok || len(out.(action.Press).Fallbacks) != 2 {
		t.Fatalf("append at len: ok=%v %+v", ok, out)
	}

	c.StartSwipe(dungeonTarget(0, FieldCoord))
	c.PointerDown(viewport.Point{X: 1, Y: 2})
	if ev := c.PointerUp(viewport.Point{X: 3, Y: 4}); ev.Kind != EventSwipeLogged || ev.Command != "input swipe 1 2 3 4" {
		t.Fatalf("logged swipe: %+v", ev)
	}
	if c.Mode() != ModeNone {
		t.Fatalf("mode: %s", c.Mode())
	}
}

func TestApplyTable(t *testing.T) {
	tap := CoordResult(action.Coord{X: 7, Y: 8})
	cases := []struct {
		name string
		it   action.Item
		tgt  Target
		mode Mode
		res  Result
		want string
		ok   bool
	}{
		{"stair coord", action.Stair{ID: "stair_1", Direction: "右上"}, dungeonTarget(0, FieldCoord), ModePick, tap, `["stair_1","右上",[7,8]]`, true},
		{"minimap coord", action.MinimapStair{Direction: "右下", Image: "f"}, dungeonTarget(0, FieldCoord), ModePick, tap, `["minimap_stair","右下",[7,8],"f"]`, true},
		{"simple tap", action.Simple{Command: "input tap 0 0"}, dungeonTarget(0, FieldCoordSimple), ModePick, tap, `["input tap 7 8"]`, true},
		{"press pattern", action.Press{Pattern: "a", Delay: 2}, dungeonTarget(0, FieldTargetPattern), ModeRect, TextResult("btn"), `["press","btn",[],2]`, true},
		{"harken image", action.Harken{Direction: "右下"}, dungeonTarget(0, FieldTargetPattern), ModeRect, TextResult("gate"), `["harken","右下",[null],"gate"]`, true},
		{"press coord fallback", action.Press{Pattern: "a", Fallbacks: []action.Fallback{action.TextFallback("x")}}, dungeonTarget(0, FieldCoordFallback).WithSub(0), ModePick, tap, `["press","a",["input tap 7 8"],0]`, true},
		{"press fallback image", action.Press{Pattern: "a", Fallbacks: []action.Fallback{action.TapAt(action.Coord{})}}, dungeonTarget(0, FieldFallbackValue).WithSub(0), ModeRect, TextResult("ok_img"), `["press","a",["ok_img"],0]`, true},
		{"simple swipe no sub", action.Simple{Command: "input tap 0 0"}, dungeonTarget(0, FieldFallbackValue), ModeSwipe, TextResult("input swipe 1 2 3 4"), `["input swipe 1 2 3 4"]`, true},
		{"sub past end", action.Press{Pattern: "a"}, dungeonTarget(0, FieldCoordFallback).WithSub(3), ModePick, tap, `["press","a",[],0]`, false},
		{"coord on chest", action.Chest{Direction: "右下"}, dungeonTarget(0, FieldCoord), ModePick, tap, `["chest","右下",null]`, false},
		{"roi on position", action.Position{Direction: "右下"}, dungeonTarget(0, FieldROI), ModeRect, QuadResult(action.ROI{1, 1, 2, 2}), `["position","右下",null]`, false},
		{"unknown untouched", action.Unknown{Value: []any{"x", "y"}}, dungeonTarget(0, FieldCoord), ModePick, tap, `["x","y"]`, false},
	}
	for _, tc := range cases {
		out, ok := Apply(tc.it, tc.tgt, tc.mode, tc.res)
		if ok != tc.ok {
			t.Errorf("%s: changed=%v want %v", tc.name, ok, tc.ok)
		}
		b, err := out.MarshalJSON()
		if err != nil {
			t.Fatalf("%s: encode: %v", tc.name, err)
		}
		if string(b) != tc.want {
			t.Errorf("%s: got %s want %s", tc.name, b, tc.want)
		}
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	orig := action.Press{Pattern: "a", Fallbacks: []action.Fallback{action.TextFallback("x")}}
	Apply(orig, dungeonTarget(0, FieldFallbackValue).WithSub(0), ModeRect, TextResult("y"))
	if orig.Fallbacks[0].Text != "x" {
		t.Fatal("input item mutated")
	}
}

func TestDefaultImageName(t *testing.T) {
	p := action.Press{Pattern: "btn", Fallbacks: []action.Fallback{action.TextFallback("alt"), action.TapAt(action.Coord{})}}
	if got := DefaultImageName(p, dungeonTarget(0, FieldTargetPattern)); got != "btn" {
		t.Fatalf("pattern: got %q", got)
	}
	if got := DefaultImageName(p, dungeonTarget(0, FieldFallbackValue).WithSub(0)); got != "alt" {
		t.Fatalf("fallback image: got %q", got)
	}
	if got := DefaultImageName(p, dungeonTarget(0, FieldFallbackValue).WithSub(-1)); got != "" {
		t.Fatalf("negative sub: got %q", got)
	}
	if got := DefaultImageName(p, dungeonTarget(0, FieldFallbackValue).WithSub(1)); got != "" {
		t.Fatalf("tap fallback: got %q", got)
	}
	if got := DefaultImageName(action.Harken{Image: "gate"}, dungeonTarget(0, FieldTargetPattern)); got != "gate" {
		t.Fatalf("harken: got %q", got)
	}
}
