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
	"log/slog"

	"questeditor/internal/action"
	applog "questeditor/internal/log"
	"questeditor/internal/viewport"
)

// EventKind classifies what a gesture produced.
type EventKind int

const (
	EventNone EventKind = iota
	// EventCommit carries a Result to merge into the target.
	EventCommit
	// EventCropRequested asks the owner to crop Box from the frame and run the naming flow.
	EventCropRequested
	// EventSwipeLogged reports a swipe recorded without a field to write.
	EventSwipeLogged
)

// Event is the outcome of a pointer gesture.
type Event struct {
	Kind    EventKind
	Mode    Mode
	Target  Target
	Result  Result
	Box     viewport.Box
	Command string
}

// Controller is the capture state machine. It is not safe for concurrent use;
// the editor session drives it from its own goroutine.
type Controller struct {
	mode    Mode
	target  Target
	origin  *viewport.Point
	last    viewport.Point
	pending bool
	log     *slog.Logger
}

func NewController() *Controller {
	return &Controller{log: applog.WithComponent("capture")}
}

func (c *Controller) Mode() Mode { return c.mode }

// Target returns the armed target; ok is false in ModeNone.
func (c *Controller) Target() (Target, bool) {
	if c.mode == ModeNone {
		return Target{}, false
	}
	return c.target, true
}

// Pending reports whether a crop is waiting for Resolve or Abort.
func (c *Controller) Pending() bool { return c.pending }

// Selection returns the drag rectangle in progress, for drawing a preview.
func (c *Controller) Selection() (viewport.Box, bool) {
	if c.origin == nil || c.pending {
		return viewport.Box{}, false
	}
	return viewport.DragBox(*c.origin, c.last), true
}

func (c *Controller) arm(m Mode, t Target) {
	if c.mode != ModeNone {
		c.log.Debug("capture abandoned", slog.String("mode", c.mode.String()), slog.String("target", c.target.String()))
	}
	c.mode = m
	c.target = t
	c.origin = nil
	c.pending = false
	c.log.Debug("capture armed", slog.String("mode", m.String()), slog.String("target", t.String()))
}

// StartPick arms a single-point capture.
func (c *Controller) StartPick(t Target) { c.arm(ModePick, t) }

// StartCrop arms a rectangle capture that ends in the image-crop flow.
func (c *Controller) StartCrop(t Target) { c.arm(ModeRect, t) }

// StartROI arms a rectangle capture written as a region of interest.
func (c *Controller) StartROI(t Target) {
	t.Field = FieldROI
	c.arm(ModeRect, t)
}

// StartSwipe arms a swipe recording written as a fallback command.
func (c *Controller) StartSwipe(t Target) {
	if t.Field == "" {
		t.Field = FieldFallbackValue
	}
	c.arm(ModeSwipe, t)
}

// Abort discards the armed capture without committing anything.
func (c *Controller) Abort() {
	if c.mode != ModeNone {
		c.log.Debug("capture aborted", slog.String("mode", c.mode.String()))
	}
	c.reset()
}

// Resolve ends a pending crop once the naming flow finished or was cancelled.
func (c *Controller) Resolve() {
	if c.pending {
		c.reset()
	}
}

func (c *Controller) reset() {
	c.mode = ModeNone
	c.target = Target{}
	c.origin = nil
	c.pending = false
}

func (c *Controller) PointerDown(p viewport.Point) Event {
	if c.pending {
		return Event{}
	}
	switch c.mode {
	case ModePick:
		ev := Event{Kind: EventCommit, Mode: ModePick, Target: c.target, Result: CoordResult(action.Coord{X: p.X, Y: p.Y})}
		c.reset()
		return ev
	case ModeRect, ModeSwipe:
		c.origin = &p
		c.last = p
	}
	return Event{}
}

// PointerMove updates the drag preview; it reports whether a drag is active.
func (c *Controller) PointerMove(p viewport.Point) bool {
	if c.origin == nil || c.pending {
		return false
	}
	c.last = p
	return true
}

func (c *Controller) PointerUp(p viewport.Point) Event {
	if c.origin == nil || c.pending {
		return Event{}
	}
	origin := *c.origin
	c.origin = nil
	switch c.mode {
	case ModeRect:
		box := viewport.DragBox(origin, p)
		if box.Empty() {
			return Event{}
		}
		if c.target.Field == FieldROI {
			ev := Event{Kind: EventCommit, Mode: ModeRect, Target: c.target, Result: QuadResult(action.ROI(box.Quad())), Box: box}
			c.reset()
			return ev
		}
		c.pending = true
		return Event{Kind: EventCropRequested, Mode: ModeRect, Target: c.target, Box: box}
	case ModeSwipe:
		cmd := action.SwipeCommand(action.Coord{X: origin.X, Y: origin.Y}, action.Coord{X: p.X, Y: p.Y})
		ev := Event{Mode: ModeSwipe, Target: c.target, Command: cmd}
		if c.target.Field == FieldFallbackValue {
			ev.Kind = EventCommit
			ev.Result = TextResult(cmd)
		} else {
			ev.Kind = EventSwipeLogged
		}
		c.reset()
		return ev
	}
	return Event{}
}
