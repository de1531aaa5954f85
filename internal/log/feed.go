/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package log

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultFeedSize is the number of status lines a Feed keeps.
const DefaultFeedSize = 200

// Line is one user-visible status message.
type Line struct {
	Time  time.Time
	Level slog.Level
	Text  string
}

func (l Line) String() string {
	return fmt.Sprintf("%s %s %s", l.Time.Format("15:04:05"), levelString(l.Level), l.Text)
}

// Feed is a bounded ring of status lines fed through slog. Records at or
// above the feed level become lines: the message, followed by the value of
// the "err" attribute when present. Other attributes stay in the log only.
type Feed struct {
	mu     sync.Mutex
	lines  []Line
	next   int
	full   bool
	level  slog.Level
	notify func(Line)
}

// NewFeed returns a Feed holding at most size lines (DefaultFeedSize when size <= 0).
func NewFeed(size int, level slog.Level) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{lines: make([]Line, size), level: level}
}

// OnLine registers fn to be called for every new line. fn runs on the
// logging goroutine and must not block.
func (f *Feed) OnLine(fn func(Line)) {
	f.mu.Lock()
	f.notify = fn
	f.mu.Unlock()
}

// Lines returns the kept lines, oldest first.
func (f *Feed) Lines() []Line {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.full {
		return append([]Line(nil), f.lines[:f.next]...)
	}
	out := make([]Line, 0, len(f.lines))
	out = append(out, f.lines[f.next:]...)
	return append(out, f.lines[:f.next]...)
}

// Last returns the newest line.
func (f *Feed) Last() (Line, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.full && f.next == 0 {
		return Line{}, false
	}
	i := f.next - 1
	if i < 0 {
		i = len(f.lines) - 1
	}
	return f.lines[i], true
}

func (f *Feed) add(l Line) {
	f.mu.Lock()
	f.lines[f.next] = l
	f.next++
	if f.next == len(f.lines) {
		f.next = 0
		f.full = true
	}
	fn := f.notify
	f.mu.Unlock()
	if fn != nil {
		fn(l)
	}
}

// Handler returns the slog.Handler side of the feed.
func (f *Feed) Handler() slog.Handler { return &feedHandler{f: f} }

type feedHandler struct {
	f   *Feed
	err string // "err" bound through WithAttrs
}

func (h *feedHandler) Enabled(_ context.Context, level slog.Level) bool { return level >= h.f.level }

func (h *feedHandler) Handle(_ context.Context, r slog.Record) error {
	text := r.Message
	errText := h.err
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "err" {
			errText = a.Value.Resolve().String()
			return false
		}
		return true
	})
	if errText != "" {
		text += ": " + errText
	}
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	h.f.add(Line{Time: ts, Level: r.Level, Text: text})
	return nil
}

func (h *feedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	for _, a := range attrs {
		if a.Key == "err" {
			nh.err = a.Value.Resolve().String()
		}
	}
	return &nh
}

func (h *feedHandler) WithGroup(string) slog.Handler { return h }
