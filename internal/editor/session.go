/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package editor owns one editing session: the quest document, the capture
// controller, undo history and the device channel glue. All state is owned by
// the goroutine running Session.Run; other goroutines hand work to it with Do.
package editor

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"questeditor/internal/capture"
	"questeditor/internal/channel"
	"questeditor/internal/imagecache"
	applog "questeditor/internal/log"
	"questeditor/internal/quest"
	"questeditor/internal/storage"
	"questeditor/internal/undo"
)

// Namer asks the operator for an image name. AskName must not block; reply
// may be called later from any goroutine, with ok false on cancel.
type Namer interface {
	AskName(defaultName string, reply func(name string, ok bool))
}

// Options wires a Session. Nil fields get working defaults: an offline
// channel, no workspace, default history and cache sizes.
type Options struct {
	Channel     channel.Channel
	Workspace   *storage.Workspace
	Namer       Namer
	History     *undo.History
	Images      *imagecache.Cache
	Feed        *applog.Feed
	BackupsKeep int
	// OnChange runs on the session goroutine after state visible to the UI changed.
	OnChange func()
	// OnFrame runs on the session goroutine for each mirror frame.
	OnFrame func(frame []byte)
	Now     func() time.Time
}

// Session is not safe for concurrent use; see the package comment.
type Session struct {
	opts    Options
	ch      channel.Channel
	log     *slog.Logger
	feed    *applog.Feed
	history *undo.History
	cache   *imagecache.Cache
	now     func() time.Time

	doc    quest.Document
	active string
	tab    quest.ListKind
	dirty  bool

	ctl     *capture.Controller
	crop    *cropJob
	pending *channel.Pending[capture.Target]

	frame  []byte
	images []string

	ops chan func()
}

func New(opts Options) *Session {
	s := &Session{
		opts:    opts,
		ch:      opts.Channel,
		feed:    opts.Feed,
		history: opts.History,
		cache:   opts.Images,
		now:     opts.Now,
		tab:     quest.ListDungeon,
		ctl:     capture.NewController(),
		pending: channel.NewPending[capture.Target](),
		ops:     make(chan func(), 64),
	}
	if s.ch == nil {
		s.ch = channel.Offline{}
	}
	if s.feed == nil {
		s.feed = applog.NewFeed(applog.DefaultFeedSize, slog.LevelInfo)
	}
	if s.history == nil {
		s.history = undo.NewHistory(undo.Config{})
	}
	if s.cache == nil {
		s.cache, _ = imagecache.New(imagecache.DefaultSize)
	}
	if s.now == nil {
		s.now = time.Now
	}
	base := applog.WithComponent("editor")
	s.log = slog.New(applog.Tee(base.Handler(), s.feed.Handler()))
	if opts.Workspace != nil {
		s.replaceDocument(opts.Workspace.Document)
	}
	return s
}

// Do schedules fn on the session goroutine. It blocks while the queue is full
// and gives up when ctx ends.
func (s *Session) Do(ctx context.Context, fn func()) bool {
	select {
	case s.ops <- fn:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run serves posted closures and inbound channel messages until ctx ends.
func (s *Session) Run(ctx context.Context) error {
	in := s.ch.Inbound()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.ops:
			fn()
		case msg, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			s.Handle(msg)
		}
	}
}

// drain runs queued closures without blocking.
func (s *Session) drain() {
	for {
		select {
		case fn := <-s.ops:
			fn()
		default:
			return
		}
	}
}

func (s *Session) post(fn func()) {
	select {
	case s.ops <- fn:
	default:
		// queue full: hand off without blocking the caller
		go func() { s.ops <- fn }()
	}
}

func (s *Session) changed() {
	if s.opts.OnChange != nil {
		s.opts.OnChange()
	}
}

// Document returns the current document snapshot.
func (s *Session) Document() quest.Document { return s.doc }

// Active returns the selected quest id, "" when the document is empty.
func (s *Session) Active() string { return s.active }

// Tab returns the selected item list.
func (s *Session) Tab() quest.ListKind { return s.tab }

// Dirty reports whether the document changed since it was loaded or saved.
func (s *Session) Dirty() bool { return s.dirty }

// Controller exposes the capture state for drawing previews.
func (s *Session) Controller() *capture.Controller { return s.ctl }

// Feed returns the status feed.
func (s *Session) Feed() *applog.Feed { return s.feed }

// Frame returns the newest mirror frame, nil before the first one.
func (s *Session) Frame() []byte { return s.frame }

// Images returns the image names last listed by the device service.
func (s *Session) Images() []string { return append([]string(nil), s.images...) }

// Connected reports whether the device service is reachable.
func (s *Session) Connected() bool { return s.ch.Connected() }

// Workspace returns the backing workspace holding the current document, or
// nil when the session has none. Used by crash recovery.
func (s *Session) Workspace() *storage.Workspace {
	if s.opts.Workspace == nil {
		return nil
	}
	ws := *s.opts.Workspace
	ws.Document = s.doc
	return &ws
}

// replaceDocument swaps in a loaded document, selecting its first quest.
func (s *Session) replaceDocument(d quest.Document) {
	s.abortCapture()
	s.doc = d
	s.active = d.First()
	s.dirty = false
	s.history.Clear()
}

func (s *Session) setImages(names []string) {
	s.images = append([]string(nil), names...)
	sort.Strings(s.images)
}
