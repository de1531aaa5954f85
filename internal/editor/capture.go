/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"questeditor/internal/action"
	"questeditor/internal/capture"
	"questeditor/internal/channel"
	"questeditor/internal/crop"
	"questeditor/internal/quest"
	"questeditor/internal/storage"
	"questeditor/internal/viewport"
)

// cropJob is a cropped image waiting for its name.
type cropJob struct {
	target capture.Target
	png    []byte
}

// target addresses field of item index in the selected list.
func (s *Session) target(index int, field capture.Field, sub *int) (capture.Target, error) {
	if err := s.requireActive(); err != nil {
		return capture.Target{}, err
	}
	if _, err := s.doc.Item(s.active, s.tab, index); err != nil {
		return capture.Target{}, err
	}
	t := capture.Target{QuestID: s.active, List: s.tab, Index: index, Field: field}
	if sub != nil {
		if *sub < 0 {
			return capture.Target{}, fmt.Errorf("sub index %d: %w", *sub, quest.ErrNoItem)
		}
		t = t.WithSub(*sub)
	}
	return t, nil
}

// StartCapture arms the controller for field of item index in the selected
// list. Rect mode with the roi field captures a region; rect mode with any
// other field captures an image crop.
func (s *Session) StartCapture(mode capture.Mode, index int, field capture.Field, sub *int) error {
	t, err := s.target(index, field, sub)
	if err != nil {
		return s.reject("start capture", err)
	}
	s.crop = nil
	switch mode {
	case capture.ModePick:
		s.ctl.StartPick(t)
	case capture.ModeRect:
		if field == capture.FieldROI {
			s.ctl.StartROI(t)
		} else {
			s.ctl.StartCrop(t)
		}
	case capture.ModeSwipe:
		s.ctl.StartSwipe(t)
	default:
		s.ctl.Abort()
	}
	s.changed()
	return nil
}

// AbortCapture cancels the armed capture, including a crop waiting for its name.
func (s *Session) AbortCapture() {
	s.abortCapture()
	s.changed()
}

func (s *Session) abortCapture() {
	s.crop = nil
	s.ctl.Abort()
}

// PointerDown, PointerMove and PointerUp take UI pixel positions over the
// mirror whose on-screen bounds are r.
func (s *Session) PointerDown(x, y float64, r viewport.Rect) {
	s.handleEvent(s.ctl.PointerDown(viewport.ToVirtual(x, y, r)))
}

func (s *Session) PointerMove(x, y float64, r viewport.Rect) {
	if s.ctl.PointerMove(viewport.ToVirtual(x, y, r)) {
		s.changed()
	}
}

func (s *Session) PointerUp(x, y float64, r viewport.Rect) {
	s.handleEvent(s.ctl.PointerUp(viewport.ToVirtual(x, y, r)))
}

func (s *Session) handleEvent(ev capture.Event) {
	switch ev.Kind {
	case capture.EventCommit:
		s.applyCapture("capture", ev.Target, ev.Mode, ev.Result)
	case capture.EventCropRequested:
		s.startCrop(ev.Target, ev.Box)
	case capture.EventSwipeLogged:
		s.log.Info("swipe recorded", slog.String("cmd", ev.Command))
	default:
		return
	}
	s.changed()
}

// applyCapture merges r into the item t addresses, which may live in any
// quest and list. A stale target or a field the variant lacks is a no-op.
func (s *Session) applyCapture(label string, t capture.Target, mode capture.Mode, r capture.Result) bool {
	next, changed, err := s.doc.UpdateItem(t.QuestID, t.List, t.Index, func(it action.Item) (action.Item, bool) {
		return capture.Apply(it, t, mode, r)
	})
	switch {
	case err != nil && stale(err):
		s.log.Warn("capture target no longer exists", slog.String("target", t.String()))
		return false
	case err != nil:
		s.log.Error("capture commit failed", slog.Any("err", err))
		return false
	case !changed:
		s.log.Warn("capture does not apply to this item", slog.String("target", t.String()), slog.String("value", r.String()))
		return false
	}
	s.commit(label, next)
	s.log.Debug("capture committed", slog.String("target", t.String()), slog.String("value", r.String()))
	return true
}

func (s *Session) startCrop(t capture.Target, box viewport.Box) {
	if s.frame == nil {
		s.log.Warn("no frame to crop")
		s.ctl.Resolve()
		return
	}
	png, err := s.cropPNG(box)
	if err != nil {
		s.log.Warn("crop failed", slog.Any("err", err))
		s.ctl.Resolve()
		return
	}
	current := ""
	if it, err := s.doc.Item(t.QuestID, t.List, t.Index); err == nil {
		current = capture.DefaultImageName(it, t)
	}
	def := crop.DefaultName(current, s.now())
	if s.opts.Namer == nil {
		s.finishCrop(&cropJob{target: t, png: png}, def, true)
		return
	}
	job := &cropJob{target: t, png: png}
	s.crop = job
	s.opts.Namer.AskName(def, func(name string, ok bool) {
		s.post(func() { s.finishCrop(job, name, ok) })
	})
}

func (s *Session) cropPNG(box viewport.Box) ([]byte, error) {
	frame, err := crop.DecodeFrame(s.frame)
	if err != nil {
		return nil, err
	}
	img, err := crop.Region(frame, box)
	if err != nil {
		return nil, err
	}
	return crop.EncodePNG(img)
}

// finishCrop commits the chosen name and saves the image. A reply for a crop
// that was abandoned in the meantime is dropped.
func (s *Session) finishCrop(job *cropJob, name string, ok bool) {
	if s.opts.Namer != nil {
		if s.crop != job {
			s.log.Debug("stale crop reply ignored")
			return
		}
		s.crop = nil
	}
	s.ctl.Resolve()
	defer s.changed()
	name = strings.TrimSpace(name)
	if !ok || crop.DisplayName(name) == "" {
		s.log.Info("crop cancelled")
		return
	}
	filename := crop.CanonicalName(name)
	display := crop.DisplayName(filename)
	s.applyCapture("capture image", job.target, capture.ModeRect, capture.TextResult(display))
	b64 := base64.StdEncoding.EncodeToString(job.png)
	s.cache.Put(display, b64)
	s.saveImage(job.target, filename, b64, job.png)
}

func (s *Session) saveImage(t capture.Target, filename, b64 string, png []byte) {
	t.Token = s.pending.Add(t)
	msg, err := channel.SaveImage(filename, b64, t)
	if err == nil {
		err = s.ch.Send(msg)
	}
	if err == nil {
		s.log.Info("image sent to device", slog.String("file", filename))
		return
	}
	s.pending.Drop(t.Token)
	if !errors.Is(err, channel.ErrUnavailable) {
		s.log.Error("send image failed", slog.Any("err", err))
	}
	if s.opts.Workspace == nil {
		s.log.Warn("device unavailable, image not saved", slog.String("file", filename))
		return
	}
	rel, lerr := storage.SaveImage(s.opts.Workspace, filename, png)
	if lerr != nil {
		s.log.Error("save image locally failed", slog.Any("err", lerr))
		return
	}
	s.log.Warn(fmt.Sprintf("device unavailable, image saved locally as %s", rel))
}

// imageSaved commits the name the device stored an image under. The target
// recorded when the image was sent wins over the echoed one; the echo is only
// used for tokens this session never issued.
func (s *Session) imageSaved(filename string, echoed capture.Target) {
	t := echoed
	if stored, ok := s.pending.Take(echoed.Token); ok {
		t = stored
	} else if echoed.QuestID != "" {
		s.log.Debug("image saved with unknown token, using echoed target",
			slog.String("token", echoed.Token), slog.String("target", echoed.String()))
	}
	if t.QuestID == "" || !t.List.Valid() {
		s.log.Info("device saved image " + filename)
		return
	}
	display := crop.DisplayName(filename)
	if s.applyCapture("image saved", t, capture.ModeRect, capture.TextResult(display)) {
		s.log.Info("device saved image " + filename)
	}
}

// RequestImage returns cached base64 bytes of name, asking the device for
// them on a miss; the answer arrives later as an image_data message.
func (s *Session) RequestImage(name string) (string, bool) {
	if b, ok := s.cache.Get(name); ok {
		return b, true
	}
	if err := s.ch.Send(channel.GetImage(name)); err != nil && s.opts.Workspace != nil {
		if b, lerr := storage.ReadImage(s.opts.Workspace, name); lerr == nil {
			b64 := base64.StdEncoding.EncodeToString(b)
			s.cache.Put(name, b64)
			return b64, true
		}
	}
	return "", false
}

// Replay sends the device commands that perform item index of the selected list.
func (s *Session) Replay(index int) error {
	it, err := s.doc.Item(s.active, s.tab, index)
	if err != nil {
		return s.reject("replay", err)
	}
	plan, err := action.ReplayPlan(it)
	if err != nil {
		s.log.Info("nothing to replay", slog.Any("err", err))
		return err
	}
	if !s.ch.Connected() {
		s.log.Warn("connect to the device to replay")
		return channel.ErrUnavailable
	}
	for _, step := range plan {
		msg := channel.Command(step.Command)
		if step.ClickImage != "" {
			msg = channel.ClickImage(step.ClickImage)
		}
		if err := s.ch.Send(msg); err != nil {
			s.log.Warn("replay interrupted", slog.Any("err", err))
			return err
		}
		s.log.Info("sent " + step.String())
	}
	return nil
}

// Save sends the document to the device service, or writes it to the local
// workspace when the service is unavailable.
func (s *Session) Save() error {
	data, err := quest.Export(s.doc)
	if err != nil {
		s.log.Error("encode quest document failed", slog.Any("err", err))
		return err
	}
	serr := s.ch.Send(channel.SaveQuest(data))
	if serr == nil {
		s.dirty = false
		s.log.Info("quest document sent to device")
		s.changed()
		return nil
	}
	if s.opts.Workspace == nil {
		s.log.Warn("device unavailable, document not saved", slog.Any("err", serr))
		return serr
	}
	ws := s.Workspace()
	if err := storage.Save(ws); err != nil {
		s.log.Error("save locally failed", slog.Any("err", err))
		return err
	}
	if _, err := storage.PruneBackups(ws.Root, s.opts.BackupsKeep); err != nil {
		s.log.Warn("prune backups failed", slog.Any("err", err))
	}
	s.opts.Workspace.Document = s.doc
	s.dirty = false
	s.log.Warn("device unavailable, document saved locally to " + ws.QuestPath)
	s.changed()
	return nil
}
