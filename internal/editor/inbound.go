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
	"encoding/json"
	"fmt"
	"log/slog"

	"questeditor/internal/capture"
	"questeditor/internal/channel"
	"questeditor/internal/quest"
)

// Handle applies one message from the device service.
func (s *Session) Handle(in channel.Inbound) {
	switch in.Kind {
	case channel.KindFrame:
		s.frame = in.Frame
		if s.opts.OnFrame != nil {
			s.opts.OnFrame(in.Frame)
		}
		return
	case channel.KindConnected:
		s.log.Info("connected to device service")
		for _, o := range []channel.Outbound{channel.LoadQuest(), channel.ListImages()} {
			if err := s.ch.Send(o); err != nil {
				s.log.Warn("initial request failed", slog.String("cmd", o.Cmd), slog.Any("err", err))
			}
		}
	case channel.KindDisconnected:
		s.log.Warn("disconnected from device service")
	case channel.KindLog:
		s.log.Info("device: " + in.Message)
	case channel.KindQuest:
		s.loadQuest(in.Data)
	case channel.KindImageList:
		s.setImages(in.Images)
		s.log.Debug("image list received", slog.Int("count", len(in.Images)))
	case channel.KindImageData:
		if b := in.ImageBytes(); b != "" && in.Filename != "" {
			s.cache.Put(in.Filename, b)
		}
	case channel.KindImageSaved:
		var t capture.Target
		if len(in.CaptureTarget) > 0 && string(in.CaptureTarget) != "null" {
			if err := json.Unmarshal(in.CaptureTarget, &t); err != nil {
				s.log.Warn("image saved with unreadable target", slog.String("file", in.Filename), slog.Any("err", err))
				return
			}
		}
		s.imageSaved(in.Filename, t)
	case channel.KindSaved:
		s.log.Info("device saved quest document " + in.Path)
	case channel.KindError:
		s.log.Error("device error: " + in.Message)
	default:
		s.log.Warn("unknown message from device ignored", slog.String("type", in.Type))
		return
	}
	s.changed()
}

// loadQuest replaces the document with one sent by the device. A malformed
// document is reported and leaves the current one in place.
func (s *Session) loadQuest(data []byte) {
	d, err := quest.Import(data)
	if err != nil {
		s.log.Error("load quest document failed", slog.Any("err", err))
		return
	}
	s.replaceDocument(d)
	s.log.Info(fmt.Sprintf("loaded %d quests from device", d.Len()))
}

// Import replaces the document with data, e.g. from a file picked by the
// operator. Map and legacy array forms are accepted.
func (s *Session) Import(data []byte) error {
	d, err := quest.Import(data)
	if err != nil {
		s.log.Error("import failed", slog.Any("err", err))
		return err
	}
	s.replaceDocument(d)
	s.dirty = true
	s.log.Info(fmt.Sprintf("imported %d quests", d.Len()))
	s.changed()
	return nil
}

// Export returns the document in map form.
func (s *Session) Export() ([]byte, error) { return quest.Export(s.doc) }
