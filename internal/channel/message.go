/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package channel talks to the device service: it sends replay and save
// commands and delivers frames, acknowledgements and log lines back.
package channel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable is returned by Send when no device service is connected.
var ErrUnavailable = errors.New("device service unavailable")

// Command names understood by the device service.
const (
	CmdLoadQuest  = "load_quest"
	CmdListImages = "list_images"
	CmdGetImage   = "get_image"
	CmdSaveImage  = "save_image"
	CmdSaveQuest  = "save_quest"
	CmdClickImage = "click_image"
)

// Outbound is one message for the device service. Raw device commands travel
// as plain text; everything else is a JSON object.
type Outbound struct {
	Cmd           string          `json:"cmd"`
	Filename      string          `json:"filename,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	CaptureTarget json.RawMessage `json:"captureTarget,omitempty"`

	raw string
}

func LoadQuest() Outbound          { return Outbound{Cmd: CmdLoadQuest} }
func ListImages() Outbound         { return Outbound{Cmd: CmdListImages} }
func GetImage(name string) Outbound { return Outbound{Cmd: CmdGetImage, Filename: name} }
func ClickImage(name string) Outbound {
	return Outbound{Cmd: CmdClickImage, Filename: name}
}

// SaveQuest carries the whole quest document in map form.
func SaveQuest(doc []byte) Outbound { return Outbound{Cmd: CmdSaveQuest, Data: json.RawMessage(doc)} }

// SaveImage carries a base64 PNG and the capture target the service echoes back.
func SaveImage(name, base64PNG string, target any) (Outbound, error) {
	data, err := json.Marshal(base64PNG)
	if err != nil {
		return Outbound{}, err
	}
	o := Outbound{Cmd: CmdSaveImage, Filename: name, Data: data}
	if target != nil {
		t, err := json.Marshal(target)
		if err != nil {
			return Outbound{}, fmt.Errorf("encode capture target: %w", err)
		}
		o.CaptureTarget = t
	}
	return o, nil
}

// Command is a raw device command such as "input tap 10 20".
func Command(cmd string) Outbound { return Outbound{raw: cmd} }

// IsCommand reports whether o is a raw device command.
func (o Outbound) IsCommand() bool { return o.raw != "" }

func (o Outbound) String() string {
	if o.raw != "" {
		return o.raw
	}
	if o.Filename != "" {
		return o.Cmd + " " + o.Filename
	}
	return o.Cmd
}

// Encode returns the text frame payload.
func (o Outbound) Encode() ([]byte, error) {
	if o.raw != "" {
		return []byte(o.raw), nil
	}
	if o.Cmd == "" {
		return nil, fmt.Errorf("outbound message has no command")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(o); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Kind classifies an inbound message.
type Kind int

const (
	KindUnknown Kind = iota
	KindFrame
	KindLog
	KindQuest
	KindImageList
	KindImageData
	KindImageSaved
	KindSaved
	KindError
	// KindConnected and KindDisconnected are produced by the client itself.
	KindConnected
	KindDisconnected
)

var kindNames = map[string]Kind{
	"log":         KindLog,
	"quest":       KindQuest,
	"image_list":  KindImageList,
	"image_data":  KindImageData,
	"image_saved": KindImageSaved,
	"saved":       KindSaved,
	"error":       KindError,
}

func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "frame"
	case KindConnected:
		return "connected"
	case KindDisconnected:
		return "disconnected"
	}
	for name, v := range kindNames {
		if v == k {
			return name
		}
	}
	return "unknown"
}

// Inbound is one message from the device service.
type Inbound struct {
	Kind Kind
	// Type is the raw "type" field, kept for unknown messages.
	Type          string
	Frame         []byte
	Message       string
	Data          json.RawMessage
	Images        []string
	Filename      string
	CaptureTarget json.RawMessage
	Path          string
}

type wireInbound struct {
	Type          string          `json:"type"`
	Message       string          `json:"message"`
	Data          json.RawMessage `json:"data"`
	Images        []string        `json:"images"`
	Filename      string          `json:"filename"`
	CaptureTarget json.RawMessage `json:"captureTarget"`
	Path          string          `json:"path"`
}

// ParseText decodes a text frame. Text not starting with '{' is a base64
// encoded JPEG frame.
func ParseText(data []byte) (Inbound, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Inbound{Kind: KindFrame, Frame: append([]byte(nil), trimmed...)}, nil
	}
	var w wireInbound
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Inbound{}, fmt.Errorf("decode inbound message: %w", err)
	}
	in := Inbound{
		Kind:          kindNames[strings.ToLower(strings.TrimSpace(w.Type))],
		Type:          w.Type,
		Message:       w.Message,
		Data:          w.Data,
		Images:        w.Images,
		Filename:      w.Filename,
		CaptureTarget: w.CaptureTarget,
		Path:          w.Path,
	}
	return in, nil
}

// ParseBinary wraps a binary frame, which is always JPEG bytes.
func ParseBinary(data []byte) Inbound {
	return Inbound{Kind: KindFrame, Frame: append([]byte(nil), data...)}
}

// ImageBytes returns the image_data payload as a string. The service sends a
// data URL or bare base64.
func (in Inbound) ImageBytes() string {
	var s string
	if err := json.Unmarshal(in.Data, &s); err != nil {
		return ""
	}
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i >= 0 {
		return s[i+1:]
	}
	return s
}

// Channel is a bidirectional message stream to the device service. Send is
// fire-and-forget; responses arrive on Inbound.
type Channel interface {
	Send(Outbound) error
	Inbound() <-chan Inbound
	Connected() bool
}

// Offline is a Channel that is never connected.
type Offline struct{}

func (Offline) Send(Outbound) error     { return ErrUnavailable }
func (Offline) Inbound() <-chan Inbound { return nil }
func (Offline) Connected() bool         { return false }
