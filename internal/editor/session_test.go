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
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questeditor/internal/action"
	"questeditor/internal/capture"
	"questeditor/internal/channel"
	"questeditor/internal/quest"
	"questeditor/internal/storage"
	"questeditor/internal/viewport"
)

// fakeChannel records what the session sends.
type fakeChannel struct {
	mu        sync.Mutex
	connected bool
	sent      []channel.Outbound
	in        chan channel.Inbound
}

func newFakeChannel(connected bool) *fakeChannel {
	return &fakeChannel{connected: connected, in: make(chan channel.Inbound, 8)}
}

func (f *fakeChannel) Send(o channel.Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return channel.ErrUnavailable
	}
	f.sent = append(f.sent, o)
	return nil
}

func (f *fakeChannel) Inbound() <-chan channel.Inbound { return f.in }

func (f *fakeChannel) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) Sent() []channel.Outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]channel.Outbound(nil), f.sent...)
}

// fakeNamer keeps the last request so the test can answer it.
type fakeNamer struct {
	def   string
	reply func(string, bool)
}

func (n *fakeNamer) AskName(def string, reply func(string, bool)) {
	n.def = def
	n.reply = reply
}

var screen = viewport.Rect{Width: viewport.VirtualWidth, Height: viewport.VirtualHeight}

func fixedNow() time.Time { return time.Date(2025, 3, 1, 12, 34, 56, 0, time.UTC) }

func jpegFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 90, 160))
	for y := 0; y < 160; y++ {
		for x := 0; x < 90; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newSession(t *testing.T, ch channel.Channel, namer Namer) *Session {
	t.Helper()
	s := New(Options{Channel: ch, Namer: namer, Now: fixedNow})
	require.NoError(t, s.CreateQuest("wolf_1f", "Wolf 1F", "dungeon"))
	return s
}

func itemJSON(t *testing.T, it action.Item) string {
	t.Helper()
	b, err := json.Marshal(it)
	require.NoError(t, err)
	return string(b)
}

func lastLine(s *Session) string {
	l, _ := s.Feed().Last()
	return l.Text
}

func TestPickWritesScaledPosition(t *testing.T) {
	s := newSession(t, nil, nil)
	require.NoError(t, s.AddItem(action.VariantPosition))
	require.NoError(t, s.StartCapture(capture.ModePick, 0, capture.FieldCoord, nil))

	s.PointerDown(235, 420, viewport.Rect{Left: 10, Top: 20, Width: 450, Height: 800})

	assert.Equal(t, `["position","右下",[450,800]]`, itemJSON(t, s.Items()[0]))
	assert.Equal(t, capture.ModeNone, s.Controller().Mode())
	assert.True(t, s.Dirty())
}

func TestQuestAndTabSwitchAbortCapture(t *testing.T) {
	s := newSession(t, nil, nil)
	require.NoError(t, s.CreateQuest("church", "Church", "village"))
	require.NoError(t, s.SelectQuest("wolf_1f"))
	require.NoError(t, s.AddItem(action.VariantPosition))

	require.NoError(t, s.StartCapture(capture.ModePick, 0, capture.FieldCoord, nil))
	require.NoError(t, s.SelectQuest("church"))
	assert.Equal(t, capture.ModeNone, s.Controller().Mode())

	require.NoError(t, s.SelectQuest("wolf_1f"))
	require.NoError(t, s.StartCapture(capture.ModePick, 0, capture.FieldCoord, nil))
	require.NoError(t, s.SelectTab(quest.ListVillage))
	assert.Equal(t, capture.ModeNone, s.Controller().Mode())

	// the aborted pick must not land anywhere
	require.NoError(t, s.SelectTab(quest.ListDungeon))
	s.PointerDown(100, 100, screen)
	assert.Equal(t, `["position","右下",[0,0]]`, itemJSON(t, s.Items()[0]))
}

func TestStartCaptureRejectsMissingItem(t *testing.T) {
	s := newSession(t, nil, nil)
	err := s.StartCapture(capture.ModePick, 3, capture.FieldCoord, nil)
	require.ErrorIs(t, err, quest.ErrNoItem)
	assert.Equal(t, capture.ModeNone, s.Controller().Mode())
}

func cropPressPattern(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.AddItem(action.VariantPress))
	require.NoError(t, s.StartCapture(capture.ModeRect, 0, capture.FieldTargetPattern, nil))
	s.Handle(channel.Inbound{Kind: channel.KindFrame, Frame: jpegFrame(t)})
	s.PointerDown(100, 200, screen)
	s.PointerMove(150, 260, screen)
	s.PointerUp(180, 300, screen)
}

func TestCropSendsImageAndAckCommitsIntoEchoedTarget(t *testing.T) {
	ch := newFakeChannel(true)
	namer := &fakeNamer{}
	s := newSession(t, ch, namer)
	cropPressPattern(t, s)

	require.NotNil(t, namer.reply)
	assert.Equal(t, "target_image", namer.def)
	assert.True(t, s.Controller().Pending())

	namer.reply("ok_btn", true)
	s.drain()

	p := s.Items()[0].(action.Press)
	assert.Equal(t, "ok_btn", p.Pattern)
	assert.False(t, s.Controller().Pending())
	assert.Equal(t, 1, s.pending.Len())

	sent := ch.Sent()
	require.NotEmpty(t, sent)
	msg := sent[len(sent)-1]
	assert.Equal(t, channel.CmdSaveImage, msg.Cmd)
	assert.Equal(t, "ok_btn.png", msg.Filename)
	var echoed capture.Target
	require.NoError(t, json.Unmarshal(msg.CaptureTarget, &echoed))
	assert.Equal(t, "wolf_1f", echoed.QuestID)
	assert.Equal(t, capture.FieldTargetPattern, echoed.Field)
	require.NotEmpty(t, echoed.Token)

	b64, ok := s.RequestImage("ok_btn")
	require.True(t, ok)
	assert.NotEmpty(t, b64)

	// the operator moves on before the device answers
	require.NoError(t, s.CreateQuest("church", "Church", "village"))
	s.Handle(channel.Inbound{
		Kind:          channel.KindImageSaved,
		Filename:      "userscript/ok_btn.png",
		CaptureTarget: msg.CaptureTarget,
	})

	assert.Equal(t, "church", s.Active())
	it, err := s.Document().Item("wolf_1f", quest.ListDungeon, 0)
	require.NoError(t, err)
	assert.Equal(t, "userscript/ok_btn", it.(action.Press).Pattern)
	assert.Zero(t, s.pending.Len())
}

func TestImageAckCommitsIntoRecordedTarget(t *testing.T) {
	ch := newFakeChannel(true)
	namer := &fakeNamer{}
	s := newSession(t, ch, namer)
	require.NoError(t, s.AddItem(action.VariantPress))
	cropPressPattern(t, s)
	namer.reply("ok_btn", true)
	s.drain()

	sent := ch.Sent()
	var target capture.Target
	require.NoError(t, json.Unmarshal(sent[len(sent)-1].CaptureTarget, &target))

	// the device echoes the token but mangles the address
	mangled := target
	mangled.Index = 1
	echo, err := json.Marshal(mangled)
	require.NoError(t, err)
	s.Handle(channel.Inbound{Kind: channel.KindImageSaved, Filename: "userscript/ok_btn.png", CaptureTarget: echo})

	assert.Equal(t, "userscript/ok_btn", s.Items()[0].(action.Press).Pattern)
	assert.Equal(t, "target_image", s.Items()[1].(action.Press).Pattern)
	assert.Zero(t, s.pending.Len())
}

func TestImageAckWithUnknownTokenUsesEchoedTarget(t *testing.T) {
	s := newSession(t, nil, nil)
	require.NoError(t, s.AddItem(action.VariantPress))

	echo, err := json.Marshal(capture.Target{QuestID: "wolf_1f", List: quest.ListDungeon, Index: 0, Field: capture.FieldTargetPattern, Token: "not-issued"})
	require.NoError(t, err)
	s.Handle(channel.Inbound{Kind: channel.KindImageSaved, Filename: "boss.png", CaptureTarget: echo})

	assert.Equal(t, "boss", s.Items()[0].(action.Press).Pattern)
}

func TestCropNameIsTrimmed(t *testing.T) {
	ch := newFakeChannel(true)
	namer := &fakeNamer{}
	s := newSession(t, ch, namer)
	cropPressPattern(t, s)
	before := itemJSON(t, s.Items()[0])

	namer.reply("   ", true)
	s.drain()
	assert.Equal(t, before, itemJSON(t, s.Items()[0]))
	assert.Empty(t, ch.Sent())

	require.NoError(t, s.StartCapture(capture.ModeRect, 0, capture.FieldTargetPattern, nil))
	s.PointerDown(100, 200, screen)
	s.PointerUp(180, 300, screen)
	namer.reply("  ok_btn ", true)
	s.drain()

	assert.Equal(t, "ok_btn", s.Items()[0].(action.Press).Pattern)
	sent := ch.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ok_btn.png", sent[0].Filename)
}

func TestStartCaptureRejectsNegativeSubIndex(t *testing.T) {
	s := newSession(t, nil, nil)
	require.NoError(t, s.AddItem(action.VariantPress))
	sub := -1
	err := s.StartCapture(capture.ModeRect, 0, capture.FieldFallbackValue, &sub)
	require.ErrorIs(t, err, quest.ErrNoItem)
	assert.Equal(t, capture.ModeNone, s.Controller().Mode())
}

func TestCropCancelLeavesItemUnchanged(t *testing.T) {
	ch := newFakeChannel(true)
	namer := &fakeNamer{}
	s := newSession(t, ch, namer)
	cropPressPattern(t, s)
	before := itemJSON(t, s.Items()[0])

	namer.reply("", false)
	s.drain()

	assert.Equal(t, before, itemJSON(t, s.Items()[0]))
	assert.False(t, s.Controller().Pending())
	assert.Empty(t, ch.Sent())
}

func TestCropReplyAfterAbortIsDropped(t *testing.T) {
	namer := &fakeNamer{}
	s := newSession(t, newFakeChannel(true), namer)
	cropPressPattern(t, s)
	s.AbortCapture()

	namer.reply("late", true)
	s.drain()

	assert.Equal(t, "target_image", s.Items()[0].(action.Press).Pattern)
}

func TestCropWithoutFrameWarns(t *testing.T) {
	namer := &fakeNamer{}
	s := newSession(t, nil, namer)
	require.NoError(t, s.AddItem(action.VariantPress))
	require.NoError(t, s.StartCapture(capture.ModeRect, 0, capture.FieldTargetPattern, nil))
	s.PointerDown(10, 10, screen)
	s.PointerUp(90, 90, screen)

	assert.Nil(t, namer.reply)
	assert.False(t, s.Controller().Pending())
	assert.Contains(t, lastLine(s), "no frame to crop")
}

func TestOfflineCropSavesImageLocally(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	ws, err := storage.Init(root, quest.Document{})
	require.NoError(t, err)
	namer := &fakeNamer{}
	s := New(Options{Workspace: ws, Namer: namer, Now: fixedNow})
	require.NoError(t, s.CreateQuest("wolf_1f", "Wolf 1F", "dungeon"))
	cropPressPattern(t, s)

	namer.reply("userscript/ok_btn", true)
	s.drain()

	assert.Equal(t, "userscript/ok_btn", s.Items()[0].(action.Press).Pattern)
	_, err = os.Stat(filepath.Join(root, storage.ImagesDirName, "userscript", "ok_btn.png"))
	require.NoError(t, err)
	assert.Contains(t, lastLine(s), "image saved locally")
	assert.Zero(t, s.pending.Len())
}

func TestRectROIOnHarken(t *testing.T) {
	s := newSession(t, nil, nil)
	require.NoError(t, s.AddItem(action.VariantHarken))
	require.NoError(t, s.StartCapture(capture.ModeRect, 0, capture.FieldROI, nil))

	s.PointerDown(300, 400, screen)
	s.PointerUp(100, 200, screen)

	assert.Equal(t, `["harken","右下",[[100,200,300,400]],null]`, itemJSON(t, s.Items()[0]))
}

func TestStaleImageAckIsNoop(t *testing.T) {
	s := newSession(t, nil, nil)
	require.NoError(t, s.AddItem(action.VariantPress))
	before := s.Document()

	target, err := json.Marshal(capture.Target{QuestID: "wolf_1f", List: quest.ListDungeon, Index: 5, Field: capture.FieldTargetPattern})
	require.NoError(t, err)
	s.Handle(channel.Inbound{Kind: channel.KindImageSaved, Filename: "x.png", CaptureTarget: target})

	assert.True(t, before.Equal(s.Document()))
	assert.Contains(t, lastLine(s), "capture target no longer exists")
}

func TestSaveSendsDocumentWhenConnected(t *testing.T) {
	ch := newFakeChannel(true)
	s := newSession(t, ch, nil)
	require.NoError(t, s.Save())

	sent := ch.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, channel.CmdSaveQuest, sent[0].Cmd)
	d, err := quest.Import(sent[0].Data)
	require.NoError(t, err)
	assert.True(t, d.Has("wolf_1f"))
	assert.False(t, s.Dirty())
}

func TestSaveFallsBackToWorkspace(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	ws, err := storage.Init(root, quest.Document{})
	require.NoError(t, err)
	s := New(Options{Workspace: ws, BackupsKeep: 5})
	require.NoError(t, s.CreateQuest("church", "Church", "village"))

	require.NoError(t, s.Save())
	assert.False(t, s.Dirty())
	assert.Contains(t, lastLine(s), "saved locally")

	reopened, err := storage.Open(root)
	require.NoError(t, err)
	assert.True(t, reopened.Document.Has("church"))
}

func TestSaveWithoutWorkspaceFailsOffline(t *testing.T) {
	s := newSession(t, nil, nil)
	require.ErrorIs(t, s.Save(), channel.ErrUnavailable)
	assert.True(t, s.Dirty())
}

func TestReplaySendsPlan(t *testing.T) {
	ch := newFakeChannel(true)
	s := newSession(t, ch, nil)
	require.NoError(t, s.AddItem(action.VariantPress))

	require.NoError(t, s.Replay(0))
	sent := ch.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, channel.CmdClickImage, sent[0].Cmd)
	assert.Equal(t, "target_image", sent[0].Filename)
	assert.True(t, sent[1].IsCommand())
	assert.Equal(t, "input swipe 0 0 0 0", sent[1].String())
}

func TestReplayOfflineIsUnavailable(t *testing.T) {
	s := newSession(t, newFakeChannel(false), nil)
	require.NoError(t, s.AddItem(action.VariantSimple))
	require.ErrorIs(t, s.Replay(0), channel.ErrUnavailable)
	assert.Contains(t, lastLine(s), "connect to the device")
}

func TestReplayChestNotReplayable(t *testing.T) {
	s := newSession(t, newFakeChannel(true), nil)
	require.NoError(t, s.AddItem(action.VariantChest))
	require.ErrorIs(t, s.Replay(0), action.ErrNotReplayable)
}

func TestConnectedRequestsQuestAndImages(t *testing.T) {
	ch := newFakeChannel(true)
	s := New(Options{Channel: ch})
	s.Handle(channel.Inbound{Kind: channel.KindConnected})

	sent := ch.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, channel.CmdLoadQuest, sent[0].Cmd)
	assert.Equal(t, channel.CmdListImages, sent[1].Cmd)
}

func TestQuestMessageReplacesDocument(t *testing.T) {
	s := newSession(t, nil, nil)
	s.Handle(channel.Inbound{Kind: channel.KindQuest, Data: json.RawMessage(`{"church":{"questName":"Church","_TYPE":"village","_EOT":[["press","boss"]]}}`)})

	assert.Equal(t, []string{"church"}, s.Document().IDs())
	assert.Equal(t, "church", s.Active())
	assert.False(t, s.Dirty())
}

func TestMalformedQuestMessageKeepsDocument(t *testing.T) {
	s := newSession(t, nil, nil)
	before := s.Document()
	s.Handle(channel.Inbound{Kind: channel.KindQuest, Data: json.RawMessage(`[1,2`)})

	assert.True(t, before.Equal(s.Document()))
	assert.Contains(t, lastLine(s), "load quest document failed")
}

func TestImageListAndData(t *testing.T) {
	s := New(Options{})
	s.Handle(channel.Inbound{Kind: channel.KindImageList, Images: []string{"b.png", "a.png"}})
	assert.Equal(t, []string{"a.png", "b.png"}, s.Images())

	s.Handle(channel.Inbound{Kind: channel.KindImageData, Filename: "a.png", Data: json.RawMessage(`"data:image/png;base64,QUJD"`)})
	b, ok := s.RequestImage("a.png")
	require.True(t, ok)
	assert.Equal(t, "QUJD", b)
}

func TestUnknownMessageIgnored(t *testing.T) {
	s := newSession(t, nil, nil)
	before := s.Document()
	s.Handle(channel.Inbound{Kind: channel.KindUnknown, Type: "weird"})
	assert.True(t, before.Equal(s.Document()))
	assert.Contains(t, lastLine(s), "unknown message")
}

func TestUndoRedoRestoresDocument(t *testing.T) {
	s := newSession(t, nil, nil)
	require.NoError(t, s.AddItem(action.VariantPosition))
	require.NoError(t, s.AddItem(action.VariantSimple))
	require.Len(t, s.Items(), 2)

	require.True(t, s.Undo())
	require.Len(t, s.Items(), 1)
	require.True(t, s.Redo())
	require.Len(t, s.Items(), 2)
}

func TestUndoQuestCreationRestoresSelection(t *testing.T) {
	s := newSession(t, nil, nil)
	require.NoError(t, s.CreateQuest("church", "Church", "village"))
	assert.Equal(t, "church", s.Active())

	require.True(t, s.Undo())
	assert.False(t, s.Document().Has("church"))
	assert.Equal(t, "wolf_1f", s.Active())
}

func TestQuestLifecycle(t *testing.T) {
	s := newSession(t, nil, nil)
	require.NoError(t, s.AddItem(action.VariantPosition))
	require.NoError(t, s.CloneQuest("wolf_1f", "wolf_2f"))
	assert.Equal(t, "wolf_2f", s.Active())
	assert.Len(t, s.Items(), 1)

	require.NoError(t, s.UpdateQuest("wolf_2f", "wolf_b1", "Wolf B1", "dungeon"))
	assert.Equal(t, "wolf_b1", s.Active())
	assert.Equal(t, []string{"wolf_1f", "wolf_b1"}, s.Document().IDs())

	require.ErrorIs(t, s.CreateQuest("wolf_1f", "dup", ""), quest.ErrDuplicateID)

	require.NoError(t, s.DeleteQuest("wolf_b1"))
	assert.Equal(t, "wolf_1f", s.Active())
}

func TestMoveAndRemoveItems(t *testing.T) {
	s := newSession(t, nil, nil)
	require.NoError(t, s.AddItem(action.VariantPosition))
	require.NoError(t, s.AddItem(action.VariantSimple))
	require.NoError(t, s.MoveItem(1, 0))
	assert.Equal(t, action.VariantSimple, s.Items()[0].Variant())

	require.NoError(t, s.RemoveItem(0))
	require.Len(t, s.Items(), 1)
	assert.Equal(t, action.VariantPosition, s.Items()[0].Variant())
	require.ErrorIs(t, s.RemoveItem(4), quest.ErrNoItem)
}

func TestImportMarksDirty(t *testing.T) {
	s := New(Options{})
	require.NoError(t, s.Import([]byte(`[{"questName":"A","_TARGETINFOLIST":[]}]`)))
	assert.Equal(t, "quest_0", s.Active())
	assert.True(t, s.Dirty())

	out, err := s.Export()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"quest_0"`)
	assert.Contains(t, string(out), `"_TYPE":"dungeon"`)
}

func TestRunServesInboundAndDo(t *testing.T) {
	ch := newFakeChannel(true)
	s := New(Options{Channel: ch})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	ch.in <- channel.Inbound{Kind: channel.KindQuest, Data: json.RawMessage(`{"a":{"questName":"A","_TYPE":"dungeon"}}`)}

	require.Eventually(t, func() bool {
		got := make(chan bool, 1)
		if !s.Do(ctx, func() { got <- s.Document().Has("a") }) {
			return false
		}
		return <-got
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
