//go:build fyne && cgo

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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"golang.org/x/sync/errgroup"

	"questeditor/internal/action"
	"questeditor/internal/capture"
	"questeditor/internal/crash"
	"questeditor/internal/crop"
	"questeditor/internal/editor"
	"questeditor/internal/export"
	applog "questeditor/internal/log"
	"questeditor/internal/quest"
	"questeditor/internal/version"
	"questeditor/internal/viewport"
)

const feedLinesShown = 6

// view is a copy of the session state the widgets render. It is taken on the
// session goroutine and applied on the UI goroutine.
type view struct {
	ids       []string
	labels    []string
	active    string
	tab       quest.ListKind
	items     action.List
	connected bool
	dirty     bool
	mode      capture.Mode
	pending   bool
	markers   []export.Marker
	selection *viewport.Box
}

func snapshot(s *editor.Session) view {
	d := s.Document()
	v := view{
		ids:       d.IDs(),
		active:    s.Active(),
		tab:       s.Tab(),
		items:     s.Items(),
		connected: s.Connected(),
		dirty:     s.Dirty(),
		mode:      s.Controller().Mode(),
		pending:   s.Controller().Pending(),
	}
	for _, id := range v.ids {
		sc, _ := d.Get(id)
		label := id
		if sc.DisplayName != "" {
			label = fmt.Sprintf("%s (%s)", id, sc.DisplayName)
		}
		v.labels = append(v.labels, label)
	}
	v.markers = export.Markers(v.items)
	if b, ok := s.Controller().Selection(); ok {
		v.selection = &b
	}
	return v
}

// dialogNamer asks for crop names with a form dialog on the UI goroutine.
type dialogNamer struct{ w fyne.Window }

func (n dialogNamer) AskName(def string, reply func(string, bool)) {
	fyne.Do(func() {
		entry := widget.NewEntry()
		entry.SetText(def)
		items := []*widget.FormItem{widget.NewFormItem("Image name", entry)}
		d := dialog.NewForm("Save cropped image", "Save", "Cancel", items, func(ok bool) {
			reply(strings.TrimSpace(entry.Text), ok)
		}, n.w)
		d.Resize(fyne.NewSize(420, 160))
		d.Show()
	})
}

// shell owns the widgets. Its fields are only touched on the UI goroutine.
type shell struct {
	ctx context.Context
	s   *editor.Session
	w   fyne.Window
	l   *slog.Logger

	v        view
	selected int

	quests   *widget.List
	items    *widget.List
	tabs     *widget.RadioGroup
	captures *fyne.Container
	mirror   *MirrorCanvas
	status   *widget.Label
	feed     *widget.Label
}

// do runs fn on the session goroutine.
func (sh *shell) do(fn func()) { sh.s.Do(sh.ctx, fn) }

// Run starts the desktop UI over a session built from opts. background
// functions, e.g. the device channel client, run until the window closes.
func Run(ctx context.Context, opts editor.Options, background ...func(context.Context) error) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	fyneApp := app.NewWithID("questeditor")
	w := fyneApp.NewWindow("Quest Editor " + version.String())
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1280)
	winH := prefs.IntWithFallback("window.height", 860)
	if winW < 900 {
		winW = 900
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sh := &shell{ctx: ctx, w: w, l: l, selected: -1}

	var s *editor.Session
	opts.Namer = dialogNamer{w: w}
	opts.OnChange = func() {
		if s == nil {
			return
		}
		v := snapshot(s)
		fyne.Do(func() { sh.apply(v) })
	}
	opts.OnFrame = func(b []byte) {
		img, err := crop.DecodeFrame(b)
		if err != nil {
			return
		}
		fyne.Do(func() { sh.mirror.SetFrame(img) })
	}
	s = editor.New(opts)
	sh.s = s
	defer crash.RecoverLatest(s.Workspace)

	s.Feed().OnLine(func(applog.Line) {
		lines := s.Feed().Lines()
		if len(lines) > feedLinesShown {
			lines = lines[len(lines)-feedLinesShown:]
		}
		parts := make([]string, len(lines))
		for i, ln := range lines {
			parts[i] = ln.String()
		}
		text := strings.Join(parts, "\n")
		fyne.Do(func() { sh.feed.SetText(text) })
	})

	w.SetContent(sh.build())
	w.Canvas().SetOnTypedKey(func(e *fyne.KeyEvent) {
		if e.Name == fyne.KeyEscape {
			sh.do(s.AbortCapture)
		}
	})
	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		w.Close()
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Run(gctx) })
	for _, fn := range background {
		g.Go(func() error { return fn(gctx) })
	}
	sh.do(func() {
		v := snapshot(s)
		fyne.Do(func() { sh.apply(v) })
	})

	w.ShowAndRun()
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	l.Info("UI closed")
	return nil
}

func (sh *shell) build() fyne.CanvasObject {
	sh.status = widget.NewLabel("offline")
	sh.feed = widget.NewLabel("")
	sh.feed.Wrapping = fyne.TextWrapWord

	sh.quests = widget.NewList(
		func() int { return len(sh.v.labels) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i >= 0 && i < len(sh.v.labels) {
				o.(*widget.Label).SetText(sh.v.labels[i])
			}
		},
	)
	sh.quests.OnSelected = func(i widget.ListItemID) {
		if i < 0 || i >= len(sh.v.ids) || sh.v.ids[i] == sh.v.active {
			return
		}
		id := sh.v.ids[i]
		sh.do(func() { _ = sh.s.SelectQuest(id) })
	}

	sh.tabs = widget.NewRadioGroup([]string{string(quest.ListDungeon), string(quest.ListVillage)}, func(k string) {
		if k == "" {
			return
		}
		sh.do(func() { _ = sh.s.SelectTab(quest.ListKind(k)) })
	})
	sh.tabs.Horizontal = true
	sh.tabs.SetSelected(string(quest.ListDungeon))

	sh.items = widget.NewList(
		func() int { return len(sh.v.items) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i >= 0 && i < len(sh.v.items) {
				o.(*widget.Label).SetText(itemRow(i, sh.v.items[i]))
			}
		},
	)
	sh.items.OnSelected = func(i widget.ListItemID) {
		sh.selected = i
		sh.refreshCaptures()
	}
	sh.captures = container.NewVBox()

	variants := []string{}
	for _, v := range []action.Variant{
		action.VariantPosition, action.VariantStair, action.VariantMinimapStair, action.VariantHarken,
		action.VariantChest, action.VariantChestAuto, action.VariantPress, action.VariantSimple,
	} {
		variants = append(variants, string(v))
	}
	add := widget.NewSelect(variants, nil)
	add.PlaceHolder = "Add item..."
	add.OnChanged = func(v string) {
		if v == "" {
			return
		}
		sh.do(func() { _ = sh.s.AddItem(action.Variant(v)) })
		add.ClearSelected()
	}

	itemButtons := container.NewHBox(
		widget.NewButton("Up", func() { sh.moveSelected(-1) }),
		widget.NewButton("Down", func() { sh.moveSelected(1) }),
		widget.NewButton("Edit", sh.editSelected),
		widget.NewButton("Replay", func() {
			if i := sh.selected; i >= 0 {
				sh.do(func() { _ = sh.s.Replay(i) })
			}
		}),
		widget.NewButton("Remove", func() {
			if i := sh.selected; i >= 0 {
				sh.do(func() { _ = sh.s.RemoveItem(i) })
			}
		}),
	)

	questButtons := container.NewHBox(
		widget.NewButton("New", sh.newQuest),
		widget.NewButton("Clone", sh.cloneQuest),
		widget.NewButton("Edit", sh.editQuest),
		widget.NewButton("Delete", sh.deleteQuest),
	)
	left := container.NewBorder(widget.NewLabel("Quests"), questButtons, nil, nil, sh.quests)

	itemsPane := container.NewBorder(
		container.NewVBox(sh.tabs, add),
		container.NewVBox(itemButtons, widget.NewSeparator(), widget.NewLabel("Capture"), sh.captures),
		nil, nil, sh.items,
	)

	sh.mirror = NewMirrorCanvas()
	sh.mirror.OnDown = func(x, y float64, r viewport.Rect) { sh.do(func() { sh.s.PointerDown(x, y, r) }) }
	sh.mirror.OnMove = func(x, y float64, r viewport.Rect) { sh.do(func() { sh.s.PointerMove(x, y, r) }) }
	sh.mirror.OnUp = func(x, y float64, r viewport.Rect) { sh.do(func() { sh.s.PointerUp(x, y, r) }) }

	toolbar := container.NewHBox(
		widget.NewButton("Save", func() { sh.do(func() { _ = sh.s.Save() }) }),
		widget.NewButton("Undo", func() { sh.do(func() { sh.s.Undo() }) }),
		widget.NewButton("Redo", func() { sh.do(func() { sh.s.Redo() }) }),
		widget.NewButton("Import...", sh.importFile),
		widget.NewButton("Export...", sh.exportFile),
		widget.NewButton("Overlay PNG...", sh.exportOverlay),
		widget.NewButton("Abort capture", func() { sh.do(sh.s.AbortCapture) }),
		sh.status,
	)

	editorSplit := container.NewHSplit(itemsPane, sh.mirror)
	editorSplit.Offset = 0.45
	main := container.NewHSplit(left, editorSplit)
	main.Offset = 0.2
	return container.NewBorder(toolbar, sh.feed, nil, nil, main)
}

// apply renders v. Runs on the UI goroutine.
func (sh *shell) apply(v view) {
	tabChanged := v.tab != sh.v.tab
	sh.v = v
	sh.quests.Refresh()
	for i, id := range v.ids {
		if id == v.active {
			sh.quests.Select(i)
			break
		}
	}
	if sh.tabs.Selected != string(v.tab) {
		sh.tabs.SetSelected(string(v.tab))
	}
	if tabChanged || sh.selected >= len(v.items) {
		sh.selected = -1
		sh.items.UnselectAll()
	}
	sh.items.Refresh()
	sh.refreshCaptures()
	sh.mirror.SetOverlay(v.markers, v.selection)

	state := "offline"
	if v.connected {
		state = "connected"
	}
	if v.dirty {
		state += ", unsaved"
	}
	switch {
	case v.pending:
		state += ", naming crop"
	case v.mode != capture.ModeNone:
		state += ", capturing (" + v.mode.String() + ")"
	}
	sh.status.SetText(state)
}

func (sh *shell) refreshCaptures() {
	sh.captures.RemoveAll()
	i := sh.selected
	if i < 0 || i >= len(sh.v.items) {
		sh.captures.Refresh()
		return
	}
	for _, c := range captureChoices(sh.v.items[i]) {
		sh.captures.Add(widget.NewButton(c.Label, func() {
			sh.do(func() { _ = sh.s.StartCapture(c.Mode, i, c.Field, c.Sub) })
		}))
	}
	sh.captures.Refresh()
}

func (sh *shell) moveSelected(delta int) {
	from := sh.selected
	to := from + delta
	if from < 0 || to < 0 || to >= len(sh.v.items) {
		return
	}
	sh.do(func() { _ = sh.s.MoveItem(from, to) })
	sh.selected = to
	sh.items.Select(to)
}

// editSelected opens the raw tuple of the selected item for editing.
func (sh *shell) editSelected() {
	i := sh.selected
	if i < 0 || i >= len(sh.v.items) {
		return
	}
	raw, err := action.List{sh.v.items[i]}.MarshalJSON()
	if err != nil {
		dialog.ShowError(err, sh.w)
		return
	}
	entry := widget.NewMultiLineEntry()
	entry.SetText(strings.TrimSuffix(strings.TrimPrefix(string(raw), "["), "]"))
	entry.Wrapping = fyne.TextWrapWord
	d := dialog.NewForm("Edit item", "Apply", "Cancel", []*widget.FormItem{widget.NewFormItem("JSON", entry)}, func(ok bool) {
		if !ok {
			return
		}
		it, err := action.Decode([]byte(entry.Text))
		if err != nil {
			dialog.ShowError(fmt.Errorf("invalid item: %w", err), sh.w)
			return
		}
		sh.do(func() { _ = sh.s.ReplaceItem(i, it) })
	}, sh.w)
	d.Resize(fyne.NewSize(560, 260))
	d.Show()
}

func (sh *shell) questForm(title string, id, name, typ string, submit func(id, name, typ string)) {
	idEntry := widget.NewEntry()
	idEntry.SetText(id)
	nameEntry := widget.NewEntry()
	nameEntry.SetText(name)
	typeSelect := widget.NewSelect([]string{quest.TypeDungeon, quest.TypeQuest}, nil)
	if typ == "" {
		typ = quest.TypeDungeon
	}
	typeSelect.SetSelected(typ)
	items := []*widget.FormItem{
		widget.NewFormItem("ID", idEntry),
		widget.NewFormItem("Name", nameEntry),
		widget.NewFormItem("Type", typeSelect),
	}
	d := dialog.NewForm(title, "OK", "Cancel", items, func(ok bool) {
		if ok {
			submit(strings.TrimSpace(idEntry.Text), strings.TrimSpace(nameEntry.Text), typeSelect.Selected)
		}
	}, sh.w)
	d.Resize(fyne.NewSize(420, 240))
	d.Show()
}

func (sh *shell) newQuest() {
	sh.questForm("New quest", "", "", "", func(id, name, typ string) {
		sh.do(func() { _ = sh.s.CreateQuest(id, name, typ) })
	})
}

func (sh *shell) cloneQuest() {
	src := sh.v.active
	if src == "" {
		return
	}
	entry := widget.NewEntry()
	entry.SetText(src + "_copy")
	dialog.NewForm("Clone "+src, "Clone", "Cancel", []*widget.FormItem{widget.NewFormItem("New ID", entry)}, func(ok bool) {
		if ok {
			id := strings.TrimSpace(entry.Text)
			sh.do(func() { _ = sh.s.CloneQuest(src, id) })
		}
	}, sh.w).Show()
}

func (sh *shell) editQuest() {
	orig := sh.v.active
	if orig == "" {
		return
	}
	// metadata is read on the session goroutine, then the form opens here
	sh.do(func() {
		sc, _ := sh.s.Document().Get(orig)
		fyne.Do(func() {
			sh.questForm("Edit quest", orig, sc.DisplayName, sc.Type, func(id, name, typ string) {
				sh.do(func() { _ = sh.s.UpdateQuest(orig, id, name, typ) })
			})
		})
	})
}

func (sh *shell) deleteQuest() {
	id := sh.v.active
	if id == "" {
		return
	}
	dialog.NewConfirm("Delete quest", fmt.Sprintf("Delete %q?", id), func(ok bool) {
		if ok {
			sh.do(func() { _ = sh.s.DeleteQuest(id) })
		}
	}, sh.w).Show()
}

func (sh *shell) importFile() {
	dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil || rc == nil {
			return
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			dialog.ShowError(fmt.Errorf("read %s: %w", rc.URI().Name(), err), sh.w)
			return
		}
		sh.do(func() { _ = sh.s.Import(data) })
	}, sh.w).Show()
}

func (sh *shell) exportFile() {
	dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		sh.do(func() {
			data, err := quest.EncodeCompact(sh.s.Document())
			if err == nil {
				_, err = wc.Write(data)
			}
			if cerr := wc.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				sh.l.Error("export failed", slog.Any("err", err))
				fyne.Do(func() { dialog.ShowError(err, sh.w) })
			}
		})
	}, sh.w).Show()
}

func (sh *shell) exportOverlay() {
	dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		path := wc.URI().Path()
		_ = wc.Close()
		sh.do(func() {
			err := export.ExportQuestPNG(sh.s.Document(), sh.s.Active(), sh.s.Tab(), sh.s.Frame(), path, export.PNGOptions{Labels: true})
			if err != nil {
				sh.l.Error("overlay export failed", slog.Any("err", err))
				fyne.Do(func() { dialog.ShowError(err, sh.w) })
			}
		})
	}, sh.w).Show()
}
