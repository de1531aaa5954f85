/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"questeditor/internal/channel"
	"questeditor/internal/config"
	"questeditor/internal/crash"
	"questeditor/internal/editor"
	"questeditor/internal/export"
	"questeditor/internal/imagecache"
	applog "questeditor/internal/log"
	"questeditor/internal/quest"
	"questeditor/internal/storage"
	"questeditor/internal/ui"
	"questeditor/internal/undo"
	"questeditor/internal/version"
)

func usage() {
	fmt.Println("Quest Editor")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  questeditor version|-v|--version                         Show version")
	fmt.Println("  questeditor validate <quest.json>                        Check a quest file and print a summary")
	fmt.Println("  questeditor format <quest.json> [-w]                     Print the file in compact layout (-w rewrites it)")
	fmt.Println("  questeditor export-png <quest.json> <id> <list> <out.png> [frame.jpg]")
	fmt.Println("                                                           Draw captured coords and regions of a list")
	fmt.Println("  questeditor export-pdf <quest.json> <out.pdf> [id...]    Write a printable quest sheet")
	fmt.Println("  questeditor refs <workspace> [image]                     Show where an image is used, or dangling references")
	fmt.Println("  questeditor search <workspace> <text>                    Full-text search over action items")
	fmt.Println("  questeditor ui [<workspace>]                             Launch desktop UI (build with -tags fyne for full UI)")
}

func fail(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func needArgs(args []string, n int, what string) {
	if len(args) < n {
		fmt.Println(what)
		usage()
		os.Exit(2)
	}
}

func main() {
	cfg, token, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", cfgErr))
	}
	var ws *storage.Workspace
	defer crash.RecoverLatest(func() *storage.Workspace { return ws })

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("Quest Editor")
		fmt.Println(version.String())
	case "validate":
		needArgs(args, 3, "validate requires <quest.json>")
		doc := readDocument(l, args[2])
		for _, id := range doc.IDs() {
			sc, _ := doc.Get(id)
			fmt.Printf("%s\t%s\t%s\tdungeon=%d village=%d\n", id, sc.Type, sc.DisplayName, len(sc.Dungeon), len(sc.Village))
		}
		fmt.Printf("OK: %d quests, %d image references\n", doc.Len(), len(quest.ImageRefs(doc)))
	case "format":
		needArgs(args, 3, "format requires <quest.json>")
		data, err := os.ReadFile(args[2])
		if err != nil {
			fail(l, "read failed", err)
		}
		out, err := quest.FormatCompact(data)
		if err != nil {
			fail(l, "format failed", err)
		}
		if len(args) > 3 && args[3] == "-w" {
			if err := os.WriteFile(args[2], out, 0o644); err != nil {
				fail(l, "write failed", err)
			}
			fmt.Println("Formatted", args[2])
			return
		}
		fmt.Println(string(out))
	case "export-png":
		needArgs(args, 6, "export-png requires <quest.json> <id> <list> <out.png>")
		doc := readDocument(l, args[2])
		k := quest.ListKind(args[4])
		if !k.Valid() {
			fmt.Printf("unknown list %q (want dungeon or village)\n", args[4])
			os.Exit(2)
		}
		var frame []byte
		if len(args) > 6 {
			b, err := os.ReadFile(args[6])
			if err != nil {
				fail(l, "read frame failed", err)
			}
			frame = b
		}
		if err := export.ExportQuestPNG(doc, args[3], k, frame, args[5], export.PNGOptions{Labels: true}); err != nil {
			fail(l, "export png failed", err)
		}
		fmt.Println("Wrote", args[5])
	case "export-pdf":
		needArgs(args, 4, "export-pdf requires <quest.json> <out.pdf>")
		doc := readDocument(l, args[2])
		opt := export.PDFOptions{IDs: args[4:], Title: filepath.Base(args[2])}
		if err := export.ExportQuestSheetPDF(doc, args[3], opt); err != nil {
			fail(l, "export pdf failed", err)
		}
		fmt.Println("Wrote", args[3])
	case "refs":
		needArgs(args, 3, "refs requires <workspace>")
		ws = openWorkspace(l, args[2])
		runRefs(l, ws, args[3:])
	case "search":
		needArgs(args, 4, "search requires <workspace> and <text>")
		ws = openWorkspace(l, args[2])
		runSearch(l, ws, strings.Join(args[3:], " "))
	case "ui":
		root := cfg.Workspace.Root
		if len(args) >= 3 {
			root = args[2]
		}
		if err := runUI(l, cfg, token, root, &ws); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
	default:
		usage()
	}
}

func readDocument(l *slog.Logger, path string) quest.Document {
	data, err := os.ReadFile(path)
	if err != nil {
		fail(l, "read failed", err)
	}
	doc, err := quest.Import(data)
	if err != nil {
		fail(l, "invalid quest file", err)
	}
	return doc
}

func openWorkspace(l *slog.Logger, dir string) *storage.Workspace {
	abs, _ := filepath.Abs(dir)
	ws, err := storage.Open(abs)
	if err != nil {
		fail(l, "open workspace failed", err)
	}
	return ws
}

// openIndex opens the workspace index, rebuilding a corrupt one, and fills it
// from the current document.
func openIndex(ctx context.Context, l *slog.Logger, ws *storage.Workspace) *sql.DB {
	if rebuilt, err := storage.DetectAndRebuildIndex(ctx, ws.Root, ws.Document); err != nil {
		fail(l, "index check failed", err)
	} else if rebuilt {
		l.Warn("index was corrupt and has been rebuilt")
	}
	db, err := storage.InitOrOpenIndex(ws.Root)
	if err != nil {
		fail(l, "open index failed", err)
	}
	if err := storage.RebuildIndex(ctx, db, ws.Document); err != nil {
		_ = db.Close()
		fail(l, "rebuild index failed", err)
	}
	return db
}

func runRefs(l *slog.Logger, ws *storage.Workspace, rest []string) {
	ctx := context.Background()
	db := openIndex(ctx, l, ws)
	defer db.Close()
	if len(rest) > 0 {
		refs, err := storage.WhereUsed(ctx, db, rest[0])
		if err != nil {
			fail(l, "query failed", err)
		}
		for _, r := range refs {
			fmt.Printf("%s\t%s[%d]\t%s\n", r.QuestID, r.List, r.Index, r.Field)
		}
		fmt.Printf("%d references to %s\n", len(refs), rest[0])
		return
	}
	known, err := storage.ListImages(ws)
	if err != nil {
		fail(l, "list images failed", err)
	}
	missing, err := storage.Dangling(ctx, db, known)
	if err != nil {
		fail(l, "query failed", err)
	}
	for _, name := range missing {
		fmt.Println(name)
	}
	fmt.Printf("%d referenced images missing from %s\n", len(missing), ws.ImagesDir())
}

func runSearch(l *slog.Logger, ws *storage.Workspace, text string) {
	ctx := context.Background()
	db := openIndex(ctx, l, ws)
	defer db.Close()
	hits, err := storage.SearchItems(ctx, db, text, 0)
	if err != nil {
		fail(l, "search failed", err)
	}
	for _, h := range hits {
		fmt.Printf("%s\t%s[%d]\t%s\t%s\n", h.QuestID, h.List, h.Index, h.Variant, h.Text)
	}
}

// runUI wires the session, the device channel and the desktop shell.
func runUI(l *slog.Logger, cfg config.AppConfig, token, root string, wsOut **storage.Workspace) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := editor.Options{BackupsKeep: cfg.Workspace.BackupsKeep}
	if root != "" {
		abs, _ := filepath.Abs(root)
		ws, err := storage.OpenOrInit(abs)
		if err != nil {
			return fmt.Errorf("open workspace: %w", err)
		}
		*wsOut = ws
		opts.Workspace = ws
		l.Info("workspace opened", slog.String("root", abs), slog.Int("quests", ws.Document.Len()))
	}
	opts.History = undo.NewHistory(undo.Config{
		MaxBytes:    cfg.Editor.UndoMaxBytes,
		MaxDepth:    cfg.Editor.UndoMaxDepth,
		MinInterval: 300 * time.Millisecond,
	})
	cache, err := imagecache.New(cfg.Editor.ImageCacheSize)
	if err != nil {
		return fmt.Errorf("image cache: %w", err)
	}
	opts.Images = cache
	opts.Feed = applog.NewFeed(cfg.Editor.StatusLines, slog.LevelInfo)

	client := channel.NewWSClient(channel.Options{
		URL:            cfg.Channel.URL,
		Token:          token,
		ReconnectDelay: cfg.Channel.ReconnectDelay(),
	})
	opts.Channel = client
	l.Info("device service", slog.String("url", cfg.Channel.URL))
	return ui.Run(ctx, opts, client.Run)
}
