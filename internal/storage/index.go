/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"questeditor/internal/action"
	applog "questeditor/internal/log"
	"questeditor/internal/quest"
	"questeditor/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores per-workspace derived data under the workspace root.
	IndexDirName  = ".qse"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	schemaVersion = 2
)

// IndexPath returns the full path to the workspace's index database file.
func IndexPath(root string) string {
	return filepath.Join(root, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the SQLite index exists at .qse/index.sqlite,
// opens it in WAL mode and brings its schema up to date.
func InitOrOpenIndex(root string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", root),
	)
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, IndexDirName), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create %s dir: %w", IndexDirName, err)
	}

	path := IndexPath(root)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh DB starts at schema 1 and migrates forward
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_image_refs_quest ON image_refs(quest_id);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates the item and image reference tables.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// One row per action item, carrying its one-line summary for search.
		`CREATE TABLE IF NOT EXISTS items (
			item_id    INTEGER PRIMARY KEY,
			quest_id   TEXT    NOT NULL,
			list       TEXT    NOT NULL,
			item_index INTEGER NOT NULL,
			variant    TEXT    NOT NULL,
			text       TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_items_quest ON items(quest_id, list, item_index);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_items USING fts5(
			text,
			content='items',
			content_rowid='item_id',
			tokenize = 'unicode61'
		);`,
		`CREATE TABLE IF NOT EXISTS image_refs (
			image      TEXT    NOT NULL,
			quest_id   TEXT    NOT NULL,
			list       TEXT    NOT NULL,
			item_index INTEGER NOT NULL,
			field      TEXT    NOT NULL,
			sub_index  INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_image_refs_image ON image_refs(image);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS items_ai AFTER INSERT ON items BEGIN
			INSERT INTO fts_items(rowid, text) VALUES (new.item_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS items_ad AFTER DELETE ON items BEGIN
			INSERT INTO fts_items(fts_items, rowid, text) VALUES ('delete', old.item_id, old.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// RebuildIndex replaces the index content with the items and image references of doc.
func RebuildIndex(ctx context.Context, db *sql.DB, doc quest.Document) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, q := range []string{"DELETE FROM items;", "DELETE FROM image_refs;"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear index: %w", err)
		}
	}
	insItem, err := tx.PrepareContext(ctx, "INSERT INTO items(quest_id, list, item_index, variant, text) VALUES(?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insItem.Close()
	for _, id := range doc.IDs() {
		s, _ := doc.Get(id)
		for _, k := range []quest.ListKind{quest.ListDungeon, quest.ListVillage} {
			for i, it := range s.List(k) {
				text := strings.TrimSpace(id + " " + s.DisplayName + " " + string(it.Variant()) + " " + action.Summary(it))
				if _, err := insItem.ExecContext(ctx, id, string(k), i, string(it.Variant()), text); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("insert item: %w", err)
				}
			}
		}
	}
	insRef, err := tx.PrepareContext(ctx, "INSERT INTO image_refs(image, quest_id, list, item_index, field, sub_index) VALUES(?,?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insRef.Close()
	for _, r := range quest.ImageRefs(doc) {
		if _, err := insRef.ExecContext(ctx, imageKey(r.Image), r.QuestID, string(r.List), r.Index, r.Field, r.SubIndex); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert image ref: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DetectAndRebuildIndex opens the index of root, replacing the file when it is
// unreadable or corrupt, and refreshes its content from doc. It reports
// whether the file had to be replaced.
func DetectAndRebuildIndex(ctx context.Context, root string, doc quest.Document) (bool, error) {
	path := IndexPath(root)
	replaced := false
	db, err := InitOrOpenIndex(root)
	if err == nil {
		var chk string
		if qerr := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); qerr != nil || !strings.Contains(strings.ToLower(chk), "ok") {
			_ = db.Close()
			db, err = nil, fmt.Errorf("quick_check: %q %v", chk, qerr)
		}
	}
	if err != nil {
		backupIndexFile(path)
		for _, p := range []string{path, path + "-wal", path + "-shm"} {
			_ = os.Remove(p)
		}
		replaced = true
		if db, err = InitOrOpenIndex(root); err != nil {
			return replaced, fmt.Errorf("recreate index: %w", err)
		}
	}
	defer db.Close()
	return replaced, RebuildIndex(ctx, db, doc)
}

// backupIndexFile copies the current index file into .qse/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

// imageKey folds the png extension and path separators so stored names and
// field values compare equal.
func imageKey(name string) string {
	n := strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	if strings.HasSuffix(strings.ToLower(n), ".png") {
		n = n[:len(n)-4]
	}
	return n
}
