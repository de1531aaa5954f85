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
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"questeditor/internal/quest"

	_ "modernc.org/sqlite"
)

func openIndexed(t *testing.T, doc quest.Document) *sql.DB {
	t.Helper()
	db, err := InitOrOpenIndex(t.TempDir())
	if err != nil {
		t.Fatalf("InitOrOpenIndex: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := RebuildIndex(context.Background(), db, doc); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	return db
}

func TestInitOrOpenIndexSchemaVersion(t *testing.T) {
	root := t.TempDir()
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("InitOrOpenIndex: %v", err)
	}
	defer db.Close()
	var schema int
	if err := db.QueryRow(`SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("schema: got %d want %d", schema, schemaVersion)
	}
	if _, err := os.Stat(IndexPath(root)); err != nil {
		t.Fatalf("index file missing: %v", err)
	}
}

func TestWhereUsedAndDangling(t *testing.T) {
	db := openIndexed(t, sampleDocument(t))
	ctx := context.Background()

	refs, err := WhereUsed(ctx, db, "boss.png")
	if err != nil {
		t.Fatalf("WhereUsed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("refs: got %+v", refs)
	}
	want0 := quest.ImageRef{Image: "boss", QuestID: "wolf_1f", List: quest.ListDungeon, Index: 1, Field: "target_pattern", SubIndex: -1}
	want1 := quest.ImageRef{Image: "boss", QuestID: "church", List: quest.ListVillage, Index: 0, Field: "target_pattern", SubIndex: -1}
	if refs[0] != want0 || refs[1] != want1 {
		t.Fatalf("refs: got %+v", refs)
	}

	fb, err := WhereUsed(ctx, db, "userscript/retry")
	if err != nil {
		t.Fatalf("WhereUsed: %v", err)
	}
	if len(fb) != 1 || fb[0].Field != "fallback_value" || fb[0].SubIndex != 1 {
		t.Fatalf("fallback ref: got %+v", fb)
	}

	missing, err := Dangling(ctx, db, []string{"userscript/ok_btn.png", "boss.png"})
	if err != nil {
		t.Fatalf("Dangling: %v", err)
	}
	if want := []string{"map1", "userscript/retry"}; !reflect.DeepEqual(missing, want) {
		t.Fatalf("Dangling: got %v want %v", missing, want)
	}
}

func TestRebuildIndexReplacesContent(t *testing.T) {
	doc := sampleDocument(t)
	db := openIndexed(t, doc)
	ctx := context.Background()

	next, _ := doc.Delete("church")
	if err := RebuildIndex(ctx, db, next); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	refs, err := WhereUsed(ctx, db, "boss")
	if err != nil {
		t.Fatalf("WhereUsed: %v", err)
	}
	if len(refs) != 1 || refs[0].QuestID != "wolf_1f" {
		t.Fatalf("stale refs after rebuild: %+v", refs)
	}
	hits, err := SearchItems(ctx, db, "church", 0)
	if err != nil {
		t.Fatalf("SearchItems: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("stale search hits: %+v", hits)
	}
}

func TestSearchItems(t *testing.T) {
	db := openIndexed(t, sampleDocument(t))
	hits, err := SearchItems(context.Background(), db, "church", 10)
	if err != nil {
		t.Fatalf("SearchItems: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits: got %+v", hits)
	}
	h := hits[0]
	if h.QuestID != "church" || h.List != quest.ListVillage || h.Index != 0 || h.Variant != "press" {
		t.Fatalf("hit: got %+v", h)
	}
	if none, _ := SearchItems(context.Background(), db, "   ", 10); none != nil {
		t.Fatalf("blank query should return nil, got %+v", none)
	}
}

// TestMigrations_UpgradeV1ToV2 ensures that an older DB (schema=1) is migrated and the quest index exists.
func TestMigrations_UpgradeV1ToV2(t *testing.T) {
	root := t.TempDir()
	idx := IndexPath(root)
	if err := os.MkdirAll(filepath.Dir(idx), 0o755); err != nil {
		t.Fatalf("mk %s: %v", IndexDirName, err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(idx))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z');`,
		`CREATE TABLE IF NOT EXISTS image_refs (image TEXT NOT NULL, quest_id TEXT NOT NULL, list TEXT NOT NULL, item_index INTEGER NOT NULL, field TEXT NOT NULL, sub_index INTEGER NOT NULL);`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed v1 schema: %v (q=%s)", err, q)
		}
	}
	db.Close()

	mdb, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("InitOrOpenIndex: %v", err)
	}
	defer mdb.Close()
	var schema int
	if err := mdb.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != 2 {
		t.Fatalf("expected schema 2 after migration, got %d", schema)
	}
	var cnt int
	if err := mdb.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name='idx_image_refs_quest'`).Scan(&cnt); err != nil {
		t.Fatalf("query indexes: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected idx_image_refs_quest after migration, got %d", cnt)
	}
}

func TestDetectAndRebuildIndex_OnCorruption(t *testing.T) {
	root := t.TempDir()
	doc := sampleDocument(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	replaced, err := DetectAndRebuildIndex(ctx, root, doc)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if replaced {
		t.Fatalf("healthy index should not be replaced")
	}

	idx := IndexPath(root)
	for _, p := range []string{idx + "-wal", idx + "-shm"} {
		_ = os.Remove(p)
	}
	if err := os.WriteFile(idx, []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	replaced, err = DetectAndRebuildIndex(ctx, root, doc)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if !replaced {
		t.Fatalf("expected rebuild to occur")
	}
	bdir := filepath.Join(root, IndexDirName, "backups")
	entries, _ := os.ReadDir(bdir)
	if len(entries) == 0 {
		t.Fatalf("expected backup file in %s", bdir)
	}

	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	refs, err := WhereUsed(ctx, db, "map1")
	if err != nil || len(refs) != 1 {
		t.Fatalf("rebuilt index content: %+v %v", refs, err)
	}
}
