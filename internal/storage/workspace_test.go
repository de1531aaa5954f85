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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"questeditor/internal/quest"
)

const sampleQuest = `{
  "wolf_1f": {"_TYPE": "dungeon", "questName": "狼洞1f",
    "_TARGETINFOLIST": [
      ["press", "userscript/ok_btn", ["input tap 5 5", "userscript/retry.png"], 2],
      ["harken", "右下", [[0, 0, 10, 10]], "boss.png"],
      ["minimap_stair", "右下", [1, 2], "map1"],
      ["position", "右下", [3, 4]]
    ],
    "_EOT": [["input tap 1 1"]]},
  "church": {"_TYPE": "quest", "questName": "教會", "_TARGETINFOLIST": [], "_EOT": [["press", "boss", [], 1]]}
}`

func sampleDocument(t *testing.T) quest.Document {
	t.Helper()
	d, err := quest.Import([]byte(sampleQuest))
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}
	return d
}

func countBackups(t *testing.T, root string) int {
	t.Helper()
	names, err := backupFiles(root)
	if err != nil {
		t.Fatalf("backupFiles: %v", err)
	}
	return len(names)
}

func TestInitCreatesStructureAndQuestFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	ws, err := Init(root, sampleDocument(t))
	if err != nil {
		t.Fatalf("Init error: %v", err)
	}
	if ws.QuestPath != filepath.Join(root, QuestFileName) {
		t.Fatalf("quest path: got %q", ws.QuestPath)
	}
	for _, d := range []string{BackupsDirName, ImagesDirName} {
		if fi, err := os.Stat(filepath.Join(root, d)); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", d)
		}
	}
	b, err := os.ReadFile(ws.QuestPath)
	if err != nil {
		t.Fatalf("read quest file: %v", err)
	}
	if !strings.HasPrefix(string(b), "{\n    \"wolf_1f\": {") {
		t.Fatalf("quest file not in compact layout:\n%s", b)
	}
	if countBackups(t, root) != 0 {
		t.Fatalf("fresh workspace should have no backups")
	}
}

func TestInitRequiresRoot(t *testing.T) {
	if _, err := Init("  ", quest.Document{}); err == nil {
		t.Fatalf("expected error for blank root")
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	ws, err := Init(root, sampleDocument(t))
	if err != nil {
		t.Fatalf("Init error: %v", err)
	}
	ws.Document, err = ws.Document.Create("new_q", "New", "")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := Save(ws); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if n := countBackups(t, root); n == 0 {
		t.Fatalf("expected at least one backup file, found 0")
	}
	back, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if !back.Document.Has("new_q") {
		t.Fatalf("saved quest missing after reopen: %v", back.Document.IDs())
	}
	if !back.Document.Equal(ws.Document) {
		t.Fatalf("reopened document differs")
	}
}

func TestOpenFallsBackToLatestBackupOnCorruption(t *testing.T) {
	root := t.TempDir()
	ws, err := Init(root, sampleDocument(t))
	if err != nil {
		t.Fatalf("Init error: %v", err)
	}
	// second save leaves the first content as a backup
	if err := Save(ws); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := os.WriteFile(ws.QuestPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt quest file: %v", err)
	}
	got, err := Open(root)
	if err != nil {
		t.Fatalf("Open should fall back to backup: %v", err)
	}
	if !got.Document.Equal(ws.Document) {
		t.Fatalf("restored document differs: %v", got.Document.IDs())
	}
}

func TestOpenFailsWithoutBackup(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, QuestFileName), []byte(`[1, 2]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(root); err == nil {
		t.Fatalf("expected error for malformed file without backups")
	}
	if _, err := OpenOrInit(root); err == nil {
		t.Fatalf("OpenOrInit must not overwrite an existing malformed file")
	}
}

func TestOpenOrInitInitializesEmptyRoot(t *testing.T) {
	root := t.TempDir()
	ws, err := OpenOrInit(root)
	if err != nil {
		t.Fatalf("OpenOrInit error: %v", err)
	}
	if ws.Document.Len() != 0 {
		t.Fatalf("expected empty document, got %v", ws.Document.IDs())
	}
	if _, err := os.Stat(filepath.Join(root, QuestFileName)); err != nil {
		t.Fatalf("quest file not written: %v", err)
	}
	again, err := OpenOrInit(root)
	if err != nil {
		t.Fatalf("second OpenOrInit error: %v", err)
	}
	if again.Document.Len() != 0 {
		t.Fatalf("expected empty document on reopen")
	}
}

func TestPruneBackupsKeepsNewest(t *testing.T) {
	root := t.TempDir()
	if err := scaffold(root); err != nil {
		t.Fatal(err)
	}
	stamps := []string{"20250101-000000", "20250102-000000", "20250103-000000"}
	for _, s := range stamps {
		p := filepath.Join(root, BackupsDirName, QuestFileName+"."+s+".bak")
		if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := PruneBackups(root, 2)
	if err != nil {
		t.Fatalf("PruneBackups error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed: got %d want 1", removed)
	}
	names, _ := backupFiles(root)
	if len(names) != 2 || !strings.Contains(names[0], stamps[1]) {
		t.Fatalf("remaining backups: %v", names)
	}
	if n, _ := PruneBackups(root, 0); n != 0 {
		t.Fatalf("keep=0 must not remove anything")
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	root := t.TempDir()
	ws, err := Init(root, sampleDocument(t))
	if err != nil {
		t.Fatalf("Init error: %v", err)
	}
	ws.Document, _ = ws.Document.Delete("church")

	path, err := AutosaveCrashSnapshot(ws)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), QuestFileName+".crash-") {
		t.Fatalf("unexpected snapshot name %q", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	got, err := quest.Import(b)
	if err != nil {
		t.Fatalf("parse snapshot: %v", err)
	}
	if got.Has("church") || !got.Has("wolf_1f") {
		t.Fatalf("snapshot content mismatch: %v", got.IDs())
	}
	// the quest file itself is untouched
	disk, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if !disk.Document.Has("church") {
		t.Fatalf("crash snapshot must not overwrite quest file")
	}
	if countBackups(t, root) != 0 {
		t.Fatalf("crash snapshot must not count as a backup")
	}
}
