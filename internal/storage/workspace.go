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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	applog "questeditor/internal/log"
	"questeditor/internal/quest"
)

const (
	QuestFileName  = "quest.json"
	BackupsDirName = "backups"
	ImagesDirName  = "images"
)

var standardSubDirs = []string{
	BackupsDirName,
	ImagesDirName,
}

// Workspace is a directory holding a quest document and its template images.
type Workspace struct {
	Root      string
	QuestPath string
	Document  quest.Document
}

// Init creates root and its subfolders and writes doc as the initial quest file.
func Init(root string, doc quest.Document) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is required")
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	ws := &Workspace{Root: root, QuestPath: filepath.Join(root, QuestFileName), Document: doc}
	if err := Save(ws); err != nil {
		return nil, err
	}
	return ws, nil
}

func scaffold(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// Open loads the quest document under root. If it cannot be read or parsed,
// the latest backup is tried.
func Open(root string) (*Workspace, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("root", root))
	qpath := filepath.Join(root, QuestFileName)
	b, err := os.ReadFile(qpath)
	if err != nil {
		doc, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("open quest file: %w; backup attempt: %v", err, berr)
		}
		l.Warn("quest file unreadable, restored latest backup", slog.Any("err", err))
		return &Workspace{Root: root, QuestPath: qpath, Document: doc}, nil
	}
	doc, perr := quest.Import(b)
	if perr != nil {
		doc, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("parse quest file: %w; backup attempt: %v", perr, berr)
		}
		l.Warn("quest file malformed, restored latest backup", slog.Any("err", perr))
		return &Workspace{Root: root, QuestPath: qpath, Document: doc}, nil
	}
	return &Workspace{Root: root, QuestPath: qpath, Document: doc}, nil
}

// OpenOrInit opens root, or initializes it with an empty document when it
// holds neither a quest file nor backups.
func OpenOrInit(root string) (*Workspace, error) {
	ws, err := Open(root)
	if err == nil {
		return ws, nil
	}
	if _, statErr := os.Stat(filepath.Join(root, QuestFileName)); errors.Is(statErr, os.ErrNotExist) && !hasBackups(root) {
		return Init(root, quest.Document{})
	}
	return nil, err
}

// Save writes ws.Document to disk with transactional semantics and a
// timestamped backup of the previous file (if present).
func Save(ws *Workspace) error {
	if ws == nil {
		return errors.New("nil Workspace")
	}
	if ws.Root == "" || ws.QuestPath == "" {
		return errors.New("invalid Workspace: missing paths")
	}
	data, err := quest.EncodeCompact(ws.Document)
	if err != nil {
		return fmt.Errorf("encode quest document: %w", err)
	}
	return writeWithBackup(ws.Root, ws.QuestPath, data)
}

func writeWithBackup(root, path string, data []byte) error {
	bdir := filepath.Join(root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		stamp := time.Now().Format("20060102-150405")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", QuestFileName, stamp))
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup current quest file: %w", cerr)
		}
	}
	return writeAtomic(path, data)
}

// AutosaveCrashSnapshot writes the in-memory document next to the backups as
// quest.json.crash-<stamp> without touching the quest file.
func AutosaveCrashSnapshot(ws *Workspace) (string, error) {
	if ws == nil || ws.Root == "" {
		return "", errors.New("invalid Workspace: missing root")
	}
	data, err := quest.EncodeCompact(ws.Document)
	if err != nil {
		return "", fmt.Errorf("encode quest document: %w", err)
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(ws.Root, BackupsDirName, fmt.Sprintf("%s.crash-%s", QuestFileName, stamp))
	if err := writeAtomic(path, data); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

// writeAtomic writes to a temp file in the same directory, then renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp file: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), rerr)
	}
	return nil
}

// PruneBackups removes all but the newest keep quest backups. keep <= 0 keeps everything.
func PruneBackups(root string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	candidates, err := backupFiles(root)
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(candidates) > keep {
		if err := os.Remove(candidates[0]); err != nil {
			return removed, fmt.Errorf("remove backup: %w", err)
		}
		candidates = candidates[1:]
		removed++
	}
	return removed, nil
}

func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// backupFiles returns quest backups oldest first; the timestamp in the name
// yields lexicographic order.
func backupFiles(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, QuestFileName+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	sort.Strings(candidates)
	return candidates, nil
}

func hasBackups(root string) bool {
	c, err := backupFiles(root)
	return err == nil && len(c) > 0
}

func openFromLatestBackup(root string) (quest.Document, error) {
	candidates, err := backupFiles(root)
	if err != nil {
		return quest.Document{}, err
	}
	if len(candidates) == 0 {
		return quest.Document{}, errors.New("no backups found")
	}
	latest := candidates[len(candidates)-1]
	b, err := os.ReadFile(latest)
	if err != nil {
		return quest.Document{}, fmt.Errorf("read latest backup: %w", err)
	}
	doc, err := quest.Import(b)
	if err != nil {
		return quest.Document{}, fmt.Errorf("parse latest backup: %w", err)
	}
	return doc, nil
}
