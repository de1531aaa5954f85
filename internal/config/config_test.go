/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type memStore struct{ m map[string]string }

func (s *memStore) Get(service, key string) (string, error) {
	v, ok := s.m[service+"/"+key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (s *memStore) Set(service, key, value string) error {
	s.m[service+"/"+key] = value
	return nil
}

func (s *memStore) Delete(service, key string) error {
	delete(s.m, service+"/"+key)
	return nil
}

// isolate points the config file into a temp dir and stubs the keyring.
func isolate(t *testing.T) (string, *memStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigFile, path)
	for _, k := range []string{EnvChannelURL, EnvChannelReconnect, EnvChannelToken, EnvWorkspace, EnvLogLevel, EnvLogFormat, EnvLogSource, EnvLogFile} {
		t.Setenv(k, "")
	}
	st := &memStore{m: map[string]string{}}
	old := SetTokenStore(st)
	t.Cleanup(func() { SetTokenStore(old) })
	return path, st
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Channel.URL != "ws://localhost:8765" || cfg.Channel.ReconnectDelay().Seconds() != 3 {
		t.Fatalf("channel defaults: %#v", cfg.Channel)
	}
	if tok != "" {
		t.Fatalf("expected no token, got %q", tok)
	}
}

func TestEnvOverridesChannel(t *testing.T) {
	isolate(t)
	t.Setenv(EnvChannelURL, "ws://device.test:9000")
	t.Setenv(EnvChannelReconnect, "500")
	t.Setenv(EnvWorkspace, "/data/quests")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Channel.URL, "ws://device.test:9000"; got != want {
		t.Fatalf("Channel.URL = %q, want %q", got, want)
	}
	if cfg.Channel.ReconnectMs != 500 || cfg.Workspace.Root != "/data/quests" {
		t.Fatalf("overrides not applied: %#v", cfg)
	}
	if env, ok := EnvOverrideFor("channel.url"); !ok || env != EnvChannelURL {
		t.Fatalf("EnvOverrideFor(channel.url) = %q, %v", env, ok)
	}
	if _, ok := EnvOverrideFor("logging.level"); ok {
		t.Fatalf("logging.level is not overridden")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path, st := isolate(t)
	cfg := Defaults()
	cfg.Channel.URL = "ws://10.0.0.2:8765"
	cfg.Editor.UndoMaxDepth = 7
	cfg.Workspace.BackupsKeep = -1
	if err := Save(cfg, "secret"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if st.m[keyringService+"/"+keyringToken] != "secret" {
		t.Fatalf("token not stored in keyring")
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Channel.URL != cfg.Channel.URL || got.Editor.UndoMaxDepth != 7 || got.Workspace.BackupsKeep != -1 {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if tok != "secret" {
		t.Fatalf("token: got %q", tok)
	}
	t.Setenv(EnvChannelToken, "from-env")
	if _, tok, _ := Load(); tok != "from-env" {
		t.Fatalf("env token should win, got %q", tok)
	}
	if err := DeleteToken(); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if len(st.m) != 0 {
		t.Fatalf("token not deleted")
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path, _ := isolate(t)
	if err := os.WriteFile(path, []byte("channel: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestMergeKeepsDefaultsForUnsetFields(t *testing.T) {
	dst := Defaults()
	src := AppConfig{Editor: EditorConfig{StatusLines: 50}, Logging: LoggingConfig{Level: " DEBUG ", Source: true}}
	mergeInto(&dst, &src)
	if dst.Editor.StatusLines != 50 || dst.Editor.UndoMaxDepth != 100 {
		t.Fatalf("editor merge: %#v", dst.Editor)
	}
	if dst.Workspace.BackupsKeep != 20 || dst.Channel.ReconnectMs != 3000 {
		t.Fatalf("unset fields overwritten: %#v", dst)
	}
	if dst.Logging.Level != "debug" || !dst.Logging.Source || dst.Logging.Format != "console" {
		t.Fatalf("logging merge: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "X:/qse.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/qse.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}
