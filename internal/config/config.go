/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package config loads the user-editable editor configuration: a YAML file in
// the user config directory, a .env file in the working directory, and
// environment overrides on top. The channel token lives in the OS keyring.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ChannelConfig struct {
	URL         string `yaml:"url"`
	ReconnectMs int    `yaml:"reconnect_ms"`
	// Token is not stored on disk; it lives in the OS keychain.
}

// ReconnectDelay returns ReconnectMs as a duration.
func (c ChannelConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectMs) * time.Millisecond
}

type WorkspaceConfig struct {
	Root        string `yaml:"root"`
	BackupsKeep int    `yaml:"backups_keep"` // newest backups kept after a save; negative keeps all
}

type EditorConfig struct {
	UndoMaxDepth   int `yaml:"undo_max_depth"`
	UndoMaxBytes   int `yaml:"undo_max_bytes"`
	StatusLines    int `yaml:"status_lines"`
	ImageCacheSize int `yaml:"image_cache_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is persisted to config.yaml. Environment variables are read-only
// overrides applied at load time and never written back.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	Channel       ChannelConfig   `yaml:"channel"`
	Workspace     WorkspaceConfig `yaml:"workspace"`
	Editor        EditorConfig    `yaml:"editor"`
	Logging       LoggingConfig   `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Channel:       ChannelConfig{URL: "ws://localhost:8765", ReconnectMs: 3000},
		Workspace:     WorkspaceConfig{Root: "", BackupsKeep: 20},
		Editor:        EditorConfig{UndoMaxDepth: 100, UndoMaxBytes: 16 << 20, StatusLines: 200, ImageCacheSize: 128},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvChannelURL       = "QSE_CHANNEL_URL"
	EnvChannelReconnect = "QSE_CHANNEL_RECONNECT_MS"
	EnvChannelToken     = "QSE_CHANNEL_TOKEN"
	EnvWorkspace        = "QSE_WORKSPACE"
	EnvConfigFile       = "QSE_CONFIG"
	EnvLogLevel         = "QSE_LOG_LEVEL"
	EnvLogFormat        = "QSE_LOG_FORMAT"
	EnvLogSource        = "QSE_LOG_SOURCE"
	EnvLogFile          = "QSE_LOG_FILE"
)

// ConfigPath returns the config file path: $QSE_CONFIG when set, otherwise
// config.yaml in the per-user config directory.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "QuestEditor")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "QuestEditor")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "questeditor")
		} else if h := os.Getenv("HOME"); h != "" {
			base = filepath.Join(h, ".config", "questeditor")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads .env (if present), the user config file (if present), applies
// defaults and environment overrides. The channel token comes from
// $QSE_CHANNEL_TOKEN or, failing that, the keyring; it is returned separately.
// A malformed config file is an error; a missing one is not.
func Load() (AppConfig, string, error) {
	_ = godotenv.Load()
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	} else if !errors.Is(err, os.ErrNotExist) {
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	tok := strings.TrimSpace(os.Getenv(EnvChannelToken))
	if tok == "" {
		tok, _ = tokenStore.Get(keyringService, keyringToken)
	}
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return fmt.Errorf("store channel token: %w", err)
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if v := strings.TrimSpace(src.Channel.URL); v != "" {
		dst.Channel.URL = v
	}
	if src.Channel.ReconnectMs > 0 {
		dst.Channel.ReconnectMs = src.Channel.ReconnectMs
	}
	if v := strings.TrimSpace(src.Workspace.Root); v != "" {
		dst.Workspace.Root = v
	}
	if src.Workspace.BackupsKeep != 0 {
		dst.Workspace.BackupsKeep = src.Workspace.BackupsKeep
	}
	mergePositive(&dst.Editor.UndoMaxDepth, src.Editor.UndoMaxDepth)
	mergePositive(&dst.Editor.UndoMaxBytes, src.Editor.UndoMaxBytes)
	mergePositive(&dst.Editor.StatusLines, src.Editor.StatusLines)
	mergePositive(&dst.Editor.ImageCacheSize, src.Editor.ImageCacheSize)
	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
}

func mergePositive(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvChannelURL)); v != "" {
		cfg.Channel.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvChannelReconnect)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Channel.ReconnectMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvWorkspace)); v != "" {
		cfg.Workspace.Root = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	var env string
	switch key {
	case "channel.url":
		env = EnvChannelURL
	case "channel.reconnect_ms":
		env = EnvChannelReconnect
	case "workspace.root":
		env = EnvWorkspace
	case "logging.level":
		env = EnvLogLevel
	case "logging.format":
		env = EnvLogFormat
	case "logging.source":
		env = EnvLogSource
	case "logging.file":
		env = EnvLogFile
	default:
		return "", false
	}
	if os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}
