/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration: a YAML file in the per-user
// config directory, environment overrides on top, and the Postgres DSN from
// the OS keychain.
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

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"positron/internal/history"
	"positron/internal/ingest"
	applog "positron/internal/log"
	"positron/internal/storage"
)

// CurrentVersion is written to new config files.
const CurrentVersion = 1

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
	DataDir        string `yaml:"data_dir"`
	TemplatesDir   string `yaml:"templates_dir"`
	ExportDir      string `yaml:"export_dir"`
}

type CanvasConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type HistoryConfig struct {
	MaxBytes   int `yaml:"max_bytes"`
	MaxEntries int `yaml:"max_entries"`
	CoalesceMs int `yaml:"coalesce_ms"` // 0 disables coalescing
}

type IngestConfig struct {
	MaxBytes int64   `yaml:"max_bytes"`
	TickMs   int     `yaml:"tick_ms"`
	FitRatio float64 `yaml:"fit_ratio"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	Path   string `yaml:"path"`   // sqlite file; empty means <data_dir>/positron.sqlite
	// The Postgres DSN is not stored on disk; it lives in the OS keychain.
}

type ServerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Addr           string `yaml:"addr"`
	ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMs int    `yaml:"write_timeout_ms"`
	// Token guards the API. It is read from the environment only.
	Token          string `yaml:"-"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Source     bool   `yaml:"source"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// AppConfig is the user-editable configuration. Environment variables are
// read-only overrides applied at load time.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Canvas        CanvasConfig  `yaml:"canvas"`
	History       HistoryConfig `yaml:"history"`
	Ingest        IngestConfig  `yaml:"ingest"`
	Storage       StorageConfig `yaml:"storage"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	ing := ingest.DefaultConfig()
	return AppConfig{
		ConfigVersion: CurrentVersion,
		General:       GeneralConfig{Theme: "system"},
		Canvas:        CanvasConfig{Width: 800, Height: 600},
		History:       HistoryConfig{MaxBytes: history.DefaultMaxBytes},
		Ingest: IngestConfig{
			MaxBytes: ing.MaxBytes,
			TickMs:   int(ing.TickInterval / time.Millisecond),
			FitRatio: ing.FitRatio,
		},
		Storage: StorageConfig{Driver: "sqlite"},
		Server:  ServerConfig{Addr: "127.0.0.1:8080", ReadTimeoutMs: 15000, WriteTimeoutMs: 30000},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile     = "POSITRON_CONFIG"
	EnvDataDir        = "POSITRON_DATA_DIR"
	EnvTemplatesDir   = "POSITRON_TEMPLATES_DIR"
	EnvTelemetryOptIn = "POSITRON_TELEMETRY_OPT_IN"
	EnvCanvasWidth    = "POSITRON_CANVAS_WIDTH"
	EnvCanvasHeight   = "POSITRON_CANVAS_HEIGHT"
	EnvHistoryBytes   = "POSITRON_HISTORY_MAX_BYTES"
	EnvIngestMaxBytes = "POSITRON_INGEST_MAX_BYTES"
	EnvStorageDriver  = "POSITRON_STORAGE_DRIVER"
	EnvStoragePath    = "POSITRON_STORAGE_PATH"
	EnvPostgresDSN    = "POSITRON_PG_DSN"
	EnvServerEnabled  = "POSITRON_ENABLE_SERVER"
	EnvServerAddr     = "POSITRON_SERVER_ADDR"
	EnvServerToken    = "POSITRON_SERVER_TOKEN"
	EnvLogLevel       = applog.EnvLevel
	EnvLogFormat      = applog.EnvFormat
	EnvLogSource      = applog.EnvSource
	EnvLogFile        = applog.EnvFile
)

// Service/keys for the OS keyring.
const (
	keyringService = "Positron"
	keyringDSN     = "postgres_dsn"
)

// TokenStore abstracts the keyring so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

var tokenStore TokenStore = osKeyring{}

// SetTokenStore replaces the secret store and returns the previous one.
func SetTokenStore(s TokenStore) TokenStore {
	old := tokenStore
	tokenStore = s
	return old
}

// osKeyring stores secrets in the OS keychain via go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error { return keyring.Delete(service, key) }

// appDir returns the per-user directory of the given kind ("config" or "data").
func appDir(kind string) (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return filepath.Join(base, "Positron"), nil
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Positron")
		return base, nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", errors.New("cannot resolve home directory")
	}
	if kind == "data" {
		if x := os.Getenv("XDG_DATA_HOME"); x != "" {
			return filepath.Join(x, "positron"), nil
		}
		return filepath.Join(home, ".local", "share", "positron"), nil
	}
	if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
		return filepath.Join(x, "positron"), nil
	}
	return filepath.Join(home, ".config", "positron"), nil
}

// ConfigPath returns the config file path. POSITRON_CONFIG wins.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	dir, err := appDir("config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config file (if present), applies defaults, and merges
// environment overrides. The Postgres DSN is returned separately: from
// POSITRON_PG_DSN, else from the keyring.
func Load() (AppConfig, string, error) {
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
		return cfg, "", fmt.Errorf("read config: %w", err)
	}
	applyEnvOverrides(&cfg)
	if err := cfg.resolvePaths(); err != nil {
		return cfg, "", err
	}
	dsn := strings.TrimSpace(os.Getenv(EnvPostgresDSN))
	if dsn == "" {
		dsn, _ = tokenStore.Get(keyringService, keyringDSN)
	}
	return cfg, dsn, nil
}

// Save writes the config YAML and stores dsn in the keyring when non-empty.
func Save(cfg AppConfig, dsn string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if dsn != "" {
		if err := tokenStore.Set(keyringService, keyringDSN, dsn); err != nil {
			return fmt.Errorf("store dsn: %w", err)
		}
	}
	return nil
}

// ForgetDSN removes the stored Postgres DSN.
func ForgetDSN() error {
	err := tokenStore.Delete(keyringService, keyringDSN)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func (c *AppConfig) resolvePaths() error {
	if c.General.DataDir == "" {
		dir, err := appDir("data")
		if err != nil {
			return err
		}
		c.General.DataDir = dir
	}
	if c.General.TemplatesDir == "" {
		c.General.TemplatesDir = filepath.Join(c.General.DataDir, "templates")
	}
	if c.General.ExportDir == "" {
		c.General.ExportDir = filepath.Join(c.General.DataDir, "exports")
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.General.DataDir, storage.DBFileName)
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	dst.Server.Enabled = src.Server.Enabled
	dst.Logging.Source = src.Logging.Source

	setStr(&dst.General.Theme, src.General.Theme)
	setStr(&dst.General.DataDir, src.General.DataDir)
	setStr(&dst.General.TemplatesDir, src.General.TemplatesDir)
	setStr(&dst.General.ExportDir, src.General.ExportDir)
	if src.Canvas.Width > 0 && src.Canvas.Height > 0 {
		dst.Canvas = src.Canvas
	}
	if src.History.MaxBytes > 0 {
		dst.History.MaxBytes = src.History.MaxBytes
	}
	if src.History.MaxEntries > 0 {
		dst.History.MaxEntries = src.History.MaxEntries
	}
	if src.History.CoalesceMs > 0 {
		dst.History.CoalesceMs = src.History.CoalesceMs
	}
	if src.Ingest.MaxBytes > 0 {
		dst.Ingest.MaxBytes = src.Ingest.MaxBytes
	}
	if src.Ingest.TickMs > 0 {
		dst.Ingest.TickMs = src.Ingest.TickMs
	}
	if src.Ingest.FitRatio > 0 && src.Ingest.FitRatio <= 1 {
		dst.Ingest.FitRatio = src.Ingest.FitRatio
	}
	setStr(&dst.Storage.Driver, strings.ToLower(src.Storage.Driver))
	setStr(&dst.Storage.Path, src.Storage.Path)
	setStr(&dst.Server.Addr, src.Server.Addr)
	if src.Server.ReadTimeoutMs > 0 {
		dst.Server.ReadTimeoutMs = src.Server.ReadTimeoutMs
	}
	if src.Server.WriteTimeoutMs > 0 {
		dst.Server.WriteTimeoutMs = src.Server.WriteTimeoutMs
	}
	setStr(&dst.Logging.Level, strings.ToLower(src.Logging.Level))
	setStr(&dst.Logging.Format, strings.ToLower(src.Logging.Format))
	setStr(&dst.Logging.File, src.Logging.File)
	if src.Logging.MaxSizeMB > 0 {
		dst.Logging.MaxSizeMB = src.Logging.MaxSizeMB
	}
	if src.Logging.MaxBackups > 0 {
		dst.Logging.MaxBackups = src.Logging.MaxBackups
	}
	if src.Logging.MaxAgeDays > 0 {
		dst.Logging.MaxAgeDays = src.Logging.MaxAgeDays
	}
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func envBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func applyEnvOverrides(cfg *AppConfig) {
	env := func(k string) string { return strings.TrimSpace(os.Getenv(k)) }
	setStr(&cfg.General.DataDir, env(EnvDataDir))
	setStr(&cfg.General.TemplatesDir, env(EnvTemplatesDir))
	if v := env(EnvTelemetryOptIn); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	if v, err := strconv.ParseFloat(env(EnvCanvasWidth), 64); err == nil && v > 0 {
		cfg.Canvas.Width = v
	}
	if v, err := strconv.ParseFloat(env(EnvCanvasHeight), 64); err == nil && v > 0 {
		cfg.Canvas.Height = v
	}
	if n, err := strconv.Atoi(env(EnvHistoryBytes)); err == nil && n > 0 {
		cfg.History.MaxBytes = n
	}
	if n, err := strconv.ParseInt(env(EnvIngestMaxBytes), 10, 64); err == nil && n > 0 {
		cfg.Ingest.MaxBytes = n
	}
	setStr(&cfg.Storage.Driver, strings.ToLower(env(EnvStorageDriver)))
	setStr(&cfg.Storage.Path, env(EnvStoragePath))
	if v := env(EnvServerEnabled); v != "" {
		cfg.Server.Enabled = envBool(v)
	}
	setStr(&cfg.Server.Addr, env(EnvServerAddr))
	setStr(&cfg.Server.Token, env(EnvServerToken))
	setStr(&cfg.Logging.Level, strings.ToLower(env(EnvLogLevel)))
	setStr(&cfg.Logging.Format, strings.ToLower(env(EnvLogFormat)))
	if v := env(EnvLogSource); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	setStr(&cfg.Logging.File, env(EnvLogFile))
}

var overrides = map[string]string{
	"general.data_dir":         EnvDataDir,
	"general.templates_dir":    EnvTemplatesDir,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"canvas.width":             EnvCanvasWidth,
	"canvas.height":            EnvCanvasHeight,
	"history.max_bytes":        EnvHistoryBytes,
	"ingest.max_bytes":         EnvIngestMaxBytes,
	"storage.driver":           EnvStorageDriver,
	"storage.path":             EnvStoragePath,
	"storage.dsn":              EnvPostgresDSN,
	"server.enabled":           EnvServerEnabled,
	"server.addr":              EnvServerAddr,
	"server.token":             EnvServerToken,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by the
// environment.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := overrides[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// LogOptions converts the logging section for log.Init.
func (l LoggingConfig) LogOptions() applog.Options {
	return applog.Options{
		Level:     l.Level,
		Format:    l.Format,
		AddSource: l.Source,
		File:      l.File,
		Rotation:  applog.Rotation{MaxSizeMB: l.MaxSizeMB, MaxBackups: l.MaxBackups, MaxAgeDays: l.MaxAgeDays},
	}
}

// HistoryOptions converts the history section.
func (c AppConfig) HistoryOptions() history.Config {
	return history.Config{
		MaxBytes:    c.History.MaxBytes,
		MaxEntries:  c.History.MaxEntries,
		MinInterval: time.Duration(c.History.CoalesceMs) * time.Millisecond,
	}
}

// IngestOptions converts the ingest section.
func (c AppConfig) IngestOptions() ingest.Config {
	cfg := ingest.DefaultConfig()
	if c.Ingest.MaxBytes > 0 {
		cfg.MaxBytes = c.Ingest.MaxBytes
	}
	if c.Ingest.TickMs > 0 {
		cfg.TickInterval = time.Duration(c.Ingest.TickMs) * time.Millisecond
	}
	if c.Ingest.FitRatio > 0 {
		cfg.FitRatio = c.Ingest.FitRatio
	}
	return cfg
}

// StorageOptions converts the storage section, adding the DSN.
func (c AppConfig) StorageOptions(dsn string) storage.Config {
	return storage.Config{Driver: c.Storage.Driver, Path: c.Storage.Path, DSN: dsn}
}

// Timeouts returns the HTTP server read and write timeouts.
func (s ServerConfig) Timeouts() (read, write time.Duration) {
	return time.Duration(s.ReadTimeoutMs) * time.Millisecond, time.Duration(s.WriteTimeoutMs) * time.Millisecond
}
