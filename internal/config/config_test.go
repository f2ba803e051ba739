/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

type memTokens map[string]string

func (m memTokens) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}

func (m memTokens) Set(service, key, value string) error {
	m[service+"/"+key] = value
	return nil
}

func (m memTokens) Delete(service, key string) error {
	if _, ok := m[service+"/"+key]; !ok {
		return keyring.ErrNotFound
	}
	delete(m, service+"/"+key)
	return nil
}

// isolate points the config file at a temp dir and stubs the keyring.
func isolate(t *testing.T) (string, memTokens) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(EnvConfigFile, filepath.Join(dir, "config.yaml"))
	t.Setenv(EnvDataDir, filepath.Join(dir, "data"))
	for _, k := range []string{EnvPostgresDSN, EnvTelemetryOptIn, EnvStorageDriver, EnvLogLevel, EnvLogFormat, EnvLogSource, EnvLogFile, EnvServerAddr, EnvServerToken} {
		t.Setenv(k, "")
	}
	toks := memTokens{}
	old := SetTokenStore(toks)
	t.Cleanup(func() { SetTokenStore(old) })
	return dir, toks
}

func TestLoadDefaults(t *testing.T) {
	dir, _ := isolate(t)
	cfg, dsn, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if dsn != "" {
		t.Fatalf("dsn = %q, want empty", dsn)
	}
	if cfg.Canvas.Width != 800 || cfg.Canvas.Height != 600 || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("defaults not applied: %#v", cfg)
	}
	if got, want := cfg.Storage.Path, filepath.Join(dir, "data", "positron.sqlite"); got != want {
		t.Fatalf("Storage.Path = %q, want %q", got, want)
	}
	if got, want := cfg.General.TemplatesDir, filepath.Join(dir, "data", "templates"); got != want {
		t.Fatalf("TemplatesDir = %q, want %q", got, want)
	}
}

func TestSaveLoadRoundTripAndKeyring(t *testing.T) {
	_, toks := isolate(t)
	cfg := Defaults()
	cfg.Canvas = CanvasConfig{Width: 1024, Height: 768}
	cfg.History.MaxEntries = 50
	cfg.Server.Enabled = true
	if err := Save(cfg, "postgres://u:p@localhost/positron"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if toks["Positron/postgres_dsn"] == "" {
		t.Fatal("dsn not stored in keyring")
	}
	got, dsn, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Canvas.Width != 1024 || got.History.MaxEntries != 50 || !got.Server.Enabled {
		t.Fatalf("round trip lost fields: %#v", got)
	}
	if dsn != "postgres://u:p@localhost/positron" {
		t.Fatalf("dsn = %q", dsn)
	}
	if err := ForgetDSN(); err != nil {
		t.Fatal(err)
	}
	if err := ForgetDSN(); err != nil {
		t.Fatalf("forgetting twice should be fine: %v", err)
	}
}

func TestEnvDSNWinsOverKeyring(t *testing.T) {
	_, toks := isolate(t)
	toks["Positron/postgres_dsn"] = "from-keyring"
	t.Setenv(EnvPostgresDSN, "from-env")
	_, dsn, err := Load()
	if err != nil || dsn != "from-env" {
		t.Fatalf("dsn = %q, %v", dsn, err)
	}
}

func TestBrokenFileIsAnError(t *testing.T) {
	dir, _ := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("canvas: [1,"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatal("want parse error")
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTelemetryOptIn, "true")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
}

func TestMergeIncludesServerAndCanvas(t *testing.T) {
	dst := Defaults()
	src := AppConfig{Server: ServerConfig{Enabled: true, Addr: ":9999"}, Canvas: CanvasConfig{Width: 10}}
	mergeInto(&dst, &src)
	if !dst.Server.Enabled || dst.Server.Addr != ":9999" {
		t.Fatalf("server not merged: %#v", dst.Server)
	}
	if dst.Canvas.Width != 800 {
		t.Fatalf("a half-set canvas must not be merged: %#v", dst.Canvas)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/positron.log"
	src.Logging.MaxBackups = 3
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/positron.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
	opts := dst.Logging.LogOptions()
	if opts.Level != "debug" || !opts.AddSource || opts.Rotation.MaxBackups != 3 || opts.Rotation.MaxSizeMB != 0 {
		t.Fatalf("log options %#v", opts)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/tmp/p.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/tmp/p.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
	if name, ok := EnvOverrideFor("logging.level"); !ok || name != EnvLogLevel {
		t.Fatalf("EnvOverrideFor = %q %v", name, ok)
	}
	if _, ok := EnvOverrideFor("server.addr"); ok {
		t.Fatal("unset env must not report an override")
	}
	if _, ok := EnvOverrideFor("nope"); ok {
		t.Fatal("unknown key")
	}
}

func TestConversions(t *testing.T) {
	cfg := Defaults()
	cfg.History.CoalesceMs = 250
	cfg.Ingest.TickMs = 10
	if got := cfg.HistoryOptions().MinInterval; got != 250*time.Millisecond {
		t.Fatalf("MinInterval = %v", got)
	}
	if got := cfg.IngestOptions().TickInterval; got != 10*time.Millisecond {
		t.Fatalf("TickInterval = %v", got)
	}
	sc := cfg.StorageOptions("dsn")
	if sc.Driver != "sqlite" || sc.DSN != "dsn" {
		t.Fatalf("storage %#v", sc)
	}
	r, w := cfg.Server.Timeouts()
	if r != 15*time.Second || w != 30*time.Second {
		t.Fatalf("timeouts %v %v", r, w)
	}
}

func TestServerTokenFromEnvOnly(t *testing.T) {
	isolate(t)
	t.Setenv(EnvServerToken, "zq-secret-42")
	cfg, _, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Token != "zq-secret-42" {
		t.Fatalf("token %q", cfg.Server.Token)
	}
	if err := Save(cfg, ""); err != nil {
		t.Fatal(err)
	}
	path, _ := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "zq-secret-42") {
		t.Fatal("token written to the config file")
	}
}
