/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func lastJSON(t *testing.T, b []byte) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func resetLogger(t *testing.T) {
	t.Cleanup(func() { Init(Options{Level: "info", Console: io.Discard}) })
}

func TestFileSinkWritesJSON(t *testing.T) {
	resetLogger(t)
	path := filepath.Join(t.TempDir(), "logs", "positron.json")
	Init(Options{Level: "debug", Console: io.Discard, File: path})

	WithOperation(WithComponent("storage"), "save").Debug("slot written", slog.Int("bytes", 512))
	// release the file before TempDir cleanup
	Init(Options{Level: "info", Console: io.Discard})

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	m := lastJSON(t, b)
	if m["app"] != "positron" || m["component"] != "storage" || m["op"] != "save" {
		t.Fatalf("attrs = %v", m)
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("ver missing: %v", m)
	}
	if m["msg"] != "slot written" || m["bytes"] != float64(512) {
		t.Fatalf("record = %v", m)
	}
}

func TestContextIDsAreAttached(t *testing.T) {
	resetLogger(t)
	var buf bytes.Buffer
	Init(Options{Level: "info", Format: "json", Console: &buf})

	ctx := ContextWithTask(context.Background(), "task-7")
	ctx = ContextWithRequest(ctx, "host/000123")
	l := WithSession(WithComponent("ingest"), "s-1")
	l.InfoContext(ctx, "decoded")
	l.DebugContext(ctx, "hidden")

	if n := strings.Count(buf.String(), "\n"); n != 1 {
		t.Fatalf("lines = %d: %q", n, buf.String())
	}
	m := lastJSON(t, buf.Bytes())
	if m["session"] != "s-1" || m["task"] != "task-7" || m["req"] != "host/000123" {
		t.Fatalf("attrs = %v", m)
	}
}

func TestSetLevelAppliesToRunningLogger(t *testing.T) {
	resetLogger(t)
	var buf bytes.Buffer
	Init(Options{Level: "warn", Console: &buf})

	L().Info("quiet")
	if err := SetLevel("DEBUG"); err != nil {
		t.Fatal(err)
	}
	L().Debug("loud")
	if err := SetLevel("verbose"); err == nil {
		t.Fatal("unknown level accepted")
	}
	if Level() != slog.LevelDebug {
		t.Fatalf("level = %v", Level())
	}

	out := buf.String()
	if strings.Contains(out, "quiet") || !strings.Contains(out, "loud") {
		t.Fatalf("output = %q", out)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "warn")
	t.Setenv(EnvFormat, "json")
	t.Setenv(EnvSource, "TRUE")
	t.Setenv(EnvFile, "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv = %+v", opts)
	}
	t.Setenv(EnvLevel, "")
	if got := getenv(EnvLevel, "info"); got != "info" {
		t.Fatalf("getenv fallback = %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":    slog.LevelDebug,
		" WARN ":   slog.LevelWarn,
		"warning":  slog.LevelWarn,
		"error":    slog.LevelError,
		"":         slog.LevelInfo,
		"nonsense": slog.LevelInfo,
	} {
		if got := parseLevel(in).Level(); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRotationDefaults(t *testing.T) {
	got := Rotation{MaxBackups: 2}.withDefaults()
	if got.MaxSizeMB != 5 || got.MaxBackups != 2 || got.MaxAgeDays != 14 {
		t.Fatalf("rotation = %+v", got)
	}
}
