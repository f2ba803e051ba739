/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"positron/internal/config"
	"positron/internal/editor"
	"positron/internal/scene"
	"positron/internal/server"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigFile, filepath.Join(dir, "config.yaml"))
	t.Setenv(config.EnvDataDir, filepath.Join(dir, "data"))
	// a DSN in the environment keeps Load away from the OS keychain
	t.Setenv(config.EnvPostgresDSN, "postgres://unused")
	t.Setenv(config.EnvLogLevel, "error")
	t.Setenv(config.EnvTelemetryOptIn, "")
	return dir
}

func runCmd(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	code := run(args, &out)
	return code, out.String()
}

func TestVersionAndUsage(t *testing.T) {
	code, out := runCmd(t, "version")
	if code != 0 || !strings.Contains(out, "Positron") {
		t.Fatalf("version: %d %q", code, out)
	}
	code, out = runCmd(t)
	if code != 0 || !strings.Contains(out, "Usage:") {
		t.Fatalf("usage: %d %q", code, out)
	}
}

func TestNewRenderAndPDF(t *testing.T) {
	dir := isolate(t)
	design := filepath.Join(dir, "flyer.json")
	if code, out := runCmd(t, "new", "flyer", design); code != 0 {
		t.Fatalf("new: %d %s", code, out)
	}
	b, err := os.ReadFile(design)
	if err != nil {
		t.Fatal(err)
	}
	d, err := scene.ParseDocument(b)
	if err != nil || d.Width != 595 {
		t.Fatalf("design %v %v", d.Width, err)
	}

	pngPath := filepath.Join(dir, "flyer.png")
	if code, out := runCmd(t, "render", design, pngPath, "0.5"); code != 0 {
		t.Fatalf("render: %d %s", code, out)
	}
	f, err := os.Open(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil || cfg.Width != 298 {
		t.Fatalf("png %+v %v", cfg, err)
	}

	pdfPath := filepath.Join(dir, "flyer.pdf")
	if code, out := runCmd(t, "pdf", design, pdfPath); code != 0 {
		t.Fatalf("pdf: %d %s", code, out)
	}
	head, _ := os.ReadFile(pdfPath)
	if !bytes.HasPrefix(head, []byte("%PDF")) {
		t.Fatal("not a pdf")
	}
}

func TestBatchWritesPresetDir(t *testing.T) {
	dir := isolate(t)
	design := filepath.Join(dir, "social.json")
	if code, out := runCmd(t, "new", "social", design); code != 0 {
		t.Fatalf("new: %d %s", code, out)
	}
	out := filepath.Join(dir, "out")
	code, msg := runCmd(t, "batch", design, "web", out)
	if code != 0 || strings.Count(msg, "Wrote") != 2 {
		t.Fatalf("batch: %d %s", code, msg)
	}
	if _, err := os.Stat(filepath.Join(out, "web")); err != nil {
		t.Fatal(err)
	}
}

func TestTemplatesAndErrors(t *testing.T) {
	isolate(t)
	code, out := runCmd(t, "templates")
	if code != 0 || !strings.Contains(out, "presentation") {
		t.Fatalf("templates: %d %q", code, out)
	}
	if code, _ := runCmd(t, "new", "nope", filepath.Join(t.TempDir(), "x.json")); code != 1 {
		t.Fatalf("unknown template exit %d", code)
	}
	if code, _ := runCmd(t, "render", "only-one-arg"); code != 2 {
		t.Fatalf("bad usage exit %d", code)
	}
	if code, _ := runCmd(t, "pack", "shrink", "x.zip"); code != 2 {
		t.Fatalf("bad pack action exit %d", code)
	}
}

func TestSlotsOnFreshStore(t *testing.T) {
	isolate(t)
	code, out := runCmd(t, "slots")
	if code != 0 || out != "" {
		t.Fatalf("slots: %d %q", code, out)
	}
	if code, _ := runCmd(t, "explode"); code != 2 {
		t.Fatalf("unknown command exit %d", code)
	}
}

func TestConfigPath(t *testing.T) {
	dir := isolate(t)
	code, out := runCmd(t, "config", "path")
	if code != 0 || strings.TrimSpace(out) != filepath.Join(dir, "config.yaml") {
		t.Fatalf("config path: %d %q", code, out)
	}
}

func TestRemoteAgainstServer(t *testing.T) {
	dir := isolate(t)
	ed := editor.New(editor.Options{})
	t.Cleanup(ed.Close)
	ts := httptest.NewServer(server.New(ed, server.Options{}).Handler())
	t.Cleanup(ts.Close)

	if code, out := runCmd(t, "remote", ts.URL, "shape", "triangle"); code != 0 || !strings.Contains(out, `"triangle"`) {
		t.Fatalf("shape: %d %s", code, out)
	}
	code, out := runCmd(t, "remote", ts.URL, "status")
	if code != 0 || !strings.Contains(out, `"objects": 1`) {
		t.Fatalf("status: %d %s", code, out)
	}
	pdfPath := filepath.Join(dir, "remote.pdf")
	if code, out := runCmd(t, "remote", ts.URL, "pdf", pdfPath); code != 0 {
		t.Fatalf("pdf: %d %s", code, out)
	}
	if _, err := os.Stat(pdfPath); err != nil {
		t.Fatal(err)
	}
	if code, _ := runCmd(t, "remote", ts.URL, "template", "nope"); code != 1 {
		t.Fatalf("missing template exit %d", code)
	}
	if code, _ := runCmd(t, "remote", ts.URL, "dance"); code != 2 {
		t.Fatalf("unknown action exit %d", code)
	}
}
