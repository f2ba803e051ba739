/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeSaver struct {
	calls int
	err   error
}

func (f *fakeSaver) Autosave(ctx context.Context) error {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("autosave without deadline")
	}
	return f.err
}

func silenceStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w
	t.Cleanup(func() {
		_ = w.Close()
		os.Stderr = old
		_, _ = io.Copy(io.Discard, r)
	})
}

func interceptExit(t *testing.T) *int {
	t.Helper()
	code := -1
	old := exitFn
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { exitFn = old })
	return &code
}

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport("", "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "Positron Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func TestWriteReportUsesDataDir(t *testing.T) {
	root := t.TempDir()
	path, err := writeReport(root, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(root, ReportsDirName) {
		t.Fatalf("expected crash report under %s, got %s", ReportsDirName, path)
	}
}

func TestRecoverWritesReportAndAutosaves(t *testing.T) {
	silenceStderr(t)
	code := interceptExit(t)
	root := t.TempDir()
	saver := &fakeSaver{}

	func() {
		defer Recover(root, saver)
		panic("boom")
	}()

	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
	if saver.calls != 1 {
		t.Fatalf("autosave calls = %d", saver.calls)
	}
	files, _ := os.ReadDir(filepath.Join(root, ReportsDirName))
	if len(files) != 1 || !strings.HasPrefix(files[0].Name(), "crash-") {
		t.Fatalf("reports: %v", files)
	}
	b, err := os.ReadFile(filepath.Join(root, ReportsDirName, files[0].Name()))
	if err != nil || !strings.Contains(string(b), "Panic: boom") {
		t.Fatalf("report does not contain panic: %s %v", b, err)
	}
}

func TestRecoverWithFailingAutosaveStillExits(t *testing.T) {
	silenceStderr(t)
	code := interceptExit(t)
	saver := &fakeSaver{err: errors.New("disk full")}
	func() {
		defer Recover(t.TempDir(), saver)
		panic(errors.New("bad"))
	}()
	if *code != 2 || saver.calls != 1 {
		t.Fatalf("code=%d calls=%d", *code, saver.calls)
	}
}

func TestRecoverWithoutPanicDoesNothing(t *testing.T) {
	code := interceptExit(t)
	saver := &fakeSaver{}
	func() {
		defer Recover(t.TempDir(), saver)
	}()
	if *code != -1 || saver.calls != 0 {
		t.Fatalf("code=%d calls=%d", *code, saver.calls)
	}
}
