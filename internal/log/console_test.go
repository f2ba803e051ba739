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
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestConsoleHandlerFormatsRecord(t *testing.T) {
	var buf bytes.Buffer
	h := newConsoleHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	ctx := context.Background()

	if h.Enabled(ctx, slog.LevelInfo) || !h.Enabled(ctx, slog.LevelError) {
		t.Fatal("level filter not applied")
	}

	g := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).WithGroup("grp")
	r := slog.NewRecord(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), slog.LevelError, "boom", 0)
	r.AddAttrs(
		slog.Int("n", 42),
		slog.Float64("pi", 3.14),
		slog.String("name", "two words"),
		slog.Group("size", slog.Int("w", 800)),
	)
	if err := g.Handle(ctx, r); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"ERR boom", " k=v", "grp.n=42", "grp.pi=3.14", `grp.name="two words"`, "grp.size.w=800"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "grp.k=") {
		t.Errorf("group prefix leaked onto earlier attrs: %q", out)
	}
}

func TestLevelTags(t *testing.T) {
	for l, want := range map[slog.Level]string{
		slog.LevelDebug:     "DBG",
		slog.LevelInfo:      "INF",
		slog.LevelWarn:      "WRN",
		slog.LevelError:     "ERR",
		slog.LevelError + 4: "ERR",
	} {
		if got := levelTag(l); got != want {
			t.Errorf("levelTag(%v) = %q, want %q", l, got, want)
		}
	}
}

func TestConsoleHandlerConcurrentLines(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(newConsoleHandler(&buf, nil))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				l.Info("tick", "worker", i, "n", j)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 200 {
		t.Fatalf("lines = %d", len(lines))
	}
	for _, line := range lines {
		if !strings.Contains(line, "INF tick worker=") {
			t.Fatalf("torn line %q", line)
		}
	}
}
