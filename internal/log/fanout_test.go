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
	"testing"
)

func TestFanoutRespectsEachLevel(t *testing.T) {
	var debug, errs bytes.Buffer
	f := fanout{
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&errs, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	l := slog.New(f).WithGroup("g").With("a", 1)
	l.Debug("one")
	l.Error("two")

	if strings.Count(debug.String(), "\n") != 2 {
		t.Fatalf("debug sink = %q", debug.String())
	}
	if strings.Count(errs.String(), "\n") != 1 || !strings.Contains(errs.String(), "g.a=1") {
		t.Fatalf("error sink = %q", errs.String())
	}
	if f.Enabled(context.Background(), slog.LevelDebug-1) {
		t.Fatal("below every sink should be disabled")
	}
}
