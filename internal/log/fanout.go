/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"context"
	"log/slog"
)

// enrich copies ids stored by ContextWithTask and ContextWithRequest onto
// each record.
type enrich struct{ next slog.Handler }

func (e enrich) Enabled(ctx context.Context, l slog.Level) bool { return e.next.Enabled(ctx, l) }

func (e enrich) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if id, ok := ctx.Value(taskKey).(string); ok && id != "" {
			r.AddAttrs(slog.String("task", id))
		}
		if id, ok := ctx.Value(requestKey).(string); ok && id != "" {
			r.AddAttrs(slog.String("req", id))
		}
	}
	return e.next.Handle(ctx, r)
}

func (e enrich) WithAttrs(attrs []slog.Attr) slog.Handler { return enrich{e.next.WithAttrs(attrs)} }
func (e enrich) WithGroup(name string) slog.Handler       { return enrich{e.next.WithGroup(name)} }

// fanout sends every record to each handler and reports the first error.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
