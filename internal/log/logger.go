/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log configures the process-wide slog logger: a readable console
// handler or JSON, an optional rotating JSON file, and context enrichment
// with request and task identifiers.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"positron/internal/version"
)

// Options controls logger initialization. FromEnv fills it from:
//   - POSITRON_LOG_LEVEL=debug|info|warn|error
//   - POSITRON_LOG_FORMAT=console|json
//   - POSITRON_LOG_FILE=<path> (rotated JSON file)
//   - POSITRON_LOG_SOURCE=true|false
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string
	Rotation  Rotation
	Console   io.Writer // defaults to stderr
}

// Rotation limits the log file. Zero fields take the defaults.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var defaultRotation = Rotation{MaxSizeMB: 5, MaxBackups: 5, MaxAgeDays: 14}

func (r Rotation) withDefaults() Rotation {
	if r.MaxSizeMB <= 0 {
		r.MaxSizeMB = defaultRotation.MaxSizeMB
	}
	if r.MaxBackups <= 0 {
		r.MaxBackups = defaultRotation.MaxBackups
	}
	if r.MaxAgeDays <= 0 {
		r.MaxAgeDays = defaultRotation.MaxAgeDays
	}
	return r
}

const (
	EnvLevel  = "POSITRON_LOG_LEVEL"
	EnvFormat = "POSITRON_LOG_FORMAT"
	EnvSource = "POSITRON_LOG_SOURCE"
	EnvFile   = "POSITRON_LOG_FILE"
)

var (
	mu      sync.RWMutex
	current *slog.Logger
	closer  io.Closer
	level   = new(slog.LevelVar)
)

// L returns the process logger, initializing it from the environment on
// first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init replaces the process logger and slog.Default. A previously opened
// log file is closed.
func Init(opts Options) {
	level.Set(parseLevel(opts.Level).Level())
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}

	var sink slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		sink = slog.NewJSONHandler(console, hopts)
	} else {
		sink = newConsoleHandler(console, hopts)
	}
	var file *lj.Logger
	if path := strings.TrimSpace(opts.File); path != "" {
		rot := opts.Rotation.withDefaults()
		file = &lj.Logger{
			Filename:   path,
			MaxSize:    rot.MaxSizeMB,
			MaxBackups: rot.MaxBackups,
			MaxAge:     rot.MaxAgeDays,
			Compress:   true,
		}
		sink = fanout{sink, slog.NewJSONHandler(file, hopts)}
	}

	logger := slog.New(enrich{sink}).With(
		slog.String("app", "positron"),
		slog.String("ver", version.Version),
		slog.Time("ts_init", time.Now()),
	)

	mu.Lock()
	old := closer
	current = logger
	closer = nil
	if file != nil {
		closer = file
	}
	mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	slog.SetDefault(logger)
}

// SetLevel changes the minimum level of the running logger.
func SetLevel(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "info", "warn", "warning", "error":
		level.Set(parseLevel(s).Level())
		return nil
	}
	return fmt.Errorf("log: unknown level %q", s)
}

// Level reports the current minimum level.
func Level() slog.Level { return level.Level() }

// FromEnv builds Options from the POSITRON_LOG_* variables.
func FromEnv() Options {
	return Options{
		Level:     getenv(EnvLevel, "info"),
		Format:    getenv(EnvFormat, "console"),
		AddSource: strings.EqualFold(getenv(EnvSource, "false"), "true"),
		File:      os.Getenv(EnvFile),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger tagged with the subsystem name.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates the logger with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

// WithSession tags records produced on behalf of one editing session.
func WithSession(l *slog.Logger, id string) *slog.Logger { return l.With(slog.String("session", id)) }

// Discard returns a logger that drops everything.
func Discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func parseLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type ctxKey int

const (
	taskKey ctxKey = iota
	requestKey
)

// ContextWithTask attaches an ingestion task id to records logged with ctx.
func ContextWithTask(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskKey, id)
}

// ContextWithRequest attaches an HTTP request id to records logged with ctx.
func ContextWithRequest(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestKey, id)
}
