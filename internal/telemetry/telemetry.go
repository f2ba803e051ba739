/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry is an opt-in, fire-and-forget sender for anonymous usage
// events and crash reports. Nothing is sent unless the user opted in and an
// endpoint is configured.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "positron/internal/log"
	"positron/internal/version"
)

// Environment variables read by FromEnv.
const (
	EnvOptIn     = "POSITRON_TELEMETRY_OPT_IN"
	EnvURL       = "POSITRON_TELEMETRY_URL"
	EnvCrashURL  = "POSITRON_CRASH_UPLOAD_URL"
	EnvTimeoutMS = "POSITRON_TELEMETRY_TIMEOUT_MS"
	EnvDebug     = "POSITRON_TELEMETRY_DEBUG"
)

// Event names used by the editor.
const (
	EventSave     = "design.save"
	EventExport   = "design.export"
	EventTemplate = "design.template"
	EventUpload   = "asset.upload"
)

const defaultQueue = 64

type Config struct {
	OptIn     bool
	EventsURL string
	CrashURL  string
	Timeout   time.Duration
	QueueSize int
	Debug     bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:     parseBool(os.Getenv(EnvOptIn)),
		EventsURL: strings.TrimSpace(os.Getenv(EnvURL)),
		CrashURL:  strings.TrimSpace(os.Getenv(EnvCrashURL)),
		Timeout:   1500 * time.Millisecond,
		Debug:     os.Getenv(EnvDebug) != "",
	}
	if ms := strings.TrimSpace(os.Getenv(EnvTimeoutMS)); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil && v > 0 {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Event is the JSON body posted for every tracked event. Props must not carry
// anything that identifies the user or their content.
type Event struct {
	Name    string         `json:"name"`
	TS      string         `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// Client queues events on a bounded channel and posts them from a single
// goroutine. Events are dropped when the queue is full. A nil *Client is a
// valid disabled client.
type Client struct {
	cfg     Config
	log     *slog.Logger
	cli     *http.Client
	q       chan Event
	pending atomic.Int64
	dropped atomic.Int64
	once    sync.Once
	closed  chan struct{}
	exited  chan struct{}
}

func New(cfg Config) *Client {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueue
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan Event, cfg.QueueSize),
		closed: make(chan struct{}),
		exited: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events would be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Track queues an event. It never blocks.
func (c *Client) Track(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	ev := Event{
		Name:    name,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if len(props) > 0 {
		ev.Props = make(map[string]any, len(props))
		for k, v := range props {
			ev.Props[k] = v
		}
	}
	c.pending.Add(1)
	select {
	case c.q <- ev:
	default:
		c.pending.Add(-1)
		c.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded on a full queue.
func (c *Client) Dropped() int64 {
	if c == nil {
		return 0
	}
	return c.dropped.Load()
}

// Flush waits until queued events were posted, ctx ends, or half a second
// passes, whichever comes first.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.NewTimer(500 * time.Millisecond)
	defer deadline.Stop()
	for c.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Close stops the sender. Queued events that were not posted yet are lost.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() {
		close(c.closed)
		<-c.exited
	})
}

func (c *Client) loop() {
	defer close(c.exited)
	for {
		select {
		case <-c.closed:
			return
		case ev := <-c.q:
			c.post(c.cfg.EventsURL, "application/json", c.encode(ev))
			c.pending.Add(-1)
		}
	}
}

func (c *Client) encode(ev Event) []byte {
	b, err := json.Marshal(ev)
	if err != nil {
		// props held something unencodable; keep the event itself
		ev.Props = nil
		b, _ = json.Marshal(ev)
	}
	return b
}

func (c *Client) post(url, contentType string, body []byte) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.Debug {
			c.log.Debug("telemetry post failed", slog.String("url", url), slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.Debug {
		c.log.Debug("telemetry posted", slog.String("url", url), slog.Int("status", resp.StatusCode))
	}
}

// UploadCrash posts a crash report in the background when the user opted in
// and a crash URL is configured.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	b := append([]byte(nil), report...)
	go c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", b)
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Default returns the process-wide client, built from the environment on
// first use.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// SetDefault replaces the process-wide client.
func SetDefault(c *Client) {
	defaultMu.Lock()
	defaultClient = c
	defaultMu.Unlock()
}

// Track queues an event on the default client.
func Track(name string, props map[string]any) { Default().Track(name, props) }

// UploadCrash posts a crash report with the default client.
func UploadCrash(report []byte) { Default().UploadCrash(report) }
