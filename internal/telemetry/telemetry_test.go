/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	events  [][]byte
	crashes [][]byte
}

func (r *recorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.events = append(r.events, b)
		r.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.crashes = append(r.crashes, b)
		r.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events), len(r.crashes)
}

func TestTrackPostsEventWithProps(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: 2 * time.Second})
	defer c.Close()

	c.Track(EventExport, map[string]any{"format": "png"})
	c.Flush(context.Background())

	if n, _ := rec.counts(); n != 1 {
		t.Fatalf("want 1 event, got %d", n)
	}
	var ev Event
	if err := json.Unmarshal(rec.events[0], &ev); err != nil {
		t.Fatalf("bad event json: %v", err)
	}
	if ev.Name != EventExport || ev.Props["format"] != "png" || ev.TS == "" || ev.Version == "" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestUploadCrash(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	c := New(Config{OptIn: true, CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()

	c.UploadCrash([]byte("STACKTRACE"))
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, n := rec.counts(); n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("crash report was not uploaded")
}

func TestDisabledClientSendsNothing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL, CrashURL: srv.URL})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("client without opt-in reports enabled")
	}
	c.Track("ignored", nil)
	c.UploadCrash([]byte("ignored"))

	on := New(Config{OptIn: true, EventsURL: srv.URL})
	defer on.Close()
	on.Track("", nil)
	on.Flush(context.Background())

	var nilClient *Client
	nilClient.Track("x", nil)
	nilClient.Flush(context.Background())
	nilClient.Close()

	time.Sleep(50 * time.Millisecond)
	if hits.Load() != 0 {
		t.Fatalf("expected no requests, got %d", hits.Load())
	}
}

func TestFullQueueDrops(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { <-block }))
	defer srv.Close()

	c := New(Config{OptIn: true, EventsURL: srv.URL, QueueSize: 1, Timeout: 5 * time.Second})
	defer c.Close()
	defer close(block)
	for range 10 {
		c.Track("burst", nil)
	}
	// at most one in flight plus one queued
	if c.Dropped() < 8 {
		t.Fatalf("expected drops on a full queue, got %d", c.Dropped())
	}
}

func TestSendErrorsAreSwallowed(t *testing.T) {
	c := New(Config{
		OptIn:     true,
		EventsURL: "http://127.0.0.1:1/events",
		CrashURL:  "http://127.0.0.1:1/crash",
		Timeout:   50 * time.Millisecond,
		Debug:     true,
	})
	defer c.Close()
	c.Track("err", map[string]any{"a": 1})
	c.Flush(context.Background())
	c.UploadCrash([]byte("oops"))
}

func TestFromEnvAndDefault(t *testing.T) {
	t.Setenv(EnvOptIn, "yes")
	t.Setenv(EnvURL, " http://127.0.0.1:0 ")
	t.Setenv(EnvCrashURL, "")
	t.Setenv(EnvTimeoutMS, "100")

	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL != "http://127.0.0.1:0" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv: %+v", cfg)
	}

	c := New(cfg)
	SetDefault(c)
	defer func() {
		SetDefault(nil)
		c.Close()
	}()
	if Default() != c || !Default().Enabled() {
		t.Fatalf("default client not installed")
	}
}
