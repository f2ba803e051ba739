/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"positron/internal/editor"
	"positron/internal/scene"
	"positron/internal/server"
)

func newRemote(t *testing.T, token string) (*httptest.Server, *editor.Editor) {
	t.Helper()
	ed := editor.New(editor.Options{})
	t.Cleanup(ed.Close)
	ts := httptest.NewServer(server.New(ed, server.Options{Token: token}).Handler())
	t.Cleanup(ts.Close)
	return ts, ed
}

func TestClientEditFlow(t *testing.T) {
	ts, ed := newRemote(t, "")
	c := NewClient(ts.URL+"/", "")
	ctx := context.Background()

	o, err := c.InsertShape(ctx, "circle")
	if err != nil || o.Type != scene.KindCircle {
		t.Fatalf("insert %+v %v", o, err)
	}
	if _, err := c.InsertText(ctx, "body"); err != nil {
		t.Fatal(err)
	}
	st, err := c.Status(ctx)
	if err != nil || st.Objects != 2 || !st.History.CanUndo {
		t.Fatalf("status %+v %v", st, err)
	}
	step, err := c.Undo(ctx)
	if err != nil || !step.Changed {
		t.Fatalf("undo %+v %v", step, err)
	}
	step, err = c.Redo(ctx)
	if err != nil || !step.Changed || step.History.CanRedo {
		t.Fatalf("redo %+v %v", step, err)
	}
	d, err := c.Design(ctx)
	if err != nil || len(d.Objects) != len(ed.Document().Objects) {
		t.Fatalf("design %d %v", len(d.Objects), err)
	}
}

func TestClientDownloadsAndErrors(t *testing.T) {
	ts, _ := newRemote(t, "")
	c := NewClient(ts.URL, "")
	ctx := context.Background()

	var buf bytes.Buffer
	if err := c.DownloadPNG(ctx, 0.25, &buf); err != nil || !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("png %v", err)
	}
	buf.Reset()
	if err := c.DownloadPDF(ctx, &buf); err != nil || !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("pdf %v", err)
	}

	_, err := c.ApplyTemplate(ctx, "missing")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound || se.Message == "" {
		t.Fatalf("template error %v", err)
	}
	if err := c.Save(ctx); !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("save error %v", err)
	}
}

func TestClientToken(t *testing.T) {
	ts, _ := newRemote(t, "abc")
	ctx := context.Background()
	if _, err := NewClient(ts.URL, "").Status(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want unauthorized, got %v", err)
	}
	if _, err := NewClient(ts.URL, "abc").Status(ctx); err != nil {
		t.Fatal(err)
	}
}
