/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package client talks to a running "positron serve" instance.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"positron/internal/editor"
	"positron/internal/scene"
)

// ErrUnauthorized is returned when the server rejects the token.
var ErrUnauthorized = errors.New("unauthorized")

// Client is a small JSON client for the editor API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a client. baseURL may include a trailing slash; it will
// be normalized.
func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// StatusError carries a non-2xx reply.
type StatusError struct {
	Method, Path string
	Code         int
	Message      string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("server %s %s: %d", e.Method, e.Path, e.Code)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		return nil, &StatusError{Method: method, Path: u.Path, Code: resp.StatusCode, Message: e.Error}
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Status returns the session summary.
func (c *Client) Status(ctx context.Context) (editor.Status, error) {
	var st editor.Status
	err := c.doJSON(ctx, http.MethodGet, "/api/status", nil, &st)
	return st, err
}

// Design fetches the current document.
func (c *Client) Design(ctx context.Context) (scene.Document, error) {
	var d scene.Document
	err := c.doJSON(ctx, http.MethodGet, "/api/design", nil, &d)
	return d, err
}

// Step is the reply to Undo and Redo.
type Step struct {
	Changed bool                `json:"changed"`
	History editor.HistoryState `json:"history"`
}

// Undo steps back once.
func (c *Client) Undo(ctx context.Context) (Step, error) {
	var s Step
	err := c.doJSON(ctx, http.MethodPost, "/api/undo", nil, &s)
	return s, err
}

// Redo steps forward once.
func (c *Client) Redo(ctx context.Context) (Step, error) {
	var s Step
	err := c.doJSON(ctx, http.MethodPost, "/api/redo", nil, &s)
	return s, err
}

// InsertShape adds a shape preset and returns the new object.
func (c *Client) InsertShape(ctx context.Context, name string) (scene.Object, error) {
	var o scene.Object
	err := c.doJSON(ctx, http.MethodPost, "/api/shapes/"+url.PathEscape(name), nil, &o)
	return o, err
}

// InsertText adds a text preset and returns the new object.
func (c *Client) InsertText(ctx context.Context, name string) (scene.Object, error) {
	var o scene.Object
	err := c.doJSON(ctx, http.MethodPost, "/api/texts/"+url.PathEscape(name), nil, &o)
	return o, err
}

// ApplyTemplate replaces the design with a template.
func (c *Client) ApplyTemplate(ctx context.Context, name string) (scene.Document, error) {
	var d scene.Document
	err := c.doJSON(ctx, http.MethodPost, "/api/templates/"+url.PathEscape(name)+"/apply", nil, &d)
	return d, err
}

// Save persists the design in the server's store.
func (c *Client) Save(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/save", nil, nil)
}

// DownloadPNG streams the rendered design at scale into w.
func (c *Client) DownloadPNG(ctx context.Context, scale float64, w io.Writer) error {
	return c.download(ctx, "/api/design.png?scale="+strconv.FormatFloat(scale, 'f', -1, 64), w)
}

// DownloadPDF streams the design as PDF into w.
func (c *Client) DownloadPDF(ctx context.Context, w io.Writer) error {
	return c.download(ctx, "/api/design.pdf", w)
}

func (c *Client) download(ctx context.Context, path string, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}
