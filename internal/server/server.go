/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes an editing session over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"positron/internal/editor"
	"positron/internal/ingest"
	applog "positron/internal/log"
	"positron/internal/panel"
	"positron/internal/scene"
	"positron/internal/storage"
	"positron/internal/templates"
)

// Options tunes the HTTP server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxUpload bounds multipart bodies; zero means 32 MiB.
	MaxUpload int64
	// Token, when set, is required as a bearer token on /api routes.
	Token string
}

// Server serves one editor session.
type Server struct {
	ed     *editor.Editor
	opt    Options
	log    *slog.Logger
	router *chi.Mux
}

// New builds the router for ed.
func New(ed *editor.Editor, opt Options) *Server {
	if opt.MaxUpload <= 0 {
		opt.MaxUpload = 32 << 20
	}
	s := &Server{ed: ed, opt: opt, log: applog.WithComponent("server")}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)
	s.routes(r)
	s.router = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opt.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opt.ReadTimeout,
		WriteTimeout: s.opt.WriteTimeout,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", slog.String("addr", s.opt.Addr))
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/version", s.handleVersion)
		r.Get("/status", s.handleStatus)
		r.Get("/notices", s.handleNotices)
		r.Post("/resize", s.handleResize)
		r.Put("/log/level", s.handleLogLevel)

		r.Get("/design", s.handleDesign)
		r.Put("/design", s.handleReplaceDesign)
		r.Get("/design.png", s.handlePNG)
		r.Get("/design.pdf", s.handlePDF)
		r.Post("/save", s.handleSave)
		r.Post("/load", s.handleLoad)

		r.Get("/history", s.handleHistory)
		r.Post("/undo", s.handleUndo)
		r.Post("/redo", s.handleRedo)

		r.Post("/shapes/{name}", s.handleInsertShape)
		r.Post("/texts/{name}", s.handleInsertText)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleTemplates)
			r.Post("/{name}/apply", s.handleApplyTemplate)
			r.Put("/{name}", s.handleSaveTemplate)
		})

		r.Route("/background", func(r chi.Router) {
			r.Get("/", s.handleBackground)
			r.Post("/preset/{name}", s.handleBackgroundPreset)
			r.Patch("/", s.handleBackgroundPatch)
			r.Delete("/", s.handleBackgroundRemove)
		})

		r.Route("/uploads", func(r chi.Router) {
			r.Get("/", s.handleIngestStatus)
			r.Post("/{kind}", s.handleUpload)
			r.Get("/tasks/{id}", s.handleTask)
		})

		r.Route("/selection", func(r chi.Router) {
			r.Get("/", s.handleSelection)
			r.Put("/", s.handleSelect)
			r.Delete("/", s.handleClearSelection)
			r.Patch("/", s.handlePatchSelection)
			r.Post("/transform", s.handleTransform)
			r.Post("/{action}", s.handleSelectionAction)
		})
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opt.Token != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.opt.Token)) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requestLog logs one line per request through slog.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		ctx := applog.ContextWithRequest(r.Context(), middleware.GetReqID(r.Context()))
		r = r.WithContext(ctx)
		next.ServeHTTP(ww, r)
		s.log.DebugContext(ctx, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("took", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, editor.ErrUnknownPreset),
		errors.Is(err, templates.ErrUnknownTemplate),
		errors.Is(err, scene.ErrNotFound),
		errors.Is(err, storage.ErrSlotEmpty):
		return http.StatusNotFound
	case errors.Is(err, panel.ErrInvalidValue),
		errors.Is(err, scene.ErrInvalidDocument),
		errors.Is(err, ingest.ErrUnsupportedType),
		errors.Is(err, ingest.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ingest.ErrBusy),
		errors.Is(err, scene.ErrLocked),
		errors.Is(err, editor.ErrNoSelection):
		return http.StatusConflict
	case errors.Is(err, editor.ErrNoStore):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= 500 {
		s.log.ErrorContext(r.Context(), "request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf(format, args...)})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
