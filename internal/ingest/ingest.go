/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ingest turns user-supplied files into scene changes: an image
// object, a background image, or a whole replacement document.
//
// One ingestion runs at a time. Each run is a Task that moves through
// idle → reading → decoding → done|failed while a ticker advances a cosmetic
// progress indicator. The indicator only reaches 100 when the result has been
// applied, and falls back to 0 shortly after.
package ingest

import (
	"errors"
	"time"
)

var (
	// ErrBusy is returned when an ingestion is already in flight.
	ErrBusy = errors.New("ingestion already in progress")
	// ErrUnsupportedType is returned for non-image files on the image paths.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrDecode is returned when the content cannot be decoded.
	ErrDecode = errors.New("cannot decode file")
	// ErrTooLarge is returned when a file exceeds Config.MaxBytes.
	ErrTooLarge = errors.New("file too large")
)

// Kind selects what an ingested file becomes.
type Kind int

const (
	KindImage Kind = iota + 1
	KindDocument
	KindBackground
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindDocument:
		return "document"
	case KindBackground:
		return "background"
	}
	return "unknown"
}

// ParseKind maps the names used by the HTTP and CLI shells.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "image":
		return KindImage, true
	case "document", "json":
		return KindDocument, true
	case "background":
		return KindBackground, true
	}
	return 0, false
}

// State of a Task.
type State int

const (
	Idle State = iota
	Reading
	Decoding
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Reading:
		return "reading"
	case Decoding:
		return "decoding"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transitions happen.
func (s State) Terminal() bool { return s == Done || s == Failed }

// Config tunes the pipeline.
type Config struct {
	TickInterval time.Duration // progress tick period
	TickStep     int           // percent added per tick
	Ceiling      int           // ticks never go past this
	ResetAfter   time.Duration // delay before a finished indicator drops to 0
	MaxBytes     int64         // upper bound for a single file
	FitRatio     float64       // share of the canvas an inserted image may cover
	ImageLeft    float64
	ImageTop     float64
}

// DefaultConfig matches the editor's sidebar behavior.
func DefaultConfig() Config {
	return Config{
		TickInterval: 50 * time.Millisecond,
		TickStep:     5,
		Ceiling:      95,
		ResetAfter:   time.Second,
		MaxBytes:     20 << 20,
		FitRatio:     0.8,
		ImageLeft:    100,
		ImageTop:     100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.TickStep <= 0 {
		c.TickStep = d.TickStep
	}
	if c.Ceiling <= 0 || c.Ceiling >= 100 {
		c.Ceiling = d.Ceiling
	}
	if c.ResetAfter <= 0 {
		c.ResetAfter = d.ResetAfter
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = d.MaxBytes
	}
	if c.FitRatio <= 0 || c.FitRatio > 1 {
		c.FitRatio = d.FitRatio
	}
	if c.ImageLeft == 0 && c.ImageTop == 0 {
		c.ImageLeft, c.ImageTop = d.ImageLeft, d.ImageTop
	}
	return c
}
