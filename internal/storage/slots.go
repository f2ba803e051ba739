/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Well-known slots.
const (
	SlotDesign = "canva_clone_design"
	SlotCrash  = "crash_autosave"
)

// MaxBackups is how many previous payloads are kept per slot.
const MaxBackups = 5

var (
	// ErrSlotEmpty is returned when a slot holds nothing.
	ErrSlotEmpty = errors.New("slot is empty")
	// ErrUnknownDriver is returned by Open for unsupported drivers.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// SlotInfo describes a stored slot without its payload.
type SlotInfo struct {
	Slot      string    `json:"slot"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is a set of named slots. Saving overwrites the slot and keeps the
// previous payload as a backup.
type Store interface {
	SaveSlot(ctx context.Context, slot string, data []byte) error
	LoadSlot(ctx context.Context, slot string) ([]byte, error)
	DeleteSlot(ctx context.Context, slot string) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver string // sqlite (default) or postgres
	Path   string // sqlite database file
	DSN    string // postgres connection string
}

// Open returns the store selected by cfg.
func Open(ctx context.Context, cfg Config) (*SQLStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	case "postgres", "pg":
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func validSlot(slot string) error {
	if strings.TrimSpace(slot) == "" {
		return errors.New("slot name is required")
	}
	return nil
}
