/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"positron/internal/export"
	"positron/internal/storage"
	"positron/internal/telemetry"
)

// ExportPNG writes the rendered canvas. The document is copied under the
// lock and rasterized outside it.
func (e *Editor) ExportPNG(w io.Writer, scale float64) error {
	d := e.Document()
	if err := export.WritePNG(w, d, export.PNGOptions{Scale: scale}); err != nil {
		return fmt.Errorf("export png: %w", err)
	}
	e.notify(Notice{Title: "Design exported", Description: "Your design has been exported as PNG", Level: LevelInfo})
	e.tel.Track(telemetry.EventExport, map[string]any{"format": export.FormatPNG})
	return nil
}

// ExportPDF writes the canvas as a one-page PDF.
func (e *Editor) ExportPDF(w io.Writer) error {
	if err := export.WritePDF(w, e.Document()); err != nil {
		return fmt.Errorf("export pdf: %w", err)
	}
	e.notify(Notice{Title: "Design exported", Description: "Your design has been exported as PDF", Level: LevelInfo})
	e.tel.Track(telemetry.EventExport, map[string]any{"format": export.FormatPDF})
	return nil
}

// ExportJSON returns the serialized document and its download name.
func (e *Editor) ExportJSON() (name string, blob []byte, err error) {
	e.mu.Lock()
	blob, err = e.sc.Serialize()
	e.mu.Unlock()
	if err != nil {
		return "", nil, fmt.Errorf("export json: %w", err)
	}
	e.notify(Notice{Title: "Design exported as JSON", Description: "Your design has been exported as a JSON file", Level: LevelInfo})
	e.tel.Track(telemetry.EventExport, map[string]any{"format": export.FormatJSON})
	return export.JSONFileName(e.now()), blob, nil
}

// ExportJSONFile writes the serialized document into dir.
func (e *Editor) ExportJSONFile(dir string) (string, error) {
	e.mu.Lock()
	blob, err := e.sc.Serialize()
	e.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("export json: %w", err)
	}
	path, err := export.SaveJSON(dir, blob, e.now())
	if err != nil {
		return "", err
	}
	e.notify(Notice{Title: "Design exported as JSON", Description: "Your design has been exported as a JSON file", Level: LevelInfo})
	e.tel.Track(telemetry.EventExport, map[string]any{"format": export.FormatJSON})
	return path, nil
}

// Save overwrites the design slot with the current scene.
func (e *Editor) Save(ctx context.Context) error {
	if e.store == nil {
		return ErrNoStore
	}
	e.mu.Lock()
	blob, err := e.sc.Serialize()
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := e.store.SaveSlot(ctx, storage.SlotDesign, blob); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	e.notify(Notice{Title: "Design saved", Description: "Your design has been saved to local storage", Level: LevelInfo})
	e.tel.Track(telemetry.EventSave, map[string]any{"bytes": len(blob)})
	return nil
}

// LoadSaved replaces the scene with the design slot. The load is recorded
// as one history entry. storage.ErrSlotEmpty is returned when nothing was
// saved yet.
func (e *Editor) LoadSaved(ctx context.Context) error {
	if e.store == nil {
		return ErrNoStore
	}
	blob, err := e.store.LoadSlot(ctx, storage.SlotDesign)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.sc.Deserialize(blob); err != nil {
		return fmt.Errorf("load saved design: %w", err)
	}
	e.sc.Commit()
	return nil
}

// Autosave writes the current scene into the crash slot. It is called from
// panic handlers and never blocks on the session lock: when another
// goroutine holds it the scene may be mid-edit, and ErrSessionBusy is
// returned without writing.
func (e *Editor) Autosave(ctx context.Context) error {
	if e.store == nil {
		return ErrNoStore
	}
	if !e.mu.TryLock() {
		e.log.Warn("crash autosave skipped, session busy")
		return ErrSessionBusy
	}
	blob, err := e.sc.Serialize()
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	if err := e.store.SaveSlot(ctx, storage.SlotCrash, blob); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	e.log.Info("crash autosave written", slog.Int("bytes", len(blob)))
	return nil
}

// IsEmpty reports whether err means there was nothing to load.
func IsEmpty(err error) bool { return errors.Is(err, storage.ErrSlotEmpty) }
