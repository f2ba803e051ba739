/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package templates

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	applog "positron/internal/log"
	"positron/internal/scene"
	"positron/internal/storage"
)

// ErrUnknownTemplate is returned when a name resolves to neither a built-in
// layout nor a user template.
var ErrUnknownTemplate = errors.New("unknown template")

const (
	templateExt  = ".json"
	packManifest = "templatepack.manifest.txt"
	maxPackEntry = 32 << 20
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Library resolves built-in layouts and user templates stored as document
// JSON files in Dir.
type Library struct {
	Dir string
	log *slog.Logger
}

// NewLibrary returns a library backed by dir. The directory is created on
// first save.
func NewLibrary(dir string) *Library {
	return &Library{Dir: dir, log: applog.WithComponent("templates")}
}

// Get returns the named template. Built-in layouts win over user files.
func (l *Library) Get(name string) (scene.Document, error) {
	if d, ok := Layout(name); ok {
		return d, nil
	}
	if !validName.MatchString(name) || l.Dir == "" {
		return scene.Document{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	b, err := os.ReadFile(filepath.Join(l.Dir, name+templateExt))
	if errors.Is(err, os.ErrNotExist) {
		return scene.Document{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	if err != nil {
		return scene.Document{}, fmt.Errorf("read template %s: %w", name, err)
	}
	d, err := scene.ParseDocument(b)
	if err != nil {
		return scene.Document{}, fmt.Errorf("template %s: %w", name, err)
	}
	return d, nil
}

// Save stores d as a user template.
func (l *Library) Save(name string, d scene.Document) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid template name %q", name)
	}
	if l.Dir == "" {
		return errors.New("no template directory configured")
	}
	if _, builtin := layouts[name]; builtin {
		return fmt.Errorf("template name %q is reserved", name)
	}
	b, err := d.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return fmt.Errorf("ensure template dir: %w", err)
	}
	if err := storage.WriteFileAtomic(filepath.Join(l.Dir, name+templateExt), b); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	l.log.Info("template saved", slog.String("name", name))
	return nil
}

// Names lists built-in layouts followed by user templates.
func (l *Library) Names() ([]string, error) {
	names := LayoutNames()
	user, err := l.userNames()
	if err != nil {
		return names, err
	}
	return append(names, user...), nil
}

func (l *Library) userNames() ([]string, error) {
	if l.Dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(l.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	var out []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), templateExt)
		if e.IsDir() || !ok || !validName.MatchString(name) {
			continue
		}
		if _, builtin := layouts[name]; builtin {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// ExportPack zips every user template into destZip together with a small
// manifest for human inspection.
func (l *Library) ExportPack(destZip string) (int, error) {
	lg := applog.WithOperation(l.log, "export").With(slog.String("dir", l.Dir))
	if strings.TrimSpace(destZip) == "" {
		return 0, errors.New("destination is required")
	}
	names, err := l.userNames()
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(destZip), 0o755); err != nil {
		return 0, fmt.Errorf("ensure zip dir: %w", err)
	}
	_ = os.Remove(destZip)
	zf, err := os.Create(destZip)
	if err != nil {
		return 0, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zf.Close() }()
	zw := zip.NewWriter(zf)

	manifest := fmt.Sprintf("Positron Template Pack\nCreated: %s\nTemplates: %s\n",
		time.Now().Format(time.RFC3339), strings.Join(names, ", "))
	w, err := zw.Create(packManifest)
	if err != nil {
		return 0, fmt.Errorf("add manifest: %w", err)
	}
	if _, err := io.WriteString(w, manifest); err != nil {
		return 0, fmt.Errorf("write manifest: %w", err)
	}
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(l.Dir, name+templateExt))
		if err != nil {
			return 0, fmt.Errorf("read template %s: %w", name, err)
		}
		fw, err := zw.Create(name + templateExt)
		if err != nil {
			return 0, fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := fw.Write(b); err != nil {
			return 0, fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		lg.Error("zip build failed", slog.Any("err", err))
		return 0, fmt.Errorf("finish zip: %w", err)
	}
	lg.Info("template pack exported", slog.Int("templates", len(names)), slog.String("zip", destZip))
	return len(names), nil
}

// InstallPack extracts the templates of a pack into Dir. Existing templates
// are not overwritten, entries that are not valid documents are skipped, and
// directory structure inside the archive is ignored. It returns the number of
// templates installed.
func (l *Library) InstallPack(packZip string) (int, error) {
	lg := applog.WithOperation(l.log, "install").With(slog.String("zip", packZip))
	r, err := zip.OpenReader(packZip)
	if err != nil {
		return 0, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return 0, fmt.Errorf("ensure template dir: %w", err)
	}

	installed := 0
	for _, f := range r.File {
		base := filepath.Base(filepath.FromSlash(f.Name))
		name, ok := strings.CutSuffix(base, templateExt)
		if f.FileInfo().IsDir() || !ok || !validName.MatchString(name) {
			continue
		}
		if _, builtin := layouts[name]; builtin {
			lg.Warn("skip reserved name", slog.String("name", name))
			continue
		}
		target := filepath.Join(l.Dir, base)
		if _, err := os.Stat(target); err == nil {
			lg.Warn("skip existing template", slog.String("name", name))
			continue
		}
		b, err := readEntry(f)
		if err != nil {
			return installed, err
		}
		if _, err := scene.ParseDocument(b); err != nil {
			lg.Warn("skip invalid template", slog.String("name", name), slog.Any("err", err))
			continue
		}
		if err := os.WriteFile(target, b, 0o644); err != nil {
			return installed, fmt.Errorf("write %s: %w", name, err)
		}
		installed++
	}
	lg.Info("template pack installed", slog.Int("templates", installed))
	return installed, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(io.LimitReader(rc, maxPackEntry+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if len(b) > maxPackEntry {
		return nil, fmt.Errorf("pack entry %s too large", f.Name)
	}
	return b, nil
}
