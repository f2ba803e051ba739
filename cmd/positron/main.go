/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"positron/internal/client"
	"positron/internal/config"
	"positron/internal/crash"
	"positron/internal/editor"
	"positron/internal/export"
	applog "positron/internal/log"
	"positron/internal/scene"
	"positron/internal/server"
	"positron/internal/storage"
	"positron/internal/telemetry"
	"positron/internal/templates"
	"positron/internal/ui"
	"positron/internal/version"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "Positron design editor")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  positron version|-v|--version              Show version")
	fmt.Fprintln(w, "  positron serve [addr]                      Serve the editor API over HTTP")
	fmt.Fprintln(w, "  positron ui                                Launch desktop UI (build with -tags fyne)")
	fmt.Fprintln(w, "  positron render <design.json> <out.png> [scale]")
	fmt.Fprintln(w, "                                             Rasterize a design to PNG")
	fmt.Fprintln(w, "  positron pdf <design.json> <out.pdf>       Export a design as PDF")
	fmt.Fprintln(w, "  positron batch <design.json> <web|print> [dir]")
	fmt.Fprintln(w, "                                             Export a design with a preset")
	fmt.Fprintln(w, "  positron new <template> <out.json>         Write a template as a design file")
	fmt.Fprintln(w, "  positron templates                         List templates")
	fmt.Fprintln(w, "  positron pack export|install <file.zip>    Export or install a template pack")
	fmt.Fprintln(w, "  positron slots                             List saved designs in the store")
	fmt.Fprintln(w, "  positron config path|set-dsn <dsn>|forget-dsn")
	fmt.Fprintln(w, "  positron remote <url> status|undo|redo|save")
	fmt.Fprintln(w, "  positron remote <url> shape|text|template <name>")
	fmt.Fprintln(w, "  positron remote <url> png|pdf <out>        Drive a running server")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// sessionSaver lets crash.Recover autosave whichever editor is open when a
// panic unwinds main. It is a no-op before a session exists.
type sessionSaver struct{ ed *editor.Editor }

func (s *sessionSaver) Autosave(ctx context.Context) error {
	if s.ed == nil {
		return nil
	}
	return s.ed.Autosave(ctx)
}

func run(args []string, out io.Writer) int {
	if len(args) == 0 {
		usage(out)
		return 0
	}
	switch args[0] {
	case "version", "--version", "-v":
		fmt.Fprintln(out, "Positron design editor")
		fmt.Fprintln(out, version.String())
		return 0
	case "help", "-h", "--help":
		usage(out)
		return 0
	}

	cfg, dsn, err := config.Load()
	if err != nil {
		fmt.Fprintln(out, "Error:", err)
		return 1
	}
	applog.Init(cfg.Logging.LogOptions())
	l := applog.WithComponent("cli")
	l.Debug("start", slog.String("cmd", args[0]), slog.Int("args", len(args)))

	saver := &sessionSaver{}
	defer crash.Recover(cfg.General.DataDir, saver)

	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	tel := telemetry.New(tcfg)
	telemetry.SetDefault(tel)
	defer tel.Close()

	lib := templates.NewLibrary(cfg.General.TemplatesDir)
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "render":
		if len(rest) < 2 {
			return badUsage(out, "render requires <design.json> and <out.png>")
		}
		scale := 1.0
		if len(rest) > 2 {
			if scale, err = strconv.ParseFloat(rest[2], 64); err != nil || scale <= 0 {
				return badUsage(out, "scale must be a positive number")
			}
		}
		d, err := readDesign(rest[0])
		if err != nil {
			return fail(out, l, err)
		}
		if err := export.SavePNG(rest[1], d, export.PNGOptions{Scale: scale}); err != nil {
			return fail(out, l, err)
		}
		tel.Track(telemetry.EventExport, map[string]any{"format": "png", "source": "cli"})
		fmt.Fprintln(out, "Wrote", rest[1])
		return 0
	case "pdf":
		if len(rest) < 2 {
			return badUsage(out, "pdf requires <design.json> and <out.pdf>")
		}
		d, err := readDesign(rest[0])
		if err != nil {
			return fail(out, l, err)
		}
		if err := export.SavePDF(rest[1], d); err != nil {
			return fail(out, l, err)
		}
		tel.Track(telemetry.EventExport, map[string]any{"format": "pdf", "source": "cli"})
		fmt.Fprintln(out, "Wrote", rest[1])
		return 0
	case "batch":
		if len(rest) < 2 {
			return badUsage(out, "batch requires <design.json> and <web|print>")
		}
		d, err := readDesign(rest[0])
		if err != nil {
			return fail(out, l, err)
		}
		dir := cfg.General.ExportDir
		if len(rest) > 2 {
			dir = rest[2]
		}
		paths, err := export.BatchExport(d, export.BatchOptions{Preset: export.PresetName(rest[1]), OutDir: dir})
		if err != nil {
			return fail(out, l, err)
		}
		for _, p := range paths {
			fmt.Fprintln(out, "Wrote", p)
		}
		return 0
	case "new":
		if len(rest) < 2 {
			return badUsage(out, "new requires <template> and <out.json>")
		}
		d, err := lib.Get(rest[0])
		if err != nil {
			return fail(out, l, err)
		}
		blob, err := d.Marshal()
		if err != nil {
			return fail(out, l, err)
		}
		if err := storage.WriteFileAtomic(rest[1], blob); err != nil {
			return fail(out, l, err)
		}
		tel.Track(telemetry.EventTemplate, map[string]any{"source": "cli"})
		fmt.Fprintf(out, "Created %s from template %q\n", rest[1], rest[0])
		return 0
	case "templates":
		names, err := lib.Names()
		if err != nil {
			return fail(out, l, err)
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return 0
	case "pack":
		if len(rest) < 2 {
			return badUsage(out, "pack requires export|install and <file.zip>")
		}
		var n int
		switch rest[0] {
		case "export":
			n, err = lib.ExportPack(rest[1])
		case "install":
			n, err = lib.InstallPack(rest[1])
		default:
			return badUsage(out, "pack requires export or install")
		}
		if err != nil {
			return fail(out, l, err)
		}
		fmt.Fprintf(out, "%s: %d templates\n", rest[0], n)
		return 0
	case "config":
		return configCmd(out, l, cfg, rest)
	case "remote":
		return remoteCmd(out, l, cfg.Server.Token, rest)
	}

	// The remaining commands run a live session against the store.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	store, err := storage.Open(ctx, cfg.StorageOptions(dsn))
	if err != nil {
		return fail(out, l, err)
	}
	defer func() { _ = store.Close() }()

	switch cmd {
	case "slots":
		slots, err := store.Slots(ctx)
		if err != nil {
			return fail(out, l, err)
		}
		for _, s := range slots {
			fmt.Fprintf(out, "%-20s %8d bytes  %s\n", s.Slot, s.Size, s.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return 0
	case "serve", "ui":
	default:
		fmt.Fprintln(out, "Unknown command:", cmd)
		usage(out)
		return 2
	}

	ed := editor.New(editor.Options{
		Width:     cfg.Canvas.Width,
		Height:    cfg.Canvas.Height,
		History:   cfg.HistoryOptions(),
		Ingest:    cfg.IngestOptions(),
		Store:     store,
		Templates: lib,
		Telemetry: tel,
	})
	defer ed.Close()
	saver.ed = ed

	if cmd == "ui" {
		if err := ui.Run(ui.Options{Editor: ed, Library: lib, ExportDir: cfg.General.ExportDir}); err != nil {
			fmt.Fprintln(out, "Error:", err)
			return 1
		}
		return 0
	}

	addr := cfg.Server.Addr
	if len(rest) > 0 {
		addr = rest[0]
	}
	read, write := cfg.Server.Timeouts()
	srv := server.New(ed, server.Options{
		Addr:         addr,
		ReadTimeout:  read,
		WriteTimeout: write,
		MaxUpload:    cfg.Ingest.MaxBytes,
		Token:        cfg.Server.Token,
	})
	fmt.Fprintln(out, "Serving on", addr)
	if err := srv.ListenAndServe(ctx); err != nil {
		return fail(out, l, err)
	}
	return 0
}

func configCmd(out io.Writer, l *slog.Logger, cfg config.AppConfig, rest []string) int {
	if len(rest) == 0 {
		return badUsage(out, "config requires path, set-dsn or forget-dsn")
	}
	switch rest[0] {
	case "path":
		p, err := config.ConfigPath()
		if err != nil {
			return fail(out, l, err)
		}
		fmt.Fprintln(out, p)
	case "set-dsn":
		if len(rest) < 2 {
			return badUsage(out, "set-dsn requires <dsn>")
		}
		cfg.Storage.Driver = "postgres"
		if err := config.Save(cfg, rest[1]); err != nil {
			return fail(out, l, err)
		}
		fmt.Fprintln(out, "Stored Postgres DSN in the OS keychain")
	case "forget-dsn":
		if err := config.ForgetDSN(); err != nil {
			return fail(out, l, err)
		}
		fmt.Fprintln(out, "Removed Postgres DSN")
	default:
		return badUsage(out, "unknown config action "+strconv.Quote(rest[0]))
	}
	return 0
}

func remoteCmd(out io.Writer, l *slog.Logger, token string, rest []string) int {
	if len(rest) < 2 {
		return badUsage(out, "remote requires <url> and an action")
	}
	c := client.NewClient(rest[0], token)
	action, args := rest[1], rest[2:]
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var (
		v   any
		err error
	)
	switch action {
	case "status":
		v, err = c.Status(ctx)
	case "undo":
		v, err = c.Undo(ctx)
	case "redo":
		v, err = c.Redo(ctx)
	case "save":
		err = c.Save(ctx)
	case "shape", "text", "template":
		if len(args) < 1 {
			return badUsage(out, action+" requires <name>")
		}
		switch action {
		case "shape":
			v, err = c.InsertShape(ctx, args[0])
		case "text":
			v, err = c.InsertText(ctx, args[0])
		default:
			v, err = c.ApplyTemplate(ctx, args[0])
		}
	case "png", "pdf":
		if len(args) < 1 {
			return badUsage(out, action+" requires <out>")
		}
		var buf bytes.Buffer
		if action == "png" {
			err = c.DownloadPNG(ctx, 1, &buf)
		} else {
			err = c.DownloadPDF(ctx, &buf)
		}
		if err == nil {
			err = storage.WriteFileAtomic(args[0], buf.Bytes())
		}
		if err == nil {
			fmt.Fprintln(out, "Wrote", args[0])
		}
	default:
		return badUsage(out, "unknown remote action "+strconv.Quote(action))
	}
	if err != nil {
		return fail(out, l, err)
	}
	if v != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fail(out, l, err)
		}
	}
	return 0
}

func readDesign(path string) (scene.Document, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return scene.Document{}, err
	}
	return scene.ParseDocument(b)
}

func badUsage(out io.Writer, msg string) int {
	fmt.Fprintln(out, msg)
	usage(out)
	return 2
}

func fail(out io.Writer, l *slog.Logger, err error) int {
	if errors.Is(err, context.Canceled) {
		return 0
	}
	l.Error("command failed", slog.Any("err", err))
	fmt.Fprintln(out, "Error:", err)
	return 1
}
