//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"positron/internal/editor"
	"positron/internal/export"
	"positron/internal/ingest"
	applog "positron/internal/log"
	"positron/internal/templates"
	"positron/internal/version"
)

// Options wires the desktop shell to a running session.
type Options struct {
	Editor    *editor.Editor
	Library   *templates.Library
	ExportDir string
}

// Run opens the editor window and blocks until it is closed.
func Run(opt Options) error {
	if opt.Editor == nil {
		return fmt.Errorf("ui: no editor session")
	}
	ed := opt.Editor
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	fyneApp := app.NewWithID("io.positron.editor")
	w := fyneApp.NewWindow("Positron")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1280)
	winH := prefs.IntWithFallback("window.height", 800)
	if winW < 900 {
		winW = 900
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	progress := widget.NewProgressBar()
	progress.Hide()

	dc := NewDesignCanvas(ed)
	var props *propertyPane
	undoBtn := widget.NewButton("Undo", nil)
	redoBtn := widget.NewButton("Redo", nil)

	syncHistory := func() {
		h := ed.History()
		setEnabled(undoBtn, h.CanUndo)
		setEnabled(redoBtn, h.CanRedo)
	}
	onChange := func() {
		props.Refresh()
		syncHistory()
	}
	refresh := func() {
		dc.Reload()
		onChange()
	}
	props = newPropertyPane(ed, w, refresh)
	dc.OnChange = onChange

	// Renders arrive with the session locked and possibly off the main
	// goroutine; coalesce them into one refresh on the UI thread.
	dirty := make(chan struct{}, 1)
	stopRender := ed.OnRender(func() {
		select {
		case dirty <- struct{}{}:
		default:
		}
	})
	defer stopRender()
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-dirty:
				fyne.Do(refresh)
			case <-done:
				return
			}
		}
	}()

	stopNotices := ed.ObserveNotices(func(n editor.Notice) {
		fyne.Do(func() {
			status.SetText(n.Title + ": " + n.Description)
			if n.Level == editor.LevelError {
				dialog.ShowInformation(n.Title, n.Description, w)
			}
		})
	})
	defer stopNotices()
	stopIngest := ed.ObserveIngest(func(s ingest.Status) {
		fyne.Do(func() {
			progress.SetValue(float64(s.Progress) / 100)
			if s.Busy || s.Progress > 0 {
				progress.Show()
			} else {
				progress.Hide()
			}
		})
	})
	defer stopIngest()

	undo := func() {
		if !ed.Undo() {
			status.SetText("Nothing to undo")
		}
	}
	redo := func() {
		if !ed.Redo() {
			status.SetText("Nothing to redo")
		}
	}
	undoBtn.OnTapped = undo
	redoBtn.OnTapped = redo

	report := func(err error) {
		if err != nil {
			l.Error("action failed", slog.Any("err", err))
			dialog.ShowError(err, w)
		}
	}
	insertShape := func(name string) func() {
		return func() {
			_, err := ed.InsertShape(name)
			report(err)
		}
	}
	insertText := func(name string) func() {
		return func() {
			_, err := ed.InsertText(name)
			report(err)
		}
	}
	upload := func(kind ingest.Kind, exts []string) func() {
		return func() {
			open := dialog.NewFileOpen(func(ur fyne.URIReadCloser, err error) {
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				if ur == nil {
					return
				}
				path := ur.URI().Path()
				_ = ur.Close()
				l.Info("upload", slog.String("kind", kind.String()), slog.String("path", path))
				if _, err := ed.Upload(context.Background(), kind, ingest.FileFromPath(path)); err != nil {
					report(err)
				}
			}, w)
			open.SetFilter(fstorage.NewExtensionFileFilter(exts))
			open.Show()
		}
	}
	imageExts := []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp"}

	// Left sidebar: elements, templates and background.
	var shapeBtns, textBtns []fyne.CanvasObject
	for _, name := range templates.ShapeNames() {
		shapeBtns = append(shapeBtns, widget.NewButton(title(name), insertShape(name)))
	}
	for _, name := range templates.TextNames() {
		textBtns = append(textBtns, widget.NewButton(title(name), insertText(name)))
	}

	templateNames, err := ed.Templates()
	if err != nil {
		l.Warn("listing templates failed", slog.Any("err", err))
	}
	templateList := widget.NewList(
		func() int { return len(templateNames) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) { o.(*widget.Label).SetText(title(templateNames[i])) },
	)
	templateList.OnSelected = func(i widget.ListItemID) {
		report(ed.ApplyTemplate(templateNames[i]))
		templateList.UnselectAll()
	}
	reloadTemplates := func() {
		if names, err := ed.Templates(); err == nil {
			templateNames = names
			templateList.Refresh()
		}
	}

	bgOpacity := widget.NewSlider(0, 100)
	bgOpacity.Step = 1
	bgOpacity.SetValue(100)
	bgOpacity.OnChangeEnded = func(v float64) {
		_, err := ed.SetBackgroundOpacity(int(v))
		report(err)
	}
	bgScale := widget.NewSlider(editor.MinBackgroundScale, editor.MaxBackgroundScale)
	bgScale.Step = 1
	bgScale.SetValue(100)
	bgScale.OnChangeEnded = func(v float64) {
		_, err := ed.SetBackgroundScale(int(v))
		report(err)
	}
	bgPreset := widget.NewSelect(templates.BackgroundNames(), func(name string) {
		ed.ApplyBackground(name)
	})
	bgPreset.PlaceHolder = "Preset"

	sidebar := container.NewAppTabs(
		container.NewTabItem("Elements", container.NewVScroll(container.NewVBox(
			widget.NewLabel("Shapes"),
			container.NewGridWithColumns(2, shapeBtns...),
			widget.NewLabel("Text"),
			container.NewVBox(textBtns...),
			widget.NewSeparator(),
			widget.NewButton("Upload Image…", upload(ingest.KindImage, imageExts)),
		))),
		container.NewTabItem("Templates", templateList),
		container.NewTabItem("Background", container.NewVBox(
			bgPreset,
			widget.NewButton("Background Image…", upload(ingest.KindBackground, imageExts)),
			widget.NewForm(
				widget.NewFormItem("Opacity", bgOpacity),
				widget.NewFormItem("Scale", bgScale),
			),
			widget.NewButton("Remove Background", func() {
				ed.RemoveBackground()
				bgPreset.ClearSelected()
			}),
		)),
	)

	// Menus
	saveItem := fyne.NewMenuItem("Save", func() { report(ed.Save(context.Background())) })
	loadItem := fyne.NewMenuItem("Load Saved", func() {
		err := ed.LoadSaved(context.Background())
		if editor.IsEmpty(err) {
			dialog.ShowInformation("Load Saved", "No saved design found.", w)
			return
		}
		report(err)
	})
	openItem := fyne.NewMenuItem("Open Design…", upload(ingest.KindDocument, []string{".json"}))
	saveTemplateItem := fyne.NewMenuItem("Save as Template…", func() {
		entry := widget.NewEntry()
		form := dialog.NewForm("Save as Template", "Save", "Cancel", []*widget.FormItem{
			widget.NewFormItem("Name", entry),
		}, func(ok bool) {
			if !ok {
				return
			}
			if err := ed.SaveTemplate(strings.TrimSpace(entry.Text)); err != nil {
				dialog.ShowError(err, w)
				return
			}
			reloadTemplates()
			status.SetText("Template saved")
		}, w)
		form.Show()
	})
	exportPackItem := fyne.NewMenuItem("Export Template Pack…", func() {
		if opt.Library == nil {
			dialog.ShowInformation("Template Pack", "No template directory configured.", w)
			return
		}
		save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uc == nil {
				return
			}
			outPath := uc.URI().Path()
			_ = uc.Close()
			if !strings.HasSuffix(strings.ToLower(outPath), ".zip") {
				outPath += ".zip"
			}
			n, err := opt.Library.ExportPack(outPath)
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			dialog.ShowInformation("Template Pack", fmt.Sprintf("Exported %d templates to %s", n, outPath), w)
		}, w)
		save.SetFileName("templates-pack.zip")
		save.SetFilter(fstorage.NewExtensionFileFilter([]string{".zip"}))
		save.Show()
	})
	installPackItem := fyne.NewMenuItem("Install Template Pack…", func() {
		if opt.Library == nil {
			dialog.ShowInformation("Template Pack", "No template directory configured.", w)
			return
		}
		open := dialog.NewFileOpen(func(ur fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if ur == nil {
				return
			}
			path := ur.URI().Path()
			_ = ur.Close()
			n, err := opt.Library.InstallPack(path)
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			reloadTemplates()
			dialog.ShowInformation("Template Pack", fmt.Sprintf("Installed %d templates", n), w)
		}, w)
		open.SetFilter(fstorage.NewExtensionFileFilter([]string{".zip"}))
		open.Show()
	})
	fileMenu := fyne.NewMenu("File", openItem, saveItem, loadItem, fyne.NewMenuItemSeparator(),
		saveTemplateItem, exportPackItem, installPackItem)

	fitItem := fyne.NewMenuItem("Fit Canvas to Window", func() {
		size := dc.Size()
		if _, _, err := ed.Resize(float64(size.Width), float64(size.Height)); err != nil {
			report(err)
			return
		}
		dc.ResetView()
	})
	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Undo", undo),
		fyne.NewMenuItem("Redo", redo),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Deselect", func() {
			ed.ClearSelection()
			refresh()
		}),
		fyne.NewMenuItem("Zoom In", func() { dc.ZoomBy(0.1) }),
		fyne.NewMenuItem("Zoom Out", func() { dc.ZoomBy(-0.1) }),
		fyne.NewMenuItem("Actual Size", dc.ResetView),
		fitItem,
	)

	exportTo := func(name func() string, write func(fyne.URIWriteCloser) error, exts []string) func() {
		return func() {
			save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				if uc == nil {
					return
				}
				werr := write(uc)
				if cerr := uc.Close(); werr == nil {
					werr = cerr
				}
				report(werr)
			}, w)
			save.SetFileName(name())
			save.SetFilter(fstorage.NewExtensionFileFilter(exts))
			save.Show()
		}
	}
	batch := func(preset export.PresetName) func() {
		return func() {
			paths, err := export.BatchExport(ed.Document(), export.BatchOptions{Preset: preset, OutDir: opt.ExportDir})
			if err != nil {
				report(err)
				return
			}
			dir := opt.ExportDir
			if len(paths) > 0 {
				dir = filepath.Dir(paths[0])
			}
			dialog.ShowInformation("Export", fmt.Sprintf("Wrote %d files to %s", len(paths), dir), w)
		}
	}
	exportMenu := fyne.NewMenu("Export",
		fyne.NewMenuItem("PNG…", exportTo(fixed(export.DefaultPNGName), func(uc fyne.URIWriteCloser) error {
			return ed.ExportPNG(uc, 1)
		}, []string{".png"})),
		fyne.NewMenuItem("PDF…", exportTo(fixed(export.DefaultPDFName), func(uc fyne.URIWriteCloser) error {
			return ed.ExportPDF(uc)
		}, []string{".pdf"})),
		fyne.NewMenuItem("JSON…", exportTo(func() string { return export.JSONFileName(time.Now()) }, func(uc fyne.URIWriteCloser) error {
			_, blob, err := ed.ExportJSON()
			if err != nil {
				return err
			}
			_, err = uc.Write(blob)
			return err
		}, []string{".json"})),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Web Preset", batch(export.PresetWeb)),
		fyne.NewMenuItem("Print Preset", batch(export.PresetPrint)),
	)
	aboutMenu := fyne.NewMenu("About", fyne.NewMenuItem("About Positron", func() {
		dialog.ShowInformation("About Positron", "Positron "+version.String(), w)
	}))
	w.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, exportMenu, aboutMenu))

	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { undo() })
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { redo() })
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { saveItem.Action() })

	toolbar := container.NewHBox(undoBtn, redoBtn, widget.NewSeparator(),
		widget.NewButton("Save", saveItem.Action),
		widget.NewButton("Export PNG", exportMenu.Items[0].Action),
	)
	right := container.NewVScroll(props.box)
	right.SetMinSize(fyne.NewSize(260, 0))
	split := container.NewHSplit(sidebar, container.NewHSplit(dc, right))
	split.Offset = 0.2
	bottom := container.NewBorder(nil, nil, nil, progress, status)
	w.SetContent(container.NewBorder(toolbar, bottom, nil, nil, split))

	w.SetOnClosed(func() {
		size := w.Canvas().Size()
		prefs.SetInt("window.width", int(size.Width))
		prefs.SetInt("window.height", int(size.Height))
		l.Info("window closed")
	})
	refresh()
	w.ShowAndRun()
	return nil
}

func fixed(s string) func() string { return func() string { return s } }

func setEnabled(b *widget.Button, on bool) {
	if on {
		b.Enable()
	} else {
		b.Disable()
	}
}

// title turns a preset name like "blue-yellow" into "Blue Yellow".
func title(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
