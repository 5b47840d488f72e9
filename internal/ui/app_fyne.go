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
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"pagecraft/internal/bridge"
	"pagecraft/internal/config"
	"pagecraft/internal/crash"
	"pagecraft/internal/domain"
	"pagecraft/internal/export"
	applog "pagecraft/internal/log"
	"pagecraft/internal/scene"
	"pagecraft/internal/scripts"
	"pagecraft/internal/server"
	"pagecraft/internal/storage"
	"pagecraft/internal/version"
)

// Run starts the Fyne-based editor window. An empty projectDir starts an
// unsaved document; Save then asks for a folder.
func Run(projectDir string) error {
	cfg, _, err := config.Load()
	if err != nil {
		return err
	}
	applog.Init(cfg.Logging.LogOptions())
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	var ph *storage.ProjectHandle
	doc := cfg.Canvas.NewDocument()
	if projectDir != "" {
		abs, _ := filepath.Abs(projectDir)
		if ph, err = storage.Open(abs); err != nil {
			return fmt.Errorf("open project: %w", err)
		}
		doc = ph.Document
		cfg.RememberProject(abs)
		if err := config.Save(cfg, ""); err != nil {
			l.Warn("remember project failed", slog.Any("error", err))
		}
	}
	store := scene.New(doc, cfg.Editor.Limits())
	defer crash.RecoverStore(ph, store)
	hub := bridge.NewHub(store, 0)
	defer hub.Close()

	fyneApp := app.NewWithID("dev.pagecraft.editor")
	w := fyneApp.NewWindow("PageCraft " + version.String())
	// Restore window size from preferences (with sane minimums)
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 1280), 800)
	winH := max(prefs.IntWithFallback("window.height", 820), 600)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	editor := NewEditorCanvas(store, cfg.Editor.Interaction())
	defer editor.Close()
	layerList := NewLayerList(store, cfg.Editor.Layers())
	defer layerList.Close()

	title := func() {
		name := "untitled"
		if ph != nil {
			name = filepath.Base(ph.Root)
		}
		w.SetTitle(fmt.Sprintf("PageCraft %s - %s", version.String(), name))
	}
	title()

	pageSelect := widget.NewSelect(nil, nil)
	var pageIDs []string
	refreshPages := func() {
		var names []string
		var active string
		pageIDs = pageIDs[:0]
		store.View(func(d *domain.Document, _ domain.Selection) {
			for _, p := range d.Pages {
				pageIDs = append(pageIDs, p.PageID)
				names = append(names, p.Name)
				if p.PageID == d.ActivePageID {
					active = p.Name
				}
			}
		})
		pageSelect.Options = names
		pageSelect.Selected = active
		pageSelect.Refresh()
	}
	pageSelect.OnChanged = func(string) {
		if i := pageSelect.SelectedIndex(); i >= 0 && i < len(pageIDs) {
			store.SetActivePage(pageIDs[i])
		}
	}
	refreshPages()
	unsubPages := store.Subscribe(func(uint64) { fyne.Do(refreshPages) })
	defer unsubPages()

	insert := func(t domain.ElementType) {
		sel := store.Selection()
		parent := sel.ActiveContainerID
		if parent == "" {
			store.View(func(d *domain.Document, _ domain.Selection) {
				if p, ok := d.ActivePage(); ok {
					parent = p.RootElementID
				}
			})
		}
		id, err := store.AddElement(scene.AddPayload{Type: t, ParentID: parent})
		if err != nil {
			status.SetText("Insert failed: " + err.Error())
			return
		}
		store.Select([]string{id})
	}

	save := func() {
		if ph == nil {
			dialog.ShowFolderOpen(func(lu fyne.ListableURI, err error) {
				if err != nil || lu == nil {
					return
				}
				h, err := storage.InitProject(lu.Path(), store.Snapshot())
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				ph = h
				title()
				status.SetText("Saved to " + h.Root)
			}, w)
			return
		}
		ph.Document = store.Snapshot()
		if err := storage.Save(ph); err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Saved " + ph.DocumentPath)
	}

	exportSite := func() {
		if ph == nil {
			status.SetText("Save the project before exporting")
			return
		}
		ph.Document = store.Snapshot()
		files, err := export.ExportSite(ph, "site", export.SiteOptions{})
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText(fmt.Sprintf("Exported %d page(s) to %s", len(files), ph.Dir(storage.ExportsDirName)))
	}

	var stopPreview context.CancelFunc
	preview := func() {
		addr := cfg.Preview.Addr
		if stopPreview == nil {
			reg := scripts.NewRegistry()
			scripts.RegisterBuiltins(reg)
			root := ""
			if ph != nil {
				root = ph.Root
			}
			srv, err := server.New(hub, server.Options{Root: root, Scripts: reg, FPS: cfg.Preview.FPS})
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			ctx, cancel := context.WithCancel(context.Background())
			stopPreview = cancel
			go func() {
				if err := srv.Run(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
					l.Error("preview server stopped", slog.Any("error", err))
				}
			}()
		}
		u, _ := url.Parse("http://" + addr + "/preview")
		if err := fyneApp.OpenURL(u); err != nil {
			status.SetText("Preview at " + u.String())
		}
	}
	defer func() {
		if stopPreview != nil {
			stopPreview()
		}
	}()

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.DocumentSaveIcon(), save),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentAddIcon(), func() { insert(domain.TypeBox) }),
		widget.NewToolbarAction(theme.DocumentIcon(), func() { insert(domain.TypeText) }),
		widget.NewToolbarAction(theme.MediaPhotoIcon(), func() { insert(domain.TypeImage) }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ZoomInIcon(), func() { store.SetZoom(store.Viewport().Zoom * 1.25) }),
		widget.NewToolbarAction(theme.ZoomOutIcon(), func() { store.SetZoom(store.Viewport().Zoom / 1.25) }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.MediaPlayIcon(), preview),
		widget.NewToolbarAction(theme.UploadIcon(), exportSite),
	)
	addPage := widget.NewButtonWithIcon("", theme.ContentAddIcon(), func() {
		p := store.AddPage(fmt.Sprintf("Page %d", len(pageIDs)+1))
		store.SetActivePage(p.PageID)
	})
	top := container.NewBorder(nil, nil, nil, container.NewHBox(pageSelect, addPage), toolbar)
	split := container.NewHSplit(container.NewVScroll(layerList), editor)
	split.Offset = 0.22
	w.SetContent(container.NewBorder(top, status, nil, nil, split))
	w.Canvas().Focus(editor)

	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})
	if ph != nil {
		status.SetText("Opened " + ph.Root)
	}
	w.ShowAndRun()
	return nil
}
