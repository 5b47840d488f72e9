//go:build fyne

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"errors"
	"image/color"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"pagecraft/internal/layers"
	applog "pagecraft/internal/log"
	"pagecraft/internal/scene"
)

// LayerList shows the active page's tree. Tapping selects a row, tapping
// its arrow toggles it, and dragging a row reorders through the layer
// engine.
type LayerList struct {
	widget.BaseWidget

	store  *scene.Store
	engine *layers.Engine
	cfg    layers.Config
	log    *slog.Logger
	unsub  func()

	dragging     bool
	hint         layers.Hint
	hintRow      layers.Row
	lastX, lastY float64
}

// NewLayerList binds a layer list to s.
func NewLayerList(s *scene.Store, cfg layers.Config) *LayerList {
	if cfg.RowHeight <= 0 {
		cfg.RowHeight = layers.DefaultConfig().RowHeight
	}
	l := &LayerList{store: s, engine: layers.NewEngine(s, cfg), cfg: cfg, log: applog.WithComponent("ui")}
	l.ExtendBaseWidget(l)
	l.unsub = s.Subscribe(func(uint64) { fyne.Do(l.Refresh) })
	return l
}

// Close detaches the list from its store.
func (l *LayerList) Close() {
	if l.unsub != nil {
		l.unsub()
		l.unsub = nil
	}
}

func (l *LayerList) Tapped(ev *fyne.PointEvent) {
	row, ok := rowAt(l.engine.Rows(), float64(ev.Position.Y), l.cfg.RowHeight)
	if !ok {
		l.store.ClearSelection()
		return
	}
	if row.HasChildren && float64(ev.Position.X) < row.Indent+l.cfg.Indent {
		l.store.ToggleExpanded(row.ID)
		return
	}
	l.store.Select([]string{row.ID})
}

func (l *LayerList) Dragged(ev *fyne.DragEvent) {
	x, y := float64(ev.Position.X), float64(ev.Position.Y)
	rows := l.engine.Rows()
	if !l.dragging {
		start, ok := rowAt(rows, y-float64(ev.Dragged.DY), l.cfg.RowHeight)
		if !ok || !l.engine.Begin(start.ID) {
			return
		}
		l.dragging = true
	}
	if row, ok := rowAt(rows, y, l.cfg.RowHeight); ok {
		l.hintRow = row
		l.lastX, l.lastY = x, y
		l.hint = l.engine.DragOver(row, x, y)
		l.Refresh()
	}
}

func (l *LayerList) DragEnd() {
	if !l.dragging {
		return
	}
	l.dragging = false
	hint := l.hint
	l.hint = layers.Hint{}
	if hint.TargetID == "" {
		l.engine.Cancel()
		l.Refresh()
		return
	}
	if err := l.engine.Drop(l.hintRow, l.lastX, l.lastY); err != nil && !errors.Is(err, layers.ErrNoDrag) {
		l.log.Debug("layer drop rejected", slog.Any("error", err))
	}
	l.Refresh()
}

func (l *LayerList) CreateRenderer() fyne.WidgetRenderer { return &layerRenderer{l: l} }

type layerRenderer struct {
	l       *LayerList
	objects []fyne.CanvasObject
}

func (r *layerRenderer) Destroy()                     {}
func (r *layerRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *layerRenderer) MinSize() fyne.Size           { return fyne.NewSize(200, 120) }
func (r *layerRenderer) Layout(fyne.Size)             { r.rebuild() }
func (r *layerRenderer) Refresh()                     { r.rebuild(); canvas.Refresh(r.l) }

func (r *layerRenderer) rebuild() {
	rows := r.l.engine.Rows()
	h := float32(r.l.cfg.RowHeight)
	width := r.l.Size().Width
	fg := theme.Color(theme.ColorNameForeground)
	objs := make([]fyne.CanvasObject, 0, len(rows)*2+1)
	for _, row := range rows {
		y := float32(row.Top)
		if row.Selected {
			bg := canvas.NewRectangle(theme.Color(theme.ColorNameSelection))
			bg.Move(fyne.NewPos(0, y))
			bg.Resize(fyne.NewSize(width, h))
			objs = append(objs, bg)
		}
		label := row.Name
		switch {
		case row.HasChildren && row.Expanded:
			label = "▾ " + label
		case row.HasChildren:
			label = "▸ " + label
		default:
			label = "  " + label
		}
		col := fg
		if !row.Visible || row.Locked {
			col = theme.Color(theme.ColorNameDisabled)
		}
		txt := canvas.NewText(label, col)
		txt.TextSize = theme.TextSize()
		txt.Move(fyne.NewPos(float32(row.Indent)+4, y+(h-txt.MinSize().Height)/2))
		objs = append(objs, txt)
	}
	if hint := r.l.hint; r.l.dragging && hint.Valid {
		row := r.l.hintRow
		marker := canvas.NewRectangle(color.NRGBA{R: 0x25, G: 0x63, B: 0xeb, A: 0xff})
		x := float32(row.Indent)
		if hint.Unnest {
			x = 0
		}
		switch hint.Position {
		case scene.Inside:
			marker.FillColor = color.NRGBA{R: 0x25, G: 0x63, B: 0xeb, A: 0x33}
			marker.Move(fyne.NewPos(x, float32(row.Top)))
			marker.Resize(fyne.NewSize(width-x, h))
		case scene.Before:
			marker.Move(fyne.NewPos(x, float32(row.Top)-1))
			marker.Resize(fyne.NewSize(width-x, 2))
		default:
			marker.Move(fyne.NewPos(x, float32(row.Top)+h-1))
			marker.Resize(fyne.NewSize(width-x, 2))
		}
		objs = append(objs, marker)
	}
	r.objects = objs
}
