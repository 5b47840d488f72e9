/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package interact

import (
	"log/slog"
	"math"
	"strings"

	"pagecraft/internal/scene"
	"pagecraft/internal/vector"
)

// Wheel pans the canvas, or zooms around the cursor with ctrl or super held.
func (e *Engine) Wheel(ev WheelEvent) {
	v := e.store.Viewport()
	if ev.Modifiers&(ModCtrl|ModSuper) != 0 {
		e.ZoomAt(ev.Pos, v.Zoom*math.Exp(-ev.DeltaY*e.cfg.ZoomSpeed))
		return
	}
	dx, dy := ev.DeltaX, ev.DeltaY
	if ev.Modifiers.Has(ModShift) && dx == 0 {
		dx, dy = dy, 0
	}
	e.store.SetScroll(v.ScrollX-dx, v.ScrollY-dy)
}

// ZoomAt sets the zoom, keeping the document point under the screen pivot
// in place.
func (e *Engine) ZoomAt(pivot vector.Pt, zoom float64) {
	v := e.store.Viewport()
	lim := e.store.Limits()
	z := vector.Clamp(zoom, lim.MinZoom, lim.MaxZoom)
	d := v.ToDoc(pivot)
	e.store.SetViewport(vector.Viewport{Zoom: z, ScrollX: pivot.X - d.X*z, ScrollY: pivot.Y - d.Y*z})
}

// DoubleClick enters the box under the pointer. Double clicking empty space
// inside an entered container leaves it.
func (e *Engine) DoubleClick(pos vector.Pt) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.g.active {
		return
	}
	sn, ok := e.snapshot()
	if !ok {
		return
	}
	id := sn.hitTest(pos)
	if id == "" {
		if sn.scope != sn.page.RootElementID {
			e.store.ExitContainer()
		}
		return
	}
	if el := sn.doc.Elements[id]; el.Type.IsContainer() {
		e.store.SetActiveContainer(id)
		e.log.Debug("entered container", slog.String("id", id))
	}
}

// KeyDown handles editor shortcuts. Key names follow the canvas toolkit
// ("Escape", "Delete", "Left", "C", ...). It reports whether the key was
// consumed. Only Escape is honoured while a gesture runs.
func (e *Engine) KeyDown(key string, mods Modifiers) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	key = strings.ToLower(key)
	if e.g.active {
		if key != "escape" {
			return false
		}
		e.cancel()
		return true
	}
	sel := e.store.Selection()
	cmd := mods&(ModCtrl|ModSuper) != 0
	switch {
	case key == "escape":
		if sel.ActiveContainerID != "" {
			e.store.ExitContainer()
		} else {
			e.store.ClearSelection()
		}
	case key == "delete" || key == "backspace":
		if len(sel.SelectedIDs) == 0 {
			return false
		}
		e.store.DeleteElements(e.store.DeepSelection(sel.SelectedIDs))
	case key == "left" || key == "right" || key == "up" || key == "down":
		return e.nudge(key, mods)
	case cmd && key == "a":
		e.selectAll()
	case cmd && key == "c":
		return e.store.Copy(sel.SelectedIDs) > 0
	case cmd && key == "x":
		return e.store.Cut(sel.SelectedIDs) > 0
	case cmd && key == "v":
		if _, err := e.store.Paste(""); err != nil {
			e.log.Warn("paste failed", slog.Any("error", err))
		}
	case cmd && key == "d":
		e.duplicate(sel.SelectedIDs)
	case cmd && key == "g" && mods.Has(ModShift):
		e.store.UngroupElements(sel.SelectedIDs)
	case cmd && key == "g":
		if len(sel.SelectedIDs) == 0 {
			return false
		}
		if _, err := e.store.GroupElements(scene.GroupRequest{MemberIDs: sel.SelectedIDs}); err != nil {
			e.log.Warn("group failed", slog.Any("error", err))
		}
	default:
		return false
	}
	return true
}

// cancel aborts the running gesture and puts moved or resized elements back.
func (e *Engine) cancel() {
	g := &e.g
	if len(g.clones) > 0 {
		e.store.DeleteElements(e.store.DeepSelection(g.clones))
		e.store.Select(g.movingIDs())
		g.clones = nil
	}
	switch g.state {
	case StateDragging:
		e.restoreOriginals()
	case StateResizing:
		updates := make([]scene.ResizeUpdate, 0, len(g.originals))
		for _, o := range g.originals {
			u := scene.ResizeUpdate{ID: o.id, Left: o.local.X, Top: o.local.Y, Width: o.local.W, Height: o.local.H}
			if o.text {
				fs := o.fontSize
				u.FontSize = &fs
			}
			updates = append(updates, u)
		}
		e.store.ResizeElements(updates)
	case StatePanning:
		e.store.SetScroll(g.startScroll.X, g.startScroll.Y)
	}
	e.end()
}

func (e *Engine) nudge(key string, mods Modifiers) bool {
	sn, ok := e.snapshot()
	if !ok {
		return false
	}
	ids := sn.moving(sn.sel.SelectedIDs)
	if len(ids) == 0 {
		return false
	}
	step := e.cfg.NudgeStep
	if mods.Has(ModShift) {
		step = e.cfg.NudgeStepLarge
	}
	var d vector.Pt
	switch key {
	case "left":
		d.X = -step
	case "right":
		d.X = step
	case "up":
		d.Y = -step
	case "down":
		d.Y = step
	}
	updates := make([]scene.PositionUpdate, 0, len(ids))
	for _, f := range sn.frames(ids, sn.doc.Canvas.Width) {
		updates = append(updates, scene.PositionUpdate{ID: f.id, Left: f.local.X + d.X, Top: f.local.Y + d.Y})
	}
	e.store.SetElementsPositions(updates)
	return true
}

func (e *Engine) selectAll() {
	sn, ok := e.snapshot()
	if !ok {
		return
	}
	scope := sn.doc.Elements[sn.scope]
	var ids []string
	for _, cid := range scope.Children {
		if sn.interactive(cid) {
			ids = append(ids, cid)
		}
	}
	e.store.Select(ids)
}

// duplicate clones ids in place, shifted by the paste offset, and selects
// the copies.
func (e *Engine) duplicate(ids []string) {
	mapping, err := e.store.CloneSubtrees(ids)
	if err != nil {
		e.log.Warn("duplicate failed", slog.Any("error", err))
		return
	}
	if len(mapping) == 0 {
		return
	}
	off := e.store.Limits().PasteOffset
	clones := make([]string, 0, len(mapping))
	var updates []scene.PositionUpdate
	for _, orig := range ids {
		c, ok := mapping[orig]
		if !ok {
			continue
		}
		el, ok := e.store.Element(c)
		if !ok {
			continue
		}
		clones = append(clones, c)
		updates = append(updates, scene.PositionUpdate{
			ID:   c,
			Left: el.Props.Px("left", 0) + off,
			Top:  el.Props.Px("top", 0) + off,
		})
	}
	e.store.SetElementsPositions(updates)
	e.store.Select(clones)
}
