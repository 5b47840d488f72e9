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

	"pagecraft/internal/layout"
	"pagecraft/internal/scene"
	"pagecraft/internal/vector"
)

const eps = 1e-9

// armDrag records the moving set and the snap targets. Dragging starts once
// the pointer passes the threshold.
func (e *Engine) armDrag(g *gesture, sn *sceneSnap) {
	ids := sn.moving(sn.sel.SelectedIDs)
	g.originals = sn.frames(ids, sn.doc.Canvas.Width)
	if b, ok := sn.model.SelectionBounds(ids); ok {
		g.bounds = b
	}
	if !e.cfg.SnapEnabled {
		return
	}
	moving := map[string]bool{}
	for _, id := range ids {
		moving[id] = true
	}
	g.targets = append(g.targets, sn.scopeFrame())
	if scope, ok := sn.doc.Elements[sn.scope]; ok {
		for _, cid := range scope.Children {
			if moving[cid] {
				continue
			}
			if n, ok := sn.model.Node(cid); ok && !n.Hidden {
				g.targets = append(g.targets, n.Frame)
			}
		}
	}
}

func (g *gesture) movingIDs() []string {
	out := make([]string, len(g.originals))
	for i, o := range g.originals {
		out[i] = o.id
	}
	return out
}

func (e *Engine) applyDrag() {
	g := &e.g
	d := g.last.Sub(g.start)
	lockX, lockY := false, false
	if g.mods.Has(ModShift) {
		if math.Abs(d.X) >= math.Abs(d.Y) {
			d.Y, lockY = 0, true
		} else {
			d.X, lockX = 0, true
		}
	}
	z := g.view.Zoom
	if z <= 0 {
		z = 1
	}
	d = d.Scale(1 / z)
	g.guides = nil
	if e.cfg.SnapEnabled && len(g.targets) > 0 {
		moved := g.bounds.Translate(d)
		snapped, guides := vector.Snap(moved, g.targets, e.cfg.Snap)
		adj := snapped.Min().Sub(moved.Min())
		if !lockX {
			d.X += adj.X
		}
		if !lockY {
			d.Y += adj.Y
		}
		for _, gd := range guides {
			if (gd.Vertical && !lockX) || (!gd.Vertical && !lockY) {
				g.guides = append(g.guides, gd)
			}
		}
	}

	e.reconcileClone()
	ids := g.movingIDs()
	for i := range ids {
		if len(g.clones) > 0 {
			ids[i] = g.clones[i]
		}
	}
	updates := make([]scene.PositionUpdate, 0, len(ids))
	for i, o := range g.originals {
		if ids[i] == "" {
			continue
		}
		updates = append(updates, scene.PositionUpdate{ID: ids[i], Left: o.local.X + d.X, Top: o.local.Y + d.Y})
	}
	e.store.SetElementsPositions(updates)
}

// reconcileClone keeps exactly one clone set alive while alt is held and
// none otherwise. Originals go back to their start positions whenever the
// clones take over.
func (e *Engine) reconcileClone() {
	g := &e.g
	want := g.mods.Has(ModAlt)
	if want == (len(g.clones) > 0) {
		return
	}
	if want {
		e.restoreOriginals()
		mapping, err := e.store.CloneSubtrees(g.movingIDs())
		if err != nil {
			e.log.Warn("clone on drag failed", slog.Any("error", err))
			return
		}
		clones := make([]string, len(g.originals))
		var sel []string
		for i, o := range g.originals {
			clones[i] = mapping[o.id]
			if clones[i] != "" {
				sel = append(sel, clones[i])
			}
		}
		if len(sel) == 0 {
			return
		}
		g.clones = clones
		e.store.Select(sel)
		return
	}
	e.store.DeleteElements(e.store.DeepSelection(g.clones))
	g.clones = nil
	e.store.Select(g.movingIDs())
}

func (e *Engine) restoreOriginals() {
	g := &e.g
	updates := make([]scene.PositionUpdate, 0, len(g.originals))
	for _, o := range g.originals {
		updates = append(updates, scene.PositionUpdate{ID: o.id, Left: o.local.X, Top: o.local.Y})
	}
	e.store.SetElementsPositions(updates)
}

// handleAt returns the grip under a screen point for the current selection.
// Grips win over the anchor when they overlap.
func (e *Engine) handleAt(sn *sceneSnap, pos vector.Pt) Handle {
	b, ok := sn.model.SelectionBounds(sn.moving(sn.sel.SelectedIDs))
	if !ok {
		return HandleNone
	}
	sb := sn.view.RectToScreen(b)
	half := e.cfg.HandleSize / 2
	for h := HandleN; h <= HandleNW; h++ {
		u := handlePos[h]
		c := sb.At(u.X, u.Y)
		if vector.R(c.X-half, c.Y-half, 2*half, 2*half).Contains(pos) {
			return h
		}
	}
	c := sb.At(e.anchor.X, e.anchor.Y)
	if vector.R(c.X-half, c.Y-half, 2*half, 2*half).Contains(pos) {
		return HandleAnchor
	}
	return HandleNone
}

// HandleAt reports the grip under a screen point, for cursor feedback.
func (e *Engine) HandleAt(pos vector.Pt) Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	sn, ok := e.snapshot()
	if !ok {
		return HandleNone
	}
	return e.handleAt(sn, pos)
}

func (e *Engine) beginResize(g *gesture, sn *sceneSnap, h Handle) {
	ids := sn.moving(sn.sel.SelectedIDs)
	bounds, ok := sn.model.SelectionBounds(ids)
	if !ok {
		return
	}
	g.bounds = bounds
	if h == HandleAnchor {
		g.state = StateAnchoring
		return
	}
	g.state = StateResizing
	g.handle = h
	g.startDoc = sn.view.ToDoc(g.start)
	g.anchorDoc = bounds.At(e.anchor.X, e.anchor.Y)
	g.originals = sn.frames(ids, sn.doc.Canvas.Width)
	for _, o := range g.originals {
		mw, mh := layout.MinSize(sn.doc.Elements[o.id], sn.doc.Canvas.Width)
		mw = math.Max(mw, e.cfg.MinElementSize)
		mh = math.Max(mh, e.cfg.MinElementSize)
		if o.frame.W > eps {
			g.floorX = math.Max(g.floorX, mw/o.frame.W)
		}
		if o.frame.H > eps {
			g.floorY = math.Max(g.floorY, mh/o.frame.H)
		}
	}
}

// applyResize scales every moving element around the anchor. Each element's
// offset from the anchor scales with the same factor as its size, so the
// anchor point of the group stays fixed.
func (e *Engine) applyResize() {
	g := &e.g
	p := g.view.ToDoc(g.last)
	a := g.anchorDoc
	ax, ay := g.handle.axes()
	sx, sy := 1.0, 1.0
	if dx := g.startDoc.X - a.X; ax && math.Abs(dx) > eps {
		sx = (p.X - a.X) / dx
	}
	if dy := g.startDoc.Y - a.Y; ay && math.Abs(dy) > eps {
		sy = (p.Y - a.Y) / dy
	}
	if g.mods.Has(ModShift) {
		if math.Abs(sx-1) >= math.Abs(sy-1) {
			sy = sx
		} else {
			sx = sy
		}
	}
	sx = math.Max(sx, g.floorX)
	sy = math.Max(sy, g.floorY)

	updates := make([]scene.ResizeUpdate, 0, len(g.originals))
	for _, o := range g.originals {
		nx := a.X + (o.frame.X-a.X)*sx
		ny := a.Y + (o.frame.Y-a.Y)*sy
		u := scene.ResizeUpdate{
			ID:     o.id,
			Left:   o.local.X + (nx - o.frame.X),
			Top:    o.local.Y + (ny - o.frame.Y),
			Width:  o.frame.W * sx,
			Height: o.frame.H * sy,
		}
		if o.text {
			fs := o.fontSize * sy
			u.FontSize = &fs
		}
		updates = append(updates, u)
	}
	e.store.ResizeElements(updates)
}

func (e *Engine) collectCandidates(g *gesture, sn *sceneSnap) {
	scope, ok := sn.doc.Elements[sn.scope]
	if !ok {
		return
	}
	for _, cid := range scope.Children {
		if !sn.interactive(cid) {
			continue
		}
		g.candidates = append(g.candidates, candidate{id: cid, frames: sn.model.SubtreeFrames(cid)})
	}
}

// finishMarquee selects every direct child of the scope whose subtree
// touches the band.
func (e *Engine) finishMarquee() {
	g := &e.g
	if math.Max(g.marquee.W, g.marquee.H) < e.cfg.MarqueeMinSize {
		return
	}
	var hits []string
	for _, c := range g.candidates {
		for _, f := range c.frames {
			if g.view.RectToScreen(f).Intersects(g.marquee) {
				hits = append(hits, c.id)
				break
			}
		}
	}
	if g.mods.extend() {
		e.store.ExtendSelection(hits)
		return
	}
	e.store.Select(hits)
}
