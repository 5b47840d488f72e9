/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package interact is the canvas pointer state machine: selection, drag
// moves with clone-on-alt, multi-element resize around an anchor, marquee
// selection, panning and zoom.
//
// The gesture record lives outside the store. The store only sees the
// resulting writes, each O(size of the moving set), computed from a
// snapshot taken when the gesture starts.
package interact

import (
	"log/slog"
	"math"
	"sync"

	"pagecraft/internal/domain"
	"pagecraft/internal/layout"
	applog "pagecraft/internal/log"
	"pagecraft/internal/scene"
	"pagecraft/internal/vector"
)

// frameSnap is one moving element as it was when the gesture started.
type frameSnap struct {
	id       string
	local    vector.Rect // parent-relative
	frame    vector.Rect // document
	text     bool
	fontSize float64
}

// candidate is a marquee target: a direct child of the scope and the frames
// of its whole subtree.
type candidate struct {
	id     string
	frames []vector.Rect
}

type gesture struct {
	active bool
	state  State
	mods   Modifiers
	start  vector.Pt // screen
	last   vector.Pt // screen
	view   vector.Viewport

	startScroll vector.Pt

	pressedID    string
	justSelected bool
	moved        bool
	originals    []frameSnap
	clones       []string
	bounds       vector.Rect // document bounds of the moving set
	targets      []vector.Rect
	guides       []vector.Guide

	handle    Handle
	startDoc  vector.Pt
	anchorDoc vector.Pt
	floorX    float64
	floorY    float64

	marquee    vector.Rect
	clip       vector.Rect
	candidates []candidate
}

// Engine is the non-reactive controller behind the canvas.
type Engine struct {
	store   *scene.Store
	cfg     Config
	capture Capture
	log     *slog.Logger

	mu        sync.Mutex
	tool      Tool
	spaceHeld bool
	anchor    vector.Pt
	g         gesture
	release   func()

	snapMu  sync.Mutex
	cached  *sceneSnap
	cacheAt uint64
}

// New returns an engine driving s. A nil capture acquires nothing.
func New(s *scene.Store, cfg Config, capture Capture) *Engine {
	if capture == nil {
		capture = nopCapture{}
	}
	def := DefaultConfig()
	if cfg.DragThreshold <= 0 {
		cfg.DragThreshold = def.DragThreshold
	}
	if cfg.MarqueeMinSize <= 0 {
		cfg.MarqueeMinSize = def.MarqueeMinSize
	}
	if cfg.AnchorSnap < 0 {
		cfg.AnchorSnap = 0
	}
	if cfg.MinElementSize <= 0 {
		cfg.MinElementSize = def.MinElementSize
	}
	if cfg.HandleSize <= 0 {
		cfg.HandleSize = def.HandleSize
	}
	if cfg.ZoomSpeed <= 0 {
		cfg.ZoomSpeed = def.ZoomSpeed
	}
	if cfg.NudgeStep <= 0 {
		cfg.NudgeStep = def.NudgeStep
	}
	if cfg.NudgeStepLarge <= 0 {
		cfg.NudgeStepLarge = def.NudgeStepLarge
	}
	return &Engine{
		store:   s,
		cfg:     cfg,
		capture: capture,
		anchor:  vector.Pt{X: 0.5, Y: 0.5},
		log:     applog.WithComponent("interact"),
	}
}

// SetTool switches between selection and the hand tool.
func (e *Engine) SetTool(t Tool) {
	e.mu.Lock()
	e.tool = t
	e.mu.Unlock()
}

// SetSpaceHeld records the space bar, which turns left drags into pans.
func (e *Engine) SetSpaceHeld(held bool) {
	e.mu.Lock()
	e.spaceHeld = held
	e.mu.Unlock()
}

// State returns the current gesture state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.g.state
}

// Anchor returns the normalized resize anchor.
func (e *Engine) Anchor() vector.Pt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.anchor
}

// SetAnchor moves the resize anchor; each coordinate is clamped to [0,1]
// and snaps to 0, 0.5 or 1 within the configured band.
func (e *Engine) SetAnchor(u, v float64) {
	e.mu.Lock()
	e.anchor = vector.Pt{X: e.snapAnchor(u), Y: e.snapAnchor(v)}
	e.mu.Unlock()
}

func (e *Engine) snapAnchor(t float64) float64 {
	t = vector.Clamp(t, 0, 1)
	for _, s := range [...]float64{0, 0.5, 1} {
		if math.Abs(t-s) <= e.cfg.AnchorSnap {
			return s
		}
	}
	return t
}

// sceneSnap is a detached copy of the state a gesture starts from.
type sceneSnap struct {
	doc   domain.Document
	sel   domain.Selection
	page  domain.Page
	scope string
	model *layout.Model
	view  vector.Viewport
}

// snapshot returns the scene at the store's current version. The document
// copy and layout model are reused until the store changes, so chrome
// queries made on every repaint stay cheap. Callers get their own header
// and may reassign its fields.
func (e *Engine) snapshot() (*sceneSnap, bool) {
	v := e.store.Version()
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	if e.cached == nil || e.cacheAt != v {
		sn, ok := e.buildSnapshot()
		if !ok {
			e.cached = nil
			return nil, false
		}
		e.cached, e.cacheAt = sn, v
	}
	cp := *e.cached
	return &cp, true
}

func (e *Engine) buildSnapshot() (*sceneSnap, bool) {
	doc := e.store.Snapshot()
	page, ok := doc.ActivePage()
	if !ok {
		return nil, false
	}
	sn := &sceneSnap{doc: doc, sel: e.store.Selection(), page: page}
	sn.scope = sn.sel.ActiveContainerID
	if _, ok := doc.Elements[sn.scope]; !ok || sn.scope == "" {
		sn.scope = page.RootElementID
	}
	sn.model = layout.Compute(&sn.doc, page.PageID, doc.Canvas.Width)
	sn.view = vector.Viewport{Zoom: doc.Canvas.Zoom, ScrollX: doc.Canvas.ScrollX, ScrollY: doc.Canvas.ScrollY}
	return sn, true
}

// hitTest returns the topmost interactive element under a screen point: a
// direct child of the scope whose subtree covers the point.
func (sn *sceneSnap) hitTest(pos vector.Pt) string {
	scope, ok := sn.doc.Elements[sn.scope]
	if !ok {
		return ""
	}
	p := sn.view.ToDoc(pos)
	for i := len(scope.Children) - 1; i >= 0; i-- {
		id := scope.Children[i]
		if !sn.interactive(id) {
			continue
		}
		for _, f := range sn.model.SubtreeFrames(id) {
			if f.Contains(p) {
				return id
			}
		}
	}
	return ""
}

func (sn *sceneSnap) interactive(id string) bool {
	el, ok := sn.doc.Elements[id]
	if !ok || el.IsLocked {
		return false
	}
	n, ok := sn.model.Node(id)
	return ok && !n.Hidden
}

// moving filters ids to selectable elements without a listed ancestor.
func (sn *sceneSnap) moving(ids []string) []string {
	var out []string
	for _, id := range ids {
		el, ok := sn.doc.Elements[id]
		if !ok || el.IsLocked || sn.doc.IsRoot(id) {
			continue
		}
		nested := false
		for _, other := range ids {
			if other != id && sn.doc.IsAncestor(other, id) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, id)
		}
	}
	return out
}

func (sn *sceneSnap) frames(ids []string, canvasWidth float64) []frameSnap {
	out := make([]frameSnap, 0, len(ids))
	for _, id := range ids {
		n, ok := sn.model.Node(id)
		if !ok {
			continue
		}
		el := sn.doc.Elements[id]
		fs := frameSnap{id: id, local: n.Local, frame: n.Frame, text: el.Type == domain.TypeText}
		if fs.text {
			fs.fontSize = layout.DefaultFontSize
			if v, ok := domain.PropPx(el.Props.Effective(canvasWidth)["fontSize"]); ok && v > 0 {
				fs.fontSize = v
			}
		}
		out = append(out, fs)
	}
	return out
}

func (sn *sceneSnap) scopeFrame() vector.Rect {
	if f, ok := sn.model.Frame(sn.scope); ok {
		return f
	}
	return vector.R(0, 0, sn.doc.Canvas.Width, sn.doc.Canvas.Height)
}

// PointerDown starts a gesture. Only one gesture runs at a time.
func (e *Engine) PointerDown(ev PointerEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.g.active {
		return
	}
	sn, ok := e.snapshot()
	if !ok {
		return
	}
	g := gesture{active: true, mods: ev.Modifiers, start: ev.Pos, last: ev.Pos, view: sn.view}

	switch {
	case ev.Button == MouseButtonMiddle || (ev.Button == MouseButtonLeft && (e.spaceHeld || e.tool == ToolHand)):
		g.state = StatePanning
		g.startScroll = vector.Pt{X: sn.view.ScrollX, Y: sn.view.ScrollY}
	case ev.Button != MouseButtonLeft:
		return
	default:
		if h := e.handleAt(sn, ev.Pos); h != HandleNone {
			e.beginResize(&g, sn, h)
			break
		}
		if id := sn.hitTest(ev.Pos); id != "" {
			if !sn.sel.Has(id) {
				if ev.Modifiers.extend() {
					e.store.ExtendSelection([]string{id})
				} else {
					e.store.Select([]string{id})
				}
				g.justSelected = true
				sn.sel = e.store.Selection()
			}
			g.pressedID = id
			e.armDrag(&g, sn)
			break
		}
		if !ev.Modifiers.extend() {
			e.store.ClearSelection()
		}
		g.state = StateMarquee
		g.clip = sn.view.RectToScreen(sn.scopeFrame())
		g.marquee = vector.R(ev.Pos.X, ev.Pos.Y, 0, 0)
		e.collectCandidates(&g, sn)
	}

	e.g = g
	e.release = e.capture.Acquire()
	e.log.Debug("gesture start", slog.String("state", g.state.String()), slog.String("target", g.pressedID))
}

// PointerMove advances the active gesture; without one it does nothing.
func (e *Engine) PointerMove(ev PointerEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.g.active {
		return
	}
	e.g.last = ev.Pos
	e.g.mods = ev.Modifiers
	e.step()
}

// ModifiersChanged re-evaluates the gesture at the last pointer position, so
// pressing shift or alt takes effect without moving the pointer.
func (e *Engine) ModifiersChanged(m Modifiers) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.g.active || e.g.mods == m {
		return
	}
	e.g.mods = m
	e.step()
}

func (e *Engine) step() {
	g := &e.g
	switch g.state {
	case StatePanning:
		d := g.last.Sub(g.start)
		e.store.SetScroll(g.startScroll.X+d.X, g.startScroll.Y+d.Y)
	case StateAnchoring:
		p := g.view.ToDoc(g.last)
		if g.bounds.W > 0 && g.bounds.H > 0 {
			e.anchor = vector.Pt{
				X: e.snapAnchor((p.X - g.bounds.X) / g.bounds.W),
				Y: e.snapAnchor((p.Y - g.bounds.Y) / g.bounds.H),
			}
		}
	case StateResizing:
		e.applyResize()
	case StateMarquee:
		g.marquee = intersect(vector.FromPoints(g.start, g.last), g.clip)
	default:
		if len(g.originals) == 0 {
			return
		}
		if !g.moved {
			d := g.last.Sub(g.start)
			if math.Hypot(d.X, d.Y) < e.cfg.DragThreshold {
				return
			}
			g.moved = true
			g.state = StateDragging
		}
		e.applyDrag()
	}
}

// PointerUp concludes the gesture and returns the engine to idle.
func (e *Engine) PointerUp(ev PointerEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.g.active {
		return
	}
	e.g.last = ev.Pos
	e.g.mods = ev.Modifiers
	g := &e.g
	switch {
	case g.state == StateMarquee:
		g.marquee = intersect(vector.FromPoints(g.start, g.last), g.clip)
		e.finishMarquee()
	case g.pressedID != "" && !g.moved:
		e.finishClick()
	case g.state == StateDragging:
		e.log.Debug("drag done", slog.Int("elements", len(g.originals)), slog.Bool("cloned", len(g.clones) > 0))
	}
	e.end()
}

// Close tears down a gesture left open, e.g. when the canvas goes away
// mid-drag. Writes already made stay.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.g.active {
		e.log.Debug("gesture aborted", slog.String("state", e.g.state.String()))
	}
	e.end()
}

func (e *Engine) end() {
	if e.release != nil {
		e.release()
		e.release = nil
	}
	e.g = gesture{}
}

// finishClick narrows a multi-selection to the clicked element, unless the
// press itself selected it. Shift/ctrl clicks on a selected element
// deselect it instead.
func (e *Engine) finishClick() {
	g := &e.g
	if g.justSelected {
		return
	}
	if g.mods.extend() {
		e.store.Deselect([]string{g.pressedID})
		return
	}
	if len(e.store.Selection().SelectedIDs) > 1 {
		e.store.Select([]string{g.pressedID})
	}
}

// Overlay describes the gesture chrome in screen space.
func (e *Engine) Overlay() Overlay {
	e.mu.Lock()
	anchor := e.anchor
	g := e.g
	e.mu.Unlock()
	o := Overlay{State: g.state, Guides: g.guides, Cloning: len(g.clones) > 0}
	if g.state == StateMarquee {
		o.Marquee = g.marquee
	}
	sn, ok := e.snapshot()
	if !ok {
		return o
	}
	if b, ok := sn.model.SelectionBounds(sn.moving(sn.sel.SelectedIDs)); ok {
		o.Bounds = sn.view.RectToScreen(b)
		o.Anchor = o.Bounds.At(anchor.X, anchor.Y)
	}
	return o
}

func intersect(a, b vector.Rect) vector.Rect {
	if b.W <= 0 || b.H <= 0 {
		return a
	}
	x0 := math.Max(a.X, b.X)
	y0 := math.Max(a.Y, b.Y)
	x1 := math.Min(a.X+a.W, b.X+b.W)
	y1 := math.Min(a.Y+a.H, b.Y+b.H)
	if x1 < x0 || y1 < y0 {
		return vector.R(x0, y0, 0, 0)
	}
	return vector.R(x0, y0, x1-x0, y1-y0)
}
