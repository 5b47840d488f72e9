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
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"pagecraft/internal/domain"
	"pagecraft/internal/interact"
	"pagecraft/internal/scene"
	"pagecraft/internal/vector"
)

var (
	selectionColor = color.NRGBA{R: 0x25, G: 0x63, B: 0xeb, A: 0xff}
	marqueeFill    = color.NRGBA{R: 0x25, G: 0x63, B: 0xeb, A: 0x22}
	guideColor     = color.NRGBA{R: 0xec, G: 0x48, B: 0x99, A: 0xff}
	outlineColor   = color.NRGBA{R: 0x9c, G: 0xa3, B: 0xaf, A: 0xff}
	breakColor     = color.NRGBA{R: 0xf5, G: 0x9e, B: 0x0b, A: 0xaa}
)

// EditorCanvas paints the active page of a store and feeds pointer, wheel
// and keyboard input to the interaction engine.
type EditorCanvas struct {
	widget.BaseWidget

	store  *scene.Store
	engine *interact.Engine
	keys   keyTracker
	unsub  func()
}

var (
	_ desktop.Mouseable   = (*EditorCanvas)(nil)
	_ desktop.Hoverable   = (*EditorCanvas)(nil)
	_ desktop.Keyable     = (*EditorCanvas)(nil)
	_ fyne.Scrollable     = (*EditorCanvas)(nil)
	_ fyne.DoubleTappable = (*EditorCanvas)(nil)
	_ fyne.Shortcutable   = (*EditorCanvas)(nil)
)

// NewEditorCanvas binds a canvas to s. Store changes from any goroutine
// schedule a repaint.
func NewEditorCanvas(s *scene.Store, cfg interact.Config) *EditorCanvas {
	c := &EditorCanvas{store: s, engine: interact.New(s, cfg, nil)}
	c.ExtendBaseWidget(c)
	c.unsub = s.Subscribe(func(uint64) { fyne.Do(c.Refresh) })
	return c
}

// Engine exposes the interaction engine, for tools and tests.
func (c *EditorCanvas) Engine() *interact.Engine { return c.engine }

// Close detaches the canvas from its store.
func (c *EditorCanvas) Close() {
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.engine.Close()
}

func (c *EditorCanvas) focus() {
	if app := fyne.CurrentApp(); app != nil {
		if cv := app.Driver().CanvasForObject(c); cv != nil {
			cv.Focus(c)
		}
	}
}

func (c *EditorCanvas) MouseDown(ev *desktop.MouseEvent) {
	c.focus()
	c.engine.PointerDown(Pointer(ev))
	c.Refresh()
}

func (c *EditorCanvas) MouseUp(ev *desktop.MouseEvent) {
	c.engine.PointerUp(Pointer(ev))
	c.Refresh()
}

func (c *EditorCanvas) MouseIn(*desktop.MouseEvent) {}

// MouseMoved feeds hover samples; without a pressed gesture the engine
// ignores them.
func (c *EditorCanvas) MouseMoved(ev *desktop.MouseEvent) {
	c.engine.PointerMove(Pointer(ev))
	if c.engine.State() != interact.StateIdle {
		c.Refresh()
	}
}

func (c *EditorCanvas) MouseOut() {}

// Scrolled pans, or zooms with ctrl held. Fyne reports wheel-up as
// positive DY; the engine expects screen deltas.
func (c *EditorCanvas) Scrolled(ev *fyne.ScrollEvent) {
	c.engine.Wheel(interact.WheelEvent{
		Pos:       Point(ev.Position),
		DeltaX:    -float64(ev.Scrolled.DX),
		DeltaY:    -float64(ev.Scrolled.DY),
		Modifiers: c.keys.mods,
	})
}

func (c *EditorCanvas) DoubleTapped(ev *fyne.PointEvent) {
	c.engine.DoubleClick(Point(ev.Position))
}

func (c *EditorCanvas) FocusGained() {}

func (c *EditorCanvas) FocusLost() {
	c.keys = keyTracker{}
	c.engine.SetSpaceHeld(false)
}

func (c *EditorCanvas) TypedRune(rune) {}

func (c *EditorCanvas) TypedKey(ev *fyne.KeyEvent) {
	if ev.Name == fyne.KeySpace {
		return
	}
	if c.engine.KeyDown(Key(ev.Name), c.keys.mods) {
		c.Refresh()
	}
}

func (c *EditorCanvas) KeyDown(ev *fyne.KeyEvent) {
	if c.keys.down(ev.Name) {
		c.engine.ModifiersChanged(c.keys.mods)
		c.engine.SetSpaceHeld(c.keys.space)
	}
}

func (c *EditorCanvas) KeyUp(ev *fyne.KeyEvent) {
	if c.keys.up(ev.Name) {
		c.engine.ModifiersChanged(c.keys.mods)
		c.engine.SetSpaceHeld(c.keys.space)
	}
}

// TypedShortcut routes the standard clipboard shortcuts and any custom
// ctrl/cmd combination to the engine's key map.
func (c *EditorCanvas) TypedShortcut(sc fyne.Shortcut) {
	var handled bool
	switch s := sc.(type) {
	case *fyne.ShortcutCopy:
		handled = c.engine.KeyDown("c", interact.ModCtrl)
	case *fyne.ShortcutCut:
		handled = c.engine.KeyDown("x", interact.ModCtrl)
	case *fyne.ShortcutPaste:
		handled = c.engine.KeyDown("v", interact.ModCtrl)
	case *fyne.ShortcutSelectAll:
		handled = c.engine.KeyDown("a", interact.ModCtrl)
	case *desktop.CustomShortcut:
		handled = c.engine.KeyDown(Key(s.KeyName), Modifiers(s.Modifier))
	}
	if handled {
		c.Refresh()
	}
}

func (c *EditorCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &editorRenderer{c: c}
}

type editorRenderer struct {
	c       *EditorCanvas
	objects []fyne.CanvasObject
}

func (r *editorRenderer) Destroy()                     {}
func (r *editorRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *editorRenderer) MinSize() fyne.Size           { return fyne.NewSize(320, 240) }
func (r *editorRenderer) Layout(fyne.Size)             { r.rebuild() }
func (r *editorRenderer) Refresh()                     { r.rebuild(); canvas.Refresh(r.c) }

func place(o fyne.CanvasObject, rc vector.Rect) {
	o.Move(fyne.NewPos(float32(rc.X), float32(rc.Y)))
	o.Resize(fyne.NewSize(float32(rc.W), float32(rc.H)))
}

func line(x1, y1, x2, y2 float64, col color.Color) *canvas.Line {
	l := canvas.NewLine(col)
	l.StrokeWidth = 1
	l.Position1 = fyne.NewPos(float32(x1), float32(y1))
	l.Position2 = fyne.NewPos(float32(x2), float32(y2))
	return l
}

func (r *editorRenderer) rebuild() {
	var sc Scene
	var view vector.Viewport
	r.c.store.View(func(doc *domain.Document, sel domain.Selection) {
		view = vector.Viewport{Zoom: doc.Canvas.Zoom, ScrollX: doc.Canvas.ScrollX, ScrollY: doc.Canvas.ScrollY}
		sc = BuildScene(doc, sel, doc.ActivePageID, view)
	})
	ov := r.c.engine.Overlay()

	objs := make([]fyne.CanvasObject, 0, len(sc.Shapes)*2+8)
	bg := canvas.NewRectangle(sc.Background)
	place(bg, sc.Page)
	objs = append(objs, bg)
	for _, sh := range sc.Shapes {
		rect := canvas.NewRectangle(color.Transparent)
		if sh.HasFill {
			rect.FillColor = sh.Fill
		}
		rect.StrokeColor = outlineColor
		rect.StrokeWidth = 1
		if sh.Type == domain.TypeImage {
			rect.FillColor = color.NRGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff}
		}
		place(rect, sh.Rect)
		objs = append(objs, rect)
		if sh.Text != "" {
			txt := canvas.NewText(sh.Text, sh.Color)
			txt.TextSize = sh.FontSize
			txt.Move(fyne.NewPos(float32(sh.Rect.X), float32(sh.Rect.Y)))
			objs = append(objs, txt)
		}
	}
	for _, x := range sc.Breakpoints {
		objs = append(objs, line(x, sc.Page.Y, x, sc.Page.Y+sc.Page.H, breakColor))
	}
	for _, g := range ov.Guides {
		a, b := view.ToScreen(g.From), view.ToScreen(g.To)
		objs = append(objs, line(a.X, a.Y, b.X, b.Y, guideColor))
	}
	if !ov.Bounds.Empty() {
		sel := canvas.NewRectangle(color.Transparent)
		sel.StrokeColor = selectionColor
		sel.StrokeWidth = 1.5
		place(sel, ov.Bounds)
		objs = append(objs, sel)
		dot := canvas.NewCircle(selectionColor)
		place(dot, vector.R(ov.Anchor.X-3, ov.Anchor.Y-3, 6, 6))
		objs = append(objs, dot)
	}
	if !ov.Marquee.Empty() {
		m := canvas.NewRectangle(marqueeFill)
		m.StrokeColor = selectionColor
		m.StrokeWidth = 1
		place(m, ov.Marquee)
		objs = append(objs, m)
	}
	r.objects = objs
}
