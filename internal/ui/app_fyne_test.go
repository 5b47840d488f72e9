//go:build fyne

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// These tests validate the Fyne widgets. They are gated behind the "fyne"
// build tag so CI (which is headless) does not need Fyne or a display.
// To run locally:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"

	"pagecraft/internal/domain"
	"pagecraft/internal/interact"
	"pagecraft/internal/layers"
	"pagecraft/internal/scene"
)

func newStore(t *testing.T) (*scene.Store, string) {
	t.Helper()
	s := scene.New(scene.NewDocument(400, 300, "#fff", nil), scene.DefaultLimits())
	doc := s.Snapshot()
	page, _ := doc.ActivePage()
	if _, err := s.AddElements([]scene.AddPayload{
		{ElementID: "a", Type: domain.TypeBox, ParentID: page.RootElementID, Props: domain.Props{"left": "10px", "top": "10px"}},
		{ElementID: "b", Type: domain.TypeBox, ParentID: page.RootElementID, Props: domain.Props{"left": "200px", "top": "10px"}},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	return s, page.RootElementID
}

func mouse(x, y float32, b desktop.MouseButton) *desktop.MouseEvent {
	return &desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}, Button: b}
}

func TestEditorCanvasClickAndDrag(t *testing.T) {
	test.NewTempApp(t)
	s, _ := newStore(t)
	c := NewEditorCanvas(s, interact.DefaultConfig())
	defer c.Close()
	w := test.NewTempWindow(t, c)
	w.Resize(fyne.NewSize(600, 400))

	c.MouseDown(mouse(20, 20, desktop.MouseButtonPrimary))
	c.MouseMoved(mouse(50, 40, desktop.MouseButtonPrimary))
	c.MouseUp(mouse(50, 40, desktop.MouseButtonPrimary))

	if sel := s.Selection(); !sel.Has("a") {
		t.Fatalf("selection = %v", sel.SelectedIDs)
	}
	el, _ := s.Element("a")
	if el.Props["left"] != "40px" || el.Props["top"] != "30px" {
		t.Fatalf("drag moved a to %v,%v", el.Props["left"], el.Props["top"])
	}
	if len(test.WidgetRenderer(c).Objects()) == 0 {
		t.Fatalf("canvas painted nothing")
	}
}

func TestEditorCanvasKeys(t *testing.T) {
	test.NewTempApp(t)
	s, _ := newStore(t)
	c := NewEditorCanvas(s, interact.DefaultConfig())
	defer c.Close()
	s.Select([]string{"a"})

	c.TypedKey(&fyne.KeyEvent{Name: fyne.KeyRight})
	if el, _ := s.Element("a"); el.Props["left"] != "11px" {
		t.Fatalf("nudge left = %v", el.Props["left"])
	}
	c.KeyDown(&fyne.KeyEvent{Name: desktop.KeyShiftLeft})
	c.TypedKey(&fyne.KeyEvent{Name: fyne.KeyRight})
	c.KeyUp(&fyne.KeyEvent{Name: desktop.KeyShiftLeft})
	if el, _ := s.Element("a"); el.Props["left"] != "21px" {
		t.Fatalf("large nudge left = %v", el.Props["left"])
	}
	c.TypedShortcut(&fyne.ShortcutSelectAll{})
	if sel := s.Selection(); len(sel.SelectedIDs) != 2 {
		t.Fatalf("select all = %v", sel.SelectedIDs)
	}
	c.TypedKey(&fyne.KeyEvent{Name: fyne.KeyEscape})
	if sel := s.Selection(); len(sel.SelectedIDs) != 0 {
		t.Fatalf("escape kept %v", sel.SelectedIDs)
	}
}

func TestLayerListTapAndDrag(t *testing.T) {
	test.NewTempApp(t)
	s, _ := newStore(t)
	l := NewLayerList(s, layers.DefaultConfig())
	defer l.Close()
	w := test.NewTempWindow(t, l)
	w.Resize(fyne.NewSize(240, 200))

	l.Tapped(&fyne.PointEvent{Position: fyne.NewPos(60, 30)})
	if sel := s.Selection(); !sel.Has("b") {
		t.Fatalf("tap selected %v", sel.SelectedIDs)
	}

	// Drag a (row 0) below b (row 1).
	l.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(60, 22)}, Dragged: fyne.NewDelta(0, 10)})
	l.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(60, 46)}, Dragged: fyne.NewDelta(0, 24)})
	l.DragEnd()
	doc := s.Snapshot()
	page, _ := doc.ActivePage()
	kids := doc.Elements[page.RootElementID].Children
	if len(kids) != 2 || kids[0] != "b" || kids[1] != "a" {
		t.Fatalf("children after drag = %v", kids)
	}
}
