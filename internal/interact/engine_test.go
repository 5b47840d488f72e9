/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package interact

import (
	"math"
	"sort"
	"testing"

	"pagecraft/internal/domain"
	"pagecraft/internal/scene"
	"pagecraft/internal/vector"
)

type fixture struct {
	s    *scene.Store
	e    *Engine
	root string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := scene.New(scene.NewDocument(1200, 800, "#fff", nil), scene.DefaultLimits())
	doc := s.Snapshot()
	page, ok := doc.ActivePage()
	if !ok {
		t.Fatalf("no active page")
	}
	return &fixture{s: s, e: New(s, DefaultConfig(), nil), root: page.RootElementID}
}

func (f *fixture) box(t *testing.T, parent string, x, y, w, h float64) string {
	t.Helper()
	if parent == "" {
		parent = f.root
	}
	id, err := f.s.AddElement(scene.AddPayload{Type: domain.TypeBox, ParentID: parent, Props: domain.Props{
		"position": "absolute",
		"left":     domain.FormatPx(x),
		"top":      domain.FormatPx(y),
		"width":    domain.FormatPx(w),
		"height":   domain.FormatPx(h),
	}})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	return id
}

func (f *fixture) rect(t *testing.T, id string) vector.Rect {
	t.Helper()
	el, ok := f.s.Element(id)
	if !ok {
		t.Fatalf("element %s missing", id)
	}
	return vector.R(el.Props.Px("left", 0), el.Props.Px("top", 0), el.Props.Px("width", 0), el.Props.Px("height", 0))
}

func (f *fixture) drag(from, to vector.Pt, m Modifiers) {
	f.e.PointerDown(PointerEvent{Pos: from, Button: MouseButtonLeft, Modifiers: m})
	f.e.PointerMove(PointerEvent{Pos: to, Button: MouseButtonLeft, Modifiers: m})
	f.e.PointerUp(PointerEvent{Pos: to, Button: MouseButtonLeft, Modifiers: m})
}

func pt(x, y float64) vector.Pt { return vector.Pt{X: x, Y: y} }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func TestClickBelowThresholdDoesNotMove(t *testing.T) {
	f := newFixture(t)
	a := f.box(t, "", 100, 100, 50, 50)
	f.drag(pt(120, 120), pt(122, 120), 0)
	if r := f.rect(t, a); r.X != 100 || r.Y != 100 {
		t.Fatalf("moved below threshold: %+v", r)
	}
	if sel := f.s.Selection().SelectedIDs; len(sel) != 1 || sel[0] != a {
		t.Fatalf("selection = %v", sel)
	}
	if f.e.State() != StateIdle {
		t.Fatalf("state = %v", f.e.State())
	}
}

func TestDragMovesSelectionInDocumentUnits(t *testing.T) {
	f := newFixture(t)
	a := f.box(t, "", 100, 100, 50, 50)
	b := f.box(t, "", 300, 100, 50, 50)
	f.s.Select([]string{a, b})
	f.s.SetZoom(2)
	f.drag(pt(250, 250), pt(270, 290), 0)
	if r := f.rect(t, a); !near(r.X, 110) || !near(r.Y, 120) {
		t.Fatalf("a = %+v", r)
	}
	if r := f.rect(t, b); !near(r.X, 310) || !near(r.Y, 120) {
		t.Fatalf("b = %+v", r)
	}
}

func TestShiftLocksDominantAxis(t *testing.T) {
	f := newFixture(t)
	a := f.box(t, "", 100, 100, 50, 50)
	f.drag(pt(120, 120), pt(160, 130), ModShift)
	if r := f.rect(t, a); !near(r.X, 140) || !near(r.Y, 100) {
		t.Fatalf("a = %+v", r)
	}
}

func TestClickNarrowsUnlessJustSelected(t *testing.T) {
	f := newFixture(t)
	a := f.box(t, "", 100, 100, 50, 50)
	b := f.box(t, "", 300, 100, 50, 50)
	c := f.box(t, "", 500, 100, 50, 50)

	f.s.Select([]string{a, b})
	f.drag(pt(120, 120), pt(120, 120), 0)
	if sel := f.s.Selection().SelectedIDs; len(sel) != 1 || sel[0] != a {
		t.Fatalf("click on selected member should narrow, got %v", sel)
	}

	f.s.Select([]string{a, b})
	f.drag(pt(520, 120), pt(520, 120), 0)
	if sel := f.s.Selection().SelectedIDs; len(sel) != 1 || sel[0] != c {
		t.Fatalf("click on unselected element: %v", sel)
	}

	f.s.Select([]string{a})
	f.drag(pt(320, 120), pt(320, 120), ModShift)
	if got := sorted(f.s.Selection().SelectedIDs); len(got) != 2 {
		t.Fatalf("shift click should extend, got %v", got)
	}
}

func TestHitTestSkipsLockedAndHidden(t *testing.T) {
	f := newFixture(t)
	under := f.box(t, "", 100, 100, 100, 100)
	locked := f.box(t, "", 100, 100, 100, 100)
	f.s.ToggleLock(locked)
	f.drag(pt(150, 150), pt(150, 150), 0)
	if sel := f.s.Selection().SelectedIDs; len(sel) != 1 || sel[0] != under {
		t.Fatalf("selection = %v", sel)
	}
}

func TestAltDragClonesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	a := f.box(t, "", 100, 100, 50, 50)
	b := f.box(t, "", 300, 100, 50, 50)
	f.s.Select([]string{a, b})

	count := func() int {
		doc := f.s.Snapshot()
		return len(doc.Elements[f.root].Children)
	}

	f.e.PointerDown(PointerEvent{Pos: pt(120, 120), Button: MouseButtonLeft})
	f.e.PointerMove(PointerEvent{Pos: pt(140, 130), Button: MouseButtonLeft, Modifiers: ModAlt})
	if count() != 4 {
		t.Fatalf("children after alt = %d", count())
	}
	for i := 0; i < 3; i++ {
		f.e.ModifiersChanged(0)
		if count() != 2 {
			t.Fatalf("round %d: children without alt = %d", i, count())
		}
		if r := f.rect(t, a); !near(r.X, 120) {
			t.Fatalf("round %d: original should follow the pointer, got %+v", i, r)
		}
		f.e.ModifiersChanged(ModAlt)
		if count() != 4 {
			t.Fatalf("round %d: children with alt = %d", i, count())
		}
	}
	f.e.PointerMove(PointerEvent{Pos: pt(150, 140), Button: MouseButtonLeft, Modifiers: ModAlt})
	f.e.PointerUp(PointerEvent{Pos: pt(150, 140), Button: MouseButtonLeft, Modifiers: ModAlt})

	if r := f.rect(t, a); r.X != 100 || r.Y != 100 {
		t.Fatalf("original moved during clone drag: %+v", r)
	}
	sel := f.s.Selection().SelectedIDs
	if len(sel) != 2 || sel[0] == a || sel[1] == b {
		t.Fatalf("clones not selected: %v", sel)
	}
	if r := f.rect(t, sel[0]); !near(r.X, 130) || !near(r.Y, 120) {
		t.Fatalf("clone of a = %+v", r)
	}
	if err := f.s.CheckTree(); err != nil {
		t.Fatalf("tree: %v", err)
	}
}

func TestResizeKeepsAnchorFixed(t *testing.T) {
	cases := []struct {
		name      string
		anchorX   float64
		from, to  vector.Pt
		wantLeft  float64
		wantWidth float64
	}{
		{"left anchor", 0, pt(200, 125), pt(300, 125), 100, 200},
		{"right anchor", 1, pt(100, 125), pt(0, 125), 0, 200},
		{"center anchor", 0.5, pt(200, 125), pt(250, 125), 50, 200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			a := f.box(t, "", 100, 100, 100, 50)
			f.s.Select([]string{a})
			f.e.SetAnchor(tc.anchorX, 0.5)
			if h := f.e.HandleAt(tc.from); h != HandleE && h != HandleW {
				t.Fatalf("handle = %v", h)
			}
			f.drag(tc.from, tc.to, 0)
			r := f.rect(t, a)
			if !near(r.X, tc.wantLeft) || !near(r.W, tc.wantWidth) || !near(r.H, 50) || !near(r.Y, 100) {
				t.Fatalf("rect = %+v", r)
			}
		})
	}
}

func TestResizeShiftKeepsAspect(t *testing.T) {
	f := newFixture(t)
	a := f.box(t, "", 100, 100, 100, 50)
	f.s.Select([]string{a})
	f.e.SetAnchor(0, 0.5)
	f.drag(pt(200, 125), pt(300, 125), ModShift)
	r := f.rect(t, a)
	if !near(r.W, 200) || !near(r.H, 100) || !near(r.X, 100) || !near(r.Y, 75) {
		t.Fatalf("rect = %+v", r)
	}
}

func TestResizeFloorAndChildOffsets(t *testing.T) {
	f := newFixture(t)
	a := f.box(t, "", 100, 100, 100, 50)
	b := f.box(t, "", 300, 100, 100, 50)
	f.s.Select([]string{a, b})
	f.e.SetAnchor(0, 0)
	// bounds are 100..400; the SE grip sits at (400,150)
	f.drag(pt(400, 150), pt(700, 200), 0)
	if r := f.rect(t, b); !near(r.X, 500) || !near(r.W, 200) || !near(r.H, 100) {
		t.Fatalf("b = %+v", r)
	}

	f.drag(pt(700, 200), pt(100, 100), 0)
	if r := f.rect(t, a); !near(r.W, 4) || !near(r.H, 4) {
		t.Fatalf("floor not applied: %+v", r)
	}
}

func TestResizeScalesTextFont(t *testing.T) {
	f := newFixture(t)
	id, err := f.s.AddElement(scene.AddPayload{Type: domain.TypeText, ParentID: f.root, Props: domain.Props{
		"left": "0px", "top": "0px", "width": "100px", "height": "20px", "fontSize": "10px", "text": "hi",
	}})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	f.s.Select([]string{id})
	f.e.SetAnchor(0, 0)
	f.drag(pt(100, 20), pt(200, 40), 0)
	el, _ := f.s.Element(id)
	if fs := el.Props.Px("fontSize", 0); !near(fs, 20) {
		t.Fatalf("fontSize = %v", fs)
	}
}

func TestSetAnchorSnaps(t *testing.T) {
	f := newFixture(t)
	f.e.SetAnchor(0.97, 0.52)
	if a := f.e.Anchor(); a.X != 1 || a.Y != 0.5 {
		t.Fatalf("anchor = %+v", a)
	}
	f.e.SetAnchor(-2, 0.3)
	if a := f.e.Anchor(); a.X != 0 || a.Y != 0.3 {
		t.Fatalf("anchor = %+v", a)
	}
}

func TestMarqueeSelectsEnclosedSiblings(t *testing.T) {
	f := newFixture(t)
	a := f.box(t, "", 10, 10, 20, 20)
	b := f.box(t, "", 50, 10, 20, 20)
	f.box(t, "", 300, 300, 20, 20)
	f.drag(pt(5, 5), pt(100, 50), 0)
	got := sorted(f.s.Selection().SelectedIDs)
	want := sorted([]string{a, b})
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("selection = %v, want %v", got, want)
	}
}

func TestMarqueeInsideContainerSkipsDeeperElements(t *testing.T) {
	f := newFixture(t)
	c := f.box(t, "", 100, 100, 400, 300)
	a := f.box(t, c, 10, 10, 20, 20)
	b := f.box(t, c, 50, 10, 20, 20)
	side := f.box(t, c, 200, 150, 150, 120)
	nested := f.box(t, side, 10, 10, 20, 20)
	f.s.SetActiveContainer(c)

	f.drag(pt(105, 105), pt(200, 140), 0)
	got := sorted(f.s.Selection().SelectedIDs)
	want := sorted([]string{a, b})
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("selection = %v, want %v", got, want)
	}
	for _, id := range got {
		if id == side || id == nested || id == c {
			t.Fatalf("excluded element %s selected", id)
		}
	}
}

func TestTinyMarqueeClearsSelection(t *testing.T) {
	f := newFixture(t)
	a := f.box(t, "", 10, 10, 20, 20)
	f.s.Select([]string{a})
	f.drag(pt(500, 500), pt(501, 501), 0)
	if sel := f.s.Selection().SelectedIDs; len(sel) != 0 {
		t.Fatalf("selection = %v", sel)
	}
}

func TestPanWithSpace(t *testing.T) {
	f := newFixture(t)
	f.e.SetSpaceHeld(true)
	f.drag(pt(10, 10), pt(40, 30), 0)
	if v := f.s.Viewport(); v.ScrollX != 30 || v.ScrollY != 20 {
		t.Fatalf("viewport = %+v", v)
	}
}

func TestWheelZoomKeepsPivot(t *testing.T) {
	f := newFixture(t)
	f.s.SetScroll(15, -40)
	pivot := pt(200, 100)
	before := f.s.Viewport().ToDoc(pivot)
	f.e.Wheel(WheelEvent{Pos: pivot, DeltaY: -100, Modifiers: ModCtrl})
	v := f.s.Viewport()
	if v.Zoom <= 1 {
		t.Fatalf("zoom = %v", v.Zoom)
	}
	after := v.ToDoc(pivot)
	if !near(before.X, after.X) || !near(before.Y, after.Y) {
		t.Fatalf("pivot drifted: %+v -> %+v", before, after)
	}
	f.e.Wheel(WheelEvent{Pos: pivot, DeltaY: -1e6, Modifiers: ModCtrl})
	if z := f.s.Viewport().Zoom; z != f.s.Limits().MaxZoom {
		t.Fatalf("zoom not clamped: %v", z)
	}
}

func TestCaptureReleasedOnUpAndClose(t *testing.T) {
	s := scene.New(scene.NewDocument(800, 600, "", nil), scene.DefaultLimits())
	held := 0
	e := New(s, DefaultConfig(), CaptureFunc(func() func() {
		held++
		return func() { held-- }
	}))
	e.PointerDown(PointerEvent{Pos: pt(10, 10), Button: MouseButtonLeft})
	if held != 1 {
		t.Fatalf("capture not acquired")
	}
	e.PointerUp(PointerEvent{Pos: pt(10, 10), Button: MouseButtonLeft})
	if held != 0 {
		t.Fatalf("capture not released on pointer up")
	}
	e.PointerDown(PointerEvent{Pos: pt(10, 10), Button: MouseButtonLeft})
	e.Close()
	if held != 0 || e.State() != StateIdle {
		t.Fatalf("close left held=%d state=%v", held, e.State())
	}
	e.PointerMove(PointerEvent{Pos: pt(50, 50), Button: MouseButtonLeft})
	if e.Overlay().State != StateIdle {
		t.Fatalf("move after close revived the gesture")
	}
}

func TestEscapeCancelsDrag(t *testing.T) {
	f := newFixture(t)
	a := f.box(t, "", 100, 100, 50, 50)
	f.e.PointerDown(PointerEvent{Pos: pt(120, 120), Button: MouseButtonLeft})
	f.e.PointerMove(PointerEvent{Pos: pt(200, 200), Button: MouseButtonLeft, Modifiers: ModAlt})
	if !f.e.KeyDown("Escape", 0) {
		t.Fatalf("escape not consumed")
	}
	if r := f.rect(t, a); r.X != 100 || r.Y != 100 {
		t.Fatalf("a = %+v", r)
	}
	doc := f.s.Snapshot()
	if n := len(doc.Elements[f.root].Children); n != 1 {
		t.Fatalf("clone survived cancel: %d children", n)
	}
}

func TestDoubleClickEntersContainer(t *testing.T) {
	f := newFixture(t)
	outer := f.box(t, "", 100, 100, 200, 200)
	inner := f.box(t, outer, 10, 10, 50, 50)
	f.e.DoubleClick(pt(150, 150))
	if got := f.s.Selection().ActiveContainerID; got != outer {
		t.Fatalf("active container = %q", got)
	}
	f.drag(pt(120, 120), pt(120, 120), 0)
	if sel := f.s.Selection().SelectedIDs; len(sel) != 1 || sel[0] != inner {
		t.Fatalf("click inside container selected %v", sel)
	}
	f.e.DoubleClick(pt(250, 250))
	if got := f.s.Selection().ActiveContainerID; got != "" {
		t.Fatalf("did not exit container: %q", got)
	}
}

func TestKeyboardNudgeAndDuplicate(t *testing.T) {
	f := newFixture(t)
	a := f.box(t, "", 100, 100, 50, 50)
	f.s.Select([]string{a})
	f.e.KeyDown("Right", ModShift)
	f.e.KeyDown("Up", 0)
	if r := f.rect(t, a); r.X != 110 || r.Y != 99 {
		t.Fatalf("a = %+v", r)
	}
	f.e.KeyDown("D", ModCtrl)
	sel := f.s.Selection().SelectedIDs
	if len(sel) != 1 || sel[0] == a {
		t.Fatalf("duplicate selection = %v", sel)
	}
	if r := f.rect(t, sel[0]); r.X != 120 || r.Y != 109 {
		t.Fatalf("duplicate at %+v", r)
	}
}

func TestOverlayReusesLayoutUntilStoreChanges(t *testing.T) {
	f := newFixture(t)
	a := f.box(t, "", 100, 100, 50, 50)
	f.s.Select([]string{a})
	first, _ := f.e.snapshot()
	o := f.e.Overlay()
	second, _ := f.e.snapshot()
	if first.model != second.model {
		t.Fatalf("layout rebuilt without a store change")
	}
	if o.Bounds.X != 100 || o.Bounds.W != 50 {
		t.Fatalf("bounds = %+v", o.Bounds)
	}
	// Reassigning a copy's fields leaves the cache alone.
	second.scope = "elsewhere"
	if third, _ := f.e.snapshot(); third.scope == "elsewhere" {
		t.Fatalf("snapshot header shared between callers")
	}

	f.e.KeyDown("Right", ModShift)
	after, _ := f.e.snapshot()
	if after.model == first.model {
		t.Fatalf("layout kept after the store changed")
	}
	if o := f.e.Overlay(); o.Bounds.X != 110 {
		t.Fatalf("bounds after nudge = %+v", o.Bounds)
	}
}
