/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"pagecraft/internal/domain"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	s := New(NewDocument(1920, 1080, "#fff", nil), DefaultLimits())
	var root string
	s.View(func(d *domain.Document, _ domain.Selection) { root = activeRoot(d) })
	if root == "" {
		t.Fatalf("new document has no root")
	}
	return s, root
}

func mustAdd(t *testing.T, s *Store, p AddPayload) string {
	t.Helper()
	id, err := s.AddElement(p)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	return id
}

func box(parent string, left, top, w, h float64) AddPayload {
	return AddPayload{Type: domain.TypeBox, ParentID: parent, Props: domain.Props{
		"position": "absolute",
		"left":     domain.FormatPx(left),
		"top":      domain.FormatPx(top),
		"width":    domain.FormatPx(w),
		"height":   domain.FormatPx(h),
	}}
}

func TestAddFallsBackToRoot(t *testing.T) {
	s, root := newStore(t)
	id := mustAdd(t, s, AddPayload{Type: domain.TypeText, ParentID: "nope"})
	el, _ := s.Element(id)
	if el.ParentID != root {
		t.Fatalf("parent = %q, want root %q", el.ParentID, root)
	}
	if el.Props["text"] != "Text" {
		t.Fatalf("default props not applied: %v", el.Props)
	}
	// a text element cannot contain children
	child := mustAdd(t, s, AddPayload{Type: domain.TypeBox, ParentID: id})
	c, _ := s.Element(child)
	if c.ParentID != root {
		t.Fatalf("child of text landed under %q", c.ParentID)
	}
	if err := s.CheckTree(); err != nil {
		t.Fatalf("tree: %v", err)
	}
}

func TestAddElementsBatchIsAtomic(t *testing.T) {
	s, root := newStore(t)
	var calls int
	s.Subscribe(func(uint64) { calls++ })
	before := s.Version()
	ids, err := s.AddElements([]AddPayload{
		{ElementID: "a", Type: domain.TypeBox, ParentID: root},
		{ElementID: "b", Type: domain.TypeText, ParentID: "a"},
	})
	if err != nil {
		t.Fatalf("add batch: %v", err)
	}
	if len(ids) != 2 || s.Version() != before+1 || calls != 1 {
		t.Fatalf("ids=%v version=%d->%d calls=%d", ids, before, s.Version(), calls)
	}
	b, _ := s.Element("b")
	if b.ParentID != "a" {
		t.Fatalf("b parent = %q", b.ParentID)
	}
	if _, err := s.AddElements([]AddPayload{{ElementID: "a", Type: domain.TypeBox}}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate id err = %v", err)
	}
}

func TestDeleteDoesNotCascade(t *testing.T) {
	s, root := newStore(t)
	parent := mustAdd(t, s, box(root, 0, 0, 100, 100))
	child := mustAdd(t, s, box(parent, 0, 0, 10, 10))
	s.Select([]string{parent})
	s.DeleteElements([]string{parent})
	if _, ok := s.Element(parent); ok {
		t.Fatalf("parent still present")
	}
	if _, ok := s.Element(child); !ok {
		t.Fatalf("child removed by non-cascading delete")
	}
	if len(s.Selection().SelectedIDs) != 0 {
		t.Fatalf("deleted element still selected")
	}
	s.DeleteElements([]string{root})
	if _, ok := s.Element(root); !ok {
		t.Fatalf("page root deleted")
	}
	deep := s.DeepSelection([]string{root})
	if len(deep) != 1 || deep[0] != root {
		t.Fatalf("deep selection after orphaning = %v", deep)
	}
}

func TestUpdatePropsTombstones(t *testing.T) {
	s, root := newStore(t)
	id := mustAdd(t, s, box(root, 0, 0, 10, 10))
	s.UpdateElementProps(id, map[string]any{"color": "red", "width": nil, ":hover": map[string]any{"color": "blue"}})
	el, _ := s.Element(id)
	if el.Props["color"] != "red" {
		t.Fatalf("color not merged: %v", el.Props)
	}
	if _, ok := el.Props["width"]; ok {
		t.Fatalf("width not deleted")
	}
	s.UpdateElementProps(id, map[string]any{":hover": map[string]any{"color": nil}})
	el, _ = s.Element(id)
	if _, ok := el.Props[":hover"]; ok {
		t.Fatalf("emptied variant kept: %v", el.Props)
	}
	v := s.Version()
	s.UpdateElementProps("missing", map[string]any{"color": "red"})
	if s.Version() != v {
		t.Fatalf("missing id bumped version")
	}
}

func TestRenameVariantPreservesValues(t *testing.T) {
	s, root := newStore(t)
	b := mustAdd(t, s, box(root, 0, 0, 200, 200))
	txt := mustAdd(t, s, AddPayload{Type: domain.TypeText, ParentID: root})
	if _, err := s.GroupElements(GroupRequest{MemberIDs: []string{b, txt}}); err != nil {
		t.Fatalf("group: %v", err)
	}
	s.UpdateElementProps(txt, map[string]any{".foo": map[string]any{"color": "red", "fontWeight": "bold"}})
	if !s.RenameVariant(txt, nil, ".foo", ".bar") {
		t.Fatalf("rename reported no change")
	}
	el, _ := s.Element(txt)
	if _, ok := el.Props[".foo"]; ok {
		t.Fatalf(".foo still present")
	}
	bar, ok := domain.AsMap(el.Props[".bar"])
	if !ok || bar["color"] != "red" || bar["fontWeight"] != "bold" {
		t.Fatalf(".bar = %v", el.Props[".bar"])
	}
	if s.RenameVariant(txt, nil, ".bar", "  ") {
		t.Fatalf("blank key accepted")
	}
}

func TestSetVariantPropsNested(t *testing.T) {
	s, root := newStore(t)
	id := mustAdd(t, s, box(root, 0, 0, 10, 10))
	mq := "@media (max-width: 480px)"
	s.SetVariantProps(id, []string{mq, ":hover"}, map[string]any{"color": "blue"})
	el, _ := s.Element(id)
	got, ok := el.Props.At([]string{mq, ":hover"})
	if !ok || got["color"] != "blue" {
		t.Fatalf("nested variant = %v", el.Props)
	}
	s.SetVariantProps(id, []string{mq, ":hover"}, nil)
	el, _ = s.Element(id)
	if _, ok := el.Props.At([]string{mq, ":hover"}); ok {
		t.Fatalf("empty props did not remove block")
	}
}

func TestReorderRejectsCycles(t *testing.T) {
	s, root := newStore(t)
	a := mustAdd(t, s, box(root, 0, 0, 100, 100))
	b := mustAdd(t, s, box(a, 0, 0, 50, 50))
	c := mustAdd(t, s, box(b, 0, 0, 10, 10))

	if err := s.ReorderElement(ReorderRequest{SourceID: a, TargetID: c, Position: Inside}); !errors.Is(err, ErrCycle) {
		t.Fatalf("inside descendant err = %v", err)
	}
	if err := s.ReorderElement(ReorderRequest{SourceID: a, TargetID: c, Position: After}); !errors.Is(err, ErrCycle) {
		t.Fatalf("after descendant err = %v", err)
	}
	if err := s.ReorderElement(ReorderRequest{SourceID: a, TargetID: a, Position: Inside}); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("self err = %v", err)
	}
	if err := s.ReorderElement(ReorderRequest{SourceID: a, TargetID: root, Position: Before}); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("beside root err = %v", err)
	}
	if err := s.ReorderElement(ReorderRequest{SourceID: c, TargetID: a, Position: Before}); err != nil {
		t.Fatalf("valid move: %v", err)
	}
	r, _ := s.Element(root)
	if len(r.Children) != 2 || r.Children[0] != c || r.Children[1] != a {
		t.Fatalf("root children = %v", r.Children)
	}
	if err := s.CheckTree(); err != nil {
		t.Fatalf("tree: %v", err)
	}
}

func TestGroupUngroupPreservesPositions(t *testing.T) {
	s, root := newStore(t)
	a := mustAdd(t, s, box(root, 100, 50, 20, 20))
	b := mustAdd(t, s, box(root, 150, 80, 30, 10))
	other := mustAdd(t, s, box(root, 0, 0, 5, 5))
	s.ReorderElement(ReorderRequest{SourceID: other, TargetID: a, Position: Before})

	g, err := s.GroupElements(GroupRequest{MemberIDs: []string{b, a}})
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	grp, _ := s.Element(g)
	if grp.Props["left"] != "100px" || grp.Props["top"] != "50px" || grp.Props["width"] != "80px" || grp.Props["height"] != "40px" {
		t.Fatalf("group frame = %v", grp.Props)
	}
	if len(grp.Children) != 2 || grp.Children[0] != a {
		t.Fatalf("group children = %v", grp.Children)
	}
	eb, _ := s.Element(b)
	if eb.Props["left"] != "50px" || eb.Props["top"] != "30px" {
		t.Fatalf("member local = %v,%v", eb.Props["left"], eb.Props["top"])
	}
	r, _ := s.Element(root)
	if r.Children[1] != g {
		t.Fatalf("group not at first member index: %v", r.Children)
	}

	freed := s.UngroupElements([]string{g})
	if len(freed) != 2 {
		t.Fatalf("freed = %v", freed)
	}
	eb, _ = s.Element(b)
	if eb.Props["left"] != "150px" || eb.Props["top"] != "80px" || eb.ParentID != root {
		t.Fatalf("ungrouped b = %v parent %s", eb.Props, eb.ParentID)
	}
	if _, ok := s.Element(g); ok {
		t.Fatalf("group survived ungroup")
	}
	if sel := s.Selection().SelectedIDs; len(sel) != 2 {
		t.Fatalf("selection after ungroup = %v", sel)
	}
	if err := s.CheckTree(); err != nil {
		t.Fatalf("tree: %v", err)
	}
}

func TestLockClearsSelection(t *testing.T) {
	s, root := newStore(t)
	id := mustAdd(t, s, box(root, 0, 0, 10, 10))
	s.Select([]string{id})
	s.ToggleLock(id)
	if s.Selection().Has(id) {
		t.Fatalf("locked element still selected")
	}
	s.Select([]string{id})
	if s.Selection().Has(id) {
		t.Fatalf("locked element selectable")
	}
}

func TestCopyPaste(t *testing.T) {
	s, root := newStore(t)
	parent := mustAdd(t, s, box(root, 10, 10, 100, 100))
	child := mustAdd(t, s, box(parent, 5, 5, 10, 10))
	s.UpdateElementProps(parent, map[string]any{"color": "red"})
	if n := s.Copy([]string{parent, child}); n != 2 {
		t.Fatalf("copied %d", n)
	}
	roots, err := s.Paste("")
	if err != nil || len(roots) != 1 {
		t.Fatalf("paste: %v %v", roots, err)
	}
	clone, _ := s.Element(roots[0])
	if clone.ElementID == parent || clone.Props["left"] != "20px" || clone.Props["color"] != "red" {
		t.Fatalf("clone = %+v", clone)
	}
	if len(clone.Children) != 1 || clone.Children[0] == child {
		t.Fatalf("clone children = %v", clone.Children)
	}
	cc, _ := s.Element(clone.Children[0])
	if cc.Props["left"] != "5px" {
		t.Fatalf("nested clone offset = %v", cc.Props["left"])
	}
	if sel := s.Selection().SelectedIDs; len(sel) != 1 || sel[0] != roots[0] {
		t.Fatalf("selection = %v", sel)
	}

	if n := s.Cut([]string{parent}); n != 2 {
		t.Fatalf("cut %d", n)
	}
	if _, ok := s.Element(child); ok {
		t.Fatalf("cut left a descendant behind")
	}
	if err := s.CheckTree(); err != nil {
		t.Fatalf("tree: %v", err)
	}
}

func TestPages(t *testing.T) {
	s, _ := newStore(t)
	first := s.Snapshot().ActivePageID
	p := s.AddPage("")
	if p.Name != "Page 2" || s.Snapshot().ActivePageID != p.PageID {
		t.Fatalf("added page = %+v", p)
	}
	mustAdd(t, s, AddPayload{Type: domain.TypeBox})
	if err := s.DeletePage(p.PageID); err != nil {
		t.Fatalf("delete page: %v", err)
	}
	doc := s.Snapshot()
	if doc.ActivePageID != first || len(doc.Elements) != 1 {
		t.Fatalf("after delete: active=%s elements=%d", doc.ActivePageID, len(doc.Elements))
	}
	if err := s.DeletePage(first); !errors.Is(err, ErrLastPage) {
		t.Fatalf("delete last page err = %v", err)
	}
}

func TestZoomClamped(t *testing.T) {
	s, _ := newStore(t)
	s.SetZoom(100)
	if z := s.Viewport().Zoom; z != 5 {
		t.Fatalf("zoom = %v", z)
	}
	s.SetZoom(0)
	if z := s.Viewport().Zoom; z != 0.1 {
		t.Fatalf("zoom = %v", z)
	}
}

func TestActionJSONReplaysOnReplica(t *testing.T) {
	s, _ := newStore(t)
	replica := New(s.Snapshot(), DefaultLimits())
	var sent [][]byte
	s.OnAction(func(a Action, _ uint64) {
		b, err := json.Marshal(a)
		if err != nil {
			t.Errorf("marshal %s: %v", a.Type, err)
			return
		}
		sent = append(sent, b)
	})

	_, root := newStoreRoot(s)
	a := mustAdd(t, s, box(root, 10, 10, 50, 50))
	b := mustAdd(t, s, box(root, 70, 10, 50, 50))
	g, _ := s.GroupElements(GroupRequest{MemberIDs: []string{a, b}})
	s.UpdateElementProps(a, map[string]any{"color": "red", "@media (max-width: 480px)": map[string]any{"color": "blue"}})
	s.Copy([]string{g})
	s.Paste("")
	s.ExitContainer()
	s.SetViewport(s.Viewport())
	s.AddPage("Two")

	for _, raw := range sent {
		var act Action
		if err := json.Unmarshal(raw, &act); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		act.Remote = true
		if res := replica.Dispatch(act); res.Err != nil {
			t.Fatalf("replay %s: %v", act.Type, res.Err)
		}
	}
	want, _ := json.Marshal(s.Snapshot())
	got, _ := json.Marshal(replica.Snapshot())
	if string(want) != string(got) {
		t.Fatalf("replica diverged\nwant %s\ngot  %s", want, got)
	}
}

func newStoreRoot(s *Store) (*Store, string) {
	var root string
	s.View(func(d *domain.Document, _ domain.Selection) { root = activeRoot(d) })
	return s, root
}

func TestRandomMovesStayAcyclic(t *testing.T) {
	s, root := newStore(t)
	rng := rand.New(rand.NewSource(7))
	ids := []string{}
	for i := 0; i < 12; i++ {
		parent := root
		if len(ids) > 0 && rng.Intn(2) == 0 {
			parent = ids[rng.Intn(len(ids))]
		}
		ids = append(ids, mustAdd(t, s, box(parent, float64(i*10), 0, 10, 10)))
	}
	positions := []Position{Before, After, Inside}
	for i := 0; i < 400; i++ {
		src := ids[rng.Intn(len(ids))]
		dst := ids[rng.Intn(len(ids))]
		switch rng.Intn(6) {
		case 0:
			g, err := s.GroupElements(GroupRequest{MemberIDs: []string{src, dst}})
			if err == nil {
				ids = append(ids, g)
			}
		case 1:
			s.UngroupElements([]string{src})
			var live []string
			for _, id := range ids {
				if _, ok := s.Element(id); ok {
					live = append(live, id)
				}
			}
			ids = live
		default:
			_ = s.ReorderElement(ReorderRequest{SourceID: src, TargetID: dst, Position: positions[rng.Intn(3)]})
		}
		if err := s.CheckTree(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if len(ids) == 0 {
			break
		}
	}
	doc := s.Snapshot()
	if n := len(s.DeepSelection([]string{root})); n != len(doc.Elements) {
		t.Fatalf("reachable %d of %d elements", n, len(doc.Elements))
	}
}
