/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"fmt"
	"log/slog"
	"sort"

	"pagecraft/internal/domain"
	"pagecraft/internal/layout"
	"pagecraft/internal/vector"
)

// Position is where a reordered element lands relative to its target.
type Position string

const (
	Before Position = "before"
	After  Position = "after"
	Inside Position = "inside"
)

// ReorderRequest moves SourceID before/after TargetID or inside it as the
// last child.
type ReorderRequest struct {
	SourceID string   `json:"sourceId"`
	TargetID string   `json:"targetId"`
	Position Position `json:"position"`
}

// ReorderElement reparents and reorders one element. Moves that would make
// an element its own ancestor are rejected with ErrCycle; other impossible
// moves with ErrInvalidMove. The store is unchanged on error.
func (s *Store) ReorderElement(req ReorderRequest) error {
	err := s.do(ActReorder, req).Err
	if err != nil {
		s.log.Debug("reorder rejected", slog.String("source", req.SourceID), slog.String("target", req.TargetID),
			slog.String("position", string(req.Position)), slog.Any("err", err))
	}
	return err
}

func reorderLocked(d *domain.Document, req ReorderRequest) error {
	src, ok := d.Elements[req.SourceID]
	if !ok {
		return fmt.Errorf("source %s: %w", req.SourceID, ErrNotFound)
	}
	target, ok := d.Elements[req.TargetID]
	if !ok {
		return fmt.Errorf("target %s: %w", req.TargetID, ErrNotFound)
	}
	if req.SourceID == req.TargetID {
		return fmt.Errorf("source equals target: %w", ErrInvalidMove)
	}
	if d.IsRoot(req.SourceID) {
		return fmt.Errorf("page root cannot move: %w", ErrInvalidMove)
	}

	var newParentID string
	switch req.Position {
	case Inside:
		if !target.Type.IsContainer() {
			return fmt.Errorf("%s is not a container: %w", req.TargetID, ErrInvalidMove)
		}
		newParentID = target.ElementID
	case Before, After:
		if d.IsRoot(req.TargetID) {
			return fmt.Errorf("cannot place beside a page root: %w", ErrInvalidMove)
		}
		newParentID = target.ParentID
	default:
		return fmt.Errorf("unknown position %q: %w", req.Position, ErrInvalidMove)
	}
	newParent, ok := d.Elements[newParentID]
	if !ok {
		return fmt.Errorf("parent %s: %w", newParentID, ErrNotFound)
	}
	if newParentID == req.SourceID || d.IsAncestor(req.SourceID, newParentID) {
		return ErrCycle
	}

	if old, ok := d.Elements[src.ParentID]; ok {
		old.Children = removeID(old.Children, src.ElementID)
	}
	idx := len(newParent.Children)
	switch req.Position {
	case Before:
		idx = indexOf(newParent.Children, target.ElementID)
	case After:
		idx = indexOf(newParent.Children, target.ElementID) + 1
	}
	newParent.Children = insertAt(newParent.Children, idx, src.ElementID)
	src.ParentID = newParent.ElementID
	return nil
}

// GroupRequest wraps MemberIDs in a new Box. Group may carry an id and extra
// props for the new box; its frame is always computed from the members.
type GroupRequest struct {
	Group     AddPayload `json:"group"`
	MemberIDs []string   `json:"memberIds"`
}

// GroupElements creates a Box whose frame is the union of the members'
// frames, inserted where the first member was. Members keep their visual
// position: their coordinates are translated into the group's space.
// Members with a parent other than the first member's are ignored.
func (s *Store) GroupElements(req GroupRequest) (string, error) {
	if req.Group.ElementID == "" {
		req.Group.ElementID = domain.NewID()
	}
	res := s.do(ActGroup, req)
	if res.Err != nil {
		return "", res.Err
	}
	return res.IDs[0], nil
}

func (s *Store) groupLocked(d *domain.Document, req GroupRequest) (string, error) {
	var parentID string
	var members []string
	for _, id := range req.MemberIDs {
		el, ok := d.Elements[id]
		if !ok || d.IsRoot(id) {
			continue
		}
		if parentID == "" {
			parentID = el.ParentID
		}
		if el.ParentID != parentID {
			s.log.Debug("group: skipping member with different parent", slog.String("id", id))
			continue
		}
		if indexOf(members, id) < 0 {
			members = append(members, id)
		}
	}
	parent, ok := d.Elements[parentID]
	if !ok || len(members) == 0 {
		return "", fmt.Errorf("group: no members: %w", ErrInvalidMove)
	}
	sort.SliceStable(members, func(i, j int) bool {
		return indexOf(parent.Children, members[i]) < indexOf(parent.Children, members[j])
	})

	frames := make([]vector.Rect, 0, len(members))
	for _, id := range members {
		frames = append(frames, layout.LocalRect(d.Elements[id], d.Canvas.Width))
	}
	u, _ := vector.UnionAll(frames)

	gp := req.Group
	gp.Type = domain.TypeBox
	if gp.ElementID == "" {
		gp.ElementID = domain.NewID()
	}
	if _, exists := d.Elements[gp.ElementID]; exists {
		return "", fmt.Errorf("group %s: %w", gp.ElementID, ErrDuplicateID)
	}
	props := domain.Props{"position": "absolute"}
	props.Merge(gp.Props)
	props["left"] = domain.FormatPx(u.X)
	props["top"] = domain.FormatPx(u.Y)
	props["width"] = domain.FormatPx(u.W)
	props["height"] = domain.FormatPx(u.H)

	group := &domain.Element{
		ElementID:  gp.ElementID,
		ID:         gp.ID,
		Type:       domain.TypeBox,
		Props:      props,
		Children:   append([]string(nil), members...),
		ParentID:   parent.ElementID,
		ClassName:  gp.ClassName,
		IsVisible:  !gp.Hidden,
		IsExpanded: true,
	}
	at := indexOf(parent.Children, members[0])
	for _, id := range members {
		parent.Children = removeID(parent.Children, id)
	}
	parent.Children = insertAt(parent.Children, at, group.ElementID)
	d.Elements[group.ElementID] = group

	for i, id := range members {
		m := d.Elements[id]
		m.ParentID = group.ElementID
		if m.Props == nil {
			m.Props = domain.Props{}
		}
		m.Props["left"] = domain.FormatPx(frames[i].X - u.X)
		m.Props["top"] = domain.FormatPx(frames[i].Y - u.Y)
	}
	return group.ElementID, nil
}

// UngroupElements dissolves each listed Box: its children move to the box's
// parent at the box's index, offset by the box's left/top so they do not
// move visually. Returns the freed children, which become the selection.
func (s *Store) UngroupElements(ids []string) []string {
	return s.do(ActUngroup, IDs{IDs: ids}).IDs
}

func ungroupLocked(d *domain.Document, sel *domain.Selection, ids []string) []string {
	var freed []string
	for _, id := range ids {
		g, ok := d.Elements[id]
		if !ok || !g.Type.IsContainer() || d.IsRoot(id) {
			continue
		}
		parent, ok := d.Elements[g.ParentID]
		if !ok {
			continue
		}
		gx := g.Props.Px("left", 0)
		gy := g.Props.Px("top", 0)
		at := indexOf(parent.Children, id)
		parent.Children = removeID(parent.Children, id)
		var moved []string
		for _, cid := range g.Children {
			c, ok := d.Elements[cid]
			if !ok {
				continue
			}
			if c.Props == nil {
				c.Props = domain.Props{}
			}
			c.Props["left"] = domain.FormatPx(gx + c.Props.Px("left", 0))
			c.Props["top"] = domain.FormatPx(gy + c.Props.Px("top", 0))
			c.ParentID = parent.ElementID
			moved = append(moved, cid)
		}
		parent.Children = insertAt(parent.Children, at, moved...)
		delete(d.Elements, id)
		sel.SelectedIDs = removeID(sel.SelectedIDs, id)
		if sel.ActiveContainerID == id {
			sel.ActiveContainerID = ""
		}
		freed = append(freed, moved...)
	}
	if len(freed) > 0 {
		sel.SelectedIDs = append([]string(nil), freed...)
	}
	return freed
}

// CloneSubtrees deep-copies each listed element with fresh ids and appends
// the copy to the original's parent. Ids whose ancestor is also listed are
// copied as part of that ancestor. Returns original root id -> clone id.
func (s *Store) CloneSubtrees(ids []string) (map[string]string, error) {
	s.mu.RLock()
	roots := topLevel(&s.doc, ids)
	mapping, batch := clonePayloads(&s.doc, roots, func(el *domain.Element) string { return el.ParentID }, 0)
	s.mu.RUnlock()
	if len(batch) == 0 {
		return mapping, nil
	}
	if err := s.do(ActAddElements, AddBatch{Elements: batch}).Err; err != nil {
		return nil, err
	}
	return mapping, nil
}

// topLevel filters ids to those without a listed ancestor, skipping roots.
func topLevel(d *domain.Document, ids []string) []string {
	set := map[string]bool{}
	for _, id := range ids {
		set[id] = true
	}
	var out []string
	for _, id := range ids {
		if _, ok := d.Elements[id]; !ok || d.IsRoot(id) {
			continue
		}
		nested := false
		for other := range set {
			if other != id && d.IsAncestor(other, id) {
				nested = true
				break
			}
		}
		if !nested && indexOf(out, id) < 0 {
			out = append(out, id)
		}
	}
	return out
}

// clonePayloads builds pre-order add payloads copying the subtrees of roots.
// parentOf picks the destination parent of each root; roots are shifted by
// offset on both axes.
func clonePayloads(d *domain.Document, roots []string, parentOf func(*domain.Element) string, offset float64) (map[string]string, []AddPayload) {
	mapping := map[string]string{}
	var batch []AddPayload
	var visit func(id, newParent string, root bool)
	visit = func(id, newParent string, root bool) {
		el, ok := d.Elements[id]
		if !ok {
			return
		}
		p := PayloadFrom(*el)
		p.ElementID = domain.NewID()
		p.ParentID = newParent
		if p.ID != "" {
			// user-facing ids must stay unique
			p.ID = ""
		}
		if root && offset != 0 {
			if p.Props == nil {
				p.Props = domain.Props{}
			}
			p.Props["left"] = domain.FormatPx(el.Props.Px("left", 0) + offset)
			p.Props["top"] = domain.FormatPx(el.Props.Px("top", 0) + offset)
		}
		if root {
			mapping[id] = p.ElementID
		}
		batch = append(batch, p)
		for _, c := range el.Children {
			visit(c, p.ElementID, false)
		}
	}
	for _, r := range roots {
		if el, ok := d.Elements[r]; ok {
			visit(r, parentOf(el), true)
		}
	}
	return mapping, batch
}
