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
	"strings"

	"pagecraft/internal/domain"
)

// AddPayload describes one element to insert. An empty ElementID gets a
// fresh uuid; nil Props get the type's defaults.
type AddPayload struct {
	ElementID    string                    `json:"elementId,omitempty"`
	Type         domain.ElementType        `json:"type"`
	ParentID     string                    `json:"parentId,omitempty"`
	Props        domain.Props              `json:"props,omitempty"`
	ID           string                    `json:"id,omitempty"`
	ClassName    string                    `json:"className,omitempty"`
	Scripts      []string                  `json:"scripts,omitempty"`
	ScriptValues map[string]map[string]any `json:"scriptValues,omitempty"`
	Hidden       bool                      `json:"hidden,omitempty"`
	Locked       bool                      `json:"locked,omitempty"`
	Collapsed    bool                      `json:"collapsed,omitempty"`
}

// PayloadFrom turns an existing element record into an add payload.
func PayloadFrom(el domain.Element) AddPayload {
	c := el.Clone()
	return AddPayload{
		ElementID:    c.ElementID,
		Type:         c.Type,
		ParentID:     c.ParentID,
		Props:        c.Props,
		ID:           c.ID,
		ClassName:    c.ClassName,
		Scripts:      c.Scripts,
		ScriptValues: c.ScriptValues,
		Hidden:       !c.IsVisible,
		Locked:       c.IsLocked,
		Collapsed:    !c.IsExpanded,
	}
}

// AddElement inserts one element as the last child of its parent. A missing
// or non-container parent falls back to the active page root.
func (s *Store) AddElement(p AddPayload) (string, error) {
	ids, err := s.AddElements([]AddPayload{p})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// AddElements inserts a batch atomically: one version bump, one
// notification. Payloads may name parents created earlier in the batch.
func (s *Store) AddElements(batch []AddPayload) ([]string, error) {
	batch = assignIDs(batch)
	res := s.do(ActAddElements, AddBatch{Elements: batch})
	return res.IDs, res.Err
}

// assignIDs copies batch, giving every payload without an id a fresh one.
func assignIDs(batch []AddPayload) []AddPayload {
	out := make([]AddPayload, len(batch))
	copy(out, batch)
	for i := range out {
		if out[i].ElementID == "" {
			out[i].ElementID = domain.NewID()
		}
	}
	return out
}

func (s *Store) addLocked(d *domain.Document, batch []AddPayload) ([]string, error) {
	seen := map[string]bool{}
	for i := range batch {
		if batch[i].ElementID == "" {
			batch[i].ElementID = domain.NewID()
		}
		id := batch[i].ElementID
		if _, exists := d.Elements[id]; exists || seen[id] {
			return nil, fmt.Errorf("add %s: %w", id, ErrDuplicateID)
		}
		if !batch[i].Type.Valid() {
			return nil, fmt.Errorf("add %s: unknown element type %q", id, batch[i].Type)
		}
		if _, inDoc := d.Elements[batch[i].ParentID]; !inDoc && !seen[batch[i].ParentID] {
			if _, ok := d.Elements[activeRoot(d)]; !ok {
				return nil, fmt.Errorf("add %s: no page root: %w", id, ErrNotFound)
			}
		}
		seen[id] = true
	}
	ids := make([]string, 0, len(batch))
	for _, p := range batch {
		el := &domain.Element{
			ElementID:    p.ElementID,
			ID:           strings.TrimSpace(p.ID),
			Type:         p.Type,
			Props:        p.Props.Clone(),
			Children:     []string{},
			Scripts:      append([]string(nil), p.Scripts...),
			ScriptValues: p.ScriptValues,
			ClassName:    p.ClassName,
			IsVisible:    !p.Hidden,
			IsLocked:     p.Locked,
			IsExpanded:   !p.Collapsed,
		}
		if el.Props == nil {
			el.Props = domain.DefaultProps(p.Type)
		}
		parent, ok := d.Elements[p.ParentID]
		if !ok || !parent.Type.IsContainer() {
			root := activeRoot(d)
			if p.ParentID != "" || root == "" {
				s.log.Warn("parent not found, falling back to page root",
					slog.String("id", p.ElementID), slog.String("parent", p.ParentID), slog.String("root", root))
			}
			parent, ok = d.Elements[root]
			if !ok {
				return ids, fmt.Errorf("add %s: no page root: %w", p.ElementID, ErrNotFound)
			}
		}
		el.ParentID = parent.ElementID
		parent.Children = append(parent.Children, el.ElementID)
		d.Elements[el.ElementID] = el
		ids = append(ids, el.ElementID)
	}
	return ids, nil
}

// DeleteElements removes exactly the listed elements. Descendants are not
// removed; use DeepSelection to expand first. Page roots are skipped.
func (s *Store) DeleteElements(ids []string) {
	s.do(ActDeleteElements, IDs{IDs: ids})
}

func (s *Store) deleteLocked(d *domain.Document, sel *domain.Selection, ids []string) bool {
	changed := false
	for _, id := range ids {
		el, ok := d.Elements[id]
		if !ok {
			continue
		}
		if d.IsRoot(id) {
			s.log.Warn("refusing to delete page root", slog.String("id", id))
			continue
		}
		if parent, ok := d.Elements[el.ParentID]; ok {
			parent.Children = removeID(parent.Children, id)
		}
		delete(d.Elements, id)
		sel.SelectedIDs = removeID(sel.SelectedIDs, id)
		if sel.ActiveContainerID == id {
			sel.ActiveContainerID = ""
		}
		changed = true
	}
	return changed
}

// DeepSelection expands ids with all their descendants in pre-order,
// without duplicates. Unknown ids are dropped.
func (s *Store) DeepSelection(ids []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepSelection(&s.doc, ids)
}

func deepSelection(d *domain.Document, ids []string) []string {
	seen := map[string]bool{}
	var out []string
	var visit func(string)
	visit = func(id string) {
		if seen[id] {
			return
		}
		el, ok := d.Elements[id]
		if !ok {
			return
		}
		seen[id] = true
		out = append(out, id)
		for _, c := range el.Children {
			visit(c)
		}
	}
	for _, id := range ids {
		visit(id)
	}
	return out
}

// UpdateElementProps merges partial into the element's props. nil values
// delete keys, nested maps merge into variant blocks.
func (s *Store) UpdateElementProps(id string, partial map[string]any) {
	s.do(ActUpdateProps, PropsUpdate{ID: id, Props: partial})
}

func (s *Store) updatePropsLocked(d *domain.Document, p PropsUpdate) bool {
	el, ok := d.Elements[p.ID]
	if !ok {
		s.log.Debug("update props: element missing", slog.String("id", p.ID))
		return false
	}
	if el.Props == nil {
		el.Props = domain.Props{}
	}
	el.Props.Merge(p.Props)
	return true
}

// SetVariantProps replaces the whole props container at path. An empty path
// swaps the element's entire props; an empty props map at a non-empty path
// removes that variant block.
func (s *Store) SetVariantProps(id string, path []string, props map[string]any) {
	s.do(ActSetVariantProps, VariantProps{ID: id, Path: path, Props: props})
}

func setVariantPropsLocked(d *domain.Document, p VariantProps) bool {
	el, ok := d.Elements[p.ID]
	if !ok {
		return false
	}
	if len(p.Path) == 0 {
		el.Props = domain.Props(p.Props).Clone()
		if el.Props == nil {
			el.Props = domain.Props{}
		}
		return true
	}
	for _, k := range p.Path {
		if strings.TrimSpace(k) == "" {
			return false
		}
	}
	if el.Props == nil {
		el.Props = domain.Props{}
	}
	container := map[string]any(el.Props)
	for _, k := range p.Path[:len(p.Path)-1] {
		next, ok := domain.AsMap(container[k])
		if !ok {
			next = map[string]any{}
			container[k] = next
		}
		container = next
	}
	last := p.Path[len(p.Path)-1]
	if len(p.Props) == 0 {
		delete(container, last)
	} else {
		container[last] = map[string]any(domain.Props(p.Props).Clone())
	}
	return true
}

// RenameVariant moves the block stored under oldKey at path to newKey,
// preserving all its declarations. Blank or clashing new keys are ignored.
func (s *Store) RenameVariant(id string, path []string, oldKey, newKey string) bool {
	return s.do(ActRenameVariant, VariantRename{ID: id, Path: path, OldKey: oldKey, NewKey: newKey}).Changed
}

func renameVariantLocked(d *domain.Document, p VariantRename) bool {
	newKey := strings.TrimSpace(p.NewKey)
	el, ok := d.Elements[p.ID]
	if !ok || newKey == "" || newKey == p.OldKey {
		return false
	}
	container, ok := el.Props.At(p.Path)
	if !ok {
		return false
	}
	block, ok := container[p.OldKey]
	if !ok {
		return false
	}
	if _, clash := container[newKey]; clash {
		return false
	}
	container[newKey] = block
	delete(container, p.OldKey)
	return true
}

// PositionUpdate sets an element's parent-relative left/top.
type PositionUpdate struct {
	ID   string  `json:"id"`
	Left float64 `json:"left"`
	Top  float64 `json:"top"`
}

// ResizeUpdate sets an element's frame and, for text, its font size.
type ResizeUpdate struct {
	ID       string   `json:"id"`
	Left     float64  `json:"left"`
	Top      float64  `json:"top"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	FontSize *float64 `json:"fontSize,omitempty"`
}

// SetElementsPositions writes a batch of positions. Cost is linear in the
// batch size; missing ids are skipped.
func (s *Store) SetElementsPositions(updates []PositionUpdate) {
	s.do(ActSetPositions, Positions{Updates: updates})
}

func setPositionsLocked(d *domain.Document, updates []PositionUpdate) bool {
	changed := false
	for _, u := range updates {
		el, ok := d.Elements[u.ID]
		if !ok {
			continue
		}
		if el.Props == nil {
			el.Props = domain.Props{}
		}
		el.Props["left"] = domain.FormatPx(u.Left)
		el.Props["top"] = domain.FormatPx(u.Top)
		changed = true
	}
	return changed
}

// ResizeElements writes a batch of frames.
func (s *Store) ResizeElements(updates []ResizeUpdate) {
	s.do(ActResize, Resizes{Updates: updates})
}

func resizeLocked(d *domain.Document, updates []ResizeUpdate) bool {
	changed := false
	for _, u := range updates {
		el, ok := d.Elements[u.ID]
		if !ok {
			continue
		}
		if el.Props == nil {
			el.Props = domain.Props{}
		}
		el.Props["left"] = domain.FormatPx(u.Left)
		el.Props["top"] = domain.FormatPx(u.Top)
		el.Props["width"] = domain.FormatPx(u.Width)
		el.Props["height"] = domain.FormatPx(u.Height)
		if u.FontSize != nil {
			el.Props["fontSize"] = domain.FormatPx(*u.FontSize)
		}
		changed = true
	}
	return changed
}
