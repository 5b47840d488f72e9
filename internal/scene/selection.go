/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"pagecraft/internal/domain"
)

func selectable(d *domain.Document, id string) bool {
	el, ok := d.Elements[id]
	return ok && !el.IsLocked && !d.IsRoot(id)
}

// Select replaces the selection. Locked, unknown and root ids are dropped.
func (s *Store) Select(ids []string) {
	s.do(ActSelect, IDs{IDs: ids})
}

// ExtendSelection appends ids to the selection.
func (s *Store) ExtendSelection(ids []string) {
	s.do(ActExtendSelection, IDs{IDs: ids})
}

func selectLocked(d *domain.Document, sel *domain.Selection, ids []string, extend bool) bool {
	var next []string
	if extend {
		next = append(next, sel.SelectedIDs...)
	}
	for _, id := range ids {
		if selectable(d, id) && indexOf(next, id) < 0 {
			next = append(next, id)
		}
	}
	if equalIDs(next, sel.SelectedIDs) {
		return false
	}
	sel.SelectedIDs = next
	return true
}

// Deselect removes ids from the selection.
func (s *Store) Deselect(ids []string) {
	s.do(ActDeselect, IDs{IDs: ids})
}

func deselectLocked(sel *domain.Selection, ids []string) bool {
	n := len(sel.SelectedIDs)
	for _, id := range ids {
		sel.SelectedIDs = removeID(sel.SelectedIDs, id)
	}
	return n != len(sel.SelectedIDs)
}

// ClearSelection empties the selection.
func (s *Store) ClearSelection() {
	s.do(ActSelect, IDs{})
}

// SetActiveContainer enters a Box for scoped editing. The page root or an
// empty id returns to root mode. The selection is cleared.
func (s *Store) SetActiveContainer(id string) {
	s.do(ActSetActiveContainer, ID{ID: id})
}

func setActiveContainerLocked(d *domain.Document, sel *domain.Selection, id string) bool {
	if id != "" && !d.IsRoot(id) {
		el, ok := d.Elements[id]
		if !ok || !el.Type.IsContainer() {
			return false
		}
	} else {
		id = ""
	}
	if sel.ActiveContainerID == id {
		return false
	}
	sel.ActiveContainerID = id
	sel.SelectedIDs = nil
	return true
}

// ExitContainer leaves the active container; its parent becomes active (or
// root mode at the top). The container that was left becomes the selection.
// Returns the new active container, empty in root mode.
func (s *Store) ExitContainer() string {
	res := s.do(ActExitContainer, nil)
	if len(res.IDs) == 0 {
		return ""
	}
	return res.IDs[0]
}

func exitContainerLocked(d *domain.Document, sel *domain.Selection) (string, bool) {
	cur := sel.ActiveContainerID
	if cur == "" {
		return "", false
	}
	var next string
	if el, ok := d.Elements[cur]; ok && !d.IsRoot(el.ParentID) {
		next = el.ParentID
	}
	sel.ActiveContainerID = next
	sel.SelectedIDs = nil
	if selectable(d, cur) {
		sel.SelectedIDs = []string{cur}
	}
	return next, true
}

// ToggleVisibility flips an element's visibility.
func (s *Store) ToggleVisibility(id string) {
	s.do(ActToggleVisibility, ID{ID: id})
}

// ToggleLock flips an element's lock; a locked element leaves the selection.
func (s *Store) ToggleLock(id string) {
	s.do(ActToggleLock, ID{ID: id})
}

// ToggleExpanded flips the layer-panel expansion state.
func (s *Store) ToggleExpanded(id string) {
	s.do(ActToggleExpanded, ID{ID: id})
}

func toggleLocked(d *domain.Document, sel *domain.Selection, id string, flip func(*domain.Element)) bool {
	el, ok := d.Elements[id]
	if !ok {
		return false
	}
	flip(el)
	if el.IsLocked {
		sel.SelectedIDs = removeID(sel.SelectedIDs, id)
	}
	return true
}

// SetExpanded sets the layer-panel expansion state.
func (s *Store) SetExpanded(id string, expanded bool) {
	s.do(ActSetExpanded, Expanded{ID: id, Expanded: expanded})
}

func setExpandedLocked(d *domain.Document, e Expanded) bool {
	el, ok := d.Elements[e.ID]
	if !ok || el.IsExpanded == e.Expanded {
		return false
	}
	el.IsExpanded = e.Expanded
	return true
}

// Copy snapshots the deep selection of ids into the clipboard. Returns the
// number of elements copied.
func (s *Store) Copy(ids []string) int {
	clip := s.clipboardOf(ids)
	if len(clip.Elements) == 0 {
		return 0
	}
	s.do(ActSetClipboard, clip)
	return len(clip.Elements)
}

// Cut copies ids and then deletes them together with their descendants.
func (s *Store) Cut(ids []string) int {
	clip := s.clipboardOf(ids)
	if len(clip.Elements) == 0 {
		return 0
	}
	s.do(ActSetClipboard, clip)
	deep := make([]string, 0, len(clip.Elements))
	for _, el := range clip.Elements {
		deep = append(deep, el.ElementID)
	}
	s.do(ActDeleteElements, IDs{IDs: deep})
	return len(deep)
}

func (s *Store) clipboardOf(ids []string) Clipboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	deep := deepSelection(&s.doc, topLevel(&s.doc, ids))
	clip := Clipboard{Elements: make([]domain.Element, 0, len(deep))}
	for _, id := range deep {
		clip.Elements = append(clip.Elements, s.doc.Elements[id].Clone())
	}
	return clip
}

// Paste inserts fresh copies of the clipboard under parentID (the active
// container, then the page root, when empty or missing). Pasted top-level
// elements are offset by the paste offset and become the selection.
func (s *Store) Paste(parentID string) ([]string, error) {
	s.mu.RLock()
	if len(s.sel.Clipboard) == 0 {
		s.mu.RUnlock()
		return nil, nil
	}
	if p, ok := s.doc.Elements[parentID]; !ok || !p.Type.IsContainer() {
		parentID = s.sel.ActiveContainerID
	}
	if parentID == "" {
		parentID = activeRoot(&s.doc)
	}
	clip := domain.Document{Elements: map[string]*domain.Element{}}
	var clipRoots []string
	for i := range s.sel.Clipboard {
		el := s.sel.Clipboard[i].Clone()
		clip.Elements[el.ElementID] = &el
	}
	for _, el := range s.sel.Clipboard {
		if _, inClip := clip.Elements[el.ParentID]; !inClip {
			clipRoots = append(clipRoots, el.ElementID)
		}
	}
	mapping, batch := clonePayloads(&clip, clipRoots, func(*domain.Element) string { return parentID }, s.limits.PasteOffset)
	s.mu.RUnlock()

	if err := s.do(ActAddElements, AddBatch{Elements: batch, SelectRoots: true}).Err; err != nil {
		return nil, err
	}
	roots := make([]string, 0, len(clipRoots))
	for _, id := range clipRoots {
		roots = append(roots, mapping[id])
	}
	return roots, nil
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
