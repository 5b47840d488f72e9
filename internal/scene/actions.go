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
	"fmt"

	"pagecraft/internal/domain"
	"pagecraft/internal/vector"
)

// ActionType names a store mutation.
type ActionType string

const (
	ActAddElements        ActionType = "elements/add"
	ActDeleteElements     ActionType = "elements/delete"
	ActUpdateProps        ActionType = "elements/updateProps"
	ActSetVariantProps    ActionType = "elements/setVariantProps"
	ActRenameVariant      ActionType = "elements/renameVariant"
	ActSetPositions       ActionType = "elements/setPositions"
	ActResize             ActionType = "elements/resize"
	ActReorder            ActionType = "elements/reorder"
	ActGroup              ActionType = "elements/group"
	ActUngroup            ActionType = "elements/ungroup"
	ActToggleVisibility   ActionType = "elements/toggleVisibility"
	ActToggleLock         ActionType = "elements/toggleLock"
	ActToggleExpanded     ActionType = "elements/toggleExpanded"
	ActSetExpanded        ActionType = "elements/setExpanded"
	ActAttachScript       ActionType = "elements/attachScript"
	ActDetachScript       ActionType = "elements/detachScript"
	ActSetScriptValue     ActionType = "elements/setScriptValue"
	ActSelect             ActionType = "selection/set"
	ActExtendSelection    ActionType = "selection/extend"
	ActDeselect           ActionType = "selection/remove"
	ActSetActiveContainer ActionType = "selection/setActiveContainer"
	ActExitContainer      ActionType = "selection/exitContainer"
	ActSetClipboard       ActionType = "clipboard/set"
	ActAddPage            ActionType = "pages/add"
	ActRenamePage         ActionType = "pages/rename"
	ActDeletePage         ActionType = "pages/delete"
	ActSetActivePage      ActionType = "pages/setActive"
	ActSetViewport        ActionType = "canvas/setViewport"
	ActSetCanvasSize      ActionType = "canvas/setSize"
	ActSetBackground      ActionType = "canvas/setBackground"
	ActAddBreakpoint      ActionType = "canvas/addBreakpoint"
	ActRemoveBreakpoint   ActionType = "canvas/removeBreakpoint"
	ActAddFonts           ActionType = "fonts/add"
	ActRemoveFont         ActionType = "fonts/remove"
	ActReplaceDocument    ActionType = "document/replace"
)

// Action is one serialized mutation. Payloads are fully resolved (fresh ids
// are assigned before dispatch) so replaying an action on another replica
// of the same state yields the same result.
type Action struct {
	Type    ActionType `json:"type"`
	Payload any        `json:"payload,omitempty"`
	// Origin names the window that produced the action.
	Origin string `json:"origin,omitempty"`
	// Remote marks actions applied on behalf of another window; they are
	// never sent back out.
	Remote bool `json:"remote,omitempty"`
}

// Payload shapes.
type (
	IDs struct {
		IDs []string `json:"ids"`
	}
	ID struct {
		ID string `json:"id"`
	}
	AddBatch struct {
		Elements []AddPayload `json:"elements"`
		// SelectRoots replaces the selection with the inserted elements
		// whose parent is not part of the batch.
		SelectRoots bool `json:"selectRoots,omitempty"`
	}
	PropsUpdate struct {
		ID    string         `json:"id"`
		Props map[string]any `json:"props"`
	}
	VariantProps struct {
		ID    string         `json:"id"`
		Path  []string       `json:"path,omitempty"`
		Props map[string]any `json:"props"`
	}
	VariantRename struct {
		ID     string   `json:"id"`
		Path   []string `json:"path,omitempty"`
		OldKey string   `json:"oldKey"`
		NewKey string   `json:"newKey"`
	}
	Positions struct {
		Updates []PositionUpdate `json:"updates"`
	}
	Resizes struct {
		Updates []ResizeUpdate `json:"updates"`
	}
	Expanded struct {
		ID       string `json:"id"`
		Expanded bool   `json:"expanded"`
	}
	ScriptRef struct {
		ID   string `json:"id"`
		Path string `json:"path"`
	}
	ScriptValue struct {
		ID    string `json:"id"`
		Path  string `json:"path"`
		Field string `json:"field"`
		Value any    `json:"value"`
	}
	Clipboard struct {
		Elements []domain.Element `json:"elements"`
	}
	NewPage struct {
		PageID        string `json:"pageId"`
		RootElementID string `json:"rootElementId"`
		Name          string `json:"name"`
	}
	PageName struct {
		PageID string `json:"pageId"`
		Name   string `json:"name"`
	}
	PageRef struct {
		PageID string `json:"pageId"`
	}
	Size struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	Color struct {
		Color string `json:"color"`
	}
	Name struct {
		Name string `json:"name"`
	}
	Fonts struct {
		Fonts []domain.Font `json:"fonts"`
	}
)

// newPayload returns a pointer to the zero payload of t.
func newPayload(t ActionType) (any, error) {
	switch t {
	case ActAddElements:
		return &AddBatch{}, nil
	case ActDeleteElements, ActUngroup, ActSelect, ActExtendSelection, ActDeselect:
		return &IDs{}, nil
	case ActToggleVisibility, ActToggleLock, ActToggleExpanded, ActSetActiveContainer:
		return &ID{}, nil
	case ActUpdateProps:
		return &PropsUpdate{}, nil
	case ActSetVariantProps:
		return &VariantProps{}, nil
	case ActRenameVariant:
		return &VariantRename{}, nil
	case ActSetPositions:
		return &Positions{}, nil
	case ActResize:
		return &Resizes{}, nil
	case ActReorder:
		return &ReorderRequest{}, nil
	case ActGroup:
		return &GroupRequest{}, nil
	case ActSetExpanded:
		return &Expanded{}, nil
	case ActAttachScript, ActDetachScript:
		return &ScriptRef{}, nil
	case ActSetScriptValue:
		return &ScriptValue{}, nil
	case ActSetClipboard:
		return &Clipboard{}, nil
	case ActAddPage:
		return &NewPage{}, nil
	case ActRenamePage:
		return &PageName{}, nil
	case ActDeletePage, ActSetActivePage:
		return &PageRef{}, nil
	case ActSetViewport:
		return &vector.Viewport{}, nil
	case ActSetCanvasSize:
		return &Size{}, nil
	case ActSetBackground:
		return &Color{}, nil
	case ActAddBreakpoint:
		return &domain.Breakpoint{}, nil
	case ActRemoveBreakpoint, ActRemoveFont:
		return &Name{}, nil
	case ActAddFonts:
		return &Fonts{}, nil
	case ActReplaceDocument:
		return &domain.Document{}, nil
	case ActExitContainer:
		return nil, nil
	}
	return nil, fmt.Errorf("scene: unknown action type %q", t)
}

// UnmarshalJSON decodes the payload into the typed struct for the action type.
func (a *Action) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type    ActionType      `json:"type"`
		Payload json.RawMessage `json:"payload"`
		Origin  string          `json:"origin"`
		Remote  bool            `json:"remote"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p, err := newPayload(raw.Type)
	if err != nil {
		return err
	}
	if p != nil && len(raw.Payload) > 0 && string(raw.Payload) != "null" {
		if err := json.Unmarshal(raw.Payload, p); err != nil {
			return fmt.Errorf("decode %s payload: %w", raw.Type, err)
		}
	}
	*a = Action{Type: raw.Type, Payload: deref(p), Origin: raw.Origin, Remote: raw.Remote}
	return nil
}

// deref turns the decode target back into the value type the reducer uses.
func deref(p any) any {
	switch v := p.(type) {
	case *AddBatch:
		return *v
	case *IDs:
		return *v
	case *ID:
		return *v
	case *PropsUpdate:
		return *v
	case *VariantProps:
		return *v
	case *VariantRename:
		return *v
	case *Positions:
		return *v
	case *Resizes:
		return *v
	case *ReorderRequest:
		return *v
	case *GroupRequest:
		return *v
	case *Expanded:
		return *v
	case *ScriptRef:
		return *v
	case *ScriptValue:
		return *v
	case *Clipboard:
		return *v
	case *NewPage:
		return *v
	case *PageName:
		return *v
	case *PageRef:
		return *v
	case *vector.Viewport:
		return *v
	case *Size:
		return *v
	case *Color:
		return *v
	case *domain.Breakpoint:
		return *v
	case *Name:
		return *v
	case *Fonts:
		return *v
	case *domain.Document:
		return *v
	}
	return p
}

// Result carries what a dispatched action produced.
type Result struct {
	Changed bool
	IDs     []string
	Err     error
}

// OnAction registers fn to receive every applied action, local or remote,
// with the version it produced, after the store lock is released. The
// returned func unsubscribes.
func (s *Store) OnAction(fn func(a Action, version uint64)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.actionSubs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.actionSubs, id)
		s.subMu.Unlock()
	}
}

// Dispatch applies an action through the reducer. Successful actions bump
// the version and are forwarded to listeners in the order they were
// applied. Listeners must not dispatch synchronously.
func (s *Store) Dispatch(a Action) Result {
	s.mu.Lock()
	res := s.reduce(&s.doc, &s.sel, a)
	if !res.Changed {
		s.mu.Unlock()
		return res
	}
	s.version++
	v := s.version
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	s.notify(v)
	s.emit(a, v)
	return res
}

func (s *Store) emit(a Action, v uint64) {
	s.subMu.Lock()
	fns := make([]func(Action, uint64), 0, len(s.actionSubs))
	for _, fn := range s.actionSubs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(a, v)
	}
}

// reduce routes an action to its operation. Called with the write lock held.
func (s *Store) reduce(d *domain.Document, sel *domain.Selection, a Action) Result {
	switch p := a.Payload.(type) {
	case AddBatch:
		ids, err := s.addLocked(d, p.Elements)
		if err != nil {
			return Result{Err: err}
		}
		if p.SelectRoots {
			sel.SelectedIDs = batchRoots(p.Elements)
		}
		return Result{Changed: len(ids) > 0, IDs: ids}
	case IDs:
		switch a.Type {
		case ActDeleteElements:
			return Result{Changed: s.deleteLocked(d, sel, p.IDs)}
		case ActUngroup:
			freed := ungroupLocked(d, sel, p.IDs)
			return Result{Changed: len(freed) > 0, IDs: freed}
		case ActSelect:
			return Result{Changed: selectLocked(d, sel, p.IDs, false)}
		case ActExtendSelection:
			return Result{Changed: selectLocked(d, sel, p.IDs, true)}
		case ActDeselect:
			return Result{Changed: deselectLocked(sel, p.IDs)}
		}
	case ID:
		switch a.Type {
		case ActToggleVisibility:
			return Result{Changed: toggleLocked(d, sel, p.ID, func(el *domain.Element) { el.IsVisible = !el.IsVisible })}
		case ActToggleLock:
			return Result{Changed: toggleLocked(d, sel, p.ID, func(el *domain.Element) { el.IsLocked = !el.IsLocked })}
		case ActToggleExpanded:
			return Result{Changed: toggleLocked(d, sel, p.ID, func(el *domain.Element) { el.IsExpanded = !el.IsExpanded })}
		case ActSetActiveContainer:
			return Result{Changed: setActiveContainerLocked(d, sel, p.ID)}
		}
	case PropsUpdate:
		return Result{Changed: s.updatePropsLocked(d, p)}
	case VariantProps:
		return Result{Changed: setVariantPropsLocked(d, p)}
	case VariantRename:
		return Result{Changed: renameVariantLocked(d, p)}
	case Positions:
		return Result{Changed: setPositionsLocked(d, p.Updates)}
	case Resizes:
		return Result{Changed: resizeLocked(d, p.Updates)}
	case ReorderRequest:
		err := reorderLocked(d, p)
		return Result{Changed: err == nil, Err: err}
	case GroupRequest:
		id, err := s.groupLocked(d, p)
		if err != nil {
			return Result{Err: err}
		}
		sel.SelectedIDs = []string{id}
		return Result{Changed: true, IDs: []string{id}}
	case Expanded:
		return Result{Changed: setExpandedLocked(d, p)}
	case ScriptRef:
		if a.Type == ActAttachScript {
			return Result{Changed: attachScriptLocked(d, p)}
		}
		return Result{Changed: detachScriptLocked(d, p)}
	case ScriptValue:
		return Result{Changed: setScriptValueLocked(d, p)}
	case Clipboard:
		sel.Clipboard = make([]domain.Element, 0, len(p.Elements))
		for _, el := range p.Elements {
			sel.Clipboard = append(sel.Clipboard, el.Clone())
		}
		return Result{Changed: true}
	case NewPage:
		return addPageLocked(d, sel, p)
	case PageName:
		return Result{Changed: renamePageLocked(d, p)}
	case PageRef:
		if a.Type == ActDeletePage {
			err := deletePageLocked(d, sel, p.PageID)
			return Result{Changed: err == nil, Err: err}
		}
		return Result{Changed: setActivePageLocked(d, sel, p.PageID)}
	case vector.Viewport:
		return Result{Changed: s.setViewportLocked(d, p)}
	case Size:
		return Result{Changed: setCanvasSizeLocked(d, p)}
	case Color:
		return Result{Changed: setBackgroundLocked(d, p.Color)}
	case domain.Breakpoint:
		return Result{Changed: addBreakpointLocked(d, p)}
	case Name:
		if a.Type == ActRemoveBreakpoint {
			return Result{Changed: removeBreakpointLocked(d, p.Name)}
		}
		return Result{Changed: removeFontLocked(d, p.Name)}
	case Fonts:
		return Result{Changed: addFontsLocked(d, p.Fonts)}
	case domain.Document:
		doc := p.Clone()
		*d = doc
		*sel = domain.Selection{}
		return Result{Changed: true}
	case nil:
		if a.Type == ActExitContainer {
			id, changed := exitContainerLocked(d, sel)
			if id != "" {
				return Result{Changed: changed, IDs: []string{id}}
			}
			return Result{Changed: changed}
		}
	}
	return Result{Err: fmt.Errorf("scene: action %q carries unexpected payload %T", a.Type, a.Payload)}
}

// batchRoots returns the ids of batch entries whose parent is outside the batch.
func batchRoots(batch []AddPayload) []string {
	in := map[string]bool{}
	for _, p := range batch {
		in[p.ElementID] = true
	}
	var roots []string
	for _, p := range batch {
		if !in[p.ParentID] {
			roots = append(roots, p.ElementID)
		}
	}
	return roots
}
