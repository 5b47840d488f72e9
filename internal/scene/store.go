/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene is the authoritative scene graph store: element map, pages,
// canvas settings, fonts and the editor selection. Every mutation goes
// through the store so the tree invariant holds after each call, and each
// successful mutation bumps Version and notifies subscribers once.
//
// Lookups are tolerant. A missing id during a mutation is logged and ignored
// because continuous gestures race with deletions. The store does not cascade
// deletes; callers expand with DeepSelection first.
package scene

import (
	"errors"
	"log/slog"
	"sync"

	"pagecraft/internal/domain"
	applog "pagecraft/internal/log"
)

var (
	ErrNotFound    = errors.New("scene: element not found")
	ErrCycle       = errors.New("scene: move would make an element its own ancestor")
	ErrInvalidMove = errors.New("scene: invalid move")
	ErrLastPage    = errors.New("scene: cannot delete the last page")
	ErrDuplicateID = errors.New("scene: element id already exists")
)

// Limits are the editor tunables the store enforces.
type Limits struct {
	MinZoom     float64
	MaxZoom     float64
	PasteOffset float64
}

// DefaultLimits returns the stock zoom range and paste offset.
func DefaultLimits() Limits { return Limits{MinZoom: 0.1, MaxZoom: 5, PasteOffset: 10} }

// Store guards one document and the selection.
type Store struct {
	mu      sync.RWMutex
	doc     domain.Document
	sel     domain.Selection
	version uint64
	limits  Limits

	// emitMu keeps listener calls in application order.
	emitMu     sync.Mutex
	subMu      sync.Mutex
	subs       map[int]func(uint64)
	actionSubs map[int]func(Action, uint64)
	nextSub    int

	log *slog.Logger
}

// New wraps doc in a store. The document is used as-is; callers must not
// keep mutating it.
func New(doc domain.Document, limits Limits) *Store {
	if doc.Elements == nil {
		doc.Elements = map[string]*domain.Element{}
	}
	if limits.MaxZoom <= 0 {
		limits = DefaultLimits()
	}
	return &Store{
		doc:        doc,
		limits:     limits,
		subs:       map[int]func(uint64){},
		actionSubs: map[int]func(Action, uint64){},
		log:        applog.WithComponent("scene"),
	}
}

// NewDocument builds an empty document with a single page.
func NewDocument(width, height float64, background string, breakpoints []domain.Breakpoint) domain.Document {
	doc := domain.Document{
		Elements: map[string]*domain.Element{},
		Canvas: domain.CanvasSettings{
			Width:           width,
			Height:          height,
			BackgroundColor: background,
			Zoom:            1,
			Breakpoints:     append([]domain.Breakpoint(nil), breakpoints...),
		},
	}
	p := newPage(&doc, "Home")
	doc.ActivePageID = p.PageID
	return doc
}

// Limits returns the configured limits.
func (s *Store) Limits() Limits { return s.limits }

// Version increases with every successful mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers fn to be called after each mutation with the new
// version. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(version uint64)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// View runs fn with read access to the live document and selection. fn must
// not retain or mutate either.
func (s *Store) View(fn func(doc *domain.Document, sel domain.Selection)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.doc, s.sel)
}

// Read is View with the version the state belongs to.
func (s *Store) Read(fn func(doc *domain.Document, sel domain.Selection, version uint64)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.doc, s.sel, s.version)
}

// Snapshot returns a deep copy of the document.
func (s *Store) Snapshot() domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Selection returns a copy of the selection state.
func (s *Store) Selection() domain.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel.Clone()
}

// Element returns a copy of one element.
func (s *Store) Element(id string) (domain.Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.doc.Elements[id]
	if !ok {
		return domain.Element{}, false
	}
	return el.Clone(), true
}

// Replace swaps in a whole document, e.g. after loading from disk. The
// selection is cleared.
func (s *Store) Replace(doc domain.Document) {
	if doc.Elements == nil {
		doc.Elements = map[string]*domain.Element{}
	}
	s.Dispatch(Action{Type: ActReplaceDocument, Payload: doc})
}

// do dispatches a locally produced action.
func (s *Store) do(t ActionType, payload any) Result {
	return s.Dispatch(Action{Type: t, Payload: payload})
}

func (s *Store) notify(v uint64) {
	s.subMu.Lock()
	fns := make([]func(uint64), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

// activeRoot returns the root element id of the active page.
func activeRoot(d *domain.Document) string {
	if p, ok := d.ActivePage(); ok {
		return p.RootElementID
	}
	return ""
}

func indexOf(list []string, id string) int {
	for i, x := range list {
		if x == id {
			return i
		}
	}
	return -1
}

func removeID(list []string, id string) []string {
	out := list[:0]
	for _, x := range list {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func insertAt(list []string, idx int, ids ...string) []string {
	if idx < 0 || idx > len(list) {
		idx = len(list)
	}
	out := make([]string, 0, len(list)+len(ids))
	out = append(out, list[:idx]...)
	out = append(out, ids...)
	return append(out, list[idx:]...)
}
