/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layers

import (
	"errors"
	"log/slog"
	"sync"

	"pagecraft/internal/domain"
	applog "pagecraft/internal/log"
	"pagecraft/internal/scene"
)

// ErrNoDrag is returned by Drop when no row is being dragged.
var ErrNoDrag = errors.New("layers: no drag in progress")

// Hint is the drop indicator for the row under the pointer.
type Hint struct {
	TargetID string
	Position scene.Position
	Unnest   bool
	Valid    bool
}

// Engine holds one layer drag at a time.
type Engine struct {
	store *scene.Store
	cfg   Config
	log   *slog.Logger

	mu     sync.Mutex
	source string
	hint   Hint
}

// NewEngine returns a layer drag controller for s.
func NewEngine(s *scene.Store, cfg Config) *Engine {
	return &Engine{store: s, cfg: cfg.normalized(), log: applog.WithComponent("layers")}
}

// Rows lists the active page of the store.
func (e *Engine) Rows() []Row {
	var rows []Row
	e.store.View(func(doc *domain.Document, sel domain.Selection) {
		rows = Rows(doc, doc.ActivePageID, sel, e.cfg)
	})
	return rows
}

// Begin starts dragging id. Page roots cannot be dragged.
func (e *Engine) Begin(id string) bool {
	ok := false
	e.store.View(func(doc *domain.Document, _ domain.Selection) {
		_, exists := doc.Elements[id]
		ok = exists && !doc.IsRoot(id)
	})
	e.mu.Lock()
	defer e.mu.Unlock()
	if !ok {
		e.source = ""
		return false
	}
	e.source = id
	e.hint = Hint{}
	return true
}

// Dragging returns the id being dragged, if any.
func (e *Engine) Dragging() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

// DragOver updates the drop hint for the pointer over row.
func (e *Engine) DragOver(row Row, pointerX, pointerY float64) Hint {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.source == "" {
		return Hint{}
	}
	req, unnest, err := e.resolve(row, pointerX, pointerY)
	e.hint = Hint{TargetID: req.TargetID, Position: req.Position, Unnest: unnest, Valid: err == nil}
	return e.hint
}

// Hint returns the last drop hint.
func (e *Engine) Hint() Hint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hint
}

// Drop performs the move for the pointer over row and ends the drag.
// Successful inside drops expand the target.
func (e *Engine) Drop(row Row, pointerX, pointerY float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.source == "" {
		return ErrNoDrag
	}
	defer func() {
		e.source = ""
		e.hint = Hint{}
	}()
	req, unnest, err := e.resolve(row, pointerX, pointerY)
	if err != nil {
		e.log.Debug("drop rejected", slog.String("source", e.source), slog.String("target", row.ID), slog.Any("error", err))
		return err
	}
	if err := e.store.ReorderElement(req); err != nil {
		return err
	}
	if req.Position == scene.Inside {
		e.store.SetExpanded(req.TargetID, true)
	}
	e.log.Debug("layer moved", slog.String("source", req.SourceID), slog.String("target", req.TargetID),
		slog.String("position", string(req.Position)), slog.Bool("unnest", unnest))
	return nil
}

// Cancel abandons the drag.
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.source = ""
	e.hint = Hint{}
	e.mu.Unlock()
}

func (e *Engine) resolve(row Row, pointerX, pointerY float64) (scene.ReorderRequest, bool, error) {
	var (
		req    scene.ReorderRequest
		unnest bool
		err    error
	)
	e.store.View(func(doc *domain.Document, _ domain.Selection) {
		target, ok := doc.Elements[row.ID]
		if !ok {
			err = scene.ErrNotFound
			return
		}
		d := Drop{
			SourceID:     e.source,
			TargetID:     row.ID,
			Position:     DropPositionFor(row.Top, e.cfg.RowHeight, pointerY, target.Type),
			PointerX:     pointerX,
			TargetIndent: row.Indent,
		}
		req, unnest, err = Resolve(doc, d, e.cfg)
	})
	return req, unnest, err
}
