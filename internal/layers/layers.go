/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layers drives drag and drop in the layer list: flattening the tree
// into rows, reading drop intent from the pointer, and turning it into a
// store reorder.
package layers

import (
	"fmt"
	"strings"

	"pagecraft/internal/domain"
	"pagecraft/internal/scene"
)

// Config holds the layer list metrics.
type Config struct {
	RowHeight float64
	// Indent is the horizontal step per nesting level.
	Indent float64
	// UnnestTolerance widens the zone left of a row's indent that reads as
	// "pop out of this container".
	UnnestTolerance float64
}

// DefaultConfig returns the stock metrics.
func DefaultConfig() Config {
	return Config{RowHeight: 24, Indent: 16, UnnestTolerance: 8}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.RowHeight <= 0 {
		c.RowHeight = def.RowHeight
	}
	if c.Indent <= 0 {
		c.Indent = def.Indent
	}
	if c.UnnestTolerance < 0 {
		c.UnnestTolerance = 0
	}
	return c
}

// Row is one visible line of the layer list.
type Row struct {
	ID          string
	ParentID    string
	Name        string
	Type        domain.ElementType
	Depth       int
	Indent      float64
	Top         float64
	HasChildren bool
	Expanded    bool
	Visible     bool
	Locked      bool
	Selected    bool
}

// Rows flattens the page's tree below its root. Children of collapsed
// elements are omitted.
func Rows(doc *domain.Document, pageID string, sel domain.Selection, cfg Config) []Row {
	cfg = cfg.normalized()
	page, ok := doc.Page(pageID)
	if !ok {
		return nil
	}
	root, ok := doc.Elements[page.RootElementID]
	if !ok {
		return nil
	}
	var rows []Row
	seen := map[string]bool{root.ElementID: true}
	var walk func(el *domain.Element, depth int)
	walk = func(el *domain.Element, depth int) {
		for _, cid := range el.Children {
			c, ok := doc.Elements[cid]
			if !ok || seen[cid] {
				continue
			}
			seen[cid] = true
			rows = append(rows, Row{
				ID:          c.ElementID,
				ParentID:    c.ParentID,
				Name:        DisplayName(c),
				Type:        c.Type,
				Depth:       depth,
				Indent:      float64(depth) * cfg.Indent,
				Top:         float64(len(rows)) * cfg.RowHeight,
				HasChildren: len(c.Children) > 0,
				Expanded:    c.IsExpanded,
				Visible:     c.IsVisible,
				Locked:      c.IsLocked,
				Selected:    sel.Has(c.ElementID),
			})
			if c.IsExpanded {
				walk(c, depth+1)
			}
		}
	}
	walk(root, 0)
	return rows
}

// DisplayName is the label shown for an element: its user id, the start of
// its text, or its type.
func DisplayName(el *domain.Element) string {
	if id := strings.TrimSpace(el.ID); id != "" {
		return id
	}
	if el.Type == domain.TypeText {
		if s, ok := el.Props["text"].(string); ok {
			s = strings.Join(strings.Fields(s), " ")
			if r := []rune(s); len(r) > 24 {
				s = string(r[:24]) + "…"
			}
			if s != "" {
				return s
			}
		}
	}
	t := string(el.Type)
	if t == "" {
		return "element"
	}
	return strings.ToUpper(t[:1]) + t[1:]
}

// DropPositionFor reads the drop intent from the pointer's height within a
// row: top quarter before, bottom quarter after, the middle inside when the
// target can hold children and after otherwise.
func DropPositionFor(rowTop, rowHeight, pointerY float64, target domain.ElementType) scene.Position {
	if rowHeight <= 0 {
		return scene.After
	}
	f := (pointerY - rowTop) / rowHeight
	switch {
	case f < 0.25:
		return scene.Before
	case f > 0.75:
		return scene.After
	case target.IsContainer():
		return scene.Inside
	default:
		return scene.After
	}
}

// Drop is a raw drop on a row.
type Drop struct {
	SourceID string
	TargetID string
	Position scene.Position
	// PointerX is in layer list coordinates; TargetIndent is the indent of
	// the row dropped on.
	PointerX     float64
	TargetIndent float64
}

// Resolve turns a raw drop into the reorder to perform. Dropping after a
// row, or onto the dragged row itself, with the pointer left of the row's
// indent unnests: the row's parent becomes the target and the element lands
// after it. Drops that would put an element inside its own subtree fail
// with scene.ErrCycle.
func Resolve(doc *domain.Document, d Drop, cfg Config) (scene.ReorderRequest, bool, error) {
	cfg = cfg.normalized()
	if _, ok := doc.Elements[d.SourceID]; !ok {
		return scene.ReorderRequest{}, false, fmt.Errorf("source %s: %w", d.SourceID, scene.ErrNotFound)
	}
	target, ok := doc.Elements[d.TargetID]
	if !ok {
		return scene.ReorderRequest{}, false, fmt.Errorf("target %s: %w", d.TargetID, scene.ErrNotFound)
	}
	req := scene.ReorderRequest{SourceID: d.SourceID, TargetID: d.TargetID, Position: d.Position}
	unnest := false
	if (d.Position == scene.After || d.SourceID == d.TargetID) && d.PointerX < d.TargetIndent+cfg.UnnestTolerance {
		if doc.IsRoot(target.ParentID) || target.ParentID == "" {
			return req, false, fmt.Errorf("%s is already top level: %w", d.TargetID, scene.ErrInvalidMove)
		}
		req.TargetID = target.ParentID
		req.Position = scene.After
		unnest = true
	}
	if req.TargetID == req.SourceID {
		return req, unnest, fmt.Errorf("drop onto itself: %w", scene.ErrInvalidMove)
	}
	if doc.IsAncestor(req.SourceID, req.TargetID) {
		return req, unnest, fmt.Errorf("drop %s into its own subtree: %w", req.SourceID, scene.ErrCycle)
	}
	return req, unnest, nil
}
