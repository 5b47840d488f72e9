/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package stylegen

import (
	"log/slog"
	"sync"

	"pagecraft/internal/domain"
	applog "pagecraft/internal/log"
	"pagecraft/internal/scene"
)

// maxCached bounds the number of option sets kept.
const maxCached = 16

// Projector memoizes Generate on the store version and options, so
// unrelated reads between mutations cost a map lookup.
type Projector struct {
	store *scene.Store
	log   *slog.Logger

	mu    sync.Mutex
	cache map[Options]memoEntry
	runs  int
}

type memoEntry struct {
	version uint64
	css     string
}

// NewProjector binds a projector to a store.
func NewProjector(s *scene.Store) *Projector {
	return &Projector{store: s, cache: map[Options]memoEntry{}, log: applog.WithComponent("stylegen")}
}

// CSS returns the stylesheet for opts at the store's current version.
func (p *Projector) CSS(opts Options) string {
	var css string
	var v uint64
	p.store.Read(func(doc *domain.Document, _ domain.Selection, version uint64) {
		v = version
		p.mu.Lock()
		e, ok := p.cache[opts]
		p.mu.Unlock()
		if ok && e.version == v {
			css = e.css
			return
		}
		css = Generate(doc, opts)
		p.mu.Lock()
		if len(p.cache) >= maxCached {
			p.cache = map[Options]memoEntry{}
		}
		p.cache[opts] = memoEntry{version: v, css: css}
		p.runs++
		p.mu.Unlock()
		p.log.Debug("stylesheet projected", slog.Uint64("version", v), slog.String("mode", string(opts.Mode)), slog.Int("bytes", len(css)))
	})
	return css
}

// Runs reports how many times the stylesheet was actually regenerated.
func (p *Projector) Runs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs
}

// Watch calls fn with the stylesheet now and after every store change that
// alters it. optsFn is evaluated on each change so callers can follow the
// active container. The returned func stops watching.
func (p *Projector) Watch(optsFn func() Options, fn func(css string)) func() {
	var mu sync.Mutex
	last := p.CSS(optsFn())
	fn(last)
	return p.store.Subscribe(func(uint64) {
		css := p.CSS(optsFn())
		mu.Lock()
		changed := css != last
		last = css
		mu.Unlock()
		if changed {
			fn(css)
		}
	})
}
