/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/html"

	"pagecraft/internal/domain"
	applog "pagecraft/internal/log"
	"pagecraft/internal/scene"
	"pagecraft/internal/scripts"
	"pagecraft/internal/stylegen"
)

// Session is a live preview of one store: it re-renders on every change
// and keeps the attached scripts of rendered elements running across
// re-renders.
type Session struct {
	store  *scene.Store
	proj   *stylegen.Projector
	runner *scripts.Runner
	opts   Options
	log    *slog.Logger

	mu      sync.Mutex
	res     *Result
	css     string
	mounted map[string]bool
	stop    func()
}

// NewSession opens a preview of s. Script paths resolve through reg; a nil
// registry runs no scripts.
func NewSession(s *scene.Store, reg *scripts.Registry, opts Options) *Session {
	if reg == nil {
		reg = scripts.NewRegistry()
	}
	opts.Mode = stylegen.ModePreview
	return &Session{
		store:   s,
		proj:    stylegen.NewProjector(s),
		runner:  scripts.NewRunner(reg),
		opts:    opts,
		mounted: map[string]bool{},
		log:     applog.WithComponent("preview"),
	}
}

// Start renders once and follows the store until Close.
func (s *Session) Start() error {
	if err := s.refresh(); err != nil {
		return err
	}
	unsub := s.store.Subscribe(func(uint64) {
		if err := s.refresh(); err != nil {
			s.log.Warn("preview refresh failed", slog.Any("error", err))
		}
	})
	s.mu.Lock()
	s.stop = unsub
	s.mu.Unlock()
	return nil
}

func (s *Session) refresh() error {
	var res *Result
	var err error
	els := map[string]domain.Element{}
	s.store.View(func(doc *domain.Document, _ domain.Selection) {
		res, err = Page(doc, s.opts)
		if err != nil {
			return
		}
		for id := range res.Nodes {
			if el, ok := doc.Elements[id]; ok && len(el.Scripts) > 0 {
				els[id] = el.Clone()
			}
		}
	})
	if err != nil {
		return err
	}
	css := s.proj.CSS(stylegen.Options{Mode: stylegen.ModePreview, PageID: res.PageID, FontBase: s.opts.fontBase()})

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.mounted {
		if _, ok := els[id]; !ok {
			s.runner.Unmount(id)
			delete(s.mounted, id)
		}
	}
	for id, el := range els {
		node := res.Nodes[id]
		if s.mounted[id] {
			s.runner.Refresh(el, node)
		}
		// Mount only starts scripts not yet running for the element.
		s.runner.Mount(el, node)
		s.mounted[id] = true
	}
	s.res = res
	s.css = css
	return nil
}

// Tick advances attached scripts by dt seconds.
func (s *Session) Tick(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runner.Tick(dt)
}

// Run ticks scripts at fps until ctx is done, then destroys them.
func (s *Session) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		return fmt.Errorf("preview: invalid frame rate %d", fps)
	}
	t := time.NewTicker(time.Second / time.Duration(fps))
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.runner.UnmountAll()
			s.mu.Lock()
			s.mounted = map[string]bool{}
			s.mu.Unlock()
			return ctx.Err()
		case now := <-t.C:
			s.Tick(now.Sub(last).Seconds())
			last = now
		}
	}
}

// CSS returns the stylesheet of the last render.
func (s *Session) CSS() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.css
}

// WriteHTML writes the current page as a full document.
func (s *Session) WriteHTML(w io.Writer, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.res == nil {
		return ErrNoPage
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, Document(s.res, title, s.css)); err != nil {
		return err
	}
	// Document hangs the root under a body; detach it for the next write.
	detach(s.res.Root)
	_, err := buf.WriteTo(w)
	return err
}

// Node returns the rendered node of an element.
func (s *Session) Node(id string) (*html.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.res == nil {
		return nil, false
	}
	n, ok := s.res.Nodes[id]
	return n, ok
}

// Close stops following the store and destroys all scripts.
func (s *Session) Close() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	s.runner.UnmountAll()
	s.mu.Lock()
	s.mounted = map[string]bool{}
	s.mu.Unlock()
}

func detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
