/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server serves the live preview of an editing session over HTTP:
// the rendered pages, their stylesheets, the replication channel used by
// secondary windows, and the project's asset listing.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/static"

	"pagecraft/internal/assets"
	"pagecraft/internal/bridge"
	"pagecraft/internal/domain"
	"pagecraft/internal/export"
	applog "pagecraft/internal/log"
	"pagecraft/internal/render"
	"pagecraft/internal/scene"
	"pagecraft/internal/scripts"
	"pagecraft/internal/storage"
	"pagecraft/internal/stylegen"
	"pagecraft/internal/version"
)

// pollID subscribes the server to the hub; no window uses it as origin.
const pollID = "\x00poll"

// MaxWait caps how long an events request blocks.
const MaxWait = 30 * time.Second

// Options configures a preview server.
type Options struct {
	// Root is the project directory. Asset listing, static files and the
	// thumbnail cache are disabled when empty.
	Root string
	// Scripts resolves attached scripts for the live session.
	Scripts *scripts.Registry
	// AccessLog enables the request log middleware.
	AccessLog bool
	// FPS is the tick rate of the live session's scripts.
	FPS int
}

// Server is the preview HTTP surface of one hub.
type Server struct {
	hub  *bridge.Hub
	opts Options
	app  *fiber.App
	sess *render.Session
	proj *stylegen.Projector
	log  *slog.Logger

	mu        sync.Mutex
	changed   chan struct{}
	thumbSeen uint64
	stop      func()
}

// EventsResponse is the body of GET /api/events. When Resync is set the
// history no longer reaches back to the requested seq and State carries a
// fresh snapshot to boot from.
type EventsResponse struct {
	Events []bridge.Event       `json:"events"`
	Seq    uint64               `json:"seq"`
	Resync bool                 `json:"resync,omitempty"`
	State  *bridge.InitialState `json:"state,omitempty"`
}

// DispatchResponse is the body of POST /api/dispatch.
type DispatchResponse struct {
	Changed bool   `json:"changed"`
	Seq     uint64 `json:"seq"`
}

// New builds the server and starts following the hub's store.
func New(hub *bridge.Hub, opts Options) (*Server, error) {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	s := &Server{
		hub:     hub,
		opts:    opts,
		proj:    stylegen.NewProjector(hub.Store()),
		changed: make(chan struct{}),
		log:     applog.WithComponent("server"),
	}
	s.sess = render.NewSession(hub.Store(), opts.Scripts, render.Options{AssetBase: "/assets", FontBase: "/fonts/"})
	if err := s.sess.Start(); err != nil {
		return nil, fmt.Errorf("start preview: %w", err)
	}
	s.stop = hub.Subscribe(pollID, func(bridge.Event) { s.broadcast() })

	app := fiber.New(fiber.Config{
		AppName:      "PageCraft Preview " + version.String(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: MaxWait + 15*time.Second,
	})
	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "X-Window-ID"},
	}))

	app.Get("/health/live", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})
	app.Get("/health/ready", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ready", "seq": hub.Store().Version()})
	})

	app.Get("/preview", s.livePage)
	app.Get("/preview/:page/style.css", s.pageCSS)
	app.Get("/preview/:page", s.page)
	app.Get("/api/pages/:page/thumbnail", s.thumbnail)

	app.Get("/api/state", func(c fiber.Ctx) error {
		return c.JSON(hub.InitialState())
	})
	app.Post("/api/dispatch", s.dispatch)
	app.Get("/api/events", s.events)

	if opts.Root != "" {
		app.Get("/api/assets", s.assets)
		app.Get("/api/scripts", s.scripts)
		app.Use("/assets", static.New(filepath.Join(opts.Root, "assets")))
		app.Use("/fonts", static.New(filepath.Join(opts.Root, "fonts")))
	}
	s.app = app
	return s, nil
}

// App exposes the fiber application, for tests and embedding.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) broadcast() {
	s.mu.Lock()
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

func (s *Server) changedCh() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Run serves on addr and ticks the live session until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	go func() {
		if err := s.sess.Run(ctx, s.opts.FPS); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("preview session stopped", slog.Any("error", err))
		}
	}()
	errc := make(chan error, 1)
	go func() {
		s.log.Info("preview listening", slog.String("addr", addr))
		errc <- s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.app.ShutdownWithContext(shutdownCtx)
	s.Close()
	return err
}

// Close stops following the hub and the live session.
func (s *Server) Close() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
		s.sess.Close()
	}
}

func sendHTML(c fiber.Ctx, b []byte) error {
	c.Set("Content-Type", "text/html; charset=utf-8")
	c.Set("Cache-Control", "no-store")
	return c.Send(b)
}

// livePage serves the active page from the running session, scripts
// applied.
func (s *Server) livePage(c fiber.Ctx) error {
	var buf bytes.Buffer
	if err := s.sess.WriteHTML(&buf, "Preview"); err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return sendHTML(c, buf.Bytes())
}

func (s *Server) page(c fiber.Ctx) error {
	doc := s.hub.Store().Snapshot()
	var buf bytes.Buffer
	err := render.RenderDocument(&buf, &doc, render.Options{
		Mode:      stylegen.ModePreview,
		PageID:    c.Params("page"),
		AssetBase: "/assets",
		FontBase:  "/fonts/",
	})
	if errors.Is(err, render.ErrNoPage) {
		return fiber.NewError(fiber.StatusNotFound, "page not found")
	}
	if err != nil {
		return err
	}
	return sendHTML(c, buf.Bytes())
}

func (s *Server) pageCSS(c fiber.Ctx) error {
	pageID := c.Params("page")
	if !s.hasPage(pageID) {
		return fiber.NewError(fiber.StatusNotFound, "page not found")
	}
	css := s.proj.CSS(stylegen.Options{Mode: stylegen.ModePreview, PageID: pageID, FontBase: "/fonts/"})
	c.Set("Content-Type", "text/css; charset=utf-8")
	c.Set("Cache-Control", "no-store")
	return c.SendString(css)
}

func (s *Server) hasPage(pageID string) bool {
	ok := false
	s.hub.Store().View(func(doc *domain.Document, _ domain.Selection) {
		_, ok = doc.Page(pageID)
	})
	return ok
}

func windowID(c fiber.Ctx) string {
	if id := c.Query("window"); id != "" {
		return id
	}
	return c.Get("X-Window-ID")
}

func (s *Server) dispatch(c fiber.Ctx) error {
	origin := windowID(c)
	if origin == "" {
		return fiber.NewError(fiber.StatusBadRequest, "window id required")
	}
	var a scene.Action
	if err := json.Unmarshal(c.Body(), &a); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid action: "+err.Error())
	}
	res := s.hub.Dispatch(origin, a)
	if res.Err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": res.Err.Error()})
	}
	return c.JSON(DispatchResponse{Changed: res.Changed, Seq: s.hub.Store().Version()})
}

// events returns the hub events after since that the window did not send.
// With wait set it blocks until at least one such event exists or the wait
// elapses.
func (s *Server) events(c fiber.Ctx) error {
	window := windowID(c)
	since, err := strconv.ParseUint(c.Query("since", "0"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid since")
	}
	var wait time.Duration
	if w := c.Query("wait"); w != "" {
		if wait, err = time.ParseDuration(w); err != nil || wait < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid wait")
		}
		wait = min(wait, MaxWait)
	}
	deadline := time.Now().Add(wait)
	for {
		ch := s.changedCh()
		evs, head, ok := s.hub.Poll(window, since)
		if !ok {
			st := s.hub.InitialState()
			return c.JSON(EventsResponse{Events: []bridge.Event{}, Seq: st.Seq, Resync: true, State: &st})
		}
		since = head
		remaining := time.Until(deadline)
		if len(evs) > 0 || remaining <= 0 {
			if evs == nil {
				evs = []bridge.Event{}
			}
			return c.JSON(EventsResponse{Events: evs, Seq: head})
		}
		timer := time.NewTimer(remaining)
		select {
		case <-ch:
		case <-timer.C:
		}
		timer.Stop()
	}
}

func (s *Server) assets(c fiber.Ctx) error {
	es, err := assets.ListAssets(filepath.Join(s.opts.Root, "assets"), c.Query("path"))
	if err != nil {
		// Missing folders list as empty.
		s.log.Debug("asset listing failed", slog.Any("error", err))
		es = []assets.Entry{}
	}
	return c.JSON(es)
}

func (s *Server) scripts(c fiber.Ctx) error {
	files, err := assets.ListScriptFiles(s.opts.Root)
	if err != nil {
		return err
	}
	if files == nil {
		files = []string{}
	}
	var registered []string
	if s.opts.Scripts != nil {
		registered = s.opts.Scripts.Paths()
	}
	return c.JSON(fiber.Map{"files": files, "registered": registered})
}

func (s *Server) thumbnail(c fiber.Ctx) error {
	pageID := c.Params("page")
	if !s.hasPage(pageID) {
		return fiber.NewError(fiber.StatusNotFound, "page not found")
	}
	w, errW := strconv.Atoi(c.Query("w", "320"))
	h, errH := strconv.Atoi(c.Query("h", "240"))
	if errW != nil || errH != nil || w <= 0 || h <= 0 || w > 4096 || h > 4096 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid size")
	}
	doc := s.hub.Store().Snapshot()
	gen := func(context.Context) ([]byte, error) { return export.Thumbnail(&doc, pageID, w, h) }
	var blob []byte
	var err error
	if s.opts.Root == "" {
		blob, err = gen(context.Background())
	} else {
		ctx := context.Background()
		s.invalidateThumbnails(ctx)
		blob, err = storage.GetOrCreatePreview(ctx, s.opts.Root, pageID, w, h, gen)
	}
	if err != nil {
		return err
	}
	c.Set("Content-Type", "image/png")
	return c.Send(blob)
}

// invalidateThumbnails drops cached previews once per store version.
func (s *Server) invalidateThumbnails(ctx context.Context) {
	v := s.hub.Store().Version()
	s.mu.Lock()
	stale := s.thumbSeen != v
	s.thumbSeen = v
	s.mu.Unlock()
	if !stale {
		return
	}
	if err := storage.InvalidatePreviews(ctx, s.opts.Root, ""); err != nil {
		s.log.Warn("invalidate previews failed", slog.Any("error", err))
	}
}
