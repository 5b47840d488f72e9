/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	applog "pagecraft/internal/log"
	"pagecraft/internal/storage"
	"pagecraft/internal/version"
)

// maxPublishBytes bounds a publish request body.
const maxPublishBytes = 32 << 20

// Server serves the publishing API over db.
type Server struct {
	db     *sql.DB
	secret string
	log    *slog.Logger
}

// NewServer returns a server signing tokens with secret. An empty secret
// falls back to an insecure development key.
func NewServer(db *sql.DB, secret string) *Server {
	l := applog.WithComponent("backend")
	if secret == "" {
		secret = devSecret
		l.Warn("PGC_AUTH_SECRET not set; using insecure dev secret")
	}
	return &Server{db: db, secret: secret, log: l}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", s.ready)
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(version.String()))
	})
	mux.HandleFunc("POST /api/auth/token", s.issueToken)
	mux.HandleFunc("GET /api/sites", withAuth(s.secret, s.sites))
	mux.HandleFunc("GET /api/sites/{slug}", withAuth(s.secret, s.latest))
	mux.HandleFunc("POST /api/sites/{slug}/versions", withAuth(s.secret, s.publish))
	mux.HandleFunc("GET /api/sites/{slug}/search", withAuth(s.secret, s.search))
	mux.HandleFunc("GET /sites/{slug}/{file}", s.page)
	return mux
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, "db not configured", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ready"))
}

// issueToken answers POST /api/auth/token with { token, expires_at }. The
// optional body is { "subject": "name", "ttl_seconds": 3600 }.
func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject    string `json:"subject"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = json.Unmarshal(b, &req)
	if req.Subject == "" {
		req.Subject = "dev"
	}
	if req.TTLSeconds <= 0 || req.TTLSeconds > 24*3600 {
		req.TTLSeconds = 3600
	}
	exp := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
	tok, err := SignToken(s.secret, req.Subject, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) needDB(w http.ResponseWriter) bool {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("db not configured"))
		return false
	}
	return true
}

func (s *Server) sites(w http.ResponseWriter, r *http.Request, _ string) {
	if !s.needDB(w) {
		return
	}
	list, err := listSites(r.Context(), s.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) latest(w http.ResponseWriter, r *http.Request, _ string) {
	if !s.needDB(w) {
		return
	}
	_, res, err := latestVersion(r.Context(), s.db, r.PathValue("slug"))
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request, subject string) {
	slug := r.PathValue("slug")
	if !ValidSlug(slug) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid slug %q", slug))
		return
	}
	var req PublishRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxPublishBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode: %w", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if !s.needDB(w) {
		return
	}
	res, err := publishVersion(r.Context(), s.db, slug, subject, req)
	if err != nil {
		s.log.Error("publish failed", slog.String("slug", slug), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("published", slog.String("slug", slug), slog.Int64("version", res.Version), slog.String("by", subject))
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, _ string) {
	if !s.needDB(w) {
		return
	}
	qs := r.URL.Query()
	q := storage.SearchQuery{Text: qs.Get("q"), PageID: qs.Get("page")}
	if t := qs.Get("type"); t != "" {
		q.Types = strings.Split(t, ",")
	}
	q.Limit, _ = strconv.Atoi(qs.Get("limit"))
	q.Offset, _ = strconv.Atoi(qs.Get("offset"))
	res, err := SearchPG(r.Context(), s.db, r.PathValue("slug"), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if res == nil {
		res = []storage.SearchResult{}
	}
	writeJSON(w, http.StatusOK, res)
}

// page serves a page of the latest version of a site.
func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	if !s.needDB(w) {
		return
	}
	html, err := pageHTML(r.Context(), s.db, r.PathValue("slug"), r.PathValue("file"))
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}

// Start opens the database and serves until ctx is cancelled.
func Start(ctx context.Context, cfg Config) error {
	db, err := OpenDB(ctx, cfg.DBURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewServer(db, cfg.Secret).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	applog.WithComponent("backend").Info("listening", slog.String("addr", cfg.Addr))
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}
