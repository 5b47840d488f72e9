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
	"regexp"
	"strings"
	"time"

	"pagecraft/internal/domain"
	"pagecraft/internal/export"
	"pagecraft/internal/storage"
)

// ErrNotFound is returned when a site, version or page does not exist.
var ErrNotFound = errors.New("not found")

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// ValidSlug reports whether s can name a site.
func ValidSlug(s string) bool { return slugPattern.MatchString(s) }

// PublishedPage is one rendered page of a version.
type PublishedPage struct {
	PageID string `json:"page_id"`
	Name   string `json:"name"`
	File   string `json:"file"`
	HTML   string `json:"html"`
}

// PublishedElement is the searchable projection of one element.
type PublishedElement struct {
	ElementID string `json:"element_id"`
	PageID    string `json:"page_id,omitempty"`
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	Text      string `json:"text,omitempty"`
}

// PublishRequest is the body of POST /api/sites/{slug}/versions.
type PublishRequest struct {
	Name     string             `json:"name"`
	Document json.RawMessage    `json:"document"`
	Pages    []PublishedPage    `json:"pages"`
	Elements []PublishedElement `json:"elements,omitempty"`
}

// PublishResult describes a stored version.
type PublishResult struct {
	Slug      string    `json:"slug"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Files     []string  `json:"files"`
}

// Site is a listing row.
type Site struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// BuildPublish renders every page of doc and collects its searchable
// elements into a request.
func BuildPublish(doc *domain.Document, name string) (PublishRequest, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return PublishRequest{}, fmt.Errorf("marshal document: %w", err)
	}
	pages, err := export.RenderPages(doc, nil)
	if err != nil {
		return PublishRequest{}, err
	}
	req := PublishRequest{Name: name, Document: raw}
	for _, p := range pages {
		req.Pages = append(req.Pages, PublishedPage{PageID: p.PageID, Name: p.Name, File: p.File, HTML: string(p.HTML)})
	}
	for _, r := range storage.ElementRows(doc) {
		req.Elements = append(req.Elements, PublishedElement(r))
	}
	return req, nil
}

// Validate checks the request before it touches the database.
func (r PublishRequest) Validate() error {
	if len(r.Pages) == 0 {
		return errors.New("no pages")
	}
	if err := storage.ValidateDocument(r.Document); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, p := range r.Pages {
		if p.File == "" || strings.ContainsAny(p.File, "/\\") || seen[p.File] {
			return fmt.Errorf("bad page file %q", p.File)
		}
		seen[p.File] = true
	}
	return nil
}

// publishVersion stores req as the next version of slug. The site row is
// upserted first so concurrent publishes of one site serialize on its lock.
func publishVersion(ctx context.Context, db *sql.DB, slug, subject string, req PublishRequest) (PublishResult, error) {
	res := PublishResult{Slug: slug}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback() }()

	var siteID int64
	err = tx.QueryRowContext(ctx, `INSERT INTO sites(slug, name) VALUES(, )
		ON CONFLICT (slug) DO UPDATE SET name = COALESCE(NULLIF(EXCLUDED.name, ''), sites.name), updated_at = now()
		RETURNING id`, slug, req.Name).Scan(&siteID)
	if err != nil {
		return res, fmt.Errorf("upsert site: %w", err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM site_versions WHERE site_id = `, siteID).Scan(&res.Version); err != nil {
		return res, fmt.Errorf("next version: %w", err)
	}
	var versionID int64
	err = tx.QueryRowContext(ctx, `INSERT INTO site_versions(site_id, version, document, published_by) VALUES(, , , ) RETURNING id, created_at`,
		siteID, res.Version, string(req.Document), subject).Scan(&versionID, &res.CreatedAt)
	if err != nil {
		return res, fmt.Errorf("insert version: %w", err)
	}
	for _, p := range req.Pages {
		if _, err := tx.ExecContext(ctx, `INSERT INTO published_pages(version_id, page_id, name, file, html) VALUES(, , , , )`,
			versionID, p.PageID, p.Name, p.File, p.HTML); err != nil {
			return res, fmt.Errorf("insert page: %w", err)
		}
		res.Files = append(res.Files, p.File)
	}
	for _, e := range req.Elements {
		if _, err := tx.ExecContext(ctx, `INSERT INTO published_elements(version_id, element_id, page_id, type, name, text) VALUES(, , NULLIF(, ''), , , )`,
			versionID, e.ElementID, e.PageID, e.Type, e.Name, e.Text); err != nil {
			return res, fmt.Errorf("insert element: %w", err)
		}
	}
	return res, tx.Commit()
}

func listSites(ctx context.Context, db *sql.DB) ([]Site, error) {
	rows, err := db.QueryContext(ctx, `SELECT s.id, s.slug, s.name, s.updated_at, COALESCE(MAX(v.version), 0)
		FROM sites s LEFT JOIN site_versions v ON v.site_id = s.id
		GROUP BY s.id ORDER BY s.updated_at DESC, s.slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Site{}
	for rows.Next() {
		var s Site
		if err := rows.Scan(&s.ID, &s.Slug, &s.Name, &s.UpdatedAt, &s.Version); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// latestVersion returns the id of the newest version of slug.
func latestVersion(ctx context.Context, db *sql.DB, slug string) (versionID int64, res PublishResult, err error) {
	res.Slug = slug
	err = db.QueryRowContext(ctx, `SELECT v.id, v.version, v.created_at FROM site_versions v JOIN sites s ON s.id = v.site_id
		WHERE s.slug =  ORDER BY v.version DESC LIMIT 1`, slug).Scan(&versionID, &res.Version, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, res, ErrNotFound
	}
	if err != nil {
		return 0, res, err
	}
	rows, err := db.QueryContext(ctx, `SELECT file FROM published_pages WHERE version_id =  ORDER BY file`, versionID)
	if err != nil {
		return 0, res, err
	}
	defer rows.Close()
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return 0, res, err
		}
		res.Files = append(res.Files, f)
	}
	return versionID, res, rows.Err()
}

func pageHTML(ctx context.Context, db *sql.DB, slug, file string) (string, error) {
	var html string
	err := db.QueryRowContext(ctx, `SELECT p.html FROM published_pages p
		JOIN site_versions v ON v.id = p.version_id JOIN sites s ON s.id = v.site_id
		WHERE s.slug =  AND p.file =  ORDER BY v.version DESC LIMIT 1`, slug, file).Scan(&html)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return html, err
}
