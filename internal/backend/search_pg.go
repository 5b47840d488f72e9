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
	"fmt"
	"strings"

	"pagecraft/internal/storage"
)

// SearchPG searches the elements of the latest published version of slug
// with tsvector matching and the same filters and ordering as the local
// project index, so results are comparable with storage.Search.
func SearchPG(ctx context.Context, db *sql.DB, slug string, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	latest := "(SELECT v.id FROM site_versions v JOIN sites s ON s.id = v.site_id WHERE s.slug = " + place(slug) + " ORDER BY v.version DESC LIMIT 1)"
	if text := strings.TrimSpace(q.Text); text != "" {
		tsq := "plainto_tsquery('simple', " + place(text) + ")"
		b.WriteString("SELECT e.element_id, e.type, COALESCE(e.page_id,''), e.name, ")
		b.WriteString("COALESCE(ts_headline('simple', e.name || ' ' || e.text, " + tsq + ", 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=10'), '') ")
		b.WriteString("FROM published_elements e WHERE e.version_id = " + latest + " AND e.search_vector @@ " + tsq + " ")
	} else {
		b.WriteString("SELECT e.element_id, e.type, COALESCE(e.page_id,''), e.name, '' ")
		b.WriteString("FROM published_elements e WHERE e.version_id = " + latest + " ")
	}
	if len(q.Types) > 0 {
		b.WriteString(" AND e.type = ANY (" + place(q.Types) + ") ")
	}
	if s := strings.TrimSpace(q.PageID); s != "" {
		b.WriteString(" AND e.page_id = " + place(s) + " ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := max(q.Offset, 0)
	b.WriteString(" ORDER BY e.page_id NULLS LAST, e.element_id ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.ElementID, &r.Type, &r.PageID, &r.Name, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
