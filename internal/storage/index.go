/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pagecraft/internal/domain"
	applog "pagecraft/internal/log"
	"pagecraft/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores all per-project derived data under the project root.
	IndexDirName  = ".pagecraft"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// IndexPath returns the full path to the project's embedded index database file.
func IndexPath(projectRoot string) string {
	return filepath.Join(projectRoot, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the per-project SQLite index exists at .pagecraft/index.sqlite,
// opens the database, enables WAL mode, and ensures the meta/version tables exist.
// The returned *sql.DB is ready for use. Callers close it when no longer needed.
func InitOrOpenIndex(projectRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", projectRoot),
	)
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	if err := os.MkdirAll(filepath.Join(projectRoot, IndexDirName), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	path := IndexPath(projectRoot)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Keep the stored schema so runMigrations can bring it forward.
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_elements_page ON elements(page_id);`,
				`CREATE INDEX IF NOT EXISTS idx_assets_type ON assets(type);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates core index tables and FTS structures if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// One row per element; name and text feed the search index.
		`CREATE TABLE IF NOT EXISTS elements (
			rid        INTEGER PRIMARY KEY,
			element_id TEXT    NOT NULL UNIQUE,
			page_id    TEXT,
			type       TEXT    NOT NULL,
			name       TEXT,
			text       TEXT
		);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_elements USING fts5(
			name,
			text,
			content='',
			tokenize = 'unicode61'
		);`,

		`CREATE TABLE IF NOT EXISTS assets (
			path TEXT PRIMARY KEY,
			hash TEXT NOT NULL,
			type TEXT,
			size INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_assets_hash ON assets(hash);`,

		`CREATE TABLE IF NOT EXISTS fonts (
			family TEXT NOT NULL,
			file   TEXT NOT NULL DEFAULT '',
			format TEXT,
			source TEXT,
			PRIMARY KEY(family, file)
		);`,

		// Rendered page thumbnails.
		`CREATE TABLE IF NOT EXISTS previews (
			id          INTEGER PRIMARY KEY,
			page_id     TEXT    NOT NULL,
			w           INTEGER NOT NULL DEFAULT 0,
			h           INTEGER NOT NULL DEFAULT 0,
			thumb_blob  BLOB    NOT NULL,
			size        INTEGER NOT NULL DEFAULT 0,
			updated_at  TEXT    NOT NULL,
			last_access TEXT
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_previews_variant ON previews(page_id, w, h);`,
		`CREATE INDEX IF NOT EXISTS idx_previews_access ON previews(last_access);`,

		// Document history.
		`CREATE TABLE IF NOT EXISTS snapshots (
			id         INTEGER PRIMARY KEY,
			ts         TEXT    NOT NULL,
			label      TEXT,
			doc_blob   BLOB    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS elements_ai AFTER INSERT ON elements BEGIN
			INSERT INTO fts_elements(rowid, name, text) VALUES (new.rid, new.name, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS elements_ad AFTER DELETE ON elements BEGIN
			INSERT INTO fts_elements(fts_elements, rowid, name, text) VALUES ('delete', old.rid, old.name, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS elements_au AFTER UPDATE OF name, text ON elements BEGIN
			INSERT INTO fts_elements(fts_elements, rowid, name, text) VALUES ('delete', old.rid, old.name, old.text);
			INSERT INTO fts_elements(rowid, name, text) VALUES (new.rid, new.name, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds the index if needed.
// It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, projectRoot string, doc domain.Document) (bool, error) {
	path := IndexPath(projectRoot)
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		backupIndexFile(path)
		removeIndexFiles(path)
		if rbErr := RebuildIndex(ctx, projectRoot, doc); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM elements LIMIT 1;`); err != nil {
			needs = true
		}
	}
	_ = db.Close()
	if !needs {
		return false, nil
	}
	backupIndexFile(path)
	removeIndexFiles(path)
	if err := RebuildIndex(ctx, projectRoot, doc); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup in .pagecraft/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

func removeIndexFiles(indexPath string) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(indexPath + suffix)
	}
}

// BuildIndexIfEmpty populates the index from doc when it holds no elements yet.
func BuildIndexIfEmpty(ctx context.Context, projectRoot string, doc domain.Document) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM elements;").Scan(&cnt); err != nil {
		return fmt.Errorf("check elements count: %w", err)
	}
	if cnt > 0 {
		return nil
	}
	return rebuildFromDocument(ctx, db, projectRoot, doc)
}

// UpdateIndex replaces the derived content of the index from doc and the project files.
func UpdateIndex(ctx context.Context, projectRoot string, doc domain.Document) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	return rebuildFromDocument(ctx, db, projectRoot, doc)
}

// RebuildIndex drops and recreates the derived tables and repopulates them.
// It preserves meta/version tables, the document history and cached previews.
func RebuildIndex(ctx context.Context, projectRoot string, doc domain.Document) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TRIGGER IF EXISTS elements_ai;",
		"DROP TRIGGER IF EXISTS elements_ad;",
		"DROP TRIGGER IF EXISTS elements_au;",
		"DROP TABLE IF EXISTS elements;",
		"DROP TABLE IF EXISTS fts_elements;",
		"DROP TABLE IF EXISTS assets;",
		"DROP TABLE IF EXISTS fonts;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	return rebuildFromDocument(ctx, db, projectRoot, doc)
}

// ElementRow is the searchable projection of one element.
type ElementRow struct {
	ElementID string
	PageID    string // empty for orphans
	Type      string
	Name      string // user id and class
	Text      string // text content, or alt text for images
}

// ElementRows projects every element of doc, ordered by element id.
func ElementRows(doc *domain.Document) []ElementRow {
	ids := make([]string, 0, len(doc.Elements))
	for id := range doc.Elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]ElementRow, 0, len(ids))
	for _, id := range ids {
		el := doc.Elements[id]
		r := ElementRow{ElementID: id, Type: string(el.Type), Name: elementName(el)}
		if p, ok := doc.PageOf(id); ok {
			r.PageID = p.PageID
		}
		text, _ := el.Props["text"].(string)
		if alt, ok := el.Props["alt"].(string); ok && text == "" {
			text = alt
		}
		r.Text = strings.TrimSpace(text)
		out = append(out, r)
	}
	return out
}

// elementName is the searchable label of an element: its user id or class.
func elementName(el *domain.Element) string {
	return strings.TrimSpace(strings.TrimSpace(el.ID) + " " + strings.TrimSpace(el.ClassName))
}

type assetRow struct {
	path, hash, typ string
	size            int64
}

// rebuildFromDocument replaces elements, assets and fonts in one transaction.
func rebuildFromDocument(ctx context.Context, db *sql.DB, projectRoot string, doc domain.Document) error {
	assets, err := scanAssets(filepath.Join(projectRoot, AssetsDirName))
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, q := range []string{"DELETE FROM elements;", "DELETE FROM assets;", "DELETE FROM fonts;"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear index: %w", err)
		}
	}
	insEl, err := tx.PrepareContext(ctx, "INSERT INTO elements(element_id, page_id, type, name, text) VALUES(?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insEl.Close()
	for _, r := range ElementRows(&doc) {
		page := sql.NullString{String: r.PageID, Valid: r.PageID != ""}
		if _, err := insEl.ExecContext(ctx, r.ElementID, page, r.Type, r.Name, r.Text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert element: %w", err)
		}
	}
	for _, a := range assets {
		if _, err := tx.ExecContext(ctx, "INSERT INTO assets(path, hash, type, size) VALUES(?,?,?,?);", a.path, a.hash, a.typ, a.size); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert asset: %w", err)
		}
	}
	for _, f := range doc.Fonts {
		if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO fonts(family, file, format, source) VALUES(?,?,?,?);", f.FontFamily, f.FileName, f.Format, f.Source); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert font: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// scanAssets hashes every file below dir. A missing dir yields no rows.
func scanAssets(dir string) ([]assetRow, error) {
	var out []assetRow
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		sum, size, err := hashFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		out = append(out, assetRow{path: filepath.ToSlash(rel), hash: sum, typ: assetType(p), size: size})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan assets: %w", err)
	}
	return out, nil
}

func hashFile(p string) (string, int64, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func assetType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".avif":
		return "image"
	case ".ttf", ".otf", ".woff", ".woff2":
		return "font"
	case ".js", ".mjs", ".ts":
		return "script"
	case ".mp4", ".webm", ".mov":
		return "video"
	}
	return "other"
}

// AssetRecord is one row of the asset catalog.
type AssetRecord struct {
	Path string
	Hash string
	Type string
	Size int64
}

// Assets lists the cataloged assets, optionally restricted to one type.
func Assets(ctx context.Context, projectRoot, typ string) ([]AssetRecord, error) {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	q := "SELECT path, hash, COALESCE(type,''), size FROM assets"
	var args []any
	if typ != "" {
		q += " WHERE type = ?"
		args = append(args, typ)
	}
	rows, err := db.QueryContext(ctx, q+" ORDER BY path", args...)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()
	var out []AssetRecord
	for rows.Next() {
		var a AssetRecord
		if err := rows.Scan(&a.Path, &a.Hash, &a.Type, &a.Size); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Duplicates groups cataloged asset paths sharing the same content hash.
func Duplicates(ctx context.Context, projectRoot string) ([][]string, error) {
	all, err := Assets(ctx, projectRoot, "")
	if err != nil {
		return nil, err
	}
	byHash := map[string][]string{}
	var order []string
	for _, a := range all {
		if _, ok := byHash[a.Hash]; !ok {
			order = append(order, a.Hash)
		}
		byHash[a.Hash] = append(byHash[a.Hash], a.Path)
	}
	var out [][]string
	for _, h := range order {
		if len(byHash[h]) > 1 {
			out = append(out, byHash[h])
		}
	}
	return out, nil
}

// Fonts lists the cataloged font families.
func Fonts(ctx context.Context, projectRoot string) ([]domain.Font, error) {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, "SELECT family, file, COALESCE(format,''), COALESCE(source,'') FROM fonts ORDER BY family, file")
	if err != nil {
		return nil, fmt.Errorf("query fonts: %w", err)
	}
	defer rows.Close()
	var out []domain.Font
	for rows.Next() {
		var f domain.Font
		if err := rows.Scan(&f.FontFamily, &f.FileName, &f.Format, &f.Source); err != nil {
			return nil, fmt.Errorf("scan font: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
