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
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pagecraft/internal/domain"

	_ "modernc.org/sqlite"
)

func openRaw(t *testing.T, root string) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(IndexPath(root)))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestIndexInitCreatesWALAndSchema(t *testing.T) {
	root := t.TempDir()
	if _, err := InitProject(root, sampleDoc(t)); err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	db := openRaw(t, root)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" && mode != "WAL" {
		t.Fatalf("expected WAL mode, got %s", mode)
	}
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('meta','version','elements','fts_elements','assets','fonts','previews','snapshots')").Scan(&cnt); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if cnt != 8 {
		t.Fatalf("expected 8 tables, got %d", cnt)
	}
	// InitProject populated the element rows and the FTS triggers fed them.
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fts_elements WHERE fts_elements MATCH 'hello'").Scan(&cnt); err != nil {
		t.Fatalf("fts query: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected one FTS hit, got %d", cnt)
	}
}

func TestUpdateIndexCatalogsAssetsAndFonts(t *testing.T) {
	root := t.TempDir()
	doc := sampleDoc(t)
	doc.Fonts = append(doc.Fonts, domainFont("Inter", "Inter.ttf"))
	ph, err := InitProject(root, doc)
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	img := filepath.Join(ph.Dir(AssetsDirName), "img")
	if err := os.MkdirAll(img, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"cat.png", "copy.png"} {
		if err := os.WriteFile(filepath.Join(img, name), []byte("same bytes"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(ph.Dir(AssetsDirName), "main.js"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ctx := context.Background()
	if err := UpdateIndex(ctx, root, ph.Document); err != nil {
		t.Fatalf("UpdateIndex: %v", err)
	}
	images, err := Assets(ctx, root, "image")
	if err != nil || len(images) != 2 || images[0].Path != "img/cat.png" || images[0].Size != 10 {
		t.Fatalf("images = %+v, %v", images, err)
	}
	all, _ := Assets(ctx, root, "")
	if len(all) != 3 {
		t.Fatalf("catalog = %+v", all)
	}
	dups, err := Duplicates(ctx, root)
	if err != nil || len(dups) != 1 || len(dups[0]) != 2 {
		t.Fatalf("duplicates = %v, %v", dups, err)
	}
	fonts, err := Fonts(ctx, root)
	if err != nil || len(fonts) != 1 || fonts[0].FontFamily != "Inter" {
		t.Fatalf("fonts = %+v, %v", fonts, err)
	}
}

func domainFont(family, file string) domain.Font {
	return domain.Font{FontFamily: family, FileName: file, Format: "truetype", Source: "local"}
}
