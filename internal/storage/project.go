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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pagecraft/internal/domain"
	applog "pagecraft/internal/log"
)

const (
	DocumentFileName = "page.json"
	BackupsDirName   = "backups"
	AssetsDirName    = "assets"
	ScriptsDirName   = "scripts"
	FontsDirName     = "fonts"
	ExportsDirName   = "exports"
)

var standardSubDirs = []string{
	AssetsDirName,
	ScriptsDirName,
	FontsDirName,
	ExportsDirName,
	BackupsDirName,
}

// ProjectHandle keeps track of the project state loaded/saved from disk.
// Root is the project directory containing page.json and subfolders.
type ProjectHandle struct {
	Root         string
	DocumentPath string
	Document     domain.Document
	// Recovered is set when Open fell back to a backup.
	Recovered bool
}

// Dir returns a project subdirectory.
func (ph *ProjectHandle) Dir(name string) string { return filepath.Join(ph.Root, name) }

// InitProject creates a new project directory at root (creating it if it doesn't exist),
// scaffolds the standard subfolders, and writes the given document transactionally.
func InitProject(root string, doc domain.Document) (*ProjectHandle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	ph := &ProjectHandle{
		Root:         root,
		DocumentPath: filepath.Join(root, DocumentFileName),
		Document:     doc,
	}
	if err := Save(ph); err != nil {
		return nil, err
	}
	if err := BuildIndexIfEmpty(context.Background(), root, doc); err != nil {
		applog.WithComponent("storage").Warn("initial index build failed", slog.String("root", root), slog.Any("err", err))
	}
	return ph, nil
}

func scaffold(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create project root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// Open loads an existing project from the given root directory.
// If the current document cannot be read, parsed or validated, the latest backup is used.
func Open(root string) (*ProjectHandle, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("root", root))
	dpath := filepath.Join(root, DocumentFileName)
	doc, err := readDocument(dpath)
	if err == nil {
		return &ProjectHandle{Root: root, DocumentPath: dpath, Document: doc}, nil
	}
	backup, berr := openFromLatestBackup(root)
	if berr != nil {
		return nil, fmt.Errorf("open document: %w; backup attempt: %v", err, berr)
	}
	l.Warn("document unreadable, recovered from backup", slog.Any("err", err))
	return &ProjectHandle{Root: root, DocumentPath: dpath, Document: *backup, Recovered: true}, nil
}

func readDocument(path string) (domain.Document, error) {
	var doc domain.Document
	b, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	if err := ValidateDocument(b); err != nil {
		return doc, err
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return doc, fmt.Errorf("parse document: %w", err)
	}
	normalize(&doc)
	return doc, nil
}

// normalize fills defaults older or hand-edited documents may lack.
func normalize(doc *domain.Document) {
	if doc.Elements == nil {
		doc.Elements = map[string]*domain.Element{}
	}
	if doc.Canvas.Zoom <= 0 {
		doc.Canvas.Zoom = 1
	}
	for id, el := range doc.Elements {
		if el == nil {
			delete(doc.Elements, id)
			continue
		}
		if el.Props == nil {
			el.Props = domain.Props{}
		}
		if el.Children == nil {
			el.Children = []string{}
		}
	}
}

// Save writes the current ProjectHandle.Document to disk with transactional semantics
// and a timestamped backup of the previous document (if present).
func Save(ph *ProjectHandle) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if ph.Root == "" || ph.DocumentPath == "" {
		return errors.New("invalid ProjectHandle: missing paths")
	}
	data, err := json.MarshalIndent(ph.Document, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	data = append(data, '\n')
	if err := ValidateDocument(data); err != nil {
		return err
	}

	bdir := filepath.Join(ph.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(ph.DocumentPath); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", DocumentFileName, stamp))
		if cerr := copyFile(ph.DocumentPath, bpath); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
	}

	// Write to a temp file in the same directory, then rename over the target.
	dir := filepath.Dir(ph.DocumentPath)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", DocumentFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp document: %w", werr)
	}
	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(ph.DocumentPath); err == nil {
		_ = os.Remove(ph.DocumentPath)
	}
	if rerr := os.Rename(temp, ph.DocumentPath); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", rerr)
	}
	return nil
}

// SaveAs writes the document to a new root folder, scaffolding structure if needed, and updates the handle.
func SaveAs(ph *ProjectHandle, newRoot string) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	if err := scaffold(newRoot); err != nil {
		return err
	}
	ph.Root = newRoot
	ph.DocumentPath = filepath.Join(newRoot, DocumentFileName)
	return Save(ph)
}

// PruneBackups keeps the newest keep document backups and removes the rest.
func PruneBackups(ph *ProjectHandle, keep int) (int, error) {
	if ph == nil {
		return 0, errors.New("nil ProjectHandle")
	}
	backups, err := listBackups(ph.Root)
	if err != nil || keep <= 0 || len(backups) <= keep {
		return 0, err
	}
	removed := 0
	for _, p := range backups[:len(backups)-keep] {
		if err := os.Remove(p); err != nil {
			return removed, fmt.Errorf("remove backup: %w", err)
		}
		removed++
	}
	return removed, nil
}

// AutosaveCrashSnapshot writes the in-memory document next to the backups
// without touching page.json and returns the written path.
func AutosaveCrashSnapshot(ph *ProjectHandle) (string, error) {
	if ph == nil {
		return "", errors.New("nil ProjectHandle")
	}
	data, err := json.MarshalIndent(ph.Document, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	bdir := filepath.Join(ph.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	path := filepath.Join(bdir, fmt.Sprintf("crash-%s.%s", time.Now().Format("20060102-150405"), DocumentFileName))
	if err := writeFileSync(path, append(data, '\n')); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// listBackups returns the document backups oldest first; the timestamp in
// the name sorts lexicographically.
func listBackups(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, DocumentFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

// openFromLatestBackup returns the newest backup that still reads and validates.
func openFromLatestBackup(root string) (*domain.Document, error) {
	candidates, err := listBackups(root)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	var lastErr error
	for i := len(candidates) - 1; i >= 0; i-- {
		doc, err := readDocument(candidates[i])
		if err == nil {
			return &doc, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no usable backup: %w", lastErr)
}
