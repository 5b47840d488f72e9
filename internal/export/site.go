/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pagecraft/internal/domain"
	applog "pagecraft/internal/log"
	"pagecraft/internal/render"
	"pagecraft/internal/storage"
	"pagecraft/internal/stylegen"
)

// SiteOptions controls the static site export.
type SiteOptions struct {
	// Pages limits the export; empty exports every page.
	Pages []string
	// SkipAssets leaves the assets and fonts directories out of the site.
	SkipAssets bool
}

// SiteFile is one written page.
type SiteFile struct {
	PageID string
	Path   string
}

// ExportSite renders each page in preview mode as a standalone HTML file
// under outDir and copies the project's assets and fonts next to them.
// The first page named "Home" becomes index.html. A relative outDir is
// placed under the project's exports folder.
func ExportSite(ph *storage.ProjectHandle, outDir string, opt SiteOptions) ([]SiteFile, error) {
	if ph == nil {
		return nil, fmt.Errorf("project handle is nil")
	}
	doc := &ph.Document
	outDir = resolveOut(ph, outDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	l := applog.WithOperation(applog.WithComponent("export"), "site").With(slog.String("out", outDir))

	rendered, err := RenderPages(doc, opt.Pages)
	if err != nil {
		return nil, err
	}
	var out []SiteFile
	for _, rp := range rendered {
		path := filepath.Join(outDir, rp.File)
		if err := os.WriteFile(path, rp.HTML, 0o644); err != nil {
			return out, fmt.Errorf("write page: %w", err)
		}
		out = append(out, SiteFile{PageID: rp.PageID, Path: path})
	}
	if !opt.SkipAssets {
		for _, dir := range []string{storage.AssetsDirName, storage.FontsDirName} {
			n, err := copyTree(ph.Dir(dir), filepath.Join(outDir, dir))
			if err != nil {
				return out, fmt.Errorf("copy %s: %w", dir, err)
			}
			l.Debug("copied", slog.String("dir", dir), slog.Int("files", n))
		}
	}
	l.Info("site exported", slog.Int("pages", len(out)))
	return out, nil
}

// RenderedPage is one page rendered for publishing.
type RenderedPage struct {
	PageID string
	Name   string
	File   string
	HTML   []byte
}

// RenderPages renders the selected pages in preview mode with site-relative
// asset and font paths. File names are unique within the result.
func RenderPages(doc *domain.Document, ids []string) ([]RenderedPage, error) {
	pages, err := selectPages(doc, ids)
	if err != nil {
		return nil, err
	}
	out := make([]RenderedPage, 0, len(pages))
	used := map[string]bool{}
	var buf bytes.Buffer
	for _, p := range pages {
		name := pageFileName(p, pageIndex(doc, p.PageID))
		for base, n := name, 2; used[name]; n++ {
			name = fmt.Sprintf("%s-%d", base, n)
		}
		used[name] = true
		buf.Reset()
		err := render.RenderDocument(&buf, doc, render.Options{
			Mode:      stylegen.ModePreview,
			PageID:    p.PageID,
			AssetBase: storage.AssetsDirName,
			FontBase:  storage.FontsDirName + "/",
		})
		if err != nil {
			return out, fmt.Errorf("render page %s: %w", p.PageID, err)
		}
		out = append(out, RenderedPage{PageID: p.PageID, Name: p.Name, File: name + ".html", HTML: bytes.Clone(buf.Bytes())})
	}
	return out, nil
}

func indexOfPage(ph *storage.ProjectHandle, id string) int { return pageIndex(&ph.Document, id) }

func pageIndex(doc *domain.Document, id string) int {
	for i, p := range doc.Pages {
		if p.PageID == id {
			return i
		}
	}
	return -1
}

func resolveOut(ph *storage.ProjectHandle, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ph.Dir(storage.ExportsDirName), p)
}

// copyTree copies regular files below src into dst, skipping dot files.
// A missing src copies nothing.
func copyTree(src, dst string) (int, error) {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return 0, nil
	}
	n := 0
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != src && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, _ := filepath.Rel(src, p)
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		n++
		return copyFile(p, target)
	})
	return n, err
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
