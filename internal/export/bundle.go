/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"pagecraft/internal/storage"
)

// BundleOptions controls the zip bundle export.
type BundleOptions struct {
	Pages []string
	// IncludeDocument adds the project document as page.json.
	IncludeDocument bool
}

// ExportBundle writes a zip archive holding the static site of the selected
// pages, optionally with the project document. The site is staged in a
// temporary directory and removed afterwards.
func ExportBundle(ph *storage.ProjectHandle, outPath string, opt BundleOptions) error {
	if ph == nil {
		return fmt.Errorf("project handle is nil")
	}
	outPath = resolveOut(ph, outPath)
	if !strings.HasSuffix(strings.ToLower(outPath), ".zip") {
		outPath += ".zip"
	}
	stage, err := os.MkdirTemp("", "pagecraft-bundle-*")
	if err != nil {
		return fmt.Errorf("stage dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(stage) }()
	if _, err := ExportSite(ph, stage, SiteOptions{Pages: opt.Pages}); err != nil {
		return err
	}

	zw, f, err := createZip(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	err = filepath.WalkDir(stage, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(stage, p)
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return addZipFile(zw, filepath.ToSlash(rel), data)
	})
	if err != nil {
		return fmt.Errorf("zip add site: %w", err)
	}
	if opt.IncludeDocument {
		data, err := os.ReadFile(ph.DocumentPath)
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		if err := addZipFile(zw, storage.DocumentFileName, data); err != nil {
			return fmt.Errorf("zip add document: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func createZip(outPath string) (*zip.Writer, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create zip: %w", err)
	}
	return zip.NewWriter(f), f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
