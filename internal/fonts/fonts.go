/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package fonts enumerates local font files, fetches CDN font stylesheets
// and writes the @font-face rules pages need.
package fonts

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"pagecraft/internal/domain"
	applog "pagecraft/internal/log"
)

// SourceLocal marks fonts found on disk.
const SourceLocal = "local"

var formats = map[string]string{
	".ttf":   "truetype",
	".otf":   "opentype",
	".woff":  "woff",
	".woff2": "woff2",
}

// ScanDir walks dir for font files. TrueType/OpenType family names are read
// from the name table; web fonts and unreadable files fall back to the file
// stem. A missing dir yields no fonts and no error.
func ScanDir(dir string) ([]domain.Font, error) {
	l := applog.WithOperation(applog.WithComponent("fonts"), "scan").With(slog.String("dir", dir))
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	var out []domain.Font
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		format, ok := formats[ext]
		if !ok {
			return nil
		}
		rel, _ := filepath.Rel(dir, path)
		f := domain.Font{
			FileName:   d.Name(),
			FontFamily: strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Path:       filepath.ToSlash(rel),
			Format:     format,
			Source:     SourceLocal,
		}
		if ext == ".ttf" || ext == ".otf" {
			if fam, err := familyName(path); err == nil && fam != "" {
				f.FontFamily = fam
			} else if err != nil {
				l.Debug("font name unreadable", slog.String("file", d.Name()), slog.Any("err", err))
			}
		}
		out = append(out, f)
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("scan fonts: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FontFamily != out[j].FontFamily {
			return out[i].FontFamily < out[j].FontFamily
		}
		return out[i].FileName < out[j].FileName
	})
	l.Info("fonts scanned", slog.Int("count", len(out)))
	return out, nil
}

func familyName(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return "", fmt.Errorf("parse font %s: %w", path, err)
	}
	var buf sfnt.Buffer
	name, err := f.Name(&buf, sfnt.NameIDTypographicFamily)
	if err != nil || name == "" {
		name, err = f.Name(&buf, sfnt.NameIDFamily)
	}
	return strings.TrimSpace(name), err
}

// FaceRules writes @import rules for CDN stylesheets followed by one
// @font-face block per local font. base prefixes local font paths, e.g.
// "/fonts/" for the preview server or a file URL in the editor.
func FaceRules(fonts []domain.Font, base string) string {
	var b strings.Builder
	seen := map[string]bool{}
	for _, f := range fonts {
		if isCDN(f) && !seen[f.Source] {
			seen[f.Source] = true
			fmt.Fprintf(&b, "@import url(%q);\n", f.Source)
		}
	}
	for _, f := range fonts {
		if isCDN(f) || f.Path == "" {
			continue
		}
		fmt.Fprintf(&b, "@font-face {\n  font-family: %q;\n  src: url(%q)", f.FontFamily, base+f.Path)
		if f.Format != "" {
			fmt.Fprintf(&b, " format(%q)", f.Format)
		}
		b.WriteString(";\n}\n")
	}
	return b.String()
}

func isCDN(f domain.Font) bool {
	return strings.HasPrefix(f.Source, "http://") || strings.HasPrefix(f.Source, "https://")
}
