/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package assets lists the files of a project's asset tree.
package assets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Entry is one listed file or folder. Path is slash separated and relative
// to the asset root.
type Entry struct {
	Name     string `json:"name"`
	IsFolder bool   `json:"isFolder"`
	Path     string `json:"path"`
}

// ScriptExtensions are the file extensions offered as attachable scripts.
var ScriptExtensions = []string{".js", ".mjs", ".ts"}

// resolve joins rel onto root. Parent references are clamped at root.
func resolve(root, rel string) (dir, clean string) {
	clean = filepath.ToSlash(filepath.Clean("/" + filepath.FromSlash(rel)))
	clean = strings.TrimPrefix(clean, "/")
	return filepath.Join(root, filepath.FromSlash(clean)), clean
}

// ListAssets lists the direct entries of root/rel, folders first then by
// name. Hidden entries are skipped. On error the result is empty.
func ListAssets(root, rel string) ([]Entry, error) {
	dir, base := resolve(root, rel)
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list assets %s: %w", rel, err)
	}
	out := make([]Entry, 0, len(des))
	for _, de := range des {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		p := name
		if base != "" {
			p = base + "/" + name
		}
		out = append(out, Entry{Name: name, IsFolder: de.IsDir(), Path: p})
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(es []Entry) {
	sort.SliceStable(es, func(i, j int) bool {
		if es[i].IsFolder != es[j].IsFolder {
			return es[i].IsFolder
		}
		li, lj := strings.ToLower(es[i].Name), strings.ToLower(es[j].Name)
		if li != lj {
			return li < lj
		}
		return es[i].Name < es[j].Name
	})
}

// IsScript reports whether name carries a script extension.
func IsScript(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ScriptExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ListScriptFiles walks root and returns the slash separated relative paths
// of all script files, sorted. Hidden directories and node_modules are
// skipped.
func ListScriptFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != root && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsScript(name) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	sort.Strings(out)
	return out, nil
}
