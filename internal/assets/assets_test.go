/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package assets

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func write(t *testing.T, root string, rel string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestListAssetsFoldersFirst(t *testing.T) {
	root := t.TempDir()
	write(t, root, "b.png")
	write(t, root, "A.png")
	write(t, root, "zeta/x.png")
	write(t, root, "img/cat.png")
	write(t, root, ".cache/skip")

	got, err := ListAssets(root, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []Entry{
		{Name: "img", IsFolder: true, Path: "img"},
		{Name: "zeta", IsFolder: true, Path: "zeta"},
		{Name: "A.png", Path: "A.png"},
		{Name: "b.png", Path: "b.png"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v", got)
	}

	sub, err := ListAssets(root, "img")
	if err != nil || len(sub) != 1 || sub[0].Path != "img/cat.png" {
		t.Fatalf("sub = %+v, %v", sub, err)
	}
}

func TestListAssetsErrors(t *testing.T) {
	root := t.TempDir()
	if _, err := ListAssets(root, "missing"); err == nil {
		t.Fatalf("missing dir listed")
	}
	// Traversal is clamped to the root.
	es, err := ListAssets(root, "../../")
	if err != nil || len(es) != 0 {
		t.Fatalf("traversal = %+v, %v", es, err)
	}
	if dir, clean := resolve(root, "a/../../b"); dir != filepath.Join(root, "b") || clean != "b" {
		t.Fatalf("resolve = %s, %s", dir, clean)
	}
}

func TestListScriptFiles(t *testing.T) {
	root := t.TempDir()
	write(t, root, "main.js")
	write(t, root, "lib/util.MJS")
	write(t, root, "lib/types.ts")
	write(t, root, "lib/readme.md")
	write(t, root, "node_modules/dep/index.js")
	write(t, root, ".git/hook.js")

	got, err := ListScriptFiles(root)
	if err != nil {
		t.Fatalf("scripts: %v", err)
	}
	want := []string{"lib/types.ts", "lib/util.MJS", "main.js"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
	if _, err := ListScriptFiles(filepath.Join(root, "nope")); err == nil {
		t.Fatalf("missing root walked")
	}
}
