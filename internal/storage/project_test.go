/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pagecraft/internal/domain"
	"pagecraft/internal/scene"
)

// sampleDoc returns a one-page document: root > [hero text, cat image].
func sampleDoc(t *testing.T) domain.Document {
	t.Helper()
	s := scene.New(scene.NewDocument(1024, 768, "#ffffff", []domain.Breakpoint{{Name: "Mobile", Width: 375, Height: 667}}), scene.DefaultLimits())
	doc := s.Snapshot()
	page, _ := doc.ActivePage()
	_, err := s.AddElements([]scene.AddPayload{
		{ElementID: "t1", Type: domain.TypeText, ParentID: page.RootElementID, ID: "hero", Props: domain.Props{"text": "Hello world", "left": "10px"}},
		{ElementID: "i1", Type: domain.TypeImage, ParentID: page.RootElementID, ClassName: "thumb", Props: domain.Props{"src": "img/cat.png", "alt": "cat photo"}},
	})
	if err != nil {
		t.Fatalf("add elements: %v", err)
	}
	return s.Snapshot()
}

func TestInitProjectCreatesStructureAndDocument(t *testing.T) {
	root := t.TempDir()
	doc := sampleDoc(t)

	ph, err := InitProject(root, doc)
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	b, err := os.ReadFile(ph.DocumentPath)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	var got domain.Document
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	if len(got.Elements) != len(doc.Elements) || got.ActivePageID != doc.ActivePageID {
		t.Fatalf("document mismatch: %d elements, active %q", len(got.Elements), got.ActivePageID)
	}
	for _, d := range []string{AssetsDirName, ScriptsDirName, FontsDirName, ExportsDirName, BackupsDirName} {
		if fi, err := os.Stat(filepath.Join(root, d)); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", d)
		}
	}
	if _, err := os.Stat(IndexPath(root)); err != nil {
		t.Fatalf("index not created: %v", err)
	}
}

func TestOpenRoundTripsDocument(t *testing.T) {
	root := t.TempDir()
	doc := sampleDoc(t)
	if _, err := InitProject(root, doc); err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	ph, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if ph.Recovered {
		t.Fatalf("fresh project reported as recovered")
	}
	el := ph.Document.Elements["t1"]
	if el == nil || el.Props["text"] != "Hello world" || el.ID != "hero" {
		t.Fatalf("element lost in round trip: %+v", el)
	}
	if bp := ph.Document.Canvas.Breakpoints; len(bp) != 1 || bp[0].Width != 375 {
		t.Fatalf("breakpoints lost: %+v", bp)
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleDoc(t))
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	ph.Document.Canvas.BackgroundColor = "#000000"
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	ents, err := os.ReadDir(filepath.Join(root, BackupsDirName))
	if err != nil {
		t.Fatalf("read backups dir: %v", err)
	}
	var bakCount int
	for _, e := range ents {
		if strings.HasPrefix(e.Name(), DocumentFileName+".") && strings.HasSuffix(e.Name(), ".bak") {
			bakCount++
		}
	}
	if bakCount == 0 {
		t.Fatalf("expected at least one backup file, found 0")
	}
}

func TestOpenFallsBackToLatestBackupOnCorruption(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleDoc(t))
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := os.WriteFile(ph.DocumentPath, []byte("{ this is not json"), 0o644); err != nil {
		t.Fatalf("corrupt document: %v", err)
	}
	opened, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if !opened.Recovered || opened.Document.Elements["t1"] == nil {
		t.Fatalf("expected recovery from backup, got %+v", opened.Recovered)
	}
}

func TestOpenRejectsSchemaViolationWithoutBackup(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, DocumentFileName), []byte(`{"elements":{},"pages":[],"canvas":{"width":1,"height":1}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(root); err == nil {
		t.Fatalf("document without pages opened")
	}
}

func TestOpenNormalizesZoom(t *testing.T) {
	root := t.TempDir()
	doc := sampleDoc(t)
	doc.Canvas.Zoom = 0
	ph, err := InitProject(root, doc)
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	opened, err := Open(ph.Root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if opened.Document.Canvas.Zoom != 1 {
		t.Fatalf("zoom = %v", opened.Document.Canvas.Zoom)
	}
}

func TestPruneBackups(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleDoc(t))
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	for i := 0; i < 4; i++ {
		time.Sleep(2 * time.Millisecond)
		if err := Save(ph); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}
	n, err := PruneBackups(ph, 2)
	if err != nil {
		t.Fatalf("PruneBackups: %v", err)
	}
	left, _ := listBackups(root)
	if len(left) != 2 || n != 2 {
		t.Fatalf("removed %d, left %d", n, len(left))
	}
}

func TestSaveAsMovesProject(t *testing.T) {
	ph, err := InitProject(t.TempDir(), sampleDoc(t))
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	dst := filepath.Join(t.TempDir(), "copy")
	if err := SaveAs(ph, dst); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if ph.DocumentPath != filepath.Join(dst, DocumentFileName) {
		t.Fatalf("handle not updated: %s", ph.DocumentPath)
	}
	if _, err := Open(dst); err != nil {
		t.Fatalf("open copy: %v", err)
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	ph, err := InitProject(t.TempDir(), sampleDoc(t))
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	path, err := AutosaveCrashSnapshot(ph)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if err := ValidateDocument(b); err != nil {
		t.Fatalf("snapshot invalid: %v", err)
	}
}
