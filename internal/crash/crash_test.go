package crash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pagecraft/internal/scene"
	"pagecraft/internal/storage"
)

func TestWriteReportWithoutProject(t *testing.T) {
	path, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	if filepath.Dir(path) != filepath.Clean(os.TempDir()) {
		t.Fatalf("report outside temp dir: %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	for _, want := range []string{"PageCraft Crash Report", "Panic: boom", "stacktrace"} {
		if !strings.Contains(s, want) {
			t.Fatalf("report misses %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "Document:") {
		t.Fatalf("project lines written without a project:\n%s", s)
	}
}

func TestWriteReportDescribesProject(t *testing.T) {
	root := t.TempDir()
	ph := &storage.ProjectHandle{
		Root:         root,
		DocumentPath: filepath.Join(root, storage.DocumentFileName),
		Document:     scene.NewDocument(320, 200, "#fff", nil),
	}

	path, err := writeReport(ph, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(root, storage.BackupsDirName) {
		t.Fatalf("expected crash report under backups dir, got %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "Document: "+ph.DocumentPath) || !strings.Contains(s, "Pages: 1, Elements: 1") {
		t.Fatalf("project summary missing:\n%s", s)
	}
}
