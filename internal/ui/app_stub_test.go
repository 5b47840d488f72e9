//go:build !fyne

package ui

import (
	"strings"
	"testing"
)

func TestRunWithoutFyneExplainsRebuild(t *testing.T) {
	for _, dir := range []string{"", t.TempDir()} {
		err := Run(dir)
		if err == nil {
			t.Fatalf("Run(%q) succeeded in a build without the UI", dir)
		}
		if msg := err.Error(); !strings.Contains(msg, "UI not built") || !strings.Contains(msg, "-tags fyne ./cmd/pagecraft ui") {
			t.Fatalf("unexpected error message: %q", msg)
		}
	}
}
