/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func lastJSONLine(t *testing.T, b []byte) map[string]any {
	t.Helper()
	sc := bufio.NewScanner(bytes.NewReader(b))
	var last string
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines found")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log: %v", err)
	}
	return m
}

func TestJSONLoggingCarriesStaticAndContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Format: "json", Writer: &buf})

	ctx := WithPage(WithProject(context.Background(), "/tmp/site"), "page-1")
	l := WithOperation(WithComponent("scene"), "reorder")
	l.InfoContext(ctx, "moved", slog.String("id", "el-1"))

	m := lastJSONLine(t, buf.Bytes())
	if m["app"] != "pagecraft" {
		t.Fatalf("missing app attr: %v", m["app"])
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
	if m["component"] != "scene" || m["op"] != "reorder" || m["id"] != "el-1" {
		t.Fatalf("context attrs mismatch: %v", m)
	}
	if m["project"] != "/tmp/site" || m["page"] != "page-1" {
		t.Fatalf("ctx enrichment missing: %v", m)
	}
}

func TestFileSinkWritesJSON(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "pagecraft.log")
	var console bytes.Buffer
	Init(Options{Level: "info", Format: "console", File: fpath, Writer: &console})
	L().Info("to both sinks")
	time.Sleep(20 * time.Millisecond)
	if !strings.Contains(console.String(), "to both sinks") {
		t.Fatalf("console sink missing record: %q", console.String())
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PGC_LOG_LEVEL", "warn")
	t.Setenv("PGC_LOG_FORMAT", "json")
	t.Setenv("PGC_LOG_SOURCE", "true")
	t.Setenv("PGC_LOG_FILE", "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
	if v := getenv("PGC_SOME_UNSET_VAR", "fallback"); v != "fallback" {
		t.Fatalf("getenv fallback failed: %q", v)
	}
}

func TestSetLevelAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "error", Writer: &buf})
	L().Info("hidden")
	SetLevel("info")
	L().Info("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("level switch not honoured: %q", out)
	}
}

func TestPrettyTextHandler(t *testing.T) {
	var buf bytes.Buffer
	h := &prettyTextHandler{opts: prettyOpts{Level: slog.LevelWarn}, w: &buf}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info should not be enabled at warn level")
	}
	h2 := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).WithGroup("grp")

	r := slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)
	r.AddAttrs(slog.Int("n", 42), slog.Float64("pi", 3.14), slog.String("msg2", "two words"))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("handle error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ERR", "boom", "k=v", "grp.n=42", "grp.pi=3.14", `grp.msg2="two words"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}
