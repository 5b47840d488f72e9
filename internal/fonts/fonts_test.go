/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package fonts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"pagecraft/internal/domain"
)

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "GoRegular.ttf"), goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Brand.woff2"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("fonts = %+v", got)
	}
	if got[0].FontFamily != "Brand" || got[0].Format != "woff2" {
		t.Fatalf("woff2 entry = %+v", got[0])
	}
	if got[1].FontFamily != "Go" || got[1].Path != "sub/GoRegular.ttf" || got[1].Format != "truetype" {
		t.Fatalf("ttf entry = %+v", got[1])
	}

	none, err := ScanDir(filepath.Join(dir, "missing"))
	if err != nil || len(none) != 0 {
		t.Fatalf("missing dir: %v %v", none, err)
	}
}

func TestExtractFamilies(t *testing.T) {
	css := `@font-face { font-family: 'Inter'; src: url(a.woff2); }
@font-face{font-family:"Inter";font-weight:700}
.x { font-family: Roboto Mono, monospace }`
	got := ExtractFamilies(css)
	if len(got) != 2 || got[0] != "Inter" || got[1] != "Roboto Mono" {
		t.Fatalf("families = %v", got)
	}
}

func TestFetchCDN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/css" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`@font-face { font-family: 'Lato'; }`))
	}))
	defer srv.Close()

	css, err := Fetcher{}.FetchCDN(context.Background(), srv.URL+"/css")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	fonts := CDNFonts(srv.URL+"/css", css)
	if len(fonts) != 1 || fonts[0].FontFamily != "Lato" {
		t.Fatalf("fonts = %+v", fonts)
	}
	if _, err := (Fetcher{}).FetchCDN(context.Background(), srv.URL+"/nope"); err == nil {
		t.Fatalf("expected error for 404")
	}
	if _, err := (Fetcher{}).FetchCDN(context.Background(), "file:///etc/passwd"); err == nil {
		t.Fatalf("expected error for non-http url")
	}
}

func TestFaceRules(t *testing.T) {
	css := FaceRules([]domain.Font{
		{FontFamily: "Lato", Source: "https://cdn.example/lato.css"},
		{FontFamily: "Go", Path: "sub/Go.ttf", Format: "truetype", Source: SourceLocal},
	}, "/fonts/")
	if !strings.HasPrefix(css, `@import url("https://cdn.example/lato.css");`) {
		t.Fatalf("import not first: %s", css)
	}
	if !strings.Contains(css, `src: url("/fonts/sub/Go.ttf") format("truetype");`) {
		t.Fatalf("face rule missing: %s", css)
	}
}
