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
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"pagecraft/internal/domain"
)

const maxStylesheet = 1 << 20

// Fetcher downloads CDN font stylesheets.
type Fetcher struct {
	HTTP    *http.Client
	Timeout time.Duration
}

// FetchCDN returns the raw stylesheet text at url.
func (f Fetcher) FetchCDN(ctx context.Context, url string) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", errors.New("font url must be http(s)")
	}
	hc := f.HTTP
	if hc == nil {
		hc = &http.Client{}
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	// some CDNs serve woff2 rules only to browser agents
	req.Header.Set("User-Agent", "Mozilla/5.0 (pagecraft)")
	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxStylesheet))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	return string(b), nil
}

var familyDecl = regexp.MustCompile(`font-family\s*:\s*([^;}]+)`)

// ExtractFamilies scans a stylesheet for font-family declarations and
// returns the first family of each, unquoted, in order of appearance.
func ExtractFamilies(css string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range familyDecl.FindAllStringSubmatch(css, -1) {
		fam := strings.TrimSpace(strings.Split(m[1], ",")[0])
		fam = strings.Trim(fam, `"' `)
		if fam == "" || seen[fam] {
			continue
		}
		seen[fam] = true
		out = append(out, fam)
	}
	return out
}

// CDNFonts turns the families found in a stylesheet into font records that
// reference the stylesheet url.
func CDNFonts(url, css string) []domain.Font {
	fams := ExtractFamilies(css)
	out := make([]domain.Font, 0, len(fams))
	for _, fam := range fams {
		out = append(out, domain.Font{FontFamily: fam, Source: url})
	}
	return out
}
