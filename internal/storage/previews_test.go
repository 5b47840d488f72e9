/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"testing"
	"time"
)

func TestPreviewsPutGetAndEvict(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	t.Setenv("PGC_PREVIEWS_MAX_BYTES", "100")

	for i, size := range []int{100, 200, 300} {
		if err := PutPreview(ctx, root, "home", size, size, make([]byte, 40)); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	total, err := TotalPreviewBytes(ctx, root)
	if err != nil || total > 100 {
		t.Fatalf("expected eviction to <=100 bytes, got %d (%v)", total, err)
	}
	// The oldest variant went first.
	if b, _ := GetPreview(ctx, root, "home", 100, 100); b != nil {
		t.Fatalf("oldest preview survived")
	}
	// Touch 200 so 300 becomes the eviction victim.
	time.Sleep(5 * time.Millisecond)
	if b, _ := GetPreview(ctx, root, "home", 200, 200); len(b) != 40 {
		t.Fatalf("200 missing")
	}
	time.Sleep(5 * time.Millisecond)
	if err := PutPreview(ctx, root, "home", 400, 400, make([]byte, 40)); err != nil {
		t.Fatalf("put 400: %v", err)
	}
	if b, _ := GetPreview(ctx, root, "home", 300, 300); b != nil {
		t.Fatalf("least recently used preview survived")
	}
	if b, _ := GetPreview(ctx, root, "home", 200, 200); b == nil {
		t.Fatalf("recently used preview evicted")
	}
	if err := PutPreview(ctx, root, "home", 1, 1, nil); err == nil {
		t.Fatalf("empty preview stored")
	}
}

func TestGetOrCreateAndInvalidate(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	calls := 0
	gen := func(context.Context) ([]byte, error) { calls++; return []byte("png!"), nil }
	for i := 0; i < 2; i++ {
		b, err := GetOrCreatePreview(ctx, root, "p1", 64, 48, gen)
		if err != nil || string(b) != "png!" {
			t.Fatalf("getOrCreate %d: %q, %v", i, b, err)
		}
	}
	if calls != 1 {
		t.Fatalf("generator called %d times", calls)
	}
	if err := InvalidatePreviews(ctx, root, "p1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := GetOrCreatePreview(ctx, root, "p1", 64, 48, gen); err != nil || calls != 2 {
		t.Fatalf("cache not invalidated: %d, %v", calls, err)
	}
}
