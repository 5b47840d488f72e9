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
)

func TestSearchElements(t *testing.T) {
	root := t.TempDir()
	doc := sampleDoc(t)
	if _, err := InitProject(root, doc); err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	page, _ := doc.ActivePage()
	ctx := context.Background()

	res, err := Search(ctx, root, SearchQuery{Text: "hello"})
	if err != nil {
		t.Fatalf("search text: %v", err)
	}
	if len(res) != 1 || res[0].ElementID != "t1" || res[0].PageID != page.PageID || res[0].Name != "hero" {
		t.Fatalf("text hits = %+v", res)
	}

	// Names are searchable too, and image alt text counts as text.
	if res, _ = Search(ctx, root, SearchQuery{Text: "thumb"}); len(res) != 1 || res[0].ElementID != "i1" {
		t.Fatalf("class hits = %+v", res)
	}
	if res, _ = Search(ctx, root, SearchQuery{Text: "cat"}); len(res) != 1 || res[0].Type != "image" {
		t.Fatalf("alt hits = %+v", res)
	}

	res, err = Search(ctx, root, SearchQuery{Types: []string{"image", "text"}, PageID: page.PageID})
	if err != nil || len(res) != 2 {
		t.Fatalf("filtered scan = %+v, %v", res, err)
	}
	if res, _ = Search(ctx, root, SearchQuery{PageID: "nope"}); len(res) != 0 {
		t.Fatalf("unknown page matched %+v", res)
	}
	if res, _ = Search(ctx, root, SearchQuery{Limit: 1, Offset: 1}); len(res) != 1 {
		t.Fatalf("pagination = %+v", res)
	}
	if _, err := Search(ctx, " ", SearchQuery{}); err == nil {
		t.Fatalf("empty root accepted")
	}
}
