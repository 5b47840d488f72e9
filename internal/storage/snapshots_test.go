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

func TestSnapshotsCRUD(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleDoc(t))
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	ctx := context.Background()

	if _, ok, err := GetLatestSnapshot(ctx, ph); err != nil || ok {
		t.Fatalf("empty history: ok=%v err=%v", ok, err)
	}
	base := time.Now()
	id, err := SaveSnapshot(ctx, ph, "first", base)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	ph.Document.Canvas.BackgroundColor = "#111111"
	for i := 0; i < 5; i++ {
		if _, err := SaveSnapshot(ctx, ph, "", base.Add(time.Duration(i+1)*time.Millisecond)); err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
	}
	latest, ok, err := GetLatestSnapshot(ctx, ph)
	if err != nil || !ok || latest.Document.Canvas.BackgroundColor != "#111111" {
		t.Fatalf("latest = %+v, %v, %v", latest.Document.Canvas, ok, err)
	}
	first, err := GetSnapshot(ctx, ph, id)
	if err != nil || first.Label != "first" || first.Document.Canvas.BackgroundColor != "#ffffff" {
		t.Fatalf("first = %+v, %v", first, err)
	}
	list, err := ListSnapshots(ctx, ph, 10)
	if err != nil || len(list) != 6 || list[0].ID != latest.ID {
		t.Fatalf("ListSnapshots got %d err %v", len(list), err)
	}
	n, err := PruneOldSnapshots(ctx, ph, 3)
	if err != nil || n != 3 {
		t.Fatalf("PruneOldSnapshots = %d, %v", n, err)
	}
	if list, _ = ListSnapshots(ctx, ph, 10); len(list) != 3 {
		t.Fatalf("after prune %d", len(list))
	}
	if _, err := GetSnapshot(ctx, ph, id); err == nil {
		t.Fatalf("pruned snapshot still readable")
	}
}
