/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "testing"

func TestSnap_Edges(t *testing.T) {
	sibling := R(0, 0, 200, 100)
	moving := R(3, 104, 80, 40) // left edges 3 apart, top 4 below sibling bottom
	got, guides := Snap(moving, []Rect{sibling}, SnapOptions{Threshold: 6, SnapToEdges: true})
	if got.X != 0 || got.Y != 100 {
		t.Fatalf("expected snap to (0,100), got (%v,%v)", got.X, got.Y)
	}
	var v, h bool
	for _, g := range guides {
		if g.Vertical && g.Position == 0 {
			v = true
		}
		if !g.Vertical && g.Position == 100 {
			h = true
		}
	}
	if !v || !h {
		t.Fatalf("missing guides: %+v", guides)
	}
}

func TestSnap_Centers(t *testing.T) {
	sibling := R(0, 0, 200, 100)
	moving := R(48, 17, 100, 60) // centers (98,47) vs (100,50)
	got, _ := Snap(moving, []Rect{sibling}, SnapOptions{Threshold: 5, SnapToCenters: true})
	if got.X != 50 || got.Y != 20 {
		t.Fatalf("expected center snap to (50,20), got (%v,%v)", got.X, got.Y)
	}
}

func TestSnap_OutsideThreshold(t *testing.T) {
	moving := R(30, 30, 10, 10)
	got, guides := Snap(moving, []Rect{R(0, 0, 10, 10)}, SnapOptions{Threshold: 4, SnapToEdges: true, SnapToCenters: true})
	if got != moving || len(guides) != 0 {
		t.Fatalf("nothing should snap: %+v %+v", got, guides)
	}
}
