/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Smart guides for drag moves: the moving selection bounds snap to edges and
// centers of sibling frames. Deterministic so it can be unit tested without a UI.

import "math"

// SnapOptions controls which guide candidates are considered and the threshold.
type SnapOptions struct {
	// Threshold is the maximum distance in document pixels at which snapping occurs.
	Threshold     float64
	SnapToEdges   bool
	SnapToCenters bool
}

// Guide describes a guide line generated by an alignment. Vertical guides sit
// at x=Position, horizontal ones at y=Position.
type Guide struct {
	Vertical bool
	Center   bool
	Position float64
	From, To Pt
}

type axisBest struct {
	delta float64
	dist  float64
	guide Guide
}

func (b *axisBest) consider(delta, threshold float64, g Guide) {
	d := math.Abs(delta)
	if d <= threshold && d < b.dist {
		b.delta, b.dist, b.guide = delta, d, g
	}
}

// Snap computes the offset that aligns moving with the closest target feature
// on each axis independently. It returns the snapped rectangle and the guides
// to render.
func Snap(moving Rect, targets []Rect, opts SnapOptions) (Rect, []Guide) {
	if opts.Threshold <= 0 {
		opts.Threshold = 6
	}
	bx := axisBest{dist: math.Inf(1)}
	by := axisBest{dist: math.Inf(1)}

	mv := [3]float64{moving.X, moving.X + moving.W/2, moving.X + moving.W}
	mh := [3]float64{moving.Y, moving.Y + moving.H/2, moving.Y + moving.H}

	for _, t := range targets {
		tv := [3]float64{t.X, t.X + t.W/2, t.X + t.W}
		th := [3]float64{t.Y, t.Y + t.H/2, t.Y + t.H}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				center := i == 1 || j == 1
				if center && (i != j || !opts.SnapToCenters) {
					continue
				}
				if !center && !opts.SnapToEdges {
					continue
				}
				bx.consider(mv[i]-tv[j], opts.Threshold, verticalGuide(tv[j], moving, t, center))
				by.consider(mh[i]-th[j], opts.Threshold, horizontalGuide(th[j], moving, t, center))
			}
		}
	}

	out := moving
	var guides []Guide
	if !math.IsInf(bx.dist, 1) {
		out.X = FloatRound(moving.X-bx.delta, 3)
		guides = append(guides, bx.guide)
	}
	if !math.IsInf(by.dist, 1) {
		out.Y = FloatRound(moving.Y-by.delta, 3)
		guides = append(guides, by.guide)
	}
	return out, guides
}

func verticalGuide(x float64, a, b Rect, center bool) Guide {
	x = FloatRound(x, 3)
	return Guide{
		Vertical: true,
		Center:   center,
		Position: x,
		From:     Pt{x, math.Min(a.Y, b.Y)},
		To:       Pt{x, math.Max(a.Y+a.H, b.Y+b.H)},
	}
}

func horizontalGuide(y float64, a, b Rect, center bool) Guide {
	y = FloatRound(y, 3)
	return Guide{
		Center:   center,
		Position: y,
		From:     Pt{math.Min(a.X, b.X), y},
		To:       Pt{math.Max(a.X+a.W, b.X+b.W), y},
	}
}
