/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package interact

import "pagecraft/internal/vector"

// Modifiers is a bitmask of held modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

// Has reports whether all bits of m2 are set.
func (m Modifiers) Has(m2 Modifiers) bool { return m&m2 == m2 }

// extend reports the multi-select modifiers (shift, ctrl or cmd).
func (m Modifiers) extend() bool { return m&(ModShift|ModCtrl|ModSuper) != 0 }

// MouseButton identifies the pressed button.
type MouseButton uint8

const (
	MouseButtonNone MouseButton = iota
	MouseButtonLeft
	MouseButtonMiddle
	MouseButtonRight
)

// PointerEvent is a pointer sample in canvas viewport (screen) pixels.
type PointerEvent struct {
	Pos       vector.Pt
	Button    MouseButton
	Modifiers Modifiers
}

// WheelEvent is a scroll sample; deltas are in screen pixels.
type WheelEvent struct {
	Pos       vector.Pt
	DeltaX    float64
	DeltaY    float64
	Modifiers Modifiers
}

// Tool is the active canvas tool.
type Tool uint8

const (
	ToolSelect Tool = iota
	ToolHand
)

// State is the gesture currently in progress.
type State uint8

const (
	StateIdle State = iota
	StatePanning
	StateResizing
	StateDragging
	StateMarquee
	StateAnchoring
)

func (s State) String() string {
	switch s {
	case StatePanning:
		return "panning"
	case StateResizing:
		return "resizing"
	case StateDragging:
		return "dragging"
	case StateMarquee:
		return "marquee"
	case StateAnchoring:
		return "anchoring"
	}
	return "idle"
}

// Handle is a resize grip around the selection bounds.
type Handle uint8

const (
	HandleNone Handle = iota
	HandleN
	HandleNE
	HandleE
	HandleSE
	HandleS
	HandleSW
	HandleW
	HandleNW
	HandleAnchor
)

// handlePos is each grip's normalized position on the bounds.
var handlePos = map[Handle]vector.Pt{
	HandleN:  {X: 0.5, Y: 0},
	HandleNE: {X: 1, Y: 0},
	HandleE:  {X: 1, Y: 0.5},
	HandleSE: {X: 1, Y: 1},
	HandleS:  {X: 0.5, Y: 1},
	HandleSW: {X: 0, Y: 1},
	HandleW:  {X: 0, Y: 0.5},
	HandleNW: {X: 0, Y: 0},
}

// axes reports which axes a grip scales.
func (h Handle) axes() (x, y bool) {
	switch h {
	case HandleN, HandleS:
		return false, true
	case HandleE, HandleW:
		return true, false
	}
	return true, true
}

// Capture acquires the window-level pointer listeners for one gesture. The
// returned func releases them and must be safe to call once.
type Capture interface {
	Acquire() (release func())
}

// CaptureFunc adapts a function to Capture.
type CaptureFunc func() func()

func (f CaptureFunc) Acquire() func() { return f() }

type nopCapture struct{}

func (nopCapture) Acquire() func() { return func() {} }

// Config holds the editor tunables.
type Config struct {
	// DragThreshold separates a click from a drag, in screen pixels.
	DragThreshold float64
	// MarqueeMinSize is the smallest rubber band that selects anything.
	MarqueeMinSize float64
	// AnchorSnap is the band around 0, 0.5 and 1 the anchor snaps to.
	AnchorSnap float64
	// MinElementSize is the resize floor when padding and border are smaller.
	MinElementSize float64
	// HandleSize is the hit size of resize grips in screen pixels.
	HandleSize float64
	// ZoomSpeed scales ctrl+wheel deltas into a zoom factor.
	ZoomSpeed float64
	// NudgeStep and NudgeStepLarge are arrow-key moves in document pixels.
	NudgeStep      float64
	NudgeStepLarge float64
	Snap           vector.SnapOptions
	SnapEnabled    bool
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		DragThreshold:  3,
		MarqueeMinSize: 4,
		AnchorSnap:     0.05,
		MinElementSize: 4,
		HandleSize:     8,
		ZoomSpeed:      0.002,
		NudgeStep:      1,
		NudgeStepLarge: 10,
		Snap:           vector.SnapOptions{Threshold: 6, SnapToEdges: true, SnapToCenters: true},
	}
}

// Overlay is what the canvas chrome draws for the current gesture.
type Overlay struct {
	State   State
	Marquee vector.Rect // screen space, empty unless marquee selecting
	Bounds  vector.Rect // selection bounds in screen space
	Anchor  vector.Pt   // anchor point in screen space
	Guides  []vector.Guide
	Cloning bool
}
