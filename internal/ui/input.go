/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"

	"pagecraft/internal/interact"
	"pagecraft/internal/vector"
)

// Key translates a fyne key name into the editor's key vocabulary.
func Key(k fyne.KeyName) string {
	switch k {
	case fyne.KeyEscape:
		return "escape"
	case fyne.KeyDelete:
		return "delete"
	case fyne.KeyBackspace:
		return "backspace"
	case fyne.KeyLeft:
		return "left"
	case fyne.KeyRight:
		return "right"
	case fyne.KeyUp:
		return "up"
	case fyne.KeyDown:
		return "down"
	case fyne.KeySpace:
		return "space"
	}
	return strings.ToLower(string(k))
}

// Modifiers translates fyne modifier flags.
func Modifiers(m fyne.KeyModifier) interact.Modifiers {
	var out interact.Modifiers
	if m&fyne.KeyModifierShift != 0 {
		out |= interact.ModShift
	}
	if m&fyne.KeyModifierControl != 0 {
		out |= interact.ModCtrl
	}
	if m&fyne.KeyModifierAlt != 0 {
		out |= interact.ModAlt
	}
	if m&fyne.KeyModifierSuper != 0 {
		out |= interact.ModSuper
	}
	return out
}

// modifierKey reports the modifier a key itself stands for.
func modifierKey(k fyne.KeyName) interact.Modifiers {
	switch k {
	case desktop.KeyShiftLeft, desktop.KeyShiftRight:
		return interact.ModShift
	case desktop.KeyControlLeft, desktop.KeyControlRight:
		return interact.ModCtrl
	case desktop.KeyAltLeft, desktop.KeyAltRight:
		return interact.ModAlt
	case desktop.KeySuperLeft, desktop.KeySuperRight:
		return interact.ModSuper
	}
	return 0
}

// Button translates a desktop mouse button.
func Button(b desktop.MouseButton) interact.MouseButton {
	switch b {
	case desktop.MouseButtonPrimary:
		return interact.MouseButtonLeft
	case desktop.MouseButtonTertiary:
		return interact.MouseButtonMiddle
	case desktop.MouseButtonSecondary:
		return interact.MouseButtonRight
	}
	return interact.MouseButtonNone
}

// Point converts a widget-relative position.
func Point(p fyne.Position) vector.Pt { return vector.Pt{X: float64(p.X), Y: float64(p.Y)} }

// Pointer builds the engine event of a desktop mouse event.
func Pointer(ev *desktop.MouseEvent) interact.PointerEvent {
	return interact.PointerEvent{Pos: Point(ev.Position), Button: Button(ev.Button), Modifiers: Modifiers(ev.Modifier)}
}

// keyTracker follows held modifiers and the space bar from key up/down
// events; fyne reports no modifier state with plain key events.
type keyTracker struct {
	mods  interact.Modifiers
	space bool
}

// down records k and reports whether it was a modifier or space.
func (t *keyTracker) down(k fyne.KeyName) bool {
	if m := modifierKey(k); m != 0 {
		t.mods |= m
		return true
	}
	if k == fyne.KeySpace {
		t.space = true
		return true
	}
	return false
}

func (t *keyTracker) up(k fyne.KeyName) bool {
	if m := modifierKey(k); m != 0 {
		t.mods &^= m
		return true
	}
	if k == fyne.KeySpace {
		t.space = false
		return true
	}
	return false
}
