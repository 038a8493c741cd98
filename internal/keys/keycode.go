// Package keys maps raw key identifiers to the text they type.
//
// A Keycode names a physical key ("A", "Key1", "LShift", "Enter") and is
// independent of what the key types. Resolve turns a Keycode into a Letter
// under a given shift state using a fixed US-QWERTY table.
package keys

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Keycode identifies a physical key by name.
type Keycode string

// Letter keys. They have no table entry and resolve through their name.
const (
	A Keycode = "A"
	B Keycode = "B"
	C Keycode = "C"
	D Keycode = "D"
	E Keycode = "E"
	F Keycode = "F"
	G Keycode = "G"
	H Keycode = "H"
	I Keycode = "I"
	J Keycode = "J"
	K Keycode = "K"
	L Keycode = "L"
	M Keycode = "M"
	N Keycode = "N"
	O Keycode = "O"
	P Keycode = "P"
	Q Keycode = "Q"
	R Keycode = "R"
	S Keycode = "S"
	T Keycode = "T"
	U Keycode = "U"
	V Keycode = "V"
	W Keycode = "W"
	X Keycode = "X"
	Y Keycode = "Y"
	Z Keycode = "Z"
)

// Digit row.
const (
	Key0 Keycode = "Key0"
	Key1 Keycode = "Key1"
	Key2 Keycode = "Key2"
	Key3 Keycode = "Key3"
	Key4 Keycode = "Key4"
	Key5 Keycode = "Key5"
	Key6 Keycode = "Key6"
	Key7 Keycode = "Key7"
	Key8 Keycode = "Key8"
	Key9 Keycode = "Key9"
)

// Punctuation and whitespace.
const (
	Grave        Keycode = "Grave"
	Minus        Keycode = "Minus"
	Equal        Keycode = "Equal"
	LeftBracket  Keycode = "LeftBracket"
	RightBracket Keycode = "RightBracket"
	BackSlash    Keycode = "BackSlash"
	Semicolon    Keycode = "Semicolon"
	Apostrophe   Keycode = "Apostrophe"
	Comma        Keycode = "Comma"
	Dot          Keycode = "Dot"
	Slash        Keycode = "Slash"
	Space        Keycode = "Space"
	Tab          Keycode = "Tab"
)

// Editing and line keys.
const (
	Enter       Keycode = "Enter"
	NumpadEnter Keycode = "NumpadEnter"
	Backspace   Keycode = "Backspace"
	Delete      Keycode = "Delete"
	Insert      Keycode = "Insert"
	Escape      Keycode = "Escape"
)

// Modifiers.
const (
	LShift   Keycode = "LShift"
	RShift   Keycode = "RShift"
	LControl Keycode = "LControl"
	RControl Keycode = "RControl"
	LAlt     Keycode = "LAlt"
	RAlt     Keycode = "RAlt"
	LMeta    Keycode = "LMeta"
	RMeta    Keycode = "RMeta"
	CapsLock Keycode = "CapsLock"
)

// Navigation.
const (
	Up       Keycode = "Up"
	Down     Keycode = "Down"
	Left     Keycode = "Left"
	Right    Keycode = "Right"
	Home     Keycode = "Home"
	End      Keycode = "End"
	PageUp   Keycode = "PageUp"
	PageDown Keycode = "PageDown"
)

// Function keys.
const (
	F1  Keycode = "F1"
	F2  Keycode = "F2"
	F3  Keycode = "F3"
	F4  Keycode = "F4"
	F5  Keycode = "F5"
	F6  Keycode = "F6"
	F7  Keycode = "F7"
	F8  Keycode = "F8"
	F9  Keycode = "F9"
	F10 Keycode = "F10"
	F11 Keycode = "F11"
	F12 Keycode = "F12"
)

// Keypad.
const (
	Numpad0        Keycode = "Numpad0"
	Numpad1        Keycode = "Numpad1"
	Numpad2        Keycode = "Numpad2"
	Numpad3        Keycode = "Numpad3"
	Numpad4        Keycode = "Numpad4"
	Numpad5        Keycode = "Numpad5"
	Numpad6        Keycode = "Numpad6"
	Numpad7        Keycode = "Numpad7"
	Numpad8        Keycode = "Numpad8"
	Numpad9        Keycode = "Numpad9"
	NumpadAdd      Keycode = "NumpadAdd"
	NumpadSubtract Keycode = "NumpadSubtract"
	NumpadMultiply Keycode = "NumpadMultiply"
	NumpadDivide   Keycode = "NumpadDivide"
	NumpadDecimal  Keycode = "NumpadDecimal"
	NumpadEquals   Keycode = "NumpadEquals"
)

// Class categorizes a key by how the word buffer treats it.
type Class int

const (
	ClassUnknown    Class = iota
	ClassCharacter        // letters, digits, punctuation, whitespace
	ClassBackspace        // removes the last character
	ClassReturn           // Enter, keypad Enter
	ClassShift            // left and right shift
	ClassModifier         // control, alt, meta, caps lock
	ClassNavigation       // arrows, home/end, page up/down
	ClassFunction         // F1-F12
	ClassEditing          // delete, insert, escape
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassCharacter:
		return "character"
	case ClassBackspace:
		return "backspace"
	case ClassReturn:
		return "return"
	case ClassShift:
		return "shift"
	case ClassModifier:
		return "modifier"
	case ClassNavigation:
		return "navigation"
	case ClassFunction:
		return "function"
	case ClassEditing:
		return "editing"
	default:
		return "unknown"
	}
}

// ErrUnknownKey is returned by Parse for names outside the key set.
var ErrUnknownKey = errors.New("keys: unknown key name")

// known maps the lower-cased key name to its Keycode and class.
var known = func() map[string]keyInfo {
	m := make(map[string]keyInfo)
	add := func(class Class, codes ...Keycode) {
		for _, k := range codes {
			m[strings.ToLower(string(k))] = keyInfo{code: k, class: class}
		}
	}

	add(ClassCharacter, A, B, C, D, E, F, G, H, I, J, K, L, M, N, O, P, Q, R, S, T, U, V, W, X, Y, Z)
	add(ClassCharacter, Key0, Key1, Key2, Key3, Key4, Key5, Key6, Key7, Key8, Key9)
	add(ClassCharacter, Grave, Minus, Equal, LeftBracket, RightBracket, BackSlash,
		Semicolon, Apostrophe, Comma, Dot, Slash, Space, Tab)
	add(ClassCharacter, Numpad0, Numpad1, Numpad2, Numpad3, Numpad4, Numpad5, Numpad6,
		Numpad7, Numpad8, Numpad9, NumpadAdd, NumpadSubtract, NumpadMultiply,
		NumpadDivide, NumpadDecimal, NumpadEquals)
	add(ClassReturn, Enter, NumpadEnter)
	add(ClassBackspace, Backspace)
	add(ClassEditing, Delete, Insert, Escape)
	add(ClassShift, LShift, RShift)
	add(ClassModifier, LControl, RControl, LAlt, RAlt, LMeta, RMeta, CapsLock)
	add(ClassNavigation, Up, Down, Left, Right, Home, End, PageUp, PageDown)
	add(ClassFunction, F1, F2, F3, F4, F5, F6, F7, F8, F9, F10, F11, F12)

	return m
}()

type keyInfo struct {
	code  Keycode
	class Class
}

// Parse returns the Keycode for a key name. Matching ignores case.
func Parse(name string) (Keycode, error) {
	info, ok := known[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
	return info.code, nil
}

// Classify returns the class of a key. Keys outside the known set are
// treated as characters, since the table falls back to their name.
func Classify(k Keycode) Class {
	if info, ok := known[strings.ToLower(string(k))]; ok {
		return info.class
	}
	return ClassCharacter
}

// IsShift reports whether k is the left or right shift key.
func IsShift(k Keycode) bool {
	return k == LShift || k == RShift
}

// All returns every known Keycode sorted by name.
func All() []Keycode {
	out := make([]Keycode, 0, len(known))
	for _, info := range known {
		out = append(out, info.code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String returns the key name.
func (k Keycode) String() string {
	return string(k)
}
