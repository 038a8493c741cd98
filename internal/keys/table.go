package keys

import (
	"strings"
)

// Kind records how a Letter was derived.
type Kind uint8

const (
	// Alphabet letters come from the key name when the table has no entry.
	Alphabet Kind = iota
	// Symbol letters come from the symbol table.
	Symbol
)

// Letter is the text a key typed. Equality, ordering and display use the
// text only; Kind is provenance.
type Letter struct {
	text string
	kind Kind
}

// NewLetter returns a Letter holding text.
func NewLetter(text string, kind Kind) Letter {
	return Letter{text: text, kind: kind}
}

// String returns the letter's text.
func (l Letter) String() string { return l.text }

// Kind returns how the letter was derived.
func (l Letter) Kind() Kind { return l.kind }

// Empty reports whether the letter types nothing visible.
func (l Letter) Empty() bool { return l.text == "" }

// Equal compares letters by text.
func (l Letter) Equal(other Letter) bool { return l.text == other.text }

// Compare orders letters by text, returning -1, 0 or +1.
func (l Letter) Compare(other Letter) int { return strings.Compare(l.text, other.text) }

// Tables are built once at init and never written again.
var (
	unshifted = newTable(false)
	shifted   = newTable(true)
)

// silent keys type nothing in either shift state.
var silent = []Keycode{
	LControl, RControl, LAlt, RAlt, LMeta, RMeta, CapsLock,
	Up, Down, Left, Right, Home, End, PageUp, PageDown,
	Delete, Insert, Escape,
	F1, F2, F3, F4, F5, F6, F7, F8, F9, F10, F11, F12,
}

func newTable(shift bool) map[Keycode]string {
	pick := func(lower, upper string) string {
		if shift {
			return upper
		}
		return lower
	}

	t := map[Keycode]string{
		Grave:        pick("`", "~"),
		Minus:        pick("-", "_"),
		Equal:        pick("=", "+"),
		LeftBracket:  pick("[", "{"),
		RightBracket: pick("]", "}"),
		BackSlash:    pick("\\", "|"),
		Semicolon:    pick(";", ":"),
		Apostrophe:   pick("'", "\""),
		Comma:        pick(",", "<"),
		Dot:          pick(".", ">"),
		Slash:        pick("/", "?"),
		Space:        " ",
		Tab:          "\t",

		Key0: pick("0", ")"),
		Key1: pick("1", "!"),
		Key2: pick("2", "@"),
		Key3: pick("3", "#"),
		Key4: pick("4", "$"),
		Key5: pick("5", "%"),
		Key6: pick("6", "^"),
		Key7: pick("7", "&"),
		Key8: pick("8", "*"),
		Key9: pick("9", "("),

		Numpad0:        "0",
		Numpad1:        "1",
		Numpad2:        "2",
		Numpad3:        "3",
		Numpad4:        "4",
		Numpad5:        "5",
		Numpad6:        "6",
		Numpad7:        "7",
		Numpad8:        "8",
		Numpad9:        "9",
		NumpadAdd:      "+",
		NumpadSubtract: "-",
		NumpadMultiply: "*",
		NumpadDivide:   "/",
		NumpadDecimal:  ".",
		NumpadEquals:   "=",
	}
	for _, k := range silent {
		t[k] = ""
	}
	return t
}

// Resolve returns the text key types under the given shift state.
//
// Keys with a table entry resolve to a Symbol, possibly empty for
// navigation and modifier keys. Any other key resolves to its own name as
// an Alphabet letter, upper-cased when shift is active and lower-cased
// otherwise.
func Resolve(key Keycode, shift bool) Letter {
	table := unshifted
	if shift {
		table = shifted
	}
	if text, ok := table[key]; ok {
		return Letter{text: text, kind: Symbol}
	}
	if shift {
		return Letter{text: strings.ToUpper(string(key)), kind: Alphabet}
	}
	return Letter{text: strings.ToLower(string(key)), kind: Alphabet}
}

// Lookup returns the key and shift state that type r, for replaying text.
// Only printable ASCII and tab are covered.
func Lookup(r rune) (key Keycode, shift bool, ok bool) {
	if r >= 'a' && r <= 'z' {
		return Keycode(strings.ToUpper(string(r))), false, true
	}
	if r >= 'A' && r <= 'Z' {
		return Keycode(string(r)), true, true
	}
	s := string(r)
	if k, found := reverseUnshifted[s]; found {
		return k, false, true
	}
	if k, found := reverseShifted[s]; found {
		return k, true, true
	}
	return "", false, false
}

var (
	reverseUnshifted = reverse(unshifted)
	reverseShifted   = reverse(shifted)
)

// reverse inverts a table, preferring main-block keys over the keypad.
func reverse(t map[Keycode]string) map[string]Keycode {
	out := make(map[string]Keycode, len(t))
	for k, text := range t {
		if text == "" {
			continue
		}
		if prev, ok := out[text]; ok && !strings.HasPrefix(string(prev), "Numpad") {
			continue
		}
		out[text] = k
	}
	return out
}
