package keys

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSymbols(t *testing.T) {
	tests := []struct {
		key     Keycode
		shift   bool
		want    string
		wantSym bool
	}{
		{Key1, false, "1", true},
		{Key1, true, "!", true},
		{Key0, true, ")", true},
		{Minus, false, "-", true},
		{Minus, true, "_", true},
		{Apostrophe, true, "\"", true},
		{BackSlash, false, "\\", true},
		{Space, false, " ", true},
		{Space, true, " ", true},
		{Numpad7, true, "7", true},
		{A, false, "a", false},
		{A, true, "A", false},
		{Z, false, "z", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			got := Resolve(tt.key, tt.shift)
			assert.Equal(t, tt.want, got.String())
			if tt.wantSym {
				assert.Equal(t, Symbol, got.Kind())
			} else {
				assert.Equal(t, Alphabet, got.Kind())
			}
		})
	}
}

func TestResolveSilentKeys(t *testing.T) {
	for _, k := range []Keycode{LControl, RControl, Up, Down, Left, Right, F5, Escape, CapsLock} {
		for _, shift := range []bool{false, true} {
			l := Resolve(k, shift)
			assert.True(t, l.Empty(), "%s shift=%v should type nothing", k, shift)
			assert.Equal(t, Symbol, l.Kind())
		}
	}
}

func TestResolveUnknownKeyFallsBackToName(t *testing.T) {
	l := Resolve(Keycode("Oem102"), false)
	assert.Equal(t, "oem102", l.String())
	assert.Equal(t, Alphabet, l.Kind())

	l = Resolve(Keycode("Oem102"), true)
	assert.Equal(t, "OEM102", l.String())
}

func TestLetterEqualityIgnoresKind(t *testing.T) {
	a := NewLetter("x", Alphabet)
	b := NewLetter("x", Symbol)
	c := NewLetter("y", Alphabet)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, 0, a.Compare(b))
	assert.Equal(t, -1, a.Compare(c))
	assert.Equal(t, 1, c.Compare(a))
}

func TestParse(t *testing.T) {
	k, err := Parse("lshift")
	require.NoError(t, err)
	assert.Equal(t, LShift, k)

	k, err = Parse(" a ")
	require.NoError(t, err)
	assert.Equal(t, A, k)

	k, err = Parse("KEY1")
	require.NoError(t, err)
	assert.Equal(t, Key1, k)

	_, err = Parse("hyper")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownKey))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassShift, Classify(LShift))
	assert.Equal(t, ClassShift, Classify(RShift))
	assert.Equal(t, ClassReturn, Classify(Enter))
	assert.Equal(t, ClassReturn, Classify(NumpadEnter))
	assert.Equal(t, ClassBackspace, Classify(Backspace))
	assert.Equal(t, ClassModifier, Classify(LControl))
	assert.Equal(t, ClassNavigation, Classify(Left))
	assert.Equal(t, ClassFunction, Classify(F12))
	assert.Equal(t, ClassCharacter, Classify(Q))
	assert.Equal(t, ClassCharacter, Classify(Keycode("Oem102")))
	assert.Equal(t, "navigation", ClassNavigation.String())
}

func TestIsShift(t *testing.T) {
	assert.True(t, IsShift(LShift))
	assert.True(t, IsShift(RShift))
	assert.False(t, IsShift(LControl))
	assert.False(t, IsShift(A))
}

func TestLookupRoundTrip(t *testing.T) {
	for _, r := range "hello WORLD 0123456789 !@#$%^&*() -_=+[]{};:'\",.<>/?\\|`~\t" {
		key, shift, ok := Lookup(r)
		require.True(t, ok, "rune %q", r)
		assert.Equal(t, string(r), Resolve(key, shift).String(), "rune %q via %s shift=%v", r, key, shift)
	}

	_, _, ok := Lookup('é')
	assert.False(t, ok)
}

func TestAllSortedAndParsable(t *testing.T) {
	all := All()
	require.NotEmpty(t, all)
	for i, k := range all {
		if i > 0 {
			assert.Less(t, string(all[i-1]), string(k))
		}
		parsed, err := Parse(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}
