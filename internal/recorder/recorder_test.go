package recorder

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordlog/internal/keys"
	"wordlog/internal/linelog"
	"wordlog/internal/metrics"
)

// failingWriter fails every write.
type failingWriter struct {
	calls int
}

func (f *failingWriter) Write(p []byte) (int, error) {
	f.calls++
	return 0, errors.New("disk full")
}

func press(r *Recorder, ks ...keys.Keycode) {
	for _, k := range ks {
		r.RecordKey(Down(k))
	}
}

func TestHelloRoundTrip(t *testing.T) {
	var out bytes.Buffer
	r := New(&out)

	press(r, keys.H, keys.E, keys.L, keys.L, keys.O, keys.Enter)

	assert.Equal(t, "{\"line\":\"hello\"}\n", out.String())
	assert.Equal(t, "", r.Word())
}

func TestShiftDownIsNoOp(t *testing.T) {
	var out bytes.Buffer
	r := New(&out)

	r.RecordKey(Down(keys.LShift))
	r.RecordKey(Down(keys.A))
	r.RecordKey(Up(keys.LShift))
	r.RecordKey(Down(keys.Enter))

	assert.Equal(t, "{\"line\":\"a\"}\n", out.String())
	assert.True(t, r.Shift(), "the release toggled shift on")
}

func TestShiftToggledBeforeTyping(t *testing.T) {
	var out bytes.Buffer
	r := New(&out)

	// shift-down, 1, a, shift-up: characters resolve before the toggle.
	r.RecordKey(Down(keys.LShift))
	press(r, keys.Key1, keys.A)
	r.RecordKey(Up(keys.LShift))
	press(r, keys.Enter)

	assert.Equal(t, "{\"line\":\"1a\"}\n", out.String())
	assert.True(t, r.Shift(), "the trailing release leaves shift on")

	// On a fresh recorder a release first turns shift on for both keys.
	out.Reset()
	r = New(&out)
	r.RecordKey(Up(keys.LShift))
	press(r, keys.Key1, keys.A)
	r.RecordKey(Up(keys.LShift))
	press(r, keys.Enter)

	assert.Equal(t, "{\"line\":\"!A\"}\n", out.String())
	assert.False(t, r.Shift())
}

func TestShiftReadPerKey(t *testing.T) {
	r := New(&bytes.Buffer{})

	press(r, keys.H)
	r.RecordKey(Up(keys.RShift))
	press(r, keys.I, keys.Key2)
	r.RecordKey(Up(keys.LShift))
	press(r, keys.Key2)

	assert.Equal(t, "hI@2", r.Word())
}

func TestDoubleShiftReleaseRestoresState(t *testing.T) {
	for _, k := range []keys.Keycode{keys.LShift, keys.RShift} {
		r := New(&bytes.Buffer{})
		require.False(t, r.Shift())
		r.RecordKey(Up(k))
		r.RecordKey(Up(k))
		assert.False(t, r.Shift(), k)
	}
}

func TestBackspace(t *testing.T) {
	r := New(&bytes.Buffer{})

	press(r, keys.Backspace)
	assert.Equal(t, "", r.Word(), "backspace on empty word")
	assert.Equal(t, 0, r.Len())

	press(r, keys.C, keys.A, keys.T, keys.Backspace, keys.R)
	assert.Equal(t, "car", r.Word())

	press(r, keys.Backspace, keys.Backspace, keys.Backspace, keys.Backspace)
	assert.Equal(t, "", r.Word())
}

func TestEmptyCommitIsWritten(t *testing.T) {
	var out bytes.Buffer
	r := New(&out)

	press(r, keys.Enter, keys.NumpadEnter)

	assert.Equal(t, "{\"line\":\"\"}\n{\"line\":\"\"}\n", out.String())
}

func TestSilentKeysNotAppended(t *testing.T) {
	r := New(&bytes.Buffer{})

	press(r, keys.LControl, keys.A, keys.Left, keys.RControl, keys.Up, keys.B,
		keys.Down, keys.Right, keys.F4, keys.Escape, keys.CapsLock)

	assert.Equal(t, "ab", r.Word())
	assert.Equal(t, 2, r.Len())
}

func TestKeyUpIgnored(t *testing.T) {
	r := New(&bytes.Buffer{})

	press(r, keys.X)
	r.RecordKey(Up(keys.X))
	r.RecordKey(Up(keys.Enter))
	r.RecordKey(Up(keys.Backspace))
	r.RecordKey(Event{Kind: 0, Key: keys.Y})

	assert.Equal(t, "x", r.Word())
	assert.False(t, r.Shift())
}

func TestWordIsConcatenationOfResolvedKeys(t *testing.T) {
	seq := []keys.Keycode{keys.G, keys.O, keys.Space, keys.Key4, keys.Dot, keys.Slash, keys.Minus, keys.Z}
	r := New(&bytes.Buffer{})
	press(r, seq...)

	var want strings.Builder
	for _, k := range seq {
		want.WriteString(keys.Resolve(k, false).String())
	}
	assert.Equal(t, want.String(), r.Word())
}

func TestCommitEscapesJSON(t *testing.T) {
	var out bytes.Buffer
	r := New(&out)

	r.RecordKey(Up(keys.LShift))
	press(r, keys.Apostrophe) // "
	r.RecordKey(Up(keys.LShift))
	press(r, keys.BackSlash, keys.Enter)

	require.NoError(t, linelog.ValidateLine(out.Bytes()))
	rec, err := linelog.Decode(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, `"\`, rec.Line)
}

func TestWriteFailureClearsWord(t *testing.T) {
	w := &failingWriter{}
	m := metrics.NewWordlogMetrics(nil)
	r := New(w, WithMetrics(m))

	press(r, keys.O, keys.K, keys.Enter)

	assert.Equal(t, 1, w.calls)
	assert.Equal(t, "", r.Word())
	assert.Equal(t, uint64(1), m.WriteErrors.Value())
	assert.Equal(t, uint64(0), m.LinesCommitted.Value())

	press(r, keys.N, keys.O)
	assert.Equal(t, "no", r.Word())
}

func TestMetricsCounts(t *testing.T) {
	m := metrics.NewWordlogMetrics(nil)
	r := New(&bytes.Buffer{}, WithMetrics(m))

	press(r, keys.A, keys.Key1, keys.Left, keys.Backspace)
	r.RecordKey(Up(keys.LShift))
	press(r, keys.Enter)

	assert.Equal(t, uint64(6), m.KeysTotal.Value())
	assert.Equal(t, uint64(1), m.LettersTotal.Value())
	assert.Equal(t, uint64(1), m.SymbolsTotal.Value())
	assert.Equal(t, uint64(1), m.SilentTotal.Value())
	assert.Equal(t, uint64(1), m.BackspaceTotal.Value())
	assert.Equal(t, uint64(1), m.ShiftToggles.Value())
	assert.Equal(t, uint64(1), m.LinesCommitted.Value())
	assert.Equal(t, int64(0), m.WordLength.Value())
}

func TestConcurrentShiftToggles(t *testing.T) {
	r := New(&bytes.Buffer{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				r.RecordKey(Up(keys.LShift))
			}
		}()
	}
	wg.Wait()

	// 8000 toggles cancel out.
	assert.False(t, r.Shift())

	r.RecordKey(Up(keys.RShift))
	assert.True(t, r.Shift())
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "down A", Down(keys.A).String())
	assert.Equal(t, "up LShift", Up(keys.LShift).String())
	assert.Equal(t, "unknown", EventKind(9).String())
}
