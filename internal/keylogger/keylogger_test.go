package keylogger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordlog/internal/keys"
	"wordlog/internal/metrics"
	"wordlog/internal/recorder"
)

// syncBuffer is a bytes.Buffer safe for one writer and concurrent readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	out    *syncBuffer
	src    *SimulatedSource
	kl     *KeyLogger
	cancel context.CancelFunc
	done   chan error
}

func startHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		out:  &syncBuffer{},
		src:  NewSimulated(),
		done: make(chan error, 1),
	}
	rec := recorder.New(h.out)
	h.kl = New(rec, h.src, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.kl.Run(ctx) }()

	select {
	case <-h.kl.Ready():
	case err := <-h.done:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("listeners never registered")
	}
	t.Cleanup(cancel)
	return h
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunTypesWord(t *testing.T) {
	h := startHarness(t)

	for _, k := range []keys.Keycode{keys.H, keys.E, keys.L, keys.L, keys.O, keys.Enter} {
		h.src.Tap(k)
	}
	h.stop(t)

	assert.Equal(t, "{\"line\":\"hello\"}\n", h.out.String())
}

func TestRunRegistersTwoListeners(t *testing.T) {
	h := startHarness(t)

	down, up := h.src.Listeners()
	assert.Equal(t, 2, down+up)
	assert.Equal(t, 1, down)
	assert.Equal(t, 1, up)

	h.stop(t)
	down, up = h.src.Listeners()
	assert.Equal(t, 0, down+up, "listeners released on stop")
}

func TestOnlyShiftReleasesAreForwarded(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	h := startHarness(t, WithObserver(func(ev recorder.Event) {
		mu.Lock()
		seen = append(seen, ev.String())
		mu.Unlock()
	}))

	h.src.Tap(keys.A)
	h.src.Tap(keys.LShift)
	h.src.Release(keys.Enter)
	h.src.Release(keys.RShift)
	h.stop(t)

	assert.Equal(t, []string{"down A", "down LShift", "up LShift", "up RShift"}, seen)
}

func TestTwoProducersChronologicalOrder(t *testing.T) {
	type step struct {
		producer int // 0 presses keys, 1 releases shift
		key      keys.Keycode
	}
	timeline := []step{
		{0, keys.H},
		{1, keys.LShift},
		{0, keys.I},
		{0, keys.Key1},
		{1, keys.RShift},
		{0, keys.Key1},
		{0, keys.Enter},
	}

	applied := make(chan recorder.Event, len(timeline))
	h := startHarness(t, WithObserver(func(ev recorder.Event) {
		applied <- ev
	}))

	turns := [2]chan keys.Keycode{make(chan keys.Keycode), make(chan keys.Keycode)}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for k := range turns[0] {
			h.src.Press(k)
		}
	}()
	go func() {
		defer wg.Done()
		for k := range turns[1] {
			h.src.Release(k)
		}
	}()

	var order []recorder.Event
	for _, st := range timeline {
		turns[st.producer] <- st.key
		select {
		case ev := <-applied:
			order = append(order, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("event %s never applied", st.key)
		}
	}
	close(turns[0])
	close(turns[1])
	wg.Wait()
	h.stop(t)

	require.Len(t, order, len(timeline))
	for i, st := range timeline {
		assert.Equal(t, st.key, order[i].Key, "position %d", i)
		wantKind := recorder.KeyDown
		if st.producer == 1 {
			wantKind = recorder.KeyUp
		}
		assert.Equal(t, wantKind, order[i].Kind, "position %d", i)
	}
	assert.Equal(t, "{\"line\":\"hI!1\"}\n", h.out.String())
}

func TestRecordKeyNeverOverlaps(t *testing.T) {
	var inFlight, maxInFlight, count atomic.Int64
	h := startHarness(t, WithObserver(func(ev recorder.Event) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		count.Add(1)
		inFlight.Add(-1)
	}))

	var wg sync.WaitGroup
	for p := 0; p < 6; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if p%2 == 0 {
					h.src.Press(keys.X)
				} else {
					h.src.Release(keys.LShift)
				}
			}
		}(p)
	}
	wg.Wait()
	h.stop(t)

	assert.Equal(t, int64(1200), count.Load())
	assert.Equal(t, int64(1), maxInFlight.Load())
}

func TestStopDrainsQueuedEvents(t *testing.T) {
	var count atomic.Int64
	m := metrics.NewWordlogMetrics(nil)
	h := startHarness(t, WithMetrics(m), WithObserver(func(recorder.Event) {
		count.Add(1)
	}))

	for i := 0; i < 500; i++ {
		h.src.Press(keys.Z)
	}
	h.src.Press(keys.Enter)
	h.stop(t)

	assert.Equal(t, int64(501), count.Load())
	assert.Equal(t, int64(0), m.QueueDepth.Value())
	assert.Equal(t, "{\"line\":\""+strings.Repeat("z", 500)+"\"}\n", h.out.String())
}

func TestPressAfterStopIsDropped(t *testing.T) {
	m := metrics.NewWordlogMetrics(nil)
	h := startHarness(t, WithMetrics(m))

	h.stop(t)

	// A source may still fire a callback it snapshotted before release.
	h.kl.onKeyDown(keys.A)

	assert.Equal(t, uint64(1), m.EventsDropped.Value())
}

func TestRunTwice(t *testing.T) {
	h := startHarness(t)
	err := h.kl.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	h.stop(t)
}

// failingSource refuses key-up registrations.
type failingSource struct {
	*SimulatedSource
}

func (f failingSource) OnKeyUp(fn func(keys.Keycode)) (Guard, error) {
	return nil, errors.New("no key-up hook")
}

func TestRunRegistrationFailure(t *testing.T) {
	src := failingSource{NewSimulated()}
	kl := New(recorder.New(&bytes.Buffer{}), src)

	err := kl.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key-up hook")

	down, up := src.Listeners()
	assert.Equal(t, 0, down+up, "successful registration released")
}

func TestUnexpectedQueueCloseStopsRun(t *testing.T) {
	h := startHarness(t)

	h.kl.q.close()
	h.src.Press(keys.A)

	select {
	case err := <-h.done:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Run kept going after the queue closed")
	}
}

func TestPanicGuardWrapsConsumer(t *testing.T) {
	var wrapped atomic.Int32
	h := startHarness(t, WithPanicGuard(func(fn func()) {
		wrapped.Add(1)
		fn()
	}))

	h.src.Tap(keys.A)
	h.src.Tap(keys.Enter)
	h.stop(t)

	assert.Equal(t, int32(1), wrapped.Load())
	assert.Equal(t, "{\"line\":\"a\"}\n", h.out.String())
}
