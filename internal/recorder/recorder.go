// Package recorder rebuilds typed words from key events.
//
// A Recorder holds the word being typed and the shift state. Key presses
// append the character the key types, Backspace removes the last one and
// Enter commits the word to the sink as one JSON line. Shift toggles on
// release only; pressing shift does nothing.
package recorder

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"wordlog/internal/keys"
	"wordlog/internal/linelog"
	"wordlog/internal/metrics"
)

// Recorder is the word buffer. RecordKey is meant to be driven by a single
// consumer; the word is additionally guarded so readers such as Word may
// run alongside it.
type Recorder struct {
	sink io.Writer

	mu   sync.Mutex
	word []keys.Letter
	buf  []byte

	shift atomic.Bool

	logger  *slog.Logger
	metrics *metrics.WordlogMetrics
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics enables metric reporting.
func WithMetrics(m *metrics.WordlogMetrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// New creates a Recorder writing committed lines to sink.
func New(sink io.Writer, opts ...Option) *Recorder {
	r := &Recorder{
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "recorder")
	return r
}

// RecordKey applies one key event. It never fails: sink errors on commit
// are absorbed (see commit).
func (r *Recorder) RecordKey(ev Event) {
	if r.metrics != nil {
		r.metrics.KeysTotal.Inc()
	}

	if ev.Kind == KeyUp {
		if keys.IsShift(ev.Key) {
			r.toggleShift()
		}
		return
	}
	if ev.Kind != KeyDown {
		return
	}

	switch keys.Classify(ev.Key) {
	case keys.ClassShift:
		// Shift toggles on release.
	case keys.ClassReturn:
		r.commit()
	case keys.ClassBackspace:
		r.pop()
	default:
		r.push(keys.Resolve(ev.Key, r.shift.Load()))
	}
}

// toggleShift flips the shift flag exactly once, even if another goroutine
// toggles concurrently.
func (r *Recorder) toggleShift() {
	for {
		cur := r.shift.Load()
		if r.shift.CompareAndSwap(cur, !cur) {
			break
		}
	}
	if r.metrics != nil {
		r.metrics.ShiftToggles.Inc()
	}
}

func (r *Recorder) push(l keys.Letter) {
	if l.Empty() {
		if r.metrics != nil {
			r.metrics.SilentTotal.Inc()
		}
		return
	}

	r.mu.Lock()
	r.word = append(r.word, l)
	n := len(r.word)
	r.mu.Unlock()

	if r.metrics != nil {
		if l.Kind() == keys.Alphabet {
			r.metrics.LettersTotal.Inc()
		} else {
			r.metrics.SymbolsTotal.Inc()
		}
		r.metrics.WordLength.Set(int64(n))
	}
}

func (r *Recorder) pop() {
	r.mu.Lock()
	if len(r.word) > 0 {
		r.word = r.word[:len(r.word)-1]
	}
	n := len(r.word)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.BackspaceTotal.Inc()
		r.metrics.WordLength.Set(int64(n))
	}
}

// commit writes the word as one record and clears it. An empty word still
// produces {"line":""}.
//
// The write is best effort: a failed or short write is logged and counted
// but the word is cleared anyway, so a transient I/O error loses that line
// rather than stopping capture.
func (r *Recorder) commit() {
	start := time.Now()

	r.mu.Lock()
	text := joinLetters(r.word)
	r.word = r.word[:0]
	line, err := linelog.AppendRecord(r.buf[:0], text)
	if err == nil {
		r.buf = line
		_, err = r.sink.Write(line)
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.WordLength.Set(0)
		r.metrics.CommitDuration.ObserveDuration(time.Since(start))
	}

	if err != nil {
		if r.metrics != nil {
			r.metrics.WriteErrors.Inc()
		}
		r.logger.Warn("discarding line after failed write", "error", err, "chars", len(text))
		return
	}
	if r.metrics != nil {
		r.metrics.LinesCommitted.Inc()
	}
	r.logger.Debug("line committed", "chars", len(text))
}

// Word returns the text typed since the last commit.
func (r *Recorder) Word() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return joinLetters(r.word)
}

// Len returns the number of characters in the current word.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.word)
}

// Shift reports whether shift is currently active.
func (r *Recorder) Shift() bool {
	return r.shift.Load()
}

func joinLetters(word []keys.Letter) string {
	var b strings.Builder
	for _, l := range word {
		b.WriteString(l.String())
	}
	return b.String()
}
