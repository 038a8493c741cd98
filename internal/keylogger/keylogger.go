// Package keylogger feeds key events from a Source into a Recorder.
//
// Two listeners run on their own goroutines: one forwards every key press,
// the other forwards shift releases only. Both push into a single unbounded
// queue, and one consumer applies events to the Recorder strictly in the
// order they were queued. The word is rebuilt correctly only because of
// this single-queue, single-consumer ordering.
package keylogger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"wordlog/internal/keys"
	"wordlog/internal/metrics"
	"wordlog/internal/recorder"
)

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("keylogger: already running")

// KeyLogger connects a Source to a Recorder.
type KeyLogger struct {
	rec *recorder.Recorder
	src Source
	q   *queue

	// mu serializes RecordKey.
	mu sync.Mutex

	logger   *slog.Logger
	metrics  *metrics.WordlogMetrics
	observer func(recorder.Event)
	guard    func(func())

	ready    chan struct{}
	running  atomic.Bool
	stopping atomic.Bool
	fatal    chan error
}

// Option configures a KeyLogger.
type Option func(*KeyLogger)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(k *KeyLogger) {
		if l != nil {
			k.logger = l
		}
	}
}

// WithMetrics enables queue metrics.
func WithMetrics(m *metrics.WordlogMetrics) Option {
	return func(k *KeyLogger) {
		k.metrics = m
	}
}

// WithObserver registers fn to run after each event is applied, while the
// recorder lock is still held.
func WithObserver(fn func(recorder.Event)) Option {
	return func(k *KeyLogger) {
		k.observer = fn
	}
}

// WithPanicGuard runs the consumer inside wrap, typically a crash
// handler's Recover.
func WithPanicGuard(wrap func(func())) Option {
	return func(k *KeyLogger) {
		k.guard = wrap
	}
}

// New creates a KeyLogger. Nothing is registered with src until Run.
func New(rec *recorder.Recorder, src Source, opts ...Option) *KeyLogger {
	k := &KeyLogger{
		rec:    rec,
		src:    src,
		q:      newQueue(),
		logger: slog.Default(),
		ready:  make(chan struct{}),
		fatal:  make(chan error, 1),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.logger = k.logger.With("component", "keylogger")
	return k
}

// Ready is closed once both listeners are registered with the source.
func (k *KeyLogger) Ready() <-chan struct{} {
	return k.ready
}

// Run registers the listeners and applies events until ctx is cancelled
// or the pipeline breaks.
//
// On cancellation the listeners are released, events already queued are
// applied, and Run returns nil. The word being typed is not committed.
// A failed registration, a send to a closed queue while running, or an
// unexpected queue closure is returned as an error.
func (k *KeyLogger) Run(ctx context.Context) error {
	if !k.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		listeners  sync.WaitGroup
		registered sync.WaitGroup
		regErr     = make(chan error, 2)
	)
	listeners.Add(2)
	registered.Add(2)
	go k.listen(ctx, "down", k.src.OnKeyDown, k.onKeyDown, &listeners, &registered, regErr)
	go k.listen(ctx, "up", k.src.OnKeyUp, k.onKeyUp, &listeners, &registered, regErr)

	registered.Wait()
	select {
	case err := <-regErr:
		cancel()
		listeners.Wait()
		return fmt.Errorf("register listener: %w", err)
	default:
	}
	close(k.ready)
	k.logger.Info("listening for key events")

	consumed := make(chan error, 1)
	go func() {
		if k.guard == nil {
			consumed <- k.consume()
			return
		}
		k.guard(func() { consumed <- k.consume() })
	}()

	select {
	case <-ctx.Done():
	case err := <-k.fatal:
		k.shutdown(cancel, &listeners)
		<-consumed
		return err
	case err := <-consumed:
		// The consumer only returns once the queue is closed, and nothing
		// closes it before shutdown.
		cancel()
		listeners.Wait()
		return fmt.Errorf("consumer stopped: %w", err)
	}

	k.shutdown(cancel, &listeners)
	if err := <-consumed; err != nil && !errors.Is(err, ErrQueueClosed) {
		return err
	}
	k.logger.Info("stopped", "pending_chars", k.rec.Len())
	return nil
}

func (k *KeyLogger) shutdown(cancel context.CancelFunc, listeners *sync.WaitGroup) {
	k.stopping.Store(true)
	cancel()
	listeners.Wait()
	k.q.close()
}

// listen holds one registration until ctx is done.
func (k *KeyLogger) listen(
	ctx context.Context,
	name string,
	register func(func(keys.Keycode)) (Guard, error),
	fn func(keys.Keycode),
	listeners, registered *sync.WaitGroup,
	regErr chan<- error,
) {
	defer listeners.Done()

	guard, err := register(fn)
	if err != nil {
		regErr <- fmt.Errorf("%s: %w", name, err)
		registered.Done()
		return
	}
	registered.Done()

	<-ctx.Done()
	guard.Release()
	k.logger.Debug("listener released", "listener", name)
}

func (k *KeyLogger) onKeyDown(key keys.Keycode) {
	k.enqueue(recorder.Down(key))
}

func (k *KeyLogger) onKeyUp(key keys.Keycode) {
	if !keys.IsShift(key) {
		return
	}
	k.enqueue(recorder.Up(key))
}

func (k *KeyLogger) enqueue(ev recorder.Event) {
	err := k.q.send(ev)
	if err == nil {
		if k.metrics != nil {
			k.metrics.QueueDepth.Inc()
		}
		return
	}

	if k.stopping.Load() {
		if k.metrics != nil {
			k.metrics.EventsDropped.Inc()
		}
		return
	}

	// A lost event silently corrupts the word, so the pipeline stops.
	k.logger.Error("event lost", "event", ev.Kind.String(), "error", err)
	select {
	case k.fatal <- fmt.Errorf("enqueue %s event: %w", ev.Kind, err):
	default:
	}
}

func (k *KeyLogger) consume() error {
	for {
		ev, err := k.q.recv()
		if err != nil {
			return err
		}
		if k.metrics != nil {
			k.metrics.QueueDepth.Dec()
		}

		k.mu.Lock()
		k.rec.RecordKey(ev)
		if k.observer != nil {
			k.observer(ev)
		}
		k.mu.Unlock()
	}
}
