package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// WordlogMetrics holds the metrics reported by the recorder and dispatcher.
type WordlogMetrics struct {
	registry *Registry

	KeysTotal      *Counter
	LettersTotal   *Counter
	SymbolsTotal   *Counter
	SilentTotal    *Counter
	BackspaceTotal *Counter
	ShiftToggles   *Counter
	LinesCommitted *Counter
	WriteErrors    *Counter
	EventsDropped  *Counter

	QueueDepth    *Gauge
	WordLength    *Gauge
	UptimeSeconds *Gauge

	CommitDuration *Histogram

	started time.Time
	routes  map[string]http.Handler
}

// NewWordlogMetrics registers the wordlog metrics in registry. A nil
// registry gets a fresh one under the "wordlog" namespace.
func NewWordlogMetrics(registry *Registry) *WordlogMetrics {
	if registry == nil {
		registry = NewRegistry("wordlog")
	}

	return &WordlogMetrics{
		registry: registry,

		KeysTotal:      registry.Counter("keys_total", "Key events applied to the word buffer", nil),
		LettersTotal:   registry.Counter("letters_total", "Alphabetic characters appended", nil),
		SymbolsTotal:   registry.Counter("symbols_total", "Symbol characters appended", nil),
		SilentTotal:    registry.Counter("silent_keys_total", "Key presses that typed nothing", nil),
		BackspaceTotal: registry.Counter("backspaces_total", "Backspace presses", nil),
		ShiftToggles:   registry.Counter("shift_toggles_total", "Shift state toggles", nil),
		LinesCommitted: registry.Counter("lines_committed_total", "Lines committed to the sink", nil),
		WriteErrors:    registry.Counter("write_errors_total", "Commits whose sink write failed and was discarded", nil),
		EventsDropped:  registry.Counter("events_dropped_total", "Events delivered after shutdown was requested", nil),

		QueueDepth:    registry.Gauge("queue_depth", "Events waiting for the consumer", nil),
		WordLength:    registry.Gauge("word_length", "Characters in the word being typed", nil),
		UptimeSeconds: registry.Gauge("uptime_seconds", "Seconds since the metrics were created", nil),

		CommitDuration: registry.Histogram("commit_duration_seconds", "Time spent writing a committed line", nil, nil),

		started: time.Now(),
	}
}

// Handle adds a route served next to /metrics. Call before Serve.
func (m *WordlogMetrics) Handle(pattern string, h http.Handler) {
	if m.routes == nil {
		m.routes = make(map[string]http.Handler)
	}
	m.routes[pattern] = h
}

// Registry returns the underlying registry.
func (m *WordlogMetrics) Registry() *Registry {
	return m.registry
}

// UpdateUptime refreshes the uptime gauge.
func (m *WordlogMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(int64(time.Since(m.started).Seconds()))
}

// Serve exposes the registry at /metrics on addr until ctx is cancelled.
func (m *WordlogMetrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return m.serve(ctx, ln)
}

func (m *WordlogMetrics) serve(ctx context.Context, ln net.Listener) error {
	handler := m.registry.HTTPHandler()

	mux := http.NewServeMux()
	mux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.UpdateUptime()
		handler.ServeHTTP(w, r)
	}))
	for pattern, h := range m.routes {
		mux.Handle(pattern, h)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
