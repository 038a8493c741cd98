package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"
)

// CrashReport describes a recovered panic.
type CrashReport struct {
	Timestamp    time.Time `json:"timestamp"`
	Version      string    `json:"version"`
	Component    string    `json:"component,omitempty"`
	GOOS         string    `json:"goos"`
	GOARCH       string    `json:"goarch"`
	NumGoroutine int       `json:"num_goroutine"`
	PanicValue   string    `json:"panic_value"`
	StackTrace   string    `json:"stack_trace"`
}

// CrashHandler writes a JSON report for a panic before the process dies.
type CrashHandler struct {
	mu        sync.Mutex
	dir       string
	version   string
	component string
	stderr    io.Writer
}

// NewCrashHandler reports into dir.
func NewCrashHandler(dir, version, component string) *CrashHandler {
	return &CrashHandler{dir: dir, version: version, component: component, stderr: os.Stderr}
}

// Dir returns the report directory.
func (h *CrashHandler) Dir() string {
	return h.dir
}

// Recover runs fn. If fn panics a crash report is written and the panic is
// resumed, so the process still terminates.
func (h *CrashHandler) Recover(fn func()) {
	defer func() {
		if v := recover(); v != nil {
			h.HandlePanic(v)
			panic(v)
		}
	}()
	fn()
}

// HandlePanic records a crash report for v.
func (h *CrashHandler) HandlePanic(v any) CrashReport {
	h.mu.Lock()
	defer h.mu.Unlock()

	report := CrashReport{
		Timestamp:    time.Now().UTC(),
		Version:      h.version,
		Component:    h.component,
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		NumGoroutine: runtime.NumGoroutine(),
		PanicValue:   fmt.Sprintf("%v", v),
		StackTrace:   string(debug.Stack()),
	}

	path, err := h.write(report)
	if err != nil {
		fmt.Fprintf(h.stderr, "crash report not written: %v\n", err)
		return report
	}
	fmt.Fprintf(h.stderr, "panic: %s\ncrash report written to %s\n", report.PanicValue, path)
	return report
}

func (h *CrashHandler) write(report CrashReport) (string, error) {
	if err := os.MkdirAll(h.dir, 0700); err != nil {
		return "", fmt.Errorf("create crash directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash report: %w", err)
	}

	path := filepath.Join(h.dir, fmt.Sprintf("crash-%s-%s.json",
		report.Component, report.Timestamp.Format("20060102-150405.000000000")))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

// Reports loads every report in the directory, oldest first.
func (h *CrashHandler) Reports() ([]CrashReport, error) {
	entries, err := os.ReadDir(h.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "crash-") && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	reports := make([]CrashReport, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(h.dir, name))
		if err != nil {
			continue
		}
		var r CrashReport
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		reports = append(reports, r)
	}
	return reports, nil
}
