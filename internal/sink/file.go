// Package sink holds the destinations committed lines are written to.
//
// File is the append-only word log. Index mirrors committed lines into
// SQLite for searching. Tee writes to a primary sink and best-effort
// mirrors.
package sink

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrLocked is returned when another process holds the log open.
var ErrLocked = errors.New("sink: log file is locked by another process")

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("sink: closed")

// FileConfig configures the append-only log file.
type FileConfig struct {
	// Path of the log file. Parent directories are created.
	Path string

	// MaxSizeMB rotates the file before a write would take it past this
	// size. Zero disables rotation.
	MaxSizeMB int64

	// MaxBackups is the number of rotated files kept. Zero keeps all.
	MaxBackups int

	// Compress gzips rotated files.
	Compress bool
}

// File is an append-only, create-if-absent log file holding an exclusive
// advisory lock for its lifetime.
type File struct {
	cfg FileConfig

	mu     sync.Mutex
	file   *os.File
	size   int64
	closed bool

	// background compression and cleanup
	bg sync.WaitGroup
}

// OpenFile opens the log for appending, creating it if needed.
func OpenFile(cfg FileConfig) (*File, error) {
	if cfg.Path == "" {
		return nil, errors.New("sink: empty log path")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f := &File{cfg: cfg}
	if err := f.open(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) open() error {
	file, err := os.OpenFile(f.cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if err := lockFile(file); err != nil {
		file.Close()
		return err
	}

	info, err := file.Stat()
	if err != nil {
		unlockFile(file)
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	f.file = file
	f.size = info.Size()
	return nil
}

// Path returns the log path.
func (f *File) Path() string {
	return f.cfg.Path
}

// Write appends p as a single write.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrClosed
	}
	if f.shouldRotate(int64(len(p))) {
		if err := f.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := f.file.Write(p)
	f.size += int64(n)
	return n, err
}

func (f *File) shouldRotate(writeSize int64) bool {
	if f.cfg.MaxSizeMB <= 0 || f.size == 0 {
		return false
	}
	return f.size+writeSize > f.cfg.MaxSizeMB*1024*1024
}

// rotate renames the current file aside and reopens the path. Called with
// f.mu held.
func (f *File) rotate() error {
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("sync current log: %w", err)
	}
	unlockFile(f.file)
	if err := f.file.Close(); err != nil {
		return fmt.Errorf("close current log: %w", err)
	}

	rotated := rotatedName(f.cfg.Path, time.Now())
	if err := os.Rename(f.cfg.Path, rotated); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}

	if err := f.open(); err != nil {
		return err
	}

	f.bg.Add(1)
	go func() {
		defer f.bg.Done()
		if f.cfg.Compress {
			compressFile(rotated)
		}
		f.cleanup()
	}()
	return nil
}

func rotatedName(path string, now time.Time) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	candidate := filepath.Join(dir, fmt.Sprintf("%s-%s%s", name, now.Format("20060102-150405.000000000"), ext))
	for i := 1; fileExists(candidate) || fileExists(candidate+".gz"); i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%s.%d%s", name, now.Format("20060102-150405.000000000"), i, ext))
	}
	return candidate
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func compressFile(path string) {
	in, err := os.Open(path)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return
	}

	gz := gzip.NewWriter(out)
	gz.Name = filepath.Base(path)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		os.Remove(path + ".gz")
		return
	}
	if err := gz.Close(); err != nil {
		out.Close()
		os.Remove(path + ".gz")
		return
	}
	if err := out.Close(); err != nil {
		os.Remove(path + ".gz")
		return
	}
	os.Remove(path)
}

// cleanup removes the oldest rotated files beyond MaxBackups.
func (f *File) cleanup() {
	if f.cfg.MaxBackups <= 0 {
		return
	}
	files, err := f.Rotated()
	if err != nil || len(files) <= f.cfg.MaxBackups {
		return
	}
	for _, path := range files[:len(files)-f.cfg.MaxBackups] {
		os.Remove(path)
	}
}

// Rotated lists rotated log files, oldest first.
func (f *File) Rotated() ([]string, error) {
	dir := filepath.Dir(f.cfg.Path)
	base := filepath.Base(f.cfg.Path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	matches, err := filepath.Glob(filepath.Join(dir, name+"-*"+ext+"*"))
	if err != nil {
		return nil, err
	}
	// The timestamp suffix sorts chronologically.
	sort.Strings(matches)
	return matches, nil
}

// Sync flushes the file to stable storage.
func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	return f.file.Sync()
}

// Close releases the lock and closes the file. Background compression of
// rotated files is waited for.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	unlockFile(f.file)
	err := f.file.Close()
	f.mu.Unlock()

	f.bg.Wait()
	return err
}
