// Package serverlog implements the append-only, newline-delimited JSON log
// streams kept per (space, server) pair, one file per
// logs/<space_id>/<server_id>/*.jsonl, with size-based rotation and
// retention by age in days.
//
// No library in the retrieval pack carries a rotating-file-writer
// dependency (no lumberjack, no zap native rotation) — see DESIGN.md's
// stdlib-justifications entry for this package.
package serverlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

const (
	currentFileName = "current.jsonl"
	// defaultMaxBytes is the size a log file grows to before it is rotated
	// out from under the active writer.
	defaultMaxBytes = 10 * 1024 * 1024
)

// Writer appends ServerLog entries to per-(space,server) NDJSON files
// under baseDir, rotating by size and pruning by age.
type Writer struct {
	baseDir       string
	maxBytes      int64
	retentionDays int

	mu    sync.Mutex
	files map[domain.Key]*trackedFile
	clock domain.Clock
}

type trackedFile struct {
	mu   sync.Mutex
	f    *os.File
	size int64
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// New builds a Writer rooted at baseDir. retentionDays of 0 means keep
// entries forever. clock may be nil to use the real wall clock.
func New(baseDir string, retentionDays int, clock domain.Clock) *Writer {
	if clock == nil {
		clock = realClock{}
	}
	return &Writer{
		baseDir:       baseDir,
		maxBytes:      defaultMaxBytes,
		retentionDays: retentionDays,
		files:         make(map[domain.Key]*trackedFile),
		clock:         clock,
	}
}

// Append writes entry as one NDJSON line to key's log stream, rotating the
// file first if it has grown past the size threshold and pruning any
// rotated files older than the configured retention.
func (w *Writer) Append(key domain.Key, entry domain.ServerLog) error {
	dir := w.dirFor(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("serverlog: create dir: %w", err)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("serverlog: marshal entry: %w", err)
	}
	line = append(line, '\n')

	tf := w.trackedFileFor(key, dir)
	tf.mu.Lock()
	defer tf.mu.Unlock()

	if tf.f == nil {
		if err := w.openLocked(tf, dir); err != nil {
			return err
		}
	}

	if tf.size+int64(len(line)) > w.maxBytes && tf.size > 0 {
		if err := w.rotateLocked(tf, dir); err != nil {
			return err
		}
		w.pruneLocked(dir)
	}

	n, err := tf.f.Write(line)
	if err != nil {
		return fmt.Errorf("serverlog: write entry: %w", err)
	}
	tf.size += int64(n)
	return nil
}

func (w *Writer) dirFor(key domain.Key) string {
	return filepath.Join(w.baseDir, key.SpaceID, key.ServerID)
}

func (w *Writer) trackedFileFor(key domain.Key, dir string) *trackedFile {
	w.mu.Lock()
	defer w.mu.Unlock()
	tf, ok := w.files[key]
	if !ok {
		tf = &trackedFile{}
		w.files[key] = tf
		if info, err := os.Stat(filepath.Join(dir, currentFileName)); err == nil {
			tf.size = info.Size()
		}
	}
	return tf
}

func (w *Writer) openLocked(tf *trackedFile, dir string) error {
	f, err := os.OpenFile(filepath.Join(dir, currentFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("serverlog: open current file: %w", err)
	}
	tf.f = f
	return nil
}

// rotateLocked closes the active file, renames it to a timestamped name,
// and opens a fresh current.jsonl in its place.
func (w *Writer) rotateLocked(tf *trackedFile, dir string) error {
	if tf.f != nil {
		_ = tf.f.Close()
		tf.f = nil
	}
	rotatedName := fmt.Sprintf("%s.jsonl", w.clock.Now().UTC().Format("20060102T150405.000000000"))
	if err := os.Rename(filepath.Join(dir, currentFileName), filepath.Join(dir, rotatedName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("serverlog: rotate: %w", err)
	}
	tf.size = 0
	return w.openLocked(tf, dir)
}

// pruneLocked deletes rotated files in dir whose mtime is older than the
// configured retention. A retention of 0 keeps everything.
func (w *Writer) pruneLocked(dir string) {
	if w.retentionDays <= 0 {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := w.clock.Now().AddDate(0, 0, -w.retentionDays)
	for _, e := range entries {
		if e.IsDir() || e.Name() == currentFileName {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}

// Close releases every open file handle the Writer is holding.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var firstErr error
	for _, tf := range w.files {
		tf.mu.Lock()
		if tf.f != nil {
			if err := tf.f.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			tf.f = nil
		}
		tf.mu.Unlock()
	}
	return firstErr
}

// rotatedFiles lists rotated (non-current) log files for key, oldest
// first. Exposed for tests and for a future "tail logs" CLI surface.
func (w *Writer) rotatedFiles(key domain.Key) ([]string, error) {
	dir := w.dirFor(key)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && e.Name() != currentFileName {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
