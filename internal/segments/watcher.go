// Package segments discovers finished stream segments on disk and
// surfaces each exactly once.
package segments

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"stream/internal/logging"
)

// settleDelay gives the segmenting writer time to finish flushing a
// newly-created file before it is surfaced. Variables so tests can
// shrink them.
var (
	settleDelay = 2 * time.Second
	// startupMtimeThreshold guards the startup scan: a pre-existing
	// file younger than this may still be mid-write and is left for
	// the event path to pick up.
	startupMtimeThreshold = 5 * time.Second
)

// Watcher surfaces completed segment files from one directory, each
// path at most once. Discovery combines filesystem events with a
// one-time startup scan for files that predate the watcher.
type Watcher struct {
	dir    string
	ext    string
	logger *slog.Logger

	watcher *fsnotify.Watcher
	out     chan string

	mu   sync.Mutex
	seen map[string]struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher watches dir for files with the given extension (e.g.
// ".ts") and begins the startup scan immediately.
func NewWatcher(dir, ext string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create segment directory: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("watch directory %s: %w", dir, err)
	}

	w := &Watcher{
		dir:     dir,
		ext:     ext,
		logger:  logger,
		watcher: fsWatcher,
		out:     make(chan string, 64),
		seen:    make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	go w.eventLoop()
	go w.startupScan()
	return w, nil
}

// Next blocks until a completed segment path is available. Returns an
// error when ctx is cancelled or the watcher is closed.
func (w *Watcher) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-w.done:
		return "", fmt.Errorf("segment watcher closed")
	case path := <-w.out:
		return path, nil
	}
}

// Close stops event delivery. Segments already queued are dropped.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

// markSeen reserves a path; false when it was already surfaced.
func (w *Watcher) markSeen(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, dup := w.seen[path]; dup {
		return false
	}
	w.seen[path] = struct{}{}
	return true
}

func (w *Watcher) wants(path string) bool {
	return strings.EqualFold(filepath.Ext(path), w.ext)
}

func (w *Watcher) emit(path string) {
	select {
	case w.out <- path:
	case <-w.done:
	}
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !w.wants(event.Name) {
				continue
			}
			if !w.markSeen(event.Name) {
				continue
			}
			// Let the writer finish before surfacing the file.
			go func(path string) {
				select {
				case <-w.done:
					return
				case <-time.After(settleDelay):
				}
				if _, err := os.Stat(path); err != nil {
					w.logger.Warn("segment vanished before settling", logging.String("path", path))
					return
				}
				w.emit(path)
			}(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("segment watcher error", logging.Error(err))
		}
	}
}

// startupScan surfaces segments that were written before the watcher
// started. Files modified within the safety threshold are skipped;
// their writer may still be active and the event path covers them.
func (w *Watcher) startupScan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("startup scan failed", logging.Error(err))
		return
	}
	cutoff := time.Now().Add(-startupMtimeThreshold)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if !w.wants(path) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if !w.markSeen(path) {
			continue
		}
		w.emit(path)
	}
}
