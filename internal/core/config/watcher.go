package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileWatcher reloads a single file on change. Editors that replace files
// (write temp, rename) are handled by watching the parent directory and
// filtering on the file name. Bursts of events are debounced.
type FileWatcher struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	timer   *time.Timer
}

// NewFileWatcher creates a watcher for path.
func NewFileWatcher(path string, debounce time.Duration, logger *zap.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &FileWatcher{
		path:     abs,
		debounce: debounce,
		logger:   logger,
		watcher:  w,
	}, nil
}

// Watch blocks until ctx is cancelled, calling onChange after each debounced
// burst of writes, creates or renames of the file. Reload errors are logged
// and watching continues.
func (fw *FileWatcher) Watch(ctx context.Context, onChange func() error) error {
	defer fw.stop()

	if err := fw.watcher.Add(filepath.Dir(fw.path)); err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}
	fw.logger.Info("file watcher started",
		zap.String("path", fw.path),
		zap.Duration("debounce", fw.debounce))

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("file watcher stopped", zap.String("path", fw.path))
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !fw.relevant(event) {
				continue
			}
			fw.logger.Debug("file event detected",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()))
			fw.trigger(func() {
				if err := onChange(); err != nil {
					fw.logger.Error("reload failed", zap.String("path", fw.path), zap.Error(err))
					return
				}
				fw.logger.Info("reloaded", zap.String("path", fw.path))
			})

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			fw.logger.Error("file watcher error", zap.Error(err))
		}
	}
}

func (fw *FileWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(event.Name) == fw.path
}

// trigger runs fn once no further event arrived for the debounce interval.
func (fw *FileWatcher) trigger(fn func()) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, fn)
}

func (fw *FileWatcher) stop() {
	fw.mu.Lock()
	if fw.timer != nil {
		fw.timer.Stop()
		fw.timer = nil
	}
	fw.mu.Unlock()
	if err := fw.watcher.Close(); err != nil {
		fw.logger.Warn("failed to close watcher", zap.Error(err))
	}
}
