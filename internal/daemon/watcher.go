package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"reposync/internal/inventory"
	"reposync/internal/logger"
	"slices"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports directories appearing or disappearing directly under the
// search roots. Changes deeper in a working tree are ignored.
type Watcher struct {
	fw      *fsnotify.Watcher
	scanner *inventory.Scanner
	roots   []string
	eventCh chan string
	doneCh  chan struct{}
}

func NewWatcher(exclude []string, bufferSize int) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		fw:      fw,
		scanner: inventory.NewScanner(exclude),
		eventCh: make(chan string, bufferSize),
		doneCh:  make(chan struct{}),
	}, nil
}

// Watch adds every readable root and starts delivering events. Unreadable
// roots are logged and skipped, matching the inventory scan.
func (w *Watcher) Watch(roots []string) error {
	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}

		if err := w.fw.Add(absRoot); err != nil {
			logger.Log.Warn("failed to watch search directory",
				zap.String("dir", absRoot),
				zap.Error(err))
			continue
		}

		w.roots = append(w.roots, absRoot)
		logger.Log.Debug("watching search directory",
			zap.String("dir", absRoot))
	}

	go w.run()

	logger.Log.Info("watcher started",
		zap.Int("roots", len(w.roots)))
	return nil
}

func (w *Watcher) run() {
	defer close(w.eventCh)

	for {
		select {
		case <-w.doneCh:
			logger.Log.Info("watcher stopping")
			return

		case fsEvent, ok := <-w.fw.Events:
			if !ok {
				return
			}

			if !w.relevant(fsEvent) {
				continue
			}

			select {
			case w.eventCh <- fsEvent.Name:
			default:
				logger.Log.Warn("event channel is full, dropping event",
					zap.String("path", fsEvent.Name))
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}

			logger.Log.Error("watcher error",
				zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !slices.Contains(w.roots, filepath.Dir(ev.Name)) {
		return false
	}
	if w.scanner.Excluded(filepath.Base(ev.Name)) {
		return false
	}

	switch {
	case ev.Op.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		return err == nil && info.IsDir()
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		return true
	default:
		return false
	}
}

func (w *Watcher) Events() <-chan string {
	return w.eventCh
}

func (w *Watcher) Stop() {
	close(w.doneCh)
	_ = w.fw.Close()
}
