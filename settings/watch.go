package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a [Store] when its file changes outside the process.
type Watcher struct {
	fw     *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *Store) logger() *zap.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log
}

// Watch starts watching the store's directory. Events for other files are
// ignored. The watcher stops when ctx ends or Close is called.
func (s *Store) Watch(ctx context.Context) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("settings: creating watcher: %w", err)
	}
	// Editors often replace the file, so watch the parent directory.
	if err := fw.Add(filepath.Dir(s.path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("settings: watching %s: %w", filepath.Dir(s.path), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{fw: fw, cancel: cancel, done: make(chan struct{})}
	go s.watchLoop(ctx, w)
	return w, nil
}

func (s *Store) watchLoop(ctx context.Context, w *Watcher) {
	defer close(w.done)
	defer w.fw.Close()

	log := s.logger()
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			if err := s.Reload(); err != nil {
				log.Warn("settings reload failed", zap.String("path", s.path), zap.Error(err))
				continue
			}
			log.Debug("settings reloaded", zap.String("op", event.Op.String()))

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Error("settings watcher error", zap.Error(err))

		case <-ctx.Done():
			return
		}
	}
}

// Done is closed once the watcher has stopped.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Close stops the watcher and waits for it to exit.
func (w *Watcher) Close() error {
	w.once.Do(w.cancel)
	<-w.done
	return nil
}
