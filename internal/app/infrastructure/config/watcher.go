package config

import (
	"context"
	"fmt"
	"github.com/fsnotify/fsnotify"
	"ircrelay/pkg/logger"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

const reloadDebounce = 250 * time.Millisecond

// Watch reloads the file whenever it changes on disk and passes every valid
// new configuration to onChange. It stops when ctx is done.
func (m *Manager) Watch(ctx context.Context, log logger.Logger, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}

	// The directory is watched so atomic replaces (rename over the file) are seen.
	if err := w.Add(filepath.Dir(m.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	target := filepath.Clean(m.path)

	go func() {
		defer w.Close()

		var mu sync.Mutex
		var pending *time.Timer

		for {
			select {
			case <-ctx.Done():
				mu.Lock()
				if pending != nil {
					pending.Stop()
				}
				mu.Unlock()
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}

				mu.Lock()
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(reloadDebounce, func() {
					if ctx.Err() != nil {
						return
					}

					cfg, err := m.Reload()
					if err != nil {
						log.Error("Config changed but could not be loaded, keeping the previous one", err, slog.String("path", m.path))
						return
					}
					log.Info("Config reloaded", slog.String("path", m.path))
					onChange(cfg)
				})
				mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("Config watcher error", err)
			}
		}
	}()

	return nil
}
