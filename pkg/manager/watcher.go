package manager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/skillmesh/skillmesh/pkg/logger"
)

const defaultWatchDebounce = 500 * time.Millisecond

// WatchLocal re-ingests all sources whenever the local skills directory
// changes. Events are debounced so a burst of writes (an editor save, a
// directory copy) triggers a single re-ingest. The watcher stops when ctx
// is cancelled.
func (m *Manager) WatchLocal(ctx context.Context, debounce time.Duration) error {
	if m.localDir == "" {
		return nil
	}
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create filesystem watcher")
	}

	if err := addWatchTree(watcher, m.localDir); err != nil {
		watcher.Close()
		return err
	}

	go m.watchLoop(ctx, watcher, debounce)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration) {
	defer watcher.Close()

	log := logger.G(ctx).WithField("dir", m.localDir)
	log.Info("watching local skills directory")

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !relevantEvent(event) {
				continue
			}
			// newly created skill directories need their own watch
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if pending {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
			timer.Reset(debounce)
			pending = true

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("filesystem watcher error")

		case <-timer.C:
			pending = false
			log.Debug("local skills changed, re-ingesting")
			records, err := m.ingest(ctx)
			if err != nil {
				log.WithError(err).Warn("re-ingest after local change failed")
				continue
			}
			m.registry.Replace(records, time.Now())
			m.persistSnapshot(ctx)
		}
	}
}

// relevantEvent filters watcher noise down to markdown documents and
// directory-level changes
func relevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if strings.EqualFold(filepath.Ext(event.Name), ".md") {
		return true
	}
	info, err := os.Stat(event.Name)
	return err == nil && info.IsDir() || os.IsNotExist(err)
}

// addWatchTree watches dir and its immediate skill subdirectories
func addWatchTree(watcher *fsnotify.Watcher, dir string) error {
	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch %q", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if entry.IsDir() {
			_ = watcher.Add(filepath.Join(dir, entry.Name()))
		}
	}
	return nil
}
