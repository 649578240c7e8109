package daemon

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/rivaltray-io/rivaltray/internal/config"
	"github.com/rivaltray-io/rivaltray/internal/logging"
)

// settingsWatcher notifies the daemon when the settings file changes
// on disk, so edits apply without a restart.
type settingsWatcher struct {
	fsWatcher *fsnotify.Watcher
	changed   chan struct{}
	done      chan struct{}
	log       *logrus.Entry

	debounceMu sync.Mutex
	debounce   *time.Timer
}

// newSettingsWatcher watches the configuration directory. The
// directory, not the file, is watched: atomic writes (write tmp,
// rename to target) would otherwise drop the watch.
func newSettingsWatcher() (*settingsWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &settingsWatcher{
		fsWatcher: fsWatcher,
		changed:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		log:       logging.NewLogger("watcher"),
	}

	dir, err := config.Dir()
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	go w.processEvents()
	return w, nil
}

// Changed signals at most one pending reload.
func (w *settingsWatcher) Changed() <-chan struct{} {
	return w.changed
}

func (w *settingsWatcher) Stop() {
	close(w.done)
	_ = w.fsWatcher.Close()
}

func (w *settingsWatcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Base(event.Name) != config.SettingsFileName {
				continue
			}
			w.debounceChange()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("settings watch error")
		}
	}
}

// debounceChange coalesces the burst of events an editor save
// produces into one reload.
func (w *settingsWatcher) debounceChange() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(100*time.Millisecond, func() {
		select {
		case w.changed <- struct{}{}:
		default:
		}
	})
}
