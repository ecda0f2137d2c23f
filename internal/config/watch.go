package config

import (
	"github.com/fsnotify/fsnotify"
)

// Watcher notices changes under the configuration directories and
// sends each changed path on Changed, one send per event, replacing
// original_source/src/conf.c's iwatch_add()/inotify integration.
type Watcher struct {
	fsw     *fsnotify.Watcher
	Changed chan string
	Errors  chan error
}

// NewWatcher starts watching dirs for create/write/remove/rename
// events on any file in them; paths are not filtered by name.
func NewWatcher(dirs ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	w := &Watcher{fsw: fsw, Changed: make(chan string, 16), Errors: make(chan error, 4)}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.Changed <- ev.Name
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.Errors <- err
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error { return w.fsw.Close() }
