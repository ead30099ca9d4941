package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/livedepth/livedepth/core"
)

// Watch delivers a freshly loaded Config on each change of path. Invalid
// edits are logged and skipped so a half-saved file never reaches the
// session. The watcher stops when stop is closed.
func Watch(path string, stop <-chan struct{}) (<-chan Config, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}

	out := make(chan Config, 1)
	go func() {
		defer w.Close()
		defer close(out)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					core.LogWarn("config reload skipped: %v", err)
					continue
				}
				// Latest wins; a slow consumer only sees the newest state.
				select {
				case out <- cfg:
				default:
					select {
					case <-out:
					default:
					}
					out <- cfg
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				core.LogWarn("config watcher: %v", err)
			case <-stop:
				return
			}
		}
	}()
	return out, nil
}
