package main

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchFile runs fn once immediately, then again every time path's
// directory reports a write or create event for it, until the watcher
// errors out. Watching the containing directory rather than the file
// itself survives editors that save by rename-over rather than in-place
// write.
func watchFile(path string, fn func()) error {
	fn()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	fmt.Printf("Watching %s for changes (Ctrl+C to stop)...\n", path)

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fn()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		}
	}
}
