package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchPolicy reloads the policy pack whenever the file changes, invoking
// onChange with the raw bytes. Returns a stop function.
func WatchPolicy(path string, onChange func([]byte)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("policy watcher: %w", err)
	}
	// watch the directory: editors replace files, which drops inode-level
	// watches
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("policy watcher: %w", err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, okE := <-watcher.Events:
				if !okE {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				data, err := os.ReadFile(path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "[bashx] warning: policy reload failed: %v\n", err)
					continue
				}
				onChange(data)
			case err, okE := <-watcher.Errors:
				if !okE {
					return
				}
				fmt.Fprintf(os.Stderr, "[bashx] warning: policy watcher: %v\n", err)
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
