package session

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls fn with the decoded session each time a session file in the
// store's directory is created or rewritten. It blocks until ctx is done or
// the watcher fails.
func (s *Store) Watch(ctx context.Context, fn func(Session)) error {
	if err := prepareDir(s.dir); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Saves land via rename, which shows up as Create.
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isSessionFile(filepath.Base(event.Name)) {
				continue
			}
			sess, err := readSession(event.Name)
			if err != nil {
				s.logger.Debug("ignoring unreadable session update", "file", event.Name, "error", err)
				continue
			}
			fn(*sess)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", s.dir, err)
		}
	}
}
