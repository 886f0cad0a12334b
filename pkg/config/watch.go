package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/inkwell/pkg/observability"
)

// Watch reloads the configuration whenever the YAML file at path changes
// and passes the result to onChange. The containing directory is watched so
// editors that replace the file on save are handled. A reload that fails
// validation is logged and skipped. Watch returns once the watcher is
// running; it stops when ctx is done.
func Watch(ctx context.Context, path string, logger *observability.Logger, onChange func(*Config)) error {
	if path == "" {
		return fmt.Errorf("config file path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer observability.RecoverPanic(logger, "config watcher")
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(abs)
				if err != nil {
					logger.WithError(err).WithField("path", abs).Warn("ignoring invalid configuration change")
					continue
				}
				logger.WithField("path", abs).Info("configuration reloaded")
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("config watcher error")
			}
		}
	}()
	return nil
}
