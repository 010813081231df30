package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch monitors the config file and invokes apply with each successfully
// reloaded and validated configuration. Invalid or unreadable updates are
// logged and dropped so the engine keeps its last-known-good config. The
// watcher runs until ctx is cancelled.
//
// The parent directory is watched rather than the file itself because most
// editors and config management tools replace the file on save.
func Watch(ctx context.Context, cfg *Config, apply func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}

	dir := filepath.Dir(cfg.ConfigFile)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir %s: %w", dir, err)
	}

	base := filepath.Base(cfg.ConfigFile)
	current := cfg

	go func() {
		defer watcher.Close()
		log.Info().Str("config_file", cfg.ConfigFile).Msg("Watching config file for live updates")

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				next, err := current.Reload()
				if err != nil {
					log.Error().Err(err).Msg("Rejected config update, keeping last-known-good")
					continue
				}
				current = next
				apply(next)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("Config watcher error")
			}
		}
	}()

	return nil
}
