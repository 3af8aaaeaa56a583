package settings

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/hpungsan/objective/internal/errors"
)

// reloadDebounce absorbs editors that write a file in several steps.
const reloadDebounce = 100 * time.Millisecond

// Watch reloads the record whenever settings.json changes on disk, until
// ctx is cancelled. Writes made through the Store produce no events
// because the reloaded record is identical.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer watcher.Close()

	// Watch the directory; the file is replaced by rename on every write
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.NewStorage("watch settings", err)
	}
	if err := watcher.Add(dir); err != nil {
		return errors.NewStorage("watch settings", err)
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != FileName {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := s.Reload(ctx); err != nil {
					log.Warn().Err(err).Str("component", "settings").Msg("failed to reload settings")
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("component", "settings").Msg("settings watcher error")
		}
	}
}
