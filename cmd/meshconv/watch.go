package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/resmesh/internal/logger"
)

// Editors tend to write a file in several steps.
const watchDebounce = 200 * time.Millisecond

// watch runs j again after every change to its input until ctx is done.
// Failed conversions are logged and watching continues. Inputs read from
// archives cannot be watched.
func watch(ctx context.Context, j *job) error {
	if _, err := os.Stat(j.input); err != nil {
		return fmt.Errorf("watch needs an input file on disk: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// the directory is watched so replacing the file is noticed too
	target := filepath.Clean(j.input)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}
	logger.Info("Watching for changes", zap.String("path", target))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := j.run(ctx); err != nil {
				logger.Warn("Conversion failed", zap.Error(err))
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", zap.Error(err))
		}
	}
}
