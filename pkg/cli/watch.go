package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/protoguard/pkg/observability"
)

func newWatchCommand(a *app) *cobra.Command {
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "watch [files...]",
		Short: "Re-run check whenever a .proto file under the import paths changes",
		RunE: func(cmd *cobra.Command, files []string) error {
			return a.runWatch(cmd, files, delay)
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", 500*time.Millisecond, "Quiet period before re-checking after a change")
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, files []string, delay time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	for _, root := range a.importPaths {
		if err := watchTree(watcher, root); err != nil {
			return err
		}
	}

	check := func() {
		if err := a.runCheck(cmd, files); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "check failed: %v\n", err)
		}
	}
	check()

	a.logger.WithField("paths", a.importPaths).Info("Watching for proto file changes")
	return watchLoop(cmd.Context(), watcher, delay, a.logger, check)
}

// watchTree adds root and every directory below it to the watcher
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// watchLoop calls onChange once the .proto files under the watched
// directories have been quiet for delay. It returns when ctx is done.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, delay time.Duration, logger *observability.Logger, onChange func()) error {
	timer := time.NewTimer(delay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := watchTree(watcher, event.Name); err != nil {
						logger.WithError(err).Warn("Failed to watch new directory")
					}
					continue
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 ||
				filepath.Ext(event.Name) != ".proto" {
				continue
			}
			logger.WithField("file", event.Name).Debug("Proto file changed")
			timer.Reset(delay)

		case <-timer.C:
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("Watcher error")
		}
	}
}
