package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/cidrware/topoc/internal/emitter"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [intent]",
		Short: "Auto-recompile on intent file changes",
		Long: `Watch monitors the intent document and recompiles it on every change.

The watch command:
- Monitors the intent file for writes
- Rebuilds and validates on each change
- Debounces rapid changes to avoid excessive rebuilds

Examples:
    topoc watch topology.yaml
    topoc watch topology.yaml --debounce 1s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(args[0], debounce)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Debounce duration for rapid changes")

	return cmd
}

func runWatch(path string, debounce time.Duration) error {
	logger := newLogger()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	// Watch the directory rather than the file: editors replace files on
	// save, which would drop a direct file watch.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	recompile := func() {
		tracker := newProgress(logger)
		nodes, err := compile(abs, logger)
		if err != nil {
			logger.Error("compilation failed", "err", err)
			return
		}
		logger.Info("compiled", "resources", len(nodes), "fingerprint", emitter.Fingerprint(nodes)[:12])
		tracker.done("recompile")
	}

	logger.Info("watching", "path", abs)
	recompile()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var timer *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce: restart the timer on every event, fire once quiet.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			recompile()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error", "err", err)

		case <-sigCh:
			logger.Info("stopping")
			return nil
		}
	}
}
