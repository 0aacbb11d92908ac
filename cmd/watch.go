package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/spoon/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Recompile templates as they change",
	Long: `Watch the template root and recompile templates when they are created or
modified. Bursts of changes are debounced into one batch.

Examples:
  spoon watch                    # Compile everything, then watch
  spoon watch --initial=false    # Only compile what changes`,
	RunE: runWatch,
}

var watchInitial bool

func init() {
	rootCmd.AddCommand(watchCmd)
	AddTemplateFlags(watchCmd)

	watchCmd.Flags().BoolVar(&watchInitial, "initial", true, "Compile every template before watching")
	watchCmd.Flags().Duration("debounce", 0, "Delay before a batch of changes is compiled")
	bindOnRun(watchCmd, map[string]string{"debounce": "watch.debounce"})
}

func runWatch(cmd *cobra.Command, args []string) error {
	eng, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := watcher.CompileHandler(eng, logger)
	if watchInitial {
		sources, err := eng.Sources()
		if err != nil {
			return err
		}
		events := make([]watcher.ChangeEvent, len(sources))
		for i, source := range sources {
			events[i] = watcher.ChangeEvent{Type: watcher.EventTypeCreated, Path: source}
		}
		if err := handler(ctx, events); err != nil {
			logger.Warn(ctx, err, "Initial compilation incomplete")
		}
	}

	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Stop()

	fw.AddFilter(watcher.ExtensionFilter(cfg.Templates.Extensions...))
	fw.AddFilter(watcher.NoTempFilter)
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddHandler(handler)

	if err := fw.AddRecursive(cfg.Templates.Root); err != nil {
		return fmt.Errorf("watching %s: %w", cfg.Templates.Root, err)
	}

	fw.Start(ctx)
	logger.Info(ctx, "Watching templates", "root", cfg.Templates.Root, "cache", cfg.Cache.Dir)

	<-ctx.Done()
	if ctx.Err() == context.Canceled {
		logger.Info(context.Background(), "Stopped watching")
	}
	return nil
}
