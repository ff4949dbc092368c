package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/vaultsearch/internal/config"
	"github.com/Aman-CERP/vaultsearch/internal/output"
	"github.com/Aman-CERP/vaultsearch/internal/search"
	"github.com/Aman-CERP/vaultsearch/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the index current while notes change",
		Long: `Load the index, then follow changes to the vault's notes until
interrupted. Created, edited, renamed and deleted notes are applied to
the index and the snapshot is saved after each batch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd)
		},
	}
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command) error {
	root, err := vaultRoot(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := openService(ctx, root, cfg, serviceOptions{open: true})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	out := output.New(cmd.OutOrStdout())
	renderStatus(out, svc.Status(ctx))
	out.Statusf("👀", "Watching %s (Ctrl+C to stop)", root)

	if err := watchVault(ctx, svc, cfg); err != nil {
		return err
	}
	out.Status("", "Stopped")
	return nil
}

// watchVault follows file changes under the service's vault and applies
// them until ctx is done. Once the watcher is armed the index is caught up
// with edits made since it was opened.
func watchVault(ctx context.Context, svc *search.Service, cfg *config.Config) error {
	debounce, err := cfg.Debounce()
	if err != nil {
		return fmt.Errorf("invalid watch debounce: %w", err)
	}
	v := svc.Vault()
	w, err := watcher.New(v.Root(), v, watcher.Options{DebounceWindow: debounce})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	slog.Info("watch_started", slog.String("root", v.Root()), slog.String("mode", w.Mode()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := w.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-w.Ready():
		case <-gctx.Done():
			return nil
		}
		if sum, err := svc.CatchUp(gctx); err != nil {
			if gctx.Err() == nil {
				slog.Warn("watch_catch_up_failed", slog.String("error", err.Error()))
			}
		} else if sum.Total() > 0 {
			slog.Info("watch_caught_up", slog.Int("changes", sum.Total()))
		}
		return svc.Watch(gctx, w)
	})

	err = g.Wait()
	slog.Info("watch_stopped")
	return err
}
