package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vaultsearch/internal/logging"
	"github.com/Aman-CERP/vaultsearch/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve vault search to AI assistants over MCP",
		Long: `Start a Model Context Protocol server on stdio with the tools
search_vault, search_in_file and index_status, and the vault's notes as
resources. The index follows vault changes unless --no-watch is set.

stdout carries only protocol messages; logs go to ~/.vaultsearch/logs/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, !noWatch)
		},
	}

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not follow vault changes")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, watch bool) error {
	root, err := vaultRoot(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	level := cfg.Server.LogLevel
	if debugMode {
		level = "debug"
	}
	if cleanup, err := logging.SetupDefault(logging.ServeConfig(level)); err == nil {
		defer cleanup()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := openService(ctx, root, cfg, serviceOptions{open: true})
	if err != nil {
		slog.Error("serve_open_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = svc.Close() }()

	srv, err := mcp.NewServer(svc, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	if _, err := srv.RegisterResources(ctx); err != nil {
		slog.Warn("resources_unavailable", slog.String("error", err.Error()))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if !watch {
			return
		}
		if err := watchVault(ctx, svc, cfg); err != nil {
			slog.Warn("watch_failed", slog.String("error", err.Error()))
		}
	}()

	err = srv.Serve(ctx, cfg.Server.Transport)
	cancel()
	<-watchDone

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
