// Package cmd provides the CLI commands for vaultsearch.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vaultsearch/internal/config"
	vserrors "github.com/Aman-CERP/vaultsearch/internal/errors"
	"github.com/Aman-CERP/vaultsearch/internal/logging"
	"github.com/Aman-CERP/vaultsearch/internal/search"
	"github.com/Aman-CERP/vaultsearch/pkg/version"
)

// Debug logging flag
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the vaultsearch CLI.
func NewRootCmd() *cobra.Command {
	var vaultDir string

	cmd := &cobra.Command{
		Use:   "vaultsearch",
		Short: "Lexical search for Markdown note vaults",
		Long: `vaultsearch indexes a folder of Markdown and text notes and ranks
them against keyword queries. English and Chinese text are both
segmented; prefix and typo-tolerant matches are scored below exact ones.

Run 'vaultsearch index' in your vault to build the index, then
'vaultsearch search <words>' or 'vaultsearch serve' for AI assistants.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.SetVersionTemplate("vaultsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&vaultDir, "vault", ".", "Vault root directory")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.vaultsearch/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newFindCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging sends logs to the rotating log file. With --debug the
// level drops to debug and logs are mirrored to stderr. serve installs
// its own file-only logger.
func startLogging(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "serve" {
		return nil
	}

	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Debug("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
		return nil
	}

	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		loggingCleanup = cleanup
		slog.SetDefault(logger)
	}
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command and prints a failing command's error.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, vserrors.FormatForCLI(err))
	}
	return err
}

// vaultRoot resolves the --vault flag to an absolute directory.
func vaultRoot(cmd *cobra.Command) (string, error) {
	dir, err := cmd.Flags().GetString("vault")
	if err != nil || dir == "" {
		dir = "."
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve vault path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", vserrors.ConfigError(fmt.Sprintf("vault %s does not exist", root), err).
			WithSuggestion("Pass an existing directory with --vault.")
	}
	if !info.IsDir() {
		return "", vserrors.ConfigError(fmt.Sprintf("vault %s is not a directory", root), nil)
	}
	return root, nil
}

// loadConfig reads the layered configuration for the vault at root.
func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, vserrors.ConfigError("failed to load configuration", err)
	}
	return cfg, nil
}

// serviceOptions controls how openService prepares the index.
type serviceOptions struct {
	// open restores or rebuilds the index before returning.
	open bool
	// shareLocked falls back to an in-memory index when another process
	// holds the snapshot.
	shareLocked bool
}

// openService builds the search service for the vault at root.
func openService(ctx context.Context, root string, cfg *config.Config, opts serviceOptions) (*search.Service, error) {
	svc, err := search.Build(root, cfg, search.BuildOptions{})
	if err != nil {
		if !opts.shareLocked || vserrors.GetCode(err) != vserrors.ErrCodeSnapshotLocked {
			return nil, err
		}
		slog.Info("snapshot_locked_using_memory", slog.String("vault", root))
		if svc, err = search.Build(root, cfg, search.BuildOptions{Ephemeral: true}); err != nil {
			return nil, err
		}
	}
	if !opts.open {
		return svc, nil
	}
	if err := svc.Open(ctx); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}
