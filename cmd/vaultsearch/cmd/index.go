package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vaultsearch/internal/output"
	"github.com/Aman-CERP/vaultsearch/internal/search"
)

func newIndexCmd() *cobra.Command {
	var force bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or refresh the vault index",
		Long: `Build the vault index and save it as a snapshot.

An existing snapshot is loaded and reconciled with the notes on disk:
new and changed notes are read, deleted ones dropped. Use --force to
discard the snapshot and read every note again.

Examples:
  vaultsearch index
  vaultsearch index --vault ~/Notes --force
  vaultsearch index --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, force, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Rebuild from scratch, ignoring the snapshot")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output index status as JSON")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, force, jsonOutput bool) error {
	root, err := vaultRoot(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if !jsonOutput {
		out.Statusf("🔍", "Indexing %s", root)
	}

	start := time.Now()
	svc, err := openService(ctx, root, cfg, serviceOptions{open: !force})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	if force {
		if _, err := svc.Reindex(ctx); err != nil {
			return err
		}
	}
	slog.Info("index_command_complete", slog.Bool("force", force), slog.Duration("duration", time.Since(start)))

	st := svc.Status(ctx)
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	renderStatus(out, st)
	return nil
}

// renderStatus prints the index summary.
func renderStatus(out *output.Writer, st search.Status) {
	how := "rebuilt"
	if st.Source == search.SourceSnapshot {
		how = "loaded from snapshot"
	}
	out.Successf("%d notes, %d terms (%s)", st.Documents, st.Terms, how)
	if st.LastReindex > 0 {
		out.Status("", fmt.Sprintf("Last rebuild took %s", st.LastReindex.Round(time.Millisecond)))
	}
	if st.SnapshotPath != "" {
		out.Status("", "Snapshot: "+st.SnapshotPath)
	}
	if st.Skipped > 0 {
		out.Warningf("%d files skipped (unreadable or not plain text)", st.Skipped)
	}
	if st.Degraded {
		out.Warning("Chinese dictionary not found; CJK runs are indexed unsegmented")
	}
}
