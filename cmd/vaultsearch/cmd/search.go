package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vaultsearch/internal/index"
	"github.com/Aman-CERP/vaultsearch/internal/output"
	"github.com/Aman-CERP/vaultsearch/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	mode     string
	limit    int
	excerpts bool
	format   string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank the vault's notes against a query",
		Long: `Rank the vault's notes against a query.

Note titles weigh most, then folder names, headings, aliases and the
body. Terms also match as prefixes and with small typos, at a discount.
By default every term must match (--mode and).

Examples:
  vaultsearch search roadmap
  vaultsearch search "用起来 plan" --mode or
  vaultsearch search quartz --excerpts --limit 5
  vaultsearch search granite --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "and", "Term combination: and, or")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of notes")
	cmd.Flags().BoolVarP(&opts.excerpts, "excerpts", "e", false, "Show the matching lines of each note")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	mode, err := index.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	root, err := vaultRoot(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	svc, err := openService(ctx, root, cfg, serviceOptions{open: true, shareLocked: true})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	items := rankedItems(svc, query, mode)
	if opts.limit > 0 && len(items) > opts.limit {
		items = items[:opts.limit]
	}
	if opts.excerpts {
		for i := range items {
			sub, err := svc.GetFileSubItems(ctx, items[i].Path, query)
			if err != nil {
				slog.Debug("excerpts_skipped", slog.String("path", items[i].Path), slog.String("error", err.Error()))
				continue
			}
			items[i].SubItems = sub.Items
		}
	}
	slog.Info("search_complete", slog.String("mode", string(mode)), slog.Int("results", len(items)))

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	out := output.New(cmd.OutOrStdout())
	if len(items) == 0 {
		out.Statusf("🔍", "No notes match %q", query)
		return nil
	}
	for i, it := range items {
		out.FileItem(i+1, it)
	}
	return nil
}

// rankedItems runs query in mode and returns the ranked file items.
func rankedItems(svc *search.Service, query string, mode index.Mode) []search.FileItem {
	if mode == index.ModeAnd {
		return svc.SearchInVault(query).Files()
	}
	files := svc.SearchFiles(query, mode)
	items := make([]search.FileItem, len(files))
	for i, f := range files {
		items[i] = search.FileItem{
			Engine:       search.EngineLexical,
			Path:         f.Path,
			MatchedTerms: f.MatchedTerms,
			Score:        f.Score,
		}
	}
	return items
}
