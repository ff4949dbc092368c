package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vaultsearch/internal/output"
)

func newFindCmd() *cobra.Command {
	var showContext bool

	cmd := &cobra.Command{
		Use:   "find <note> <query>",
		Short: "Fuzzy-find lines inside one note",
		Long: `Match the characters of a query, in order, against each line of a
note. Whitespace in the query is ignored. The best lines come first.

Examples:
  vaultsearch find Projects/Roadmap.md "q w"
  vaultsearch find Journal.md countertop --context`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd.Context(), cmd, args[0], strings.Join(args[1:], " "), showContext)
		},
	}

	cmd.Flags().BoolVarP(&showContext, "context", "c", false, "Show the paragraph around each match")

	return cmd
}

func runFind(ctx context.Context, cmd *cobra.Command, note, query string, showContext bool) error {
	root, err := vaultRoot(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	// In-file search reads the note directly; the index is not needed.
	svc, err := openService(ctx, root, cfg, serviceOptions{shareLocked: true})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	res, err := svc.SearchInFile(ctx, note, query)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if res.Unsupported {
		out.Warningf("%s is not a plain-text note", note)
		return nil
	}
	lines := res.Lines()
	if len(lines) == 0 {
		out.Statusf("🔍", "No lines in %s match %q", note, query)
		return nil
	}
	for _, li := range lines {
		out.LineItem(li, showContext)
	}
	return nil
}
