package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrel-ci/kestrel/internal/config"
	"github.com/kestrel-ci/kestrel/internal/history"
)

// NewHistoryCommand creates the history command: list recent sequence
// reports for the suite.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	var allSuites bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent test sequences",
		Long: `List the most recent test sequences recorded for the suite, newest
first.

Example:
  kestrel history --suite main --limit 20
  kestrel history --all-suites --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, limit, allSuites, cmd)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of sequences to list")
	cmd.Flags().BoolVar(&allSuites, "all-suites", false, "list sequences from every suite")
	return cmd
}

func runHistory(opts *RootOptions, limit int, allSuites bool, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	path := filepath.Join(cfg.Workspace.ActiveRoot, cfg.Workspace.HistoryFileName)
	store, err := history.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer store.Close()

	suite := opts.Suite
	if allSuites {
		suite = ""
	}
	entries, err := store.Recent(cmd.Context(), suite, limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "no recorded sequences")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %-8s %-8s %s  %d run, %d passed, %d failed  %s\n",
			e.StartedAt.Local().Format(time.DateTime),
			e.Mode,
			e.Suite,
			sequenceResultStyleName(e.Result),
			e.NumRuns, e.NumPassing, e.NumFailing,
			e.Duration.Round(time.Millisecond))
	}
	return nil
}

func sequenceResultStyleName(result string) string {
	switch result {
	case "success":
		return stylePass.Render(result)
	case "test_failures", "failure":
		return styleFail.Render(result)
	default:
		return styleWarn.Render(result)
	}
}
