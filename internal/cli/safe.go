package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrel-ci/kestrel/internal/changelist"
	"github.com/kestrel-ci/kestrel/internal/policy"
	"github.com/kestrel-ci/kestrel/internal/runtime"
)

// safeFlags extends the shared sequence flags with change-list inputs.
type safeFlags struct {
	sequenceFlags
	ChangeListPath string
	Prioritization string
}

// NewSafeCommand creates the safe command: like impact, but the
// discarded targets also run (uninstrumented) so nothing the selection
// missed goes untested.
func NewSafeCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &safeFlags{}

	cmd := &cobra.Command{
		Use:   "safe",
		Short: "Impact analysis that also runs the discarded targets",
		Long: `Run the selected test targets instrumented, the discarded targets
regular, and the drafted targets instrumented, carrying the global
timeout across all three phases. Coverage from the instrumented phases
refreshes the impact analysis data.

Example:
  kestrel safe --changelist changes.json --global-timeout 1h`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSafe(rootOpts, flags, cmd)
		},
	}

	addSequenceFlags(cmd, &flags.sequenceFlags)
	cmd.Flags().StringVar(&flags.ChangeListPath, "changelist", "", "path to the change list file (json or yaml)")
	cmd.Flags().StringVar(&flags.Prioritization, "prioritization", string(policy.TestPrioritizationNone), "test prioritization policy")
	_ = cmd.MarkFlagRequired("changelist")

	return cmd
}

func runSafe(opts *RootOptions, flags *safeFlags, cmd *cobra.Command) error {
	cfg, rt, err := buildRuntime(opts, &flags.sequenceFlags)
	if err != nil {
		return err
	}

	cl, err := changelist.Load(flags.ChangeListPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load change list", err)
	}
	cl, err = cl.Normalize(cfg.RepoRoot)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to normalize change list", err)
	}

	p := newPrinter(opts, cmd.OutOrStdout())
	startedAt := time.Now()

	report, err := rt.SafeImpactAnalysisTestSequence(cl,
		policy.TestPrioritization(flags.Prioritization),
		runtime.SafeImpactAnalysisSequenceOptions{
			TargetTimeout: flags.targetTimeout(),
			GlobalTimeout: flags.globalTimeout(),
			OnStart: func(suite string, selected, discarded runtime.TestRunSelection, drafted []string) {
				p.SelectionSummary(suite, selected, len(discarded.Included), len(drafted))
			},
			OnTestComplete: p.TestComplete,
		})
	if err != nil {
		return WrapExitError(ExitCommandError, "safe impact analysis test sequence failed", err)
	}

	runs := []runtime.TestRunReport{report.SelectedRun, report.DiscardedRun, report.DraftedRun}
	recordHistory(cfg, "safe", report.SequenceMeta, runs, report, startedAt, time.Since(startedAt))

	if err := p.Report(report, map[string]runtime.TestRunReport{
		"selected":  report.SelectedRun,
		"discarded": report.DiscardedRun,
		"drafted":   report.DraftedRun,
	}, []string{"selected", "discarded", "drafted"}); err != nil {
		return err
	}
	return sequenceExit(report.Result())
}
