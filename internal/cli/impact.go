package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrel-ci/kestrel/internal/changelist"
	"github.com/kestrel-ci/kestrel/internal/policy"
	"github.com/kestrel-ci/kestrel/internal/runtime"
)

// impactFlags extends the shared sequence flags with change-list
// selection inputs.
type impactFlags struct {
	sequenceFlags
	ChangeListPath string
	Prioritization string
	NoUpdate       bool
}

// NewImpactCommand creates the impact command: run only the test
// targets covering the change list, plus the drafted targets.
func NewImpactCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &impactFlags{}

	cmd := &cobra.Command{
		Use:   "impact",
		Short: "Run the test targets a change list can plausibly affect",
		Long: `Resolve a change list against the impact analysis data, run the
covering test targets, then run the drafted targets (those with no
known coverage). Unless --no-update is given both phases run
instrumented and refresh the coverage index.

Example:
  kestrel impact --changelist changes.json
  kestrel impact --changelist changes.yaml --no-update --global-timeout 15m`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImpact(rootOpts, flags, cmd)
		},
	}

	addSequenceFlags(cmd, &flags.sequenceFlags)
	cmd.Flags().StringVar(&flags.ChangeListPath, "changelist", "", "path to the change list file (json or yaml)")
	cmd.Flags().StringVar(&flags.Prioritization, "prioritization", string(policy.TestPrioritizationNone), "test prioritization policy")
	cmd.Flags().BoolVar(&flags.NoUpdate, "no-update", false, "run without instrumentation and keep the coverage index as is")
	_ = cmd.MarkFlagRequired("changelist")

	return cmd
}

func runImpact(opts *RootOptions, flags *impactFlags, cmd *cobra.Command) error {
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

	mapUpdate := policy.DynamicDependencyMapUpdate
	if flags.NoUpdate {
		mapUpdate = policy.DynamicDependencyMapDiscard
	}

	p := newPrinter(opts, cmd.OutOrStdout())
	startedAt := time.Now()

	report, err := rt.ImpactAnalysisTestSequence(cl,
		policy.TestPrioritization(flags.Prioritization),
		mapUpdate,
		runtime.ImpactAnalysisSequenceOptions{
			TargetTimeout: flags.targetTimeout(),
			GlobalTimeout: flags.globalTimeout(),
			OnStart: func(suite string, selected runtime.TestRunSelection, discarded, drafted []string) {
				p.SelectionSummary(suite, selected, len(discarded), len(drafted))
			},
			OnTestComplete: p.TestComplete,
		})
	if err != nil {
		return WrapExitError(ExitCommandError, "impact analysis test sequence failed", err)
	}

	runs := []runtime.TestRunReport{report.SelectedRun, report.DraftedRun}
	recordHistory(cfg, "impact", report.SequenceMeta, runs, report, startedAt, time.Since(startedAt))

	if err := p.Report(report, map[string]runtime.TestRunReport{
		"selected": report.SelectedRun,
		"drafted":  report.DraftedRun,
	}, []string{"selected", "drafted"}); err != nil {
		return err
	}
	return sequenceExit(report.Result())
}
