package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrel-ci/kestrel/internal/runtime"
)

// NewSeedCommand creates the seed command: an instrumented run of the
// whole suite that rebuilds the impact analysis data from scratch.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &sequenceFlags{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Rebuild the impact analysis data from a full instrumented run",
		Long: `Run every not-excluded test target under coverage instrumentation,
discard any existing impact analysis data for the suite, and persist the
coverage this run produced as the new source-to-test index.

Example:
  kestrel seed --config kestrel.yaml --suite main`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, flags, cmd)
		},
	}

	addSequenceFlags(cmd, flags)
	return cmd
}

func runSeed(opts *RootOptions, flags *sequenceFlags, cmd *cobra.Command) error {
	cfg, rt, err := buildRuntime(opts, flags)
	if err != nil {
		return err
	}

	p := newPrinter(opts, cmd.OutOrStdout())
	startedAt := time.Now()

	report, err := rt.SeededTestSequence(runtime.SeedSequenceOptions{
		TargetTimeout: flags.targetTimeout(),
		GlobalTimeout: flags.globalTimeout(),
		OnStart: func(suite string, selected runtime.TestRunSelection) {
			p.SelectionSummary(suite, selected, 0, 0)
		},
		OnTestComplete: p.TestComplete,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "seeded test sequence failed", err)
	}

	recordHistory(cfg, "seed", report.SequenceMeta,
		[]runtime.TestRunReport{report.Run}, report, startedAt, time.Since(startedAt))

	if err := p.Report(report, map[string]runtime.TestRunReport{"run": report.Run}, []string{"run"}); err != nil {
		return err
	}
	return sequenceExit(report.Result())
}
