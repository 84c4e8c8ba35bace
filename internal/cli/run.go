package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrel-ci/kestrel/internal/runtime"
)

// NewRunCommand creates the run command: a regular, uninstrumented
// sequence over the whole (not excluded) suite.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &sequenceFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every test target in the suite",
		Long: `Run every test target in the suite that is not fully excluded,
without coverage instrumentation. The impact analysis data is neither
consulted nor updated.

Example:
  kestrel run --config kestrel.yaml --suite main
  kestrel run --global-timeout 30m --exclude FlakyTests`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegular(rootOpts, flags, cmd)
		},
	}

	addSequenceFlags(cmd, flags)
	return cmd
}

func addSequenceFlags(cmd *cobra.Command, flags *sequenceFlags) {
	cmd.Flags().DurationVar(&flags.TargetTimeout, "target-timeout", 0, "per-target timeout (0 = none)")
	cmd.Flags().DurationVar(&flags.GlobalTimeout, "global-timeout", 0, "whole-sequence timeout (0 = none)")
	cmd.Flags().StringArrayVar(&flags.Exclude, "exclude", nil, "test target to exclude (repeatable)")
	cmd.Flags().StringVar(&flags.DataFile, "data-file", "", "override the impact analysis data file")
	cmd.Flags().StringVar(&flags.PrevDataFile, "previous-data-file", "", "fallback data file from a previous run")
}

func runRegular(opts *RootOptions, flags *sequenceFlags, cmd *cobra.Command) error {
	cfg, rt, err := buildRuntime(opts, flags)
	if err != nil {
		return err
	}

	p := newPrinter(opts, cmd.OutOrStdout())
	startedAt := time.Now()

	report, err := rt.RegularTestSequence(runtime.RegularSequenceOptions{
		TargetTimeout: flags.targetTimeout(),
		GlobalTimeout: flags.globalTimeout(),
		OnStart: func(suite string, selected runtime.TestRunSelection) {
			p.SelectionSummary(suite, selected, 0, 0)
		},
		OnTestComplete: p.TestComplete,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "regular test sequence failed", err)
	}

	recordHistory(cfg, "regular", report.SequenceMeta,
		[]runtime.TestRunReport{report.Run}, report, startedAt, time.Since(startedAt))

	if err := p.Report(report, map[string]runtime.TestRunReport{"run": report.Run}, []string{"run"}); err != nil {
		return err
	}
	return sequenceExit(report.Result())
}
