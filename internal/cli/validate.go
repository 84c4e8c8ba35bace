package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-ci/kestrel/internal/config"
)

// NewValidateCommand creates the validate command: load the config and
// descriptors without running anything.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file and target descriptors",
		Long: `Load the runtime config and the build target descriptors, reporting
schema violations without running any tests.

Example:
  kestrel validate --config kestrel.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "config is invalid", err)
	}

	// Collect every descriptor problem in one pass so a fix-compile
	// loop over a large target set converges quickly.
	descriptors, errs := config.LoadDescriptors(cfg.Targets.DescriptorDir, config.LoadModeCollectAll)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(cmd.ErrOrStderr(), e)
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}
	tests, production := config.SplitDescriptors(descriptors)

	suites := make(map[string]int)
	for _, d := range tests {
		suites[d.Suite]++
	}

	fmt.Fprintf(cmd.OutOrStdout(), "config ok: %d test targets, %d production targets, %d suites\n",
		len(tests), len(production), len(suites))
	return nil
}
