package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/kestrel-ci/kestrel/internal/config"
	"github.com/kestrel-ci/kestrel/internal/history"
	"github.com/kestrel-ci/kestrel/internal/runtime"
	"github.com/kestrel-ci/kestrel/internal/target"
	"github.com/kestrel-ci/kestrel/internal/testengine"
)

// sequenceFlags are the per-command flags every sequence shares.
type sequenceFlags struct {
	TargetTimeout time.Duration
	GlobalTimeout time.Duration
	Exclude       []string
	DataFile      string
	PrevDataFile  string
}

func (f *sequenceFlags) targetTimeout() *time.Duration {
	if f.TargetTimeout <= 0 {
		return nil
	}
	d := f.TargetTimeout
	return &d
}

func (f *sequenceFlags) globalTimeout() *time.Duration {
	if f.GlobalTimeout <= 0 {
		return nil
	}
	d := f.GlobalTimeout
	return &d
}

func (f *sequenceFlags) excludedTargets() []target.ExcludedTarget {
	out := make([]target.ExcludedTarget, 0, len(f.Exclude))
	for _, name := range f.Exclude {
		out = append(out, target.ExcludedTarget{Name: name})
	}
	return out
}

// buildRuntime loads the config file and descriptors, constructs the
// local test engine and builds the runtime for the selected suite.
func buildRuntime(opts *RootOptions, flags *sequenceFlags) (*config.Config, *runtime.Runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	descriptors, errs := config.LoadDescriptors(cfg.Targets.DescriptorDir, config.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load target descriptors", errs[0])
	}
	tests, production := config.SplitDescriptors(descriptors)
	slog.Info("descriptors loaded", "tests", len(tests), "production", len(production))

	artifactDir := cfg.Workspace.ArtifactDir
	if artifactDir == "" {
		artifactDir = filepath.Join(cfg.Workspace.ActiveRoot, "artifacts")
	}

	engineOpts := []testengine.Option{testengine.WithMaxConcurrency(cfg.Engine.MaxConcurrency)}
	if cfg.Engine.InstrumentationBinary != "" {
		engineOpts = append(engineOpts, testengine.WithInstrumentationBinary(cfg.Engine.InstrumentationBinary))
	}
	engine, err := testengine.New(cfg.RepoRoot, artifactDir, engineOpts...)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to build test engine", err)
	}

	rtCfg := runtime.Config{
		RepoRoot:                  cfg.RepoRoot,
		WorkspaceActiveRoot:       cfg.Workspace.ActiveRoot,
		DataFileName:              cfg.Workspace.DataFileName,
		Suite:                     opts.Suite,
		TestDescriptors:           tests,
		ProductionDescriptors:     production,
		ExcludedRegularTests:      cfg.Targets.ExcludedRegularTests,
		ExcludedInstrumentedTests: cfg.Targets.ExcludedInstrumentedTests,
		Policies:                  cfg.Policies,
		MaxConcurrency:            cfg.Engine.MaxConcurrency,
	}
	if flags != nil {
		rtCfg.DataFile = flags.DataFile
		rtCfg.PreviousDataFile = flags.PrevDataFile
		rtCfg.TestsToExclude = flags.excludedTargets()
	}

	rt, err := runtime.New(rtCfg, engine)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to build runtime", err)
	}
	return cfg, rt, nil
}

// recordHistory appends a completed sequence report to the history
// database. History is best effort: failures are logged, never fatal.
func recordHistory(cfg *config.Config, mode string, meta runtime.SequenceMeta, runs []runtime.TestRunReport, report any, startedAt time.Time, duration time.Duration) {
	path := filepath.Join(cfg.Workspace.ActiveRoot, cfg.Workspace.HistoryFileName)
	store, err := history.Open(path)
	if err != nil {
		slog.Warn("cannot open history database", "path", path, "error", err)
		return
	}
	defer store.Close()

	entry := history.Entry{
		SequenceID: meta.ID,
		Mode:       mode,
		Suite:      meta.Suite,
		StartedAt:  startedAt,
		Duration:   duration,
	}
	worst := ""
	for _, run := range runs {
		entry.NumRuns += len(run.Runs)
		entry.NumPassing += run.NumPassing
		entry.NumFailing += run.NumFailing
		if worst == "" || testengine.Worse(run.Result, testengine.SequenceResult(worst)) {
			worst = string(run.Result)
		}
	}
	entry.Result = worst

	data, err := json.Marshal(report)
	if err != nil {
		slog.Warn("cannot encode sequence report", "error", err)
		return
	}
	entry.ReportJSON = string(data)

	if err := store.Append(context.Background(), entry); err != nil {
		slog.Warn("cannot record sequence report", "error", err)
	}
}

// sequenceExit maps a sequence's worst result to the command error, or
// nil for a fully successful sequence.
func sequenceExit(result testengine.SequenceResult) error {
	if result == testengine.SequenceResultSuccess {
		return nil
	}
	return NewExitError(ExitFailure, "test sequence completed with result "+string(result))
}
