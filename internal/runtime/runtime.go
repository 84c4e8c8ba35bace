// Package runtime is the public entry point of the test impact
// analysis engine. It composes the build graph, the dynamic dependency
// map, the selector and the test engine, and drives the four sequence
// modes.
package runtime

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-ci/kestrel/internal/coverage"
	"github.com/kestrel-ci/kestrel/internal/dependency"
	"github.com/kestrel-ci/kestrel/internal/policy"
	"github.com/kestrel-ci/kestrel/internal/target"
	"github.com/kestrel-ci/kestrel/internal/testengine"
)

// TestEngine is the contract the runtime requires of its engine. Both
// run operations block until every job has completed or the global
// timeout fired, and invoke OnComplete exactly once per target in
// completion order.
type TestEngine interface {
	RegularRun(spec testengine.RunSpec) (testengine.SequenceResult, []testengine.Job)
	InstrumentedRun(spec testengine.InstrumentedRunSpec) (testengine.SequenceResult, []testengine.InstrumentedJob)
}

// Config parameterizes runtime construction.
type Config struct {
	// RepoRoot anchors source path normalization; coverage for sources
	// outside it is dropped.
	RepoRoot string

	// WorkspaceActiveRoot hosts the per-suite impact analysis data
	// files as <root>/<suite>/<DataFileName>.
	WorkspaceActiveRoot string

	// DataFileName names the impact analysis data file. Ignored when
	// DataFile is set.
	DataFileName string

	// DataFile, when set, overrides the data file location entirely.
	DataFile string

	// PreviousDataFile is an optional fallback read when the active
	// data file does not exist yet.
	PreviousDataFile string

	// Suite filters the test target universe. Empty selects all suites.
	Suite string

	// TestDescriptors and ProductionDescriptors define the build graph.
	TestDescriptors       []target.Descriptor
	ProductionDescriptors []target.Descriptor

	// TestsToExclude, when non-empty, builds both exclude lists.
	// Otherwise the per-kind exclusion sets below are used.
	TestsToExclude            []target.ExcludedTarget
	ExcludedRegularTests      []target.ExcludedTarget
	ExcludedInstrumentedTests []target.ExcludedTarget

	// Policies are the sequence policies in force.
	Policies policy.State

	// MaxConcurrency is recorded in reports; the engine enforces it.
	MaxConcurrency int
}

// Runtime owns the build-target universe and the dynamic dependency
// map, and runs test sequences through the engine.
//
// Runtime is single-threaded: one sequence at a time, driven by the
// calling goroutine. The coverage index and the impact-analysis flag
// are mutated only between engine runs and after the sequence end
// callback.
type Runtime struct {
	engine   TestEngine
	depMap   *dependency.Map
	selector *dependency.SelectorPrioritizer

	regularExclude      *target.ExcludeList
	instrumentedExclude *target.ExcludeList

	repoRoot       string
	suite          string
	policies       policy.State
	maxConcurrency int
	dataFile       string

	hasImpactAnalysisData bool
}

// New builds a runtime and loads any existing impact analysis data.
//
// A missing data file is informational: the runtime starts with no
// impact data. A present but malformed or graph-inconsistent file
// obeys the integrity failure policy: abort fails construction,
// continue starts empty.
func New(cfg Config, engine TestEngine) (*Runtime, error) {
	if err := cfg.Policies.Validate(); err != nil {
		return nil, &Error{Code: ErrCodeConstruction, Message: "invalid policy state", Err: err}
	}
	if engine == nil {
		return nil, &Error{Code: ErrCodeConstruction, Message: "no test engine"}
	}

	testDescriptors := cfg.TestDescriptors
	if cfg.Suite != "" {
		testDescriptors = filterBySuite(testDescriptors, cfg.Suite)
	}

	tests, err := target.NewTestList(testDescriptors)
	if err != nil {
		return nil, &Error{Code: ErrCodeConstruction, Message: "building test target list", Err: err}
	}
	// A universe without production targets is legal; only an empty
	// test universe is a construction defect.
	var production *target.List[target.ProductionTarget]
	if len(cfg.ProductionDescriptors) > 0 {
		production, err = target.NewProductionList(cfg.ProductionDescriptors)
		if err != nil {
			return nil, &Error{Code: ErrCodeConstruction, Message: "building production target list", Err: err}
		}
	}

	depMap := dependency.NewMap(tests, production)

	var regularExclude, instrumentedExclude *target.ExcludeList
	if len(cfg.TestsToExclude) > 0 {
		regularExclude = target.NewExcludeList(tests, cfg.TestsToExclude)
		instrumentedExclude = target.NewExcludeList(tests, cfg.TestsToExclude)
	} else {
		regularExclude = target.NewExcludeList(tests, cfg.ExcludedRegularTests)
		instrumentedExclude = target.NewExcludeList(tests, cfg.ExcludedInstrumentedTests)
	}

	r := &Runtime{
		engine:              engine,
		depMap:              depMap,
		selector:            dependency.NewSelectorPrioritizer(depMap),
		regularExclude:      regularExclude,
		instrumentedExclude: instrumentedExclude,
		repoRoot:            cfg.RepoRoot,
		suite:               cfg.Suite,
		policies:            cfg.Policies,
		maxConcurrency:      cfg.MaxConcurrency,
		dataFile:            cfg.DataFile,
	}
	if r.dataFile == "" {
		r.dataFile = filepath.Join(cfg.WorkspaceActiveRoot, cfg.Suite, cfg.DataFileName)
	}

	if err := r.loadImpactAnalysisData(cfg.PreviousDataFile); err != nil {
		return nil, err
	}
	return r, nil
}

func filterBySuite(descriptors []target.Descriptor, suite string) []target.Descriptor {
	out := make([]target.Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Suite == suite {
			out = append(out, d)
		}
	}
	return out
}

func (r *Runtime) loadImpactAnalysisData(previousDataFile string) error {
	list, err := coverage.ReadFile(r.dataFile)
	if errors.Is(err, os.ErrNotExist) && previousDataFile != "" {
		slog.Info("active impact analysis data missing, trying previous run data",
			"active", r.dataFile, "previous", previousDataFile)
		list, err = coverage.ReadFile(previousDataFile)
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Info("no test impact analysis data found", "suite", r.suite, "path", r.dataFile)
		return nil
	case err != nil:
		if r.policies.IntegrityFailure == policy.IntegrityFailureAbort {
			return &Error{Code: ErrCodeDataLoad, Message: "loading impact analysis data", Err: err}
		}
		slog.Warn("discarding unreadable impact analysis data", "path", r.dataFile, "error", err)
		return nil
	}

	if list.NumSources() == 0 {
		slog.Info("impact analysis data file is empty", "suite", r.suite, "path", r.dataFile)
		return nil
	}

	if err := r.depMap.ReplaceSourceCoverage(list); err != nil {
		if r.policies.IntegrityFailure == policy.IntegrityFailureAbort {
			return &Error{Code: ErrCodeDataLoad, Message: "impact analysis data inconsistent with build graph", Err: err}
		}
		slog.Warn("discarding impact analysis data inconsistent with build graph", "error", err)
		return nil
	}
	r.hasImpactAnalysisData = true
	slog.Info("loaded impact analysis data", "suite", r.suite, "sources", list.NumSources())
	return nil
}

// HasImpactAnalysisData reports whether the runtime holds coverage
// data usable for impact analysis sequences.
func (r *Runtime) HasImpactAnalysisData() bool { return r.hasImpactAnalysisData }

// DataFile returns the active impact analysis data file path.
func (r *Runtime) DataFile() string { return r.dataFile }

// TestTargets returns the (suite-filtered) test target universe.
func (r *Runtime) TestTargets() *target.List[target.TestTarget] { return r.depMap.TestTargets() }

// clearImpactAnalysisData empties the coverage index, forgets the
// impact-analysis flag and removes the on-disk data file.
func (r *Runtime) clearImpactAnalysisData() {
	r.depMap.ClearAll()
	r.hasImpactAnalysisData = false
	if err := os.Remove(r.dataFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("cannot remove impact analysis data file", "path", r.dataFile, "error", err)
	}
}

// selectCoveringTestTargets selects the test targets covering the
// resolved change list and splits the universe into selected and the
// rest.
func (r *Runtime) selectCoveringTestTargets(
	list dependency.ChangeDependencyList,
	prioritization policy.TestPrioritization,
) (selected, discarded []*target.TestTarget) {
	selected = r.selector.SelectTestTargets(list, prioritization)

	selectedSet := make(map[string]struct{}, len(selected))
	for _, t := range selected {
		selectedSet[t.Name()] = struct{}{}
	}
	for _, t := range r.depMap.TestTargets().Targets() {
		if _, ok := selectedSet[t.Name()]; !ok {
			discarded = append(discarded, t)
		}
	}
	return selected, discarded
}

func (r *Runtime) sequenceMeta(targetTimeout, globalTimeout *time.Duration) SequenceMeta {
	return SequenceMeta{
		ID:             uuid.NewString(),
		Suite:          r.suite,
		MaxConcurrency: r.maxConcurrency,
		TargetTimeout:  targetTimeout,
		GlobalTimeout:  globalTimeout,
		Policies:       r.policies,
	}
}
