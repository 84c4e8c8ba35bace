package runtime

import (
	"time"

	"github.com/kestrel-ci/kestrel/internal/changelist"
	"github.com/kestrel-ci/kestrel/internal/policy"
	"github.com/kestrel-ci/kestrel/internal/target"
	"github.com/kestrel-ci/kestrel/internal/testengine"
)

// TestCompleteCallback receives each finished test target together
// with the monotonically increasing completion count over the whole
// sequence.
type TestCompleteCallback func(run TestRun, completed, total int)

// SequenceStartCallback opens a regular or seeded sequence.
type SequenceStartCallback func(suite string, selected TestRunSelection)

// ImpactSequenceStartCallback opens an impact analysis sequence.
type ImpactSequenceStartCallback func(suite string, selected TestRunSelection, discarded, drafted []string)

// SafeImpactSequenceStartCallback opens a safe impact analysis
// sequence.
type SafeImpactSequenceStartCallback func(suite string, selected, discarded TestRunSelection, drafted []string)

// RegularSequenceOptions parameterizes RegularTestSequence.
type RegularSequenceOptions struct {
	TargetTimeout  *time.Duration
	GlobalTimeout  *time.Duration
	OnStart        SequenceStartCallback
	OnEnd          func(RegularSequenceReport)
	OnTestComplete TestCompleteCallback
}

// SeedSequenceOptions parameterizes SeededTestSequence.
type SeedSequenceOptions struct {
	TargetTimeout  *time.Duration
	GlobalTimeout  *time.Duration
	OnStart        SequenceStartCallback
	OnEnd          func(SeedSequenceReport)
	OnTestComplete TestCompleteCallback
}

// ImpactAnalysisSequenceOptions parameterizes
// ImpactAnalysisTestSequence.
type ImpactAnalysisSequenceOptions struct {
	TargetTimeout  *time.Duration
	GlobalTimeout  *time.Duration
	OnStart        ImpactSequenceStartCallback
	OnEnd          func(ImpactAnalysisSequenceReport)
	OnTestComplete TestCompleteCallback
}

// SafeImpactAnalysisSequenceOptions parameterizes
// SafeImpactAnalysisTestSequence.
type SafeImpactAnalysisSequenceOptions struct {
	TargetTimeout  *time.Duration
	GlobalTimeout  *time.Duration
	OnStart        SafeImpactSequenceStartCallback
	OnEnd          func(SafeImpactAnalysisSequenceReport)
	OnTestComplete TestCompleteCallback
}

// phaseData carries one phase's report plus the raw instrumented jobs
// coverage reconciliation needs afterwards.
type phaseData struct {
	report       TestRunReport
	instrumented []testengine.InstrumentedJob
}

func emptyPhaseData() phaseData {
	return phaseData{report: emptyTestRunReport()}
}

func (r *Runtime) runSpec(targets []*target.TestTarget, targetTimeout, budget *time.Duration, tracker *completionTracker) testengine.RunSpec {
	return testengine.RunSpec{
		Targets:          targets,
		ExecutionFailure: r.policies.ExecutionFailure,
		TestFailure:      r.policies.TestFailure,
		Capture:          r.policies.TargetOutputCapture,
		TargetTimeout:    targetTimeout,
		GlobalTimeout:    budget,
		OnComplete:       tracker.complete,
	}
}

func (r *Runtime) runRegularPhase(seqTimer timer, targets []*target.TestTarget, targetTimeout, budget *time.Duration, tracker *completionTracker) phaseData {
	phaseTimer := newTimer()
	result, jobs := r.engine.RegularRun(r.runSpec(targets, targetTimeout, budget, tracker))
	duration := phaseTimer.elapsed()
	return phaseData{
		report: newTestRunReport(result, phaseTimer.startRelative(seqTimer), duration, jobs),
	}
}

func (r *Runtime) runInstrumentedPhase(seqTimer timer, targets []*target.TestTarget, targetTimeout, budget *time.Duration, tracker *completionTracker) phaseData {
	phaseTimer := newTimer()
	result, jobs := r.engine.InstrumentedRun(testengine.InstrumentedRunSpec{
		RunSpec:          r.runSpec(targets, targetTimeout, budget, tracker),
		IntegrityFailure: r.policies.IntegrityFailure,
	})
	duration := phaseTimer.elapsed()
	return phaseData{
		report:       newTestRunReport(result, phaseTimer.startRelative(seqTimer), duration, testengine.BaseJobs(jobs)),
		instrumented: jobs,
	}
}

// remainingBudget carries a global timeout across phases: the next
// phase gets whatever the cumulative elapsed time left, floored at
// zero so an exhausted budget still invokes the phase and times it
// out immediately.
func remainingBudget(global *time.Duration, elapsed time.Duration) *time.Duration {
	if global == nil {
		return nil
	}
	rem := *global - elapsed
	if rem < 0 {
		rem = 0
	}
	return &rem
}

// RegularTestSequence runs every test target in the universe that the
// regular exclude list does not fully exclude, without coverage
// instrumentation.
func (r *Runtime) RegularTestSequence(opts RegularSequenceOptions) (RegularSequenceReport, error) {
	seqTimer := newTimer()

	included, excluded := r.regularExclude.Partition(r.depMap.TestTargets().Targets())
	selection := TestRunSelection{Included: target.Names(included), Excluded: target.Names(excluded)}

	if opts.OnStart != nil {
		opts.OnStart(r.suite, selection)
	}

	tracker := newCompletionTracker(len(included), opts.OnTestComplete)
	data := r.runRegularPhase(seqTimer, included, opts.TargetTimeout, opts.GlobalTimeout, tracker)

	report := RegularSequenceReport{
		SequenceMeta:  r.sequenceMeta(opts.TargetTimeout, opts.GlobalTimeout),
		SelectedTests: selection,
		Run:           data.report,
	}
	if opts.OnEnd != nil {
		opts.OnEnd(report)
	}
	return report, nil
}

// SeededTestSequence runs every not-fully-excluded test target under
// instrumentation, then replaces the impact analysis data wholesale
// with the coverage this run produced.
func (r *Runtime) SeededTestSequence(opts SeedSequenceOptions) (SeedSequenceReport, error) {
	seqTimer := newTimer()

	included, excluded := r.instrumentedExclude.Partition(r.depMap.TestTargets().Targets())
	selection := TestRunSelection{Included: target.Names(included), Excluded: target.Names(excluded)}

	if opts.OnStart != nil {
		opts.OnStart(r.suite, selection)
	}

	tracker := newCompletionTracker(len(included), opts.OnTestComplete)
	data := r.runInstrumentedPhase(seqTimer, included, opts.TargetTimeout, opts.GlobalTimeout, tracker)

	report := SeedSequenceReport{
		SequenceMeta:  r.sequenceMeta(opts.TargetTimeout, opts.GlobalTimeout),
		SelectedTests: selection,
		Run:           data.report,
	}
	if opts.OnEnd != nil {
		opts.OnEnd(report)
	}

	// The seed run is the new ground truth: drop everything, including
	// the on-disk file, before ingesting this run's coverage.
	r.clearImpactAnalysisData()
	if err := r.applyCoverageUpdate(data.instrumented); err != nil {
		return report, err
	}
	return report, nil
}

// ImpactAnalysisTestSequence selects the test targets covering the
// change list, runs them, then runs the drafted targets (those with no
// known coverage). Under the update policy both phases run
// instrumented and their coverage replaces the affected entries.
func (r *Runtime) ImpactAnalysisTestSequence(
	changes changelist.ChangeList,
	prioritization policy.TestPrioritization,
	mapUpdate policy.DynamicDependencyMap,
	opts ImpactAnalysisSequenceOptions,
) (ImpactAnalysisSequenceReport, error) {
	seqTimer := newTimer()

	drafted := r.depMap.NotCoveringTests()

	resolved, err := r.depMap.ApplyAndResolve(changes, r.policies.IntegrityFailure)
	if err != nil {
		return ImpactAnalysisSequenceReport{}, err
	}
	selected, discarded := r.selectCoveringTestTargets(resolved, prioritization)
	discarded = pruneTargets(discarded, drafted)

	includedSelected, excludedSelected := r.instrumentedExclude.Partition(selected)
	selection := TestRunSelection{Included: target.Names(includedSelected), Excluded: target.Names(excludedSelected)}
	discardedNames := target.Names(discarded)
	draftedNames := target.Names(drafted)

	if opts.OnStart != nil {
		opts.OnStart(r.suite, selection, discardedNames, draftedNames)
	}

	// One tracker spans both phases so the client sees a single
	// continuous sequence rather than two runs.
	tracker := newCompletionTracker(len(includedSelected)+len(drafted), opts.OnTestComplete)

	instrumented := mapUpdate == policy.DynamicDependencyMapUpdate
	runPhase := func(targets []*target.TestTarget, budget *time.Duration) phaseData {
		if instrumented {
			return r.runInstrumentedPhase(seqTimer, targets, opts.TargetTimeout, budget, tracker)
		}
		return r.runRegularPhase(seqTimer, targets, opts.TargetTimeout, budget, tracker)
	}

	budget := opts.GlobalTimeout
	selectedData, draftedData := emptyPhaseData(), emptyPhaseData()

	if len(includedSelected) > 0 {
		selectedData = runPhase(includedSelected, budget)
		budget = remainingBudget(opts.GlobalTimeout, selectedData.report.Duration)
	}
	if len(drafted) > 0 {
		draftedData = runPhase(drafted, budget)
	}

	report := ImpactAnalysisSequenceReport{
		SequenceMeta:   r.sequenceMeta(opts.TargetTimeout, opts.GlobalTimeout),
		Prioritization: prioritization,
		MapUpdate:      mapUpdate,
		SelectedTests:  selection,
		DiscardedTests: discardedNames,
		DraftedTests:   draftedNames,
		SelectedRun:    selectedData.report,
		DraftedRun:     draftedData.report,
	}
	if opts.OnEnd != nil {
		opts.OnEnd(report)
	}

	if instrumented {
		jobs := append(selectedData.instrumented, draftedData.instrumented...)
		if err := r.applyCoverageUpdate(jobs); err != nil {
			return report, err
		}
	}
	return report, nil
}

// SafeImpactAnalysisTestSequence runs the selected targets
// instrumented, the discarded targets regular (so no change goes
// untested), and the drafted targets instrumented, carrying the global
// budget across all three phases.
func (r *Runtime) SafeImpactAnalysisTestSequence(
	changes changelist.ChangeList,
	prioritization policy.TestPrioritization,
	opts SafeImpactAnalysisSequenceOptions,
) (SafeImpactAnalysisSequenceReport, error) {
	seqTimer := newTimer()

	drafted := r.depMap.NotCoveringTests()

	resolved, err := r.depMap.ApplyAndResolve(changes, r.policies.IntegrityFailure)
	if err != nil {
		return SafeImpactAnalysisSequenceReport{}, err
	}
	selected, discarded := r.selectCoveringTestTargets(resolved, prioritization)
	discarded = pruneTargets(discarded, drafted)

	includedSelected, excludedSelected := r.instrumentedExclude.Partition(selected)
	includedDiscarded, excludedDiscarded := r.regularExclude.Partition(discarded)

	selection := TestRunSelection{Included: target.Names(includedSelected), Excluded: target.Names(excludedSelected)}
	discardedSelection := TestRunSelection{Included: target.Names(includedDiscarded), Excluded: target.Names(excludedDiscarded)}
	draftedNames := target.Names(drafted)

	if opts.OnStart != nil {
		opts.OnStart(r.suite, selection, discardedSelection, draftedNames)
	}

	tracker := newCompletionTracker(len(includedSelected)+len(includedDiscarded)+len(drafted), opts.OnTestComplete)

	budget := opts.GlobalTimeout
	var elapsed time.Duration
	selectedData, discardedData, draftedData := emptyPhaseData(), emptyPhaseData(), emptyPhaseData()

	if len(includedSelected) > 0 {
		selectedData = r.runInstrumentedPhase(seqTimer, includedSelected, opts.TargetTimeout, budget, tracker)
		elapsed += selectedData.report.Duration
		budget = remainingBudget(opts.GlobalTimeout, elapsed)
	}
	if len(includedDiscarded) > 0 {
		discardedData = r.runRegularPhase(seqTimer, includedDiscarded, opts.TargetTimeout, budget, tracker)
		elapsed += discardedData.report.Duration
		budget = remainingBudget(opts.GlobalTimeout, elapsed)
	}
	if len(drafted) > 0 {
		draftedData = r.runInstrumentedPhase(seqTimer, drafted, opts.TargetTimeout, budget, tracker)
	}

	report := SafeImpactAnalysisSequenceReport{
		SequenceMeta:   r.sequenceMeta(opts.TargetTimeout, opts.GlobalTimeout),
		Prioritization: prioritization,
		SelectedTests:  selection,
		DiscardedTests: discardedSelection,
		DraftedTests:   draftedNames,
		SelectedRun:    selectedData.report,
		DiscardedRun:   discardedData.report,
		DraftedRun:     draftedData.report,
	}
	if opts.OnEnd != nil {
		opts.OnEnd(report)
	}

	jobs := append(selectedData.instrumented, draftedData.instrumented...)
	if err := r.applyCoverageUpdate(jobs); err != nil {
		return report, err
	}
	return report, nil
}

// pruneTargets removes every target in remove from targets, keeping
// order.
func pruneTargets(targets, remove []*target.TestTarget) []*target.TestTarget {
	removeSet := make(map[string]struct{}, len(remove))
	for _, t := range remove {
		removeSet[t.Name()] = struct{}{}
	}
	var out []*target.TestTarget
	for _, t := range targets {
		if _, ok := removeSet[t.Name()]; !ok {
			out = append(out, t)
		}
	}
	return out
}
