package runtime

import (
	"time"

	"github.com/kestrel-ci/kestrel/internal/policy"
	"github.com/kestrel-ci/kestrel/internal/testengine"
)

// TestRun is the client-facing record of one executed test target.
type TestRun struct {
	TargetName string                `json:"target_name"`
	Command    string                `json:"command"`
	StartTime  time.Time             `json:"start_time"`
	Duration   time.Duration         `json:"duration"`
	Result     testengine.TestResult `json:"result"`
}

func newTestRun(job testengine.Job) TestRun {
	return TestRun{
		TargetName: job.Target.Name(),
		Command:    job.Command,
		StartTime:  job.StartTime,
		Duration:   job.Duration,
		Result:     job.Result,
	}
}

func newTestRuns(jobs []testengine.Job) []TestRun {
	runs := make([]TestRun, len(jobs))
	for i, j := range jobs {
		runs[i] = newTestRun(j)
	}
	return runs
}

// TestRunSelection is the client-facing split of a target set into
// those that will run and those fully excluded from running.
type TestRunSelection struct {
	Included []string `json:"included"`
	Excluded []string `json:"excluded,omitempty"`
}

// TestRunReport describes one phase of a sequence.
type TestRunReport struct {
	Result        testengine.SequenceResult `json:"result"`
	RelativeStart time.Duration             `json:"relative_start"`
	Duration      time.Duration             `json:"duration"`
	Runs          []TestRun                 `json:"runs"`

	NumPassing  int `json:"num_passing"`
	NumFailing  int `json:"num_failing"`
	NumTimedOut int `json:"num_timed_out"`
	NumNotRun   int `json:"num_not_run"`
	NumErrored  int `json:"num_errored"`
}

func newTestRunReport(result testengine.SequenceResult, relativeStart, duration time.Duration, jobs []testengine.Job) TestRunReport {
	report := TestRunReport{
		Result:        result,
		RelativeStart: relativeStart,
		Duration:      duration,
		Runs:          newTestRuns(jobs),
	}
	for _, j := range jobs {
		switch j.Result {
		case testengine.TestResultPassed:
			report.NumPassing++
		case testengine.TestResultFailed:
			report.NumFailing++
		case testengine.TestResultTimeout:
			report.NumTimedOut++
		case testengine.TestResultNotRun:
			report.NumNotRun++
		case testengine.TestResultError:
			report.NumErrored++
		}
	}
	return report
}

// emptyTestRunReport is the report of a phase that had nothing to run.
func emptyTestRunReport() TestRunReport {
	return TestRunReport{Result: testengine.SequenceResultSuccess}
}

// SequenceMeta is the header every sequence report shares.
type SequenceMeta struct {
	ID             string         `json:"id"`
	Suite          string         `json:"suite"`
	MaxConcurrency int            `json:"max_concurrency"`
	TargetTimeout  *time.Duration `json:"target_timeout,omitempty"`
	GlobalTimeout  *time.Duration `json:"global_timeout,omitempty"`
	Policies       policy.State   `json:"policies"`
}

// RegularSequenceReport is the outcome of a regular test sequence.
type RegularSequenceReport struct {
	SequenceMeta
	SelectedTests TestRunSelection `json:"selected_tests"`
	Run           TestRunReport    `json:"run"`
}

// Result returns the sequence's overall status.
func (r RegularSequenceReport) Result() testengine.SequenceResult { return r.Run.Result }

// SeedSequenceReport is the outcome of a seeded test sequence.
type SeedSequenceReport struct {
	SequenceMeta
	SelectedTests TestRunSelection `json:"selected_tests"`
	Run           TestRunReport    `json:"run"`
}

// Result returns the sequence's overall status.
func (r SeedSequenceReport) Result() testengine.SequenceResult { return r.Run.Result }

// ImpactAnalysisSequenceReport is the outcome of an impact analysis
// test sequence: the selected phase plus the drafted phase.
type ImpactAnalysisSequenceReport struct {
	SequenceMeta
	Prioritization policy.TestPrioritization   `json:"prioritization"`
	MapUpdate      policy.DynamicDependencyMap `json:"map_update"`
	SelectedTests  TestRunSelection            `json:"selected_tests"`
	DiscardedTests []string                    `json:"discarded_tests,omitempty"`
	DraftedTests   []string                    `json:"drafted_tests,omitempty"`
	SelectedRun    TestRunReport               `json:"selected_run"`
	DraftedRun     TestRunReport               `json:"drafted_run"`
}

// Result returns the worst status across the sequence's phases.
func (r ImpactAnalysisSequenceReport) Result() testengine.SequenceResult {
	return worstResult(r.SelectedRun.Result, r.DraftedRun.Result)
}

// SafeImpactAnalysisSequenceReport is the outcome of a safe impact
// analysis test sequence: selected, discarded and drafted phases.
type SafeImpactAnalysisSequenceReport struct {
	SequenceMeta
	Prioritization policy.TestPrioritization `json:"prioritization"`
	SelectedTests  TestRunSelection          `json:"selected_tests"`
	DiscardedTests TestRunSelection          `json:"discarded_tests"`
	DraftedTests   []string                  `json:"drafted_tests,omitempty"`
	SelectedRun    TestRunReport             `json:"selected_run"`
	DiscardedRun   TestRunReport             `json:"discarded_run"`
	DraftedRun     TestRunReport             `json:"drafted_run"`
}

// Result returns the worst status across the sequence's phases.
func (r SafeImpactAnalysisSequenceReport) Result() testengine.SequenceResult {
	return worstResult(r.SelectedRun.Result, r.DiscardedRun.Result, r.DraftedRun.Result)
}

func worstResult(results ...testengine.SequenceResult) testengine.SequenceResult {
	worst := testengine.SequenceResultSuccess
	for _, r := range results {
		if testengine.Worse(r, worst) {
			worst = r
		}
	}
	return worst
}
