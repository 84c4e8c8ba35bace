package runtime

import (
	"time"

	"github.com/kestrel-ci/kestrel/internal/testengine"
)

// fakeCall records one engine invocation.
type fakeCall struct {
	instrumented bool
	targets      []string
	budget       *time.Duration
}

// fakeEngine is a scripted engine: per-target results and coverage,
// an optional real delay per run to exercise global budget carry-over,
// and a call log.
type fakeEngine struct {
	results  map[string]testengine.TestResult // default: passed
	coverage map[string][]string              // instrumented runs only
	runDelay time.Duration
	calls    []fakeCall
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		results:  make(map[string]testengine.TestResult),
		coverage: make(map[string][]string),
	}
}

func (f *fakeEngine) RegularRun(spec testengine.RunSpec) (testengine.SequenceResult, []testengine.Job) {
	result, jobs := f.run(spec, false)
	return result, testengine.BaseJobs(jobs)
}

func (f *fakeEngine) InstrumentedRun(spec testengine.InstrumentedRunSpec) (testengine.SequenceResult, []testengine.InstrumentedJob) {
	return f.run(spec.RunSpec, true)
}

func (f *fakeEngine) run(spec testengine.RunSpec, instrumented bool) (testengine.SequenceResult, []testengine.InstrumentedJob) {
	names := make([]string, len(spec.Targets))
	for i, t := range spec.Targets {
		names[i] = t.Name()
	}
	f.calls = append(f.calls, fakeCall{instrumented: instrumented, targets: names, budget: spec.GlobalTimeout})

	jobs := make([]testengine.InstrumentedJob, len(spec.Targets))

	// An exhausted budget times out without running anything, like the
	// real engine.
	if spec.GlobalTimeout != nil && *spec.GlobalTimeout <= 0 {
		for i, t := range spec.Targets {
			jobs[i] = testengine.InstrumentedJob{Job: testengine.Job{
				Target:    t,
				Command:   t.Command(),
				StartTime: time.Now(),
				Result:    testengine.TestResultTimeout,
			}}
			if spec.OnComplete != nil {
				spec.OnComplete(jobs[i].Job)
			}
		}
		return testengine.SequenceResultTimeout, jobs
	}

	if f.runDelay > 0 {
		time.Sleep(f.runDelay)
	}

	result := testengine.SequenceResultSuccess
	for i, t := range spec.Targets {
		jobResult, ok := f.results[t.Name()]
		if !ok {
			jobResult = testengine.TestResultPassed
		}
		jobs[i] = testengine.InstrumentedJob{Job: testengine.Job{
			Target:    t,
			Command:   t.Command(),
			StartTime: time.Now(),
			Duration:  time.Millisecond,
			Result:    jobResult,
		}}
		if instrumented {
			if sources, ok := f.coverage[t.Name()]; ok {
				jobs[i].Coverage = &testengine.Coverage{SourcesCovered: sources}
			}
		}

		var status testengine.SequenceResult
		switch jobResult {
		case testengine.TestResultFailed:
			status = testengine.SequenceResultTestFailures
		case testengine.TestResultTimeout:
			status = testengine.SequenceResultTimeout
		case testengine.TestResultError:
			status = testengine.SequenceResultFailure
		default:
			status = testengine.SequenceResultSuccess
		}
		if testengine.Worse(status, result) {
			result = status
		}

		if spec.OnComplete != nil {
			spec.OnComplete(jobs[i].Job)
		}
	}
	return result, jobs
}
