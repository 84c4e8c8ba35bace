package runtime

import (
	"log/slog"

	"github.com/kestrel-ci/kestrel/internal/changelist"
	"github.com/kestrel-ci/kestrel/internal/coverage"
	"github.com/kestrel-ci/kestrel/internal/policy"
	"github.com/kestrel-ci/kestrel/internal/testengine"
)

// createSourceCoveringList prunes each job's previous coverage from
// the dependency map and consolidates the jobs' fresh coverage into a
// source covering tests list.
//
// Pruning happens for every job, ingesting only for jobs the policies
// admit: a previous build of a test target must not leak stale source
// entries forward even when this run's coverage is discarded.
func (r *Runtime) createSourceCoveringList(jobs []testengine.InstrumentedJob) (coverage.SourceCoveringTestsList, error) {
	acc := make(map[string]map[string]struct{})
	for _, job := range jobs {
		r.depMap.RemoveTestFromSourceCoverage(job.Target)

		result := job.Result
		if r.policies.FailedTestCoverage == policy.FailedTestCoverageDiscard && result == testengine.TestResultFailed {
			continue
		}
		if result != testengine.TestResultPassed && result != testengine.TestResultFailed {
			continue
		}

		if job.Coverage == nil {
			if result == testengine.TestResultPassed {
				// A passing run with no artifact means the instrumentation
				// layer is broken; the data file must not be updated from it.
				return coverage.SourceCoveringTestsList{}, &Error{
					Code:    ErrCodeMissingCoverage,
					Message: "test target completed successfully but produced no coverage data",
					Target:  job.Target.Name(),
				}
			}
			// A failing run without an artifact is typically a test
			// aborting abnormally; the failure report picks it up.
			continue
		}

		for _, source := range job.Coverage.SourcesCovered {
			tests, ok := acc[source]
			if !ok {
				tests = make(map[string]struct{})
				acc[source] = tests
			}
			tests[job.Target.Name()] = struct{}{}
		}
	}

	raw := make([]coverage.SourceCoveringTests, 0, len(acc))
	for source, tests := range acc {
		normalized, err := changelist.NormalizePath(r.repoRoot, source)
		if err != nil {
			slog.Warn("ignoring covered source outside the repo", "source", source)
			continue
		}
		names := make([]string, 0, len(tests))
		for name := range tests {
			names = append(names, name)
		}
		raw = append(raw, coverage.SourceCoveringTests{Path: normalized, TestTargets: names})
	}
	return coverage.NewSourceCoveringTestsList(raw), nil
}

// updateAndSerializeCoverage reconciles instrumented jobs into the
// dependency map and persists the result to the data file. Returns
// true only when the data file was replaced; a run yielding no
// coverage leaves the file untouched, although the jobs' previous
// coverage has already been pruned from the map.
//
// The missing-coverage defect always propagates. Persistence failures
// obey the integrity failure policy.
func (r *Runtime) updateAndSerializeCoverage(jobs []testengine.InstrumentedJob) (bool, error) {
	list, err := r.createSourceCoveringList(jobs)
	if err != nil {
		return false, err
	}
	if list.NumSources() == 0 {
		return false, nil
	}

	if err := r.depMap.ReplaceSourceCoverage(list); err != nil {
		if r.policies.IntegrityFailure == policy.IntegrityFailureAbort {
			return false, &Error{Code: ErrCodeCoveragePersist, Message: "replacing source coverage", Err: err}
		}
		slog.Error("replacing source coverage failed", "error", err)
		return false, nil
	}

	if err := coverage.WriteFile(r.dataFile, r.depMap.ExportSourceCoverage()); err != nil {
		if r.policies.IntegrityFailure == policy.IntegrityFailureAbort {
			return false, &Error{Code: ErrCodeCoveragePersist, Message: "writing impact analysis data file", Err: err}
		}
		slog.Error("writing impact analysis data file failed", "path", r.dataFile, "error", err)
		return false, nil
	}
	return true, nil
}

// applyCoverageUpdate runs the reconciliation and flips the
// impact-analysis flag on success, keeping its previous value when the
// run produced nothing to persist.
func (r *Runtime) applyCoverageUpdate(jobs []testengine.InstrumentedJob) error {
	persisted, err := r.updateAndSerializeCoverage(jobs)
	if err != nil {
		return err
	}
	if persisted {
		r.hasImpactAnalysisData = true
	}
	return nil
}
