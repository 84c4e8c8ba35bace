// Package policy defines the execution policies a test sequence runs
// under. The values are plain strings so they round-trip through YAML
// config, CLI flags and report serialization unchanged.
package policy

import "fmt"

// ExecutionFailure controls how a sequence reacts to a test target
// run ending in an error result: a target that fails to launch, or an
// unreadable coverage artifact under the abort integrity policy.
type ExecutionFailure string

const (
	// ExecutionFailureAbort stops dispatching further test targets.
	ExecutionFailureAbort ExecutionFailure = "abort"

	// ExecutionFailureContinue keeps running and reports the failure.
	ExecutionFailureContinue ExecutionFailure = "continue"

	// ExecutionFailureIgnore keeps running and does not count the
	// failure towards the sequence result.
	ExecutionFailureIgnore ExecutionFailure = "ignore"
)

// FailedTestCoverage controls whether coverage produced by a test
// target with failing tests is ingested or thrown away.
type FailedTestCoverage string

const (
	FailedTestCoverageKeep    FailedTestCoverage = "keep"
	FailedTestCoverageDiscard FailedTestCoverage = "discard"
)

// TestFailure controls how a sequence reacts to failing tests.
type TestFailure string

const (
	TestFailureAbort    TestFailure = "abort"
	TestFailureContinue TestFailure = "continue"
)

// IntegrityFailure controls how the runtime reacts to inconsistencies
// between the coverage data and the build graph, and to persistence
// failures.
type IntegrityFailure string

const (
	IntegrityFailureAbort    IntegrityFailure = "abort"
	IntegrityFailureContinue IntegrityFailure = "continue"
)

// TestSharding controls whether test targets may be split into shards.
type TestSharding string

const (
	TestShardingNever  TestSharding = "never"
	TestShardingAlways TestSharding = "always"
)

// TargetOutputCapture controls where a test target's output goes.
type TargetOutputCapture string

const (
	TargetOutputCaptureNone          TargetOutputCapture = "none"
	TargetOutputCaptureStdout        TargetOutputCapture = "stdout"
	TargetOutputCaptureFile          TargetOutputCapture = "file"
	TargetOutputCaptureStdoutAndFile TargetOutputCapture = "stdout_and_file"
)

// TestPrioritization selects the ordering policy for selected tests.
type TestPrioritization string

const (
	TestPrioritizationNone TestPrioritization = "none"

	// TestPrioritizationDependencyLocality orders tests by build-graph
	// locality. Currently resolved the same as none; impact-analysis
	// sequence reports still record the policy value so runs remain
	// attributable.
	TestPrioritizationDependencyLocality TestPrioritization = "dependency_locality"
)

// DynamicDependencyMap controls whether an impact-analysis sequence
// updates the coverage index from its instrumented runs.
type DynamicDependencyMap string

const (
	DynamicDependencyMapUpdate  DynamicDependencyMap = "update"
	DynamicDependencyMapDiscard DynamicDependencyMap = "discard"
)

// State is the record of the policies in force for a sequence. It is
// embedded verbatim in sequence reports.
type State struct {
	ExecutionFailure    ExecutionFailure    `json:"execution_failure" yaml:"execution_failure"`
	FailedTestCoverage  FailedTestCoverage  `json:"failed_test_coverage" yaml:"failed_test_coverage"`
	TestFailure         TestFailure         `json:"test_failure" yaml:"test_failure"`
	IntegrityFailure    IntegrityFailure    `json:"integrity_failure" yaml:"integrity_failure"`
	TestSharding        TestSharding        `json:"test_sharding" yaml:"test_sharding"`
	TargetOutputCapture TargetOutputCapture `json:"target_output_capture" yaml:"target_output_capture"`
}

// Validate rejects policy values outside the defined sets.
func (s State) Validate() error {
	switch s.ExecutionFailure {
	case ExecutionFailureAbort, ExecutionFailureContinue, ExecutionFailureIgnore:
	default:
		return fmt.Errorf("invalid execution failure policy %q", s.ExecutionFailure)
	}
	switch s.FailedTestCoverage {
	case FailedTestCoverageKeep, FailedTestCoverageDiscard:
	default:
		return fmt.Errorf("invalid failed test coverage policy %q", s.FailedTestCoverage)
	}
	switch s.TestFailure {
	case TestFailureAbort, TestFailureContinue:
	default:
		return fmt.Errorf("invalid test failure policy %q", s.TestFailure)
	}
	switch s.IntegrityFailure {
	case IntegrityFailureAbort, IntegrityFailureContinue:
	default:
		return fmt.Errorf("invalid integrity failure policy %q", s.IntegrityFailure)
	}
	switch s.TestSharding {
	case TestShardingNever, TestShardingAlways:
	default:
		return fmt.Errorf("invalid test sharding policy %q", s.TestSharding)
	}
	switch s.TargetOutputCapture {
	case TargetOutputCaptureNone, TargetOutputCaptureStdout, TargetOutputCaptureFile, TargetOutputCaptureStdoutAndFile:
	default:
		return fmt.Errorf("invalid target output capture policy %q", s.TargetOutputCapture)
	}
	return nil
}

// Default returns the policy state used when the config file does not
// override one: keep running on failures, keep coverage from failing
// tests, no sharding, stdout capture.
func Default() State {
	return State{
		ExecutionFailure:    ExecutionFailureContinue,
		FailedTestCoverage:  FailedTestCoverageKeep,
		TestFailure:         TestFailureContinue,
		IntegrityFailure:    IntegrityFailureAbort,
		TestSharding:        TestShardingNever,
		TargetOutputCapture: TargetOutputCaptureStdout,
	}
}
