package testengine

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kestrel-ci/kestrel/internal/policy"
	"github.com/kestrel-ci/kestrel/internal/target"
)

// enumerationCacheSize bounds the per-target enumeration cache.
const enumerationCacheSize = 512

// RunSpec parameterizes a regular (uninstrumented) run.
//
// TargetTimeout and GlobalTimeout are optional; nil means unbounded. A
// non-nil GlobalTimeout of zero (an exhausted budget) makes the run
// report Timeout immediately without launching anything.
type RunSpec struct {
	Targets          []*target.TestTarget
	ExecutionFailure policy.ExecutionFailure
	TestFailure      policy.TestFailure
	Capture          policy.TargetOutputCapture
	TargetTimeout    *time.Duration
	GlobalTimeout    *time.Duration

	// OnComplete, when non-nil, is invoked exactly once per target in
	// completion order, from whichever worker finished the target.
	OnComplete func(Job)
}

// InstrumentedRunSpec parameterizes an instrumented run.
type InstrumentedRunSpec struct {
	RunSpec
	IntegrityFailure policy.IntegrityFailure
}

// Engine runs test target processes with bounded concurrency.
//
// Instrumented runs expect each target to leave a coverage artifact at
// <artifactDir>/<target>.cov, one covered source path per line. When an
// instrumentation binary is configured the target command is wrapped
// as `<instrumentation> --output <artifact> -- <command...>`; without
// one the artifact path is exported to the child process as
// KESTREL_COVERAGE_FILE and the target is expected to write it itself.
type Engine struct {
	repoRoot        string
	artifactDir     string
	instrumentation string
	maxConcurrency  int
	enumerations    *lru.Cache[string, []string]
}

// Option configures an Engine.
type Option func(*Engine)

// WithInstrumentationBinary sets the coverage instrumentation wrapper.
func WithInstrumentationBinary(path string) Option {
	return func(e *Engine) { e.instrumentation = path }
}

// WithMaxConcurrency bounds the number of concurrently running
// targets. Defaults to the hardware thread count.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// New creates an engine rooted at repoRoot that stores run artifacts
// under artifactDir.
func New(repoRoot, artifactDir string, opts ...Option) (*Engine, error) {
	e := &Engine{
		repoRoot:       repoRoot,
		artifactDir:    artifactDir,
		maxConcurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("test engine: %w", err)
	}

	cache, err := lru.New[string, []string](enumerationCacheSize)
	if err != nil {
		return nil, fmt.Errorf("test engine: %w", err)
	}
	e.enumerations = cache
	return e, nil
}

// MaxConcurrency returns the concurrency bound in force.
func (e *Engine) MaxConcurrency() int { return e.maxConcurrency }

// RegularRun executes the targets without instrumentation and returns
// the worst-case status plus one job per target.
func (e *Engine) RegularRun(spec RunSpec) (SequenceResult, []Job) {
	result, jobs := e.run(spec, false, policy.IntegrityFailureContinue)
	return result, BaseJobs(jobs)
}

// InstrumentedRun executes the targets under coverage instrumentation.
func (e *Engine) InstrumentedRun(spec InstrumentedRunSpec) (SequenceResult, []InstrumentedJob) {
	return e.run(spec.RunSpec, true, spec.IntegrityFailure)
}

// commandArgv splits a target launch command into argv. Commands are
// whitespace-separated; descriptor authors quote nothing.
func commandArgv(command string) []string {
	return strings.Fields(command)
}
