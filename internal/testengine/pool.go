package testengine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrel-ci/kestrel/internal/policy"
	"github.com/kestrel-ci/kestrel/internal/target"
)

// completionSink serializes OnComplete invocations. Workers finish on
// their own goroutines; the sink pins the exactly-once, one-at-a-time
// delivery the runtime's progress tracking relies on.
type completionSink struct {
	mu sync.Mutex
	cb func(Job)
}

func (s *completionSink) fire(job Job) {
	if s.cb == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb(job)
}

func (e *Engine) run(spec RunSpec, instrumented bool, integrity policy.IntegrityFailure) (SequenceResult, []InstrumentedJob) {
	jobs := make([]InstrumentedJob, len(spec.Targets))
	sink := &completionSink{cb: spec.OnComplete}

	// An exhausted global budget still produces a job per target so the
	// report and progress accounting stay complete.
	if spec.GlobalTimeout != nil && *spec.GlobalTimeout <= 0 {
		now := time.Now()
		for i, t := range spec.Targets {
			jobs[i] = InstrumentedJob{Job: Job{
				Target:    t,
				Command:   t.Command(),
				StartTime: now,
				Result:    TestResultTimeout,
			}}
			sink.fire(jobs[i].Job)
		}
		return SequenceResultTimeout, jobs
	}

	if len(spec.Targets) == 0 {
		return SequenceResultSuccess, jobs
	}

	ctx := context.Background()
	if spec.GlobalTimeout != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *spec.GlobalTimeout)
		defer cancel()
	}

	var abort atomic.Bool
	indices := make(chan int)

	workers := e.maxConcurrency
	if workers > len(spec.Targets) {
		workers = len(spec.Targets)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				t := spec.Targets[i]
				switch {
				case abort.Load():
					jobs[i] = InstrumentedJob{Job: Job{
						Target:    t,
						Command:   t.Command(),
						StartTime: time.Now(),
						Result:    TestResultNotRun,
					}}
				case ctx.Err() != nil:
					jobs[i] = InstrumentedJob{Job: Job{
						Target:    t,
						Command:   t.Command(),
						StartTime: time.Now(),
						Result:    TestResultTimeout,
					}}
				default:
					jobs[i] = e.executeTarget(ctx, t, spec, instrumented, integrity)
				}

				switch jobs[i].Result {
				case TestResultFailed:
					if spec.TestFailure == policy.TestFailureAbort {
						abort.Store(true)
					}
				case TestResultError:
					if spec.ExecutionFailure == policy.ExecutionFailureAbort {
						abort.Store(true)
					}
				}

				sink.fire(jobs[i].Job)
			}
		}()
	}

	for i := range spec.Targets {
		indices <- i
	}
	close(indices)
	wg.Wait()

	result := SequenceResultSuccess
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result = SequenceResultTimeout
	}
	for _, j := range jobs {
		var status SequenceResult
		switch j.Result {
		case TestResultFailed:
			status = SequenceResultTestFailures
		case TestResultTimeout:
			status = SequenceResultTimeout
		case TestResultError:
			if spec.ExecutionFailure == policy.ExecutionFailureIgnore {
				continue
			}
			status = SequenceResultFailure
		default:
			continue
		}
		if Worse(status, result) {
			result = status
		}
	}
	return result, jobs
}

func (e *Engine) executeTarget(ctx context.Context, t *target.TestTarget, spec RunSpec, instrumented bool, integrity policy.IntegrityFailure) InstrumentedJob {
	job := InstrumentedJob{Job: Job{
		Target:    t,
		Command:   t.Command(),
		StartTime: time.Now(),
	}}

	argv := commandArgv(t.Command())
	if len(argv) == 0 {
		job.Result = TestResultError
		return job
	}

	artifact := filepath.Join(e.artifactDir, t.Name()+".cov")
	if instrumented {
		// Stale artifacts from a previous run must not be mistaken for
		// this run's coverage.
		os.Remove(artifact)
		if e.instrumentation != "" {
			argv = append([]string{e.instrumentation, "--output", artifact, "--"}, argv...)
		}
	}

	runCtx := ctx
	if spec.TargetTimeout != nil {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, *spec.TargetTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = e.repoRoot
	if instrumented && e.instrumentation == "" {
		cmd.Env = append(os.Environ(), "KESTREL_COVERAGE_FILE="+artifact)
	}

	var buf bytes.Buffer
	if spec.Capture != policy.TargetOutputCaptureNone {
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	}

	err := cmd.Run()
	job.Duration = time.Since(job.StartTime)
	job.Output = buf.String()

	var exitErr *exec.ExitError
	switch {
	case runCtx.Err() != nil:
		job.Result = TestResultTimeout
	case err == nil:
		job.Result = TestResultPassed
	case errors.As(err, &exitErr):
		job.Result = TestResultFailed
	default:
		job.Result = TestResultError
		slog.Warn("test target failed to launch", "target", t.Name(), "error", err)
	}

	if spec.Capture == policy.TargetOutputCaptureFile || spec.Capture == policy.TargetOutputCaptureStdoutAndFile {
		e.writeOutputLog(t, job.Output)
	}

	if instrumented && (job.Result == TestResultPassed || job.Result == TestResultFailed) {
		cov, err := parseCoverageArtifact(artifact)
		if err != nil {
			// An artifact that exists but cannot be read is an integrity
			// defect, not a missing artifact.
			if integrity == policy.IntegrityFailureAbort {
				job.Result = TestResultError
			}
			slog.Warn("unreadable coverage artifact", "target", t.Name(), "path", artifact, "error", err)
		}
		job.Coverage = cov
	}
	return job
}

func (e *Engine) writeOutputLog(t *target.TestTarget, output string) {
	path := filepath.Join(e.artifactDir, t.Name()+".log")
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		slog.Warn("cannot write target output log", "path", path, "error", err)
	}
}
