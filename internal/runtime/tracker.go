package runtime

import (
	"sync"

	"github.com/kestrel-ci/kestrel/internal/testengine"
)

// completionTracker counts test completions across every phase of a
// sequence, so the (completed, total) pairs delivered to the client
// increase monotonically over the whole sequence rather than per run.
//
// The engine invokes complete from its worker goroutines; the mutex
// guards both the counter and the client callback.
type completionTracker struct {
	mu        sync.Mutex
	total     int
	completed int
	cb        TestCompleteCallback
}

func newCompletionTracker(total int, cb TestCompleteCallback) *completionTracker {
	return &completionTracker{total: total, cb: cb}
}

// complete records one finished test target and forwards it to the
// client callback, if any.
func (t *completionTracker) complete(job testengine.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	if t.cb != nil {
		t.cb(newTestRun(job), t.completed, t.total)
	}
}
