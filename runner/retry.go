package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/crosswing/crosswing/adapter"
	"github.com/crosswing/crosswing/types"
)

// TestFailedError reports a test that exhausted its retry budget. Runs that
// end with this error completed normally otherwise; callers use it to
// distinguish failing tests from operational failures.
type TestFailedError struct {
	Key      string
	Attempts int
	Err      error
}

func (e *TestFailedError) Error() string {
	return fmt.Sprintf("test %q failed after %d attempts: %v", e.Key, e.Attempts, e.Err)
}

func (e *TestFailedError) Unwrap() error { return e.Err }

// IsTestFailedError reports whether err is or wraps a TestFailedError.
func IsTestFailedError(err error) bool {
	var tf *TestFailedError
	return err != nil && errors.As(err, &tf)
}

// RetryRunner decorates exactly one adapter with a retry policy: a failing
// test is re-executed until it passes or its attempt count reaches the
// configured limit. All other adapter events pass through unchanged.
//
// A non-test failure from the adapter itself is emitted as ERROR and is
// terminal for this wrapper's run; it is never retried.
type RetryRunner struct {
	adapter *adapter.Adapter
	limit   int
	log     log.Logger
}

// NewRetryRunner wraps an adapter with a retry limit. A limit of zero means
// every test failure is terminal on its first occurrence.
func NewRetryRunner(a *adapter.Adapter, limit int, logger log.Logger) *RetryRunner {
	if limit < 0 {
		limit = 0
	}
	if logger == nil {
		logger = log.New()
	}
	return &RetryRunner{
		adapter: a,
		limit:   limit,
		log:     logger.New("component", "retry-runner", "limit", limit),
	}
}

// Run executes the wrapped adapter, then drains the retry queue one test at
// a time. Attempt counters are scoped to this call: a fresh Run starts every
// test back at zero prior attempts.
//
// Run returns nil only if every test settled as pass or pending. The first
// terminal test failure, or an adapter-level error, becomes the returned
// error.
func (r *RetryRunner) Run(ctx context.Context, exec *adapter.ExecContext, sink types.EventSink) error {
	state := &retrySink{
		limit:    r.limit,
		attempts: make(map[string]int),
		out:      sink,
	}

	if err := r.adapter.Run(ctx, exec, state); err != nil {
		r.emitError(sink, exec, err)
		return err
	}

	for len(state.queue) > 0 {
		t := state.queue[0]
		state.queue = state.queue[1:]
		r.log.Debug("Re-running failed test", "test", t.Key(), "attempt", state.attempts[t.Key()]+1)
		if err := r.adapter.RunTest(ctx, t, exec, state); err != nil {
			r.emitError(sink, exec, err)
			return err
		}
	}

	if state.firstFailure != nil {
		return state.firstFailure
	}
	return nil
}

func (r *RetryRunner) emitError(sink types.EventSink, exec *adapter.ExecContext, err error) {
	browser := ""
	if exec != nil {
		browser = exec.Browser
	}
	sink.Emit(types.Event{Kind: types.EventError, Browser: browser, Err: err, Time: time.Now()})
}

// retrySink rewrites the adapter's raw failure events. A failure below the
// retry limit becomes RETRY and queues a re-run; a failure at the limit
// passes through as the terminal TEST_FAIL. Everything else is forwarded
// untouched.
type retrySink struct {
	limit        int
	attempts     map[string]int // identity key -> prior attempts used
	queue        []*types.TestCase
	firstFailure error
	out          types.EventSink
}

func (s *retrySink) Emit(e types.Event) {
	if e.Kind != types.EventTestFail {
		s.out.Emit(e)
		return
	}

	key := e.Test.Key()
	used := s.attempts[key]
	if used < s.limit {
		s.attempts[key] = used + 1
		s.queue = append(s.queue, e.Test)
		s.out.Emit(types.Event{
			Kind:    types.EventRetry,
			Browser: e.Browser,
			Test:    e.Test,
			Err:     e.Err,
			Attempt: used + 1,
			Time:    time.Now(),
		})
		return
	}

	if s.firstFailure == nil {
		s.firstFailure = &TestFailedError{Key: key, Attempts: used + 1, Err: e.Err}
	}
	s.out.Emit(e)
}
