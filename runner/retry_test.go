package runner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosswing/crosswing/adapter"
	"github.com/crosswing/crosswing/browser"
	"github.com/crosswing/crosswing/types"
)

type stubSession struct{}

func (stubSession) Navigate(context.Context, string) error                { return nil }
func (stubSession) ExecuteScript(context.Context, string) (string, error) { return "", nil }
func (stubSession) Screenshot(context.Context) ([]byte, error)            { return nil, nil }
func (stubSession) Close() error                                          { return nil }

type captureSink struct {
	mu     sync.Mutex
	events []types.Event
}

func (s *captureSink) Emit(e types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *captureSink) all() []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Event(nil), s.events...)
}

func (s *captureSink) count(kind types.EventKind) int {
	n := 0
	for _, e := range s.all() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func execCtx() *adapter.ExecContext {
	return &adapter.ExecContext{Browser: "chrome", Session: stubSession{}}
}

// failNTimes returns a body failing its first n invocations.
func failNTimes(n int) types.TestBody {
	calls := 0
	return func(context.Context, browser.Session) error {
		calls++
		if calls <= n {
			return errors.New("flaky failure")
		}
		return nil
	}
}

func singleTestAdapter(title string, body types.TestBody) *adapter.Adapter {
	root := types.NewRootSuite()
	root.AddTest(&types.TestCase{Title: title, File: "f.yaml", Body: body})
	return adapter.New(root, []string{"f.yaml"}, nil)
}

func TestRetryExhaustsLimit(t *testing.T) {
	a := singleTestAdapter("always fails", failNTimes(100))
	sink := &captureSink{}

	err := NewRetryRunner(a, 2, nil).Run(context.Background(), execCtx(), sink)
	require.Error(t, err)
	require.True(t, IsTestFailedError(err))

	var tf *TestFailedError
	require.ErrorAs(t, err, &tf)
	assert.Equal(t, "always fails", tf.Key)
	assert.Equal(t, 3, tf.Attempts)

	// Exactly limit RETRY events, then exactly one terminal TEST_FAIL.
	assert.Equal(t, 2, sink.count(types.EventRetry))
	assert.Equal(t, 1, sink.count(types.EventTestFail))
	assert.Equal(t, 3, sink.count(types.EventTestBegin))
}

func TestRetryAttemptNumbers(t *testing.T) {
	a := singleTestAdapter("always fails", failNTimes(100))
	sink := &captureSink{}

	_ = NewRetryRunner(a, 3, nil).Run(context.Background(), execCtx(), sink)

	var attempts []int
	for _, e := range sink.all() {
		if e.Kind == types.EventRetry {
			attempts = append(attempts, e.Attempt)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestRetryEventualPass(t *testing.T) {
	a := singleTestAdapter("flaky", failNTimes(2))
	sink := &captureSink{}

	err := NewRetryRunner(a, 3, nil).Run(context.Background(), execCtx(), sink)
	require.NoError(t, err)

	assert.Equal(t, 2, sink.count(types.EventRetry))
	assert.Equal(t, 1, sink.count(types.EventTestPass))
	assert.Equal(t, 0, sink.count(types.EventTestFail))
}

func TestRetryLimitZeroIsTerminalImmediately(t *testing.T) {
	a := singleTestAdapter("fails once", failNTimes(1))
	sink := &captureSink{}

	err := NewRetryRunner(a, 0, nil).Run(context.Background(), execCtx(), sink)
	require.True(t, IsTestFailedError(err))

	assert.Equal(t, 0, sink.count(types.EventRetry))
	assert.Equal(t, 1, sink.count(types.EventTestFail))
}

func TestRetryNegativeLimitClampedToZero(t *testing.T) {
	a := singleTestAdapter("fails", failNTimes(1))
	sink := &captureSink{}

	err := NewRetryRunner(a, -5, nil).Run(context.Background(), execCtx(), sink)
	require.True(t, IsTestFailedError(err))
	assert.Equal(t, 0, sink.count(types.EventRetry))
}

func TestRetryCountersAreScopedPerRun(t *testing.T) {
	// The body fails on every call, across both runs.
	a := singleTestAdapter("always fails", failNTimes(100))
	r := NewRetryRunner(a, 1, nil)

	for i := 0; i < 2; i++ {
		sink := &captureSink{}
		err := r.Run(context.Background(), execCtx(), sink)
		require.True(t, IsTestFailedError(err), "run %d", i)
		assert.Equal(t, 1, sink.count(types.EventRetry), "run %d gets a fresh attempt budget", i)
		assert.Equal(t, 1, sink.count(types.EventTestFail), "run %d", i)
	}
}

func TestRetryPerTestBudgets(t *testing.T) {
	root := types.NewRootSuite()
	root.AddTest(&types.TestCase{Title: "flaky a", File: "f.yaml", Body: failNTimes(1)})
	root.AddTest(&types.TestCase{Title: "flaky b", File: "f.yaml", Body: failNTimes(1)})
	a := adapter.New(root, []string{"f.yaml"}, nil)
	sink := &captureSink{}

	err := NewRetryRunner(a, 1, nil).Run(context.Background(), execCtx(), sink)
	require.NoError(t, err)

	// Each test consumed its own budget; neither exhausted it.
	assert.Equal(t, 2, sink.count(types.EventRetry))
	assert.Equal(t, 2, sink.count(types.EventTestPass))
}

func TestRetryFirstFailureWins(t *testing.T) {
	root := types.NewRootSuite()
	root.AddTest(&types.TestCase{Title: "first fail", File: "f.yaml", Body: failNTimes(100)})
	root.AddTest(&types.TestCase{Title: "second fail", File: "f.yaml", Body: failNTimes(100)})
	a := adapter.New(root, []string{"f.yaml"}, nil)

	err := NewRetryRunner(a, 0, nil).Run(context.Background(), execCtx(), &captureSink{})
	var tf *TestFailedError
	require.ErrorAs(t, err, &tf)
	assert.Equal(t, "first fail", tf.Key)
}

func TestRetryAdapterErrorIsTerminal(t *testing.T) {
	a := singleTestAdapter("never runs", failNTimes(100))
	sink := &captureSink{}

	// A nil session is an adapter-level crash, not a test failure.
	err := NewRetryRunner(a, 3, nil).Run(context.Background(), &adapter.ExecContext{Browser: "chrome"}, sink)
	require.Error(t, err)
	assert.False(t, IsTestFailedError(err))

	assert.Equal(t, 1, sink.count(types.EventError))
	assert.Equal(t, 0, sink.count(types.EventRetry))
}
