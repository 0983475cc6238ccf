// Package adapter holds the execution adapter: one loaded suite tree and the
// machinery to run it sequentially against a browser session, reporting
// progress exclusively through the event stream.
package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/crosswing/crosswing/browser"
	"github.com/crosswing/crosswing/types"
)

// ExecContext carries the per-run collaborators a test body needs.
type ExecContext struct {
	Browser string
	Session browser.Session
	Skip    types.SkipPredicate
}

// Adapter owns exactly one suite tree built from one or more source files.
// Adapters are created per invocation and discarded after the run; they are
// never reused across runs.
type Adapter struct {
	files []string
	root  *types.SuiteNode
	log   log.Logger
}

// New creates an adapter over an already-loaded suite tree.
func New(root *types.SuiteNode, files []string, logger log.Logger) *Adapter {
	if logger == nil {
		logger = log.New()
	}
	return &Adapter{
		files: files,
		root:  root,
		log:   logger.New("component", "adapter", "files", strings.Join(files, ",")),
	}
}

// Root returns the adapter's suite tree.
func (a *Adapter) Root() *types.SuiteNode { return a.root }

// Files returns the source files this adapter was built from.
func (a *Adapter) Files() []string { return a.files }

// Run executes the whole suite tree sequentially. Within one adapter, events
// are emitted in exactly the order execution reaches them; there is no
// concurrency inside an adapter.
//
// A failing test is reported as a TEST_FAIL event, not as a returned error.
// The returned error is reserved for adapter-level crashes: a missing
// session, a cancelled context. Those abort the remainder of the run.
func (a *Adapter) Run(ctx context.Context, exec *ExecContext, sink types.EventSink) error {
	if exec == nil || exec.Session == nil {
		return fmt.Errorf("adapter %s: no browser session", strings.Join(a.files, ","))
	}

	a.log.Debug("Starting adapter run", "browser", exec.Browser, "tests", a.root.CountTests())
	a.emit(sink, exec, types.Event{
		Kind:    types.EventInfo,
		Message: fmt.Sprintf("running %d tests from %s", a.root.CountTests(), strings.Join(a.files, ", ")),
	})

	// Root-level tests run first, without a surrounding SUITE_BEGIN; the
	// root suite has no title to announce.
	for _, t := range a.root.Tests {
		if err := a.runTest(ctx, t, exec, sink); err != nil {
			return err
		}
	}
	for _, s := range a.root.Suites {
		if err := a.runSuite(ctx, s, exec, sink); err != nil {
			return err
		}
	}
	return nil
}

// RunTest re-executes a single test outside the normal tree walk. The retry
// layer uses this to re-attempt a failed test without replaying its suite.
func (a *Adapter) RunTest(ctx context.Context, t *types.TestCase, exec *ExecContext, sink types.EventSink) error {
	if exec == nil || exec.Session == nil {
		return fmt.Errorf("adapter %s: no browser session", strings.Join(a.files, ","))
	}
	return a.runTest(ctx, t, exec, sink)
}

func (a *Adapter) runSuite(ctx context.Context, s *types.SuiteNode, exec *ExecContext, sink types.EventSink) error {
	a.emit(sink, exec, types.Event{Kind: types.EventSuiteBegin, Suite: s})

	for _, t := range s.Tests {
		if err := a.runTest(ctx, t, exec, sink); err != nil {
			// Leave the suite unannounced-closed: a crash mid-suite is
			// attributed by the monitor through the still-open SUITE_BEGIN.
			return err
		}
	}
	for _, child := range s.Suites {
		if err := a.runSuite(ctx, child, exec, sink); err != nil {
			return err
		}
	}

	a.emit(sink, exec, types.Event{Kind: types.EventSuiteEnd, Suite: s})
	return nil
}

func (a *Adapter) runTest(ctx context.Context, t *types.TestCase, exec *ExecContext, sink types.EventSink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if exec.Skip != nil && exec.Skip(t) {
		a.log.Debug("Skipping test", "test", t.Key())
		a.emit(sink, exec, types.Event{Kind: types.EventTestPending, Test: t})
		return nil
	}
	if t.Body == nil {
		a.emit(sink, exec, types.Event{
			Kind:    types.EventWarning,
			Message: fmt.Sprintf("test %q has no body, marking pending", t.Key()),
		})
		a.emit(sink, exec, types.Event{Kind: types.EventTestPending, Test: t})
		return nil
	}

	a.emit(sink, exec, types.Event{Kind: types.EventTestBegin, Test: t})

	err := a.invokeBody(ctx, t, exec.Session)
	if err != nil {
		a.log.Debug("Test failed", "test", t.Key(), "err", err)
		a.emit(sink, exec, types.Event{Kind: types.EventTestFail, Test: t, Err: err})
	} else {
		a.emit(sink, exec, types.Event{Kind: types.EventTestPass, Test: t})
	}

	a.emit(sink, exec, types.Event{Kind: types.EventTestEnd, Test: t})
	return nil
}

// invokeBody runs the test body, converting panics into test failures so a
// misbehaving body cannot take down the whole adapter.
func (a *Adapter) invokeBody(ctx context.Context, t *types.TestCase, sess browser.Session) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("test %q panicked: %v", t.Key(), rec)
		}
	}()
	return t.Body(ctx, sess)
}

func (a *Adapter) emit(sink types.EventSink, exec *ExecContext, e types.Event) {
	e.Browser = exec.Browser
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	sink.Emit(e)
}
