package crosswing

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/crosswing/crosswing/browser"
	"github.com/crosswing/crosswing/builder"
	"github.com/crosswing/crosswing/logging"
	"github.com/crosswing/crosswing/metrics"
	"github.com/crosswing/crosswing/runner"
	"github.com/crosswing/crosswing/types"
)

// RunExecutor is responsible for executing one full run across all
// configured browsers.
type RunExecutor interface {
	RunTests(ctx context.Context) (*runner.RunResult, error)
}

// DefaultRunExecutor implements the RunExecutor interface. Each browser gets
// its own coordinator; all browsers run concurrently and, like the adapters
// inside one coordinator, are never cancelled by a sibling's failure.
type DefaultRunExecutor struct {
	config   *Config
	provider browser.Provider
	skip     types.SkipPredicate
	logger   log.Logger
}

// NewDefaultRunExecutor creates a new DefaultRunExecutor.
func NewDefaultRunExecutor(config *Config, provider browser.Provider, skip types.SkipPredicate, logger log.Logger) *DefaultRunExecutor {
	return &DefaultRunExecutor{
		config:   config,
		provider: provider,
		skip:     skip,
		logger:   logger,
	}
}

// RunTests runs every configured browser once and aggregates the event
// streams into a single RunResult. The returned error is the first failure
// observed across all browsers; the result is complete either way, because
// sibling browsers always drain.
func (e *DefaultRunExecutor) RunTests(ctx context.Context) (*runner.RunResult, error) {
	runID := uuid.New().String()
	e.logger.Info("Running all tests...", "run_id", runID, "browsers", len(e.config.Browsers))

	collector := runner.NewResultCollector()
	result := collector.NewRunResult(runID)

	var artifacts *logging.ArtifactWriter
	if e.config.LogDir != "" {
		var err error
		artifacts, err = logging.NewArtifactWriter(e.config.LogDir, runID, e.logger)
		if err != nil {
			return nil, err
		}
	}

	var mu sync.Mutex // collector state is not safe across browser consumers
	var g errgroup.Group

	for _, bc := range e.config.Browsers {
		g.Go(func() error {
			return e.runBrowser(ctx, bc, runID, collector, result, &mu, artifacts)
		})
	}
	err := g.Wait()

	collector.FinalizeResults(result)
	e.logger.Info("Test run completed", "run_id", runID, "status", result.Status)
	return result, err
}

func (e *DefaultRunExecutor) runBrowser(ctx context.Context, bc BrowserConfig, runID string,
	collector runner.ResultCollector, result *runner.RunResult, mu *sync.Mutex,
	artifacts *logging.ArtifactWriter) error {

	files, err := e.config.TestFilesFor(bc)
	if err != nil {
		return err
	}

	co, err := runner.NewCoordinator(runner.Config{
		Browser:  bc.ID,
		Retries:  bc.Retries,
		Provider: e.provider,
		Skip:     e.skip,
		Log:      e.logger,
	})
	if err != nil {
		return err
	}

	if _, err := co.Init(files); err != nil {
		if builder.IsDuplicateTestError(err) {
			metrics.RecordCollision(bc.ID)
		}
		// Init's file events stay staged; the run never starts, so they
		// are never delivered.
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range co.Events() {
			e.observe(ev, bc.ID, runID, collector, result, mu, artifacts)
		}
	}()

	runErr := co.Run(ctx)
	<-done
	return runErr
}

// observe folds one event into the run result and side-channels (metrics,
// artifacts). Called from one goroutine per browser.
func (e *DefaultRunExecutor) observe(ev types.Event, browserID, runID string,
	collector runner.ResultCollector, result *runner.RunResult, mu *sync.Mutex,
	artifacts *logging.ArtifactWriter) {

	mu.Lock()
	collector.Observe(result, ev)
	mu.Unlock()

	switch ev.Kind {
	case types.EventTestPass:
		metrics.RecordTest(browserID, runID, ev.Test.Key(), types.TestStatusPass)
	case types.EventTestPending:
		metrics.RecordTest(browserID, runID, ev.Test.Key(), types.TestStatusSkip)
	case types.EventRetry:
		metrics.RecordRetry(browserID, runID)
	case types.EventTestFail:
		metrics.RecordTest(browserID, runID, ev.Test.Key(), types.TestStatusFail)
		if artifacts != nil && ev.Err != nil {
			if _, err := artifacts.WriteTestLog(browserID, ev.Test.Key(), ev.Err.Error()); err != nil {
				e.logger.Warn("Failed to write test artifact", "test", ev.Test.Key(), "err", err)
			}
		}
	case types.EventError:
		metrics.RecordErrorDetails("adapter error", ev.Err)
	}
}
