package crosswing

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/crosswing/crosswing/browser"
	"github.com/crosswing/crosswing/exitcodes"
	"github.com/crosswing/crosswing/runner"
	"github.com/crosswing/crosswing/types"
)

// Engine is the cross-browser test service: it wires the executor, the
// scheduler, the formatter and the metrics reporter together and drives runs
// either once or periodically.
type Engine struct {
	ctx       context.Context
	config    *Config
	version   string
	executor  RunExecutor
	scheduler RunScheduler
	formatter *ConsoleResultFormatter
	reporter  MetricsReporter
	provider  browser.Provider
	result    *runner.RunResult

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates an Engine from a config. The session provider defaults to a
// WebDriver client against config.WebDriverURL; tests override it via
// WithProvider.
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Engine, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating engine with config",
		"testDir", config.TestDir,
		"webDriverURL", config.WebDriverURL,
		"browsers", len(config.Browsers),
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	provider := browser.NewWebDriverProvider(config.WebDriverURL, config.Log)

	e := &Engine{
		ctx:              ctx,
		config:           config,
		version:          version,
		provider:         provider,
		formatter:        NewConsoleResultFormatter(config.Log),
		reporter:         NewDefaultMetricsReporter(),
		scheduler:        NewDefaultRunScheduler(config.RunInterval, config.RunOnce, config.Log),
		shutdownCallback: shutdownCallback,
	}
	e.executor = NewDefaultRunExecutor(config, provider, nil, config.Log)
	return e, nil
}

// WithProvider replaces the session provider. Must be called before Start.
func (e *Engine) WithProvider(p browser.Provider) *Engine {
	e.provider = p
	e.executor = NewDefaultRunExecutor(e.config, p, nil, e.config.Log)
	return e
}

// Result returns the result of the most recent completed run.
func (e *Engine) Result() *runner.RunResult {
	return e.result
}

// Start runs the tests, immediately and then periodically at the configured
// interval.
func (e *Engine) Start(ctx context.Context) error {
	// Panics anywhere below are runtime errors, exit code 2.
	defer func() {
		if r := recover(); r != nil {
			e.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	e.ctx = ctx

	if e.config.ListOnly {
		if err := e.listTests(); err != nil {
			return cli.Exit(err.Error(), exitcodes.RuntimeErr)
		}
		go func() {
			e.shutdownCallback(nil)
		}()
		return nil
	}

	if e.config.RunOnce {
		e.config.Log.Info("Starting crosswing in run-once mode")
	} else {
		e.config.Log.Info("Starting crosswing in continuous mode", "interval", e.config.RunInterval)
	}

	// Run tests immediately on startup.
	if err := e.runTests(); err != nil {
		e.config.Log.Error("Runtime error running tests", "error", err)
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	if e.config.RunOnce {
		e.config.Log.Info("Tests completed, exiting (run-once mode)")

		if e.result != nil && e.result.Status == types.TestStatusFail {
			e.config.Log.Warn("Run-once test run completed with failures, returning exit code 1")
			return NewTestFailureError(e.result.String())
		}

		// Only needed in run-once mode when all tests passed.
		go func() {
			e.shutdownCallback(nil)
		}()
		return nil
	}

	e.scheduler.RegisterCallback(e.runTests)
	if err := e.scheduler.Start(ctx); err != nil {
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}
	e.config.Log.Debug("crosswing started successfully")
	return nil
}

// runTests runs all tests once and processes the results.
func (e *Engine) runTests() error {
	result, err := e.executor.RunTests(e.ctx)
	if err != nil && !runner.IsTestFailedError(err) {
		// An operational failure, not a failing test.
		e.config.Log.Error("Runtime error running tests", "error", err)
		return NewRuntimeError(err)
	}
	e.result = result

	if ferr := e.formatter.FormatResults(result); ferr != nil {
		e.config.Log.Error("Error formatting results", "error", ferr)
	}
	fmt.Println(result.String())
	e.reporter.ReportResults(result)
	return nil
}

// listTests prints the merged suite tree of every configured browser's file
// set without executing anything.
func (e *Engine) listTests() error {
	// All browsers without their own patterns share the global file set, so
	// list each distinct set once.
	seen := make(map[string]bool)
	for _, bc := range e.config.Browsers {
		files, err := e.config.TestFilesFor(bc)
		if err != nil {
			return err
		}
		setKey := fmt.Sprint(files)
		if seen[setKey] {
			continue
		}
		seen[setKey] = true

		co, err := runner.NewCoordinator(runner.Config{
			Browser:  bc.ID,
			Provider: e.provider,
			Log:      e.config.Log,
		})
		if err != nil {
			return err
		}
		root, err := co.BuildSuiteTree(files)
		if err != nil {
			return err
		}
		e.formatter.FormatSuiteTree(root)
	}
	return nil
}

// Stop stops the engine.
func (e *Engine) Stop(ctx context.Context) error {
	e.config.Log.Info("Stopping crosswing")
	if err := e.scheduler.Stop(); err != nil {
		return err
	}
	e.config.Log.Info("crosswing stopped successfully")
	return nil
}

// Stopped returns true if the engine is stopped.
func (e *Engine) Stopped() bool {
	return e.scheduler.Stopped()
}

// WaitForShutdown blocks until all goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving on.
func (e *Engine) WaitForShutdown(ctx context.Context) error {
	return e.scheduler.WaitForShutdown(ctx)
}
