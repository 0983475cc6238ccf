package runner

import (
	"fmt"
	"time"

	"github.com/crosswing/crosswing/types"
)

var _ ResultCollector = (*resultCollector)(nil)

// SuiteResult aggregates the results of one suite within one browser.
type SuiteResult struct {
	Title    string
	Tests    map[string]*types.TestResult
	Status   types.TestStatus
	Duration time.Duration
	Stats    ResultStats
}

// BrowserResult aggregates one browser's run.
type BrowserResult struct {
	Browser  string
	Tests    map[string]*types.TestResult // root-level tests, outside any suite
	Suites   map[string]*SuiteResult
	Err      error // adapter-level error, if any run crashed outside a test
	Status   types.TestStatus
	Duration time.Duration
	Stats    ResultStats
}

// RunResult captures a complete run across all browsers.
type RunResult struct {
	RunID         string
	Browsers      map[string]*BrowserResult
	Status        types.TestStatus
	Duration      time.Duration
	WallClockTime time.Duration
	Stats         ResultStats
}

// String returns a one-line summary of the run.
func (r *RunResult) String() string {
	return fmt.Sprintf("RunID: %s, Status: %s, Browsers: %d, Tests: %d (pass: %d, fail: %d, skip: %d, retried: %d), Duration: %s",
		r.RunID, r.Status, len(r.Browsers), r.Stats.Total,
		r.Stats.Passed, r.Stats.Failed, r.Stats.Skipped, r.Stats.Retried, r.Duration)
}

// ResultStats tracks test statistics at each level of the hierarchy.
type ResultStats struct {
	Total     int
	Passed    int
	Failed    int
	Skipped   int
	Retried   int // retry attempts, not distinct tests
	StartTime time.Time
	EndTime   time.Time
}

// ResultCollector folds the coordinator's event stream into a result
// hierarchy. It consumes only terminal test events plus RETRY and ERROR;
// everything else on the stream is structural.
type ResultCollector interface {
	NewRunResult(runID string) *RunResult
	Observe(result *RunResult, e types.Event)
	FinalizeResults(result *RunResult)
}

// NewResultCollector creates a collector. A collector instance tracks
// in-flight TEST_BEGIN timestamps and is therefore per run, not shared.
func NewResultCollector() ResultCollector {
	return &resultCollector{
		begun:    make(map[string]time.Time),
		attempts: make(map[string]int),
	}
}

type resultCollector struct {
	begun    map[string]time.Time // browser+key -> last TEST_BEGIN
	attempts map[string]int       // browser+key -> retry attempts used
}

func (c *resultCollector) NewRunResult(runID string) *RunResult {
	return &RunResult{
		RunID:    runID,
		Browsers: make(map[string]*BrowserResult),
		Status:   types.TestStatusFail, // recalculated in FinalizeResults
		Stats:    ResultStats{StartTime: time.Now()},
	}
}

func (c *resultCollector) Observe(result *RunResult, e types.Event) {
	switch e.Kind {
	case types.EventTestBegin:
		c.begun[c.flightKey(e)] = e.Time
	case types.EventRetry:
		c.attempts[c.flightKey(e)]++
		br := c.browserResult(result, e.Browser)
		br.Stats.Retried++
		result.Stats.Retried++
	case types.EventTestPass:
		c.record(result, e, types.TestStatusPass)
	case types.EventTestFail:
		c.record(result, e, types.TestStatusFail)
	case types.EventTestPending:
		c.record(result, e, types.TestStatusSkip)
	case types.EventError:
		br := c.browserResult(result, e.Browser)
		if br.Err == nil {
			br.Err = e.Err
		}
	}
}

func (c *resultCollector) record(result *RunResult, e types.Event, status types.TestStatus) {
	key := e.Test.Key()
	tr := &types.TestResult{
		Title:    e.Test.Title,
		Key:      key,
		File:     e.Test.File,
		Browser:  e.Browser,
		Status:   status,
		Error:    e.Err,
		Attempts: c.attempts[c.flightKey(e)] + 1,
	}
	if begun, ok := c.begun[c.flightKey(e)]; ok {
		tr.Duration = e.Time.Sub(begun)
	}

	br := c.browserResult(result, e.Browser)

	suiteTitle := e.Test.Suite.FullTitle()
	if suiteTitle == "" {
		br.Tests[key] = tr
	} else {
		suite, ok := br.Suites[suiteTitle]
		if !ok {
			suite = &SuiteResult{
				Title:  suiteTitle,
				Tests:  make(map[string]*types.TestResult),
				Status: types.TestStatusFail,
				Stats:  ResultStats{StartTime: time.Now()},
			}
			br.Suites[suiteTitle] = suite
		}
		suite.Tests[key] = tr
		suite.Duration += tr.Duration
		c.countStatus(&suite.Stats, status)
	}

	br.Duration += tr.Duration
	c.countStatus(&br.Stats, status)
	result.Duration += tr.Duration
	c.countStatus(&result.Stats, status)
}

func (c *resultCollector) browserResult(result *RunResult, browser string) *BrowserResult {
	br, ok := result.Browsers[browser]
	if !ok {
		br = &BrowserResult{
			Browser: browser,
			Tests:   make(map[string]*types.TestResult),
			Suites:  make(map[string]*SuiteResult),
			Status:  types.TestStatusFail,
			Stats:   ResultStats{StartTime: time.Now()},
		}
		result.Browsers[browser] = br
	}
	return br
}

func (c *resultCollector) countStatus(stats *ResultStats, status types.TestStatus) {
	stats.Total++
	switch status {
	case types.TestStatusPass:
		stats.Passed++
	case types.TestStatusFail:
		stats.Failed++
	case types.TestStatusSkip:
		stats.Skipped++
	}
}

// FinalizeResults computes the derived statuses and wall-clock times. A
// failure anywhere fails the level above it; a level whose tests all skipped
// is skipped; everything else passes.
func (c *resultCollector) FinalizeResults(result *RunResult) {
	result.Stats.EndTime = time.Now()
	result.WallClockTime = result.Stats.EndTime.Sub(result.Stats.StartTime)

	for _, br := range result.Browsers {
		for _, suite := range br.Suites {
			suite.Stats.EndTime = time.Now()
			suite.Status = statusFromStats(suite.Stats)
		}
		br.Stats.EndTime = time.Now()
		br.Status = statusFromStats(br.Stats)
		if br.Err != nil {
			br.Status = types.TestStatusFail
		}
	}
	result.Status = c.runStatus(result)
}

func (c *resultCollector) runStatus(result *RunResult) types.TestStatus {
	allSkipped := true
	anyFailed := false
	for _, br := range result.Browsers {
		if br.Status != types.TestStatusSkip {
			allSkipped = false
		}
		if br.Status == types.TestStatusFail {
			anyFailed = true
		}
	}
	if len(result.Browsers) == 0 {
		allSkipped = false
	}
	return statusFromFlags(allSkipped, anyFailed)
}

func statusFromStats(stats ResultStats) types.TestStatus {
	allSkipped := stats.Total > 0 && stats.Skipped == stats.Total
	return statusFromFlags(allSkipped, stats.Failed > 0)
}

// statusFromFlags prioritizes failures over skips: any failure fails the
// container.
func statusFromFlags(allSkipped, anyFailed bool) types.TestStatus {
	if anyFailed {
		return types.TestStatusFail
	}
	if allSkipped {
		return types.TestStatusSkip
	}
	return types.TestStatusPass
}

func (c *resultCollector) flightKey(e types.Event) string {
	return e.Browser + "\x00" + e.Test.Key()
}
