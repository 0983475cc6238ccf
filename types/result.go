package types

import "time"

// TestStatus represents the possible terminal states of a test execution.
type TestStatus string

const (
	TestStatusPass TestStatus = "pass"
	TestStatusFail TestStatus = "fail"
	TestStatusSkip TestStatus = "skip"
)

// TestResult captures the outcome of a single test across all of its
// attempts within one run.
type TestResult struct {
	Title    string
	Key      string
	File     string
	Browser  string
	Status   TestStatus
	Error    error
	Duration time.Duration
	Attempts int // 1 for a test that never retried
}
