package runner

import (
	"sync"

	"github.com/crosswing/crosswing/types"
)

// SuiteMonitor tracks which suite is currently open so a crash mid-suite can
// be attributed to the right suite. It is a pure observer: it consumes
// SUITE_BEGIN/SUITE_END/RETRY events and has no failure modes of its own.
// Out-of-order events are benign no-ops, never errors; event order across
// concurrent adapters is only guaranteed per adapter.
type SuiteMonitor struct {
	mu        sync.Mutex
	stack     []*types.SuiteNode
	lastRetry *types.TestCase
}

// NewSuiteMonitor creates a monitor with no open suite.
func NewSuiteMonitor() *SuiteMonitor {
	return &SuiteMonitor{}
}

// SuiteBegin pushes a suite onto the open-suite stack. Nesting is supported:
// a child beginning while its parent is open keeps the parent on the stack.
func (m *SuiteMonitor) SuiteBegin(s *types.SuiteNode) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stack = append(m.stack, s)
}

// SuiteEnd removes the most recently opened matching suite from the stack.
// An end with nothing open, or for a suite that was never begun, is a no-op.
func (m *SuiteMonitor) SuiteEnd(s *types.SuiteNode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.stack) - 1; i >= 0; i-- {
		if m.stack[i] == s {
			m.stack = append(m.stack[:i], m.stack[i+1:]...)
			return
		}
	}
}

// TestRetry records that a test failed and will be re-attempted. It does not
// change open-suite state; it only lets crash reporting distinguish "failed,
// will retry" from "failed, terminal".
func (m *SuiteMonitor) TestRetry(t *types.TestCase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRetry = t
}

// Current returns the innermost open suite, or nil if none is open.
func (m *SuiteMonitor) Current() *types.SuiteNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return nil
	}
	return m.stack[len(m.stack)-1]
}

// LastRetry returns the most recent test reported as retrying.
func (m *SuiteMonitor) LastRetry() *types.TestCase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRetry
}

// Observe feeds one event into the monitor. Kinds the monitor does not care
// about are ignored.
func (m *SuiteMonitor) Observe(e types.Event) {
	switch e.Kind {
	case types.EventSuiteBegin:
		m.SuiteBegin(e.Suite)
	case types.EventSuiteEnd:
		m.SuiteEnd(e.Suite)
	case types.EventRetry:
		m.TestRetry(e.Test)
	}
}
