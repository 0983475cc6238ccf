package types

import "time"

// EventKind identifies a runner lifecycle event.
type EventKind string

const (
	EventBeforeFileRead EventKind = "BEFORE_FILE_READ"
	EventAfterFileRead  EventKind = "AFTER_FILE_READ"
	EventSuiteBegin     EventKind = "SUITE_BEGIN"
	EventSuiteEnd       EventKind = "SUITE_END"
	EventTestBegin      EventKind = "TEST_BEGIN"
	EventTestEnd        EventKind = "TEST_END"
	EventTestPass       EventKind = "TEST_PASS"
	EventTestPending    EventKind = "TEST_PENDING"
	EventRetry          EventKind = "RETRY"
	EventTestFail       EventKind = "TEST_FAIL"
	EventError          EventKind = "ERROR"
	EventInfo           EventKind = "INFO"
	EventWarning        EventKind = "WARNING"
)

// Event is the only cross-component communication mechanism of the engine.
// Components never inspect each other's state directly; everything observable
// about a run flows through the event stream as tagged records.
//
// Which fields are populated depends on Kind:
//   - BEFORE_FILE_READ/AFTER_FILE_READ: File
//   - SUITE_BEGIN/SUITE_END: Suite
//   - TEST_BEGIN/TEST_END/TEST_PASS/TEST_PENDING: Test
//   - RETRY: Test, Err, Attempt
//   - TEST_FAIL: Test, Err
//   - ERROR: Err
//   - INFO/WARNING: Message
type Event struct {
	Kind    EventKind
	Browser string
	File    string
	Suite   *SuiteNode
	Test    *TestCase
	Err     error
	Attempt int
	Message string
	Time    time.Time
}

// EventSink receives events as they are emitted. Emit must not block for long;
// the emitting side of a run is sequential per adapter and a slow sink stalls
// that adapter's execution.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Emit(e Event) { f(e) }

// NewEvent returns an event of the given kind stamped with the current time.
func NewEvent(kind EventKind) Event {
	return Event{Kind: kind, Time: time.Now()}
}
