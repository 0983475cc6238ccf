// Package exitcodes defines the standard exit codes used by crosswing.
package exitcodes

// Exit code constants used by the application to indicate how a run ended:
//
// * Success (0): all tests passed
// * TestFailure (1): one or more tests failed
// * RuntimeErr (2): runtime errors such as bad configuration, panics or collisions
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
