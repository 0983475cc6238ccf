// Package browser declares the session-acquisition boundary of the engine.
// The orchestration core never drives a browser itself; it consumes a
// Provider and hands the acquired Session to test bodies.
package browser

import "context"

// Session is a handle on a live browser the engine can drive. Timeouts and
// transport concerns live behind this interface, not in the orchestrator.
type Session interface {
	// Navigate loads the given URL in the session's active page.
	Navigate(ctx context.Context, url string) error
	// ExecuteScript evaluates a script in page context and returns its
	// string-serialized result.
	ExecuteScript(ctx context.Context, script string) (string, error)
	// Screenshot captures the current viewport as an encoded image.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the session.
	Close() error
}

// Provider acquires sessions for a browser identity.
type Provider interface {
	Acquire(ctx context.Context, browserID string) (Session, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, browserID string) (Session, error)

func (f ProviderFunc) Acquire(ctx context.Context, browserID string) (Session, error) {
	return f(ctx, browserID)
}
