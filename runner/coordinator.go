package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/crosswing/crosswing/adapter"
	"github.com/crosswing/crosswing/browser"
	"github.com/crosswing/crosswing/builder"
	"github.com/crosswing/crosswing/types"
)

// eventBuffer sizes the outward stream. Build-time events are staged in a
// slice and only replayed once Run starts, so the buffer never has to absorb
// an unbounded count; it only smooths bursts while a consumer is draining.
const eventBuffer = 512

// Config holds the collaborators for one browser-bound coordinator.
type Config struct {
	Browser  string           // browser identity, e.g. "chrome"
	Retries  int              // retry limit applied to every wrapped adapter
	Provider browser.Provider // session acquisition
	Skip     types.SkipPredicate
	Log      log.Logger
}

// Coordinator orchestrates one browser's run: it builds adapters, wraps each
// in a RetryRunner, starts all wrapped runs concurrently and fans their
// events into one outward stream.
//
// Event forwarding is lossless: every event a wrapped run or the builder
// emits reappears on Events with the identical kind and payload, never
// renamed, batched or dropped. Events from one adapter keep their emission
// order; interleaving across adapters is governed only by real concurrency.
type Coordinator struct {
	cfg      Config
	log      log.Logger
	builder  *builder.Builder
	adapters []*adapter.Adapter
	monitor  *SuiteMonitor
	events   chan types.Event
	tracer   trace.Tracer
	started  atomic.Bool

	mu      sync.Mutex
	pending []types.Event // build-time events staged until Run starts
}

// NewCoordinator creates a coordinator for one browser. The monitor and the
// outward stream live for exactly one run.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Browser == "" {
		return nil, fmt.Errorf("browser identity is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("session provider is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}

	c := &Coordinator{
		cfg:     cfg,
		log:     cfg.Log.New("component", "coordinator", "browser", cfg.Browser),
		monitor: NewSuiteMonitor(),
		events:  make(chan types.Event, eventBuffer),
		tracer:  otel.Tracer("run coordinator"),
	}
	c.builder = builder.New(builder.Config{
		Log:  c.log,
		Sink: types.EventSinkFunc(c.stage),
	})
	return c, nil
}

// Events returns the coordinator's outward stream. It is closed when Run
// finishes; callers must drain it while a run is in flight.
func (c *Coordinator) Events() <-chan types.Event { return c.events }

// Monitor returns the suite monitor fed by this coordinator's stream.
func (c *Coordinator) Monitor() *SuiteMonitor { return c.monitor }

// Adapters returns the adapter set produced by the last Init.
func (c *Coordinator) Adapters() []*adapter.Adapter { return c.adapters }

// Init builds the adapter set from the given files. It fails synchronously
// if the builder's collision check fails, before any adapter executes.
// Calling Init again rebuilds from scratch. Returns the coordinator to allow
// chaining into Run.
func (c *Coordinator) Init(paths []string) (*Coordinator, error) {
	c.adapters = nil
	adapters, err := c.builder.Build(paths)
	if err != nil {
		return nil, err
	}
	c.adapters = adapters
	c.log.Debug("Coordinator initialized", "adapters", len(adapters))
	return c, nil
}

// Run starts every wrapped adapter concurrently and blocks until all of them
// have settled. A slow session for one adapter never delays the others.
//
// The join is all-or-nothing: Run returns nil only when every wrapped run
// succeeded, and otherwise returns the first failure observed. Siblings of a
// failed run are deliberately not cancelled; they drain to completion and
// their remaining events stay on the stream, which closes only after the
// last adapter settles. Late events after a failure are therefore ordinary,
// not lost.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("coordinator for %s has already run", c.cfg.Browser)
	}
	defer close(c.events)

	if len(c.adapters) == 0 {
		return fmt.Errorf("coordinator not initialized, call Init first")
	}

	c.log.Info("Starting run", "adapters", len(c.adapters), "retries", c.cfg.Retries)

	// Replay the build-time file events first, ahead of anything the
	// adapters emit.
	c.flushPending()

	// A plain errgroup (no derived cancellation context) gives exactly the
	// join we want: wait for everyone, report the first error.
	var g errgroup.Group
	sink := types.EventSinkFunc(c.forward)

	for _, a := range c.adapters {
		g.Go(func() error {
			return c.runAdapter(ctx, a, sink)
		})
	}
	return g.Wait()
}

func (c *Coordinator) runAdapter(ctx context.Context, a *adapter.Adapter, sink types.EventSink) error {
	files := strings.Join(a.Files(), ",")
	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("adapter %s", files))
	defer span.End()

	sess, err := c.cfg.Provider.Acquire(ctx, c.cfg.Browser)
	if err != nil {
		err = fmt.Errorf("acquiring %s session for %s: %w", c.cfg.Browser, files, err)
		sink.Emit(types.Event{Kind: types.EventError, Browser: c.cfg.Browser, Err: err, Time: time.Now()})
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			c.log.Warn("Failed to close browser session", "files", files, "err", cerr)
		}
	}()

	exec := &adapter.ExecContext{
		Browser: c.cfg.Browser,
		Session: sess,
		Skip:    c.cfg.Skip,
	}
	wrapped := NewRetryRunner(a, c.cfg.Retries, c.log)
	return wrapped.Run(ctx, exec, sink)
}

// BuildSuiteTree loads the files into one merged suite tree without
// executing any test, for "list tests" mode. This path does not go through
// the retry wrapper, and the collision check runs fresh against the tree
// returned for this specific call, independent of any prior Init.
func (c *Coordinator) BuildSuiteTree(paths []string) (*types.SuiteNode, error) {
	a, err := c.builder.BuildMerged(paths)
	if err != nil {
		return nil, err
	}
	if err := builder.CheckCollisions(a.Root()); err != nil {
		return nil, err
	}
	return a.Root(), nil
}

// stage buffers a build-time event. Init and BuildSuiteTree run before a
// consumer is attached (or, for a list call, after the stream has closed), so
// their events never touch the channel directly; Run replays whatever is
// staged once it starts. This keeps Init non-blocking for any file count.
func (c *Coordinator) stage(e types.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, e)
}

// flushPending moves the staged build-time events onto the outward stream.
func (c *Coordinator) flushPending() {
	c.mu.Lock()
	staged := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, e := range staged {
		c.forward(e)
	}
}

// forward is the single funnel between the wrapped runs and the outward
// stream. It feeds the monitor, then re-emits the event unchanged.
func (c *Coordinator) forward(e types.Event) {
	c.monitor.Observe(e)
	c.events <- e
}
