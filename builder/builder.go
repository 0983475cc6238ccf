// Package builder turns test-definition files into executable adapters and
// guarantees, before anything runs, that no two tests share an identity key.
package builder

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/crosswing/crosswing/adapter"
	"github.com/crosswing/crosswing/types"
)

// Config contains builder configuration.
type Config struct {
	Log  log.Logger
	Sink types.EventSink // receives BEFORE_FILE_READ/AFTER_FILE_READ
}

// Builder constructs adapters from source files.
type Builder struct {
	log  log.Logger
	sink types.EventSink
}

// New creates a builder. A nil sink discards file events. The built-in
// loaders are registered on first use.
func New(cfg Config) *Builder {
	Prepare()
	logger := cfg.Log
	if logger == nil {
		logger = log.New()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = types.EventSinkFunc(func(types.Event) {})
	}
	return &Builder{
		log:  logger.New("component", "builder"),
		sink: sink,
	}
}

// Build loads every file into its own adapter, then runs the global
// collision check across all of them. The check is performed once, after all
// adapters are built and before any of them executes; a collision aborts the
// whole run before any browser interaction happens.
func (b *Builder) Build(paths []string) ([]*adapter.Adapter, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no test files given")
	}

	adapters := make([]*adapter.Adapter, 0, len(paths))
	for _, path := range paths {
		root, err := b.loadFile(path)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter.New(root, []string{path}, b.log))
	}

	roots := make([]*types.SuiteNode, len(adapters))
	for i, a := range adapters {
		roots[i] = a.Root()
	}
	if err := CheckCollisions(roots...); err != nil {
		return nil, err
	}

	b.log.Debug("Built adapters", "files", len(paths))
	return adapters, nil
}

// BuildMerged loads every file into one adapter holding a single merged
// suite tree. Used by the list-tests path; callers re-apply CheckCollisions
// on the returned tree themselves, so each call gets a fresh, isolated check.
func (b *Builder) BuildMerged(paths []string) (*adapter.Adapter, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no test files given")
	}

	merged := types.NewRootSuite()
	for _, path := range paths {
		root, err := b.loadFile(path)
		if err != nil {
			return nil, err
		}
		graft(merged, root)
	}
	return adapter.New(merged, paths, b.log), nil
}

func (b *Builder) loadFile(path string) (*types.SuiteNode, error) {
	l, err := loaderFor(path)
	if err != nil {
		return nil, err
	}

	b.sink.Emit(types.Event{Kind: types.EventBeforeFileRead, File: path, Time: time.Now()})
	root, err := l.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	b.sink.Emit(types.Event{Kind: types.EventAfterFileRead, File: path, Time: time.Now()})

	return root, nil
}

// graft moves the children of src under dst, reparenting suites.
func graft(dst, src *types.SuiteNode) {
	for _, t := range src.Tests {
		dst.AddTest(t)
	}
	for _, s := range src.Suites {
		s.Parent = dst
		dst.Suites = append(dst.Suites, s)
	}
}

// CheckCollisions walks the given trees in order and fails on the first pair
// of tests sharing an identity key. Same-file duplicates name the one file;
// cross-file duplicates name both files in the order they were encountered.
func CheckCollisions(roots ...*types.SuiteNode) error {
	seen := make(map[string]string) // identity key -> declaring file
	var dup *DuplicateTestError

	for _, root := range roots {
		if dup != nil {
			break
		}
		root.EachTest(func(t *types.TestCase) {
			if dup != nil {
				return
			}
			key := t.Key()
			first, ok := seen[key]
			if !ok {
				seen[key] = t.File
				return
			}
			if first == t.File {
				dup = &DuplicateTestError{Title: key, Files: []string{first}}
			} else {
				dup = &DuplicateTestError{Title: key, Files: []string{first, t.File}}
			}
		})
	}

	if dup != nil {
		return dup
	}
	return nil
}
