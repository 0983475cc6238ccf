package builder

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/crosswing/crosswing/types"
)

// Loader turns one test-definition file into a suite tree. How a file is
// parsed into executable steps is the loader's concern; the builder only
// cares about the resulting tree.
type Loader interface {
	Load(path string) (*types.SuiteNode, error)
}

var (
	loadersMu sync.RWMutex
	loaders   = map[string]Loader{}

	prepareOnce sync.Once
)

// RegisterLoader registers a loader for a file extension (including the
// leading dot). Later registrations for the same extension win, which lets a
// process swap the built-in loader for its own.
func RegisterLoader(ext string, l Loader) {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	loaders[ext] = l
}

// Prepare performs process-wide one-time initialization: it registers the
// built-in test-definition loaders. It must run before the first Build call
// and is a safe no-op on every call after the first.
func Prepare() {
	prepareOnce.Do(func() {
		RegisterLoader(".yaml", &yamlLoader{})
		RegisterLoader(".yml", &yamlLoader{})
	})
}

func loaderFor(path string) (Loader, error) {
	loadersMu.RLock()
	defer loadersMu.RUnlock()
	ext := filepath.Ext(path)
	l, ok := loaders[ext]
	if !ok {
		return nil, fmt.Errorf("no loader registered for %q (file %s); was Prepare called?", ext, path)
	}
	return l, nil
}
