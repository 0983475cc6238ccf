// Package logging writes per-test artifact logs for a run: one file per
// failing test, grouped by run ID and browser, with ANSI escapes stripped so
// the files are grep-able.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
)

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ArtifactWriter stores test output under baseDir/<runID>/<browser>/.
type ArtifactWriter struct {
	baseDir string
	runID   string
	log     log.Logger

	mu      sync.Mutex
	created map[string]bool // directories already ensured
}

// NewArtifactWriter creates a writer rooted at baseDir for one run.
func NewArtifactWriter(baseDir, runID string, logger log.Logger) (*ArtifactWriter, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("artifact base directory is required")
	}
	if logger == nil {
		logger = log.New()
	}
	return &ArtifactWriter{
		baseDir: baseDir,
		runID:   runID,
		log:     logger.New("component", "artifacts", "run_id", runID),
		created: make(map[string]bool),
	}, nil
}

// RunDir returns the directory artifacts for this run are written to.
func (w *ArtifactWriter) RunDir() string {
	return filepath.Join(w.baseDir, w.runID)
}

// WriteTestLog stores content for one test and returns the file path.
// Content is ANSI-stripped before writing.
func (w *ArtifactWriter) WriteTestLog(browser, testKey, content string) (string, error) {
	dir := filepath.Join(w.RunDir(), sanitizePathElement(browser))
	if err := w.ensureDir(dir); err != nil {
		return "", err
	}

	path := filepath.Join(dir, sanitizePathElement(testKey)+".log")
	if err := os.WriteFile(path, []byte(stripansi.Strip(content)), 0644); err != nil {
		return "", fmt.Errorf("writing test log %s: %w", path, err)
	}
	w.log.Debug("Wrote test artifact", "browser", browser, "test", testKey, "path", path)
	return path, nil
}

func (w *ArtifactWriter) ensureDir(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.created[dir] {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating artifact directory %s: %w", dir, err)
	}
	w.created[dir] = true
	return nil
}

func sanitizePathElement(s string) string {
	s = unsafePathChars.ReplaceAllString(s, "_")
	if s == "" {
		s = "_"
	}
	return s
}
