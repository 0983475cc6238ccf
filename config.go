package crosswing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/crosswing/crosswing/flags"
)

// BrowserConfig is the per-browser slice of the configuration: which files a
// browser runs and how many times a failing test is retried there.
type BrowserConfig struct {
	ID       string
	Retries  int
	Patterns []string // overrides the global patterns when set
}

// browsersFile is the on-disk shape of the browser config file:
//
//	patterns:
//	  - "*.yaml"
//	retries: 1
//	browsers:
//	  - id: chrome
//	    retries: 2
//	  - id: firefox
//
// Per-browser retries is a pointer so an explicit `retries: 0` stays 0
// instead of inheriting the file-level default.
type browsersFile struct {
	Patterns []string      `yaml:"patterns"`
	Retries  *int          `yaml:"retries,omitempty"`
	Browsers []browserSpec `yaml:"browsers"`
}

type browserSpec struct {
	ID       string   `yaml:"id"`
	Retries  *int     `yaml:"retries,omitempty"`
	Patterns []string `yaml:"patterns,omitempty"`
}

// Config holds the application configuration.
type Config struct {
	TestDir      string
	WebDriverURL string
	Browsers     []BrowserConfig
	Patterns     []string // file glob patterns, relative to TestDir
	RunInterval  time.Duration
	RunOnce      bool
	LogDir       string
	ListOnly     bool
	Log          log.Logger
}

// NewConfig creates a new Config from cli context.
func NewConfig(ctx *cli.Context, logger log.Logger, testDir string, browserConfig string) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if testDir == "" {
		return nil, errors.New("test directory is required")
	}
	if browserConfig == "" {
		return nil, errors.New("browser configuration file is required")
	}

	absTestDir, err := filepath.Abs(testDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for test directory '%s': %w", testDir, err)
	}
	logDir, err := filepath.Abs(ctx.String(flags.LogDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory: %w", err)
	}

	browsers, patterns, err := loadBrowsersFile(browserConfig)
	if err != nil {
		return nil, err
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)

	return &Config{
		TestDir:      absTestDir,
		WebDriverURL: ctx.String(flags.WebDriverURL.Name),
		Browsers:     browsers,
		Patterns:     patterns,
		RunInterval:  runInterval,
		RunOnce:      runInterval == 0,
		LogDir:       logDir,
		ListOnly:     ctx.Bool(flags.List.Name),
		Log:          logger,
	}, nil
}

func loadBrowsersFile(path string) ([]BrowserConfig, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading browser config: %w", err)
	}
	var file browsersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parsing browser config %s: %w", path, err)
	}
	if len(file.Browsers) == 0 {
		return nil, nil, fmt.Errorf("browser config %s declares no browsers", path)
	}

	seen := make(map[string]bool)
	browsers := make([]BrowserConfig, 0, len(file.Browsers))
	for i, b := range file.Browsers {
		if b.ID == "" {
			return nil, nil, fmt.Errorf("browser config %s: browser %d has no id", path, i)
		}
		if seen[b.ID] {
			return nil, nil, fmt.Errorf("browser config %s: browser %q declared twice", path, b.ID)
		}
		seen[b.ID] = true

		retries := 0
		switch {
		case b.Retries != nil:
			retries = *b.Retries
		case file.Retries != nil:
			retries = *file.Retries
		}
		if retries < 0 {
			return nil, nil, fmt.Errorf("browser config %s: browser %q has negative retries", path, b.ID)
		}
		browsers = append(browsers, BrowserConfig{ID: b.ID, Retries: retries, Patterns: b.Patterns})
	}

	patterns := file.Patterns
	if len(patterns) == 0 {
		patterns = []string{"*.yaml", "*.yml"}
	}
	return browsers, patterns, nil
}

// ForBrowser returns the configuration slice for one browser identity.
func (c *Config) ForBrowser(id string) (BrowserConfig, error) {
	for _, b := range c.Browsers {
		if b.ID == id {
			return b, nil
		}
	}
	return BrowserConfig{}, fmt.Errorf("browser %q is not configured", id)
}

// TestFilesFor resolves the test files a browser runs: its own patterns if
// set, the global patterns otherwise, globbed under TestDir and returned
// sorted for a stable encounter order.
func (c *Config) TestFilesFor(b BrowserConfig) ([]string, error) {
	patterns := b.Patterns
	if len(patterns) == 0 {
		patterns = c.Patterns
	}

	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(c.TestDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("bad file pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no test files match %v under %s", patterns, c.TestDir)
	}
	return files, nil
}
