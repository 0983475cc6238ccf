package builder

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crosswing/crosswing/browser"
	"github.com/crosswing/crosswing/types"
)

// yamlLoader is the built-in loader for YAML test-definition files:
//
//	suites:
//	  - title: Checkout
//	    suites: [...]
//	    tests:
//	      - title: pays with card
//	        steps:
//	          - navigate: https://shop.example/checkout
//	          - script: document.title
//	            expect: Checkout
//	          - screenshot: true
//	tests:      # root-level tests, outside any suite
//	  - title: smoke
//	    steps: [...]
type yamlLoader struct{}

type fileSpec struct {
	Suites []suiteSpec `yaml:"suites"`
	Tests  []testSpec  `yaml:"tests"`
}

type suiteSpec struct {
	Title  string      `yaml:"title"`
	Suites []suiteSpec `yaml:"suites"`
	Tests  []testSpec  `yaml:"tests"`
}

type testSpec struct {
	Title string     `yaml:"title"`
	Steps []stepSpec `yaml:"steps"`
}

type stepSpec struct {
	Navigate   string `yaml:"navigate,omitempty"`
	Script     string `yaml:"script,omitempty"`
	Expect     string `yaml:"expect,omitempty"`
	Screenshot bool   `yaml:"screenshot,omitempty"`
}

func (l *yamlLoader) Load(path string) (*types.SuiteNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading test file: %w", err)
	}

	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing test file %s: %w", path, err)
	}

	root := types.NewRootSuite()
	for _, ts := range spec.Tests {
		addTest(root, ts, path)
	}
	for _, ss := range spec.Suites {
		if err := addSuite(root, ss, path); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func addSuite(parent *types.SuiteNode, spec suiteSpec, path string) error {
	if spec.Title == "" {
		return fmt.Errorf("suite without a title in %s", path)
	}
	node := parent.AddSuite(spec.Title)
	for _, ts := range spec.Tests {
		addTest(node, ts, path)
	}
	for _, child := range spec.Suites {
		if err := addSuite(node, child, path); err != nil {
			return err
		}
	}
	return nil
}

func addTest(suite *types.SuiteNode, spec testSpec, path string) {
	tc := &types.TestCase{
		Title: spec.Title,
		File:  path,
	}
	if len(spec.Steps) > 0 {
		tc.Body = stepBody(spec.Steps)
	}
	suite.AddTest(tc)
}

// stepBody compiles a step list into an executable test body. Steps run in
// order; the first failing step fails the test.
func stepBody(steps []stepSpec) types.TestBody {
	return func(ctx context.Context, sess browser.Session) error {
		for i, step := range steps {
			if err := runStep(ctx, sess, step); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		}
		return nil
	}
}

func runStep(ctx context.Context, sess browser.Session, step stepSpec) error {
	switch {
	case step.Navigate != "":
		return sess.Navigate(ctx, step.Navigate)
	case step.Script != "":
		got, err := sess.ExecuteScript(ctx, step.Script)
		if err != nil {
			return err
		}
		if step.Expect != "" && got != step.Expect {
			return fmt.Errorf("script returned %q, expected %q", got, step.Expect)
		}
		return nil
	case step.Screenshot:
		_, err := sess.Screenshot(ctx)
		return err
	default:
		return fmt.Errorf("empty step")
	}
}
