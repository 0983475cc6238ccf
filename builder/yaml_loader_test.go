package builder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSession records calls and returns canned script results.
type scriptedSession struct {
	navigated   []string
	scripts     []string
	screenshots int
	scriptOut   string
	scriptErr   error
	navigateErr error
}

func (s *scriptedSession) Navigate(ctx context.Context, url string) error {
	s.navigated = append(s.navigated, url)
	return s.navigateErr
}

func (s *scriptedSession) ExecuteScript(ctx context.Context, script string) (string, error) {
	s.scripts = append(s.scripts, script)
	return s.scriptOut, s.scriptErr
}

func (s *scriptedSession) Screenshot(ctx context.Context) ([]byte, error) {
	s.screenshots++
	return []byte{0x89}, nil
}

func (s *scriptedSession) Close() error { return nil }

func TestYamlLoaderTree(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "tree.yaml", `
suites:
  - title: Checkout
    suites:
      - title: Payment
        tests:
          - title: pays with card
            steps:
              - navigate: https://shop.example/checkout
tests:
  - title: smoke
`)

	root, err := (&yamlLoader{}).Load(path)
	require.NoError(t, err)

	require.Len(t, root.Tests, 1)
	assert.Equal(t, "smoke", root.Tests[0].Title)
	assert.Equal(t, path, root.Tests[0].File)
	assert.Nil(t, root.Tests[0].Body, "a test without steps has no body")

	require.Len(t, root.Suites, 1)
	checkout := root.Suites[0]
	require.Len(t, checkout.Suites, 1)
	payment := checkout.Suites[0]
	require.Len(t, payment.Tests, 1)
	assert.Equal(t, "Checkout Payment pays with card", payment.Tests[0].Key())
	assert.NotNil(t, payment.Tests[0].Body)
}

func TestYamlLoaderSuiteWithoutTitle(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "bad.yaml", `
suites:
  - tests:
      - title: orphan
`)

	_, err := (&yamlLoader{}).Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suite without a title")
}

func TestYamlLoaderInvalidYaml(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "broken.yaml", "suites: [unclosed")

	_, err := (&yamlLoader{}).Load(path)
	require.Error(t, err)
}

func TestStepBodyRunsStepsInOrder(t *testing.T) {
	sess := &scriptedSession{scriptOut: "Shop"}
	body := stepBody([]stepSpec{
		{Navigate: "https://shop.example"},
		{Script: "document.title", Expect: "Shop"},
		{Screenshot: true},
	})

	require.NoError(t, body(context.Background(), sess))
	assert.Equal(t, []string{"https://shop.example"}, sess.navigated)
	assert.Equal(t, []string{"document.title"}, sess.scripts)
	assert.Equal(t, 1, sess.screenshots)
}

func TestStepBodyExpectMismatch(t *testing.T) {
	sess := &scriptedSession{scriptOut: "Not Shop"}
	body := stepBody([]stepSpec{
		{Script: "document.title", Expect: "Shop"},
	})

	err := body(context.Background(), sess)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1")
	assert.Contains(t, err.Error(), `expected "Shop"`)
}

func TestStepBodyStopsOnFirstFailure(t *testing.T) {
	sess := &scriptedSession{navigateErr: errors.New("connection refused")}
	body := stepBody([]stepSpec{
		{Navigate: "https://shop.example"},
		{Screenshot: true},
	})

	err := body(context.Background(), sess)
	require.Error(t, err)
	assert.Equal(t, 0, sess.screenshots, "later steps must not run after a failure")
}

func TestStepBodyEmptyStep(t *testing.T) {
	body := stepBody([]stepSpec{{}})
	err := body(context.Background(), &scriptedSession{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty step")
}
