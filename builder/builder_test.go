package builder

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosswing/crosswing/types"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const passingFile = `
suites:
  - title: Checkout
    tests:
      - title: pays with card
        steps:
          - navigate: https://shop.example/checkout
tests:
  - title: smoke
    steps:
      - script: document.title
        expect: Shop
`

func TestBuildOneAdapterPerFile(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.yaml", passingFile)
	b := writeTestFile(t, dir, "b.yaml", `
tests:
  - title: other
    steps:
      - screenshot: true
`)

	adapters, err := New(Config{}).Build([]string{a, b})
	require.NoError(t, err)
	require.Len(t, adapters, 2)

	assert.Equal(t, []string{a}, adapters[0].Files())
	assert.Equal(t, 2, adapters[0].Root().CountTests())
	assert.Equal(t, []string{b}, adapters[1].Files())
	assert.Equal(t, 1, adapters[1].Root().CountTests())
}

func TestBuildEmitsFileEvents(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.yaml", passingFile)

	var events []types.Event
	b := New(Config{Sink: types.EventSinkFunc(func(e types.Event) {
		events = append(events, e)
	})})

	_, err := b.Build([]string{a})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, types.EventBeforeFileRead, events[0].Kind)
	assert.Equal(t, a, events[0].File)
	assert.Equal(t, types.EventAfterFileRead, events[1].Kind)
	assert.Equal(t, a, events[1].File)
}

func TestBuildNoFiles(t *testing.T) {
	_, err := New(Config{}).Build(nil)
	require.Error(t, err)
}

func TestBuildUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.json", `{}`)

	_, err := New(Config{}).Build([]string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no loader registered")
}

func TestBuildSameFileDuplicate(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "dup.yaml", `
suites:
  - title: Checkout
    tests:
      - title: pays with card
      - title: pays with card
`)

	_, err := New(Config{}).Build([]string{path})
	require.Error(t, err)
	require.True(t, IsDuplicateTestError(err))

	var dup *DuplicateTestError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Checkout pays with card", dup.Title)
	require.Len(t, dup.Files, 1)
	assert.Equal(t, path, dup.Files[0])
}

func TestBuildCrossFileDuplicate(t *testing.T) {
	dir := t.TempDir()
	first := writeTestFile(t, dir, "a.yaml", `
suites:
  - title: Checkout
    tests:
      - title: pays with card
`)
	second := writeTestFile(t, dir, "b.yaml", `
suites:
  - title: Checkout
    tests:
      - title: pays with card
`)

	_, err := New(Config{}).Build([]string{first, second})
	require.Error(t, err)

	var dup *DuplicateTestError
	require.ErrorAs(t, err, &dup)
	// Files are reported in encounter order.
	assert.Equal(t, []string{first, second}, dup.Files)
	assert.Contains(t, err.Error(), first)
	assert.Contains(t, err.Error(), second)
}

func TestSameTitleDifferentSuitesIsNoCollision(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "ok.yaml", `
suites:
  - title: Checkout
    tests:
      - title: loads
  - title: Search
    tests:
      - title: loads
`)

	adapters, err := New(Config{}).Build([]string{path})
	require.NoError(t, err)
	require.Len(t, adapters, 1)
}

func TestCheckCollisionsStopsAtFirst(t *testing.T) {
	rootA := types.NewRootSuite()
	rootA.AddTest(&types.TestCase{Title: "x", File: "a.yaml"})
	rootA.AddTest(&types.TestCase{Title: "y", File: "a.yaml"})
	rootB := types.NewRootSuite()
	rootB.AddTest(&types.TestCase{Title: "x", File: "b.yaml"})
	rootB.AddTest(&types.TestCase{Title: "y", File: "b.yaml"})

	err := CheckCollisions(rootA, rootB)
	var dup *DuplicateTestError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "x", dup.Title)
}

func TestBuildMergedGraftsAllFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.yaml", passingFile)
	b := writeTestFile(t, dir, "b.yaml", `
suites:
  - title: Search
    tests:
      - title: finds items
`)

	merged, err := New(Config{}).BuildMerged([]string{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, merged.Files())
	assert.Equal(t, 3, merged.Root().CountTests())

	// Grafted suites are reparented under the merged root.
	for _, s := range merged.Root().Suites {
		assert.Same(t, merged.Root(), s.Parent)
	}
}

func TestBuildMergedSkipsCollisionCheck(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.yaml", `
tests:
  - title: dup
`)
	b := writeTestFile(t, dir, "b.yaml", `
tests:
  - title: dup
`)

	// BuildMerged leaves the check to the caller, who applies it fresh.
	merged, err := New(Config{}).BuildMerged([]string{a, b})
	require.NoError(t, err)

	err = CheckCollisions(merged.Root())
	require.True(t, IsDuplicateTestError(err))
}

func TestPrepareIsIdempotent(t *testing.T) {
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Prepare()
		}()
	}
	wg.Wait()

	_, err := loaderFor("x.yaml")
	require.NoError(t, err)
	_, err = loaderFor("x.yml")
	require.NoError(t, err)
}

func TestRegisterLoaderOverrides(t *testing.T) {
	RegisterLoader(".custom", &yamlLoader{})
	l, err := loaderFor("file.custom")
	require.NoError(t, err)
	assert.NotNil(t, l)
}
