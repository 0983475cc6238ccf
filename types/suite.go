package types

import (
	"context"
	"strings"

	"github.com/crosswing/crosswing/browser"
)

// SuiteNode is a named grouping of tests and nested suites. The root of a
// tree has no parent and an empty title; the empty title never contributes
// to a descendant's path.
type SuiteNode struct {
	Title  string
	Parent *SuiteNode
	Suites []*SuiteNode
	Tests  []*TestCase
}

// NewRootSuite returns an empty root suite.
func NewRootSuite() *SuiteNode {
	return &SuiteNode{}
}

// AddSuite appends a child suite with the given title and returns it.
func (s *SuiteNode) AddSuite(title string) *SuiteNode {
	child := &SuiteNode{Title: title, Parent: s}
	s.Suites = append(s.Suites, child)
	return child
}

// AddTest appends a test case to this suite and sets its owning suite.
func (s *SuiteNode) AddTest(t *TestCase) *TestCase {
	t.Suite = s
	s.Tests = append(s.Tests, t)
	return t
}

// IsRoot reports whether this node is the root of its tree.
func (s *SuiteNode) IsRoot() bool {
	return s.Parent == nil
}

// Path returns the ancestor titles down to and including this suite,
// excluding the root's empty title.
func (s *SuiteNode) Path() []string {
	if s == nil || s.IsRoot() {
		return nil
	}
	return append(s.Parent.Path(), s.Title)
}

// FullTitle returns the suite path joined with single spaces.
func (s *SuiteNode) FullTitle() string {
	return strings.Join(s.Path(), " ")
}

// EachTest visits every test in the tree, depth first, in declaration order:
// the suite's own tests first, then nested suites.
func (s *SuiteNode) EachTest(fn func(*TestCase)) {
	for _, t := range s.Tests {
		fn(t)
	}
	for _, child := range s.Suites {
		child.EachTest(fn)
	}
}

// CountTests returns the number of tests in the tree rooted at s.
func (s *SuiteNode) CountTests() int {
	n := 0
	s.EachTest(func(*TestCase) { n++ })
	return n
}

// TestBody executes one test against an acquired browser session.
type TestBody func(ctx context.Context, sess browser.Session) error

// TestCase is a single test declaration. Identity for collision detection is
// the concatenation of the ancestor suite titles and the test's own title,
// not object identity.
type TestCase struct {
	Title string
	File  string
	Suite *SuiteNode
	Body  TestBody
}

// Key returns the identity key of the test: the full suite path plus the
// test title, space joined. Two tests sharing a key are ambiguous regardless
// of which file declared them. Matching is exact string equality; titles are
// not case folded or whitespace normalized.
func (t *TestCase) Key() string {
	parts := append(t.Suite.Path(), t.Title)
	return strings.Join(parts, " ")
}

// SkipPredicate reports whether a test should be skipped instead of executed.
type SkipPredicate func(*TestCase) bool
