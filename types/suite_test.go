package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuitePath(t *testing.T) {
	root := NewRootSuite()
	checkout := root.AddSuite("Checkout")
	payment := checkout.AddSuite("Payment")

	assert.Nil(t, root.Path())
	assert.Equal(t, []string{"Checkout"}, checkout.Path())
	assert.Equal(t, []string{"Checkout", "Payment"}, payment.Path())

	assert.Equal(t, "", root.FullTitle())
	assert.Equal(t, "Checkout Payment", payment.FullTitle())
}

func TestTestCaseKey(t *testing.T) {
	root := NewRootSuite()
	checkout := root.AddSuite("Checkout")
	payment := checkout.AddSuite("Payment")

	rootTest := root.AddTest(&TestCase{Title: "smoke"})
	nested := payment.AddTest(&TestCase{Title: "pays with card"})

	assert.Equal(t, "smoke", rootTest.Key())
	assert.Equal(t, "Checkout Payment pays with card", nested.Key())
}

func TestTestCaseKeyIsExact(t *testing.T) {
	// Keys are compared verbatim; neither case nor whitespace is normalized.
	root := NewRootSuite()
	a := root.AddTest(&TestCase{Title: "Smoke"})
	b := root.AddTest(&TestCase{Title: "smoke"})
	c := root.AddTest(&TestCase{Title: " smoke"})

	assert.NotEqual(t, a.Key(), b.Key())
	assert.NotEqual(t, b.Key(), c.Key())
}

func TestEachTestOrder(t *testing.T) {
	root := NewRootSuite()
	root.AddTest(&TestCase{Title: "first"})
	suiteA := root.AddSuite("A")
	suiteA.AddTest(&TestCase{Title: "second"})
	inner := suiteA.AddSuite("Inner")
	inner.AddTest(&TestCase{Title: "third"})
	suiteB := root.AddSuite("B")
	suiteB.AddTest(&TestCase{Title: "fourth"})

	var order []string
	root.EachTest(func(tc *TestCase) {
		order = append(order, tc.Title)
	})

	require.Equal(t, []string{"first", "second", "third", "fourth"}, order)
	assert.Equal(t, 4, root.CountTests())
}

func TestAddTestSetsSuite(t *testing.T) {
	root := NewRootSuite()
	s := root.AddSuite("S")
	tc := s.AddTest(&TestCase{Title: "t"})
	assert.Same(t, s, tc.Suite)
}
