package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Defaults(t *testing.T) {
	c := New(DefaultRules())

	tests := []struct {
		instruction string
		bufLen      int
		want        bool
	}{
		{"fix this", 0, true},
		{"FIX THIS", 500, true},
		{"add a footer", 500, false},
		{"Add a footer", 0, false},
		{"make the nav responsive", 150, true},
		{"make the nav responsive", 50, false},
		{"make the nav responsive", 100, false},
		{"make the nav responsive", 101, true},
		{"update and add a button", 0, true}, // replace rule checked first
		{"also a dark theme", 500, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got := c.Classify(tt.instruction, tt.bufLen)
		assert.Equal(t, tt.want, got, "Classify(%q, %d)", tt.instruction, tt.bufLen)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := New(DefaultRules())
	first := c.Decide("polish the header", 10)
	for n := 0; n < 10; n++ {
		assert.Equal(t, first, c.Decide("polish the header", 10))
	}
}

func TestIsObviousImprovement(t *testing.T) {
	c := New(DefaultRules())

	tests := []struct {
		instruction   string
		isReplacement bool
		want          bool
	}{
		{"make it better", true, true},
		{"please improve the layout", true, true},
		{"fix this", true, true},
		{"refactor the css", true, false},
		{"fix this", false, false},
	}

	for _, tt := range tests {
		got := c.IsObviousImprovement(tt.instruction, tt.isReplacement)
		assert.Equal(t, tt.want, got, "IsObviousImprovement(%q, %v)", tt.instruction, tt.isReplacement)
	}
}

func TestDecide(t *testing.T) {
	c := New(DefaultRules())

	d := c.Decide("Make it better", 0)
	assert.True(t, d.Replace)
	assert.True(t, d.AutoApply)
	assert.Equal(t, `replace keyword "make it better"`, d.Reason)

	d = c.Decide("insert a table", 1000)
	assert.False(t, d.Replace)
	assert.False(t, d.AutoApply)
	assert.Equal(t, `append keyword "insert"`, d.Reason)

	d = c.Decide("a hero section", 101)
	assert.True(t, d.Replace)
	assert.Equal(t, "buffer length 101 > 100", d.Reason)
}

func TestCustomRules(t *testing.T) {
	c := New(Rules{
		Replace:          []string{"  Redo ", ""},
		Append:           []string{"more"},
		AutoApply:        []string{"redo"},
		ReplaceThreshold: 5,
	})

	assert.True(t, c.Classify("redo it", 0))
	assert.False(t, c.Classify("more please", 100))
	assert.True(t, c.Classify("hmm", 6))
	assert.False(t, c.Classify("hmm", 5))
	assert.True(t, c.IsObviousImprovement("REDO", true))
	assert.False(t, c.Classify("fix this", 0), "default keywords are not implied")
}
