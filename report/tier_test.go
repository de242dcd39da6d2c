package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateDefaultLadder(t *testing.T) {
	tiers := DefaultTiers()

	cases := []struct {
		total int
		id    string
		ok    bool
	}{
		{-5, "", false},
		{0, "", false},
		{39, "", false},
		{40, "bronze", true},
		{69, "bronze", true},
		{70, "silver", true},
		{99, "silver", true},
		{100, "gold", true},
		{500, "gold", true},
	}
	for _, c := range cases {
		tier, ok := Evaluate(c.total, tiers)
		assert.Equal(t, c.ok, ok, "total %d", c.total)
		assert.Equal(t, c.id, tier.ID, "total %d", c.total)
	}
}

func TestEvaluateUnorderedTable(t *testing.T) {
	tiers := []Tier{
		{ID: "gold", Minimum: 100},
		{ID: "bronze", Minimum: 40},
		{ID: "silver", Minimum: 70},
	}
	tier, ok := Evaluate(75, tiers)
	assert.True(t, ok)
	assert.Equal(t, "silver", tier.ID)
}

func TestEvaluateSharedMinimum(t *testing.T) {
	// Not expected from the static table, but duplicate minimums must still
	// resolve: the downward scan returns its first match.
	tiers := []Tier{
		{ID: "first", Minimum: 40},
		{ID: "second", Minimum: 40},
	}
	tier, ok := Evaluate(40, tiers)
	assert.True(t, ok)
	assert.Equal(t, "second", tier.ID)
}

func TestEvaluateEmptyTable(t *testing.T) {
	_, ok := Evaluate(1000, nil)
	assert.False(t, ok)
}
