package report

import "sort"

// Tier is one row of the reward ladder: a period total of at least Minimum
// earns the tier. Marker is the decoration shown next to the tier name.
type Tier struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Minimum int    `json:"minimum"`
	Marker  string `json:"marker"`
}

// DefaultTiers is the built-in reward ladder, ordered by ascending threshold.
func DefaultTiers() []Tier {
	return []Tier{
		{ID: "bronze", Label: "Bronze", Minimum: 40, Marker: "🥉"},
		{ID: "silver", Label: "Silver", Minimum: 70, Marker: "🥈"},
		{ID: "gold", Label: "Gold", Minimum: 100, Marker: "🥇"},
	}
}

// Evaluate returns the highest tier whose minimum does not exceed the total,
// scanning from the highest threshold downward, and false when the total
// (negative totals included) is below every minimum. When two tiers share a
// minimum the one encountered first in the downward scan wins.
func Evaluate(total int, tiers []Tier) (Tier, bool) {
	ordered := append([]Tier{}, tiers...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Minimum < ordered[j].Minimum
	})
	for i := len(ordered) - 1; i >= 0; i-- {
		if ordered[i].Minimum <= total {
			return ordered[i], true
		}
	}
	return Tier{}, false
}
