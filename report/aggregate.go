package report

import (
	"github.com/jhaldar/sprout/models"
)

// DailyTotal is one entry of the fixed-length daily series: the sum of all
// point values a child earned on one calendar date, zero when no record
// exists for that date.
type DailyTotal struct {
	Date  string `json:"date"`
	Total int    `json:"total"`
}

// Report is the derived aggregate for one child over one period: the grand
// total, per-behavior subtotals, and a daily series covering every date of
// the period. It is never persisted; it is recomputed in full from each
// snapshot of the day-record collection.
//
// Invariant: Total == sum over Daily == sum over Subtotals.
type Report struct {
	ChildID   string         `json:"child_id"`
	Label     string         `json:"label"`
	Total     int            `json:"total"`
	Subtotals map[string]int `json:"subtotals"`
	Daily     []DailyTotal   `json:"daily"`
}

// clampPoint forces a stored point value back into {-1, 0, +1}. Writers
// already clamp on the way in, but the engine does not trust stored data.
func clampPoint(v int) int {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// dayTotal sums one record's point mapping with clamping applied.
func dayTotal(points map[string]int) int {
	total := 0
	for _, v := range points {
		total += clampPoint(v)
	}
	return total
}

// Build computes the aggregate report for one child over a resolved range
// from a complete set of day records. Records for other children, or dated
// outside the range, contribute nothing; range boundaries are inclusive.
// Build is pure: the same inputs always yield the same report, and the
// inputs are never mutated.
func Build(records []models.DayRecord, childID string, rng Range) Report {
	rep := Report{
		ChildID:   childID,
		Label:     rng.Label,
		Subtotals: map[string]int{},
	}

	byDate := make(map[string]int)
	for _, rec := range records {
		if rec.ChildID != childID || !rng.Contains(rec.Date) {
			continue
		}
		sum := dayTotal(rec.Points)
		rep.Total += sum
		byDate[rec.Date] += sum
		for behaviorID, v := range rec.Points {
			rep.Subtotals[behaviorID] += clampPoint(v)
		}
	}

	days := DaysBetween(rng.Start, rng.End)
	rep.Daily = make([]DailyTotal, len(days))
	for i, day := range days {
		date := FormatDate(day)
		rep.Daily[i] = DailyTotal{Date: date, Total: byDate[date]}
	}

	return rep
}
