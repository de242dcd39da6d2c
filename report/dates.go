package report

import "time"

// DaysBetween returns every calendar date from start through end inclusive,
// ascending, one entry per day with no gaps or duplicates, crossing month and
// year boundaries as the calendar does. It returns nil when start is after
// end. The slice is freshly built on every call, so iteration is restartable
// and callers may mutate the result.
func DaysBetween(start, end time.Time) []time.Time {
	start = dateOnly(start)
	end = dateOnly(end)
	if start.After(end) {
		return nil
	}
	days := make([]time.Time, 0, DayCount(start, end))
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// DayCount returns the number of calendar days in the inclusive interval
// [start, end], or zero when start is after end.
func DayCount(start, end time.Time) int {
	start = dateOnly(start)
	end = dateOnly(end)
	if start.After(end) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}
