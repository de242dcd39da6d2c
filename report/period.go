package report

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the sole date format the application exchanges: record keys,
// anchor dates, and exported rows all use it.
const DateLayout = "2006-01-02"

// Mode names a date-range resolution: a single day, the surrounding week,
// the calendar month, or the calendar year of the anchor date.
type Mode string

const (
	ModeDay   Mode = "day"
	ModeWeek  Mode = "week"
	ModeMonth Mode = "month"
	ModeYear  Mode = "year"
)

// ParseMode validates a period mode received from the outside.
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case ModeDay, ModeWeek, ModeMonth, ModeYear:
		return Mode(value), nil
	}
	return "", fmt.Errorf("invalid period mode: %q", value)
}

// ParseDate parses a YYYY-MM-DD string into a UTC-midnight time.Time. All
// calendar dates in the application live in UTC so no local offset can shift
// a date across midnight.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// dateOnly drops any time-of-day component, keeping the (year, month, day)
// triple at UTC midnight.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Range is a resolved reporting period: a closed calendar-date interval plus
// its display label. Start and End are both inclusive.
type Range struct {
	Start time.Time
	End   time.Time
	Label string
}

// Contains reports whether a YYYY-MM-DD date string falls inside the range.
// The comparison is lexicographic, which for this layout is chronological.
func (r Range) Contains(date string) bool {
	return date >= FormatDate(r.Start) && date <= FormatDate(r.End)
}

// Resolve turns a period mode and an anchor date into a concrete Range.
// weekStart picks the first day of the 7-day cycle for week mode; every other
// mode ignores it.
func Resolve(mode Mode, anchor time.Time, weekStart time.Weekday) (Range, error) {
	anchor = dateOnly(anchor)
	switch mode {
	case ModeDay:
		return Range{
			Start: anchor,
			End:   anchor,
			Label: FormatDate(anchor),
		}, nil
	case ModeWeek:
		back := (int(anchor.Weekday()) - int(weekStart) + 7) % 7
		start := anchor.AddDate(0, 0, -back)
		end := start.AddDate(0, 0, 6)
		return Range{
			Start: start,
			End:   end,
			Label: fmt.Sprintf("%s → %s", FormatDate(start), FormatDate(end)),
		}, nil
	case ModeMonth:
		start := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
		// Day zero of the following month is the last day of this one.
		end := time.Date(anchor.Year(), anchor.Month()+1, 0, 0, 0, 0, 0, time.UTC)
		return Range{
			Start: start,
			End:   end,
			Label: fmt.Sprintf("%s %d", start.Month().String(), start.Year()),
		}, nil
	case ModeYear:
		return Range{
			Start: time.Date(anchor.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(anchor.Year(), time.December, 31, 0, 0, 0, 0, time.UTC),
			Label: strconv.Itoa(anchor.Year()),
		}, nil
	}
	return Range{}, fmt.Errorf("invalid period mode: %q", mode)
}
