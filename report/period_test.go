package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := ParseDate(value)
	if err != nil {
		t.Fatalf("failed to parse date %q: %v", value, err)
	}
	return d
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-15")
	assert.NoError(t, err)
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.March, d.Month())
	assert.Equal(t, 15, d.Day())
	assert.Equal(t, time.UTC, d.Location())

	// An anchor that fails to parse must fail fast, not yield a garbage range.
	_, err = ParseDate("not-a-date")
	assert.Error(t, err)
	_, err = ParseDate("2024-13-01")
	assert.Error(t, err)
	_, err = ParseDate("")
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	for _, value := range []string{"day", "week", "month", "year"} {
		mode, err := ParseMode(value)
		assert.NoError(t, err)
		assert.Equal(t, Mode(value), mode)
	}
	_, err := ParseMode("fortnight")
	assert.Error(t, err)
}

func TestResolveDay(t *testing.T) {
	rng, err := Resolve(ModeDay, mustDate(t, "2024-03-15"), time.Sunday)
	assert.NoError(t, err)
	assert.Equal(t, "2024-03-15", FormatDate(rng.Start))
	assert.Equal(t, "2024-03-15", FormatDate(rng.End))
	assert.Equal(t, "2024-03-15", rng.Label)
}

func TestResolveWeek(t *testing.T) {
	// 2024-03-15 is a Friday; the week starts on the preceding Sunday.
	rng, err := Resolve(ModeWeek, mustDate(t, "2024-03-15"), time.Sunday)
	assert.NoError(t, err)
	assert.Equal(t, "2024-03-10", FormatDate(rng.Start))
	assert.Equal(t, "2024-03-16", FormatDate(rng.End))
	assert.Equal(t, "2024-03-10 → 2024-03-16", rng.Label)

	// An anchor already on the week start day stays put.
	rng, err = Resolve(ModeWeek, mustDate(t, "2024-03-10"), time.Sunday)
	assert.NoError(t, err)
	assert.Equal(t, "2024-03-10", FormatDate(rng.Start))
	assert.Equal(t, "2024-03-16", FormatDate(rng.End))
}

func TestResolveWeekConfigurableStart(t *testing.T) {
	rng, err := Resolve(ModeWeek, mustDate(t, "2024-03-15"), time.Monday)
	assert.NoError(t, err)
	assert.Equal(t, "2024-03-11", FormatDate(rng.Start))
	assert.Equal(t, "2024-03-17", FormatDate(rng.End))
}

func TestResolveMonth(t *testing.T) {
	// February in a leap year.
	rng, err := Resolve(ModeMonth, mustDate(t, "2024-02-10"), time.Sunday)
	assert.NoError(t, err)
	assert.Equal(t, "2024-02-01", FormatDate(rng.Start))
	assert.Equal(t, "2024-02-29", FormatDate(rng.End))
	assert.Equal(t, "February 2024", rng.Label)

	// Non-leap February.
	rng, err = Resolve(ModeMonth, mustDate(t, "2023-02-28"), time.Sunday)
	assert.NoError(t, err)
	assert.Equal(t, "2023-02-28", FormatDate(rng.End))

	// 31-day month.
	rng, err = Resolve(ModeMonth, mustDate(t, "2024-12-05"), time.Sunday)
	assert.NoError(t, err)
	assert.Equal(t, "2024-12-01", FormatDate(rng.Start))
	assert.Equal(t, "2024-12-31", FormatDate(rng.End))
	assert.Equal(t, "December 2024", rng.Label)
}

func TestResolveYear(t *testing.T) {
	rng, err := Resolve(ModeYear, mustDate(t, "2024-07-04"), time.Sunday)
	assert.NoError(t, err)
	assert.Equal(t, "2024-01-01", FormatDate(rng.Start))
	assert.Equal(t, "2024-12-31", FormatDate(rng.End))
	assert.Equal(t, "2024", rng.Label)
}

func TestResolveUnknownMode(t *testing.T) {
	_, err := Resolve(Mode("quarter"), mustDate(t, "2024-03-15"), time.Sunday)
	assert.Error(t, err)
}

func TestRangeContains(t *testing.T) {
	rng, err := Resolve(ModeMonth, mustDate(t, "2024-02-10"), time.Sunday)
	assert.NoError(t, err)

	// Boundaries are inclusive.
	assert.True(t, rng.Contains("2024-02-01"))
	assert.True(t, rng.Contains("2024-02-29"))
	assert.True(t, rng.Contains("2024-02-15"))
	assert.False(t, rng.Contains("2024-01-31"))
	assert.False(t, rng.Contains("2024-03-01"))
}
