package report

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/jhaldar/sprout/models"
	"github.com/stretchr/testify/assert"
)

func exportFixture(t *testing.T) (Report, []models.Behavior) {
	t.Helper()
	rng, err := Resolve(ModeWeek, mustDate(t, "2024-03-15"), time.Sunday)
	assert.NoError(t, err)
	records := []models.DayRecord{
		{ChildID: childAlice, Date: "2024-03-10", Points: map[string]int{behaviorChores: 1, behaviorKindness: 1}},
		{ChildID: childAlice, Date: "2024-03-12", Points: map[string]int{behaviorChores: -1}},
	}
	behaviors := []models.Behavior{
		{ID: behaviorChores, Label: `Chores, done "properly"`, Enabled: true},
		{ID: behaviorKindness, Label: "Kind words", Enabled: true},
	}
	return Build(records, childAlice, rng), behaviors
}

func TestExportCSVStructure(t *testing.T) {
	rep, behaviors := exportFixture(t)
	out, err := ExportCSV(rep, "Alice", behaviors)
	assert.NoError(t, err)

	r := csv.NewReader(strings.NewReader(out))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	assert.NoError(t, err)

	// Fixed field and section order: header block, behaviors, days.
	assert.Equal(t, []string{"report", rep.Label}, rows[0])
	assert.Equal(t, []string{"child", "Alice"}, rows[1])
	assert.Equal(t, []string{"total", "1"}, rows[2])
	assert.Equal(t, "behavior", rows[3][0])
	assert.Equal(t, "behavior", rows[4][0])
	assert.Equal(t, []string{"behavior", "Kind words", "1"}, rows[4])
	for i := 5; i < 12; i++ {
		assert.Equal(t, "day", rows[i][0])
	}
	assert.Len(t, rows, 12)
	assert.Equal(t, []string{"day", "2024-03-10", "2"}, rows[5])
	assert.Equal(t, []string{"day", "2024-03-11", "0"}, rows[6])
	assert.Equal(t, []string{"day", "2024-03-12", "-1"}, rows[7])
}

// A label containing the delimiter and quote characters must survive a full
// write/parse round trip unchanged.
func TestExportCSVEscapingRoundTrip(t *testing.T) {
	rep, behaviors := exportFixture(t)
	out, err := ExportCSV(rep, "Alice", behaviors)
	assert.NoError(t, err)

	assert.Contains(t, out, `"Chores, done ""properly"""`)

	r := csv.NewReader(strings.NewReader(out))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	assert.NoError(t, err)
	assert.Equal(t, []string{"behavior", `Chores, done "properly"`, "0"}, rows[3])
}

func TestExportCSVIsIdempotent(t *testing.T) {
	rep, behaviors := exportFixture(t)
	first, err := ExportCSV(rep, "Alice", behaviors)
	assert.NoError(t, err)
	second, err := ExportCSV(rep, "Alice", behaviors)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "February_2024.csv", ExportFilename("February 2024"))
	assert.Equal(t, "2024.csv", ExportFilename("2024"))
	assert.Equal(t, "2024-03-10___2024-03-16.csv", ExportFilename("2024-03-10 → 2024-03-16"))
}
