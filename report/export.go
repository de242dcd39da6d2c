package report

import (
	"encoding/csv"
	"regexp"
	"strconv"
	"strings"

	"github.com/jhaldar/sprout/models"
)

var filenameUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// ExportFilename derives the download filename from a report label. Every
// character outside [A-Za-z0-9_-] becomes an underscore.
func ExportFilename(label string) string {
	return filenameUnsafe.ReplaceAllString(label, "_") + ".csv"
}

// ExportCSV renders a report as a flat CSV table: a header block naming the
// report and the child, a section with one row per enabled behavior and its
// subtotal, and a section with one row per date of the daily series. Labels
// containing delimiters or quotes are quoted with embedded quotes doubled,
// so the output re-parses with any standard CSV reader. Row and section
// order are fixed.
func ExportCSV(rep Report, childName string, behaviors []models.Behavior) (string, error) {
	var buf strings.Builder
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"report", rep.Label},
		{"child", childName},
		{"total", strconv.Itoa(rep.Total)},
	}
	for _, b := range behaviors {
		rows = append(rows, []string{"behavior", b.Label, strconv.Itoa(rep.Subtotals[b.ID])})
	}
	for _, d := range rep.Daily {
		rows = append(rows, []string{"day", d.Date, strconv.Itoa(d.Total)})
	}

	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
