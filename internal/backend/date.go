package backend

import (
	"fmt"
	"time"
)

// LocalDate formats t as YYYY-MM-DD using its local calendar fields.
// Formatting through UTC (an ISO timestamp truncated to the date) shifts
// the day around midnight for non-UTC offsets, which makes "today's
// activities" miss or double-count.
func LocalDate(t time.Time) string {
	year, month, day := t.Date()
	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
}

// Today returns the current local civil date.
func Today() string {
	return LocalDate(time.Now())
}
