package academic

import (
	"fmt"
	"time"
)

// Period identifies one academic cut.
type Period struct {
	Year     int    `json:"year"`
	Semester string `json:"semester"` // e.g. "2025-1"
	Cut      int    `json:"cut"`      // 1..3
	Month    int    `json:"month"`
}

// ResolvePeriod maps a timestamp to its academic period. Total and
// deterministic: every instant belongs to exactly one cut.
func ResolvePeriod(t time.Time) Period {
	year := t.Year()
	month := int(t.Month())
	idx := monthIndex[month]
	return Period{
		Year:     year,
		Semester: fmt.Sprintf("%d-%d", year, idx.semester),
		Cut:      idx.cut,
		Month:    month,
	}
}

// Describe returns a human-readable label for the period.
func (p Period) Describe() string {
	return fmt.Sprintf("year %d, semester %s, cut %d", p.Year, p.Semester, p.Cut)
}
