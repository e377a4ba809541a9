package booking

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// DateRange is a closed interval of calendar days. Both ends are included.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Overlaps reports whether r and other share at least one calendar day.
// [a,b] and [c,d] overlap iff a <= d && c <= b, so a range ending on day X
// conflicts with one starting on day X.
func (r DateRange) Overlaps(other DateRange) bool {
	return !r.From.After(other.To) && !other.From.After(r.To)
}

// Days returns the number of calendar days covered by the range.
func (r DateRange) Days() int {
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.From.Format(dateLayout), r.To.Format(dateLayout))
}

// Date builds a calendar date at UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// IsCalendarDate reports whether t carries no time-of-day component.
func IsCalendarDate(t time.Time) bool {
	return !t.IsZero() && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}
