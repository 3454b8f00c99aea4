// Package streak decides whether a student's purchase dates qualify for
// a reward.
package streak

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// DateLayout is the only accepted calendar date format.
const DateLayout = "2006-01-02"

// Required is the count that qualifies a streak.
const Required = 2

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC.
// Out-of-range days such as 2023-02-29 are rejected.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// Qualifies runs the streak rule over a set of purchase dates.
//
// Dates are deduplicated and sorted. A cursor starts at the earliest date
// and advances by exactly one day per date visited, whatever the date's
// value. A date exactly one day away from the cursor extends the count;
// any other distance resets it to one. Reaching Required returns true.
//
// The cursor does not follow the dates, so ["2024-01-01","2024-01-02"]
// does not qualify while ["2024-01-01","2024-01-03","2024-01-04"] does.
// This is the rule the reward flow has always applied and it is kept as is.
func Qualifies(dates []string) (bool, error) {
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		t, err := ParseDate(d)
		if err != nil {
			return false, err
		}
		days = append(days, t)
	}
	if len(days) == 0 {
		return false, nil
	}

	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	days = slices.CompactFunc(days, func(a, b time.Time) bool { return a.Equal(b) })

	cursor := days[0]
	count := 0
	for _, d := range days {
		if daysBetween(d, cursor) == 1 {
			count++
		} else {
			count = 1
		}
		cursor = cursor.AddDate(0, 0, 1)
		if count == Required {
			return true, nil
		}
	}
	return false, nil
}

// daysBetween is the absolute distance rounded up to whole days.
func daysBetween(a, b time.Time) int {
	return int(math.Ceil(math.Abs(a.Sub(b).Hours()) / 24))
}
