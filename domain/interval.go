package domain

import (
	"fmt"
	"time"
)

// NextDue returns the due date that follows date for the given recurrence
// kind. The result is deterministic and strictly later than the input.
// Month and year steps keep the day-of-month, clamped to the length of the
// target month (2024-01-31 -> 2024-02-29).
func NextDue(date string, r Recurrence) (string, error) {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", fmt.Errorf("parse due date %q: %w", date, err)
	}
	switch r {
	case RecurrenceDaily:
		t = t.AddDate(0, 0, 1)
	case RecurrenceWeekly:
		t = t.AddDate(0, 0, 7)
	case RecurrenceBiweekly:
		t = t.AddDate(0, 0, 14)
	case RecurrenceMonthly:
		t = addMonthsClamped(t, 1)
	case RecurrenceYearly:
		t = addMonthsClamped(t, 12)
	default:
		return "", fmt.Errorf("no interval for recurrence %q", r)
	}
	return t.Format(dateLayout), nil
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, day := t.Date()
	// Normalize the target month via a day-1 anchor, then clamp the day so
	// Jan 31 + 1 month lands on Feb 29/28 instead of overflowing into March.
	anchor := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := anchor.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(anchor.Year(), anchor.Month(), day, 0, 0, 0, 0, time.UTC)
}
