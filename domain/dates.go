package domain

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Clock supplies the current instant. Injected so planning runs are
// reproducible in tests.
type Clock func() time.Time

// Dates converts instants to civil dates in a fixed IANA timezone and
// answers calendar questions about them. All day arithmetic happens on the
// civil date, never on the raw instant, so DST transitions cannot shift a
// computed day.
type Dates struct {
	loc   *time.Location
	clock Clock
}

// NewDates validates the timezone once and returns a date service bound to
// it. A nil clock defaults to time.Now.
func NewDates(timezone string, clock Clock) (*Dates, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	if clock == nil {
		clock = time.Now
	}
	return &Dates{loc: loc, clock: clock}, nil
}

// Location exposes the bound timezone for schedulers that need it.
func (d *Dates) Location() *time.Location {
	return d.loc
}

// Now returns the current instant from the injected clock.
func (d *Dates) Now() time.Time {
	return d.clock()
}

// CivilDate renders the instant as YYYY-MM-DD per the service timezone.
func (d *Dates) CivilDate(t time.Time) string {
	return t.In(d.loc).Format(dateLayout)
}

// Today is the civil date of the current instant.
func (d *Dates) Today() string {
	return d.CivilDate(d.clock())
}

// IsOverdue reports whether date lies strictly before today. Empty dates
// are never overdue. Lexicographic comparison is valid because the format
// is zero-padded ISO.
func (d *Dates) IsOverdue(date string) bool {
	if date == "" {
		return false
	}
	return date < d.Today()
}

// IsDueSoon reports whether date is today or tomorrow. Empty dates are
// never due soon.
func (d *Dates) IsDueSoon(date string) bool {
	if date == "" {
		return false
	}
	today := d.Today()
	return date == today || date == addDays(today, 1)
}

// WeekBounds returns the Monday and Sunday of the current local week.
// ISO convention: a local Sunday belongs to the week that started six days
// earlier.
func (d *Dates) WeekBounds() (string, string) {
	today := d.Today()
	t, err := time.Parse(dateLayout, today)
	if err != nil {
		// Today() always produces the layout it parses.
		panic(err)
	}
	shift := int(t.Weekday()) - 1
	if t.Weekday() == time.Sunday {
		shift = 6
	}
	start := t.AddDate(0, 0, -shift)
	end := start.AddDate(0, 0, 6)
	return start.Format(dateLayout), end.Format(dateLayout)
}

// addDays performs day arithmetic on a civil date string. Malformed input
// returns the input unchanged; callers treat such values as plain strings
// that will simply never compare equal to a real date.
func addDays(date string, days int) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, days).Format(dateLayout)
}
