package core

import (
	"time"
)

// Date is a calendar date with day precision. The zero value means
// "unknown"; aggregation treats unknown dates as today so that malformed
// imports are never silently excluded from a live view.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String renders the ISO form, or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == `""` || s == "null" {
		*d = Date{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// WithDay returns the date moved to the given day of its month, clamped to
// the month's last day.
func (d Date) WithDay(day int) Date {
	if day < 1 {
		day = 1
	}
	if last := DaysInMonth(d.Year(), int(d.Month())); day > last {
		day = last
	}
	return NewDate(d.Year(), int(d.Month()), day)
}

// AddMonths advances by whole calendar months, clamping the day so that
// e.g. Jan 31 + 1 month is Feb 28/29 rather than rolling into March.
func (d Date) AddMonths(n int) Date {
	year := d.Year()
	month := int(d.Month()) + n
	for month > 12 {
		month -= 12
		year++
	}
	for month < 1 {
		month += 12
		year--
	}
	day := d.Day()
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}

// TruncateMonth returns the first day of the date's month.
func (d Date) TruncateMonth() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

// SameMonth reports whether both dates fall in the same calendar month.
func (d Date) SameMonth(o Date) bool {
	return d.Year() == o.Year() && d.Month() == o.Month()
}

// MonthsBetween counts full calendar months from a to b. A partial final
// month does not count, so 2024-01-20 to 2024-03-10 is 1 month.
func MonthsBetween(a, b Date) int {
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	return months
}

// ElapsedMonths counts month boundaries between a and b, ignoring days.
// Used by the budget cadence check, which is month-granular.
func ElapsedMonths(a, b Date) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
