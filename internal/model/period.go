// Package model defines the canonical data shapes shared across the engine.
package model

import (
	"fmt"
	"time"
)

// Period identifies one calendar month of sales activity.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses a "YYYY-MM" key into a Period.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// String returns the "YYYY-MM" form.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Label returns a short human label, e.g. "Jul 2025".
func (p Period) Label() string {
	return p.Start().Format("Jan 2006")
}

// Start returns midnight on the first day of the period, UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last instant belonging to the period.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// DaysInMonth returns the number of calendar days in the period.
func (p Period) DaysInMonth() int {
	return p.Start().AddDate(0, 1, -1).Day()
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

// IsCurrent reports whether the period is the calendar month of now.
func (p Period) IsCurrent(now time.Time) bool {
	return p.Year == now.Year() && p.Month == now.Month()
}

// Before reports whether p is strictly earlier than other.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// Prev returns the preceding calendar month.
func (p Period) Prev() Period {
	t := p.Start().AddDate(0, -1, 0)
	return Period{Year: t.Year(), Month: t.Month()}
}

// Zero reports whether the period is the zero value.
func (p Period) Zero() bool {
	return p.Year == 0 && p.Month == 0
}
