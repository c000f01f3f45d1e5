// Package clinic holds per-organization clinic settings used by the decision
// core, chiefly the business-hours window.
package clinic

import (
	"fmt"
	"time"
)

// DayHours represents the opening hours for a single day.
// Nil means the clinic is closed that day.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "18:00" in 24-hour format
}

// BusinessHours maps day names to their hours.
type BusinessHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// Hours is the business-hours configuration of one organization.
type Hours struct {
	OrgID         string        `json:"org_id"`
	Timezone      string        `json:"timezone"` // e.g., "America/New_York"
	BusinessHours BusinessHours `json:"business_hours"`
}

// DefaultHours is what an organization gets before it saves any hours: no
// configured days in UTC. IsOpenAt treats that as always open, and its quota
// day is the UTC calendar date.
func DefaultHours(orgID string) *Hours {
	return &Hours{OrgID: orgID, Timezone: "UTC"}
}

// GetHoursForDay returns the hours for a given weekday (0=Sunday, 6=Saturday).
func (b *BusinessHours) GetHoursForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return b.Sunday
	case time.Monday:
		return b.Monday
	case time.Tuesday:
		return b.Tuesday
	case time.Wednesday:
		return b.Wednesday
	case time.Thursday:
		return b.Thursday
	case time.Friday:
		return b.Friday
	case time.Saturday:
		return b.Saturday
	default:
		return nil
	}
}

// HasAnyHours returns true if at least one day has business hours configured.
func (b *BusinessHours) HasAnyHours() bool {
	return b.Sunday != nil || b.Monday != nil || b.Tuesday != nil ||
		b.Wednesday != nil || b.Thursday != nil || b.Friday != nil || b.Saturday != nil
}

// Location resolves the configured timezone, falling back to UTC.
func (h *Hours) Location() *time.Location {
	loc, err := time.LoadLocation(h.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsOpenAt checks if the clinic is open at the given time. The window is
// half-open: open <= t < close in the clinic's local time.
// If no business hours are configured, the clinic is treated as always open
// (e.g., "by appointment only" clinics with no set hours).
func (h *Hours) IsOpenAt(t time.Time) bool {
	localTime := t.In(h.Location())

	hours := h.BusinessHours.GetHoursForDay(localTime.Weekday())
	if hours == nil {
		return !h.BusinessHours.HasAnyHours()
	}

	openMinutes, err := minutesOfDay(hours.Open)
	if err != nil {
		return false
	}
	closeMinutes, err := minutesOfDay(hours.Close)
	if err != nil {
		return false
	}

	currentMinutes := localTime.Hour()*60 + localTime.Minute()
	return currentMinutes >= openMinutes && currentMinutes < closeMinutes
}

// LocalDate returns the calendar date of t in the clinic's timezone.
func (h *Hours) LocalDate(t time.Time) time.Time {
	local := t.In(h.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// Validate checks the timezone and every configured day.
func (h *Hours) Validate() error {
	if _, err := time.LoadLocation(h.Timezone); err != nil || h.Timezone == "" {
		return fmt.Errorf("invalid timezone %q", h.Timezone)
	}
	for _, wd := range []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday} {
		day := h.BusinessHours.GetHoursForDay(wd)
		if day == nil {
			continue
		}
		open, err := minutesOfDay(day.Open)
		if err != nil {
			return fmt.Errorf("%s: invalid open time %q", wd, day.Open)
		}
		closing, err := minutesOfDay(day.Close)
		if err != nil {
			return fmt.Errorf("%s: invalid close time %q", wd, day.Close)
		}
		if closing <= open {
			return fmt.Errorf("%s: close %s must be after open %s", wd, day.Close, day.Open)
		}
	}
	return nil
}

func minutesOfDay(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
