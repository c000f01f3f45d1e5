package clinic

import (
	"testing"
	"time"
)

// weekdayHours is a typical clinic: weekdays 09:00-18:00, Friday until 17:00,
// in New York time.
func weekdayHours(orgID string) *Hours {
	return &Hours{
		OrgID:    orgID,
		Timezone: "America/New_York",
		BusinessHours: BusinessHours{
			Monday:    &DayHours{Open: "09:00", Close: "18:00"},
			Tuesday:   &DayHours{Open: "09:00", Close: "18:00"},
			Wednesday: &DayHours{Open: "09:00", Close: "18:00"},
			Thursday:  &DayHours{Open: "09:00", Close: "18:00"},
			Friday:    &DayHours{Open: "09:00", Close: "17:00"},
		},
	}
}

func TestIsOpenAt(t *testing.T) {
	hours := weekdayHours("test-org")

	loc, _ := time.LoadLocation("America/New_York")

	// Monday 10 AM EST - should be open
	monday10am := time.Date(2025, 12, 8, 10, 0, 0, 0, loc)
	if !hours.IsOpenAt(monday10am) {
		t.Error("expected clinic to be open Monday 10 AM")
	}

	// Saturday 10 AM EST - should be closed
	saturday := time.Date(2025, 12, 13, 10, 0, 0, 0, loc)
	if hours.IsOpenAt(saturday) {
		t.Error("expected clinic to be closed Saturday")
	}

	// Monday 7 AM EST - before opening
	monday7am := time.Date(2025, 12, 8, 7, 0, 0, 0, loc)
	if hours.IsOpenAt(monday7am) {
		t.Error("expected clinic to be closed at 7 AM")
	}
}

func TestIsOpenAtCloseIsExclusive(t *testing.T) {
	hours := weekdayHours("test-org")
	loc, _ := time.LoadLocation("America/New_York")

	if hours.IsOpenAt(time.Date(2025, 12, 8, 18, 0, 0, 0, loc)) {
		t.Error("expected closing minute to be outside the window")
	}
	if !hours.IsOpenAt(time.Date(2025, 12, 8, 17, 59, 0, 0, loc)) {
		t.Error("expected 17:59 to be inside the window")
	}
	if !hours.IsOpenAt(time.Date(2025, 12, 8, 9, 0, 0, 0, loc)) {
		t.Error("expected opening minute to be inside the window")
	}
}

func TestIsOpenAtUsesClinicTimezone(t *testing.T) {
	hours := weekdayHours("test-org")

	// 14:30 UTC on a Monday in December is 09:30 in New York.
	if !hours.IsOpenAt(time.Date(2025, 12, 8, 14, 30, 0, 0, time.UTC)) {
		t.Error("expected 09:30 local to be open")
	}
	// 13:30 UTC is 08:30 in New York.
	if hours.IsOpenAt(time.Date(2025, 12, 8, 13, 30, 0, 0, time.UTC)) {
		t.Error("expected 08:30 local to be closed")
	}
}

func TestIsOpenAtNoHoursConfigured(t *testing.T) {
	hours := &Hours{OrgID: "appt-only", Timezone: "UTC"}
	if !hours.IsOpenAt(time.Date(2025, 12, 14, 3, 0, 0, 0, time.UTC)) {
		t.Error("clinic with no hours should be treated as always open")
	}
}

func TestDefaultHoursAlwaysOpenInUTC(t *testing.T) {
	hours := DefaultHours("new-org")
	if hours.Timezone != "UTC" || hours.BusinessHours.HasAnyHours() {
		t.Fatalf("unexpected defaults %+v", hours)
	}
	// Saturday afternoon and Sunday night are both inside the window.
	for _, ts := range []time.Time{
		time.Date(2026, 1, 31, 15, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 1, 23, 30, 0, 0, time.UTC),
	} {
		if !hours.IsOpenAt(ts) {
			t.Errorf("expected %s to be open for an unconfigured clinic", ts)
		}
	}
	got := hours.LocalDate(time.Date(2026, 2, 3, 3, 0, 0, 0, time.UTC))
	if want := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected UTC date %s, got %s", want, got)
	}
}

func TestIsOpenAtInvalidTimezoneFallsBackToUTC(t *testing.T) {
	hours := &Hours{
		Timezone:      "Mars/Olympus",
		BusinessHours: BusinessHours{Monday: &DayHours{Open: "09:00", Close: "10:00"}},
	}
	if !hours.IsOpenAt(time.Date(2025, 12, 8, 9, 30, 0, 0, time.UTC)) {
		t.Error("expected UTC fallback")
	}
}

func TestLocalDate(t *testing.T) {
	hours := weekdayHours("test-org")
	// 02:00 UTC on Dec 9 is still Dec 8 in New York.
	got := hours.LocalDate(time.Date(2025, 12, 9, 2, 0, 0, 0, time.UTC))
	want := time.Date(2025, 12, 8, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		hours   Hours
		wantErr bool
	}{
		{"defaults", *DefaultHours("x"), false},
		{"weekdays", *weekdayHours("x"), false},
		{"bad timezone", Hours{Timezone: "Nowhere/Land"}, true},
		{"empty timezone", Hours{}, true},
		{"bad open", Hours{Timezone: "UTC", BusinessHours: BusinessHours{Monday: &DayHours{Open: "9am", Close: "17:00"}}}, true},
		{"close before open", Hours{Timezone: "UTC", BusinessHours: BusinessHours{Sunday: &DayHours{Open: "17:00", Close: "09:00"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.hours.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err=%v wantErr=%v", err, tt.wantErr)
			}
		})
	}
}
