package comms

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
)

// ParseOffset accepts Go durations ("24h", "90m", "1h30m") plus whole days ("2d").
// A negative offset schedules a follow-up after the appointment.
func ParseOffset(raw string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, apperr.Validation("empty offset")
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, apperr.Validation("invalid offset %q", raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, apperr.Validation("invalid offset %q", raw)
	}
	return d, nil
}

// ParseOffsets parses and deduplicates a list of offsets, largest first.
func ParseOffsets(raw []string) ([]time.Duration, error) {
	seen := make(map[time.Duration]bool, len(raw))
	out := make([]time.Duration, 0, len(raw))
	for _, r := range raw {
		d, err := ParseOffset(r)
		if err != nil {
			return nil, err
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out, nil
}

// DefaultMessage is used when a schedule request carries no message text.
func DefaultMessage(appointmentTime time.Time, offset time.Duration) string {
	when := appointmentTime.UTC().Format("Mon Jan 2 at 3:04 PM MST")
	if offset <= 0 {
		return fmt.Sprintf("Thanks for visiting us on %s. Reply if you have any questions about your care.", when)
	}
	return fmt.Sprintf("Reminder: your appointment is on %s (in %s). Reply C to confirm.", when, humanOffset(offset))
}

func humanOffset(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return plural(int(d/(24*time.Hour)), "day")
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d.Round(time.Minute)/time.Minute), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
