package arrivals

import (
	"math"
	"strconv"
	"time"
)

// ParseISO8601 parses the timestamp shapes seen in SIRI feeds:
//
//	2026-01-16T23:25:00
//	2026-01-16T23:25:00.417-05:00
//	2026-01-17T04:25:00Z
//
// Fractional seconds are discarded. The offset may be Z, ±HH:MM, ±HHMM or ±HH;
// no offset means UTC. The result is in UTC. Anything malformed yields the zero
// time.
func ParseISO8601(s string) time.Time {
	const core = len("2006-01-02T15:04:05")
	if len(s) < core {
		return time.Time{}
	}

	base, err := time.ParseInLocation("2006-01-02T15:04:05", s[:core], time.UTC)
	if err != nil {
		return time.Time{}
	}

	rest := s[core:]
	if len(rest) > 0 && rest[0] == '.' {
		i := 1
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == 1 {
			return time.Time{}
		}
		rest = rest[i:]
	}

	offset, ok := parseOffset(rest)
	if !ok {
		return time.Time{}
	}
	return base.Add(-offset).UTC()
}

func parseOffset(s string) (time.Duration, bool) {
	switch {
	case s == "" || s == "Z" || s == "z":
		return 0, true
	case s[0] != '+' && s[0] != '-':
		return 0, false
	}

	sign := time.Duration(1)
	if s[0] == '-' {
		sign = -1
	}
	digits := s[1:]

	var hh, mm string
	switch len(digits) {
	case 2:
		hh = digits
	case 4:
		hh, mm = digits[:2], digits[2:]
	case 5:
		if digits[2] != ':' {
			return 0, false
		}
		hh, mm = digits[:2], digits[3:]
	default:
		return 0, false
	}

	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m := 0
	if mm != "" {
		m, err = strconv.Atoi(mm)
		if err != nil || m < 0 || m > 59 {
			return 0, false
		}
	}
	return sign * (time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), true
}

// MinutesUntil returns whole minutes from now until t, rounded half to even and
// floored at 0. A zero t yields Unknown.
func MinutesUntil(t, now time.Time) int {
	if t.IsZero() {
		return Unknown
	}
	mins := int(math.RoundToEven(t.Sub(now).Seconds() / 60))
	if mins < 0 {
		return 0
	}
	return mins
}
