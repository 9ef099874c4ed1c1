package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

// FormatISODuration renders d as an ISO 8601 duration, with a leading minus for negative values.
func FormatISODuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}
	if d < 0 {
		return "-" + duration.Format(-d)
	}
	return duration.Format(d)
}

// ParseISODuration parses an ISO 8601 duration, accepting a leading sign.
func ParseISODuration(s string) (time.Duration, error) {
	neg := false
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	d, err := duration.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	v := d.ToTimeDuration()
	if neg {
		v = -v
	}
	return v, nil
}

// ParseHorizon parses a horizon such as "PT6H" or "R/PT6H".
// The "R/" prefix marks a rolling horizon.
func ParseHorizon(s string) (time.Duration, bool, error) {
	rolling := false
	if rest, ok := strings.CutPrefix(s, "R/"); ok {
		rolling = true
		s = rest
	}
	d, err := ParseISODuration(s)
	if err != nil {
		return 0, false, err
	}
	return d, rolling, nil
}
