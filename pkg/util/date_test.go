package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeOffsetIsUTC(t *testing.T) {
	got, ok := ParseTime("2015-01-01T00:00:00+01:00")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Location() != time.UTC || got.Hour() != 23 {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestHasTimezone(t *testing.T) {
	if !HasTimezone("2015-01-01T00:00:00Z") || HasTimezone("2015-01-01T00:00:00") {
		t.Fatalf("timezone detection wrong")
	}
}

func TestParseHorizon(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		rolling bool
	}{
		{"PT6H", 6 * time.Hour, false},
		{"R/PT6H", 6 * time.Hour, true},
		{"-PT15M", -15 * time.Minute, false},
		{"P1D", 24 * time.Hour, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			d, rolling, err := ParseHorizon(tc.in)
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if d != tc.want || rolling != tc.rolling {
				t.Fatalf("got %v %v", d, rolling)
			}
		})
	}
	if _, _, err := ParseHorizon("6 hours"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFormatISODuration(t *testing.T) {
	if got := FormatISODuration(0); got != "PT0S" {
		t.Fatalf("got %s", got)
	}
	d, err := ParseISODuration(FormatISODuration(-15 * time.Minute))
	if err != nil || d != -15*time.Minute {
		t.Fatalf("round trip failed: %v %v", d, err)
	}
}
