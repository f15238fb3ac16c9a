package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TimestampLayout is the zone-less wire format for entry times.
const TimestampLayout = "2006-01-02T15:04:05"

var zoneSuffix = regexp.MustCompile(`[+-]\d{2}:?\d{2}$`)

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp reads a wall-clock timestamp. Any zone suffix is dropped
// rather than converted, so every stored time shares one implicit zone.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "Z")
	if i := strings.IndexAny(s, "T "); i > 0 {
		s = s[:i] + s[i:i+1] + zoneSuffix.ReplaceAllString(s[i+1:], "")
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
