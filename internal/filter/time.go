package filter

import (
	"strings"
	"time"
)

// timeLayouts covers the timestamp shapes of the built-in formats plus the
// common ISO variants.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05,000",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02-15.04.05.000000",
	"02/Jan/2006:15:04:05 -0700",
	"Mon Jan 02 15:04:05 2006",
	"Mon Jan 02 15:04:05.000000 2006",
	"2006-01-02",
}

// ParseTime parses value with the known timestamp layouts. Layouts without a
// zone are read as UTC.
func ParseTime(value string) (time.Time, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
