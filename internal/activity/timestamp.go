package activity

import "time"

// timeLayout matches JavaScript's Date.toISOString: UTC with fixed-width
// milliseconds, so lexical order equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in the log timestamp format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime parses a log timestamp. Any RFC 3339 value is accepted.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
