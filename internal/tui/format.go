package tui

import (
	"fmt"
	"time"
)

// FormatConfidence formats a confidence score. Scores up to 1 are treated
// as ratios, larger ones as percentages.
func FormatConfidence(c float64) string {
	if c <= 1 {
		c *= 100
	}
	return fmt.Sprintf("%.0f%%", c)
}

// FormatProcessingTime formats a duration in milliseconds as "X.Xs" or
// "Xms".
func FormatProcessingTime(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

// FormatTimestamp renders an RFC 3339 timestamp as a short local date. Values
// that do not parse are returned unchanged.
func FormatTimestamp(ts string) string {
	if ts == "" {
		return "-"
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Local().Format("Jan 2, 2006 15:04")
		}
	}
	return ts
}

// FormatMentions pluralizes a mention count.
func FormatMentions(n int) string {
	if n == 1 {
		return "1 mention"
	}
	return fmt.Sprintf("%d mentions", n)
}
