package util

import (
	"fmt"
	"time"
)

// FormatDuration renders d as m:ss, or h:mm:ss for an hour and longer.
// Zero and negative durations render as "Unknown".
//
// Example:
//
//	FormatDuration(215 * time.Second)  // "3:35"
//	FormatDuration(3725 * time.Second) // "1:02:05"
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "Unknown"
	}

	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
