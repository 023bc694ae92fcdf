package monitor

import "fmt"

// FormatCount formats a counter compactly: 950, 1.2k, 3.4M.
func FormatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// FormatRate formats a per-poll delta as "X.X /min".
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.1f /min", rate)
}

// FormatConfidence formats a 0..1 confidence as a percentage.
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.0f%%", c*100)
}

// FormatDuration formats duration in seconds to "Xh Ym" or "Xm".
func FormatDuration(seconds int64) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
