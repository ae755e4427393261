package replicatypes

import (
	"fmt"
	"strings"
	"time"
)

// progressBarWidth is the cell count of the rendered block bar.
const progressBarWidth = 10

// FormatBytes renders a byte count in IEC units with two decimals.
//
// Example:
//
//	replicatypes.FormatBytes(157286400) // "150.00 MiB"
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatETA renders an estimated remaining time as mm:ss (h:mm:ss over an
// hour). Negative durations mean the estimate is not yet known.
func FormatETA(d time.Duration) string {
	if d < 0 {
		return "--:--"
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// String renders the snapshot in a compact human-readable form:
//
//	[█████░░░░░] 52.4% 104.80 MiB / 200.00 MiB 12.50 MiB/s ETA 00:08
//
// Rendering is plain string formatting; how and where it is displayed is
// up to the caller.
func (s ProgressSnapshot) String() string {
	filled := 0
	if s.TotalBytes > 0 {
		filled = int(s.Percent / 100 * progressBarWidth)
		if filled > progressBarWidth {
			filled = progressBarWidth
		}
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)
	return fmt.Sprintf("[%s] %.1f%% %s / %s %s/s ETA %s",
		bar, s.Percent,
		FormatBytes(s.BytesTransferred), FormatBytes(s.TotalBytes),
		FormatBytes(int64(s.Speed)), FormatETA(s.ETA))
}
