package textutil

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatDuration renders seconds as MM:SS, or HH:MM:SS from one hour up.
// Unknown durations render as "?".
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "?"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatSize renders a byte count using binary units ("12 MiB").
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "?"
	}
	return humanize.IBytes(uint64(bytes))
}

// Plural returns singular when n is 1 and plural otherwise.
func Plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
