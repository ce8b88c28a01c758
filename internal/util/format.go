package util

import (
	"math"

	"github.com/dustin/go-humanize"
)

// FormatSize returns a human-readable size string in binary units.
func FormatSize(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// FormatCount returns n with thousands separators.
func FormatCount(n uint64) string {
	if n > math.MaxInt64 {
		n = math.MaxInt64
	}
	return humanize.Comma(int64(n))
}

// Percent returns the percentage of part relative to total.
func Percent(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
