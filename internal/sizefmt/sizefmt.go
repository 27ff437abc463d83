// Package sizefmt renders byte counts the way the CLI prints them, in the
// images table. There is exactly one formatting rule so output stays
// stable across the codebase: no space between the number and the unit.
package sizefmt

import "fmt"

const unit = 1024

// FormatSize renders n bytes as a human string with one decimal place and
// no space before the unit, e.g. "1.5MB". Values under 1024 bytes still
// carry the one decimal place, e.g. "512.0B", matching format_size's
// behavior of never dropping precision below the first unit boundary.
func FormatSize(n int64) string {
	if n < unit {
		return fmt.Sprintf("%.1fB", float64(n))
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	units := "KMGTPE"
	return fmt.Sprintf("%.1f%cB", float64(n)/float64(div), units[exp])
}
