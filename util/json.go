package util

import "strings"

// EscapePath makes s a single literal gjson/sjson path component, so that a field
// like "uk.chart.debut" is addressed as one key rather than three nested ones
func EscapePath(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '.', '*', '?', '\\', '|', '#', '@', '!', ':', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
