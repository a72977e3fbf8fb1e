package classify

import "strings"

const ellipsis = "..."

// Truncate trims s, flattens newlines to spaces and, if the result is longer
// than limit runes, cuts it to limit and appends an ellipsis.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimRight(string(runes[:limit]), " \t\r") + ellipsis
}
