package render

import (
	"strings"

	"golang.org/x/image/math/fixed"
)

// wrapLines splits text into lines no wider than maxWidth, greedily.
//
// Each word is appended together with a trailing space and the candidate is
// measured. A candidate wider than maxWidth flushes the current line and the
// word starts the next one. A candidate exactly maxWidth wide still fits.
// The returned lines do not carry the trailing space.
func wrapLines(text string, maxWidth fixed.Int26_6, measure func(string) fixed.Int26_6) []string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		candidate := line + word + " "
		if line != "" && measure(candidate) > maxWidth {
			lines = append(lines, strings.TrimSuffix(line, " "))
			line = word + " "
			continue
		}
		line = candidate
	}
	if line != "" {
		lines = append(lines, strings.TrimSuffix(line, " "))
	}
	return lines
}
