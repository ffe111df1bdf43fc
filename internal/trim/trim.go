// Package trim bounds outbound output payloads to a rectangle so a
// submission printing gigabytes cannot blow up result messages.
package trim

import "strings"

const (
	MaxOutputHeight = 40
	MaxOutputWidth  = 160
)

// ToRect truncates s to at most maxHeight lines of maxWidth characters,
// marking every cut with "[...]".
func ToRect(s string, maxHeight int, maxWidth int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
		lines = append(lines, "[...]")
	}
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		// cut on rune boundaries so multi-byte output is never split
		if runes := []rune(line); len(runes) > maxWidth {
			b.WriteString(string(runes[:maxWidth]))
			b.WriteString("[...]")
		} else {
			b.WriteString(line)
		}
	}
	return b.String()
}

// Output applies the default result-message bounds.
func Output(s string) string {
	return ToRect(s, MaxOutputHeight, MaxOutputWidth)
}
