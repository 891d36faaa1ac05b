// Package pathnorm normalizes sub-document paths so structurally
// identical paths group together, adapted from the teacher's
// query.Normalize (which collapses SQL literals to placeholders) but
// repurposed for JSON-pointer-ish paths: array indices collapse to
// [*] instead of literals collapsing to ?.
package pathnorm

import "strings"

// Normalize collapses every bracketed array index in path to [*], so
// that "addresses[0].city" and "addresses[7].city" are treated as the
// same hot path by the detector and the analytics view.
func Normalize(path string) string {
	if path == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(path))

	i := 0
	for i < len(path) {
		ch := path[i]
		if ch == '[' {
			if j, ok := findIndexBracket(path, i); ok {
				b.WriteString("[*]")
				i = j
				continue
			}
		}
		b.WriteByte(ch)
		i++
	}
	return b.String()
}

// findIndexBracket reports whether path[pos:] opens a numeric array
// index ("[123]") and, if so, the position just past the closing ']'.
func findIndexBracket(path string, pos int) (int, bool) {
	j := pos + 1
	start := j
	for j < len(path) && isDigit(path[j]) {
		j++
	}
	if j == start || j >= len(path) || path[j] != ']' {
		return 0, false
	}
	return j + 1, true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
