// Package inline implements spec.md §4.6's inline-snapshot rewriter: given a
// source file, a possibly-stale hint line, and (optionally) the enclosing
// function's name, it locates the exact assert_*_snapshot(...) call whose
// inline= literal must be replaced, and splices in the new value.
package inline

import "strings"

// callOpeners are the guest-facing call names spec.md §4.6 step 2 recognizes.
var callOpeners = []string{"assert_snapshot(", "assert_json_snapshot(", "assert_cmd_snapshot("}

// findNextCall returns the byte offset of the next recognized call opener at
// or after from, and the offset of its opening parenthesis. Whichever
// opener's name appears first wins, per spec.md §4.6 step 2.
func findNextCall(src []byte, from int) (callStart, openParen int, found bool) {
	best := -1
	bestOpen := -1

	for _, opener := range callOpeners {
		idx := indexFrom(src, opener, from)
		if idx < 0 {
			continue
		}

		if best == -1 || idx < best {
			best = idx
			bestOpen = idx + len(opener) - 1
		}
	}

	if best == -1 {
		return 0, 0, false
	}

	return best, bestOpen, true
}

// indexFrom is strings.Index restricted to src[from:], offset back to src's
// own coordinates, skipping occurrences that land inside a string literal or
// a line comment (so a call name mentioned in a comment or docstring is not
// mistaken for an actual call).
func indexFrom(src []byte, needle string, from int) int {
	text := string(src)

	pos := from

	for pos <= len(text)-len(needle) {
		next := strings.Index(text[pos:], needle)
		if next < 0 {
			return -1
		}

		idx := pos + next

		if inLiteralOrComment(src, idx) {
			pos = idx + 1

			continue
		}

		return idx
	}

	return -1
}

// inLiteralOrComment reports whether byte offset idx falls inside a string
// literal or a "#" line comment, by scanning from the start of the file.
// Source files are small enough (single test modules) that a linear rescan
// per candidate is acceptable; the rewriter runs once per accepted snapshot,
// not in a hot loop.
func inLiteralOrComment(src []byte, idx int) bool {
	i := 0

	for i < idx {
		c := src[i]

		switch {
		case c == '#':
			commentStart := i
			for i < len(src) && src[i] != '\n' {
				i++
			}

			if idx >= commentStart && idx < i {
				return true
			}
		case c == '\'' || c == '"':
			end, ok := skipStringLiteral(src, i)
			if !ok {
				return false
			}

			if end > idx {
				return true
			}

			i = end
		default:
			i++
		}
	}

	return false
}

// skipStringLiteral, given src[start] is a quote character, returns the
// offset just past the closing quote (handling triple-quotes, backslash
// escapes, and both quote kinds), and whether the literal was well-formed.
func skipStringLiteral(src []byte, start int) (int, bool) {
	quote := src[start]
	triple := start+2 < len(src) && src[start+1] == quote && src[start+2] == quote

	delim := string(quote)
	if triple {
		delim = strings.Repeat(string(quote), 3)
	}

	i := start + len(delim)

	for i < len(src) {
		if src[i] == '\\' && i+1 < len(src) {
			i += 2

			continue
		}

		if strings.HasPrefix(string(src[i:]), delim) {
			return i + len(delim), true
		}

		i++
	}

	return len(src), false
}

// findMatchingClose, given src[openParen] == '(', returns the offset of its
// matching ')', tracking nesting depth and skipping over string literals and
// "#" line comments so that unbalanced parens inside either don't confuse
// the count, per spec.md §4.6 step 3.
func findMatchingClose(src []byte, openParen int) (int, bool) {
	depth := 0

	for i := openParen; i < len(src); i++ {
		c := src[i]

		switch {
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '\'' || c == '"':
			end, ok := skipStringLiteral(src, i)
			if !ok {
				return 0, false
			}

			i = end - 1
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}

	return 0, false
}
