package inline

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// Rewriter implements storage.InlineRewriter by locating and splicing a
// guest test file's inline= literal in place, per spec.md §4.6.
type Rewriter struct{}

// New returns a ready-to-use Rewriter.
func New() *Rewriter {
	return &Rewriter{}
}

// Rewrite finds the assert_*_snapshot(...) call nearest hintLine (walking
// forward past false matches whose enclosing function doesn't match
// functionName) and replaces its inline= argument with newLiteral, writing
// the file back in place.
func (r *Rewriter) Rewrite(sourcePath string, hintLine int, functionName string, newLiteral string) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("inline: stat %s: %w", sourcePath, err)
	}

	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("inline: reading %s: %w", sourcePath, err)
	}

	callStart, openParen, closeParen, err := locateCall(src, lineOffset(src, hintLine), functionName)
	if err != nil {
		return fmt.Errorf("inline: %s: %w", sourcePath, err)
	}

	valueAt, ok := findKeywordArg(src, openParen, closeParen, "inline")
	if !ok {
		return fmt.Errorf("inline: %s: call at offset %d has no inline= argument", sourcePath, callStart)
	}

	lit, err := parseLiteral(src, valueAt)
	if err != nil {
		return fmt.Errorf("inline: %s: %w", sourcePath, err)
	}

	column := columnOf(src, callStart)
	replacement := generateLiteral(newLiteral, column)

	var out bytes.Buffer
	out.Write(src[:lit.start])
	out.WriteString(replacement)
	out.Write(src[lit.end:])

	if err := os.WriteFile(sourcePath, out.Bytes(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("inline: writing %s: %w", sourcePath, err)
	}

	return nil
}

// locateCall implements spec.md §4.6 steps 1-4: starting at from, find the
// next recognized call; if functionName is set and the enclosing def
// doesn't match, skip past this call's close paren and try again.
func locateCall(src []byte, from int, functionName string) (callStart, openParen, closeParen int, err error) {
	pos := from

	for {
		callStart, openParen, found := findNextCall(src, pos)
		if !found {
			return 0, 0, 0, fmt.Errorf("no assert_snapshot/assert_json_snapshot/assert_cmd_snapshot call found from offset %d", from)
		}

		closeParen, ok := findMatchingClose(src, openParen)
		if !ok {
			return 0, 0, 0, fmt.Errorf("unbalanced parentheses in call at offset %d", callStart)
		}

		if functionName == "" {
			return callStart, openParen, closeParen, nil
		}

		if enclosing, ok := enclosingFunctionName(src, callStart); ok && enclosing == functionName {
			return callStart, openParen, closeParen, nil
		}

		pos = closeParen + 1
	}
}

// enclosingFunctionName walks backward from offset to the nearest
// "def <name>(" / "async def <name>(" line, per spec.md §4.6 step 4.
func enclosingFunctionName(src []byte, offset int) (string, bool) {
	text := string(src[:offset])
	lines := strings.Split(text, "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimLeft(lines[i], " \t")

		rest, ok := strings.CutPrefix(trimmed, "async def ")
		if !ok {
			rest, ok = strings.CutPrefix(trimmed, "def ")
		}

		if !ok {
			continue
		}

		name, _, ok := strings.Cut(rest, "(")
		if !ok {
			continue
		}

		return strings.TrimSpace(name), true
	}

	return "", false
}

// findKeywordArg scans [open, close) for a "<key>=" argument appearing
// directly at this call's own argument depth (not nested inside a further
// bracket), returning the byte offset of the value that follows the "=".
func findKeywordArg(src []byte, open, close int, key string) (int, bool) {
	depth := 0
	needle := key + "="

	for i := open; i < close; i++ {
		c := src[i]

		switch {
		case c == '#':
			for i < close && src[i] != '\n' {
				i++
			}
		case c == '\'' || c == '"':
			end, ok := skipStringLiteral(src, i)
			if !ok {
				return 0, false
			}

			i = end - 1
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		default:
			if depth == 1 && strings.HasPrefix(string(src[i:close]), needle) {
				return i + len(needle), true
			}
		}
	}

	return 0, false
}

// lineOffset returns the byte offset of the start of the given 1-based line
// number. A stale hint_line past EOF falls back to offset 0, so the call
// search still scans the whole file rather than finding nothing.
func lineOffset(src []byte, hintLine int) int {
	if hintLine <= 1 {
		return 0
	}

	line := 1

	for i, c := range src {
		if line == hintLine {
			return i
		}

		if c == '\n' {
			line++
		}
	}

	return 0
}

// columnOf returns the 0-based column of offset within its line.
func columnOf(src []byte, offset int) int {
	lineStart := bytes.LastIndexByte(src[:offset], '\n') + 1

	return offset - lineStart
}
