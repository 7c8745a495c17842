package parse

import "strings"

// joinContinuations assembles a logical line from lines[i] onward.
// Backslash-newline (with following indentation) collapses to one space,
// matching non-recipe continuation semantics.
func joinContinuations(lines []string, i int) (string, int) {
	line := lines[i]
	consumed := 1
	for endsWithOddBackslashes(line) && i+consumed < len(lines) {
		line = strings.TrimRight(line[:len(line)-1], " \t")
		next := strings.TrimLeft(lines[i+consumed], " \t")
		line = line + " " + next
		consumed++
	}
	return line, consumed
}

// endsWithOddBackslashes reports whether the line ends in an unescaped
// continuation backslash.
func endsWithOddBackslashes(s string) bool {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

// stripComment removes a # comment unless the # is escaped by an odd run
// of backslashes; escaped hashes are unescaped in the result.
func stripComment(s string) string {
	var out strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '\\' {
			// Count the backslash run; a trailing odd run escapes a #.
			j := i
			for j < len(s) && s[j] == '\\' {
				j++
			}
			run := j - i
			if j < len(s) && s[j] == '#' {
				out.WriteString(strings.Repeat(`\`, run/2))
				if run%2 == 1 {
					out.WriteByte('#')
					i = j + 1
					continue
				}
				i = j
				continue
			}
			out.WriteString(s[i:j])
			i = j
			continue
		}
		if c == '#' {
			break
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}

// indexTopLevel finds the first unescaped occurrence of ch outside any
// $(...)/${...} group, or -1.
func indexTopLevel(s string, ch byte) int {
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i += 2
		case c == '$' && i+1 < len(s) && (s[i+1] == '(' || s[i+1] == '{'):
			n := skipGroup(s, i+1)
			if n < 0 {
				return -1
			}
			i = n
		case c == ch:
			return i
		default:
			i++
		}
	}
	return -1
}

// skipGroup advances past a balanced $(...)/${...} group whose opening
// bracket is at open, returning the index after the closer (-1 when
// unterminated).
func skipGroup(s string, open int) int {
	closer := byte(')')
	if s[open] == '{' {
		closer = '}'
	}
	depth := 1
	i := open + 1
	for i < len(s) {
		switch c := s[i]; {
		case c == '$' && i+1 < len(s) && (s[i+1] == '(' || s[i+1] == '{'):
			n := skipGroup(s, i+1)
			if n < 0 {
				return -1
			}
			i = n
		case c == s[open]:
			depth++
			i++
		case c == closer:
			depth--
			i++
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return -1
}
