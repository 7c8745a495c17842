package expand

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/gomake/internal/ctxlog"
)

// maxDepth bounds recursive re-expansion. A reference chain deeper than
// this is assumed to be a cycle; the offending input is returned unchanged
// after a warning.
const maxDepth = 50

// Expand evaluates every $-reference in input and returns the result.
func (x *Expander) Expand(ctx context.Context, input string) (string, error) {
	return x.expand(ctx, input, 0)
}

func (x *Expander) expand(ctx context.Context, input string, depth int) (string, error) {
	if depth > maxDepth {
		ctxlog.FromContext(ctx).Warn("Variable expansion exceeded recursion limit, returning input unchanged.", "input", input)
		return input, nil
	}

	var out strings.Builder
	i := 0
	for i < len(input) {
		c := input[i]
		if c != '$' {
			out.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(input) {
			out.WriteByte('$')
			break
		}
		switch next := input[i+1]; next {
		case '$':
			out.WriteByte('$')
			i += 2
		case '(', '{':
			body, end, err := scanBody(input, i+1)
			if err != nil {
				return "", err
			}
			val, err := x.evalBody(ctx, body, depth)
			if err != nil {
				return "", err
			}
			out.WriteString(val)
			i = end
		default:
			// $x references the single-letter variable x.
			val, err := x.refVar(ctx, string(next), depth)
			if err != nil {
				return "", err
			}
			out.WriteString(val)
			i += 2
		}
	}
	return out.String(), nil
}

// scanBody reads a balanced $(...) or ${...} body. open indexes the opening
// bracket; the returned next indexes the first byte past the closer. Nested
// references of either bracket kind and backslash escapes are honored.
func scanBody(s string, open int) (body string, next int, err error) {
	closer := byte(')')
	if s[open] == '{' {
		closer = '}'
	}
	depth := 1
	start := open + 1
	i := start
	for i < len(s) {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			i += 2
		case c == '$' && i+1 < len(s) && (s[i+1] == '(' || s[i+1] == '{'):
			_, n, e := scanBody(s, i+1)
			if e != nil {
				return "", 0, e
			}
			i = n
		case c == s[open]:
			depth++
			i++
		case c == closer:
			depth--
			if depth == 0 {
				return s[start:i], i + 1, nil
			}
			i++
		default:
			i++
		}
	}
	return "", 0, fmt.Errorf("unterminated variable reference: $%s", s[open:])
}

// evalBody evaluates the inside of one $(...) body. Three forms are tried
// in order: substitution reference, function call, plain variable
// reference.
func (x *Expander) evalBody(ctx context.Context, body string, depth int) (string, error) {
	if name, pat, repl, ok := splitSubstRef(body); ok {
		return x.substRef(ctx, name, pat, repl, depth)
	}

	if sp := strings.IndexAny(body, " \t\n"); sp > 0 && x.lib != nil {
		if fn, ok := x.lib.Lookup(body[:sp]); ok {
			rawArgs := splitArgs(strings.TrimLeft(body[sp+1:], " \t"))
			args := rawArgs
			if !fn.Raw {
				args = make([]string, len(rawArgs))
				for i, a := range rawArgs {
					v, err := x.expand(ctx, a, depth)
					if err != nil {
						return "", err
					}
					args[i] = v
				}
			}
			return fn.Fn(ctx, x, args)
		}
	}

	name, err := x.expand(ctx, body, depth)
	if err != nil {
		return "", err
	}
	return x.refVar(ctx, name, depth)
}

// refVar resolves one variable read, re-expanding recursive-flavored
// values in the current view.
func (x *Expander) refVar(ctx context.Context, name string, depth int) (string, error) {
	v, ok := x.Lookup(name)
	if !ok {
		if x.warnUndef && x.OnWarnUndef != nil {
			x.OnWarnUndef(name)
		}
		return "", nil
	}
	if v.Recurse {
		return x.expand(ctx, v.Text(), depth+1)
	}
	return v.Text(), nil
}

// substRef applies $(name:pattern=replacement). A pattern without % is
// shorthand for suffix substitution.
func (x *Expander) substRef(ctx context.Context, name, pat, repl string, depth int) (string, error) {
	name, err := x.expand(ctx, name, depth)
	if err != nil {
		return "", err
	}
	if pat, err = x.expand(ctx, pat, depth); err != nil {
		return "", err
	}
	if repl, err = x.expand(ctx, repl, depth); err != nil {
		return "", err
	}
	val, err := x.refVar(ctx, name, depth)
	if err != nil {
		return "", err
	}
	if !strings.Contains(pat, "%") {
		pat, repl = "%"+pat, "%"+repl
	}
	return strings.Join(PatSubst(pat, repl, Words(val)), " "), nil
}

// splitSubstRef recognizes name:pattern=replacement with a top-level colon
// and a top-level equals after it. Whitespace before the colon disqualifies
// the form (that is a function call or a plain reference).
func splitSubstRef(body string) (name, pat, repl string, ok bool) {
	colon := -1
	i := 0
	for i < len(body) {
		c := body[i]
		if c == ' ' || c == '\t' || c == '\n' {
			return "", "", "", false
		}
		if c == '$' && i+1 < len(body) && (body[i+1] == '(' || body[i+1] == '{') {
			_, n, err := scanBody(body, i+1)
			if err != nil {
				return "", "", "", false
			}
			i = n
			continue
		}
		if c == ':' {
			colon = i
			break
		}
		i++
	}
	if colon <= 0 {
		return "", "", "", false
	}
	eq := -1
	i = colon + 1
	for i < len(body) {
		c := body[i]
		if c == '$' && i+1 < len(body) && (body[i+1] == '(' || body[i+1] == '{') {
			_, n, err := scanBody(body, i+1)
			if err != nil {
				return "", "", "", false
			}
			i = n
			continue
		}
		if c == '=' {
			eq = i
			break
		}
		i++
	}
	if eq < 0 {
		return "", "", "", false
	}
	return body[:colon], body[colon+1 : eq], body[eq+1:], true
}

// splitArgs splits function arguments on top-level commas, honoring
// $(...)/${...} balance.
func splitArgs(s string) []string {
	var args []string
	last := 0
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '$' && i+1 < len(s) && (s[i+1] == '(' || s[i+1] == '{') {
			_, n, err := scanBody(s, i+1)
			if err != nil {
				break
			}
			i = n
			continue
		}
		if c == ',' {
			args = append(args, s[last:i])
			last = i + 1
		}
		i++
	}
	args = append(args, s[last:])
	return args
}
