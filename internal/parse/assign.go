package parse

import (
	"context"
	"regexp"
	"strings"

	"github.com/specialistvlad/gomake/internal/vars"
)

// qualFlags are the assignment qualifiers that may prefix a line.
type qualFlags struct {
	override bool
	private  bool
	export   bool
	unexport bool
}

func (q qualFlags) any() bool {
	return q.override || q.private || q.export || q.unexport
}

// stripQualifiers peels leading override/private/export/unexport keywords.
// A keyword glued to punctuation (e.g. `export:`) is a target name, not a
// qualifier, because firstToken splits on whitespace only.
func stripQualifiers(line string) (qualFlags, string) {
	var q qualFlags
	rest := line
	for {
		switch firstToken(rest) {
		case "override":
			q.override = true
		case "private":
			q.private = true
		case "export":
			q.export = true
		case "unexport":
			q.unexport = true
		default:
			return q, rest
		}
		rest = strings.TrimLeft(rest[len(firstToken(rest)):], " \t")
		if rest == "" {
			return q, rest
		}
	}
}

// findAssignOp locates a top-level assignment operator. The name must be a
// single word free of colons, so rule headers fall through.
func findAssignOp(s string) (name, op, rhs string, ok bool) {
	e := indexTopLevel(s, '=')
	if e < 0 {
		return "", "", "", false
	}
	start := e
	if e > 0 {
		switch s[e-1] {
		case '?', '+', '!':
			start = e - 1
		case ':':
			start = e - 1
			for start > 0 && s[start-1] == ':' && e-start < 3 {
				start--
			}
		}
	}
	name = strings.TrimSpace(s[:start])
	op = s[start : e+1]
	rhs = strings.TrimLeft(s[e+1:], " \t")
	if name == "" || strings.ContainsAny(name, " \t:;#") {
		return "", "", "", false
	}
	if _, valid := vars.ParseOp(op); !valid {
		return "", "", "", false
	}
	return name, op, rhs, true
}

// applyAssign performs one assignment into store, wiring the expander and
// shell callbacks and honoring qualifier flags.
func (p *Parser) applyAssign(ctx context.Context, store *vars.Store, name, opTok, rhs string, flags qualFlags) error {
	op, _ := vars.ParseOp(opTok)
	origin := vars.OriginFile
	if flags.override {
		origin = vars.OriginOverride
	}
	opts := vars.AssignOpts{
		Expand:  func(s string) (string, error) { return p.x.Expand(ctx, s) },
		Private: flags.private,
		Export:  flags.export,
	}
	if p.ShellRun != nil {
		opts.ShellRun = func(cmd string) (string, error) { return p.ShellRun(ctx, cmd) }
	}
	if err := store.Assign(name, op, rhs, origin, opts); err != nil {
		return &Error{File: p.file, Line: p.line, Err: err}
	}
	if store == p.store && name == ".RECIPEPREFIX" {
		p.updatePrefix()
	}
	return nil
}

// updatePrefix rewrites the recipe-prefix matcher from .RECIPEPREFIX; an
// empty value restores the default (TAB or four spaces).
func (p *Parser) updatePrefix() {
	v, ok := p.store.Lookup(".RECIPEPREFIX")
	if !ok || v.Text() == "" {
		p.prefixRe = defaultPrefix
		return
	}
	p.prefixRe = regexp.MustCompile(`^` + regexp.QuoteMeta(v.Text()[:1]))
}

// parseDefine reads a define block. line starts with the define keyword;
// body lines run from lines[next] until the matching endef.
func (p *Parser) parseDefine(ctx context.Context, line string, flags qualFlags, lines []string, next int) (int, error) {
	header := strings.TrimSpace(line[len("define"):])
	opTok := "="
	for _, cand := range []string{":::=", "::=", ":=", "?=", "+=", "!="} {
		if strings.HasSuffix(header, cand) {
			opTok = cand
			header = strings.TrimSpace(header[:len(header)-len(cand)])
			break
		}
	}
	if opTok == "=" {
		header = strings.TrimSuffix(strings.TrimSpace(header), "=")
		header = strings.TrimSpace(header)
	}
	if header == "" || strings.ContainsAny(header, " \t") {
		return 0, p.errf("bad variable name in define: %q", line)
	}

	var body []string
	depth := 1
	n := 0
	for next+n < len(lines) {
		l := lines[next+n]
		t := strings.TrimSpace(stripComment(l))
		if firstToken(t) == "define" {
			depth++
		} else if t == "endef" {
			depth--
			if depth == 0 {
				n++
				return n, p.applyAssign(ctx, p.store, header, opTok, strings.Join(body, "\n"), flags)
			}
		}
		body = append(body, l)
		n++
	}
	return 0, p.errf("missing endef for define %s", header)
}

// skipDefine counts the lines of a define block inside a dead conditional
// branch, so its endef is not mistaken for structure.
func (p *Parser) skipDefine(lines []string, next int) int {
	depth := 1
	n := 0
	for next+n < len(lines) {
		t := strings.TrimSpace(stripComment(lines[next+n]))
		if firstToken(t) == "define" {
			depth++
		} else if t == "endef" {
			depth--
			if depth == 0 {
				return n + 1
			}
		}
		n++
	}
	return n
}
