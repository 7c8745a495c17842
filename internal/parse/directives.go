package parse

import (
	"context"
	"regexp"
	"strings"

	"github.com/specialistvlad/gomake/internal/caps"
	"github.com/specialistvlad/gomake/internal/ctxlog"
	"github.com/specialistvlad/gomake/internal/vars"
)

func isConditionalToken(tok string) bool {
	switch tok {
	case "ifeq", "ifneq", "ifdef", "ifndef", "else", "endif":
		return true
	}
	return false
}

// directiveConditional maintains the conditional stack. Structure is
// tracked even in dead regions; conditions themselves are only evaluated
// when the enclosing region is live.
func (p *Parser) directiveConditional(ctx context.Context, line string) error {
	tok := firstToken(line)
	rest := strings.TrimSpace(line[len(tok):])

	switch tok {
	case "ifeq", "ifneq", "ifdef", "ifndef":
		parentLive := p.live()
		val := false
		if parentLive {
			v, err := p.evalCond(ctx, tok, rest)
			if err != nil {
				return err
			}
			val = v
		}
		p.conds = append(p.conds, condFrame{parentLive: parentLive, live: val, taken: val})
		return nil

	case "else":
		if len(p.conds) == 0 {
			return p.errf("else without matching conditional")
		}
		top := &p.conds[len(p.conds)-1]
		if top.seenElse {
			return p.errf("else after else")
		}
		if rest == "" {
			top.seenElse = true
			top.live = top.parentLive && !top.taken
			top.taken = top.taken || top.live
			return nil
		}
		// else ifX ...: re-parse the continuation as a fresh condition.
		tok2 := firstToken(rest)
		switch tok2 {
		case "ifeq", "ifneq", "ifdef", "ifndef":
		default:
			return p.errf("expected conditional after else, got %q", rest)
		}
		if !top.parentLive || top.taken {
			top.live = false
			return nil
		}
		val, err := p.evalCond(ctx, tok2, strings.TrimSpace(rest[len(tok2):]))
		if err != nil {
			return err
		}
		top.live = val
		top.taken = val
		return nil

	case "endif":
		if len(p.conds) == 0 {
			return p.errf("endif without matching conditional")
		}
		if rest != "" {
			return p.errf("extra text after endif: %q", rest)
		}
		p.conds = p.conds[:len(p.conds)-1]
		return nil
	}
	return p.errf("not a conditional: %q", line)
}

var quotedPair = regexp.MustCompile(`^(["'])(.*?)(["'])\s+(["'])(.*?)(["'])$`)

// evalCond evaluates one ifeq/ifneq/ifdef/ifndef condition.
func (p *Parser) evalCond(ctx context.Context, tok, rest string) (bool, error) {
	switch tok {
	case "ifdef", "ifndef":
		name, err := p.x.Expand(ctx, rest)
		if err != nil {
			return false, &Error{File: p.file, Line: p.line, Err: err}
		}
		v, ok := p.x.Lookup(strings.TrimSpace(name))
		defined := ok && v.Text() != ""
		if tok == "ifndef" {
			return !defined, nil
		}
		return defined, nil
	}

	lhs, rhs, ok := splitCondArgs(rest)
	if !ok {
		return false, p.errf("malformed %s condition: %q", tok, rest)
	}
	a, err := p.x.Expand(ctx, lhs)
	if err != nil {
		return false, &Error{File: p.file, Line: p.line, Err: err}
	}
	b, err := p.x.Expand(ctx, rhs)
	if err != nil {
		return false, &Error{File: p.file, Line: p.line, Err: err}
	}
	if tok == "ifneq" {
		return a != b, nil
	}
	return a == b, nil
}

// splitCondArgs handles both `(a,b)` and quoted `"a" "b"` comparison forms.
func splitCondArgs(s string) (lhs, rhs string, ok bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		inner := s[1 : len(s)-1]
		c := indexTopLevel(inner, ',')
		if c < 0 {
			return "", "", false
		}
		return strings.TrimSpace(inner[:c]), strings.TrimSpace(inner[c+1:]), true
	}
	if m := quotedPair.FindStringSubmatch(s); m != nil && m[1] == m[3] && m[4] == m[6] {
		return m[2], m[5], true
	}
	return "", "", false
}

// directiveInclude expands the file list and hands it to the include
// loader. Mandatory include failures are fatal; -include/sinclude failures
// are deferred for the runner to treat as goals.
func (p *Parser) directiveInclude(ctx context.Context, tok, rest string) error {
	text, err := p.x.Expand(ctx, rest)
	if err != nil {
		return &Error{File: p.file, Line: p.line, Err: err}
	}
	files := strings.Fields(text)
	if len(files) == 0 {
		return nil
	}
	optional := tok != "include"

	if p.LoadInclude == nil {
		if optional {
			p.DeferredIncludes = append(p.DeferredIncludes, files...)
			return nil
		}
		return p.errf("include %s: no include loader wired", strings.Join(files, " "))
	}

	failed, err := p.LoadInclude(ctx, files)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		if !optional {
			return p.errf("cannot read include file(s): %s", strings.Join(failed, " "))
		}
		ctxlog.FromContext(ctx).Debug("Deferring failed optional includes.", "files", failed)
		p.DeferredIncludes = append(p.DeferredIncludes, failed...)
	}
	return nil
}

// directiveExport handles export/unexport with a name list or bare.
func (p *Parser) directiveExport(ctx context.Context, flags qualFlags, rest string) error {
	text, err := p.x.Expand(ctx, rest)
	if err != nil {
		return &Error{File: p.file, Line: p.line, Err: err}
	}
	names := strings.Fields(text)
	if len(names) == 0 {
		p.store.ExportAll = flags.export
		return nil
	}
	for _, name := range names {
		v, ok := p.store.Lookup(name)
		if !ok {
			if flags.unexport {
				continue
			}
			v = &vars.Value{Recurse: true, Origin: vars.OriginFile}
			p.store.Install(name, v)
		}
		v.Export = flags.export
	}
	return nil
}

// directiveUndefine deletes each named variable.
func (p *Parser) directiveUndefine(ctx context.Context, rest string) error {
	text, err := p.x.Expand(ctx, rest)
	if err != nil {
		return &Error{File: p.file, Line: p.line, Err: err}
	}
	for _, name := range strings.Fields(text) {
		p.store.Delete(name)
	}
	return nil
}

// directiveVpath implements the three vpath forms: clear all, delete one
// pattern, install pattern with search directories.
func (p *Parser) directiveVpath(ctx context.Context, rest string) error {
	text, err := p.x.Expand(ctx, rest)
	if err != nil {
		return &Error{File: p.file, Line: p.line, Err: err}
	}
	words := strings.Fields(text)
	switch len(words) {
	case 0:
		p.VPaths = nil
	case 1:
		kept := p.VPaths[:0]
		for _, e := range p.VPaths {
			if e.Pattern != words[0] {
				kept = append(kept, e)
			}
		}
		p.VPaths = kept
	default:
		var dirs []string
		for _, w := range words[1:] {
			for _, d := range strings.Split(w, ":") {
				if d != "" {
					dirs = append(dirs, d)
				}
			}
		}
		p.VPaths = append(p.VPaths, caps.VPathEntry{Pattern: words[0], Dirs: dirs})
	}
	return nil
}
