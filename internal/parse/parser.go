package parse

import (
	"context"
	"regexp"
	"strings"

	"github.com/specialistvlad/gomake/internal/caps"
	"github.com/specialistvlad/gomake/internal/ctxlog"
	"github.com/specialistvlad/gomake/internal/expand"
	"github.com/specialistvlad/gomake/internal/rules"
	"github.com/specialistvlad/gomake/internal/vars"
)

// defaultPrefix recognizes recipe lines: a TAB, or four spaces.
var defaultPrefix = regexp.MustCompile(`^(\t|    )`)

// Parser accumulates parse output across one or more makefiles. It is not
// safe for concurrent use; the engine parses before it runs.
type Parser struct {
	store *vars.Store
	x     *expand.Expander

	// Entries and Scopes are everything rule-shaped the parser saw, in
	// declaration order.
	Entries []*rules.Entry
	Scopes  []rules.Scope

	scopeByKey map[string]*vars.Store

	// VPaths holds vpath directive state in declaration order.
	VPaths []caps.VPathEntry

	// DeferredIncludes are -include/sinclude files that failed to load;
	// the runner later treats them as goals.
	DeferredIncludes []string

	// Suffixes is the .SUFFIXES set gating old-style suffix rules.
	Suffixes []string

	// LoadInclude resolves and parses include files, returning the ones
	// that failed. Wired by the app layer.
	LoadInclude func(ctx context.Context, files []string) ([]string, error)

	// ShellRun backs != assignments.
	ShellRun func(ctx context.Context, cmd string) (string, error)

	prefixRe *regexp.Regexp

	file string
	line int

	lastRule *rules.Entry
	conds    []condFrame
}

// condFrame is one level of ifeq/ifdef nesting.
type condFrame struct {
	parentLive bool // every enclosing branch is live
	taken      bool // some branch of this conditional already ran
	live       bool // the current branch is live
	seenElse   bool
}

// New creates a Parser writing into store and expanding with x.
func New(store *vars.Store, x *expand.Expander) *Parser {
	p := &Parser{store: store, x: x, prefixRe: defaultPrefix}
	// eval re-enters the parser with generated text.
	x.Eval = func(ctx context.Context, text string) error {
		return p.ParseString(ctx, text, "<eval>")
	}
	return p
}

// live reports whether lines at the current conditional depth execute.
func (p *Parser) live() bool {
	if len(p.conds) == 0 {
		return true
	}
	top := p.conds[len(p.conds)-1]
	return top.parentLive && top.live
}

// ParseString parses makefile text under the given name. State (variables,
// rules, conditional nesting of enclosing files) persists across calls.
func (p *Parser) ParseString(ctx context.Context, text, name string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing makefile text.", "name", name, "bytes", len(text))

	savedFile, savedLine := p.file, p.line
	savedDepth := len(p.conds)
	defer func() { p.file, p.line = savedFile, savedLine }()
	p.file = name

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	i := 0
	for i < len(lines) {
		p.line = i + 1
		consumed, err := p.parseLine(ctx, lines, i)
		if err != nil {
			return err
		}
		i += consumed
	}

	if len(p.conds) > savedDepth {
		return p.errf("missing endif")
	}
	return nil
}

// parseLine handles the physical line at index i, returning how many
// physical lines it consumed.
func (p *Parser) parseLine(ctx context.Context, lines []string, i int) (int, error) {
	raw := lines[i]

	// Recipe lines are checked first, on the physical line, so that tab
	// continuation inside recipes stays intact.
	if m := p.prefixRe.FindString(raw); m != "" && p.lastRule != nil && strings.TrimSpace(raw) != "" {
		if !p.live() {
			return 1 + p.countRecipeContinuation(lines, i), nil
		}
		body := raw[len(m):]
		consumed := 1
		for endsWithOddBackslashes(body) && i+consumed < len(lines) {
			next := lines[i+consumed]
			next = strings.TrimPrefix(next, p.prefixRe.FindString(next))
			body += "\n" + next
			consumed++
		}
		p.lastRule.Recipe = append(p.lastRule.Recipe, body)
		return consumed, nil
	}

	logical, consumed := joinContinuations(lines, i)
	stripped := stripComment(logical)
	trimmed := strings.TrimSpace(stripped)

	if trimmed == "" {
		return consumed, nil
	}

	// Conditional structure is always honored, live or not.
	if isConditionalToken(firstToken(trimmed)) {
		if err := p.directiveConditional(ctx, trimmed); err != nil {
			return 0, err
		}
		return consumed, nil
	}
	if !p.live() {
		// Dead region: still track define/endef pairs so an endef inside
		// a skipped branch does not terminate an outer define.
		if firstToken(trimmed) == "define" {
			return consumed + p.skipDefine(lines, i+consumed), nil
		}
		return consumed, nil
	}

	err := p.parseLogical(ctx, trimmed, lines, i, &consumed)
	return consumed, err
}

// parseLogical classifies one live, comment-stripped logical line.
func (p *Parser) parseLogical(ctx context.Context, line string, lines []string, i int, consumed *int) error {
	switch firstToken(line) {
	case "endif":
		return p.errf("endif without matching conditional")
	case "endef":
		return p.errf("endef without matching define")
	}

	flags, rest := stripQualifiers(line)
	tok := firstToken(rest)

	if tok == "define" {
		n, err := p.parseDefine(ctx, rest, flags, lines, i+*consumed)
		if err != nil {
			return err
		}
		*consumed += n
		return nil
	}

	if !flags.any() {
		switch tok {
		case "include", "-include", "sinclude":
			return p.directiveInclude(ctx, tok, strings.TrimSpace(rest[len(tok):]))
		case "vpath":
			return p.directiveVpath(ctx, strings.TrimSpace(rest[len(tok):]))
		}
	}

	if tok == "undefine" {
		return p.directiveUndefine(ctx, strings.TrimSpace(rest[len(tok):]))
	}

	// Assignment comes before rule headers so `x := a:b` parses as a
	// variable, not a rule for x.
	if name, op, rhs, ok := findAssignOp(rest); ok {
		return p.applyAssign(ctx, p.store, name, op, rhs, flags)
	}

	if flags.export || flags.unexport {
		return p.directiveExport(ctx, flags, rest)
	}
	if flags.any() {
		return p.errf("qualifier without assignment: %q", line)
	}

	if done, err := p.tryRuleHeader(ctx, line); done || err != nil {
		return err
	}

	// A line that expands to nothing is tolerated (pure function-call
	// lines such as $(eval ...) land here).
	expanded, err := p.x.Expand(ctx, line)
	if err != nil {
		return &Error{File: p.file, Line: p.line, Err: err}
	}
	if strings.TrimSpace(expanded) == "" {
		return nil
	}
	return p.errf("unrecognized line: %q", line)
}

// countRecipeContinuation counts extra physical lines a skipped recipe
// line drags along via trailing backslashes.
func (p *Parser) countRecipeContinuation(lines []string, i int) int {
	n := 0
	body := lines[i]
	for endsWithOddBackslashes(body) && i+n+1 < len(lines) {
		n++
		body = lines[i+n]
	}
	return n
}

// firstToken returns the leading whitespace-delimited word.
func firstToken(s string) string {
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}
