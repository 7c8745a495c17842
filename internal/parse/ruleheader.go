package parse

import (
	"context"
	"strings"

	"github.com/specialistvlad/gomake/internal/rules"
	"github.com/specialistvlad/gomake/internal/vars"
)

// tryRuleHeader recognizes `targets [&]: [::] right-hand-side`. The right
// side is either a target-specific assignment, or prerequisites with an
// optional inline recipe after the first top-level semicolon.
func (p *Parser) tryRuleHeader(ctx context.Context, line string) (bool, error) {
	c := indexTopLevel(line, ':')
	if c < 0 {
		return false, nil
	}

	grouped := c > 0 && line[c-1] == '&'
	targetsEnd := c
	if grouped {
		targetsEnd = c - 1
	}
	doubleColon := c+1 < len(line) && line[c+1] == ':'
	rest := line[c+1:]
	if doubleColon {
		rest = rest[1:]
	}

	targets := strings.TrimSpace(line[:targetsEnd])
	if targets == "" {
		return false, p.errf("rule header with no targets: %q", line)
	}

	// Target- or pattern-specific variable assignment.
	restTrim := strings.TrimSpace(rest)
	qflags, qrest := stripQualifiers(restTrim)
	if name, op, rhs, ok := findAssignOp(qrest); ok {
		return true, p.applyScopeAssign(ctx, targets, name, op, rhs, qflags)
	}

	var recipe []string
	if semi := indexTopLevel(rest, ';'); semi >= 0 {
		recipe = append(recipe, strings.TrimLeft(rest[semi+1:], " \t"))
		rest = rest[:semi]
	}
	prereqs := strings.TrimSpace(rest)

	// .SUFFIXES maintains the known-suffix set instead of making a rule.
	if containsWord(targets, ".SUFFIXES") {
		return true, p.updateSuffixes(ctx, prereqs)
	}

	targets, prereqs = p.rewriteSuffixRule(targets, prereqs)

	entry := &rules.Entry{
		Targets:     targets,
		Prereqs:     prereqs,
		Recipe:      recipe,
		DoubleColon: doubleColon,
		Grouped:     grouped,
		File:        p.file,
		Line:        p.line,
	}
	p.Entries = append(p.Entries, entry)
	p.lastRule = entry
	return true, nil
}

// applyScopeAssign installs a target-specific variable, reusing the scope
// store when the same target key appears on multiple lines so += sees the
// earlier value.
func (p *Parser) applyScopeAssign(ctx context.Context, key, name, op, rhs string, flags qualFlags) error {
	if p.scopeByKey == nil {
		p.scopeByKey = make(map[string]*vars.Store)
	}
	store, ok := p.scopeByKey[key]
	if !ok {
		store = vars.NewStore()
		p.scopeByKey[key] = store
		p.Scopes = append(p.Scopes, rules.Scope{Key: key, Vars: store})
	}
	return p.applyAssign(ctx, store, name, op, rhs, flags)
}

// updateSuffixes applies a .SUFFIXES header: no prerequisites clears the
// set, otherwise the listed suffixes are appended.
func (p *Parser) updateSuffixes(ctx context.Context, prereqs string) error {
	text, err := p.x.Expand(ctx, prereqs)
	if err != nil {
		return &Error{File: p.file, Line: p.line, Err: err}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		p.Suffixes = nil
		return nil
	}
	p.Suffixes = append(p.Suffixes, words...)
	return nil
}

// rewriteSuffixRule converts old-style suffix rules into pattern rules:
// `.c:` becomes `%: %.c` and `.c.o:` becomes `%.o: %.c`, when the
// suffixes are known and the rule has no prerequisites.
func (p *Parser) rewriteSuffixRule(targets, prereqs string) (string, string) {
	if prereqs != "" || strings.ContainsAny(targets, " \t") || !strings.HasPrefix(targets, ".") {
		return targets, prereqs
	}
	if p.knownSuffix(targets) {
		return "%", "%" + targets
	}
	for i := 1; i < len(targets); i++ {
		if targets[i] != '.' {
			continue
		}
		src, dst := targets[:i], targets[i:]
		if p.knownSuffix(src) && p.knownSuffix(dst) {
			return "%" + dst, "%" + src
		}
	}
	return targets, prereqs
}

func (p *Parser) knownSuffix(s string) bool {
	for _, suf := range p.Suffixes {
		if suf == s {
			return true
		}
	}
	return false
}

// containsWord reports whether text contains word as a whitespace-
// delimited token.
func containsWord(text, word string) bool {
	for _, w := range strings.Fields(text) {
		if w == word {
			return true
		}
	}
	return false
}
