package rules

import (
	"context"
	"strings"

	"github.com/specialistvlad/gomake/internal/ctxlog"
	"github.com/specialistvlad/gomake/internal/expand"
	"github.com/specialistvlad/gomake/internal/vars"
)

// Table is the post-parse rule index consulted by the resolver. It is
// rebuilt at the start of every run from the current entry list, after
// first-pass expansion of target and prerequisite text.
type Table struct {
	exact       map[string][]*Rule
	patterns    []*patternRule
	anything    []*patternRule
	exactScopes map[string][]*vars.Store
	patScopes   []patternScope
	knownTypes  map[string]bool
	specials    map[string]*TargetSet
	defaultRule *Rule
}

// patternRule is one rule header whose targets are %-patterns. Prereqs and
// order-only lists still contain % placeholders; they are concretized per
// match.
type patternRule struct {
	patterns []string
	rule     *Rule
}

type patternScope struct {
	pattern string
	vars    *vars.Store
}

// Build expands every entry's target and prerequisite text with x and
// indexes the results.
func Build(ctx context.Context, entries []*Entry, scopes []Scope, x *expand.Expander) (*Table, error) {
	t := &Table{
		exact:       make(map[string][]*Rule),
		exactScopes: make(map[string][]*vars.Store),
		knownTypes:  make(map[string]bool),
		specials:    make(map[string]*TargetSet),
	}
	for name := range SpecialTargets {
		t.specials[name] = &TargetSet{}
	}

	for i := range entries {
		if err := t.add(ctx, entries[i], x); err != nil {
			return nil, err
		}
	}

	for _, sc := range scopes {
		key, err := x.Expand(ctx, sc.Key)
		if err != nil {
			return nil, err
		}
		for _, word := range expand.Words(key) {
			if strings.Contains(word, "%") {
				t.patScopes = append(t.patScopes, patternScope{pattern: word, vars: sc.Vars})
			} else {
				t.exactScopes[word] = append(t.exactScopes[word], sc.Vars)
			}
		}
	}
	return t, nil
}

// Append indexes additional entries and scopes, used when deferred
// includes land mid-run.
func (t *Table) Append(ctx context.Context, entries []*Entry, scopes []Scope, x *expand.Expander) error {
	for i := range entries {
		if err := t.add(ctx, entries[i], x); err != nil {
			return err
		}
	}
	for _, sc := range scopes {
		key, err := x.Expand(ctx, sc.Key)
		if err != nil {
			return err
		}
		for _, word := range expand.Words(key) {
			if strings.Contains(word, "%") {
				t.patScopes = append(t.patScopes, patternScope{pattern: word, vars: sc.Vars})
			} else {
				t.exactScopes[word] = append(t.exactScopes[word], sc.Vars)
			}
		}
	}
	return nil
}

func (t *Table) add(ctx context.Context, e *Entry, x *expand.Expander) error {
	targetText, err := x.Expand(ctx, e.Targets)
	if err != nil {
		return err
	}
	prereqText, err := x.Expand(ctx, e.Prereqs)
	if err != nil {
		return err
	}

	targets := expand.Words(targetText)
	prereqs, orderOnly := SplitOrderOnly(expand.Words(prereqText))

	if len(targets) == 1 {
		if set, ok := t.specials[targets[0]]; ok {
			set.Add(append(prereqs, orderOnly...))
			return nil
		}
		if targets[0] == ".DEFAULT" && len(e.Recipe) > 0 {
			t.defaultRule = &Rule{Recipe: e.Recipe, File: e.File, Line: e.Line}
			return nil
		}
	}

	rule := &Rule{
		Prereqs:     prereqs,
		OrderOnly:   orderOnly,
		Recipe:      e.Recipe,
		DoubleColon: e.DoubleColon,
		Grouped:     e.Grouped,
		Terminal:    e.DoubleColon,
		File:        e.File,
		Line:        e.Line,
	}

	var patternTargets, exactTargets []string
	for _, tgt := range targets {
		if strings.Contains(tgt, "%") {
			patternTargets = append(patternTargets, tgt)
		} else {
			exactTargets = append(exactTargets, tgt)
		}
	}

	if len(patternTargets) > 0 {
		pr := &patternRule{patterns: patternTargets, rule: rule}
		allAnything := true
		for _, p := range patternTargets {
			if p == "%" {
				continue
			}
			allAnything = false
			if i := strings.LastIndexByte(p, '.'); i >= 0 && strings.IndexByte(p[i:], '/') < 0 {
				t.knownTypes[p[i:]] = true
			}
		}
		if allAnything {
			t.anything = append(t.anything, pr)
		} else {
			t.patterns = append(t.patterns, pr)
		}
	}

	if e.Grouped {
		rule.Targets = exactTargets
		// One shared Rule under every member; the runner coalesces the
		// group into a single build.
		for _, tgt := range exactTargets {
			t.exact[tgt] = append(t.exact[tgt], rule)
		}
		return nil
	}

	for _, tgt := range exactTargets {
		t.merge(ctx, tgt, rule, e)
	}
	return nil
}

// merge folds a non-grouped exact rule into the index. Double-colon rules
// stack independently; ordinary rules accumulate prerequisites and allow
// only one recipe.
func (t *Table) merge(ctx context.Context, target string, rule *Rule, e *Entry) {
	existing := t.exact[target]
	if rule.DoubleColon || (len(existing) > 0 && existing[0].DoubleColon) {
		r := *rule
		r.Targets = []string{target}
		t.exact[target] = append(existing, &r)
		return
	}
	if len(existing) == 0 {
		r := *rule
		r.Targets = []string{target}
		t.exact[target] = []*Rule{&r}
		return
	}
	cur := existing[0]
	cur.Prereqs = append(cur.Prereqs, rule.Prereqs...)
	cur.OrderOnly = append(cur.OrderOnly, rule.OrderOnly...)
	if rule.HasRecipe() {
		if cur.HasRecipe() && !e.Builtin {
			ctxlog.FromContext(ctx).Warn("Overriding recipe for target.", "target", target, "file", e.File, "line", e.Line)
		}
		// Builtin rules never displace a user recipe.
		if !e.Builtin || !cur.HasRecipe() {
			cur.Recipe = rule.Recipe
			cur.File, cur.Line = rule.File, rule.Line
		}
	}
}

// SplitOrderOnly splits an expanded prerequisite word list at the lone |
// separator. .WAIT sentinels remain in the normal list for the runner.
func SplitOrderOnly(words []string) (normal, orderOnly []string) {
	for i, w := range words {
		if w == "|" {
			return words[:i], words[i+1:]
		}
	}
	return words, nil
}

// Special returns the membership set of one special target (.PHONY etc).
func (t *Table) Special(name string) *TargetSet {
	if set, ok := t.specials[name]; ok {
		return set
	}
	return &TargetSet{}
}

// KnownType reports whether ext (with dot) is the extension of any pattern
// rule's target; the resolver withholds anything-rules from such targets.
func (t *Table) KnownType(ext string) bool {
	return t.knownTypes[ext]
}

// ScopeFor merges the target-specific variable scopes applying to target:
// pattern scopes in declaration order, then exact scopes, later wins.
func (t *Table) ScopeFor(target string) *vars.Store {
	var merged *vars.Store
	install := func(src *vars.Store) {
		for _, name := range src.Names() {
			v, _ := src.Lookup(name)
			if merged == nil {
				merged = vars.NewStore()
			}
			merged.Install(name, v)
		}
	}
	for _, ps := range t.patScopes {
		if _, ok := expand.Match(ps.pattern, target); ok {
			install(ps.vars)
		}
	}
	for _, sv := range t.exactScopes[target] {
		install(sv)
	}
	return merged
}
