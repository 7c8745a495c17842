package rules

import (
	"context"
	"sort"
	"strings"

	"github.com/specialistvlad/gomake/internal/ctxlog"
	"github.com/specialistvlad/gomake/internal/expand"
)

// Resolver picks the rule (and stem) for a concrete target, including
// implicit-chain search through missing intermediates.
type Resolver struct {
	Table *Table

	// Exists reports whether a prerequisite name is present on disk,
	// after vpath resolution. Injected by the runner so timestamp caching
	// stays in one place.
	Exists func(name string) bool
}

// candidate is one pattern rule matched against a target.
type candidate struct {
	rule *Rule
	stem string
	all  bool // via an anything-rule
}

// Resolve returns the rules to run for target, in order. Double-colon
// targets return one Rule per header; everything else returns at most one.
// An empty result means no rule applies.
func (r *Resolver) Resolve(ctx context.Context, target string) []*Rule {
	t := r.Table

	var extraPrereqs, extraOrder []string
	var bare *Rule // exact rule without a recipe; prerequisites-only

	if list, ok := t.exact[target]; ok && len(list) > 0 {
		if list[0].DoubleColon {
			return list
		}
		rule := list[0]
		if rule.HasRecipe() {
			return []*Rule{rule}
		}
		bare = rule
		extraPrereqs = append(extraPrereqs, rule.Prereqs...)
		extraOrder = append(extraOrder, rule.OrderOnly...)
	}

	// Pattern rules without recipes contribute prerequisites
	// unconditionally.
	for _, pr := range t.patterns {
		if pr.rule.HasRecipe() {
			continue
		}
		for _, p := range pr.patterns {
			if stem, ok := expand.Match(p, target); ok {
				extraPrereqs = append(extraPrereqs, concretize(pr.rule.Prereqs, stem)...)
				extraOrder = append(extraOrder, concretize(pr.rule.OrderOnly, stem)...)
				break
			}
		}
	}

	chosen := r.findRule(ctx, target, map[string]bool{target: true})
	if chosen == nil {
		if bare != nil {
			return []*Rule{bare}
		}
		if t.defaultRule != nil {
			return []*Rule{{
				Targets: []string{target},
				Prereqs: extraPrereqs, OrderOnly: extraOrder,
				Recipe: t.defaultRule.Recipe,
				File:   t.defaultRule.File, Line: t.defaultRule.Line,
			}}
		}
		return nil
	}

	out := &Rule{
		Targets:     []string{target},
		Prereqs:     append(concretize(chosen.rule.Prereqs, chosen.stem), extraPrereqs...),
		OrderOnly:   append(concretize(chosen.rule.OrderOnly, chosen.stem), extraOrder...),
		Recipe:      chosen.rule.Recipe,
		Stem:        chosen.stem,
		All:         chosen.all,
		Terminal:    chosen.rule.Terminal,
		Grouped:     chosen.rule.Grouped,
		File:        chosen.rule.File,
		Line:        chosen.rule.Line,
	}
	if chosen.rule.Grouped && len(chosen.rule.Targets) > 0 {
		out.Targets = concretize(chosen.rule.Targets, chosen.stem)
	}
	return []*Rule{out}
}

// findRule implements the candidate search: direct matches first
// (shortest stem wins), then implicit chains through non-terminal rules.
func (r *Resolver) findRule(ctx context.Context, target string, visiting map[string]bool) *candidate {
	logger := ctxlog.FromContext(ctx)
	cands := r.patternCandidates(target)
	if len(cands) == 0 {
		return nil
	}

	for i := range cands {
		if len(r.intermediates(&cands[i])) == 0 {
			logger.Debug("Pattern rule matched directly.", "target", target, "stem", cands[i].stem)
			return &cands[i]
		}
	}

	// No candidate is directly satisfiable; search for an implicit chain
	// that can produce every missing intermediate.
	for i := range cands {
		c := &cands[i]
		if c.rule.Terminal {
			continue
		}
		ok := true
		for _, im := range r.intermediates(c) {
			if !r.chainable(ctx, im, visiting) {
				ok = false
				break
			}
		}
		if ok {
			logger.Debug("Pattern rule matched via implicit chain.", "target", target, "stem", c.stem)
			return c
		}
	}
	return nil
}

// chainable reports whether name can itself be produced by some
// non-terminal rule, recursively.
func (r *Resolver) chainable(ctx context.Context, name string, visiting map[string]bool) bool {
	if visiting[name] {
		return false
	}
	visiting[name] = true
	defer delete(visiting, name)

	cands := r.patternCandidates(name)
	for i := range cands {
		c := &cands[i]
		if c.rule.Terminal || c.all {
			continue
		}
		ok := true
		for _, im := range r.intermediates(c) {
			if !r.chainable(ctx, im, visiting) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// patternCandidates collects recipe-bearing pattern rules matching target,
// ordered by ascending stem length (ties keep declaration order), with
// anything-rules appended last. Anything-rules are withheld from targets
// whose extension is a known type.
func (r *Resolver) patternCandidates(target string) []candidate {
	t := r.Table
	var cands []candidate
	for _, pr := range t.patterns {
		if !pr.rule.HasRecipe() {
			continue
		}
		best := ""
		found := false
		for _, p := range pr.patterns {
			if stem, ok := expand.Match(p, target); ok {
				if !found || len(stem) < len(best) {
					best = stem
					found = true
				}
			}
		}
		if found {
			cands = append(cands, candidate{rule: pr.rule, stem: best})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return len(cands[i].stem) < len(cands[j].stem)
	})
	if !t.KnownType(extOf(target)) {
		for _, pr := range t.anything {
			if pr.rule.HasRecipe() {
				cands = append(cands, candidate{rule: pr.rule, stem: target, all: true})
			}
		}
	}
	return cands
}

// intermediates lists the concretized prerequisites of c that neither have
// a rule nor exist on disk.
func (r *Resolver) intermediates(c *candidate) []string {
	var out []string
	for _, w := range concretize(c.rule.Prereqs, c.stem) {
		if w == WaitSentinel {
			continue
		}
		if r.hasRule(w) {
			continue
		}
		if r.Exists != nil && r.Exists(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// hasRule reports whether an exact or non-terminal recipe-bearing pattern
// rule covers name. Terminal and anything-rules do not count: files they
// would make cannot serve as intermediates of other implicit rules.
func (r *Resolver) hasRule(name string) bool {
	t := r.Table
	if _, ok := t.exact[name]; ok {
		return true
	}
	for _, pr := range t.patterns {
		if !pr.rule.HasRecipe() || pr.rule.Terminal {
			continue
		}
		for _, p := range pr.patterns {
			if _, ok := expand.Match(p, name); ok {
				return true
			}
		}
	}
	return false
}

// concretize substitutes stem for % in each pattern word.
func concretize(words []string, stem string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		if strings.Contains(w, "%") {
			out[i] = strings.Replace(w, "%", stem, 1)
		} else {
			out[i] = w
		}
	}
	return out
}

// extOf returns target's extension including the dot, or "".
func extOf(target string) string {
	base := target
	if i := strings.LastIndexByte(target, '/'); i >= 0 {
		base = target[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return base[i:]
	}
	return ""
}
