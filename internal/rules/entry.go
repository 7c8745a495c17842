// Package rules holds the textual rule records appended by the parser, the
// post-parse indexes built at run start, and the resolver that picks the
// rule (and stem) for a concrete target.
package rules

import "github.com/specialistvlad/gomake/internal/vars"

// Entry is a rule as parsed: target and prerequisite text before
// expansion, plus the raw recipe lines. The table expands entries with the
// global expander when a run starts.
type Entry struct {
	Targets     string
	Prereqs     string
	Recipe      []string
	DoubleColon bool
	Grouped     bool
	Builtin     bool

	File string
	Line int
}

// Scope is a target- or pattern-specific variable scope keyed by the raw
// target word it was declared for.
type Scope struct {
	Key  string
	Vars *vars.Store
}

// Rule is the expanded form the runner consumes.
type Rule struct {
	// Targets lists all group members for a grouped rule; otherwise it
	// holds the single matched target.
	Targets     []string
	Prereqs     []string
	OrderOnly   []string
	Recipe      []string
	Stem        string
	All         bool // matched via an anything-rule; stem is the whole target
	Terminal    bool // double-colon pattern rule; excluded from implicit chains
	DoubleColon bool
	Grouped     bool

	File string
	Line int
}

// HasRecipe reports whether the rule carries recipe lines.
func (r *Rule) HasRecipe() bool {
	return len(r.Recipe) > 0
}

// WaitSentinel is the pseudo-prerequisite that splits a prerequisite list
// into ordered segments.
const WaitSentinel = ".WAIT"

// SpecialTargets is the set of recognized dot-targets tracked as membership
// sets rather than rules.
var SpecialTargets = map[string]bool{
	".PHONY":                true,
	".PRECIOUS":             true,
	".INTERMEDIATE":         true,
	".NOTINTERMEDIATE":      true,
	".SECONDARY":            true,
	".SECONDEXPANSION":      true,
	".DELETE_ON_ERROR":      true,
	".IGNORE":               true,
	".LOW_RESOLUTION_TIME":  true,
	".SILENT":               true,
	".EXPORT_ALL_VARIABLES": true,
	".NOTPARALLEL":          true,
	".ONESHELL":             true,
	".POSIX":                true,
}

// TargetSet is one special target's membership. Declaring the special
// target with no prerequisites makes it apply universally.
type TargetSet struct {
	all bool
	m   map[string]bool
}

// Add records the given member targets; an empty list flips the set to
// universal membership.
func (s *TargetSet) Add(members []string) {
	if len(members) == 0 {
		s.all = true
		return
	}
	if s.m == nil {
		s.m = make(map[string]bool)
	}
	for _, t := range members {
		s.m[t] = true
	}
}

// Has reports membership of target.
func (s *TargetSet) Has(target string) bool {
	return s.all || s.m[target]
}

// Active reports whether the set was declared at all.
func (s *TargetSet) Active() bool {
	return s.all || len(s.m) > 0
}

// Universal reports whether the set applies to every target.
func (s *TargetSet) Universal() bool {
	return s.all
}
