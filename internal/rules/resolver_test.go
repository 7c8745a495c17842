package rules

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gomake/internal/expand"
	"github.com/specialistvlad/gomake/internal/vars"
)

func buildTable(t *testing.T, entries []*Entry, scopes []Scope) *Table {
	t.Helper()
	x := expand.New(vars.NewStore(), nil)
	table, err := Build(context.Background(), entries, scopes, x)
	require.NoError(t, err)
	return table
}

func resolver(table *Table, existing ...string) *Resolver {
	onDisk := make(map[string]bool, len(existing))
	for _, f := range existing {
		onDisk[f] = true
	}
	return &Resolver{Table: table, Exists: func(name string) bool { return onDisk[name] }}
}

func TestResolve_ExactRuleAccumulatesPrereqs(t *testing.T) {
	table := buildTable(t, []*Entry{
		{Targets: "all", Prereqs: "a"},
		{Targets: "all", Prereqs: "b", Recipe: []string{"do"}},
	}, nil)

	got := resolver(table).Resolve(context.Background(), "all")
	require.Len(t, got, 1)
	require.Equal(t, []string{"a", "b"}, got[0].Prereqs)
	require.Equal(t, []string{"do"}, got[0].Recipe)
}

func TestResolve_DoubleColonListInOrder(t *testing.T) {
	table := buildTable(t, []*Entry{
		{Targets: "log", Prereqs: "s1", Recipe: []string{"one"}, DoubleColon: true},
		{Targets: "log", Prereqs: "s2", Recipe: []string{"two"}, DoubleColon: true},
	}, nil)

	got := resolver(table).Resolve(context.Background(), "log")
	require.Len(t, got, 2)
	require.Equal(t, []string{"one"}, got[0].Recipe)
	require.Equal(t, []string{"two"}, got[1].Recipe)
}

func TestResolve_ShortestStemWins(t *testing.T) {
	table := buildTable(t, []*Entry{
		{Targets: "%.o", Prereqs: "%.c", Recipe: []string{"generic"}},
		{Targets: "sub/%.o", Prereqs: "sub/%.c", Recipe: []string{"specific"}},
	}, nil)

	got := resolver(table, "sub/x.c").Resolve(context.Background(), "sub/x.o")
	require.Len(t, got, 1)
	require.Equal(t, []string{"specific"}, got[0].Recipe)
	require.Equal(t, "x", got[0].Stem)
	if diff := cmp.Diff([]string{"sub/x.c"}, got[0].Prereqs); diff != "" {
		t.Fatalf("prereqs mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_TieBrokenByDeclarationOrder(t *testing.T) {
	table := buildTable(t, []*Entry{
		{Targets: "%.x", Prereqs: "first.src", Recipe: []string{"first"}},
		{Targets: "%.x", Prereqs: "second.src", Recipe: []string{"second"}},
	}, nil)

	got := resolver(table, "first.src", "second.src").Resolve(context.Background(), "a.x")
	require.Len(t, got, 1)
	require.Equal(t, []string{"first"}, got[0].Recipe)
}

func TestResolve_ImplicitChain(t *testing.T) {
	table := buildTable(t, []*Entry{
		{Targets: "%.o", Prereqs: "%.c", Recipe: []string{"cc"}},
		{Targets: "%.c", Prereqs: "%.y", Recipe: []string{"yacc"}},
	}, nil)

	// Only foo.y exists; foo.o resolves through the chain foo.c <- foo.y.
	got := resolver(table, "foo.y").Resolve(context.Background(), "foo.o")
	require.Len(t, got, 1)
	require.Equal(t, []string{"cc"}, got[0].Recipe)
	require.Equal(t, []string{"foo.c"}, got[0].Prereqs)
}

func TestResolve_TerminalRuleBlocksChain(t *testing.T) {
	table := buildTable(t, []*Entry{
		{Targets: "%.o", Prereqs: "%.c", Recipe: []string{"cc"}},
		{Targets: "%.c", Prereqs: "%.y", Recipe: []string{"yacc"}, DoubleColon: true},
	}, nil)

	got := resolver(table, "foo.y").Resolve(context.Background(), "foo.o")
	require.Empty(t, got, "terminal %%.c rule must not join an implicit chain")
}

func TestResolve_AnythingRuleGatedByKnownTypes(t *testing.T) {
	table := buildTable(t, []*Entry{
		{Targets: "%.o", Prereqs: "%.missing", Recipe: []string{"cc"}},
		{Targets: "%", Recipe: []string{"fallback"}},
	}, nil)
	r := resolver(table)

	// Unknown extension falls back to the anything-rule, stem = target.
	got := r.Resolve(context.Background(), "tool.exe")
	require.Len(t, got, 1)
	require.Equal(t, []string{"fallback"}, got[0].Recipe)
	require.True(t, got[0].All)
	require.Equal(t, "tool.exe", got[0].Stem)

	// Known-type targets never chain through anything-rules.
	got = r.Resolve(context.Background(), "x.o")
	require.Empty(t, got)
}

func TestResolve_PrereqOnlyPatternContributes(t *testing.T) {
	table := buildTable(t, []*Entry{
		{Targets: "%.o", Prereqs: "%.c", Recipe: []string{"cc"}},
		{Targets: "%.o", Prereqs: "common.h"},
	}, nil)

	got := resolver(table, "a.c", "common.h").Resolve(context.Background(), "a.o")
	require.Len(t, got, 1)
	require.ElementsMatch(t, []string{"a.c", "common.h"}, got[0].Prereqs)
}

func TestResolve_GroupedTargets(t *testing.T) {
	table := buildTable(t, []*Entry{
		{Targets: "g1 g2", Prereqs: "seed", Recipe: []string{"gen"}, Grouped: true},
	}, nil)

	got := resolver(table, "seed").Resolve(context.Background(), "g2")
	require.Len(t, got, 1)
	require.Equal(t, []string{"g1", "g2"}, got[0].Targets)
}

func TestResolve_DefaultRuleFallback(t *testing.T) {
	table := buildTable(t, []*Entry{
		{Targets: ".DEFAULT", Recipe: []string{"made by default"}},
	}, nil)

	got := resolver(table).Resolve(context.Background(), "whatever")
	require.Len(t, got, 1)
	require.Equal(t, []string{"made by default"}, got[0].Recipe)
}

func TestTable_SpecialTargets(t *testing.T) {
	table := buildTable(t, []*Entry{
		{Targets: ".PHONY", Prereqs: "clean all"},
		{Targets: ".NOTPARALLEL"},
		{Targets: ".ONESHELL", Prereqs: ""},
	}, nil)

	require.True(t, table.Special(".PHONY").Has("clean"))
	require.True(t, table.Special(".PHONY").Has("all"))
	require.False(t, table.Special(".PHONY").Has("other"))

	require.True(t, table.Special(".NOTPARALLEL").Universal(), "no prerequisites means applies to everything")
	require.True(t, table.Special(".NOTPARALLEL").Has("anything"))
	require.True(t, table.Special(".ONESHELL").Active())
}

func TestTable_OrderOnlySplit(t *testing.T) {
	table := buildTable(t, []*Entry{
		{Targets: "out", Prereqs: "a b | c d", Recipe: []string{"r"}},
	}, nil)

	got := resolver(table).Resolve(context.Background(), "out")
	require.Len(t, got, 1)
	require.Equal(t, []string{"a", "b"}, got[0].Prereqs)
	require.Equal(t, []string{"c", "d"}, got[0].OrderOnly)
}

func TestTable_ScopeForMergesPatternThenExact(t *testing.T) {
	patScope := vars.NewStore()
	patScope.Install("V", &vars.Value{Static: "pattern"})
	exactScope := vars.NewStore()
	exactScope.Install("V", &vars.Value{Static: "exact"})

	table := buildTable(t, nil, []Scope{
		{Key: "%.o", Vars: patScope},
		{Key: "foo.o", Vars: exactScope},
	})

	merged := table.ScopeFor("foo.o")
	require.NotNil(t, merged)
	v, ok := merged.Lookup("V")
	require.True(t, ok)
	require.Equal(t, "exact", v.Text(), "exact scope overrides pattern scope")

	other := table.ScopeFor("bar.o")
	require.NotNil(t, other)
	v, _ = other.Lookup("V")
	require.Equal(t, "pattern", v.Text())

	require.Nil(t, table.ScopeFor("nothing.c"))
}
