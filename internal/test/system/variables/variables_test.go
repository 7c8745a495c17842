package system

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gomake/internal/testutil"
)

// Test for: recursive variables see later redefinitions, simple variables
// are frozen at assignment.
func TestVariables_RecursiveVsSimple(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
A = $(B)
S := $(B)
B = x
.PHONY: show
show:
	rec=$(A) simple=$(S)
`)

	// --- Act ---
	res := h.Run(t, "show")

	// --- Assert ---
	require.NoError(t, res.Err)
	require.Equal(t, 1, h.Shell.Count("rec=x simple="))
}

// Test for: a private target-specific variable does not leak into the
// prerequisite's recipe.
func TestVariables_PrivateScopeDoesNotPropagate(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
MSG = outer
.PHONY: out/done out/dep
out/done: private MSG = local
out/done: out/dep
	done-sees $(MSG)
out/dep:
	dep-sees $(MSG)
`)

	// --- Act ---
	res := h.Run(t, "out/done")

	// --- Assert ---
	require.NoError(t, res.Err)
	require.Equal(t, 1, h.Shell.Count("dep-sees outer"), "prerequisite must see the global value")
	require.Equal(t, 1, h.Shell.Count("done-sees local"), "target itself sees the private value")
}

// Test for: a non-private target-specific variable does propagate to
// prerequisites.
func TestVariables_TargetScopePropagates(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
MSG = outer
.PHONY: top child
top: MSG = scoped
top: child
	top-sees $(MSG)
child:
	child-sees $(MSG)
`)

	// --- Act ---
	res := h.Run(t, "top")

	// --- Assert ---
	require.NoError(t, res.Err)
	require.Equal(t, 1, h.Shell.Count("child-sees scoped"))
	require.Equal(t, 1, h.Shell.Count("top-sees scoped"))
}

// Test for: the automatic-variable contracts. $^ deduplicates, $+ keeps
// duplicates, $| holds order-only prerequisites, $? holds only newer
// ones.
func TestVariables_AutomaticContracts(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
out: new.txt old.txt new.txt | order.txt
	auto @=$@ <=$< ^=$^ +=$+ ?=$? |=$|
`)
	h.FS.PutAt(testutil.Workdir+"/old.txt", "o", 10)
	h.FS.PutAt(testutil.Workdir+"/out", "t", 50)
	h.FS.PutAt(testutil.Workdir+"/new.txt", "n", 90)
	h.FS.PutAt(testutil.Workdir+"/order.txt", "x", 5)

	// --- Act ---
	res := h.Run(t, "out")

	// --- Assert ---
	require.NoError(t, res.Err)
	require.Equal(t, 1, h.Shell.Count(
		"auto @=out <=new.txt ^=new.txt old.txt +=new.txt old.txt new.txt ?=new.txt |=order.txt"))
}

// Test for: second expansion binds $$* during the second pass.
func TestVariables_SecondExpansion(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
.SECONDEXPANSION:
OBJS_foo = a.dep b.dep
.PHONY: a.dep b.dep
a.dep:
	made-a
b.dep:
	made-b
foo.o: $$(OBJS_$$*)
	link $^
`)

	// --- Act ---
	res := h.Run(t, "foo.o")

	// --- Assert ---
	require.NoError(t, res.Err)
	require.Equal(t, 1, h.Shell.Count("made-a"))
	require.Equal(t, 1, h.Shell.Count("made-b"))
	require.Equal(t, 1, h.Shell.Count("link a.dep b.dep"))
}

// Test for: an exported variable reaches the recipe environment.
func TestVariables_ExportReachesRecipeEnv(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
export TOOLDIR = /opt/tools
.PHONY: show
show:
	run
`)

	// --- Act ---
	res := h.Run(t, "show")

	// --- Assert ---
	require.NoError(t, res.Err)
	calls := h.Shell.Calls()
	require.Len(t, calls, 1)
	require.Contains(t, calls[0].Env, "TOOLDIR=/opt/tools")
}

// Test for: MAKECMDGOALS reflects the requested goals.
func TestVariables_MakeCmdGoals(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
.PHONY: a b
a:
	goals=$(MAKECMDGOALS)
b:
	noop
`)

	// --- Act ---
	res := h.Run(t, "a", "b")

	// --- Assert ---
	require.NoError(t, res.Err)
	require.Equal(t, 1, h.Shell.Count("goals=a b"))
}
