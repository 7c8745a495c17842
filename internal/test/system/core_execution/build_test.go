package system

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gomake/internal/caps"
	"github.com/specialistvlad/gomake/internal/testutil"
)

// Test for: each target's recipe runs at most once per run, even when the
// target is reachable along several paths.
func TestCoreExecution_AtMostOncePerTarget(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
.PHONY: all a b common
all: a b
a: common
	touch a
b: common
	touch b
common:
	touch common
`)
	h.EmulateShell()
	h.Cfg.Runner.Jobs = 4

	// --- Act ---
	res := h.Run(t, "all")

	// --- Assert ---
	require.NoError(t, res.Err)
	require.True(t, res.Worked)
	require.Equal(t, 1, h.Shell.Count("touch common"), "diamond dependency must build once")
	require.Equal(t, 1, h.Shell.Count("touch a"))
	require.Equal(t, 1, h.Shell.Count("touch b"))
}

// Test for: a grouped rule updates all its targets with one recipe run,
// and a second run is a no-op.
func TestCoreExecution_GroupedTargetsCoalesce(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
.PHONY: all
all: build/g1 build/g2
build/g1 build/g2 &: src/seed
	touch build/g1 build/g2
`)
	h.EmulateShell()
	h.FS.Put(testutil.Workdir+"/src/seed", "seed")

	// --- Act ---
	res := h.Run(t, "all")

	// --- Assert ---
	require.NoError(t, res.Err)
	require.Equal(t, 1, h.Shell.Count("touch build/g1 build/g2"), "group recipe must run once for both members")
	require.True(t, h.FS.Exists(testutil.Workdir+"/build/g1"))
	require.True(t, h.FS.Exists(testutil.Workdir+"/build/g2"))

	// A second run finds everything up to date.
	second := h.Run(t, "all")
	require.NoError(t, second.Err)
	require.Equal(t, 1, h.Shell.Count("touch build/g1 build/g2"), "second run must be a no-op")
}

// Test for: each double-colon rule runs independently, in declaration
// order.
func TestCoreExecution_DoubleColonIndependence(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
log:: s1
	echo one >> log
log:: s2
	echo two >> log
s1:
	touch s1
s2:
	touch s2
`)
	h.EmulateShell()

	// --- Act ---
	res := h.Run(t, "log")

	// --- Assert ---
	require.NoError(t, res.Err)
	require.Equal(t, 1, h.Shell.Count("echo one"))
	require.Equal(t, 1, h.Shell.Count("echo two"))
	require.Equal(t, "one\ntwo\n", h.FS.Content(testutil.Workdir+"/log"), "declaration order must hold")
}

// Test for: pattern rules chain through a missing intermediate.
func TestCoreExecution_ImplicitChain(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
%.o: %.c
	touch $@
%.c: %.y
	touch $@
`)
	h.EmulateShell()
	h.FS.Put(testutil.Workdir+"/foo.y", "grammar")

	// --- Act ---
	res := h.Run(t, "foo.o")

	// --- Assert ---
	require.NoError(t, res.Err)
	require.Equal(t, 1, h.Shell.Count("touch foo.c"))
	require.Equal(t, 1, h.Shell.Count("touch foo.o"))
	require.True(t, h.FS.Exists(testutil.Workdir+"/foo.o"))
}

// Test for: up-to-date targets are not rebuilt; touching a prerequisite
// makes them stale again.
func TestCoreExecution_TimestampDecision(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
out: in
	touch out
`)
	h.EmulateShell()
	h.FS.Put(testutil.Workdir+"/in", "x")

	// --- Act / Assert ---
	res := h.Run(t, "out")
	require.NoError(t, res.Err)
	require.Equal(t, 1, h.Shell.Count("touch out"))

	res = h.Run(t, "out")
	require.NoError(t, res.Err)
	require.False(t, res.Worked)
	require.Equal(t, 1, h.Shell.Count("touch out"), "fresh target must not rebuild")

	h.FS.Touch(testutil.Workdir + "/in")
	res = h.Run(t, "out")
	require.NoError(t, res.Err)
	require.Equal(t, 2, h.Shell.Count("touch out"), "stale target must rebuild")
}

// Test for: prerequisites are found through vpath directories.
func TestCoreExecution_VpathSearch(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
vpath %.c src
out.o: main.c
	compile $<
`)
	h.FS.Put(testutil.Workdir+"/src/main.c", "int main;")

	// --- Act ---
	res := h.Run(t, "out.o")

	// --- Assert ---
	require.NoError(t, res.Err)
	require.Equal(t, 1, h.Shell.Count("compile src/main.c"), "recipe must see the resolved path")
}

// Test for: search paths injected through the engine config (the run
// profile's vpath blocks) resolve prerequisites like vpath directives do.
func TestCoreExecution_ConfiguredVpathSearch(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
out.o: main.c
	compile $<
`)
	h.FS.Put(testutil.Workdir+"/gen/main.c", "int main;")
	h.Cfg.VPaths = []caps.VPathEntry{{Pattern: "%.c", Dirs: []string{"gen"}}}

	// --- Act ---
	res := h.Run(t, "out.o")

	// --- Assert ---
	require.NoError(t, res.Err)
	require.Equal(t, 1, h.Shell.Count("compile gen/main.c"))
}

// Test for: a goal with no rule but an existing file succeeds silently; a
// goal with neither fails.
func TestCoreExecution_MissingRule(t *testing.T) {
	h := testutil.NewHarness(t, "unrelated:\n\ttouch unrelated\n")
	h.EmulateShell()
	h.FS.Put(testutil.Workdir+"/exists.txt", "data")

	res := h.Run(t, "exists.txt")
	require.NoError(t, res.Err)
	require.False(t, res.Worked)

	res = h.Run(t, "missing.txt")
	require.Error(t, res.Err)
	require.Contains(t, res.Err.Error(), "no rule to make target")
}
