package system

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gomake/internal/run"
	"github.com/specialistvlad/gomake/internal/testutil"
)

// Test for: a failing recipe surfaces a BuildError carrying the target
// and source position.
func TestErrorHandling_RecipeFailurePropagates(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
bad:
	exit 3
`)
	h.EmulateShell()

	// --- Act ---
	res := h.Run(t, "bad")

	// --- Assert ---
	require.Error(t, res.Err)
	var berr *run.BuildError
	require.ErrorAs(t, res.Err, &berr)
	require.Equal(t, "bad", berr.Target)
	require.Contains(t, berr.Error(), "exit code 3")
}

// Test for: .DELETE_ON_ERROR removes a partially written target;
// .PRECIOUS protects it.
func TestErrorHandling_DeleteOnError(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
.DELETE_ON_ERROR:
partial:
	echo half > partial && exit 1
`)
	h.EmulateShell()

	// --- Act ---
	res := h.Run(t, "partial")

	// --- Assert ---
	require.Error(t, res.Err)
	require.False(t, h.FS.Exists(testutil.Workdir+"/partial"), "failed target must be deleted")
	require.Contains(t, res.Output, "Deleting file 'partial'")
}

func TestErrorHandling_PreciousSurvivesDeleteOnError(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
.DELETE_ON_ERROR:
.PRECIOUS: partial
partial:
	echo half > partial && exit 1
`)
	h.EmulateShell()

	// --- Act ---
	res := h.Run(t, "partial")

	// --- Assert ---
	require.Error(t, res.Err)
	require.True(t, h.FS.Exists(testutil.Workdir+"/partial"), ".PRECIOUS target must survive")
}

// Test for: keep-going records the failure but still builds independent
// goals.
func TestErrorHandling_KeepGoing(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
.PHONY: bad good
bad:
	false
good:
	touch good
`)
	h.EmulateShell()
	h.Cfg.Runner.KeepGoing = true

	// --- Act ---
	res := h.Run(t, "bad", "good")

	// --- Assert ---
	require.Error(t, res.Err, "overall failure is still reported")
	require.Equal(t, 1, h.Shell.Count("touch good"), "independent goal must still build")
}

// Test for: without keep-going, a failed prerequisite stops the run and
// the dependent recipe never starts.
func TestErrorHandling_FatalStopsDependents(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
.PHONY: top bad
top: bad
	touch top
bad:
	false
`)
	h.EmulateShell()

	// --- Act ---
	res := h.Run(t, "top")

	// --- Assert ---
	require.Error(t, res.Err)
	require.Equal(t, 0, h.Shell.Count("touch top"), "dependent recipe must not run after failure")
}

// Test for: a - prefix ignores the line's failure and the recipe
// continues.
func TestErrorHandling_IgnorePrefix(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
.PHONY: tolerant
tolerant:
	-false
	touch after
`)
	h.EmulateShell()

	// --- Act ---
	res := h.Run(t, "tolerant")

	// --- Assert ---
	require.NoError(t, res.Err)
	require.Equal(t, 1, h.Shell.Count("touch after"))
	require.Contains(t, res.Output, "(ignored)")
}

// Test for: a deferred -include that a rule can produce is built, then
// its contents take effect.
func TestErrorHandling_DeferredIncludeRemade(t *testing.T) {
	// --- Arrange ---
	h := testutil.NewHarness(t, `
-include generated.mk

generated.mk:
	echo EXTRA = from-include > generated.mk

.PHONY: show
show:
	print $(EXTRA)
`)
	h.EmulateShell()

	// --- Act ---
	res := h.Run(t, "show")

	// --- Assert ---
	require.NoError(t, res.Err)
	require.Equal(t, 1, h.Shell.Count("echo EXTRA"), "the include file must be remade first")
	require.Equal(t, 1, h.Shell.Count("print from-include"), "rules from the remade include must apply")
}
