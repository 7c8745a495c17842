package vars

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func noExpand() AssignOpts {
	return AssignOpts{}
}

func TestAssign_RecursiveKeepsRawValue(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Assign("A", OpRecursive, "$(B)", OriginFile, noExpand()))

	v, ok := s.Lookup("A")
	require.True(t, ok)
	require.True(t, v.Recurse)
	require.Equal(t, "$(B)", v.Static)
}

func TestAssign_SimpleExpandsOnce(t *testing.T) {
	s := NewStore()
	opts := AssignOpts{Expand: func(string) (string, error) { return "expanded", nil }}
	require.NoError(t, s.Assign("A", OpSimple, "$(B)", OriginFile, opts))

	v, _ := s.Lookup("A")
	require.False(t, v.Recurse)
	require.Equal(t, "expanded", v.Static)
}

func TestAssign_ImmediateEscapesDollars(t *testing.T) {
	s := NewStore()
	opts := AssignOpts{Expand: func(string) (string, error) { return "a$b", nil }}
	require.NoError(t, s.Assign("A", OpImmediate, "$(B)", OriginFile, opts))

	v, _ := s.Lookup("A")
	require.True(t, v.Recurse)
	require.Equal(t, "a$$b", v.Static)
}

func TestAssign_ConditionalOnlyWhenUnset(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Assign("A", OpRecursive, "first", OriginFile, noExpand()))
	require.NoError(t, s.Assign("A", OpConditional, "second", OriginFile, noExpand()))

	v, _ := s.Lookup("A")
	require.Equal(t, "first", v.Static)

	require.NoError(t, s.Assign("B", OpConditional, "only", OriginFile, noExpand()))
	b, _ := s.Lookup("B")
	require.Equal(t, "only", b.Static)
	require.True(t, b.Recurse)
}

func TestAssign_AppendFlavors(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Assign("R", OpRecursive, "$(X)", OriginFile, noExpand()))
	require.NoError(t, s.Assign("R", OpAppend, "$(Y)", OriginFile, noExpand()))
	v, _ := s.Lookup("R")
	require.Equal(t, "$(X) $(Y)", v.Static)
	require.True(t, v.Recurse)

	opts := AssignOpts{Expand: func(in string) (string, error) { return "expanded:" + in, nil }}
	require.NoError(t, s.Assign("S", OpSimple, "a", OriginFile, opts))
	require.NoError(t, s.Assign("S", OpAppend, "b", OriginFile, opts))
	sv, _ := s.Lookup("S")
	require.Equal(t, "expanded:a expanded:b", sv.Static)
	require.False(t, sv.Recurse)
}

func TestAssign_ShellStoresTrimmedOutput(t *testing.T) {
	s := NewStore()
	opts := AssignOpts{
		Expand:   func(in string) (string, error) { return in, nil },
		ShellRun: func(string) (string, error) { return "out\n", nil },
	}
	require.NoError(t, s.Assign("V", OpShell, "echo out", OriginFile, opts))
	v, _ := s.Lookup("V")
	require.Equal(t, "out", v.Static)
	require.False(t, v.Recurse)
}

func TestAssign_CommandLineBeatsFile(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Assign("A", OpRecursive, "cli", OriginCommandLine, noExpand()))
	require.NoError(t, s.Assign("A", OpRecursive, "file", OriginFile, noExpand()))

	v, _ := s.Lookup("A")
	require.Equal(t, "cli", v.Static)
	require.Equal(t, OriginCommandLine, v.Origin)
}

func TestAssign_OverrideBeatsCommandLine(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Assign("A", OpRecursive, "cli", OriginCommandLine, noExpand()))
	require.NoError(t, s.Assign("A", OpRecursive, "forced", OriginOverride, noExpand()))

	v, _ := s.Lookup("A")
	require.Equal(t, "forced", v.Static)
}

func TestAssign_EnvOverridesBlocksFile(t *testing.T) {
	s := NewStore()
	s.EnvOverrides = true
	s.Install("A", &Value{Static: "env", Origin: OriginEnvironment})
	require.NoError(t, s.Assign("A", OpRecursive, "file", OriginFile, noExpand()))

	v, _ := s.Lookup("A")
	require.Equal(t, "env", v.Static)
}

func TestAssign_OverrideOnEnvironmentRelabels(t *testing.T) {
	s := NewStore()
	s.Install("A", &Value{Static: "env", Origin: OriginEnvironment})
	require.NoError(t, s.Assign("A", OpRecursive, "forced", OriginOverride, noExpand()))

	v, _ := s.Lookup("A")
	require.Equal(t, "forced", v.Static)
	require.Equal(t, OriginEnvOverride, v.Origin)
}

func TestAssign_BuiltinBackedUpdatesField(t *testing.T) {
	s := NewStore()
	backing := "initial"
	s.Install("GOAL", &Value{
		Origin: OriginDefault,
		Get:    func() string { return backing },
		Set:    func(v string) { backing = v },
	})
	require.NoError(t, s.Assign("GOAL", OpRecursive, "next", OriginFile, noExpand()))

	v, _ := s.Lookup("GOAL")
	require.NotNil(t, v.Get, "descriptor must survive assignment")
	require.Equal(t, "next", v.Text())
}

func TestStore_NamesInsertionOrdered(t *testing.T) {
	s := NewStore()
	for _, n := range []string{"C", "A", "B"} {
		s.Install(n, &Value{Static: n})
	}
	require.Equal(t, []string{"C", "A", "B"}, s.Names())

	s.Delete("A")
	require.Equal(t, []string{"C", "B"}, s.Names())
}
