package expand

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gomake/internal/vars"
)

func storeWith(pairs map[string]string) *vars.Store {
	s := vars.NewStore()
	for k, v := range pairs {
		s.Install(k, &vars.Value{Static: v, Recurse: true, Origin: vars.OriginFile})
	}
	return s
}

func TestExpand_Literals(t *testing.T) {
	x := New(storeWith(nil), nil)
	ctx := context.Background()

	out, err := x.Expand(ctx, "plain text")
	require.NoError(t, err)
	require.Equal(t, "plain text", out)

	out, err = x.Expand(ctx, "a $$ sign")
	require.NoError(t, err)
	require.Equal(t, "a $ sign", out)
}

func TestExpand_VariableForms(t *testing.T) {
	x := New(storeWith(map[string]string{
		"X":    "value",
		"Y":    "$(X)",
		"name": "X",
	}), nil)
	ctx := context.Background()

	for _, tc := range []struct{ in, want string }{
		{"$(X)", "value"},
		{"${X}", "value"},
		{"$(Y)", "value"},       // recursive re-expansion
		{"$($(name))", "value"}, // computed name
		{"$X", "value"},         // single-character reference
	} {
		out, err := x.Expand(ctx, tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, out, "input %q", tc.in)
	}
}

func TestExpand_SimpleFlavorIsFrozen(t *testing.T) {
	s := vars.NewStore()
	s.Install("B", &vars.Value{Static: "x", Recurse: true, Origin: vars.OriginFile})
	// A := $(B) captured before B changes would have been "old".
	s.Install("A", &vars.Value{Static: "old", Origin: vars.OriginFile})
	x := New(s, nil)

	out, err := x.Expand(context.Background(), "$(A)")
	require.NoError(t, err)
	require.Equal(t, "old", out)
}

func TestExpand_SubstitutionReference(t *testing.T) {
	x := New(storeWith(map[string]string{
		"OBJS": "a.o b.o c.o",
		"SRCS": "x.c y.c",
	}), nil)
	ctx := context.Background()

	out, err := x.Expand(ctx, "$(OBJS:.o=.c)")
	require.NoError(t, err)
	require.Equal(t, "a.c b.c c.c", out)

	out, err = x.Expand(ctx, "$(SRCS:%.c=%.o)")
	require.NoError(t, err)
	require.Equal(t, "x.o y.o", out)
}

func TestExpand_UnterminatedReferenceFails(t *testing.T) {
	x := New(storeWith(nil), nil)
	_, err := x.Expand(context.Background(), "$(OOPS")
	require.Error(t, err)
}

func TestExpand_RecursionGuardReturnsInput(t *testing.T) {
	s := vars.NewStore()
	s.Install("A", &vars.Value{Static: "$(A)", Recurse: true, Origin: vars.OriginFile})
	x := New(s, nil)

	out, err := x.Expand(context.Background(), "$(A)")
	require.NoError(t, err)
	require.Equal(t, "$(A)", out)
}

func TestExpand_OverlayAndPrivate(t *testing.T) {
	global := storeWith(map[string]string{"MSG": "outer"})
	scope := vars.NewStore()
	scope.Install("MSG", &vars.Value{Static: "inner", Private: true, Origin: vars.OriginFile})

	x := New(global, nil)
	ctx := context.Background()

	out, _ := x.With(scope).Expand(ctx, "$(MSG)")
	require.Equal(t, "inner", out)

	out, _ = x.With(scope).WithoutPrivate().Expand(ctx, "$(MSG)")
	require.Equal(t, "outer", out, "private entries are invisible to prerequisites")

	// The parent view is untouched.
	out, _ = x.Expand(ctx, "$(MSG)")
	require.Equal(t, "outer", out)
}

func TestMatch(t *testing.T) {
	for _, tc := range []struct {
		pattern, word, stem string
		ok                  bool
	}{
		{"%.o", "foo.o", "foo", true},
		{"%.o", "foo.c", "", false},
		{"lib%.a", "libm.a", "m", true},
		{"%", "anything", "anything", true},
		{"exact", "exact", "", true},
		{"exact", "other", "", false},
	} {
		stem, ok := Match(tc.pattern, tc.word)
		require.Equal(t, tc.ok, ok, "%s vs %s", tc.pattern, tc.word)
		require.Equal(t, tc.stem, stem, "%s vs %s", tc.pattern, tc.word)
	}
}

func TestPatSubst(t *testing.T) {
	out := PatSubst("%.c", "%.o", []string{"a.c", "b.c", "keep.h"})
	require.Equal(t, []string{"a.o", "b.o", "keep.h"}, out)
}

func TestSplitArgs(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, splitArgs("a,b,c"))
	require.Equal(t, []string{"$(f a,b)", "c"}, splitArgs("$(f a,b),c"))
	require.Equal(t, []string{"only"}, splitArgs("only"))
}
