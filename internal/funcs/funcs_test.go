package funcs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gomake/internal/expand"
	"github.com/specialistvlad/gomake/internal/funcs"
	"github.com/specialistvlad/gomake/internal/testutil"
	"github.com/specialistvlad/gomake/internal/vars"
)

// newExpander builds an expander over an in-memory filesystem and the
// given variable bindings.
func newExpander(t *testing.T, fs *testutil.MemFS, bindings map[string]string) *expand.Expander {
	t.Helper()
	if fs == nil {
		fs = testutil.NewMemFS()
	}
	store := vars.NewStore()
	for k, v := range bindings {
		store.Install(k, &vars.Value{Static: v, Recurse: true, Origin: vars.OriginFile})
	}
	lib := funcs.New(funcs.Config{
		FS:     fs,
		Curdir: func() string { return "/work" },
	})
	return expand.New(store, lib)
}

func expandOK(t *testing.T, x *expand.Expander, in string) string {
	t.Helper()
	out, err := x.Expand(context.Background(), in)
	require.NoError(t, err, "expanding %q", in)
	return out
}

func TestStringFunctions(t *testing.T) {
	x := newExpander(t, nil, map[string]string{"LIST": "c b a c"})

	for _, tc := range []struct{ in, want string }{
		{"$(subst ee,EE,feet on the street)", "fEEt on the strEEt"},
		{"$(patsubst %.c,%.o,x.c bar.c keep.h)", "x.o bar.o keep.h"},
		{"$(strip   a  b   c )", "a b c"},
		{"$(findstring a,a b c)", "a"},
		{"$(findstring z,a b c)", ""},
		{"$(filter %.c %.s,foo.c bar.o baz.s)", "foo.c baz.s"},
		{"$(filter-out %.c,foo.c bar.o)", "bar.o"},
		{"$(sort $(LIST))", "a b c"},
		{"$(word 2,a b c)", "b"},
		{"$(word 5,a b c)", ""},
		{"$(words a b c)", "3"},
		{"$(wordlist 2,3,a b c d)", "b c"},
		{"$(firstword a b)", "a"},
		{"$(lastword a b)", "b"},
		{"$(join a b,.c .o)", "a.c b.o"},
		{"$(join a b c,.x)", "a.x b c"},
		{"$(addsuffix .o,a b)", "a.o b.o"},
		{"$(addprefix src/,a b)", "src/a src/b"},
	} {
		require.Equal(t, tc.want, expandOK(t, x, tc.in), "input %q", tc.in)
	}
}

func TestWordErrors(t *testing.T) {
	x := newExpander(t, nil, nil)
	_, err := x.Expand(context.Background(), "$(word 0,a b)")
	require.Error(t, err)
	_, err = x.Expand(context.Background(), "$(word x,a b)")
	require.Error(t, err)
}

func TestPathFunctions(t *testing.T) {
	fs := testutil.NewMemFS()
	fs.Put("/work/src/a.c", "")
	fs.Put("/work/src/b.c", "")
	x := newExpander(t, fs, nil)

	for _, tc := range []struct{ in, want string }{
		{"$(dir src/foo.c bar.h)", "src/ ./"},
		{"$(notdir src/foo.c bar.h)", "foo.c bar.h"},
		{"$(suffix src/foo.c bar.h none)", ".c .h"},
		{"$(basename src/foo.c bar.h)", "src/foo bar"},
		{"$(abspath foo/../bar)", "/work/bar"},
		{"$(wildcard /work/src/*.c)", "/work/src/a.c /work/src/b.c"},
	} {
		require.Equal(t, tc.want, expandOK(t, x, tc.in), "input %q", tc.in)
	}
}

func TestConditionalFunctions(t *testing.T) {
	x := newExpander(t, nil, map[string]string{"SET": "yes", "EMPTY": ""})

	for _, tc := range []struct{ in, want string }{
		{"$(if $(SET),then,else)", "then"},
		{"$(if $(EMPTY),then,else)", "else"},
		{"$(if $(EMPTY),then)", ""},
		{"$(or $(EMPTY),fallback)", "fallback"},
		{"$(or first,second)", "first"},
		{"$(and a,b,c)", "c"},
		{"$(and a,$(EMPTY),c)", ""},
		{"$(intcmp 1,2,lt,eq,gt)", "lt"},
		{"$(intcmp 2,2,lt,eq,gt)", "eq"},
		{"$(intcmp 3,2,lt,eq,gt)", "gt"},
		{"$(intcmp 5,5)", "5"},
	} {
		require.Equal(t, tc.want, expandOK(t, x, tc.in), "input %q", tc.in)
	}
}

func TestIfOnlyExpandsTakenBranch(t *testing.T) {
	x := newExpander(t, nil, map[string]string{"COND": "y"})
	// The else branch calls error; taking it would fail the expansion.
	out, err := x.Expand(context.Background(), "$(if $(COND),ok,$(error boom))")
	require.NoError(t, err)
	require.Equal(t, "ok", out)
}

func TestMetaFunctions(t *testing.T) {
	x := newExpander(t, nil, map[string]string{"REC": "$(OTHER)"})

	require.Equal(t, "$(OTHER)", expandOK(t, x, "$(value REC)"))
	require.Equal(t, "file", expandOK(t, x, "$(origin REC)"))
	require.Equal(t, "undefined", expandOK(t, x, "$(origin NOPE)"))
	require.Equal(t, "recursive", expandOK(t, x, "$(flavor REC)"))
	require.Equal(t, "undefined", expandOK(t, x, "$(flavor NOPE)"))
}

func TestControlFunctions(t *testing.T) {
	x := newExpander(t, nil, map[string]string{
		"reverse": "$(2) $(1)",
	})

	require.Equal(t, "a.x b.x c.x", expandOK(t, x, "$(foreach f,a b c,$(f).x)"))
	require.Equal(t, "b a", expandOK(t, x, "$(call reverse,a,b)"))
	require.Equal(t, "first=1 rest=2 3", expandOK(t, x, "$(let a b,1 2 3,first=$(a) rest=$(b))"))
}

func TestErrorFunctionAborts(t *testing.T) {
	x := newExpander(t, nil, nil)
	_, err := x.Expand(context.Background(), "$(error something broke)")
	require.Error(t, err)
	require.Contains(t, err.Error(), "something broke")
}

func TestFileFunction(t *testing.T) {
	fs := testutil.NewMemFS()
	x := newExpander(t, fs, nil)
	ctx := context.Background()

	_, err := x.Expand(ctx, "$(file > out.txt,hello)")
	require.NoError(t, err)
	require.Equal(t, "hello\n", fs.Content("out.txt"))

	_, err = x.Expand(ctx, "$(file >> out.txt,more)")
	require.NoError(t, err)
	require.Equal(t, "hello\nmore\n", fs.Content("out.txt"))

	out, err := x.Expand(ctx, "$(file < out.txt)")
	require.NoError(t, err)
	require.Equal(t, "hello\nmore", out)
}

func TestShellFunctionSetsShellExit(t *testing.T) {
	store := vars.NewStore()
	lib := funcs.New(funcs.Config{
		FS:     testutil.NewMemFS(),
		Curdir: func() string { return "/work" },
		ShellRun: func(_ context.Context, cmd string) (string, int, error) {
			return "one\ntwo\n", 3, nil
		},
	})
	x := expand.New(store, lib)

	out, err := x.Expand(context.Background(), "$(shell anything)")
	require.NoError(t, err)
	require.Equal(t, "one two", out)

	v, ok := store.Lookup(".SHELLEXIT")
	require.True(t, ok)
	require.Equal(t, "3", v.Text())
}
