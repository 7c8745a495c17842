package funcs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/specialistvlad/gomake/internal/expand"
)

func (l *Library) registerLogic() {
	// if is raw so only the taken branch is expanded.
	l.Register("if", expand.Func{Raw: true, Fn: func(ctx context.Context, x *expand.Expander, args []string) (string, error) {
		if err := arity("if", args, 2, 3); err != nil {
			return "", err
		}
		cond, err := x.Expand(ctx, args[0])
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(cond) != "" {
			return x.Expand(ctx, args[1])
		}
		if len(args) == 3 {
			return x.Expand(ctx, args[2])
		}
		return "", nil
	}})

	// or returns the first truthy argument, expanding no further.
	l.Register("or", expand.Func{Raw: true, Fn: func(ctx context.Context, x *expand.Expander, args []string) (string, error) {
		for _, a := range args {
			v, err := x.Expand(ctx, a)
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(v) != "" {
				return v, nil
			}
		}
		return "", nil
	}})

	// and returns "" at the first falsy argument, else the last value.
	l.Register("and", expand.Func{Raw: true, Fn: func(ctx context.Context, x *expand.Expander, args []string) (string, error) {
		var last string
		for _, a := range args {
			v, err := x.Expand(ctx, a)
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(v) == "" {
				return "", nil
			}
			last = v
		}
		return last, nil
	}})

	l.Register("intcmp", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("intcmp", args, 2, 5); err != nil {
			return "", err
		}
		lhs, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
		if err != nil {
			return "", fmt.Errorf("function %q: non-integer %q", "intcmp", args[0])
		}
		rhs, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
		if err != nil {
			return "", fmt.Errorf("function %q: non-integer %q", "intcmp", args[1])
		}
		pick := func(i int, fallback string) string {
			if len(args) > i {
				return args[i]
			}
			return fallback
		}
		switch {
		case lhs < rhs:
			return pick(2, ""), nil
		case lhs == rhs:
			// With only two arguments, equality yields the number itself.
			if len(args) == 2 {
				return strings.TrimSpace(args[0]), nil
			}
			return pick(3, ""), nil
		default:
			return pick(4, ""), nil
		}
	}})

	l.Register("value", expand.Func{Fn: func(_ context.Context, x *expand.Expander, args []string) (string, error) {
		if err := arity("value", args, 1, 1); err != nil {
			return "", err
		}
		return x.Value(strings.TrimSpace(args[0])), nil
	}})

	l.Register("origin", expand.Func{Fn: func(_ context.Context, x *expand.Expander, args []string) (string, error) {
		if err := arity("origin", args, 1, 1); err != nil {
			return "", err
		}
		v, ok := x.Lookup(strings.TrimSpace(args[0]))
		if !ok {
			return "undefined", nil
		}
		return v.Origin.String(), nil
	}})

	l.Register("flavor", expand.Func{Fn: func(_ context.Context, x *expand.Expander, args []string) (string, error) {
		if err := arity("flavor", args, 1, 1); err != nil {
			return "", err
		}
		v, ok := x.Lookup(strings.TrimSpace(args[0]))
		if !ok {
			return "undefined", nil
		}
		return v.Flavor(), nil
	}})
}
