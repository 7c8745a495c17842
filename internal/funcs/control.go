package funcs

import (
	"context"
	"strconv"
	"strings"

	"github.com/specialistvlad/gomake/internal/expand"
	"github.com/specialistvlad/gomake/internal/vars"
)

func (l *Library) registerControl() {
	// foreach binds the loop variable per word and joins the expansions
	// with single spaces.
	l.Register("foreach", expand.Func{Raw: true, Fn: func(ctx context.Context, x *expand.Expander, args []string) (string, error) {
		if err := arity("foreach", args, 3, 3); err != nil {
			return "", err
		}
		name, err := x.Expand(ctx, args[0])
		if err != nil {
			return "", err
		}
		name = strings.TrimSpace(name)
		list, err := x.Expand(ctx, args[1])
		if err != nil {
			return "", err
		}
		var out []string
		for _, w := range expand.Words(list) {
			scope := vars.NewStore()
			scope.Install(name, &vars.Value{Static: w, Origin: vars.OriginAutomatic})
			v, err := x.With(scope).Expand(ctx, args[2])
			if err != nil {
				return "", err
			}
			out = append(out, v)
		}
		return strings.Join(out, " "), nil
	}})

	// let binds names positionally; surplus values collapse into the last
	// name.
	l.Register("let", expand.Func{Raw: true, Fn: func(ctx context.Context, x *expand.Expander, args []string) (string, error) {
		if err := arity("let", args, 3, 3); err != nil {
			return "", err
		}
		namesText, err := x.Expand(ctx, args[0])
		if err != nil {
			return "", err
		}
		valuesText, err := x.Expand(ctx, args[1])
		if err != nil {
			return "", err
		}
		names := expand.Words(namesText)
		values := expand.Words(valuesText)
		scope := vars.NewStore()
		for i, name := range names {
			var v string
			switch {
			case i == len(names)-1 && len(values) > len(names):
				v = strings.Join(values[i:], " ")
			case i < len(values):
				v = values[i]
			}
			scope.Install(name, &vars.Value{Static: v, Origin: vars.OriginAutomatic})
		}
		return x.With(scope).Expand(ctx, args[2])
	}})

	// call binds 0=name and 1..N=arguments, then expands the named
	// variable's raw value in that scope.
	l.Register("call", expand.Func{Raw: true, Fn: func(ctx context.Context, x *expand.Expander, args []string) (string, error) {
		if err := arity("call", args, 1, -1); err != nil {
			return "", err
		}
		name, err := x.Expand(ctx, args[0])
		if err != nil {
			return "", err
		}
		name = strings.TrimSpace(name)
		scope := vars.NewStore()
		scope.Install("0", &vars.Value{Static: name, Origin: vars.OriginAutomatic})
		for i, raw := range args[1:] {
			v, err := x.Expand(ctx, raw)
			if err != nil {
				return "", err
			}
			scope.Install(strconv.Itoa(i+1), &vars.Value{Static: v, Origin: vars.OriginAutomatic})
		}
		return x.With(scope).Expand(ctx, x.Value(name))
	}})
}
