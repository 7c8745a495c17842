package funcs

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/gomake/internal/expand"
)

func (l *Library) registerPaths() {
	l.Register("dir", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("dir", args, 1, 1); err != nil {
			return "", err
		}
		return mapWords(args[0], func(w string) string {
			i := strings.LastIndexByte(w, '/')
			if i < 0 {
				return "./"
			}
			return w[:i+1]
		}), nil
	}})

	l.Register("notdir", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("notdir", args, 1, 1); err != nil {
			return "", err
		}
		return mapWords(args[0], func(w string) string {
			i := strings.LastIndexByte(w, '/')
			return w[i+1:]
		}), nil
	}})

	l.Register("suffix", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("suffix", args, 1, 1); err != nil {
			return "", err
		}
		var out []string
		for _, w := range expand.Words(args[0]) {
			if s := extOf(w); s != "" {
				out = append(out, s)
			}
		}
		return strings.Join(out, " "), nil
	}})

	l.Register("basename", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("basename", args, 1, 1); err != nil {
			return "", err
		}
		return mapWords(args[0], func(w string) string {
			return strings.TrimSuffix(w, extOf(w))
		}), nil
	}})

	l.Register("realpath", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("realpath", args, 1, 1); err != nil {
			return "", err
		}
		var out []string
		for _, w := range expand.Words(args[0]) {
			if p, err := l.cfg.FS.Realpath(w); err == nil {
				out = append(out, p)
			}
		}
		return strings.Join(out, " "), nil
	}})

	l.Register("abspath", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("abspath", args, 1, 1); err != nil {
			return "", err
		}
		return mapWords(args[0], func(w string) string {
			if !filepath.IsAbs(w) {
				w = filepath.Join(l.cfg.Curdir(), w)
			}
			return filepath.Clean(w)
		}), nil
	}})

	l.Register("wildcard", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("wildcard", args, 1, 1); err != nil {
			return "", err
		}
		var out []string
		for _, pattern := range expand.Words(args[0]) {
			matches, err := l.cfg.FS.Glob(pattern)
			if err != nil {
				continue
			}
			out = append(out, matches...)
		}
		return strings.Join(out, " "), nil
	}})
}

// extOf returns the last extension of w including its dot, or "".
func extOf(w string) string {
	base := w
	if i := strings.LastIndexByte(w, '/'); i >= 0 {
		base = w[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return base[i:]
	}
	return ""
}

func mapWords(text string, f func(string) string) string {
	words := expand.Words(text)
	for i, w := range words {
		words[i] = f(w)
	}
	return strings.Join(words, " ")
}
