package funcs

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/specialistvlad/gomake/internal/expand"
)

func (l *Library) registerStrings() {
	l.Register("subst", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("subst", args, 3, 3); err != nil {
			return "", err
		}
		return strings.ReplaceAll(args[2], args[0], args[1]), nil
	}})

	l.Register("patsubst", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("patsubst", args, 3, 3); err != nil {
			return "", err
		}
		return strings.Join(expand.PatSubst(args[0], args[1], expand.Words(args[2])), " "), nil
	}})

	l.Register("strip", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("strip", args, 1, 1); err != nil {
			return "", err
		}
		return strings.Join(expand.Words(args[0]), " "), nil
	}})

	l.Register("findstring", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("findstring", args, 2, 2); err != nil {
			return "", err
		}
		if strings.Contains(args[1], args[0]) {
			return args[0], nil
		}
		return "", nil
	}})

	l.Register("filter", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("filter", args, 2, 2); err != nil {
			return "", err
		}
		return filterWords(args[0], args[1], true), nil
	}})

	l.Register("filter-out", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("filter-out", args, 2, 2); err != nil {
			return "", err
		}
		return filterWords(args[0], args[1], false), nil
	}})

	l.Register("sort", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("sort", args, 1, 1); err != nil {
			return "", err
		}
		words := expand.Words(args[0])
		sort.Strings(words)
		out := words[:0]
		var prev string
		for i, w := range words {
			if i == 0 || w != prev {
				out = append(out, w)
			}
			prev = w
		}
		return strings.Join(out, " "), nil
	}})

	l.Register("word", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("word", args, 2, 2); err != nil {
			return "", err
		}
		n, err := wordIndex("word", args[0])
		if err != nil {
			return "", err
		}
		words := expand.Words(args[1])
		if n > len(words) {
			return "", nil
		}
		return words[n-1], nil
	}})

	l.Register("words", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("words", args, 1, 1); err != nil {
			return "", err
		}
		return strconv.Itoa(len(expand.Words(args[0]))), nil
	}})

	l.Register("wordlist", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("wordlist", args, 3, 3); err != nil {
			return "", err
		}
		start, err := wordIndex("wordlist", args[0])
		if err != nil {
			return "", err
		}
		end, err := strconv.Atoi(strings.TrimSpace(args[1]))
		if err != nil {
			return "", fmt.Errorf("function %q: bad end index %q", "wordlist", args[1])
		}
		words := expand.Words(args[2])
		if start > len(words) || end < start {
			return "", nil
		}
		if end > len(words) {
			end = len(words)
		}
		return strings.Join(words[start-1:end], " "), nil
	}})

	l.Register("firstword", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("firstword", args, 1, 1); err != nil {
			return "", err
		}
		words := expand.Words(args[0])
		if len(words) == 0 {
			return "", nil
		}
		return words[0], nil
	}})

	l.Register("lastword", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("lastword", args, 1, 1); err != nil {
			return "", err
		}
		words := expand.Words(args[0])
		if len(words) == 0 {
			return "", nil
		}
		return words[len(words)-1], nil
	}})

	l.Register("join", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("join", args, 2, 2); err != nil {
			return "", err
		}
		a, b := expand.Words(args[0]), expand.Words(args[1])
		n := len(a)
		if len(b) > n {
			n = len(b)
		}
		out := make([]string, 0, n)
		for i := 0; i < n; i++ {
			var w string
			if i < len(a) {
				w = a[i]
			}
			if i < len(b) {
				w += b[i]
			}
			out = append(out, w)
		}
		return strings.Join(out, " "), nil
	}})

	l.Register("addsuffix", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("addsuffix", args, 2, 2); err != nil {
			return "", err
		}
		words := expand.Words(args[1])
		for i := range words {
			words[i] += args[0]
		}
		return strings.Join(words, " "), nil
	}})

	l.Register("addprefix", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("addprefix", args, 2, 2); err != nil {
			return "", err
		}
		words := expand.Words(args[1])
		for i := range words {
			words[i] = args[0] + words[i]
		}
		return strings.Join(words, " "), nil
	}})
}

// filterWords keeps (or drops) the words of text matching any %-pattern.
func filterWords(patterns, text string, keep bool) string {
	pats := expand.Words(patterns)
	var out []string
	for _, w := range expand.Words(text) {
		matched := false
		for _, p := range pats {
			if _, ok := expand.Match(p, w); ok {
				matched = true
				break
			}
		}
		if matched == keep {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}

// wordIndex parses a 1-based index argument.
func wordIndex(fn, arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("function %q: non-numeric index %q", fn, arg)
	}
	if n < 1 {
		return 0, fmt.Errorf("function %q: index %d must be at least 1", fn, n)
	}
	return n, nil
}
