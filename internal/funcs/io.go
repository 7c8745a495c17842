package funcs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/specialistvlad/gomake/internal/ctxlog"
	"github.com/specialistvlad/gomake/internal/expand"
	"github.com/specialistvlad/gomake/internal/vars"
)

// UserError is the failure raised by the error function. It aborts whatever
// expansion triggered it.
type UserError struct {
	Msg string
}

// Error implements the error interface.
func (e *UserError) Error() string {
	return e.Msg
}

func (l *Library) registerIO() {
	l.Register("file", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		if err := arity("file", args, 1, 2); err != nil {
			return "", err
		}
		arg := strings.TrimSpace(args[0])
		var op, name string
		switch {
		case strings.HasPrefix(arg, ">>"):
			op, name = ">>", strings.TrimSpace(arg[2:])
		case strings.HasPrefix(arg, ">"):
			op, name = ">", strings.TrimSpace(arg[1:])
		case strings.HasPrefix(arg, "<"):
			op, name = "<", strings.TrimSpace(arg[1:])
		default:
			return "", fmt.Errorf("function %q: bad mode in %q", "file", arg)
		}
		if name == "" {
			return "", fmt.Errorf("function %q: missing file name in %q", "file", arg)
		}
		switch op {
		case "<":
			text, err := l.cfg.FS.ReadFile(name)
			if err != nil {
				return "", fmt.Errorf("file: read %s: %w", name, err)
			}
			return strings.TrimRight(text, "\n"), nil
		default:
			var text string
			if len(args) == 2 {
				text = args[1]
				if !strings.HasSuffix(text, "\n") {
					text += "\n"
				}
			}
			if err := l.cfg.FS.WriteFile(name, text, op == ">>"); err != nil {
				return "", fmt.Errorf("file: write %s: %w", name, err)
			}
			return "", nil
		}
	}})

	l.Register("error", expand.Func{Fn: func(_ context.Context, _ *expand.Expander, args []string) (string, error) {
		return "", &UserError{Msg: strings.Join(args, ",")}
	}})

	l.Register("warning", expand.Func{Fn: func(ctx context.Context, _ *expand.Expander, args []string) (string, error) {
		msg := strings.Join(args, ",")
		if l.cfg.Warn != nil {
			l.cfg.Warn(msg)
		} else {
			ctxlog.FromContext(ctx).Warn(msg)
		}
		return "", nil
	}})

	l.Register("info", expand.Func{Fn: func(ctx context.Context, _ *expand.Expander, args []string) (string, error) {
		msg := strings.Join(args, ",")
		if l.cfg.Info != nil {
			l.cfg.Info(msg)
		} else {
			ctxlog.FromContext(ctx).Info(msg)
		}
		return "", nil
	}})

	l.Register("shell", expand.Func{Fn: func(ctx context.Context, x *expand.Expander, args []string) (string, error) {
		if l.cfg.ShellRun == nil {
			return "", fmt.Errorf("function %q: no shell capability wired", "shell")
		}
		cmd := strings.Join(args, ",")
		out, exitCode, err := l.cfg.ShellRun(ctx, cmd)
		if err != nil {
			return "", fmt.Errorf("shell: %w", err)
		}
		x.Global().Install(".SHELLEXIT", &vars.Value{Static: strconv.Itoa(exitCode), Origin: vars.OriginAutomatic})
		out = strings.TrimRight(out, "\n")
		return strings.ReplaceAll(out, "\n", " "), nil
	}})

	// eval feeds its expanded argument back through the parser, so
	// makefile text can be generated at expansion time.
	l.Register("eval", expand.Func{Fn: func(ctx context.Context, x *expand.Expander, args []string) (string, error) {
		if x.Eval == nil {
			return "", fmt.Errorf("function %q: parser not wired", "eval")
		}
		if err := x.Eval(ctx, strings.Join(args, ",")); err != nil {
			return "", err
		}
		return "", nil
	}})
}
