package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/specialistvlad/gomake/internal/caps"
	"github.com/specialistvlad/gomake/internal/ctxlog"
	"github.com/specialistvlad/gomake/internal/expand"
	"github.com/specialistvlad/gomake/internal/funcs"
	"github.com/specialistvlad/gomake/internal/parse"
	"github.com/specialistvlad/gomake/internal/vars"
)

// Features is the constant advertised through the .FEATURES builtin.
const Features = "target-specific order-only second-expansion else-if " +
	"shortest-stem undefine oneshell grouped-target wait output-sync shuffle"

// makeVersion is the compatibility level reported by MAKE_VERSION.
const makeVersion = "4.4"

// App encapsulates one engine instance: its variable store, expander,
// function library, parser and capabilities. Load parses makefiles; Run
// builds goals. Engine state such as CURDIR, MAKEFILE_LIST and .SHELLEXIT
// lives on the App, never in process globals.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *Config

	fs    caps.FileSystem
	shell caps.Shell

	store  *vars.Store
	x      *expand.Expander
	lib    *funcs.Library
	parser *parse.Parser

	curdir          string
	env             []string
	makefileList    []string
	userDefaultGoal string
}

// NewApp constructs a fully wired engine instance with its own isolated
// logger. Capability defaults are the OS-backed implementations.
func NewApp(outW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	a := &App{
		outW:   outW,
		logger: logger,
		cfg:    cfg,
		fs:     cfg.FS,
		shell:  cfg.Shell,
	}
	a.curdir = cfg.Directory
	if a.curdir == "" {
		wd, err := os.Getwd()
		if err != nil {
			// Without a working directory nothing downstream can work.
			panic(fmt.Errorf("cannot determine working directory: %w", err))
		}
		a.curdir = wd
	}

	if a.fs == nil {
		a.fs = caps.NewOSFileSystemAt(a.curdir)
	}
	if a.shell == nil {
		a.shell = caps.NewOSShell()
	}

	a.env = cfg.Env
	if a.env == nil {
		a.env = os.Environ()
	}

	a.store = vars.NewStore()
	a.store.EnvOverrides = cfg.EnvOverrides

	a.lib = funcs.New(funcs.Config{
		FS:       a.fs,
		ShellRun: a.shellRun,
		Curdir:   func() string { return a.curdir },
		Info: func(msg string) {
			fmt.Fprintln(outW, msg)
		},
		Warn: func(msg string) {
			logger.Warn(msg)
		},
	})

	a.x = expand.New(a.store, a.lib).WarnUndef(cfg.WarnUndef)
	a.x.OnWarnUndef = func(name string) {
		logger.Warn("Reference to undefined variable.", "name", name)
	}

	a.parser = parse.New(a.store, a.x)
	a.parser.LoadInclude = a.loadInclude
	a.parser.ShellRun = func(ctx context.Context, cmd string) (string, error) {
		out, _, err := a.shellRun(ctx, cmd)
		return out, err
	}

	a.installBuiltins()
	a.importEnvironment()
	a.installOverrides()

	logger.Debug("Engine instance assembled.", "curdir", a.curdir)
	return a
}

// Expander exposes the engine's expander, primarily for embedders and
// tests.
func (a *App) Expander() *expand.Expander {
	return a.x
}

// installBuiltins wires the computed variables that reflect live engine
// state back into the store.
func (a *App) installBuiltins() {
	computed := func(name string, get func() string, set func(string)) {
		a.store.Install(name, &vars.Value{Origin: vars.OriginDefault, Get: get, Set: set})
	}
	static := func(name, value string, origin vars.Origin) {
		a.store.Install(name, &vars.Value{Static: value, Origin: origin})
	}

	computed("CURDIR", func() string { return a.curdir }, nil)
	computed(".VARIABLES", func() string { return strings.Join(a.store.Names(), " ") }, nil)
	computed(".FEATURES", func() string { return Features }, nil)
	computed(".INCLUDE_DIRS", func() string { return strings.Join(a.cfg.IncludeDirs, " ") }, nil)
	computed("MAKEFILE_LIST", func() string { return strings.Join(a.makefileList, " ") }, nil)
	computed(".SUFFIXES", func() string { return strings.Join(a.parser.Suffixes, " ") }, nil)
	computed(".DEFAULT_GOAL",
		func() string {
			if a.userDefaultGoal != "" {
				return a.userDefaultGoal
			}
			return a.firstTarget()
		},
		func(v string) { a.userDefaultGoal = strings.TrimSpace(v) })

	static("SHELL", "/bin/sh", vars.OriginDefault)
	static("MAKESHELL", "", vars.OriginDefault)
	static("MAKE_VERSION", makeVersion, vars.OriginDefault)
	static("MAKE_HOST", runtime.GOARCH+"-"+runtime.GOOS, vars.OriginDefault)
	static(".RECIPEPREFIX", "", vars.OriginDefault)
	static("MAKELEVEL", strconv.Itoa(a.cfg.MakeLevel), vars.OriginEnvironment)

	mk := &vars.Value{Static: "make", Origin: vars.OriginDefault, Export: true}
	a.store.Install("MAKE", mk)
}

// importEnvironment snapshots the environment into the store. SHELL is
// never imported; makefiles control their own shell.
func (a *App) importEnvironment() {
	for _, pair := range a.env {
		eq := strings.IndexByte(pair, '=')
		if eq <= 0 {
			continue
		}
		name, value := pair[:eq], pair[eq+1:]
		if name == "SHELL" || name == "MAKELEVEL" {
			continue
		}
		// Engine-state builtins keep their live descriptors.
		if cur, ok := a.store.Lookup(name); ok && cur.Get != nil {
			continue
		}
		a.store.Install(name, &vars.Value{Static: value, Recurse: true, Origin: vars.OriginEnvironment})
	}
}

// installOverrides applies command-line NAME=VALUE definitions.
func (a *App) installOverrides() {
	for name, value := range a.cfg.Vars {
		err := a.store.Assign(name, vars.OpRecursive, value, vars.OriginCommandLine, vars.AssignOpts{Export: true})
		if err != nil {
			a.logger.Warn("Ignoring bad command-line definition.", "name", name, "error", err)
		}
	}
}

// firstTarget finds the default goal: the first exact, non-dot target of
// any parsed rule.
func (a *App) firstTarget() string {
	ctx := ctxlog.WithLogger(context.Background(), a.logger)
	for _, e := range a.parser.Entries {
		text, err := a.x.Expand(ctx, e.Targets)
		if err != nil {
			continue
		}
		for _, w := range strings.Fields(text) {
			if strings.HasPrefix(w, ".") || strings.Contains(w, "%") {
				continue
			}
			return w
		}
	}
	return ""
}

// shellRun executes one command line for the shell function and for !=
// assignments, collecting stdout.
func (a *App) shellRun(ctx context.Context, cmd string) (string, int, error) {
	var buf bytes.Buffer
	shellPath := a.x.Value("SHELL")
	if shellPath == "" {
		shellPath = "/bin/sh"
	}
	exitCode, err := a.shell.Spawn(ctx, caps.Command{
		Line:  cmd,
		Dir:   a.curdir,
		Env:   a.env,
		Shell: shellPath,
	}, func(chunk []byte) { buf.Write(chunk) })
	if err != nil {
		return "", exitCode, err
	}
	return buf.String(), exitCode, nil
}
