package app

import (
	"context"
	"errors"
	"strings"

	"github.com/specialistvlad/gomake/internal/caps"
	"github.com/specialistvlad/gomake/internal/ctxlog"
	"github.com/specialistvlad/gomake/internal/expand"
	"github.com/specialistvlad/gomake/internal/rules"
	"github.com/specialistvlad/gomake/internal/run"
)

// errNoGoals reports a run with nothing to do.
var errNoGoals = errors.New("no goals given and no default goal; nothing to build")

// Run builds the configured goals against the loaded makefiles and reports
// whether any recipe ran (or would run, in dry-run and question modes).
func (a *App) Run(ctx context.Context) (bool, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger
	logger.Debug("App.Run started.")

	goals := a.cfg.Goals
	if len(goals) == 0 {
		text, err := a.x.Expand(ctx, "$(.DEFAULT_GOAL)")
		if err != nil {
			return false, err
		}
		goal := strings.TrimSpace(text)
		if goal == "" {
			return false, errNoGoals
		}
		goals = []string{goal}
	}
	logger.Debug("Goals resolved.", "goals", goals)

	table, err := rules.Build(ctx, a.parser.Entries, a.parser.Scopes, a.x)
	if err != nil {
		return false, err
	}

	paths := &caps.SearchResolver{
		FS: a.fs,
		Entries: func() []caps.VPathEntry {
			if len(a.cfg.VPaths) == 0 {
				return a.parser.VPaths
			}
			return append(append([]caps.VPathEntry{}, a.cfg.VPaths...), a.parser.VPaths...)
		},
		GeneralDirs: a.generalVpathDirs(ctx),
	}

	entriesBefore := len(a.parser.Entries)
	scopesBefore := len(a.parser.Scopes)

	runner := run.New(run.Config{
		Options:  a.cfg.Runner,
		FS:       a.fs,
		Shell:    a.shell,
		Jobs:     a.cfg.Jobs,
		Paths:    paths,
		Table:    table,
		Expander: a.x,
		Includes: run.IncludeHooks{
			Deferred: a.parser.DeferredIncludes,
			Reload: func(ctx context.Context, files []string) ([]*rules.Entry, []rules.Scope, error) {
				if _, err := a.loadInclude(ctx, files); err != nil {
					return nil, nil, err
				}
				return a.parser.Entries[entriesBefore:], a.parser.Scopes[scopesBefore:], nil
			},
		},
		Curdir: a.curdir,
		ShellPath: func() string {
			if sh := a.x.Value("MAKESHELL"); sh != "" {
				return sh
			}
			if sh := a.x.Value("SHELL"); sh != "" {
				return sh
			}
			return "/bin/sh"
		},
		MakeLevel: a.cfg.MakeLevel,
		BaseEnv:   a.env,
	})

	logger.Info("Starting build.", "goals", goals, "jobs", a.cfg.Runner.Jobs)
	worked, err := runner.Run(ctx, goals)
	if err != nil {
		logger.Error("Build failed.", "error", err)
		return worked, err
	}
	logger.Info("Build finished.", "workPerformed", worked)
	return worked, nil
}

// generalVpathDirs reads the VPATH variable per lookup; entries split on
// whitespace and colons.
func (a *App) generalVpathDirs(ctx context.Context) func() []string {
	return func() []string {
		text, err := a.x.Expand(ctx, "$(VPATH)")
		if err != nil {
			return nil
		}
		var dirs []string
		for _, w := range expand.Words(text) {
			for _, d := range strings.Split(w, ":") {
				if d != "" {
					dirs = append(dirs, d)
				}
			}
		}
		return dirs
	}
}
