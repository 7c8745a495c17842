package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/specialistvlad/gomake/internal/ctxlog"
)

// defaultNames are tried in order when no makefile is named explicitly.
var defaultNames = []string{"GNUmakefile", "makefile", "Makefile"}

// Load parses the configured makefiles. It must be called before Run.
func (a *App) Load(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger

	files := a.cfg.Makefiles
	if len(files) == 0 {
		for _, name := range defaultNames {
			if a.fs.Timestamp(filepath.Join(a.curdir, name)) != 0 {
				files = []string{name}
				break
			}
		}
		if len(files) == 0 {
			return fmt.Errorf("no makefile found in %s", a.curdir)
		}
	}

	logger.Debug("Loading makefiles.", "files", files)
	failed, err := a.loadInclude(ctx, files)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("cannot read makefile(s): %v", failed)
	}
	logger.Info("Makefiles loaded.", "rules", len(a.parser.Entries), "variables", a.store.Len())
	return nil
}

// ParseString feeds makefile text directly into the engine, for embedders
// that do not go through files.
func (a *App) ParseString(ctx context.Context, text, name string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.makefileList = append(a.makefileList, name)
	return a.parser.ParseString(ctx, text, name)
}

// loadInclude is the engine's include loader: it resolves each file
// against the working directory and the include path, parses what it
// finds, and reports the rest as failed.
func (a *App) loadInclude(ctx context.Context, files []string) ([]string, error) {
	logger := ctxlog.FromContext(ctx)
	var failed []string
	for _, file := range files {
		path, ok := a.findFile(file)
		if !ok {
			logger.Debug("Include file not found.", "file", file)
			failed = append(failed, file)
			continue
		}
		text, err := a.fs.ReadFile(path)
		if err != nil {
			logger.Debug("Include file unreadable.", "file", path, "error", err)
			failed = append(failed, file)
			continue
		}
		a.makefileList = append(a.makefileList, file)
		if err := a.parser.ParseString(ctx, text, file); err != nil {
			return failed, err
		}
	}
	return failed, nil
}

// findFile resolves a makefile name against the working directory, then
// the -I include directories.
func (a *App) findFile(file string) (string, bool) {
	if filepath.IsAbs(file) {
		if a.fs.Timestamp(file) != 0 {
			return file, true
		}
		return "", false
	}
	cand := filepath.Join(a.curdir, file)
	if a.fs.Timestamp(cand) != 0 {
		return cand, true
	}
	for _, dir := range a.cfg.IncludeDirs {
		cand := filepath.Join(dir, file)
		if a.fs.Timestamp(cand) != 0 {
			return cand, true
		}
	}
	return "", false
}
