package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/gomake/internal/app"
	"github.com/specialistvlad/gomake/internal/profile"
	"github.com/specialistvlad/gomake/internal/run"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// Parse processes command-line arguments. It returns a populated engine
// config, a boolean indicating a clean early exit (help), or an ExitError.
func Parse(args []string, env []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("gomake", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
gomake - an embeddable GNU-Make-compatible build engine.

Usage:
  gomake [options] [NAME=VALUE ...] [goals ...]

Options:
`)
		flagSet.PrintDefaults()
	}

	var makefiles, includeDirs, assumeOld, assumeNew stringList
	flagSet.Var(&makefiles, "f", "Makefile to read (repeatable).")
	flagSet.Var(&includeDirs, "I", "Directory to search for included makefiles (repeatable).")
	flagSet.Var(&assumeOld, "o", "Consider FILE very old, never remake it (repeatable).")
	flagSet.Var(&assumeNew, "W", "Consider FILE infinitely new (repeatable).")

	dirFlag := flagSet.String("C", "", "Change to directory before doing anything.")
	jobsFlag := flagSet.Int("j", 1, "Number of recipes to run in parallel.")
	dryRunFlag := flagSet.Bool("n", false, "Print recipes instead of running them.")
	questionFlag := flagSet.Bool("q", false, "Run no recipes; exit status says if up to date.")
	touchFlag := flagSet.Bool("t", false, "Touch targets instead of remaking them.")
	keepGoingFlag := flagSet.Bool("k", false, "Keep going when some targets fail.")
	alwaysFlag := flagSet.Bool("B", false, "Unconditionally make all targets.")
	ignoreFlag := flagSet.Bool("i", false, "Ignore recipe errors.")
	silentFlag := flagSet.Bool("s", false, "Do not echo recipes.")
	envOverridesFlag := flagSet.Bool("e", false, "Environment variables override makefiles.")
	symlinkFlag := flagSet.Bool("L", false, "Use the latest mtime between symlinks and targets.")
	shuffleFlag := flagSet.String("shuffle", "", "Prerequisite shuffle: 'reverse' or a numeric seed.")
	outputSyncFlag := flagSet.String("output-sync", "", "Output grouping: 'target', 'line' or 'recurse'.")
	warnUndefFlag := flagSet.Bool("warn-undef", false, "Warn on references to undefined variables.")
	profileFlag := flagSet.String("profile", "", "HCL run profile to load.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "warn", "Logging level: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	mode := run.ModeNormal
	switch {
	case *questionFlag:
		mode = run.ModeQuestion
	case *dryRunFlag:
		mode = run.ModeDryRun
	case *touchFlag:
		mode = run.ModeTouch
	}

	if *jobsFlag < 1 {
		return nil, false, &ExitError{Code: 2, Message: "-j must be at least 1"}
	}
	switch *outputSyncFlag {
	case "", "target", "line", "recurse":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid -output-sync: must be 'target', 'line' or 'recurse'"}
	}

	// Positional arguments split into goals and NAME=VALUE overrides.
	var goals []string
	vars := make(map[string]string)
	for _, arg := range flagSet.Args() {
		if eq := strings.IndexByte(arg, '='); eq > 0 && !strings.ContainsAny(arg[:eq], " \t") {
			vars[arg[:eq]] = arg[eq+1:]
			continue
		}
		goals = append(goals, arg)
	}

	cfg := &app.Config{
		Makefiles:    makefiles,
		Directory:    *dirFlag,
		Goals:        goals,
		Vars:         vars,
		IncludeDirs:  includeDirs,
		EnvOverrides: *envOverridesFlag,
		WarnUndef:    *warnUndefFlag,
		LogFormat:    strings.ToLower(*logFormatFlag),
		LogLevel:     strings.ToLower(*logLevelFlag),
		Env:          env,
		Runner: run.Options{
			Mode:         mode,
			Jobs:         *jobsFlag,
			Always:       *alwaysFlag,
			KeepGoing:    *keepGoingFlag,
			IgnoreErrors: *ignoreFlag,
			Silent:       *silentFlag,
			CheckSymlink: *symlinkFlag,
			AssumeOld:    assumeOld,
			AssumeNew:    assumeNew,
			Shuffle:      *shuffleFlag,
			OutputSync:   *outputSyncFlag,
		},
	}

	if *profileFlag != "" {
		p, err := profile.Load(*profileFlag, env)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		if err := p.Apply(cfg); err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		slog.Debug("Run profile applied.", "path", *profileFlag)
	}

	slog.Debug("CLI parser finished successfully.")
	return cfg, false, nil
}
