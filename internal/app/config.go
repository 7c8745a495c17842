package app

import (
	"github.com/specialistvlad/gomake/internal/caps"
	"github.com/specialistvlad/gomake/internal/run"
)

// Config holds everything an App instance needs to load makefiles and run
// goals. Zero values select sensible defaults (OS capabilities, current
// directory, makefile auto-discovery).
type Config struct {
	// Makefiles to load, in order. Empty means discover GNUmakefile,
	// makefile, Makefile in Directory.
	Makefiles []string

	// Directory is the working directory of the build (the -C flag and
	// the CURDIR builtin). Empty means the process working directory.
	Directory string

	// Goals to build. Empty falls back to .DEFAULT_GOAL, then to the
	// first non-pattern, non-dot target.
	Goals []string

	// Vars are command-line variable overrides (NAME=VALUE), installed
	// with command-line origin before parsing.
	Vars map[string]string

	// IncludeDirs are extra directories searched by include (-I).
	IncludeDirs []string

	// VPaths are search paths installed ahead of any vpath directives
	// the makefiles declare (fed in by the run profile or an embedder).
	VPaths []caps.VPathEntry

	EnvOverrides bool // -e: environment wins over plain file assignments
	WarnUndef    bool

	LogFormat string
	LogLevel  string

	// MakeLevel seeds MAKELEVEL; recipes see MakeLevel+1.
	MakeLevel int

	// Runner carries the per-run options (mode, jobs, keep-going, ...).
	Runner run.Options

	// Injectable capabilities; nil selects the OS-backed defaults. Env
	// nil imports the process environment.
	FS    caps.FileSystem
	Shell caps.Shell
	Jobs  caps.JobServer
	Env   []string
}
