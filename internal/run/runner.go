package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/gomake/internal/caps"
	"github.com/specialistvlad/gomake/internal/ctxlog"
	"github.com/specialistvlad/gomake/internal/expand"
	"github.com/specialistvlad/gomake/internal/rules"
	"github.com/specialistvlad/gomake/internal/vars"
)

// Mode selects what a run does with out-of-date targets.
type Mode int

const (
	ModeNormal Mode = iota
	ModeDryRun
	ModeQuestion
	ModeTouch
)

// Options is the per-run configuration object.
type Options struct {
	Mode         Mode
	Jobs         int
	Always       bool // -B: rebuild everything
	KeepGoing    bool // -k
	IgnoreErrors bool // -i
	Silent       bool // -s
	NoSilent     bool // echo even @-prefixed lines
	OneShell     bool
	CheckSymlink bool // -L: consider symlink mtimes
	AssumeOld    []string
	AssumeNew    []string
	Shuffle      string // "", "reverse", or a decimal seed
	OutputSync   string // "", "target", "line", "recurse"

	// Output receives every chunk of build output (echoed commands and
	// recipe stdout/stderr). Nil falls back to os.Stdout.
	Output func([]byte)
}

// IncludeHooks carries the deferred-include state from the parse phase.
// Reload re-parses files that became available and returns the entries and
// scopes they contributed.
type IncludeHooks struct {
	Deferred []string
	Reload   func(ctx context.Context, files []string) ([]*rules.Entry, []rules.Scope, error)
}

// Runner walks the goal graph. One Runner performs exactly one run.
type Runner struct {
	opts     Options
	fs       caps.FileSystem
	shell    caps.Shell
	jobs     caps.JobServer
	paths    caps.PathResolver
	table    *rules.Table
	resolver *rules.Resolver
	x        *expand.Expander
	includes IncludeHooks

	curdir    string
	shellPath func() string
	makeLevel int
	baseEnv   []string

	outMu     sync.Mutex
	mu        sync.Mutex
	visited   map[string]*future
	groups    map[string]*future
	tsCache   map[string]int64
	pathCache map[string]string
	failures  []error

	workDone atomic.Bool
	stopped  atomic.Bool
	cancel   context.CancelFunc
}

// future is one target's in-flight (or finished) build. The done channel
// closes exactly once; ran and err are immutable afterwards.
type future struct {
	done chan struct{}
	ran  bool
	err  error
}

// Config wires a Runner. FS, Shell, Table and Expander are required; a nil
// Jobs selects a SlotServer sized to Options.Jobs, a nil Paths means no
// search, and a nil ShellPath means /bin/sh.
type Config struct {
	Options  Options
	FS       caps.FileSystem
	Shell    caps.Shell
	Jobs     caps.JobServer
	Paths    caps.PathResolver
	Table    *rules.Table
	Expander *expand.Expander
	Includes IncludeHooks

	Curdir    string
	ShellPath func() string // current SHELL value, read per recipe
	MakeLevel int
	BaseEnv   []string // environment snapshot recipes inherit
}

// New assembles a Runner for a single run.
func New(cfg Config) *Runner {
	r := &Runner{
		opts:      cfg.Options,
		fs:        cfg.FS,
		shell:     cfg.Shell,
		jobs:      cfg.Jobs,
		paths:     cfg.Paths,
		table:     cfg.Table,
		x:         cfg.Expander,
		includes:  cfg.Includes,
		curdir:    cfg.Curdir,
		shellPath: cfg.ShellPath,
		makeLevel: cfg.MakeLevel,
		baseEnv:   cfg.BaseEnv,
		visited:   make(map[string]*future),
		groups:    make(map[string]*future),
		tsCache:   make(map[string]int64),
		pathCache: make(map[string]string),
	}
	if r.jobs == nil {
		r.jobs = caps.NewSlotServer(cfg.Options.Jobs)
	}
	r.resolver = &rules.Resolver{
		Table:  cfg.Table,
		Exists: func(name string) bool { return r.timestamp(r.resolvePath(name)) != 0 },
	}
	if r.shellPath == nil {
		r.shellPath = func() string { return "/bin/sh" }
	}
	return r
}

// Run builds the goals in order and reports whether any recipe ran (or
// would run, under dry-run and question modes).
func (r *Runner) Run(ctx context.Context, goals []string) (bool, error) {
	logger := ctxlog.FromContext(ctx)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.cancel = cancel

	if err := r.remakeIncludes(runCtx); err != nil {
		return r.workDone.Load(), err
	}

	r.x.Global().Install("MAKECMDGOALS", &vars.Value{
		Static: joinWords(goals), Origin: vars.OriginAutomatic,
	})

	var firstErr error
	for _, goal := range goals {
		logger.Debug("Building goal.", "goal", goal)
		f := r.buildTarget(runCtx, goal, r.x, nil)
		<-f.done
		if f.err != nil {
			if !r.opts.KeepGoing {
				return r.workDone.Load(), f.err
			}
			r.noteFailure(f.err)
			if firstErr == nil {
				firstErr = f.err
			}
		}
		if r.opts.Mode == ModeQuestion && f.ran {
			return true, nil
		}
	}

	r.mu.Lock()
	failures := r.failures
	r.mu.Unlock()
	if firstErr == nil && len(failures) > 0 {
		firstErr = failures[0]
	}
	if firstErr != nil && r.opts.KeepGoing {
		firstErr = fmt.Errorf("build finished with %d failure(s): %w", len(failures), firstErr)
	}
	return r.workDone.Load(), firstErr
}

// remakeIncludes builds the include files that failed during parsing,
// re-parses the ones that now exist, and folds their rules into the table.
func (r *Runner) remakeIncludes(ctx context.Context) error {
	if len(r.includes.Deferred) == 0 {
		return nil
	}
	logger := ctxlog.FromContext(ctx)

	// Failures here are expected (the include may be unmakeable); they
	// must not trip the run-wide stop that recipe failures cause.
	savedKeepGoing := r.opts.KeepGoing
	r.opts.KeepGoing = true
	var recovered []string
	for _, file := range r.includes.Deferred {
		f := r.buildTarget(ctx, file, r.x, nil)
		<-f.done
		if f.err != nil {
			logger.Debug("Deferred include still unavailable.", "file", file, "error", f.err)
			continue
		}
		if r.timestamp(r.resolvePath(file)) != 0 {
			recovered = append(recovered, file)
		}
	}
	r.opts.KeepGoing = savedKeepGoing
	if len(recovered) == 0 || r.includes.Reload == nil {
		return nil
	}
	logger.Debug("Reloading recovered includes.", "files", recovered)
	entries, scopes, err := r.includes.Reload(ctx, recovered)
	if err != nil {
		return err
	}
	return r.table.Append(ctx, entries, scopes, r.x)
}

// noteFailure records a keep-going failure.
func (r *Runner) noteFailure(err error) {
	r.mu.Lock()
	r.failures = append(r.failures, err)
	r.mu.Unlock()
}

// stop halts admission of new work after a fatal error; in-flight builds
// settle and release their slots.
func (r *Runner) stop() {
	if r.stopped.CompareAndSwap(false, true) {
		r.cancel()
	}
}

var errRunStopped = errors.New("run canceled after earlier failure")

// output writes a chunk to the configured sink. Serialized so parallel
// recipes cannot interleave within one chunk.
func (r *Runner) output(b []byte) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	if r.opts.Output != nil {
		r.opts.Output(b)
		return
	}
	os.Stdout.Write(b)
}

func joinWords(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}
