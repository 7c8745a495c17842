package run

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/specialistvlad/gomake/internal/caps"
	"github.com/specialistvlad/gomake/internal/ctxlog"
	"github.com/specialistvlad/gomake/internal/expand"
	"github.com/specialistvlad/gomake/internal/rules"
	"github.com/specialistvlad/gomake/internal/vars"
)

// recipeLine is one expanded command with its prefix flags resolved.
type recipeLine struct {
	text   string
	silent bool // @
	ignore bool // -
	force  bool // + or a $(MAKE) reference; runs even under dry-run
}

// automaticScope installs the automatic variables for one rule firing:
// @ < ^ + ? * | plus the D/F dirname/basename forms of each.
func automaticScope(target, stem string, unique, all, orderOnly, newer []string) *vars.Store {
	scope := vars.NewStore()
	set := func(name, value string) {
		scope.Install(name, &vars.Value{Static: value, Origin: vars.OriginAutomatic})
		scope.Install(name+"D", &vars.Value{Static: mapDirnames(value), Origin: vars.OriginAutomatic})
		scope.Install(name+"F", &vars.Value{Static: mapBasenames(value), Origin: vars.OriginAutomatic})
	}
	first := ""
	if len(unique) > 0 {
		first = unique[0]
	}
	set("@", target)
	set("<", first)
	set("^", strings.Join(unique, " "))
	set("+", strings.Join(all, " "))
	set("?", strings.Join(newer, " "))
	set("*", stem)
	set("|", strings.Join(orderOnly, " "))
	return scope
}

func mapDirnames(value string) string {
	words := expand.Words(value)
	for i, w := range words {
		d := path.Dir(w)
		words[i] = d
	}
	return strings.Join(words, " ")
}

func mapBasenames(value string) string {
	words := expand.Words(value)
	for i, w := range words {
		words[i] = path.Base(w)
	}
	return strings.Join(words, " ")
}

// executeRecipe expands and runs the rule's recipe lines for target.
func (r *Runner) executeRecipe(ctx context.Context, rx *expand.Expander, target string, rule *rules.Rule) (bool, error) {
	logger := ctxlog.FromContext(ctx)
	silentAll := r.opts.Silent || r.table.Special(".SILENT").Has(target)
	ignoreAll := r.opts.IgnoreErrors || r.table.Special(".IGNORE").Has(target)
	oneshell := r.opts.OneShell || r.table.Special(".ONESHELL").Active()

	var lines []recipeLine
	for _, raw := range rule.Recipe {
		var ln recipeLine
		body := raw
	flags:
		for len(body) > 0 {
			switch body[0] {
			case '@':
				ln.silent = true
			case '-':
				ln.ignore = true
			case '+':
				ln.force = true
			default:
				break flags
			}
			body = body[1:]
		}
		if strings.Contains(body, "$(MAKE)") || strings.Contains(body, "${MAKE}") {
			ln.force = true
		}
		text, err := rx.Expand(ctx, body)
		if err != nil {
			return false, &BuildError{Target: target, File: rule.File, Line: rule.Line, Err: err}
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		ln.text = text
		lines = append(lines, ln)
	}
	if len(lines) == 0 {
		return false, nil
	}

	// Under .ONESHELL the whole recipe is one shell invocation; the first
	// line's flags govern the joined script.
	if oneshell && len(lines) > 1 {
		joined := lines[0]
		parts := make([]string, len(lines))
		for i, ln := range lines {
			parts[i] = ln.text
		}
		joined.text = strings.Join(parts, "\n")
		lines = []recipeLine{joined}
	}

	env, err := r.recipeEnv(ctx, rx)
	if err != nil {
		return false, &BuildError{Target: target, File: rule.File, Line: rule.Line, Err: err}
	}

	ran := false
	for _, ln := range lines {
		if r.opts.Mode == ModeDryRun {
			r.output([]byte(ln.text + "\n"))
			if !ln.force {
				ran = true
				continue
			}
		} else if (!ln.silent && !silentAll) || r.opts.NoSilent {
			r.output([]byte(ln.text + "\n"))
		}

		lock, err := r.jobs.Acquire(ctx)
		if err != nil {
			return ran, &BuildError{Target: target, File: rule.File, Line: rule.Line, Err: err}
		}
		sink := r.newSink()
		exitCode, spawnErr := r.shell.Spawn(ctx, caps.Command{
			Line:   ln.text,
			Dir:    r.curdir,
			Env:    env,
			Shell:  r.shellPath(),
			Silent: ln.silent || silentAll,
		}, sink.write)
		lock.Release()
		sink.flush()
		ran = true

		if spawnErr != nil {
			exitCode = 127
			logger.Error("Shell spawn failed.", "target", target, "error", spawnErr)
		}
		if exitCode != 0 {
			if ln.ignore || ignoreAll {
				r.output([]byte(fmt.Sprintf("[%s] Error %d (ignored)\n", target, exitCode)))
				continue
			}
			r.deleteOnError(ctx, target, rule)
			return true, &BuildError{
				Target: target, File: rule.File, Line: rule.Line,
				Err: fmt.Errorf("recipe failed with exit code %d", exitCode),
			}
		}
	}

	if r.opts.Mode != ModeDryRun {
		// New files may exist now; cached stamps are stale.
		r.clearCaches()
	}
	r.workDone.Store(true)
	return ran, nil
}

// recipeEnv assembles the child environment: the base snapshot, every
// exported variable from the current view, and MAKELEVEL.
func (r *Runner) recipeEnv(ctx context.Context, rx *expand.Expander) ([]string, error) {
	env := append([]string{}, r.baseEnv...)
	exportAll := rx.Global().ExportAll || r.table.Special(".EXPORT_ALL_VARIABLES").Active()

	for name, v := range rx.Bindings() {
		if !v.Export && !exportAll {
			continue
		}
		// Automatic variables are exported even though their names are not
		// shell identifiers.
		if !exportableName(name) && v.Origin != vars.OriginAutomatic {
			continue
		}
		value := v.Text()
		if v.Recurse {
			expanded, err := rx.Expand(ctx, value)
			if err != nil {
				return nil, err
			}
			value = expanded
		}
		env = append(env, name+"="+value)
	}
	env = append(env, "MAKELEVEL="+strconv.Itoa(r.makeLevel+1))
	return env, nil
}

// exportableName restricts exports to names a shell environment accepts.
func exportableName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// deleteOnError removes the targets of a failed recipe when
// .DELETE_ON_ERROR applies and no preservation set protects them.
func (r *Runner) deleteOnError(ctx context.Context, target string, rule *rules.Rule) {
	if !r.table.Special(".DELETE_ON_ERROR").Has(target) {
		return
	}
	names := rule.Targets
	if len(names) == 0 {
		names = []string{target}
	}
	for _, name := range names {
		if r.table.Special(".PRECIOUS").Has(name) || r.table.Special(".SECONDARY").Has(name) {
			continue
		}
		if r.fs.Timestamp(name) == 0 {
			continue
		}
		if err := r.fs.Unlink(name); err != nil {
			ctxlog.FromContext(ctx).Warn("Failed to delete target after error.", "target", name, "error", err)
			continue
		}
		r.output([]byte("*** Deleting file '" + name + "'\n"))
	}
	r.clearCaches()
}

// outputSink buffers one command's output when output syncing is on, so
// parallel recipes do not interleave. write is called from both stream
// goroutines of a spawned command.
type outputSink struct {
	r   *Runner
	mu  sync.Mutex
	buf []byte
}

func (r *Runner) newSink() *outputSink {
	return &outputSink{r: r}
}

func (s *outputSink) write(chunk []byte) {
	if s.r.opts.OutputSync == "" {
		s.r.output(chunk)
		return
	}
	s.mu.Lock()
	s.buf = append(s.buf, chunk...)
	s.mu.Unlock()
}

func (s *outputSink) flush() {
	s.mu.Lock()
	buf := s.buf
	s.buf = nil
	s.mu.Unlock()
	if len(buf) > 0 {
		s.r.output(buf)
	}
}
