package testutil

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/specialistvlad/gomake/internal/app"
	"github.com/specialistvlad/gomake/internal/caps"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Workdir is where harness runs execute; every relative path in a test
// makefile resolves under it.
const Workdir = "/work"

// Harness bundles the doubles backing one engine instance under test.
type Harness struct {
	FS    *MemFS
	Shell *SpyShell
	Out   *SafeBuffer
	Log   *SafeBuffer
	Cfg   *app.Config
}

// HarnessResult holds the outcomes of one harness run.
type HarnessResult struct {
	Worked    bool
	Err       error
	Output    string
	LogOutput string
}

// NewHarness prepares an in-memory engine setup with the given makefile
// text installed as /work/Makefile. Callers may adjust Cfg, FS and Shell
// before Run.
func NewHarness(t *testing.T, makefile string) *Harness {
	t.Helper()

	fs := NewMemFS()
	fs.Base = Workdir
	fs.Put(Workdir+"/Makefile", makefile)

	h := &Harness{
		FS:    fs,
		Shell: NewSpyShell(),
		Out:   &SafeBuffer{},
		Log:   &SafeBuffer{},
	}
	h.Cfg = &app.Config{
		Makefiles: []string{"Makefile"},
		Directory: Workdir,
		Env:       []string{},
		LogLevel:  "debug",
		FS:        fs,
		Shell:     h.Shell,
	}
	h.Cfg.Runner.Jobs = 1
	h.Cfg.Runner.Output = func(chunk []byte) { h.Out.Write(chunk) }
	return h
}

// Run loads the makefile and builds the goals, returning the collected
// outcome. Load errors surface through Err with no build attempted.
func (h *Harness) Run(t *testing.T, goals ...string) *HarnessResult {
	t.Helper()

	h.Cfg.Goals = goals
	engine := app.NewApp(h.Log, h.Cfg)
	ctx := context.Background()

	if err := engine.Load(ctx); err != nil {
		return &HarnessResult{Err: err, Output: h.Out.String(), LogOutput: h.Log.String()}
	}
	worked, err := engine.Run(ctx)
	return &HarnessResult{
		Worked:    worked,
		Err:       err,
		Output:    h.Out.String(),
		LogOutput: h.Log.String(),
	}
}

// RunMakefile is the one-call form: run makefile text against the spy
// doubles with default options.
func RunMakefile(t *testing.T, makefile string, goals ...string) (*Harness, *HarnessResult) {
	t.Helper()
	h := NewHarness(t, makefile)
	res := h.Run(t, goals...)
	return h, res
}

// EmulateShell scripts the spy shell with the tiny command vocabulary the
// harness makefiles use, applied against the in-memory filesystem:
//
//	touch FILE...        create or bump each file
//	echo TEXT > FILE     write TEXT (>> appends)
//	false                exit 1
//	exit N               exit N
//
// Anything else succeeds silently. Commands joined with && run in order,
// stopping at the first failure.
func (h *Harness) EmulateShell() {
	h.Shell.Handler = func(cmd caps.Command, sink func([]byte)) (int, error) {
		for _, part := range strings.Split(cmd.Line, "&&") {
			if code := h.runEmulated(strings.TrimSpace(part), sink); code != 0 {
				return code, nil
			}
		}
		return 0, nil
	}
}

func (h *Harness) runEmulated(line string, sink func([]byte)) int {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0
	}
	abs := func(p string) string {
		if strings.HasPrefix(p, "/") {
			return p
		}
		return Workdir + "/" + p
	}
	switch fields[0] {
	case "touch":
		for _, f := range fields[1:] {
			h.FS.Touch(abs(f))
		}
		return 0
	case "false":
		return 1
	case "exit":
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err == nil {
				return n
			}
		}
		return 1
	case "echo":
		rest := strings.TrimSpace(line[len("echo"):])
		appendTo := false
		var file string
		if i := strings.LastIndex(rest, ">>"); i >= 0 {
			appendTo = true
			file = strings.TrimSpace(rest[i+2:])
			rest = strings.TrimSpace(rest[:i])
		} else if i := strings.LastIndex(rest, ">"); i >= 0 {
			file = strings.TrimSpace(rest[i+1:])
			rest = strings.TrimSpace(rest[:i])
		}
		text := strings.Trim(rest, `"'`) + "\n"
		if file == "" {
			if sink != nil {
				sink([]byte(text))
			}
			return 0
		}
		h.FS.WriteFile(abs(file), text, appendTo)
		return 0
	}
	return 0
}
