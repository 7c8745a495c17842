// Package funcs implements the built-in function library consumed by the
// expander. Functions are registered by name into a Library, mirroring the
// handler-registry pattern used across the engine; registering the same
// name twice is a programmer error and panics at wiring time.
package funcs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/specialistvlad/gomake/internal/caps"
	"github.com/specialistvlad/gomake/internal/expand"
)

// Config carries the engine hooks the built-ins need. FS backs the path and
// I/O functions; ShellRun backs the shell function.
type Config struct {
	FS caps.FileSystem

	// ShellRun executes a command line and returns its stdout and exit
	// code. The shell function stores the exit code in .SHELLEXIT.
	ShellRun func(ctx context.Context, cmd string) (stdout string, exitCode int, err error)

	// Curdir returns the engine's current directory (the CURDIR builtin).
	Curdir func() string

	// Info and Warn receive the output of the info and warning functions.
	// Nil sinks fall back to the context logger.
	Info func(msg string)
	Warn func(msg string)
}

// Library is the name-indexed set of registered built-ins.
type Library struct {
	cfg Config
	m   map[string]expand.Func
}

// New builds a Library with every built-in function registered.
func New(cfg Config) *Library {
	l := &Library{cfg: cfg, m: make(map[string]expand.Func)}
	l.registerStrings()
	l.registerPaths()
	l.registerLogic()
	l.registerControl()
	l.registerIO()
	return l
}

// Register adds a function under name. Duplicate registration panics.
func (l *Library) Register(name string, f expand.Func) {
	if _, exists := l.m[name]; exists {
		panic(fmt.Sprintf("function %q already registered", name))
	}
	slog.Debug("Registering builtin function.", "name", name)
	l.m[name] = f
}

// Lookup implements expand.Library.
func (l *Library) Lookup(name string) (expand.Func, bool) {
	f, ok := l.m[name]
	return f, ok
}

// arity validates the argument count of a function call.
func arity(name string, args []string, min, max int) error {
	if len(args) < min {
		return fmt.Errorf("function %q: expected at least %d arguments, got %d", name, min, len(args))
	}
	if max >= 0 && len(args) > max {
		return fmt.Errorf("function %q: expected at most %d arguments, got %d", name, max, len(args))
	}
	return nil
}
