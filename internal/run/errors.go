// Package run implements the build runner: memoized per-target builds,
// prerequisite scheduling with .WAIT and .NOTPARALLEL, the timestamp-driven
// rebuild decision, recipe execution through the injected shell, and the
// error policy (.DELETE_ON_ERROR, keep-going, cancellation).
package run

import "fmt"

// BuildError is a failure attributed to one target, carrying the rule's
// source position when known.
type BuildError struct {
	Target string
	File   string
	Line   int
	Err    error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("target %q (%s:%d): %v", e.Target, e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("target %q: %v", e.Target, e.Err)
}

// Unwrap returns the underlying cause.
func (e *BuildError) Unwrap() error {
	return e.Err
}
