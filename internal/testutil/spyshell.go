package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/specialistvlad/gomake/internal/caps"
)

// ExecutionRecord holds the start and end times of one spawned command,
// for concurrency assertions.
type ExecutionRecord struct {
	Line  string
	Start time.Time
	End   time.Time
}

// SpyShell is a caps.Shell double: it records every spawned command line
// and delegates behavior to a scriptable handler. The default handler
// succeeds silently.
type SpyShell struct {
	mu      sync.Mutex
	calls   []caps.Command
	records []ExecutionRecord

	// Handler simulates the command. Nil means exit 0 with no output.
	Handler func(cmd caps.Command, sink func([]byte)) (int, error)

	// Delay is slept inside every call, widening concurrency windows.
	Delay time.Duration
}

// NewSpyShell creates a recording shell with the default no-op handler.
func NewSpyShell() *SpyShell {
	return &SpyShell{}
}

// Spawn implements caps.Shell.
func (s *SpyShell) Spawn(_ context.Context, cmd caps.Command, sink func([]byte)) (int, error) {
	start := time.Now()
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	exit := 0
	var err error
	if s.Handler != nil {
		exit, err = s.Handler(cmd, sink)
	}
	end := time.Now()

	s.mu.Lock()
	s.calls = append(s.calls, cmd)
	s.records = append(s.records, ExecutionRecord{Line: cmd.Line, Start: start, End: end})
	s.mu.Unlock()
	return exit, err
}

// Calls returns every spawned command so far.
func (s *SpyShell) Calls() []caps.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]caps.Command(nil), s.calls...)
}

// Records returns the timing records of every spawned command.
func (s *SpyShell) Records() []ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ExecutionRecord(nil), s.records...)
}

// Count reports how many spawned command lines contain substr.
func (s *SpyShell) Count(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if strings.Contains(c.Line, substr) {
			n++
		}
	}
	return n
}

// RecordsFor returns the timing records whose line contains substr.
func (s *SpyShell) RecordsFor(substr string) []ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ExecutionRecord
	for _, r := range s.records {
		if strings.Contains(r.Line, substr) {
			out = append(out, r)
		}
	}
	return out
}
