package caps

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// SlotServer is the in-process JobServer: a weighted semaphore sized to the
// configured job count.
type SlotServer struct {
	sem *semaphore.Weighted
}

// NewSlotServer creates a JobServer admitting at most max concurrent
// holders. A max below 1 is treated as 1.
func NewSlotServer(max int) *SlotServer {
	if max < 1 {
		max = 1
	}
	return &SlotServer{sem: semaphore.NewWeighted(int64(max))}
}

// Acquire implements JobServer.
func (s *SlotServer) Acquire(ctx context.Context) (Lock, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return slotLock{s.sem}, nil
}

type slotLock struct {
	sem *semaphore.Weighted
}

// Release implements Lock.
func (l slotLock) Release() {
	l.sem.Release(1)
}
