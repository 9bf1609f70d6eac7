package storage

import (
	"context"
	"errors"
	"sync"

	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
)

// FlakyBackend wraps a MemoryBackend whose saves can be switched to fail.
// It is meant for tests of callers that must survive persistence errors.
type FlakyBackend struct {
	*MemoryBackend

	mu       sync.Mutex
	failing  bool
	failures int
}

// NewFlakyBackend creates a FlakyBackend that saves normally.
func NewFlakyBackend() *FlakyBackend {
	return &FlakyBackend{MemoryBackend: NewMemoryBackend()}
}

// SetFailing switches save failures on or off.
func (f *FlakyBackend) SetFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

// Failures reports how many saves were rejected.
func (f *FlakyBackend) Failures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures
}

// Save fails while the backend is failing and otherwise stores s.
func (f *FlakyBackend) Save(ctx context.Context, s *Snapshot) error {
	f.mu.Lock()
	if f.failing {
		f.failures++
		f.mu.Unlock()
		return deskerrors.ErrPersistenceFailure("save", errors.New("storage unavailable"))
	}
	f.mu.Unlock()
	return f.MemoryBackend.Save(ctx, s)
}
