package storage

import (
	"context"
	"encoding/json"
	"sync"

	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
)

// MemoryBackend keeps the snapshot in process. Saved snapshots are stored as
// encoded bytes, so later mutation of the caller's data does not leak in.
type MemoryBackend struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Load decodes the last saved snapshot.
func (m *MemoryBackend) Load(_ context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return NewSnapshot(), nil
	}
	var s Snapshot
	if err := json.Unmarshal(m.data, &s); err != nil {
		return nil, deskerrors.ErrPersistenceFailure("load", err)
	}
	if err := s.Normalize(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save stores an encoded copy of s.
func (m *MemoryBackend) Save(_ context.Context, s *Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return deskerrors.ErrPersistenceFailure("save", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (m *MemoryBackend) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Close does nothing.
func (m *MemoryBackend) Close() error { return nil }
