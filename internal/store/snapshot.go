package store

import (
	"context"
	"sync"
	"time"
)

// Snapshot is the serialized state of one live game. Version increases by one
// on every accepted write.
type Snapshot struct {
	GameID  string
	Version int64
	Data    []byte
}

// SnapshotStore persists live games so another instance can pick them up.
// Put accepts a snapshot only when the stored version is Version-1, or when
// no snapshot is stored. Otherwise it returns ErrVersionConflict.
type SnapshotStore interface {
	Put(ctx context.Context, snap Snapshot) error
	// Restore writes snap unconditionally. Used to roll back a write whose
	// event could not be published.
	Restore(ctx context.Context, snap Snapshot) error
	Get(ctx context.Context, gameID string) (Snapshot, error)
	Delete(ctx context.Context, gameID string) error
}

type memoryEntry struct {
	snap      Snapshot
	expiresAt time.Time
}

// MemorySnapshots is a process-local SnapshotStore for single-instance runs
// and tests.
type MemorySnapshots struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemorySnapshots(ttl time.Duration) *MemorySnapshots {
	return &MemorySnapshots{
		ttl:     ttl,
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}
}

// SetClock replaces the clock used for expiry.
func (m *MemorySnapshots) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *MemorySnapshots) live(gameID string) (memoryEntry, bool) {
	e, ok := m.entries[gameID]
	if !ok {
		return e, false
	}
	if m.ttl > 0 && !m.now().Before(e.expiresAt) {
		delete(m.entries, gameID)
		return e, false
	}
	return e, true
}

func (m *MemorySnapshots) store(snap Snapshot) {
	snap.Data = append([]byte(nil), snap.Data...)
	m.entries[snap.GameID] = memoryEntry{snap: snap, expiresAt: m.now().Add(m.ttl)}
}

func (m *MemorySnapshots) Put(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.live(snap.GameID); ok && cur.snap.Version != snap.Version-1 {
		return ErrVersionConflict
	}
	m.store(snap)
	return nil
}

func (m *MemorySnapshots) Restore(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(snap)
	return nil
}

func (m *MemorySnapshots) Get(ctx context.Context, gameID string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(gameID)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	out := e.snap
	out.Data = append([]byte(nil), e.snap.Data...)
	return out, nil
}

func (m *MemorySnapshots) Delete(ctx context.Context, gameID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.entries, gameID)
	m.mu.Unlock()
	return nil
}
