package store

import (
	"context"
	"sync"
	"time"

	"deferq/internal/domain"
)

// Memory is an in-process Store for tests and ephemeral deployments. It runs
// the real codec so round-trip behavior matches the SQLite store.
type Memory struct {
	mu      sync.Mutex
	blob    []byte
	version uint64
	saves   int
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(ctx context.Context) ([]domain.Task, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blob == nil {
		return nil, 0, nil
	}
	tasks, v, err := decodeTasks(m.blob)
	if err != nil {
		return nil, 0, nil
	}
	return tasks, v, nil
}

func (m *Memory) Save(ctx context.Context, tasks []domain.Task, version uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if version <= m.version && m.blob != nil {
		return ErrStaleVersion
	}
	blob, err := encodeTasks(tasks, version, time.Now())
	if err != nil {
		return err
	}
	m.blob = blob
	m.version = version
	m.saves++
	return nil
}

// Saves reports how many writes were accepted. Tests use it to assert
// batch persistence behavior.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
