package store

import (
	"context"
	"errors"

	"deferq/internal/domain"
)

// ErrStaleVersion is returned by Save when the backing store already holds a
// newer task-list version. The registry serializes its writes, so hitting
// this means another writer got there first.
var ErrStaleVersion = errors.New("task list version is stale")

// Store persists the full task list as a single value. Load never fails on
// missing or corrupt data; it degrades to an empty list so a damaged store
// cannot take the scheduler down.
type Store interface {
	Load(ctx context.Context) ([]domain.Task, uint64, error)
	Save(ctx context.Context, tasks []domain.Task, version uint64) error
}
