// Package registry holds the in-memory task list, the single source of truth
// for a running scheduler. Every mutation writes the full list through to the
// store; a failed write is logged and the in-memory state stays authoritative.
package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"deferq/internal/domain"
	"deferq/internal/store"
)

type Registry struct {
	mu      sync.Mutex
	st      store.Store
	now     func() time.Time
	tasks   []domain.Task // insertion order
	version uint64
}

type Option func(*Registry)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func New(st store.Store, opts ...Option) *Registry {
	r := &Registry{st: st, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Load restores the task list from the store. Call once at startup before
// the poller starts. EXECUTING is a transient in-memory state, but a mutation
// persisting mid-batch can leak it into the blob; a crash would then strand
// the task forever. Recover such tasks back to PENDING so the startup check
// picks them up again.
func (r *Registry) Load(ctx context.Context) error {
	tasks, version, err := r.st.Load(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	recovered := 0
	for i := range tasks {
		if tasks[i].Status == domain.StatusExecuting {
			tasks[i].Status = domain.StatusPending
			recovered++
		}
	}
	r.tasks = tasks
	r.version = version
	if recovered > 0 {
		log.Info().Int("recovered", recovered).Msg("recovered stale executing tasks")
		r.persistLocked(ctx)
	}
	log.Info().Int("tasks", len(tasks)).Uint64("version", version).Msg("task list loaded")
	return nil
}

// Add constructs a new PENDING task from the input, appends it and persists.
// Validation lives in the facade; Add itself never rejects.
func (r *Registry) Add(ctx context.Context, in domain.TaskInput) domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := in.TargetCount
	if count == 0 {
		count = len(in.TargetIDs)
	}
	t := domain.Task{
		ID:            "tsk_" + uuid.NewString(),
		Type:          in.Type,
		TargetType:    in.TargetType,
		TargetIDs:     append([]string(nil), in.TargetIDs...),
		TargetCount:   count,
		TargetDetails: copyRaw(in.TargetDetails),
		ScheduledFor:  in.ScheduledFor,
		Parameters:    copyRaw(in.Parameters),
		Status:        domain.StatusPending,
		CreatedAt:     r.now(),
		CreatedBy:     in.CreatedBy,
		CreatedByName: in.CreatedByName,
	}
	r.tasks = append(r.tasks, t)
	r.persistLocked(ctx)
	return t.Clone()
}

// Cancel transitions a PENDING task to CANCELLED and reports whether any
// state changed. Unknown ids and non-PENDING tasks are silent no-ops.
func (r *Registry) Cancel(ctx context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.tasks {
		if r.tasks[i].ID != id {
			continue
		}
		if r.tasks[i].Status != domain.StatusPending {
			return false
		}
		at := r.now()
		r.tasks[i].Status = domain.StatusCancelled
		r.tasks[i].ExecutedAt = &at
		r.tasks[i].Result = &domain.Result{Success: false, Message: "Cancelled by user"}
		r.persistLocked(ctx)
		return true
	}
	return false
}

// Delete removes the task regardless of status. This is the only hard-delete
// path; it prunes history and reports whether the task existed.
func (r *Registry) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.tasks {
		if r.tasks[i].ID == id {
			r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
			r.persistLocked(ctx)
			return true
		}
	}
	return false
}

// ClearCompleted removes every terminal task, leaving PENDING and EXECUTING
// tasks untouched. Returns the number removed.
func (r *Registry) ClearCompleted(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.tasks[:0]
	removed := 0
	for _, t := range r.tasks {
		if t.Status.Terminal() {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	if removed == 0 {
		return 0
	}
	r.tasks = kept
	r.persistLocked(ctx)
	return removed
}

// PruneFinished removes terminal tasks whose executedAt is older than maxAge.
// Used by the retention sweeper.
func (r *Registry) PruneFinished(ctx context.Context, maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	kept := r.tasks[:0]
	removed := 0
	for _, t := range r.tasks {
		if t.Status.Terminal() && t.ExecutedAt != nil && t.ExecutedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	if removed == 0 {
		return 0
	}
	r.tasks = kept
	r.persistLocked(ctx)
	return removed
}

func (r *Registry) Get(id string) (domain.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return domain.Task{}, false
}

// List returns a copy of the full task list in insertion order.
func (r *Registry) List() []domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cloneAllLocked(func(domain.Task) bool { return true })
}

func (r *Registry) QueryByType(typ domain.TaskType) []domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cloneAllLocked(func(t domain.Task) bool { return t.Type == typ })
}

func (r *Registry) QueryByStatus(st domain.Status) []domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cloneAllLocked(func(t domain.Task) bool { return t.Status == st })
}

func copyRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func (r *Registry) cloneAllLocked(keep func(domain.Task) bool) []domain.Task {
	out := make([]domain.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// persistLocked bumps the list version and writes through. Persistence is
// best-effort: a failure is logged, the in-memory list stays authoritative
// and the next successful write reconciles. Callers must hold r.mu, which
// also linearizes writes so a stale save can never clobber a newer one.
func (r *Registry) persistLocked(ctx context.Context) {
	r.version++
	if err := r.st.Save(ctx, r.tasks, r.version); err != nil {
		log.Error().Err(err).Uint64("version", r.version).Msg("task list persist failed")
	}
}
