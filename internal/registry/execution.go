package registry

import (
	"context"
	"time"

	"deferq/internal/domain"
)

// Outcome is the terminal result of one execution attempt, applied by
// ResolveBatch.
type Outcome struct {
	ID     string
	Result domain.Result
}

// ClaimDue flips every due PENDING task to EXECUTING and returns copies in
// insertion order. The transition is in-memory only: EXECUTING is transient
// and not worth a store write. A claimed task can no longer be cancelled,
// which is how the cancel-vs-execution race resolves in execution's favor.
func (r *Registry) ClaimDue(now time.Time) []domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []domain.Task
	for i := range r.tasks {
		if r.tasks[i].Due(now) {
			r.tasks[i].Status = domain.StatusExecuting
			due = append(due, r.tasks[i].Clone())
		}
	}
	return due
}

// ResolveBatch applies terminal outcomes for previously claimed tasks and
// persists the whole batch in a single write. Tasks no longer in EXECUTING
// state are skipped; the forward-only transition graph is never violated.
func (r *Registry) ResolveBatch(ctx context.Context, outcomes []Outcome, executedAt time.Time) {
	if len(outcomes) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	byID := make(map[string]domain.Result, len(outcomes))
	for _, o := range outcomes {
		byID[o.ID] = o.Result
	}
	changed := false
	for i := range r.tasks {
		res, ok := byID[r.tasks[i].ID]
		if !ok || r.tasks[i].Status != domain.StatusExecuting {
			continue
		}
		at := executedAt
		r.tasks[i].ExecutedAt = &at
		result := res
		r.tasks[i].Result = &result
		if res.Success {
			r.tasks[i].Status = domain.StatusCompleted
		} else {
			r.tasks[i].Status = domain.StatusFailed
		}
		changed = true
	}
	if changed {
		r.persistLocked(ctx)
	}
}
