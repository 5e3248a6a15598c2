// Package scheduler is the validated operation surface callers use to manage
// deferred tasks. It layers business rules and user notifications over the
// raw registry.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"deferq/internal/domain"
	"deferq/internal/registry"
)

// ValidationError rejects a schedule request before any task is created. It
// is the only caller-visible error class in the scheduler.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// Notifier is the user-visible notification sink. Calls are fire-and-forget.
type Notifier interface {
	Success(msg string)
	Info(msg string)
}

type Service struct {
	reg    *registry.Registry
	notify Notifier
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(reg *registry.Registry, notify Notifier, opts ...Option) *Service {
	s := &Service{reg: reg, notify: notify, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Schedule validates and creates a task. scheduledFor must be strictly in the
// future and at least one target is required; duplicate target ids are
// collapsed, first occurrence wins.
func (s *Service) Schedule(ctx context.Context, in domain.TaskInput) (domain.Task, error) {
	if !in.Type.Valid() {
		return domain.Task{}, &ValidationError{Reason: fmt.Sprintf("unknown task type %q", in.Type)}
	}
	if len(in.TargetIDs) == 0 {
		return domain.Task{}, &ValidationError{Reason: "at least one target is required"}
	}
	if !in.ScheduledFor.After(s.now()) {
		return domain.Task{}, &ValidationError{Reason: "scheduled time must be in the future"}
	}
	in.TargetIDs = dedupe(in.TargetIDs)

	t := s.reg.Add(ctx, in)
	s.notify.Success(fmt.Sprintf("Scheduled %s for %d target(s) at %s",
		t.Type, t.TargetCount, t.ScheduledFor.Format(time.RFC3339)))
	return t, nil
}

// Cancel cancels a PENDING task. The notification fires only on an actual
// state change, never on a no-op.
func (s *Service) Cancel(ctx context.Context, id string) {
	if s.reg.Cancel(ctx, id) {
		s.notify.Info(fmt.Sprintf("Task %s cancelled", id))
	}
}

// Delete removes a task regardless of status and reports whether it existed.
func (s *Service) Delete(ctx context.Context, id string) bool {
	return s.reg.Delete(ctx, id)
}

// ClearCompleted prunes all terminal tasks and returns the number removed.
func (s *Service) ClearCompleted(ctx context.Context) int {
	return s.reg.ClearCompleted(ctx)
}

// PendingTasks is a projection over the live list, recomputed on demand.
func (s *Service) PendingTasks() []domain.Task {
	return s.reg.QueryByStatus(domain.StatusPending)
}

// CompletedTasks returns every task that has reached a terminal state:
// completed, failed or cancelled.
func (s *Service) CompletedTasks() []domain.Task {
	out := make([]domain.Task, 0)
	for _, t := range s.reg.List() {
		if t.Status.Terminal() {
			out = append(out, t)
		}
	}
	return out
}

func (s *Service) QueryByType(typ domain.TaskType) []domain.Task {
	return s.reg.QueryByType(typ)
}

func (s *Service) QueryByStatus(st domain.Status) []domain.Task {
	return s.reg.QueryByStatus(st)
}

func (s *Service) Get(id string) (domain.Task, bool) {
	return s.reg.Get(id)
}

func (s *Service) List() []domain.Task {
	return s.reg.List()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
