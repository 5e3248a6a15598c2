package poller

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"deferq/internal/domain"
	"deferq/internal/registry"
	"deferq/internal/store"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func newHarness(t *testing.T, now time.Time, exec Executor, timeout time.Duration) (*Service, *registry.Registry, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	reg := registry.New(mem, registry.WithClock(fixedClock(now)))
	p := New(reg, exec, time.Minute, timeout, WithClock(fixedClock(now)))
	return p, reg, mem
}

func schedule(t *testing.T, reg *registry.Registry, typ domain.TaskType, due time.Time, targets ...string) domain.Task {
	t.Helper()
	return reg.Add(context.Background(), domain.TaskInput{
		Type:         typ,
		TargetType:   "user",
		TargetIDs:    targets,
		ScheduledFor: due,
	})
}

func okExec(msg string) Executor {
	return ExecFunc(func(ctx context.Context, typ domain.TaskType, params json.RawMessage) (domain.Result, error) {
		return domain.Result{Success: true, Message: msg}, nil
	})
}

func TestTickCompletesDueTasks(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	p, reg, _ := newHarness(t, now, okExec("done"), 0)

	due := schedule(t, reg, domain.SingleSuspension, now.Add(-time.Second), "U1")
	if n := p.Tick(context.Background(), now); n != 1 {
		t.Fatalf("expected 1 resolved, got %d", n)
	}

	got, _ := reg.Get(due.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got.Status)
	}
	if got.ExecutedAt == nil {
		t.Fatalf("executed task must carry executed_at")
	}
	if got.Result == nil || !got.Result.Success || got.Result.Message != "done" {
		t.Fatalf("unexpected result: %+v", got.Result)
	}
	if got.TargetCount != 1 {
		t.Fatalf("target count changed: %d", got.TargetCount)
	}
}

func TestTickLeavesNotDueUntouched(t *testing.T) {
	now := time.Now()
	calls := int32(0)
	exec := ExecFunc(func(ctx context.Context, typ domain.TaskType, params json.RawMessage) (domain.Result, error) {
		atomic.AddInt32(&calls, 1)
		return domain.Result{Success: true}, nil
	})
	p, reg, _ := newHarness(t, now, exec, 0)

	future := schedule(t, reg, domain.SingleActivation, now.Add(time.Hour), "U1")
	if n := p.Tick(context.Background(), now); n != 0 {
		t.Fatalf("expected nothing resolved, got %d", n)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("executor must not run for future tasks")
	}
	got, _ := reg.Get(future.ID)
	if got.Status != domain.StatusPending || got.ExecutedAt != nil || got.Result != nil {
		t.Fatalf("not-due task mutated: %+v", got)
	}
}

func TestTickIsolatesFailures(t *testing.T) {
	now := time.Now()
	exec := ExecFunc(func(ctx context.Context, typ domain.TaskType, params json.RawMessage) (domain.Result, error) {
		if typ == domain.SingleSuspension {
			return domain.Result{}, errors.New("remote unavailable")
		}
		return domain.Result{Success: true, Message: "ok"}, nil
	})
	p, reg, _ := newHarness(t, now, exec, 0)

	bad := schedule(t, reg, domain.SingleSuspension, now.Add(-time.Minute), "U1")
	good := schedule(t, reg, domain.SingleActivation, now.Add(-time.Minute), "U2")

	if n := p.Tick(context.Background(), now); n != 2 {
		t.Fatalf("both tasks must be evaluated, got %d", n)
	}
	gotBad, _ := reg.Get(bad.ID)
	gotGood, _ := reg.Get(good.ID)
	if gotBad.Status != domain.StatusFailed || gotBad.Result.Message != "remote unavailable" {
		t.Fatalf("failure not captured: %+v", gotBad)
	}
	if gotGood.Status != domain.StatusCompleted {
		t.Fatalf("one failure must not block the next task: %+v", gotGood)
	}
}

func TestTickRecoversPanic(t *testing.T) {
	now := time.Now()
	exec := ExecFunc(func(ctx context.Context, typ domain.TaskType, params json.RawMessage) (domain.Result, error) {
		panic("handler bug")
	})
	p, reg, _ := newHarness(t, now, exec, 0)

	task := schedule(t, reg, domain.BulkBlocking, now.Add(-time.Minute), "U1")
	if n := p.Tick(context.Background(), now); n != 1 {
		t.Fatalf("panicking task must still resolve, got %d", n)
	}
	got, _ := reg.Get(task.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected FAILED after panic, got %s", got.Status)
	}
}

func TestTickTimesOutSlowExecution(t *testing.T) {
	now := time.Now()
	exec := ExecFunc(func(ctx context.Context, typ domain.TaskType, params json.RawMessage) (domain.Result, error) {
		<-ctx.Done()
		return domain.Result{}, ctx.Err()
	})
	p, reg, _ := newHarness(t, now, exec, 20*time.Millisecond)

	task := schedule(t, reg, domain.BulkPolicyChange, now.Add(-time.Minute), "U1")
	p.Tick(context.Background(), now)

	got, _ := reg.Get(task.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("timed-out task must fail, got %s", got.Status)
	}
	if got.Result == nil || got.Result.Message == "" {
		t.Fatalf("timeout must be captured in the result message")
	}
}

func TestTickSingleFlight(t *testing.T) {
	now := time.Now()
	started := make(chan struct{})
	release := make(chan struct{})
	exec := ExecFunc(func(ctx context.Context, typ domain.TaskType, params json.RawMessage) (domain.Result, error) {
		close(started)
		<-release
		return domain.Result{Success: true}, nil
	})
	p, reg, _ := newHarness(t, now, exec, 0)

	schedule(t, reg, domain.SingleActivation, now.Add(-time.Minute), "U1")
	done := make(chan int)
	go func() { done <- p.Tick(context.Background(), now) }()
	<-started

	// overlapping tick must not start a second scan
	if n := p.Tick(context.Background(), now); n != 0 {
		t.Fatalf("overlapping tick must be skipped, got %d", n)
	}
	close(release)
	if n := <-done; n != 1 {
		t.Fatalf("first tick must resolve the task, got %d", n)
	}
}

func TestTickBatchesPersistence(t *testing.T) {
	now := time.Now()
	p, reg, mem := newHarness(t, now, okExec("ok"), 0)

	for _, id := range []string{"U1", "U2", "U3"} {
		schedule(t, reg, domain.BulkActivation, now.Add(-time.Minute), id)
	}
	saves := mem.Saves()
	if n := p.Tick(context.Background(), now); n != 3 {
		t.Fatalf("expected 3 resolved, got %d", n)
	}
	if mem.Saves() != saves+1 {
		t.Fatalf("a tick batch must persist exactly once, got %d extra writes", mem.Saves()-saves)
	}
}

func TestTickAfterCancelDoesNothing(t *testing.T) {
	now := time.Now()
	p, reg, _ := newHarness(t, now, okExec("ok"), 0)

	task := schedule(t, reg, domain.SingleSuspension, now.Add(time.Hour), "U1")
	reg.Cancel(context.Background(), task.ID)

	p.Tick(context.Background(), now.Add(2*time.Hour))
	got, _ := reg.Get(task.ID)
	if got.Status != domain.StatusCancelled {
		t.Fatalf("cancelled task must stay CANCELLED, got %s", got.Status)
	}
}
