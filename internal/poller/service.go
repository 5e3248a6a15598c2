// Package poller drives due PENDING tasks to completion on a fixed interval.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"deferq/internal/domain"
	"deferq/internal/registry"
)

// Executor performs the business operation behind a due task. It may be slow
// or remote; the poller bounds it with a timeout and converts any error into
// a failed result.
type Executor interface {
	Execute(ctx context.Context, typ domain.TaskType, params json.RawMessage) (domain.Result, error)
}

// ExecFunc adapts a function to Executor.
type ExecFunc func(ctx context.Context, typ domain.TaskType, params json.RawMessage) (domain.Result, error)

func (f ExecFunc) Execute(ctx context.Context, typ domain.TaskType, params json.RawMessage) (domain.Result, error) {
	return f(ctx, typ, params)
}

type Service struct {
	reg      *registry.Registry
	exec     Executor
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	stop     chan struct{}
	reload   chan time.Duration
	scanning atomic.Bool // single-flight across ticks
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(reg *registry.Registry, exec Executor, interval, timeout time.Duration, opts ...Option) *Service {
	s := &Service{
		reg:      reg,
		exec:     exec,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
		stop:     make(chan struct{}),
		reload:   make(chan time.Duration, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start runs the poll loop until ctx is cancelled or Stop is called. One
// immediate check fires before the first tick so tasks that came due during
// downtime run as soon as the process resumes.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("due-task poller started")
	s.Tick(ctx, s.now())

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case d := <-s.reload:
			s.interval = d
			ticker.Reset(d)
			log.Info().Dur("interval", d).Msg("poll interval updated")
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

func (s *Service) Stop() {
	close(s.stop)
}

// SetInterval applies a new poll interval to a running loop.
func (s *Service) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case s.reload <- d:
	default:
	}
}

// Tick scans for due tasks and resolves them. Returns the number of tasks
// driven to a terminal state. If a previous tick's batch is still being
// processed the scan is skipped entirely; a task must never be picked up by
// two overlapping scans.
func (s *Service) Tick(ctx context.Context, now time.Time) int {
	if !s.scanning.CompareAndSwap(false, true) {
		log.Warn().Msg("previous poll still running, skipping tick")
		return 0
	}
	defer s.scanning.Store(false)

	due := s.reg.ClaimDue(now)
	if len(due) == 0 {
		return 0
	}

	outcomes := make([]registry.Outcome, 0, len(due))
	for _, t := range due {
		res := s.executeOne(ctx, t)
		outcomes = append(outcomes, registry.Outcome{ID: t.ID, Result: res})
		if res.Success {
			log.Info().Str("task_id", t.ID).Str("type", string(t.Type)).Msg("task executed")
		} else {
			log.Warn().Str("task_id", t.ID).Str("type", string(t.Type)).Str("error", res.Message).Msg("task execution failed")
		}
	}
	s.reg.ResolveBatch(ctx, outcomes, s.now())
	return len(outcomes)
}

// executeOne is the isolation boundary: a panic, error or timeout in one
// task's execution becomes a failed result and never reaches the loop.
func (s *Service) executeOne(ctx context.Context, t domain.Task) (res domain.Result) {
	defer func() {
		if p := recover(); p != nil {
			res = domain.Result{Success: false, Message: fmt.Sprintf("execution panic: %v", p)}
		}
	}()

	execCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.exec.Execute(execCtx, t.Type, t.Parameters)
	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return domain.Result{Success: false, Message: fmt.Sprintf("execution timed out after %s", s.timeout)}
		}
		return domain.Result{Success: false, Message: err.Error()}
	}
	return res
}
