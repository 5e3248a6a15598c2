// Package retention prunes old finished tasks on a cron schedule so the
// persisted history does not grow without bound.
package retention

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"deferq/internal/registry"
)

type Sweeper struct {
	reg    *registry.Registry
	c      *cron.Cron
	spec   string
	maxAge time.Duration
}

func New(reg *registry.Registry, spec string, maxAge time.Duration) *Sweeper {
	return &Sweeper{reg: reg, c: cron.New(), spec: spec, maxAge: maxAge}
}

// ValidateSpec checks a cron expression up front, at config load time.
func ValidateSpec(expr string) error {
	_, err := cron.ParseStandard(expr)
	return err
}

func (s *Sweeper) Start() error {
	_, err := s.c.AddFunc(s.spec, s.sweep)
	if err != nil {
		return err
	}
	s.c.Start()
	log.Info().Str("spec", s.spec).Dur("max_age", s.maxAge).Msg("retention sweeper started")
	return nil
}

func (s *Sweeper) Stop() {
	<-s.c.Stop().Done()
}

func (s *Sweeper) sweep() {
	n := s.reg.PruneFinished(context.Background(), s.maxAge)
	if n > 0 {
		log.Info().Int("pruned", n).Msg("retention sweep removed finished tasks")
	}
}
