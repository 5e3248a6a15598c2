// Package notify provides user-visible notification sinks. Delivery is
// fire-and-forget; the scheduler never consults a return value.
package notify

import (
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Sink receives user-visible messages.
type Sink interface {
	Success(msg string)
	Info(msg string)
}

// LogSink writes notifications to the process log. It stands in for the
// portal's toast surface, which is outside this service.
type LogSink struct{}

func (LogSink) Success(msg string) { log.Info().Str("kind", "success").Msg(msg) }
func (LogSink) Info(msg string)    { log.Info().Str("kind", "info").Msg(msg) }

// RateLimited wraps a sink with a token-bucket limiter. Notifications over
// the limit are dropped with a warning; a burst of bulk operations must not
// flood the user.
type RateLimited struct {
	next Sink
	lim  *rate.Limiter
}

func NewRateLimited(next Sink, perSec float64, burst int) *RateLimited {
	if perSec <= 0 {
		perSec = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &RateLimited{next: next, lim: rate.NewLimiter(rate.Limit(perSec), burst)}
}

func (r *RateLimited) Success(msg string) {
	if !r.lim.Allow() {
		log.Warn().Msg("notification rate limit hit, dropping")
		return
	}
	r.next.Success(msg)
}

func (r *RateLimited) Info(msg string) {
	if !r.lim.Allow() {
		log.Warn().Msg("notification rate limit hit, dropping")
		return
	}
	r.next.Info(msg)
}
