package notify

import (
	"testing"
)

type countingSink struct {
	success int
	info    int
}

func (c *countingSink) Success(string) { c.success++ }
func (c *countingSink) Info(string)    { c.info++ }

func TestRateLimitedPassesWithinBudget(t *testing.T) {
	inner := &countingSink{}
	rl := NewRateLimited(inner, 100, 5)

	rl.Success("a")
	rl.Info("b")
	if inner.success != 1 || inner.info != 1 {
		t.Fatalf("messages within budget must pass: %+v", inner)
	}
}

func TestRateLimitedDropsBurst(t *testing.T) {
	inner := &countingSink{}
	// tiny refill rate, burst of 2: third message in the same instant is dropped
	rl := NewRateLimited(inner, 0.001, 2)

	rl.Success("a")
	rl.Success("b")
	rl.Success("c")
	if inner.success != 2 {
		t.Fatalf("expected 2 delivered, got %d", inner.success)
	}
}
