package cache

import (
	"context"
	"testing"

	"github.com/jonwraymond/modmemo/anyvalue"
	"github.com/jonwraymond/modmemo/health"
)

func TestChecker(t *testing.T) {
	ctx := context.Background()

	c := New(SessionPolicy(1))
	chk := NewChecker(c)
	if chk.Name() != "cache" {
		t.Errorf("Name() = %q", chk.Name())
	}
	if r := chk.Check(ctx); r.Status != health.StatusHealthy {
		t.Errorf("empty cache status = %v", r.Status)
	}

	_ = c.Insert(ctx, "a", anyvalue.Wrap(1))
	r := chk.Check(ctx)
	if r.Status != health.StatusDegraded {
		t.Errorf("full session tier status = %v", r.Status)
	}
	if r.Details["session"] != 1 {
		t.Errorf("details = %v", r.Details)
	}

	if r := NewChecker(nil).Check(ctx); r.Status != health.StatusUnhealthy {
		t.Errorf("nil cache status = %v", r.Status)
	}
}
