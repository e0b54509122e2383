package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leadpulse/leadpulse/internal/analytics"
	"github.com/leadpulse/leadpulse/internal/lead"
)

// stubSource returns a fixed snapshot.
type stubSource struct {
	snap analytics.PerformanceSnapshot
	err  error
}

func (s *stubSource) Snapshot(ctx context.Context) (analytics.PerformanceSnapshot, error) {
	return s.snap, s.err
}

func newEvaluatorFixture(t *testing.T, source MetricsSource, cfg AlertEvaluatorConfig) (*AlertEvaluator, *InMemoryRepository) {
	t.Helper()
	repo := NewInMemoryRepository()
	users := lead.NewInMemoryUserRepository()
	users.Put(&lead.User{ID: "admin-1", Role: lead.RoleAdmin})
	fanout := NewFanout(repo, lead.NewInMemoryRepository(), users, NewRegistry(nil), nil, nil, nil)
	return NewAlertEvaluator(source, fanout, nil, nil, cfg), repo
}

func TestEvaluate_NoBreach(t *testing.T) {
	source := &stubSource{snap: analytics.PerformanceSnapshot{ResponseTime: 120, ConversionRate: 45}}
	e, repo := newEvaluatorFixture(t, source, AlertEvaluatorConfig{})

	if err := e.Evaluate(context.Background()); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if got := len(repo.All()); got != 0 {
		t.Errorf("raised %d alerts with healthy metrics", got)
	}
}

func TestEvaluate_HighResponseTime(t *testing.T) {
	source := &stubSource{snap: analytics.PerformanceSnapshot{ResponseTime: 360, ConversionRate: 45}}
	e, repo := newEvaluatorFixture(t, source, AlertEvaluatorConfig{})

	if err := e.Evaluate(context.Background()); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	all := repo.All()
	if len(all) != 1 {
		t.Fatalf("raised %d alerts, want 1", len(all))
	}
	n := all[0]
	if n.Type != TypeSystemAlert || n.Priority != PriorityHigh {
		t.Errorf("alert notification = %+v", n)
	}
	if n.Title != "High Response Time Alert" {
		t.Errorf("title = %q", n.Title)
	}
	// 360s rounds to 6 minutes
	if n.Message != "Average response time is 6 minutes" {
		t.Errorf("message = %q", n.Message)
	}
}

func TestEvaluate_LowConversion(t *testing.T) {
	source := &stubSource{snap: analytics.PerformanceSnapshot{ResponseTime: 120, ConversionRate: 12.5}}
	e, repo := newEvaluatorFixture(t, source, AlertEvaluatorConfig{})

	if err := e.Evaluate(context.Background()); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	all := repo.All()
	if len(all) != 1 {
		t.Fatalf("raised %d alerts, want 1", len(all))
	}
	if all[0].Message != "Conversion rate dropped to 12.5%" {
		t.Errorf("message = %q", all[0].Message)
	}
}

func TestEvaluate_BothBreached(t *testing.T) {
	source := &stubSource{snap: analytics.PerformanceSnapshot{ResponseTime: 600, ConversionRate: 5}}
	e, repo := newEvaluatorFixture(t, source, AlertEvaluatorConfig{})

	if err := e.Evaluate(context.Background()); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if got := len(repo.All()); got != 2 {
		t.Errorf("raised %d alerts, want 2", got)
	}
}

func TestEvaluate_ExactThresholdDoesNotFire(t *testing.T) {
	source := &stubSource{snap: analytics.PerformanceSnapshot{ResponseTime: 300, ConversionRate: 20}}
	e, repo := newEvaluatorFixture(t, source, AlertEvaluatorConfig{})

	if err := e.Evaluate(context.Background()); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if got := len(repo.All()); got != 0 {
		t.Errorf("raised %d alerts at exact thresholds, want 0", got)
	}
}

func TestEvaluate_RefiresWithoutCooldown(t *testing.T) {
	source := &stubSource{snap: analytics.PerformanceSnapshot{ResponseTime: 360, ConversionRate: 45}}
	e, repo := newEvaluatorFixture(t, source, AlertEvaluatorConfig{})

	for i := 0; i < 3; i++ {
		if err := e.Evaluate(context.Background()); err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
	}
	if got := len(repo.All()); got != 3 {
		t.Errorf("raised %d alerts across 3 cycles, want 3", got)
	}
}

func TestEvaluate_CooldownSuppressesRepeats(t *testing.T) {
	source := &stubSource{snap: analytics.PerformanceSnapshot{ResponseTime: 360, ConversionRate: 45}}
	e, repo := newEvaluatorFixture(t, source, AlertEvaluatorConfig{Cooldown: 10 * time.Minute})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	e.SetNowFunc(func() time.Time { return now })

	if err := e.Evaluate(context.Background()); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	now = base.Add(time.Minute)
	if err := e.Evaluate(context.Background()); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if got := len(repo.All()); got != 1 {
		t.Fatalf("raised %d alerts within cooldown, want 1", got)
	}

	now = base.Add(11 * time.Minute)
	if err := e.Evaluate(context.Background()); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if got := len(repo.All()); got != 2 {
		t.Errorf("raised %d alerts after cooldown elapsed, want 2", got)
	}
}

func TestEvaluate_SnapshotError(t *testing.T) {
	wantErr := errors.New("cache down")
	e, repo := newEvaluatorFixture(t, &stubSource{err: wantErr}, AlertEvaluatorConfig{})

	if err := e.Evaluate(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped %v", err, wantErr)
	}
	if got := len(repo.All()); got != 0 {
		t.Errorf("raised %d alerts on snapshot failure", got)
	}
}

func TestAlertEvaluator_Defaults(t *testing.T) {
	e, _ := newEvaluatorFixture(t, &stubSource{}, AlertEvaluatorConfig{})

	if e.interval != time.Minute {
		t.Errorf("interval = %v, want 1m", e.interval)
	}
	if e.thresholds != DefaultThresholds {
		t.Errorf("thresholds = %+v, want %+v", e.thresholds, DefaultThresholds)
	}
}

func TestAlertEvaluator_StartStop(t *testing.T) {
	source := &stubSource{snap: analytics.PerformanceSnapshot{ResponseTime: 360, ConversionRate: 45}}
	e, repo := newEvaluatorFixture(t, source, AlertEvaluatorConfig{Interval: 10 * time.Millisecond})

	e.Start()
	deadline := time.Now().Add(2 * time.Second)
	for len(repo.All()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("evaluation loop never fired an alert")
		}
		time.Sleep(5 * time.Millisecond)
	}
	e.Stop()
	e.Stop() // idempotent
}
