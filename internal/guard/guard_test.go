package guard

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iisharvard/a2b-sub002/internal/domain"
	"github.com/iisharvard/a2b-sub002/internal/store"
)

// setupGuard creates a Guard with a controllable clock and a test database.
func setupGuard(t *testing.T, limit int) (*Guard, *time.Time) {
	t.Helper()
	dir := t.TempDir()
	db, err := store.NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	g := NewGuard(db, GuardConfig{RateLimitPerMinute: limit}, nil)
	now := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return now }
	return g, &now
}

func TestCheckRateLimit_UnderLimit(t *testing.T) {
	g, _ := setupGuard(t, 5)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := g.CheckRateLimit(ctx, "user-1", "case-1", "A"); err != nil {
			t.Fatalf("call %d should pass: %v", i+1, err)
		}
	}
	if got := g.Remaining("user-1"); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
}

func TestCheckRateLimit_Exceeded(t *testing.T) {
	g, _ := setupGuard(t, 5)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		g.CheckRateLimit(ctx, "user-1", "case-1", "A")
	}

	err := g.CheckRateLimit(ctx, "user-1", "case-1", "A")
	if err != domain.ErrRateLimitExceeded {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	if !strings.Contains(err.Error(), "rate limit") {
		t.Errorf("message %q must carry the rate limit substring", err.Error())
	}

	recs, err := g.AuditRepo.ListByCase(ctx, g.DB, "case-1")
	if err != nil {
		t.Fatalf("ListByCase: %v", err)
	}
	if len(recs) != 1 || recs[0].Action != "deny" || recs[0].Actor != "user-1" {
		t.Errorf("audit records = %+v, want one deny by user-1", recs)
	}
}

func TestCheckRateLimit_WindowSlides(t *testing.T) {
	g, now := setupGuard(t, 2)
	ctx := context.Background()

	g.CheckRateLimit(ctx, "user-1", "", "A")
	*now = now.Add(30 * time.Second)
	g.CheckRateLimit(ctx, "user-1", "", "B")

	if err := g.CheckRateLimit(ctx, "user-1", "", "C"); err != domain.ErrRateLimitExceeded {
		t.Fatalf("expected ErrRateLimitExceeded inside the window, got %v", err)
	}

	// The first call leaves the window; one slot frees up.
	*now = now.Add(31 * time.Second)
	if err := g.CheckRateLimit(ctx, "user-1", "", "C"); err != nil {
		t.Fatalf("expected a freed slot, got %v", err)
	}
	if err := g.CheckRateLimit(ctx, "user-1", "", "D"); err != domain.ErrRateLimitExceeded {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
}

func TestCheckRateLimit_PerUser(t *testing.T) {
	g, _ := setupGuard(t, 1)
	ctx := context.Background()

	if err := g.CheckRateLimit(ctx, "user-1", "", "A"); err != nil {
		t.Fatalf("user-1: %v", err)
	}
	if err := g.CheckRateLimit(ctx, "user-2", "", "A"); err != nil {
		t.Fatalf("user-2 has its own window: %v", err)
	}
}

func TestCheckRateLimit_Disabled(t *testing.T) {
	g, _ := setupGuard(t, 0)
	for i := 0; i < 100; i++ {
		if err := g.CheckRateLimit(context.Background(), "user-1", "", "A"); err != nil {
			t.Fatalf("disabled guard denied call %d: %v", i, err)
		}
	}
	if got := g.Remaining("user-1"); got != -1 {
		t.Errorf("Remaining = %d, want -1 when disabled", got)
	}
}

type countingBackend struct {
	calls atomic.Int32
}

func (b *countingBackend) GenerateScenarios(ctx context.Context, componentID string) ([]domain.Scenario, error) {
	b.calls.Add(1)
	return []domain.Scenario{{ID: componentID + "-1", ComponentID: componentID}}, nil
}

func (b *countingBackend) ForceGenerateScenarios(ctx context.Context, componentID string) ([]domain.Scenario, error) {
	return b.GenerateScenarios(ctx, componentID)
}

func (b *countingBackend) GenerateRiskAssessment(ctx context.Context, scenarioID string) (domain.RiskAssessment, error) {
	b.calls.Add(1)
	return domain.RiskAssessment{ScenarioID: scenarioID}, nil
}

func TestLimitedBackend(t *testing.T) {
	g, _ := setupGuard(t, 2)
	next := &countingBackend{}
	b := &LimitedBackend{Next: next, Guard: g, UserID: "user-1", CaseID: func() string { return "case-1" }}
	ctx := context.Background()

	if _, err := b.GenerateScenarios(ctx, "A"); err != nil {
		t.Fatalf("GenerateScenarios: %v", err)
	}
	if _, err := b.GenerateRiskAssessment(ctx, "A-1"); err != nil {
		t.Fatalf("GenerateRiskAssessment: %v", err)
	}
	if _, err := b.ForceGenerateScenarios(ctx, "A"); err != domain.ErrRateLimitExceeded {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	if got := next.calls.Load(); got != 2 {
		t.Errorf("backend calls = %d, want 2", got)
	}
}
