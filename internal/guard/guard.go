// Package guard throttles outbound generation calls per user before they
// reach the backend.
package guard

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/iisharvard/a2b-sub002/internal/domain"
	"github.com/iisharvard/a2b-sub002/internal/store"
)

// GuardConfig holds rate limits.
type GuardConfig struct {
	RateLimitPerMinute int
	Window             time.Duration
}

// Guard enforces a per-user sliding window over outbound generation calls.
// Denials are written to the audit log when a database is attached.
type Guard struct {
	Config    GuardConfig
	AuditRepo *store.AuditRepo
	DB        *sql.DB
	Logger    *slog.Logger

	now func() time.Time

	mu    sync.Mutex
	calls map[string][]time.Time
}

// NewGuard creates a Guard. db may be nil.
func NewGuard(db *sql.DB, cfg GuardConfig, logger *slog.Logger) *Guard {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		Config:    cfg,
		AuditRepo: &store.AuditRepo{},
		DB:        db,
		Logger:    logger,
		now:       time.Now,
		calls:     make(map[string][]time.Time),
	}
}

// CheckRateLimit admits one call for userID or returns ErrRateLimitExceeded.
// A non-positive limit disables the check.
func (g *Guard) CheckRateLimit(ctx context.Context, userID, caseID, unitID string) error {
	if g.Config.RateLimitPerMinute <= 0 {
		return nil
	}

	g.mu.Lock()
	now := g.now()
	cutoff := now.Add(-g.Config.Window)
	kept := g.calls[userID][:0]
	for _, at := range g.calls[userID] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) >= g.Config.RateLimitPerMinute {
		g.calls[userID] = kept
		g.mu.Unlock()
		g.recordDenial(ctx, userID, caseID, unitID, len(kept))
		return domain.ErrRateLimitExceeded
	}
	g.calls[userID] = append(kept, now)
	g.mu.Unlock()
	return nil
}

// Remaining reports how many calls userID may still make in the current window.
func (g *Guard) Remaining(userID string) int {
	if g.Config.RateLimitPerMinute <= 0 {
		return -1
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-g.Config.Window)
	n := 0
	for _, at := range g.calls[userID] {
		if at.After(cutoff) {
			n++
		}
	}
	if n >= g.Config.RateLimitPerMinute {
		return 0
	}
	return g.Config.RateLimitPerMinute - n
}

func (g *Guard) recordDenial(ctx context.Context, userID, caseID, unitID string, inWindow int) {
	g.Logger.Warn("outbound generation throttled", "user", userID, "case", caseID, "unit", unitID, "in_window", inWindow)
	if g.DB == nil || caseID == "" {
		return
	}
	req, _ := json.Marshal(map[string]string{"userId": userID, "unitId": unitID})
	dec, _ := json.Marshal(map[string]any{"allowed": false, "inWindow": inWindow, "limit": g.Config.RateLimitPerMinute})
	err := g.AuditRepo.Record(ctx, g.DB, domain.AuditRecord{
		CaseID:       caseID,
		Category:     "rate_limit",
		Actor:        userID,
		Action:       domain.AuditThrottled,
		RequestJSON:  string(req),
		DecisionJSON: string(dec),
		Severity:     "warn",
		CreatedAt:    g.now().Unix(),
	})
	if err != nil {
		g.Logger.Error("audit rate limit denial", "err", err)
	}
}
