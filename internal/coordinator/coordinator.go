// Package coordinator drives the generation backend for scenarios and risk
// assessments and reconciles its results into the case store.
//
// A unit of work is one component (scenarios) or one scenario (risk
// assessment). The coordinator owns the set of units currently generating,
// the per-case auto-generation latch, pending overwrites awaiting
// confirmation and the notice channel shown to the user.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iisharvard/a2b-sub002/internal/diff"
	"github.com/iisharvard/a2b-sub002/internal/domain"
	"github.com/iisharvard/a2b-sub002/internal/metrics"
	"github.com/iisharvard/a2b-sub002/internal/state"
	"github.com/iisharvard/a2b-sub002/internal/workflow"
)

// Backend is the generation service.
type Backend interface {
	GenerateScenarios(ctx context.Context, componentID string) ([]domain.Scenario, error)
	ForceGenerateScenarios(ctx context.Context, componentID string) ([]domain.Scenario, error)
	GenerateRiskAssessment(ctx context.Context, scenarioID string) (domain.RiskAssessment, error)
}

// Journal persists generation history. store.Journal implements it.
type Journal interface {
	RecordEvent(ctx context.Context, e domain.GenerationEvent) (int64, error)
	SaveSnapshot(ctx context.Context, s domain.CaseSnapshot) error
	RecordAudit(ctx context.Context, r domain.AuditRecord) error
}

// Config holds coordinator limits.
type Config struct {
	MaxPerUnit       int
	RateLimitBackoff time.Duration
	Actor            string
}

// DefaultConfig returns the reference limits.
func DefaultConfig() Config {
	return Config{
		MaxPerUnit:       domain.MaxScenariosPerComponent,
		RateLimitBackoff: 5000 * time.Millisecond,
		Actor:            "user",
	}
}

// Options modify a generation request.
type Options struct {
	ForceRefresh bool
	// RequireConfirm holds a forced overwrite of existing content as pending
	// until ConfirmOverwrite or DiscardPending is called.
	RequireConfirm bool
}

// Result is the outcome of a single-unit generation.
type Result struct {
	Kind            domain.ArtifactKind     `json:"kind"`
	UnitID          string                  `json:"unitId"`
	Scenarios       []domain.Scenario       `json:"scenarios,omitempty"`
	RiskAssessments []domain.RiskAssessment `json:"riskAssessments,omitempty"`
	CacheHit        bool                    `json:"cacheHit"`
	Pending         bool                    `json:"pending"`
	Diff            *diff.CollectionDiff    `json:"diff,omitempty"`
}

// Coordinator reconciles backend output into a state.Store.
type Coordinator struct {
	Store   *state.Store
	Tracker *workflow.Tracker
	Gates   *workflow.GateRegistry
	Backend Backend
	Journal Journal
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Config  Config

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	newID func() string

	// commitMu orders result commits against cascading deletes.
	commitMu sync.Mutex

	mu            sync.Mutex
	generating    map[string]struct{}
	autoGenerated string
	pending       map[string]pendingOverwrite
	notices       []Notice
	onNotice      []func(Notice)
}

// pendingOverwrite is a forced result held back until the user confirms.
type pendingOverwrite struct {
	caseID string
	before string
	epoch  uint64
	result Result
}

// New creates a Coordinator and subscribes the tracker to store mutations.
func New(store *state.Store, tracker *workflow.Tracker, backend Backend, cfg Config) *Coordinator {
	def := DefaultConfig()
	if cfg.MaxPerUnit <= 0 {
		cfg.MaxPerUnit = def.MaxPerUnit
	}
	if cfg.RateLimitBackoff <= 0 {
		cfg.RateLimitBackoff = def.RateLimitBackoff
	}
	if cfg.Actor == "" {
		cfg.Actor = def.Actor
	}
	c := &Coordinator{
		Store:      store,
		Tracker:    tracker,
		Gates:      workflow.NewGateRegistry(tracker),
		Backend:    backend,
		Logger:     slog.Default(),
		Config:     cfg,
		sleep:      sleepCtx,
		now:        time.Now,
		newID:      uuid.NewString,
		generating: make(map[string]struct{}),
		pending:    make(map[string]pendingOverwrite),
	}
	store.Subscribe(tracker.Observe)
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func unitKey(caseID string, kind domain.ArtifactKind, unitID string) string {
	return caseID + "/" + string(kind) + "/" + unitID
}

// acquire adds a unit to the generating set. In-flight units are scoped by
// case, so a case switch starts with an empty set.
func (c *Coordinator) acquire(caseID string, kind domain.ArtifactKind, unitID string) (func(), error) {
	key := unitKey(caseID, kind, unitID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.generating[key]; busy {
		return nil, domain.ErrAlreadyGenerating
	}
	c.generating[key] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.generating, key)
		c.mu.Unlock()
	}, nil
}

// IsGenerating reports whether a unit of the current case is in flight.
func (c *Coordinator) IsGenerating(kind domain.ArtifactKind, unitID string) bool {
	key := unitKey(c.Store.CaseID(), kind, unitID)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.generating[key]
	return ok
}

// Generating lists the in-flight units of the current case.
func (c *Coordinator) Generating() []string {
	prefix := c.Store.CaseID() + "/"
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for key := range c.generating {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out
}

func (c *Coordinator) observe(kind domain.ArtifactKind, outcome string) {
	if c.Metrics != nil {
		c.Metrics.ObserveGeneration(string(kind), outcome)
	}
}

func (c *Coordinator) startTimer(kind domain.ArtifactKind) func() {
	if c.Metrics == nil {
		return func() {}
	}
	return c.Metrics.Started(string(kind))
}

func (c *Coordinator) recordEvent(ctx context.Context, caseID string, kind domain.ArtifactKind, unitID, eventType string, payload any) {
	if c.Journal == nil || caseID == "" {
		return
	}
	_, err := c.Journal.RecordEvent(ctx, domain.GenerationEvent{
		CaseID:      caseID,
		Kind:        kind,
		UnitID:      unitID,
		EventType:   eventType,
		PayloadJSON: mustJSON(payload),
		CreatedAt:   c.now().Unix(),
	})
	if err != nil {
		c.Logger.Error("record generation event", "case", caseID, "event", eventType, "err", err)
	}
}

func (c *Coordinator) recordAudit(ctx context.Context, caseID, action string, request, decision any) {
	if c.Journal == nil || caseID == "" {
		return
	}
	err := c.Journal.RecordAudit(ctx, domain.AuditRecord{
		ID:           c.newID(),
		CaseID:       caseID,
		Category:     "generation",
		Actor:        c.Config.Actor,
		Action:       action,
		RequestJSON:  mustJSON(request),
		DecisionJSON: mustJSON(decision),
		Severity:     "info",
		CreatedAt:    c.now().Unix(),
	})
	if err != nil {
		c.Logger.Error("record audit", "case", caseID, "action", action, "err", err)
	}
}

func (c *Coordinator) saveSnapshot(ctx context.Context, caseID string, kind domain.ArtifactKind, unitID, body string) {
	if c.Journal == nil {
		return
	}
	err := c.Journal.SaveSnapshot(ctx, domain.CaseSnapshot{
		CaseID:       caseID,
		Kind:         kind,
		UnitID:       unitID,
		SnapshotJSON: body,
		CreatedAt:    c.now().Unix(),
	})
	if err != nil {
		c.Logger.Error("save snapshot", "case", caseID, "unit", unitID, "err", err)
	}
}

// checkStale rejects a backend result that no longer applies. It reports
// ErrStaleResult when the loaded case is no longer caseID and a NotFound
// GenerationError when the unit was removed while the backend ran. Callers
// hold commitMu.
func (c *Coordinator) checkStale(ctx context.Context, caseID string, kind domain.ArtifactKind, unitID string, force bool) error {
	if current := c.Store.CaseID(); current != caseID {
		c.Logger.Warn("discarding stale generation result", "kind", kind, "unit", unitID, "case", caseID, "current", current)
		c.observe(kind, metrics.OutcomeStale)
		c.recordEvent(ctx, caseID, kind, unitID, "generation_discarded", map[string]string{"current": current})
		return domain.ErrStaleResult
	}
	if missing := c.unitMissing(kind, unitID); missing != nil {
		c.Logger.Warn("discarding generation result for removed unit", "kind", kind, "unit", unitID, "case", caseID)
		c.observe(kind, metrics.OutcomeStale)
		c.recordEvent(ctx, caseID, kind, unitID, "generation_discarded", map[string]string{"reason": "unit_removed"})
		return missingUnitError(kind, unitID, force, missing)
	}
	return nil
}

// unitMissing returns the not-found sentinel when the unit is gone.
func (c *Coordinator) unitMissing(kind domain.ArtifactKind, unitID string) error {
	switch kind {
	case domain.KindScenarios:
		if _, ok := c.Store.Component(unitID); !ok {
			return domain.ErrComponentNotFound
		}
	case domain.KindRiskAssessments:
		if _, ok := c.Store.Scenario(unitID); !ok {
			return domain.ErrScenarioNotFound
		}
	}
	return nil
}

// markFresh marks kind fresh unless it was invalidated after epoch.
func (c *Coordinator) markFresh(kind domain.ArtifactKind, unitID string, epoch uint64) {
	ok, err := c.Tracker.MarkFreshSince(kind, epoch)
	if err != nil {
		c.Logger.Error("mark fresh", "kind", kind, "err", err)
		return
	}
	if !ok {
		c.Logger.Info("upstream edited during generation, kind stays stale", "kind", kind, "unit", unitID)
	}
}

func mustJSON(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("{\"marshal_error\":%q}", err.Error())
	}
	return string(b)
}
