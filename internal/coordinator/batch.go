package coordinator

import (
	"context"
	"errors"
	"sort"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// BatchReport summarizes a generate-all run. A batch never returns an
// error; per-unit failures are collected here.
type BatchReport struct {
	Kind      domain.ArtifactKind                `json:"kind"`
	Attempted int                                `json:"attempted"`
	Succeeded int                                `json:"succeeded"`
	CacheHits int                                `json:"cacheHits"`
	Pending   int                                `json:"pending"`
	Skipped   int                                `json:"skipped"`
	Failed    int                                `json:"failed"`
	Errors    map[string]*domain.GenerationError `json:"-"`
	Stale     bool                               `json:"stale"`
	Canceled  bool                               `json:"canceled"`
}

func newReport(kind domain.ArtifactKind) BatchReport {
	return BatchReport{Kind: kind, Errors: make(map[string]*domain.GenerationError)}
}

// FailedUnits returns the IDs of failed units, sorted.
func (r BatchReport) FailedUnits() []string {
	ids := make([]string, 0, len(r.Errors))
	for id := range r.Errors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *BatchReport) add(unitID string, res Result, err error, classify func(error) *domain.GenerationError) {
	switch {
	case err == nil && res.CacheHit:
		r.CacheHits++
	case err == nil && res.Pending:
		r.Pending++
	case err == nil:
		r.Succeeded++
	case errors.Is(err, domain.ErrStaleResult), errors.Is(err, domain.ErrNoCaseLoaded):
		r.Stale = true
	case errors.Is(err, domain.ErrAlreadyGenerating),
		errors.Is(err, domain.ErrComponentNotFound),
		errors.Is(err, domain.ErrScenarioNotFound):
		r.Skipped++
	default:
		r.Failed++
		r.Errors[unitID] = classify(err)
	}
}

// GenerateAllScenarios runs the single-unit rule for every component in
// declared order. The scenarios kind is marked fresh once the batch has
// run, even when some components failed, unless an edit invalidated it
// while the batch was running. Units removed mid-batch count as skipped.
func (c *Coordinator) GenerateAllScenarios(ctx context.Context, opts Options) BatchReport {
	var units []string
	for _, comp := range c.Store.Components() {
		units = append(units, comp.ID)
	}
	return c.runBatch(ctx, domain.KindScenarios, units, opts, c.generateScenarios)
}

// GenerateAllRiskAssessments runs the single-unit rule for every scenario
// in store order.
func (c *Coordinator) GenerateAllRiskAssessments(ctx context.Context, opts Options) BatchReport {
	var units []string
	for _, sc := range c.Store.Scenarios() {
		units = append(units, sc.ID)
	}
	return c.runBatch(ctx, domain.KindRiskAssessments, units, opts, c.generateRiskAssessment)
}

type unitFunc func(ctx context.Context, unitID string, opts Options, batch bool) (Result, error)

func (c *Coordinator) runBatch(ctx context.Context, kind domain.ArtifactKind, units []string, opts Options, gen unitFunc) BatchReport {
	report := newReport(kind)
	caseID := c.Store.CaseID()
	if caseID == "" {
		return report
	}
	epoch := c.Tracker.Epoch(kind)

	c.Logger.Info("batch generation started", "kind", kind, "case", caseID, "units", len(units))
	for _, id := range units {
		if ctx.Err() != nil {
			report.Canceled = true
			break
		}
		report.Attempted++
		res, err := gen(ctx, id, opts, true)
		report.add(id, res, err, func(err error) *domain.GenerationError {
			return Classify(err, kind, id, opts.ForceRefresh, c.Config.RateLimitBackoff)
		})
		if report.Stale {
			break
		}
	}

	if !report.Stale && !report.Canceled {
		c.markFresh(kind, "", epoch)
	}
	if c.Metrics != nil {
		c.Metrics.ObserveBatch(string(kind), report.Failed)
	}
	c.Logger.Info("batch generation finished",
		"kind", kind,
		"case", caseID,
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"cache_hits", report.CacheHits,
		"failed", report.Failed,
		"stale", report.Stale,
	)
	c.recordEvent(ctx, caseID, kind, "", "batch_completed", report)
	c.batchNotice(report)
	return report
}

// AutoGenerate runs GenerateAllScenarios once per loaded case. It reports
// false without generating when the latch already holds the current case
// ID or the case has no components yet.
func (c *Coordinator) AutoGenerate(ctx context.Context) (BatchReport, bool) {
	caseID := c.Store.CaseID()
	if caseID == "" || len(c.Store.Components()) == 0 {
		return BatchReport{}, false
	}

	c.mu.Lock()
	if c.autoGenerated == caseID {
		c.mu.Unlock()
		return BatchReport{}, false
	}
	c.autoGenerated = caseID
	c.mu.Unlock()

	c.Logger.Info("auto-generating scenarios", "case", caseID)
	return c.GenerateAllScenarios(ctx, Options{}), true
}
