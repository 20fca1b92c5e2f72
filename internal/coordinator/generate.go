package coordinator

import (
	"context"
	"fmt"

	"github.com/iisharvard/a2b-sub002/internal/diff"
	"github.com/iisharvard/a2b-sub002/internal/domain"
	"github.com/iisharvard/a2b-sub002/internal/metrics"
	"github.com/iisharvard/a2b-sub002/internal/workflow"
)

// GenerateScenarios generates the scenarios of one component. Cached
// content is returned without a backend call when the scenarios kind is
// fresh and ForceRefresh is not set.
func (c *Coordinator) GenerateScenarios(ctx context.Context, componentID string, opts Options) (Result, error) {
	res, err := c.generateScenarios(ctx, componentID, opts, false)
	c.noticeFor(domain.KindScenarios, componentID, opts, res, err)
	return res, err
}

// GenerateRiskAssessment generates the risk assessment of one scenario.
func (c *Coordinator) GenerateRiskAssessment(ctx context.Context, scenarioID string, opts Options) (Result, error) {
	res, err := c.generateRiskAssessment(ctx, scenarioID, opts, false)
	c.noticeFor(domain.KindRiskAssessments, scenarioID, opts, res, err)
	return res, err
}

func (c *Coordinator) cacheHit(kind domain.ArtifactKind, unitID string, opts Options, hasContent bool) (bool, error) {
	gate, err := c.Gates.Get(kind)
	if err != nil {
		return false, err
	}
	decision, err := gate.Evaluate(workflow.CacheRequest{
		Kind:         kind,
		UnitID:       unitID,
		ForceRefresh: opts.ForceRefresh,
		HasContent:   hasContent,
	})
	if err != nil {
		return false, err
	}
	if !decision.ServeCached {
		c.Logger.Debug("cache bypassed", "kind", kind, "unit", unitID, "reasons", decision.Reasons)
	}
	return decision.ServeCached, nil
}

func (c *Coordinator) generateScenarios(ctx context.Context, componentID string, opts Options, batch bool) (Result, error) {
	kind := domain.KindScenarios
	caseID := c.Store.CaseID()
	if caseID == "" {
		return Result{}, domain.ErrNoCaseLoaded
	}
	epoch := c.Tracker.Epoch(kind)
	if _, ok := c.Store.Component(componentID); !ok {
		return Result{}, c.fail(ctx, caseID, missingUnitError(kind, componentID, opts.ForceRefresh, domain.ErrComponentNotFound))
	}

	existing := c.Store.ScenariosForComponent(componentID)
	hit, err := c.cacheHit(kind, componentID, opts, len(existing) > 0)
	if err != nil {
		return Result{}, err
	}
	if hit {
		c.observe(kind, metrics.OutcomeCacheHit)
		return Result{Kind: kind, UnitID: componentID, Scenarios: existing, CacheHit: true}, nil
	}

	release, err := c.acquire(caseID, kind, componentID)
	if err != nil {
		c.observe(kind, metrics.OutcomeRejected)
		c.Logger.Info("generation already in flight", "kind", kind, "unit", componentID)
		return Result{}, err
	}
	defer release()

	c.Logger.Info("generating", "kind", kind, "case", caseID, "unit", componentID, "force", opts.ForceRefresh)
	c.recordEvent(ctx, caseID, kind, componentID, "generation_started", map[string]bool{"forceRefresh": opts.ForceRefresh})

	done := c.startTimer(kind)
	var raw []domain.Scenario
	if opts.ForceRefresh {
		raw, err = c.Backend.ForceGenerateScenarios(ctx, componentID)
	} else {
		raw, err = c.Backend.GenerateScenarios(ctx, componentID)
	}
	done()
	if err != nil {
		return Result{}, c.fail(ctx, caseID, Classify(err, kind, componentID, opts.ForceRefresh, c.Config.RateLimitBackoff))
	}

	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	if err := c.checkStale(ctx, caseID, kind, componentID, opts.ForceRefresh); err != nil {
		return Result{}, err
	}
	existing = c.Store.ScenariosForComponent(componentID)

	shaped, err := shapeScenarios(componentID, raw, c.Config.MaxPerUnit)
	if err != nil {
		return Result{}, c.fail(ctx, caseID, validationError(kind, componentID, opts.ForceRefresh, err))
	}

	res := Result{Kind: kind, UnitID: componentID, Scenarios: shaped}
	if opts.ForceRefresh && len(existing) > 0 {
		if d, err := diff.Records(existing, shaped, "id"); err != nil {
			c.Logger.Warn("diff scenarios", "unit", componentID, "err", err)
		} else {
			res.Diff = &d
		}
		before := mustJSON(existing)
		if opts.RequireConfirm && res.Diff != nil && !res.Diff.IsEmpty() {
			return c.hold(ctx, caseID, before, epoch, res), nil
		}
		c.saveSnapshot(ctx, caseID, kind, componentID, before)
	}

	c.commit(res)
	if !batch {
		c.markFresh(kind, componentID, epoch)
	}
	c.observe(kind, metrics.OutcomeSuccess)
	c.recordEvent(ctx, caseID, kind, componentID, "generation_succeeded", map[string]int{"received": len(raw), "kept": len(shaped)})
	return res, nil
}

func (c *Coordinator) generateRiskAssessment(ctx context.Context, scenarioID string, opts Options, batch bool) (Result, error) {
	kind := domain.KindRiskAssessments
	caseID := c.Store.CaseID()
	if caseID == "" {
		return Result{}, domain.ErrNoCaseLoaded
	}
	epoch := c.Tracker.Epoch(kind)
	if _, ok := c.Store.Scenario(scenarioID); !ok {
		return Result{}, c.fail(ctx, caseID, missingUnitError(kind, scenarioID, opts.ForceRefresh, domain.ErrScenarioNotFound))
	}

	existing := c.Store.RiskAssessmentsForScenario(scenarioID)
	hit, err := c.cacheHit(kind, scenarioID, opts, len(existing) > 0)
	if err != nil {
		return Result{}, err
	}
	if hit {
		c.observe(kind, metrics.OutcomeCacheHit)
		return Result{Kind: kind, UnitID: scenarioID, RiskAssessments: existing, CacheHit: true}, nil
	}

	release, err := c.acquire(caseID, kind, scenarioID)
	if err != nil {
		c.observe(kind, metrics.OutcomeRejected)
		c.Logger.Info("generation already in flight", "kind", kind, "unit", scenarioID)
		return Result{}, err
	}
	defer release()

	c.Logger.Info("generating", "kind", kind, "case", caseID, "unit", scenarioID, "force", opts.ForceRefresh)
	c.recordEvent(ctx, caseID, kind, scenarioID, "generation_started", map[string]bool{"forceRefresh": opts.ForceRefresh})

	done := c.startTimer(kind)
	raw, err := c.Backend.GenerateRiskAssessment(ctx, scenarioID)
	done()
	if err != nil {
		return Result{}, c.fail(ctx, caseID, Classify(err, kind, scenarioID, opts.ForceRefresh, c.Config.RateLimitBackoff))
	}

	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	if err := c.checkStale(ctx, caseID, kind, scenarioID, opts.ForceRefresh); err != nil {
		return Result{}, err
	}
	existing = c.Store.RiskAssessmentsForScenario(scenarioID)

	ra, err := shapeRiskAssessment(scenarioID, raw, c.newID)
	if err != nil {
		return Result{}, c.fail(ctx, caseID, validationError(kind, scenarioID, opts.ForceRefresh, err))
	}

	res := Result{Kind: kind, UnitID: scenarioID, RiskAssessments: []domain.RiskAssessment{ra}}
	if opts.ForceRefresh && len(existing) > 0 {
		if d, err := diff.Records(existing, res.RiskAssessments, "id"); err != nil {
			c.Logger.Warn("diff risk assessments", "unit", scenarioID, "err", err)
		} else {
			res.Diff = &d
		}
		before := mustJSON(existing)
		if opts.RequireConfirm && res.Diff != nil && !res.Diff.IsEmpty() {
			return c.hold(ctx, caseID, before, epoch, res), nil
		}
		c.saveSnapshot(ctx, caseID, kind, scenarioID, before)
	}

	c.commit(res)
	if !batch {
		c.markFresh(kind, scenarioID, epoch)
	}
	c.observe(kind, metrics.OutcomeSuccess)
	c.recordEvent(ctx, caseID, kind, scenarioID, "generation_succeeded", map[string]string{"id": ra.ID})
	return res, nil
}

// commit writes a shaped result into the store. Risk assessments of
// scenario IDs that a regeneration no longer produces are dropped.
func (c *Coordinator) commit(res Result) {
	switch res.Kind {
	case domain.KindScenarios:
		keep := make(map[string]bool, len(res.Scenarios))
		for _, sc := range res.Scenarios {
			keep[sc.ID] = true
		}
		var orphaned []string
		for _, sc := range c.Store.ScenariosForComponent(res.UnitID) {
			if !keep[sc.ID] {
				orphaned = append(orphaned, sc.ID)
			}
		}
		c.Store.ReplaceScenariosForComponent(res.UnitID, res.Scenarios)
		for _, id := range orphaned {
			for _, ra := range c.Store.RiskAssessmentsForScenario(id) {
				c.Store.DeleteRiskAssessment(ra.ID)
			}
		}
	case domain.KindRiskAssessments:
		c.Store.ReplaceRiskAssessmentsForScenario(res.UnitID, res.RiskAssessments)
	}
}

func (c *Coordinator) fail(ctx context.Context, caseID string, ge *domain.GenerationError) error {
	c.Logger.Warn("generation failed",
		"kind", ge.ArtifactKind,
		"unit", ge.UnitID,
		"error_kind", ge.Kind,
		"recovery", ge.Recovery,
		"err", ge.Cause,
	)
	c.observe(ge.ArtifactKind, metrics.OutcomeFailure)
	if c.Metrics != nil {
		c.Metrics.ObserveFailure(string(ge.ArtifactKind), string(ge.Kind))
	}
	c.recordEvent(ctx, caseID, ge.ArtifactKind, ge.UnitID, "generation_failed", map[string]string{
		"errorKind": string(ge.Kind),
		"recovery":  string(ge.Recovery),
		"message":   fmt.Sprint(ge.Cause),
	})
	return ge
}
