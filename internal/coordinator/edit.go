package coordinator

import (
	"context"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// LoadCase replaces the current case and restores its persisted flags.
// Pending overwrites of other cases are dropped.
func (c *Coordinator) LoadCase(cs *domain.Case, status domain.RecalculationStatus) {
	c.Store.SetCase(cs)
	c.Tracker.Reset(status)

	caseID := c.Store.CaseID()
	c.mu.Lock()
	for key, p := range c.pending {
		if p.caseID != caseID {
			delete(c.pending, key)
		}
	}
	c.mu.Unlock()
}

// SetCaseContent edits the case text; the analysis becomes stale.
func (c *Coordinator) SetCaseContent(content string) error {
	if c.Store.CaseID() == "" {
		return domain.ErrNoCaseLoaded
	}
	c.Store.SetContent(content)
	return nil
}

// SetAnalysis installs a freshly produced analysis. The analysis is marked
// fresh and the scenarios become stale.
func (c *Coordinator) SetAnalysis(a *domain.Analysis) error {
	if c.Store.CaseID() == "" {
		return domain.ErrNoCaseLoaded
	}
	c.Store.SetAnalysis(a)
	return c.Tracker.MarkFresh(domain.KindAnalysis)
}

// UpdateComponent edits an existing component; the scenarios become stale.
func (c *Coordinator) UpdateComponent(comp domain.Component) error {
	if c.Store.CaseID() == "" {
		return domain.ErrNoCaseLoaded
	}
	if _, ok := c.Store.Component(comp.ID); !ok {
		return domain.ErrComponentNotFound
	}
	c.Store.UpdateComponent(comp)
	return nil
}

// AddComponent appends a manually created component.
func (c *Coordinator) AddComponent(comp domain.Component) error {
	if c.Store.CaseID() == "" {
		return domain.ErrNoCaseLoaded
	}
	if _, exists := c.Store.Component(comp.ID); exists || comp.ID == "" {
		return domain.NewServiceError(domain.ErrInvalidContent.Code, "component id must be unique and non-empty: "+comp.ID)
	}
	c.Store.AddComponent(comp)
	return nil
}

// UpdateScenarioDescription edits one scenario's text; the risk
// assessments become stale.
func (c *Coordinator) UpdateScenarioDescription(scenarioID, description string) error {
	if c.Store.CaseID() == "" {
		return domain.ErrNoCaseLoaded
	}
	sc, ok := c.Store.Scenario(scenarioID)
	if !ok {
		return domain.ErrScenarioNotFound
	}
	sc.Description = description
	c.Store.UpdateScenario(sc)
	return nil
}

// AcceptCurrent marks kind fresh without regenerating.
func (c *Coordinator) AcceptCurrent(kind domain.ArtifactKind) error {
	return c.Tracker.MarkFresh(kind)
}

// DeleteReport counts what a component deletion removed.
type DeleteReport struct {
	ComponentID     string `json:"componentId"`
	Scenarios       int    `json:"scenarios"`
	RiskAssessments int    `json:"riskAssessments"`
}

// DeleteComponent removes a component together with its scenarios and the
// risk assessments of those scenarios. Dependents go first so no reader
// observes an orphan.
func (c *Coordinator) DeleteComponent(ctx context.Context, componentID string) (DeleteReport, error) {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	caseID := c.Store.CaseID()
	if caseID == "" {
		return DeleteReport{}, domain.ErrNoCaseLoaded
	}
	if _, ok := c.Store.Component(componentID); !ok {
		return DeleteReport{}, domain.ErrComponentNotFound
	}

	report := DeleteReport{ComponentID: componentID}
	scenarios := c.Store.ScenariosForComponent(componentID)
	ids := make([]string, 0, len(scenarios))
	for _, sc := range scenarios {
		ids = append(ids, sc.ID)
		for _, ra := range c.Store.RiskAssessmentsForScenario(sc.ID) {
			c.Store.DeleteRiskAssessment(ra.ID)
			report.RiskAssessments++
		}
	}
	if len(ids) > 0 {
		c.Store.DeleteScenarios(ids)
	}
	report.Scenarios = len(ids)
	c.Store.DeleteComponent(componentID)

	c.mu.Lock()
	delete(c.pending, unitKey(caseID, domain.KindScenarios, componentID))
	for _, id := range ids {
		delete(c.pending, unitKey(caseID, domain.KindRiskAssessments, id))
	}
	c.mu.Unlock()

	c.Logger.Info("component deleted", "case", caseID, "component", componentID, "scenarios", report.Scenarios, "risk_assessments", report.RiskAssessments)
	c.recordAudit(ctx, caseID, domain.AuditDeleteComponent, map[string]string{"componentId": componentID}, report)
	return report, nil
}
