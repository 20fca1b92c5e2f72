package coordinator

import (
	"fmt"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// shapeScenarios truncates raw to max and renumbers it <componentID>-1..k
// in backend order.
func shapeScenarios(componentID string, raw []domain.Scenario, max int) ([]domain.Scenario, error) {
	if len(raw) > max {
		raw = raw[:max]
	}
	out := make([]domain.Scenario, 0, len(raw))
	for i, sc := range raw {
		if sc.Description == "" {
			return nil, fmt.Errorf("scenario %d for %s has no description", i+1, componentID)
		}
		if !sc.Type.Valid() {
			return nil, fmt.Errorf("scenario %d for %s has unknown type %q", i+1, componentID, sc.Type)
		}
		sc.ID = fmt.Sprintf("%s-%d", componentID, i+1)
		sc.ComponentID = componentID
		out = append(out, sc)
	}
	return out, nil
}

// shapeRiskAssessment binds ra to scenarioID and fills a missing ID.
func shapeRiskAssessment(scenarioID string, ra domain.RiskAssessment, newID func() string) (domain.RiskAssessment, error) {
	if ra.Category == "" {
		return domain.RiskAssessment{}, fmt.Errorf("risk assessment for %s has no category", scenarioID)
	}
	if ra.ID == "" {
		ra.ID = newID()
	}
	ra.ScenarioID = scenarioID
	return ra, nil
}
