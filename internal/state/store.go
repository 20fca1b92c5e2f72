// Package state holds the single current case and its generated artifacts.
//
// Every mutation is a replace-or-merge keyed by identifier. The store never
// cascades deletes and never validates foreign keys; callers that delete a
// component are responsible for removing the dependent scenarios and risk
// assessments first.
package state

import (
	"sync"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// Listener is notified after every mutation, outside the store lock.
type Listener func(domain.Mutation)

// Store is the in-memory state container for the current case.
type Store struct {
	mu        sync.RWMutex
	current   *domain.Case
	selected  *domain.Scenario
	listeners []Listener
}

// New creates an empty store with no case loaded.
func New() *Store {
	return &Store{}
}

// Subscribe registers a listener for mutations.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// SetCase replaces the whole case. A nil case clears the store.
func (s *Store) SetCase(c *domain.Case) {
	s.mu.Lock()
	if c == nil {
		s.current = nil
	} else {
		cp := cloneCase(c)
		s.current = &cp
	}
	s.selected = nil
	id := s.caseIDLocked()
	s.mu.Unlock()
	s.notify(domain.Mutation{Kind: domain.MutationCaseReplaced, CaseID: id})
}

// Clear drops the current case and selection.
func (s *Store) Clear() {
	s.SetCase(nil)
}

// Case returns a deep copy of the current case, or nil when none is loaded.
func (s *Store) Case() *domain.Case {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	cp := cloneCase(s.current)
	return &cp
}

// CaseID returns the current case identifier, or "" when none is loaded.
func (s *Store) CaseID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caseIDLocked()
}

// SetContent replaces the raw case text.
func (s *Store) SetContent(content string) {
	s.mutate(domain.MutationCaseContent, "", func(c *domain.Case) {
		c.Content = content
	})
}

// SetAnalysis replaces the analysis. Resetting downstream freshness is the
// caller's decision.
func (s *Store) SetAnalysis(a *domain.Analysis) {
	s.mutate(domain.MutationAnalysis, "", func(c *domain.Case) {
		if a == nil {
			c.Analysis = nil
			return
		}
		cp := cloneAnalysis(a)
		c.Analysis = &cp
	})
}

// SetComponents replaces the analysis components.
func (s *Store) SetComponents(components []domain.Component) {
	s.mutate(domain.MutationComponents, "", func(c *domain.Case) {
		if c.Analysis == nil {
			c.Analysis = &domain.Analysis{}
		}
		c.Analysis.Components = append([]domain.Component(nil), components...)
	})
}

// UpdateComponent replaces the component with the same ID.
// Unknown IDs leave the components unchanged.
func (s *Store) UpdateComponent(comp domain.Component) {
	s.mutate(domain.MutationComponents, comp.ID, func(c *domain.Case) {
		if c.Analysis == nil {
			return
		}
		for i := range c.Analysis.Components {
			if c.Analysis.Components[i].ID == comp.ID {
				c.Analysis.Components[i] = comp
				return
			}
		}
	})
}

// AddComponent appends a component, as done by a manual add.
func (s *Store) AddComponent(comp domain.Component) {
	s.mutate(domain.MutationComponents, comp.ID, func(c *domain.Case) {
		if c.Analysis == nil {
			c.Analysis = &domain.Analysis{}
		}
		c.Analysis.Components = append(c.Analysis.Components, comp)
	})
}

// DeleteComponent removes the component with the given ID. Dependent
// scenarios and risk assessments are left in place.
func (s *Store) DeleteComponent(id string) {
	s.mutate(domain.MutationComponents, id, func(c *domain.Case) {
		if c.Analysis == nil {
			return
		}
		kept := c.Analysis.Components[:0]
		for _, comp := range c.Analysis.Components {
			if comp.ID != id {
				kept = append(kept, comp)
			}
		}
		c.Analysis.Components = kept
	})
}

// SetScenarios replaces every scenario.
func (s *Store) SetScenarios(list []domain.Scenario) {
	s.mutate(domain.MutationScenariosRegenerated, "", func(c *domain.Case) {
		c.Scenarios = append([]domain.Scenario(nil), list...)
	})
}

// AddScenario appends a scenario.
func (s *Store) AddScenario(sc domain.Scenario) {
	s.mutate(domain.MutationScenariosRegenerated, sc.ComponentID, func(c *domain.Case) {
		c.Scenarios = append(c.Scenarios, sc)
	})
}

// UpdateScenario replaces the scenario with the same ID. Sibling scenarios
// are untouched.
func (s *Store) UpdateScenario(sc domain.Scenario) {
	s.mutate(domain.MutationScenarioDescription, sc.ID, func(c *domain.Case) {
		for i := range c.Scenarios {
			if c.Scenarios[i].ID == sc.ID {
				c.Scenarios[i] = sc
				break
			}
		}
		if s.selected != nil && s.selected.ID == sc.ID {
			sel := sc
			s.selected = &sel
		}
	})
}

// ReplaceScenariosForComponent drops every scenario of componentID and
// appends list in its place. Scenarios of other components are untouched.
func (s *Store) ReplaceScenariosForComponent(componentID string, list []domain.Scenario) {
	s.mutate(domain.MutationScenariosRegenerated, componentID, func(c *domain.Case) {
		kept := make([]domain.Scenario, 0, len(c.Scenarios)+len(list))
		for _, sc := range c.Scenarios {
			if sc.ComponentID != componentID {
				kept = append(kept, sc)
			}
		}
		c.Scenarios = append(kept, list...)
	})
}

// DeleteScenarios removes the scenarios with the given IDs.
func (s *Store) DeleteScenarios(ids []string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	s.mutate(domain.MutationScenariosRegenerated, "", func(c *domain.Case) {
		kept := c.Scenarios[:0]
		for _, sc := range c.Scenarios {
			if !drop[sc.ID] {
				kept = append(kept, sc)
			}
		}
		c.Scenarios = kept
		if s.selected != nil && drop[s.selected.ID] {
			s.selected = nil
		}
	})
}

// SetRiskAssessments replaces every risk assessment.
func (s *Store) SetRiskAssessments(list []domain.RiskAssessment) {
	s.mutate(domain.MutationRiskAssessments, "", func(c *domain.Case) {
		c.RiskAssessments = append([]domain.RiskAssessment(nil), list...)
	})
}

// AddRiskAssessment appends a risk assessment.
func (s *Store) AddRiskAssessment(ra domain.RiskAssessment) {
	s.mutate(domain.MutationRiskAssessments, ra.ScenarioID, func(c *domain.Case) {
		c.RiskAssessments = append(c.RiskAssessments, ra)
	})
}

// UpdateRiskAssessment replaces the risk assessment with the same ID.
func (s *Store) UpdateRiskAssessment(ra domain.RiskAssessment) {
	s.mutate(domain.MutationRiskAssessments, ra.ScenarioID, func(c *domain.Case) {
		for i := range c.RiskAssessments {
			if c.RiskAssessments[i].ID == ra.ID {
				c.RiskAssessments[i] = ra
				return
			}
		}
	})
}

// ReplaceRiskAssessmentsForScenario drops every risk assessment of
// scenarioID and appends list in its place.
func (s *Store) ReplaceRiskAssessmentsForScenario(scenarioID string, list []domain.RiskAssessment) {
	s.mutate(domain.MutationRiskAssessments, scenarioID, func(c *domain.Case) {
		kept := make([]domain.RiskAssessment, 0, len(c.RiskAssessments)+len(list))
		for _, ra := range c.RiskAssessments {
			if ra.ScenarioID != scenarioID {
				kept = append(kept, ra)
			}
		}
		c.RiskAssessments = append(kept, list...)
	})
}

// DeleteRiskAssessment removes the risk assessment with the given ID.
func (s *Store) DeleteRiskAssessment(id string) {
	s.mutate(domain.MutationRiskAssessments, "", func(c *domain.Case) {
		kept := c.RiskAssessments[:0]
		for _, ra := range c.RiskAssessments {
			if ra.ID != id {
				kept = append(kept, ra)
			}
		}
		c.RiskAssessments = kept
	})
}

// SelectScenario sets the transient selection. Nil clears it.
func (s *Store) SelectScenario(sc *domain.Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc == nil {
		s.selected = nil
		return
	}
	sel := *sc
	s.selected = &sel
}

// SelectedScenario returns a copy of the selected scenario, or nil.
func (s *Store) SelectedScenario() *domain.Scenario {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	sel := *s.selected
	return &sel
}

// Components returns a copy of the current components in declared order.
func (s *Store) Components() []domain.Component {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.current.Analysis == nil {
		return nil
	}
	return append([]domain.Component(nil), s.current.Analysis.Components...)
}

// Component looks up a component by ID.
func (s *Store) Component(id string) (domain.Component, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.current.Analysis == nil {
		return domain.Component{}, false
	}
	for _, c := range s.current.Analysis.Components {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Component{}, false
}

// Scenarios returns a copy of every scenario in stored order.
func (s *Store) Scenarios() []domain.Scenario {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	return append([]domain.Scenario(nil), s.current.Scenarios...)
}

// ScenariosForComponent returns the scenarios belonging to componentID.
func (s *Store) ScenariosForComponent(componentID string) []domain.Scenario {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	var out []domain.Scenario
	for _, sc := range s.current.Scenarios {
		if sc.ComponentID == componentID {
			out = append(out, sc)
		}
	}
	return out
}

// Scenario looks up a scenario by ID.
func (s *Store) Scenario(id string) (domain.Scenario, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Scenario{}, false
	}
	for _, sc := range s.current.Scenarios {
		if sc.ID == id {
			return sc, true
		}
	}
	return domain.Scenario{}, false
}

// RiskAssessments returns a copy of every risk assessment.
func (s *Store) RiskAssessments() []domain.RiskAssessment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	return append([]domain.RiskAssessment(nil), s.current.RiskAssessments...)
}

// RiskAssessmentsForScenario returns the risk assessments of scenarioID.
func (s *Store) RiskAssessmentsForScenario(scenarioID string) []domain.RiskAssessment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	var out []domain.RiskAssessment
	for _, ra := range s.current.RiskAssessments {
		if ra.ScenarioID == scenarioID {
			out = append(out, ra)
		}
	}
	return out
}

// mutate applies fn to the current case under the write lock and notifies
// listeners afterwards. It is a no-op when no case is loaded.
func (s *Store) mutate(kind domain.MutationKind, unitID string, fn func(c *domain.Case)) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	fn(s.current)
	id := s.current.ID
	s.mu.Unlock()
	s.notify(domain.Mutation{Kind: kind, CaseID: id, UnitID: unitID})
}

func (s *Store) notify(m domain.Mutation) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		l(m)
	}
}

func (s *Store) caseIDLocked() string {
	if s.current == nil {
		return ""
	}
	return s.current.ID
}

func cloneCase(c *domain.Case) domain.Case {
	cp := *c
	cp.SuggestedParties = append([]domain.Party(nil), c.SuggestedParties...)
	cp.Scenarios = append([]domain.Scenario(nil), c.Scenarios...)
	cp.RiskAssessments = append([]domain.RiskAssessment(nil), c.RiskAssessments...)
	if c.Analysis != nil {
		a := cloneAnalysis(c.Analysis)
		cp.Analysis = &a
	}
	return cp
}

func cloneAnalysis(a *domain.Analysis) domain.Analysis {
	cp := *a
	cp.Components = append([]domain.Component(nil), a.Components...)
	return cp
}
