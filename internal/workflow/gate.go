// Package workflow tracks the freshness of derived artifacts along the
// case → analysis → scenarios → risk assessments chain.
package workflow

import (
	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// CacheRequest describes a generation request for one unit of work.
type CacheRequest struct {
	Kind         domain.ArtifactKind
	UnitID       string
	ForceRefresh bool
	HasContent   bool
}

// CacheDecision is the result of evaluating a CacheRequest.
type CacheDecision struct {
	ServeCached bool
	Reasons     []string
}

// Gate decides whether a unit may be served from cached content.
type Gate interface {
	Name() string
	Evaluate(req CacheRequest) (CacheDecision, error)
}

// FreshnessGate serves the cache only when content exists, the kind is
// fresh and no refresh was forced.
type FreshnessGate struct {
	Tracker *Tracker
}

// Name returns the gate name.
func (g *FreshnessGate) Name() string {
	return "freshness"
}

// Evaluate applies the cache-hit rule.
func (g *FreshnessGate) Evaluate(req CacheRequest) (CacheDecision, error) {
	decision := CacheDecision{ServeCached: true}

	if req.ForceRefresh {
		decision.ServeCached = false
		decision.Reasons = append(decision.Reasons, "refresh forced")
	}
	if !req.HasContent {
		decision.ServeCached = false
		decision.Reasons = append(decision.Reasons, "no cached content for "+req.UnitID)
	}

	fresh, err := g.Tracker.Fresh(req.Kind)
	if err != nil {
		return CacheDecision{}, err
	}
	if !fresh {
		decision.ServeCached = false
		decision.Reasons = append(decision.Reasons, string(req.Kind)+" is stale")
	}
	return decision, nil
}

// GateRegistry maps each generated kind to its gate.
type GateRegistry struct {
	gates map[domain.ArtifactKind]Gate
}

// NewGateRegistry creates a registry with a freshness gate for every generated kind.
func NewGateRegistry(t *Tracker) *GateRegistry {
	g := &FreshnessGate{Tracker: t}
	return &GateRegistry{gates: map[domain.ArtifactKind]Gate{
		domain.KindScenarios:       g,
		domain.KindRiskAssessments: g,
	}}
}

// Register sets a custom gate for a kind.
func (r *GateRegistry) Register(k domain.ArtifactKind, g Gate) {
	r.gates[k] = g
}

// Get returns the gate for a kind, or ErrInvalidKind if none is registered.
func (r *GateRegistry) Get(k domain.ArtifactKind) (Gate, error) {
	g, ok := r.gates[k]
	if !ok {
		return nil, domain.ErrInvalidKind
	}
	return g, nil
}
