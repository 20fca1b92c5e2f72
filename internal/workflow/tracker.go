package workflow

import (
	"fmt"
	"sync"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// upstream maps each tracked kind to the kind it is derived from.
// The case text has no upstream and is always considered present.
var upstream = map[domain.ArtifactKind]domain.ArtifactKind{
	domain.KindAnalysis:        domain.KindCase,
	domain.KindScenarios:       domain.KindAnalysis,
	domain.KindRiskAssessments: domain.KindScenarios,
}

// Upstream returns the kind that k is derived from.
func Upstream(k domain.ArtifactKind) (domain.ArtifactKind, error) {
	up, ok := upstream[k]
	if !ok {
		return "", domain.NewServiceError(domain.ErrInvalidKind.Code, fmt.Sprintf("no upstream for kind %q", k))
	}
	return up, nil
}

// Downstream returns the kind derived from k, or "" for the end of the chain.
func Downstream(k domain.ArtifactKind) domain.ArtifactKind {
	for down, up := range upstream {
		if up == k {
			return down
		}
	}
	return ""
}

// Tracker is the flat freshness state machine over the three derived kinds.
// Flags never propagate on their own: each kind is reported independently.
//
// Every invalidation of a kind advances its epoch. A generation that began
// at epoch e may mark the kind fresh only while the epoch is still e.
type Tracker struct {
	mu     sync.RWMutex
	status domain.RecalculationStatus
	epochs map[domain.ArtifactKind]uint64
}

// NewTracker creates a tracker with every kind fresh.
func NewTracker() *Tracker {
	return &Tracker{
		status: domain.FreshStatus(),
		epochs: make(map[domain.ArtifactKind]uint64),
	}
}

// Status returns the current flags.
func (t *Tracker) Status() domain.RecalculationStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Reset replaces all flags, used when a persisted case is loaded.
func (t *Tracker) Reset(s domain.RecalculationStatus) {
	t.mu.Lock()
	t.status = s
	for k := range upstream {
		t.epochs[k]++
	}
	t.mu.Unlock()
}

// Epoch returns the invalidation counter of k.
func (t *Tracker) Epoch(k domain.ArtifactKind) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.epochs[k]
}

// Fresh reports the flag for k. The case text is always fresh.
func (t *Tracker) Fresh(k domain.ArtifactKind) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.flagLocked(k)
}

// NeedsRecalculation is true when k is stale and its direct upstream is fresh.
func (t *Tracker) NeedsRecalculation(k domain.ArtifactKind) (bool, error) {
	up, err := Upstream(k)
	if err != nil {
		return false, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	fresh, err := t.flagLocked(k)
	if err != nil {
		return false, err
	}
	upFresh, err := t.flagLocked(up)
	if err != nil {
		return false, err
	}
	return !fresh && upFresh, nil
}

// Invalidate marks k stale.
func (t *Tracker) Invalidate(k domain.ArtifactKind) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.setLocked(k, false); err != nil {
		return err
	}
	t.epochs[k]++
	return nil
}

// MarkFresh acknowledges that k was regenerated or accepted as-is.
func (t *Tracker) MarkFresh(k domain.ArtifactKind) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setLocked(k, true)
}

// MarkFreshSince marks k fresh only if k has not been invalidated since
// epoch. It reports whether the flag was set.
func (t *Tracker) MarkFreshSince(k domain.ArtifactKind, epoch uint64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.epochs[k] != epoch {
		return false, nil
	}
	if err := t.setLocked(k, true); err != nil {
		return false, err
	}
	return true, nil
}

// Observe applies the invalidation rule for a store mutation.
func (t *Tracker) Observe(m domain.Mutation) {
	switch m.Kind {
	case domain.MutationCaseContent:
		_ = t.Invalidate(domain.KindAnalysis)
	case domain.MutationAnalysis, domain.MutationComponents:
		_ = t.Invalidate(domain.KindScenarios)
	case domain.MutationScenarioDescription, domain.MutationScenariosRegenerated:
		_ = t.Invalidate(domain.KindRiskAssessments)
	}
}

func (t *Tracker) setLocked(k domain.ArtifactKind, v bool) error {
	switch k {
	case domain.KindAnalysis:
		t.status.AnalysisRecalculated = v
	case domain.KindScenarios:
		t.status.ScenariosRecalculated = v
	case domain.KindRiskAssessments:
		t.status.RiskAssessmentsRecalculated = v
	default:
		return domain.NewServiceError(domain.ErrInvalidKind.Code, fmt.Sprintf("cannot set flag for kind %q", k))
	}
	return nil
}

func (t *Tracker) flagLocked(k domain.ArtifactKind) (bool, error) {
	switch k {
	case domain.KindCase:
		return true, nil
	case domain.KindAnalysis:
		return t.status.AnalysisRecalculated, nil
	case domain.KindScenarios:
		return t.status.ScenariosRecalculated, nil
	case domain.KindRiskAssessments:
		return t.status.RiskAssessmentsRecalculated, nil
	default:
		return false, domain.NewServiceError(domain.ErrInvalidKind.Code, fmt.Sprintf("unknown kind %q", k))
	}
}
