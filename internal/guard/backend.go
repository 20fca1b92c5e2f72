package guard

import (
	"context"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// Backend is the set of generation calls a LimitedBackend throttles.
type Backend interface {
	GenerateScenarios(ctx context.Context, componentID string) ([]domain.Scenario, error)
	ForceGenerateScenarios(ctx context.Context, componentID string) ([]domain.Scenario, error)
	GenerateRiskAssessment(ctx context.Context, scenarioID string) (domain.RiskAssessment, error)
}

// LimitedBackend charges every call against the user's window before
// forwarding it. CaseID, when set, names the case for audit records.
type LimitedBackend struct {
	Next   Backend
	Guard  *Guard
	UserID string
	CaseID func() string
}

func (b *LimitedBackend) admit(ctx context.Context, unitID string) error {
	caseID := ""
	if b.CaseID != nil {
		caseID = b.CaseID()
	}
	return b.Guard.CheckRateLimit(ctx, b.UserID, caseID, unitID)
}

func (b *LimitedBackend) GenerateScenarios(ctx context.Context, componentID string) ([]domain.Scenario, error) {
	if err := b.admit(ctx, componentID); err != nil {
		return nil, err
	}
	return b.Next.GenerateScenarios(ctx, componentID)
}

func (b *LimitedBackend) ForceGenerateScenarios(ctx context.Context, componentID string) ([]domain.Scenario, error) {
	if err := b.admit(ctx, componentID); err != nil {
		return nil, err
	}
	return b.Next.ForceGenerateScenarios(ctx, componentID)
}

func (b *LimitedBackend) GenerateRiskAssessment(ctx context.Context, scenarioID string) (domain.RiskAssessment, error) {
	if err := b.admit(ctx, scenarioID); err != nil {
		return domain.RiskAssessment{}, err
	}
	return b.Next.GenerateRiskAssessment(ctx, scenarioID)
}
