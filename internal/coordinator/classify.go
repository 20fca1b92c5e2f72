package coordinator

import (
	"errors"
	"strings"
	"time"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// Substrings the generation backend puts in its error messages.
const (
	substrRateLimit = "rate limit"
	substrNetwork   = "Network error"
	substrNotFound  = "not found"
)

// Classify turns a backend error into a GenerationError. A body the backend
// client could not decode is a ValidationError. Other messages are matched
// by substring exactly once here; nothing downstream re-parses them.
func Classify(err error, kind domain.ArtifactKind, unitID string, force bool, backoff time.Duration) *domain.GenerationError {
	var ge *domain.GenerationError
	if errors.As(err, &ge) {
		return ge
	}
	if errors.Is(err, domain.ErrBackendResponse) {
		return validationError(kind, unitID, force, err)
	}

	out := &domain.GenerationError{
		ArtifactKind: kind,
		UnitID:       unitID,
		ForceRefresh: force,
		Cause:        err,
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	switch {
	case strings.Contains(msg, substrRateLimit):
		out.Kind = domain.KindRateLimitError
		out.Recovery = domain.RecoverRetryAfterDelay
		out.RetryAfter = backoff
	case strings.Contains(msg, substrNetwork):
		out.Kind = domain.KindNetworkError
		out.Recovery = domain.RecoverRetryNow
	case strings.Contains(msg, substrNotFound):
		out.Kind = domain.KindNotFoundError
		out.Recovery = domain.RecoverPickDifferentUnit
	default:
		out.Kind = domain.KindUnknownError
		out.Recovery = domain.RecoverRetryNow
	}
	return out
}

func validationError(kind domain.ArtifactKind, unitID string, force bool, cause error) *domain.GenerationError {
	return &domain.GenerationError{
		Kind:         domain.KindValidationError,
		ArtifactKind: kind,
		UnitID:       unitID,
		ForceRefresh: force,
		Recovery:     domain.RecoverRetryNow,
		Cause:        cause,
	}
}

func missingUnitError(kind domain.ArtifactKind, unitID string, force bool, cause error) *domain.GenerationError {
	return &domain.GenerationError{
		Kind:         domain.KindNotFoundError,
		ArtifactKind: kind,
		UnitID:       unitID,
		ForceRefresh: force,
		Recovery:     domain.RecoverPickDifferentUnit,
		Cause:        cause,
	}
}
