package domain

import (
	"fmt"
	"time"
)

// ServiceError is the unified error type for the service.
// Each error has a numeric code and human-readable message.
type ServiceError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error %d: %s", e.Code, e.Message)
}

// Is matches any ServiceError carrying the same code, so wrapped variants
// built with NewServiceError compare equal to their sentinel.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Code == e.Code
}

// NewServiceError creates a new ServiceError.
func NewServiceError(code int, msg string) *ServiceError {
	return &ServiceError{Code: code, Message: msg}
}

// WrapServiceError creates a ServiceError that includes a cause.
func WrapServiceError(code int, msg string, cause error) *ServiceError {
	return &ServiceError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- State / Tracker errors (-32010 to -32039) ----

var (
	ErrCaseNotFound           = &ServiceError{Code: -32010, Message: "case not found"}
	ErrNoCaseLoaded           = &ServiceError{Code: -32011, Message: "no case is loaded"}
	ErrComponentNotFound      = &ServiceError{Code: -32012, Message: "component not found"}
	ErrScenarioNotFound       = &ServiceError{Code: -32013, Message: "scenario not found"}
	ErrRiskAssessmentNotFound = &ServiceError{Code: -32014, Message: "risk assessment not found"}
	ErrInvalidKind            = &ServiceError{Code: -32015, Message: "invalid artifact kind"}
	ErrNoAnalysis             = &ServiceError{Code: -32016, Message: "case has no analysis"}
)

// ---- Generation errors (-32040 to -32069) ----

var (
	ErrNetwork           = &ServiceError{Code: -32040, Message: "network error"}
	ErrRateLimited       = &ServiceError{Code: -32041, Message: "rate limit reached"}
	ErrUnitNotFound      = &ServiceError{Code: -32042, Message: "referenced unit not found"}
	ErrInvalidContent    = &ServiceError{Code: -32043, Message: "generated content is malformed"}
	ErrGenerationFailed  = &ServiceError{Code: -32044, Message: "generation failed"}
	ErrAlreadyGenerating = &ServiceError{Code: -32045, Message: "generation already in progress for unit"}
	ErrStaleResult       = &ServiceError{Code: -32046, Message: "case changed while generating; result discarded"}
)

// ---- Backend errors (-32070 to -32099) ----

var (
	ErrBackendNotConfigured = &ServiceError{Code: -32070, Message: "generation backend is not configured"}
	ErrBackendResponse      = &ServiceError{Code: -32071, Message: "generation backend returned invalid response"}
)

// ---- Guard errors (-32100 to -32129) ----

var (
	ErrRateLimitExceeded = &ServiceError{Code: -32100, Message: "rate limit exceeded"}
)

// ---- Store / Config errors (-32130 to -32159) ----

var (
	ErrStoreInit       = &ServiceError{Code: -32130, Message: "failed to initialize store"}
	ErrStoreQuery      = &ServiceError{Code: -32131, Message: "store query failed"}
	ErrStoreWrite      = &ServiceError{Code: -32132, Message: "store write failed"}
	ErrSnapshotCorrupt = &ServiceError{Code: -32134, Message: "snapshot checksum mismatch"}
	ErrConfigInvalid   = &ServiceError{Code: -32136, Message: "invalid configuration"}
	ErrDuplicateEvent  = &ServiceError{Code: -32137, Message: "duplicate event sequence number"}
)

// ErrorKind is the generation failure taxonomy surfaced to callers.
type ErrorKind string

const (
	KindNetworkError    ErrorKind = "NetworkError"
	KindRateLimitError  ErrorKind = "RateLimitError"
	KindNotFoundError   ErrorKind = "NotFoundError"
	KindValidationError ErrorKind = "ValidationError"
	KindUnknownError    ErrorKind = "UnknownError"
)

// RecoveryAction is the suggested next step for a failed generation.
type RecoveryAction string

const (
	RecoverRetryNow          RecoveryAction = "retry_now"
	RecoverRetryAfterDelay   RecoveryAction = "retry_after_delay"
	RecoverPickDifferentUnit RecoveryAction = "pick_different_unit"
)

// GenerationError is a classified generation failure for one unit of work.
type GenerationError struct {
	Kind         ErrorKind
	ArtifactKind ArtifactKind
	UnitID       string
	ForceRefresh bool
	Recovery     RecoveryAction
	RetryAfter   time.Duration
	Cause        error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s generating %s for %s", e.Kind, e.ArtifactKind, e.UnitID)
	}
	return fmt.Sprintf("%s generating %s for %s: %v", e.Kind, e.ArtifactKind, e.UnitID, e.Cause)
}

// Unwrap returns the backend error.
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Is matches the ServiceError sentinel for the error's kind.
func (e *GenerationError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return t.Code == e.Sentinel().Code
}

// Sentinel maps the kind to its ServiceError.
func (e *GenerationError) Sentinel() *ServiceError {
	switch e.Kind {
	case KindNetworkError:
		return ErrNetwork
	case KindRateLimitError:
		return ErrRateLimited
	case KindNotFoundError:
		return ErrUnitNotFound
	case KindValidationError:
		return ErrInvalidContent
	default:
		return ErrGenerationFailed
	}
}

// Retryable reports whether retrying the same unit can succeed.
func (e *GenerationError) Retryable() bool {
	return e.Recovery != RecoverPickDifferentUnit
}
