package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// maxNotices bounds the notice history.
const maxNotices = 50

// Notice is a dismissible banner message. Failed single-unit notices carry
// a retry bound to the exact unit and ForceRefresh flag that failed.
type Notice struct {
	ID           string                `json:"id"`
	Success      bool                  `json:"success"`
	Message      string                `json:"message"`
	Kind         domain.ArtifactKind   `json:"kind"`
	UnitID       string                `json:"unitId,omitempty"`
	ForceRefresh bool                  `json:"forceRefresh"`
	Batch        bool                  `json:"batch"`
	ErrorKind    domain.ErrorKind      `json:"errorKind,omitempty"`
	Recovery     domain.RecoveryAction `json:"recovery,omitempty"`
	RetryAfterMs int64                 `json:"retryAfterMs,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`

	failure *domain.GenerationError
}

// CanRetry reports whether the notice has a retry binding.
func (n Notice) CanRetry() bool {
	return n.failure != nil && n.failure.Retryable()
}

// OnNotice registers a callback for every new notice.
func (c *Coordinator) OnNotice(fn func(Notice)) {
	c.mu.Lock()
	c.onNotice = append(c.onNotice, fn)
	c.mu.Unlock()
}

// Notices returns the undismissed notices, oldest first.
func (c *Coordinator) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...)
}

// Dismiss removes a notice. It reports whether the notice existed.
func (c *Coordinator) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.notices {
		if n.ID == id {
			c.notices = append(c.notices[:i], c.notices[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Coordinator) push(n Notice) {
	n.ID = c.newID()
	n.CreatedAt = c.now()
	c.mu.Lock()
	c.notices = append(c.notices, n)
	if len(c.notices) > maxNotices {
		c.notices = c.notices[len(c.notices)-maxNotices:]
	}
	listeners := make([]func(Notice), len(c.onNotice))
	copy(listeners, c.onNotice)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(n)
	}
}

func (c *Coordinator) noticeFor(kind domain.ArtifactKind, unitID string, opts Options, res Result, err error) {
	if err == nil {
		if res.CacheHit {
			return
		}
		msg := fmt.Sprintf("Successfully generated %s for %s", label(kind), unitID)
		if res.Pending {
			msg = fmt.Sprintf("New %s for %s are ready to review", label(kind), unitID)
		}
		c.push(Notice{Success: true, Message: msg, Kind: kind, UnitID: unitID, ForceRefresh: opts.ForceRefresh})
		return
	}

	var ge *domain.GenerationError
	if !errors.As(err, &ge) {
		return
	}
	c.push(Notice{
		Message:      failureMessage(ge),
		Kind:         kind,
		UnitID:       unitID,
		ForceRefresh: ge.ForceRefresh,
		ErrorKind:    ge.Kind,
		Recovery:     ge.Recovery,
		RetryAfterMs: ge.RetryAfter.Milliseconds(),
		failure:      ge,
	})
}

func (c *Coordinator) batchNotice(r BatchReport) {
	if r.Attempted == 0 || r.Stale {
		return
	}
	done := r.Succeeded + r.CacheHits + r.Pending
	n := Notice{Kind: r.Kind, Batch: true, Success: r.Failed == 0}
	if r.Failed == 0 {
		n.Message = fmt.Sprintf("Successfully generated %s for %d of %d units", label(r.Kind), done, r.Attempted)
	} else {
		n.Message = fmt.Sprintf("Generated %s for %d of %d units; %d failed", label(r.Kind), done, r.Attempted, r.Failed)
	}
	c.push(n)
}

func failureMessage(ge *domain.GenerationError) string {
	switch ge.Kind {
	case domain.KindRateLimitError:
		return fmt.Sprintf("Rate limit reached while generating %s for %s. Retry in %d seconds.", label(ge.ArtifactKind), ge.UnitID, int(ge.RetryAfter.Seconds()))
	case domain.KindNetworkError:
		return fmt.Sprintf("Network error while generating %s for %s. Check your connection and retry.", label(ge.ArtifactKind), ge.UnitID)
	case domain.KindNotFoundError:
		return fmt.Sprintf("%s no longer exists. Pick a different item.", ge.UnitID)
	case domain.KindValidationError:
		return fmt.Sprintf("The generated %s for %s were malformed. Retry to generate again.", label(ge.ArtifactKind), ge.UnitID)
	default:
		return fmt.Sprintf("Failed to generate %s for %s: %v", label(ge.ArtifactKind), ge.UnitID, ge.Cause)
	}
}

func label(kind domain.ArtifactKind) string {
	switch kind {
	case domain.KindScenarios:
		return "scenarios"
	case domain.KindRiskAssessments:
		return "risk assessments"
	default:
		return string(kind)
	}
}

// Retry re-issues the failed unit with the same ForceRefresh flag. Rate
// limit failures wait RetryAfter first. Non-retryable failures are returned
// unchanged.
func (c *Coordinator) Retry(ctx context.Context, failure *domain.GenerationError) (Result, error) {
	if failure == nil {
		return Result{}, domain.ErrInvalidKind
	}
	if !failure.Retryable() {
		return Result{}, failure
	}
	if failure.Recovery == domain.RecoverRetryAfterDelay && failure.RetryAfter > 0 {
		c.Logger.Info("waiting before retry", "unit", failure.UnitID, "delay", failure.RetryAfter)
		if err := c.sleep(ctx, failure.RetryAfter); err != nil {
			return Result{}, err
		}
	}

	opts := Options{ForceRefresh: failure.ForceRefresh}
	switch failure.ArtifactKind {
	case domain.KindScenarios:
		return c.GenerateScenarios(ctx, failure.UnitID, opts)
	case domain.KindRiskAssessments:
		return c.GenerateRiskAssessment(ctx, failure.UnitID, opts)
	default:
		return Result{}, domain.ErrInvalidKind
	}
}

// RetryNotice dismisses a failure notice and retries its unit.
func (c *Coordinator) RetryNotice(ctx context.Context, id string) (Result, error) {
	var found *Notice
	for _, n := range c.Notices() {
		if n.ID == id {
			n := n
			found = &n
			break
		}
	}
	if found == nil || !found.CanRetry() {
		return Result{}, domain.NewServiceError(domain.ErrUnitNotFound.Code, "no retryable notice "+id)
	}
	c.Dismiss(id)
	return c.Retry(ctx, found.failure)
}
