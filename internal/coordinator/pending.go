package coordinator

import (
	"context"
	"fmt"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

func (c *Coordinator) hold(ctx context.Context, caseID, before string, epoch uint64, res Result) Result {
	res.Pending = true
	c.mu.Lock()
	c.pending[unitKey(caseID, res.Kind, res.UnitID)] = pendingOverwrite{caseID: caseID, before: before, epoch: epoch, result: res}
	c.mu.Unlock()
	c.Logger.Info("overwrite awaiting confirmation", "kind", res.Kind, "unit", res.UnitID)
	c.recordEvent(ctx, caseID, res.Kind, res.UnitID, "overwrite_pending", res.Diff)
	return res
}

func (c *Coordinator) takePending(kind domain.ArtifactKind, unitID string) (pendingOverwrite, error) {
	key := unitKey(c.Store.CaseID(), kind, unitID)
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[key]
	if !ok {
		return pendingOverwrite{}, domain.NewServiceError(domain.ErrUnitNotFound.Code, fmt.Sprintf("no pending %s overwrite for %s", kind, unitID))
	}
	delete(c.pending, key)
	return p, nil
}

// Pending returns the held result for a unit of the current case.
func (c *Coordinator) Pending(kind domain.ArtifactKind, unitID string) (Result, bool) {
	key := unitKey(c.Store.CaseID(), kind, unitID)
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[key]
	return p.result, ok
}

// ConfirmOverwrite applies a held forced result. The replaced content is
// snapshotted first. The kind stays stale if its upstream was edited after
// the held result was requested.
func (c *Coordinator) ConfirmOverwrite(ctx context.Context, kind domain.ArtifactKind, unitID string) (Result, error) {
	p, err := c.takePending(kind, unitID)
	if err != nil {
		return Result{}, err
	}
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	if err := c.checkStale(ctx, p.caseID, kind, unitID, true); err != nil {
		return Result{}, err
	}

	c.saveSnapshot(ctx, p.caseID, kind, unitID, p.before)
	res := p.result
	res.Pending = false
	c.commit(res)
	c.markFresh(kind, unitID, p.epoch)
	c.recordAudit(ctx, p.caseID, domain.AuditAcceptOverwrite, map[string]string{"kind": string(kind), "unitId": unitID}, res.Diff)
	c.recordEvent(ctx, p.caseID, kind, unitID, "overwrite_confirmed", nil)
	return res, nil
}

// DiscardPending drops a held result. The current content is accepted as-is,
// so the kind is marked fresh.
func (c *Coordinator) DiscardPending(ctx context.Context, kind domain.ArtifactKind, unitID string) error {
	p, err := c.takePending(kind, unitID)
	if err != nil {
		return err
	}
	_ = c.Tracker.MarkFresh(kind)
	c.recordAudit(ctx, p.caseID, domain.AuditDeclineOverwrite, map[string]string{"kind": string(kind), "unitId": unitID}, nil)
	c.recordEvent(ctx, p.caseID, kind, unitID, "overwrite_discarded", nil)
	return nil
}
