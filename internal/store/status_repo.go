package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// StatusRepo persists the recalculation flags of a case. Rows are keyed by
// (user, case) like the case documents they belong to; CaseRepo reads them
// back through a join.
type StatusRepo struct{}

// SaveTx upserts the flags within an existing transaction.
func (r *StatusRepo) SaveTx(ctx context.Context, tx *sql.Tx, userID, caseID string, s domain.RecalculationStatus, nowUnix int64) error {
	const q = `INSERT INTO recalc_status (user_id, case_id, analysis_recalculated, scenarios_recalculated, risk_assessments_recalculated, updated_at_unix)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, case_id) DO UPDATE SET
	analysis_recalculated = excluded.analysis_recalculated,
	scenarios_recalculated = excluded.scenarios_recalculated,
	risk_assessments_recalculated = excluded.risk_assessments_recalculated,
	updated_at_unix = excluded.updated_at_unix`
	_, err := tx.ExecContext(ctx, q, userID, caseID,
		boolInt(s.AnalysisRecalculated),
		boolInt(s.ScenariosRecalculated),
		boolInt(s.RiskAssessmentsRecalculated),
		nowUnix,
	)
	if err != nil {
		return fmt.Errorf("save recalculation status: %w", err)
	}
	return nil
}

// DeleteTx removes the flags of a case within an existing transaction.
func (r *StatusRepo) DeleteTx(ctx context.Context, tx *sql.Tx, userID, caseID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM recalc_status WHERE user_id = ? AND case_id = ?`, userID, caseID); err != nil {
		return fmt.Errorf("delete recalculation status: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
