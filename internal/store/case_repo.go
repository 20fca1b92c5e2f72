package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// CaseRepo persists case documents keyed by (user, case). Writes are
// last-write-wins; the version column only counts writes.
type CaseRepo struct{}

// SaveTx upserts a case document within an existing transaction and
// returns the stored version.
func (r *CaseRepo) SaveTx(ctx context.Context, tx *sql.Tx, userID string, c domain.Case, nowUnix int64) (int64, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return 0, fmt.Errorf("marshal case: %w", err)
	}

	const q = `INSERT INTO cases (user_id, case_id, body_json, version, updated_at_unix)
VALUES (?, ?, ?, 1, ?)
ON CONFLICT(user_id, case_id) DO UPDATE SET
	body_json = excluded.body_json,
	version = cases.version + 1,
	updated_at_unix = excluded.updated_at_unix`
	if _, err := tx.ExecContext(ctx, q, userID, c.ID, string(body), nowUnix); err != nil {
		return 0, fmt.Errorf("save case: %w", err)
	}

	var version int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM cases WHERE user_id = ? AND case_id = ?`, userID, c.ID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read case version: %w", err)
	}
	return version, nil
}

// Get retrieves one case document.
func (r *CaseRepo) Get(ctx context.Context, db *sql.DB, userID, caseID string) (*domain.CaseDocument, error) {
	const q = `SELECT c.user_id, c.body_json, c.version, c.updated_at_unix,
	COALESCE(s.analysis_recalculated, 1), COALESCE(s.scenarios_recalculated, 1), COALESCE(s.risk_assessments_recalculated, 1)
FROM cases c LEFT JOIN recalc_status s ON s.user_id = c.user_id AND s.case_id = c.case_id
WHERE c.user_id = ? AND c.case_id = ?`

	doc, err := scanCaseDocument(db.QueryRowContext(ctx, q, userID, caseID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrCaseNotFound
		}
		return nil, fmt.Errorf("get case: %w", err)
	}
	return doc, nil
}

// ListByUser returns a user's cases, most recently updated first.
func (r *CaseRepo) ListByUser(ctx context.Context, db *sql.DB, userID string) ([]domain.CaseDocument, error) {
	const q = `SELECT c.user_id, c.body_json, c.version, c.updated_at_unix,
	COALESCE(s.analysis_recalculated, 1), COALESCE(s.scenarios_recalculated, 1), COALESCE(s.risk_assessments_recalculated, 1)
FROM cases c LEFT JOIN recalc_status s ON s.user_id = c.user_id AND s.case_id = c.case_id
WHERE c.user_id = ?
ORDER BY c.updated_at_unix DESC, c.case_id ASC`

	rows, err := db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var docs []domain.CaseDocument
	for rows.Next() {
		doc, err := scanCaseDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Delete removes a case document and the same user's status row.
func (r *CaseRepo) Delete(ctx context.Context, db *sql.DB, userID, caseID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM cases WHERE user_id = ? AND case_id = ?`, userID, caseID)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrCaseNotFound
	}
	if err := (&StatusRepo{}).DeleteTx(ctx, tx, userID, caseID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCaseDocument(row rowScanner) (*domain.CaseDocument, error) {
	var doc domain.CaseDocument
	var body string
	var analysis, scenarios, risks int
	if err := row.Scan(&doc.UserID, &body, &doc.Version, &doc.UpdatedAtUnix, &analysis, &scenarios, &risks); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &doc.Case); err != nil {
		return nil, fmt.Errorf("unmarshal case body: %w", err)
	}
	doc.Status = domain.RecalculationStatus{
		AnalysisRecalculated:        analysis != 0,
		ScenariosRecalculated:       scenarios != 0,
		RiskAssessmentsRecalculated: risks != 0,
	}
	return &doc, nil
}
