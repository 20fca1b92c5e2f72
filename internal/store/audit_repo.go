package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// AuditRepo handles persistence for AuditRecord entries.
type AuditRepo struct{}

// Record inserts an audit record. Records without an ID get a random one.
func (r *AuditRepo) Record(ctx context.Context, db *sql.DB, rec domain.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Severity == "" {
		rec.Severity = "info"
	}
	const q = `INSERT INTO audit_records (id, case_id, category, actor, action, request_json, decision_json, severity, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		rec.ID,
		rec.CaseID,
		rec.Category,
		rec.Actor,
		rec.Action,
		rec.RequestJSON,
		rec.DecisionJSON,
		rec.Severity,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// ListByCase returns the audit records of a case, oldest first. When
// actions are given only records with one of those actions are returned.
func (r *AuditRepo) ListByCase(ctx context.Context, db *sql.DB, caseID string, actions ...string) ([]domain.AuditRecord, error) {
	q := `SELECT id, case_id, category, actor, action, request_json, decision_json, severity, created_at
FROM audit_records
WHERE case_id = ?`
	args := []any{caseID}
	if len(actions) > 0 {
		q += ` AND action IN (?` + strings.Repeat(`, ?`, len(actions)-1) + `)`
		for _, a := range actions {
			args = append(args, a)
		}
	}
	q += `
ORDER BY created_at ASC, rowid ASC`

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var a domain.AuditRecord
		if err := rows.Scan(&a.ID, &a.CaseID, &a.Category, &a.Actor, &a.Action,
			&a.RequestJSON, &a.DecisionJSON, &a.Severity, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, a)
	}
	return records, rows.Err()
}

// Summarize counts the audit records of a case by action and by severity.
func (r *AuditRepo) Summarize(ctx context.Context, db *sql.DB, caseID string) (domain.AuditSummary, error) {
	const q = `SELECT action, severity, COUNT(*) FROM audit_records WHERE case_id = ? GROUP BY action, severity`
	rows, err := db.QueryContext(ctx, q, caseID)
	if err != nil {
		return domain.AuditSummary{}, fmt.Errorf("summarize audit records: %w", err)
	}
	defer rows.Close()

	sum := domain.AuditSummary{
		CaseID:     caseID,
		ByAction:   make(map[string]int),
		BySeverity: make(map[string]int),
	}
	for rows.Next() {
		var action, sev string
		var n int
		if err := rows.Scan(&action, &sev, &n); err != nil {
			return domain.AuditSummary{}, fmt.Errorf("scan audit count: %w", err)
		}
		sum.ByAction[action] += n
		sum.BySeverity[sev] += n
		sum.Total += n
	}
	return sum, rows.Err()
}
