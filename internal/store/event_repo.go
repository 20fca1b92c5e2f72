package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// EventRepo handles persistence for GenerationEvent records.
type EventRepo struct{}

// AppendTx inserts an event with an explicit sequence number within an
// existing transaction. A sequence number already used by the case returns
// domain.ErrDuplicateEvent.
func (r *EventRepo) AppendTx(ctx context.Context, tx *sql.Tx, event domain.GenerationEvent) error {
	const q = `INSERT INTO generation_events (case_id, seq_no, kind, unit_id, event_type, payload_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		event.CaseID,
		event.SeqNo,
		string(event.Kind),
		event.UnitID,
		event.EventType,
		event.PayloadJSON,
		event.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewServiceError(domain.ErrDuplicateEvent.Code, fmt.Sprintf("case %s seq %d", event.CaseID, event.SeqNo))
		}
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Append assigns the next sequence number for the event's case and inserts
// it. The assigned sequence number is returned.
func (r *EventRepo) Append(ctx context.Context, db *sql.DB, event domain.GenerationEvent) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var last int64
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq_no), 0) FROM generation_events WHERE case_id = ?`, event.CaseID).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	event.SeqNo = last + 1
	if err := r.AppendTx(ctx, tx, event); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit event: %w", err)
	}
	return event.SeqNo, nil
}

// ListByCase returns events for a case with sequence numbers greater than
// sinceSeq, ordered by sequence number ascending.
func (r *EventRepo) ListByCase(ctx context.Context, db *sql.DB, caseID string, sinceSeq int64) ([]domain.GenerationEvent, error) {
	const q = `SELECT id, case_id, seq_no, kind, unit_id, event_type, payload_json, created_at
FROM generation_events
WHERE case_id = ? AND seq_no > ?
ORDER BY seq_no ASC`

	rows, err := db.QueryContext(ctx, q, caseID, sinceSeq)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.GenerationEvent
	for rows.Next() {
		var e domain.GenerationEvent
		var kind string
		if err := rows.Scan(&e.ID, &e.CaseID, &e.SeqNo, &kind, &e.UnitID, &e.EventType, &e.PayloadJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = domain.ArtifactKind(kind)
		events = append(events, e)
	}
	return events, rows.Err()
}
