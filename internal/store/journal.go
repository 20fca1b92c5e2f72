package store

import (
	"context"
	"database/sql"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// Journal binds the append-only repos to one database handle.
type Journal struct {
	DB        *sql.DB
	Events    *EventRepo
	Snapshots *SnapshotRepo
	Audit     *AuditRepo
}

// NewJournal creates a Journal over db.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{
		DB:        db,
		Events:    &EventRepo{},
		Snapshots: &SnapshotRepo{},
		Audit:     &AuditRepo{},
	}
}

// RecordEvent appends an event with the next sequence number of its case.
func (j *Journal) RecordEvent(ctx context.Context, e domain.GenerationEvent) (int64, error) {
	return j.Events.Append(ctx, j.DB, e)
}

// SaveSnapshot stores a snapshot of content about to be overwritten.
func (j *Journal) SaveSnapshot(ctx context.Context, s domain.CaseSnapshot) error {
	return j.Snapshots.Save(ctx, j.DB, s)
}

// RecordAudit stores an audit record.
func (j *Journal) RecordAudit(ctx context.Context, r domain.AuditRecord) error {
	return j.Audit.Record(ctx, j.DB, r)
}
