package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// SnapshotRepo handles persistence for CaseSnapshot records.
type SnapshotRepo struct{}

// Checksum returns the hex SHA-256 of a snapshot body.
func Checksum(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// SaveTx inserts a snapshot within an existing transaction. An empty
// checksum is filled from the body.
func (r *SnapshotRepo) SaveTx(ctx context.Context, tx *sql.Tx, snap domain.CaseSnapshot) error {
	if snap.Checksum == "" {
		snap.Checksum = Checksum(snap.SnapshotJSON)
	}
	const q = `INSERT INTO case_snapshots (case_id, kind, unit_id, snapshot_json, checksum, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		snap.CaseID,
		string(snap.Kind),
		snap.UnitID,
		snap.SnapshotJSON,
		snap.Checksum,
		snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Save inserts a snapshot in its own transaction.
func (r *SnapshotRepo) Save(ctx context.Context, db *sql.DB, snap domain.CaseSnapshot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := r.SaveTx(ctx, tx, snap); err != nil {
		return err
	}
	return tx.Commit()
}

// GetLatest returns the most recent snapshot for a case unit, verifying its
// checksum. Returns nil if no snapshot exists.
func (r *SnapshotRepo) GetLatest(ctx context.Context, db *sql.DB, caseID string, kind domain.ArtifactKind, unitID string) (*domain.CaseSnapshot, error) {
	const q = `SELECT id, case_id, kind, unit_id, snapshot_json, checksum, created_at
FROM case_snapshots
WHERE case_id = ? AND kind = ? AND unit_id = ?
ORDER BY created_at DESC, id DESC
LIMIT 1`

	row := db.QueryRowContext(ctx, q, caseID, string(kind), unitID)

	var s domain.CaseSnapshot
	var k string
	err := row.Scan(&s.ID, &s.CaseID, &k, &s.UnitID, &s.SnapshotJSON, &s.Checksum, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	s.Kind = domain.ArtifactKind(k)
	if Checksum(s.SnapshotJSON) != s.Checksum {
		return nil, domain.ErrSnapshotCorrupt
	}
	return &s, nil
}
