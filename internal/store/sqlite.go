// Package store provides SQLite-backed persistence for cases, their
// freshness flags, the generation event log, pre-overwrite snapshots and
// audit records.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS cases (
	user_id         TEXT NOT NULL,
	case_id         TEXT NOT NULL,
	body_json       TEXT NOT NULL DEFAULT '{}',
	version         INTEGER NOT NULL DEFAULT 1,
	updated_at_unix INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, case_id)
);
CREATE INDEX IF NOT EXISTS idx_cases_user ON cases(user_id, updated_at_unix);

CREATE TABLE IF NOT EXISTS recalc_status (
	user_id                       TEXT NOT NULL,
	case_id                       TEXT NOT NULL,
	analysis_recalculated         INTEGER NOT NULL DEFAULT 1,
	scenarios_recalculated        INTEGER NOT NULL DEFAULT 1,
	risk_assessments_recalculated INTEGER NOT NULL DEFAULT 1,
	updated_at_unix               INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, case_id)
);

CREATE TABLE IF NOT EXISTS generation_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	case_id      TEXT NOT NULL,
	seq_no       INTEGER NOT NULL,
	kind         TEXT NOT NULL,
	unit_id      TEXT NOT NULL DEFAULT '',
	event_type   TEXT NOT NULL,
	payload_json TEXT NOT NULL DEFAULT '{}',
	created_at   INTEGER NOT NULL,
	UNIQUE(case_id, seq_no)
);
CREATE INDEX IF NOT EXISTS idx_events_case_seq ON generation_events(case_id, seq_no);

CREATE TABLE IF NOT EXISTS case_snapshots (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	case_id       TEXT NOT NULL,
	kind          TEXT NOT NULL,
	unit_id       TEXT NOT NULL DEFAULT '',
	snapshot_json TEXT NOT NULL DEFAULT '[]',
	checksum      TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_case_unit ON case_snapshots(case_id, kind, unit_id);

CREATE TABLE IF NOT EXISTS audit_records (
	id            TEXT PRIMARY KEY,
	case_id       TEXT NOT NULL,
	category      TEXT NOT NULL,
	actor         TEXT NOT NULL DEFAULT '',
	action        TEXT NOT NULL,
	request_json  TEXT NOT NULL DEFAULT '{}',
	decision_json TEXT NOT NULL DEFAULT '{}',
	severity      TEXT NOT NULL DEFAULT 'info',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_case ON audit_records(case_id);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration. Failures match domain.ErrStoreInit.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, domain.WrapServiceError(domain.ErrStoreInit.Code, "open database", err)
	}

	// SQLite has a single writer; one connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, domain.WrapServiceError(domain.ErrStoreInit.Code, "migrate schema", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
