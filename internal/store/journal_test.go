package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

func TestJournal(t *testing.T) {
	dir := t.TempDir()
	db, err := NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	j := NewJournal(db)

	for want := int64(1); want <= 2; want++ {
		seq, err := j.RecordEvent(ctx, domain.GenerationEvent{CaseID: "case-1", Kind: domain.KindScenarios, UnitID: "A", EventType: "generation_started", PayloadJSON: "{}"})
		if err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
		if seq != want {
			t.Errorf("seq = %d, want %d", seq, want)
		}
	}

	if err := j.SaveSnapshot(ctx, domain.CaseSnapshot{CaseID: "case-1", Kind: domain.KindScenarios, UnitID: "A", SnapshotJSON: "[]"}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	snap, err := j.Snapshots.GetLatest(ctx, db, "case-1", domain.KindScenarios, "A")
	if err != nil || snap == nil {
		t.Fatalf("GetLatest: %v, %v", snap, err)
	}

	if err := j.RecordAudit(ctx, domain.AuditRecord{CaseID: "case-1", Category: "generation", Action: "delete_component"}); err != nil {
		t.Fatalf("RecordAudit: %v", err)
	}
	recs, err := j.Audit.ListByCase(ctx, db, "case-1")
	if err != nil {
		t.Fatalf("ListByCase: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("expected 1 audit record, got %d", len(recs))
	}
}
