package coordinator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/iisharvard/a2b-sub002/internal/domain"
	"github.com/iisharvard/a2b-sub002/internal/metrics"
	"github.com/iisharvard/a2b-sub002/internal/store"
)

func TestCoordinator_PersistsHistory(t *testing.T) {
	dir := t.TempDir()
	db, err := store.NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	cs := testCase("case-1")
	cs.Scenarios = []domain.Scenario{{ID: "A-1", ComponentID: "A", Type: domain.ScenarioAgreement, Description: "old"}}
	env := setup(t, cs)
	env.c.Journal = store.NewJournal(db)
	env.c.Metrics = metrics.New()
	env.backend.set("A", genScenarios(2, "new"), nil)
	ctx := context.Background()

	if _, err := env.c.GenerateScenarios(ctx, "A", Options{ForceRefresh: true}); err != nil {
		t.Fatalf("GenerateScenarios: %v", err)
	}

	events, err := (&store.EventRepo{}).ListByCase(ctx, db, "case-1", 0)
	if err != nil {
		t.Fatalf("ListByCase: %v", err)
	}
	if len(events) != 2 || events[0].EventType != "generation_started" || events[1].EventType != "generation_succeeded" {
		t.Fatalf("events = %+v", events)
	}
	if events[1].SeqNo != 2 {
		t.Errorf("SeqNo = %d, want 2", events[1].SeqNo)
	}

	snap, err := (&store.SnapshotRepo{}).GetLatest(ctx, db, "case-1", domain.KindScenarios, "A")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if snap == nil || snap.Checksum != store.Checksum(snap.SnapshotJSON) {
		t.Errorf("snapshot = %+v", snap)
	}

	if _, err := env.c.DeleteComponent(ctx, "A"); err != nil {
		t.Fatalf("DeleteComponent: %v", err)
	}
	recs, err := (&store.AuditRepo{}).ListByCase(ctx, db, "case-1")
	if err != nil {
		t.Fatalf("audit ListByCase: %v", err)
	}
	if len(recs) != 1 || recs[0].Action != "delete_component" {
		t.Errorf("audit = %+v", recs)
	}
}
