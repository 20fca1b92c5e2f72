package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/iisharvard/a2b-sub002/internal/domain"
)

func TestAuditRepo_RecordAndList(t *testing.T) {
	dir := t.TempDir()
	db, err := NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := &AuditRepo{}
	now := time.Now().Unix()

	records := []domain.AuditRecord{
		{ID: "aud-1", CaseID: "case-1", Category: "generation", Actor: "user-1", Action: "force_refresh", RequestJSON: `{"componentId":"A"}`, DecisionJSON: `{"snapshot":true}`, Severity: "info", CreatedAt: now},
		{ID: "aud-2", CaseID: "case-1", Category: "rate_limit", Actor: "guard", Action: "deny", RequestJSON: `{"userId":"user-1"}`, DecisionJSON: `{"allowed":false}`, Severity: "warn", CreatedAt: now + 1},
		{ID: "aud-3", CaseID: "case-2", Category: "generation", Actor: "user-2", Action: "delete_component", RequestJSON: `{"componentId":"B"}`, DecisionJSON: `{"removedScenarios":2}`, Severity: "info", CreatedAt: now + 2},
	}

	for _, r := range records {
		if err := repo.Record(ctx, db, r); err != nil {
			t.Fatalf("Record %s: %v", r.ID, err)
		}
	}

	// List by case-1 should return 2 records.
	got, err := repo.ListByCase(ctx, db, "case-1")
	if err != nil {
		t.Fatalf("ListByCase: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "aud-1" {
		t.Errorf("first record ID = %q, want %q", got[0].ID, "aud-1")
	}
	if got[1].ID != "aud-2" {
		t.Errorf("second record ID = %q, want %q", got[1].ID, "aud-2")
	}
}

func TestAuditRepo_DuplicateID(t *testing.T) {
	dir := t.TempDir()
	db, err := NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := &AuditRepo{}

	rec := domain.AuditRecord{
		ID: "aud-dup", CaseID: "case-1", Category: "test",
		Action: "test", CreatedAt: time.Now().Unix(),
	}

	if err := repo.Record(ctx, db, rec); err != nil {
		t.Fatalf("first Record: %v", err)
	}

	err = repo.Record(ctx, db, rec)
	if err == nil {
		t.Error("expected error on duplicate ID, got nil")
	}
}

func TestAuditRepo_ListByCase_Empty(t *testing.T) {
	dir := t.TempDir()
	db, err := NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := &AuditRepo{}

	got, err := repo.ListByCase(ctx, db, "nonexistent")
	if err != nil {
		t.Fatalf("ListByCase: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for empty result, got %v", got)
	}
}

func TestAuditRepo_GeneratedIDAndSeverity(t *testing.T) {
	dir := t.TempDir()
	db, err := NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := &AuditRepo{}
	now := time.Now().Unix()

	for i := 0; i < 2; i++ {
		if err := repo.Record(ctx, db, domain.AuditRecord{CaseID: "case-1", Category: "generation", Action: "generate", CreatedAt: now}); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}
	if err := repo.Record(ctx, db, domain.AuditRecord{CaseID: "case-1", Category: "generation", Action: "fail", Severity: "error", CreatedAt: now}); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	got, err := repo.ListByCase(ctx, db, "case-1")
	if err != nil {
		t.Fatalf("ListByCase: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Errorf("expected distinct generated IDs, got %q and %q", got[0].ID, got[1].ID)
	}

}

func TestAuditRepo_FilterAndSummarize(t *testing.T) {
	dir := t.TempDir()
	db, err := NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := &AuditRepo{}
	now := time.Now().Unix()

	records := []domain.AuditRecord{
		{CaseID: "case-1", Category: "generation", Action: domain.AuditDeleteComponent, CreatedAt: now},
		{CaseID: "case-1", Category: "generation", Action: domain.AuditAcceptOverwrite, CreatedAt: now + 1},
		{CaseID: "case-1", Category: "rate_limit", Action: domain.AuditThrottled, Severity: "warn", CreatedAt: now + 2},
		{CaseID: "case-1", Category: "generation", Action: domain.AuditAcceptOverwrite, CreatedAt: now + 3},
		{CaseID: "case-2", Category: "generation", Action: domain.AuditDeleteComponent, CreatedAt: now + 4},
	}
	for i, r := range records {
		if err := repo.Record(ctx, db, r); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	tests := []struct {
		name    string
		actions []string
		want    int
	}{
		{"all", nil, 4},
		{"one action", []string{domain.AuditAcceptOverwrite}, 2},
		{"two actions", []string{domain.AuditDeleteComponent, domain.AuditThrottled}, 2},
		{"no match", []string{domain.AuditDeclineOverwrite}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListByCase(ctx, db, "case-1", tt.actions...)
			if err != nil {
				t.Fatalf("ListByCase: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d records, want %d", len(got), tt.want)
			}
		})
	}

	sum, err := repo.Summarize(ctx, db, "case-1")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Total != 4 || sum.ByAction[domain.AuditAcceptOverwrite] != 2 || sum.ByAction[domain.AuditDeleteComponent] != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.BySeverity["info"] != 3 || sum.BySeverity["warn"] != 1 {
		t.Errorf("by severity = %v, want info=3 warn=1", sum.BySeverity)
	}
}
