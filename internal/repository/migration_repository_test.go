package repository

import (
	"context"
	"testing"

	"github.com/ButasRafael/LLM-knowledge-base/internal/domain"
)

func TestMigrationRepository_RecordAndFind(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewMigrationRepository(db)

	if err := repo.EnsureTable(ctx); err != nil {
		t.Fatalf("EnsureTable failed: %v", err)
	}
	// 2回目も成功する
	if err := repo.EnsureTable(ctx); err != nil {
		t.Fatalf("EnsureTable (second call) failed: %v", err)
	}

	applied, err := repo.FindAllApplied(ctx)
	if err != nil {
		t.Fatalf("FindAllApplied failed: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected empty history, got %d", len(applied))
	}

	for _, m := range []*domain.Migration{
		{Version: "002", Name: "add_index", Checksum: "bb"},
		{Version: "001", Name: "create_users", Checksum: "aa"},
	} {
		if err := repo.RecordMigration(ctx, nil, m); err != nil {
			t.Fatalf("RecordMigration(%s) failed: %v", m.Version, err)
		}
	}

	applied, err = repo.FindAllApplied(ctx)
	if err != nil {
		t.Fatalf("FindAllApplied failed: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(applied))
	}
	first := applied[0]
	if first.Version != "001" || applied[1].Version != "002" {
		t.Errorf("expected version order 001, 002; got %s, %s", first.Version, applied[1].Version)
	}
	if first.Name != "create_users" || first.Checksum != "aa" {
		t.Errorf("unexpected record: %+v", first)
	}
	if first.AppliedAt == nil || first.AppliedAt.IsZero() {
		t.Error("expected applied_at to be set")
	}

	// 同じバージョンは二重に記録できない
	if err := repo.RecordMigration(ctx, nil, &domain.Migration{Version: "001"}); err == nil {
		t.Error("expected error for duplicate version")
	}
}

func TestMigrationRepository_RecordInTransaction(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewMigrationRepository(db)
	if err := repo.EnsureTable(ctx); err != nil {
		t.Fatalf("EnsureTable failed: %v", err)
	}

	tx := db.Begin()
	if err := repo.RecordMigration(ctx, tx, &domain.Migration{Version: "001", Name: "create_users"}); err != nil {
		t.Fatalf("RecordMigration failed: %v", err)
	}
	tx.Rollback()

	applied, err := repo.FindAllApplied(ctx)
	if err != nil {
		t.Fatalf("FindAllApplied failed: %v", err)
	}
	if len(applied) != 0 {
		t.Error("rolled back record must not be visible")
	}
}
