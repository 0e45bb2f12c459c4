package repository

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/ButasRafael/LLM-knowledge-base/internal/domain"
)

// SchemaMigrationModel はschema_migrationsテーブルのモデル。
type SchemaMigrationModel struct {
	Version   string    `gorm:"column:version;primaryKey;type:varchar(14)"`
	Name      string    `gorm:"column:name;type:varchar(255);not null;default:''"`
	Checksum  string    `gorm:"column:checksum;type:char(64);not null;default:''"`
	AppliedAt time.Time `gorm:"column:applied_at;not null;autoCreateTime"`
}

// TableName はテーブル名を指定。
func (SchemaMigrationModel) TableName() string {
	return "schema_migrations"
}

// MigrationRepository はマイグレーション履歴を管理するリポジトリ。
type MigrationRepository struct {
	db *gorm.DB
}

// NewMigrationRepository は新しいMigrationRepositoryを生成する。
func NewMigrationRepository(db *gorm.DB) *MigrationRepository {
	return &MigrationRepository{db: db}
}

// EnsureTable は履歴テーブルを作成し、不足している列を追加する。
func (r *MigrationRepository) EnsureTable(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&SchemaMigrationModel{}); err != nil {
		slog.ErrorContext(ctx, "failed to ensure schema_migrations table",
			"operation", "ensure_table",
			"error", err,
		)
		return err
	}
	return nil
}

// FindAllApplied は適用済みの履歴をバージョン順に返す。
func (r *MigrationRepository) FindAllApplied(ctx context.Context) ([]*domain.Migration, error) {
	var rows []SchemaMigrationModel
	if err := r.db.WithContext(ctx).Order("version ASC").Find(&rows).Error; err != nil {
		slog.ErrorContext(ctx, "failed to load schema_migrations",
			"operation", "find_all_applied",
			"error", err,
		)
		return nil, err
	}

	applied := make([]*domain.Migration, len(rows))
	for i := range rows {
		applied[i] = &domain.Migration{
			Version:   rows[i].Version,
			Name:      rows[i].Name,
			Checksum:  rows[i].Checksum,
			AppliedAt: &rows[i].AppliedAt,
			Status:    domain.MigrationStatusApplied,
		}
	}
	return applied, nil
}

// RecordMigration は適用したマイグレーションを記録する。
// tx が nil でなければそのトランザクションで書き込む。
func (r *MigrationRepository) RecordMigration(ctx context.Context, tx *gorm.DB, m *domain.Migration) error {
	if tx == nil {
		tx = r.db
	}
	row := &SchemaMigrationModel{
		Version:  m.Version,
		Name:     m.Name,
		Checksum: m.Checksum,
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		slog.ErrorContext(ctx, "failed to record migration",
			"operation", "record_migration",
			"version", m.Version,
			"error", err,
		)
		return err
	}
	return nil
}
