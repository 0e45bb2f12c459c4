package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/ButasRafael/LLM-knowledge-base/internal/domain"
)

// maxVersionLen はschema_migrations.versionの列長。
const maxVersionLen = 14

// MigrationRepository はマイグレーション履歴を管理するリポジトリのインターフェース。
type MigrationRepository interface {
	EnsureTable(ctx context.Context) error
	FindAllApplied(ctx context.Context) ([]*domain.Migration, error)
	RecordMigration(ctx context.Context, tx *gorm.DB, m *domain.Migration) error
}

// MigrationService はユーザーストアのスキーママイグレーションを実行する。
type MigrationService struct {
	repo   MigrationRepository
	db     *gorm.DB
	source fs.FS
}

// NewMigrationService は新しいMigrationServiceを生成する。
// source の直下にある {version}_{name}.sql がマイグレーション対象になる。
func NewMigrationService(repo MigrationRepository, db *gorm.DB, source fs.FS) *MigrationService {
	return &MigrationService{
		repo:   repo,
		db:     db,
		source: source,
	}
}

// loadSource はソース内の.sqlを読み込み、バージョン順に並べて返す。
// 返す各要素は pending 状態で、Checksum が計算済み。
func (s *MigrationService) loadSource() ([]*domain.Migration, map[string][]byte, error) {
	entries, err := fs.ReadDir(s.source, ".")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read migration source: %w", err)
	}

	var list []*domain.Migration
	bodies := make(map[string][]byte)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		version, name, err := parseMigrationFileName(entry.Name())
		if err != nil {
			return nil, nil, err
		}
		if _, dup := bodies[version]; dup {
			return nil, nil, fmt.Errorf("%w: version %s is used more than once", domain.ErrInvalidMigrationFile, version)
		}

		body, err := fs.ReadFile(s.source, entry.Name())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		bodies[version] = body

		sum := sha256.Sum256(body)
		list = append(list, &domain.Migration{
			Version:  version,
			Name:     name,
			FileName: entry.Name(),
			Checksum: hex.EncodeToString(sum[:]),
			Status:   domain.MigrationStatusPending,
		})
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Version < list[j].Version
	})
	return list, bodies, nil
}

// parseMigrationFileName はファイル名からバージョンと名前を抽出する。
// ファイル名のフォーマット: {version}_{name}.sql (例: 001_create_users.sql)
func parseMigrationFileName(filename string) (version, name string, err error) {
	version, name, ok := strings.Cut(strings.TrimSuffix(filename, ".sql"), "_")
	if !ok || version == "" || name == "" {
		return "", "", fmt.Errorf("%w: %s (expected format: {version}_{name}.sql)", domain.ErrInvalidMigrationFile, filename)
	}
	if len(version) > maxVersionLen {
		return "", "", fmt.Errorf("%w: %s (version longer than %d characters)", domain.ErrInvalidMigrationFile, filename, maxVersionLen)
	}
	return version, name, nil
}

// status はソースと履歴を突き合わせ、各マイグレーションの状態を埋める。
// 記録済みチェックサムが空の行（列追加前の履歴）は比較しない。
func (s *MigrationService) status(ctx context.Context) ([]*domain.Migration, map[string][]byte, error) {
	if err := s.repo.EnsureTable(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to prepare schema_migrations: %w", err)
	}

	list, bodies, err := s.loadSource()
	if err != nil {
		return nil, nil, err
	}

	history, err := s.repo.FindAllApplied(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch applied migrations: %w", err)
	}
	recorded := make(map[string]*domain.Migration, len(history))
	for _, h := range history {
		recorded[h.Version] = h
	}

	for _, m := range list {
		h, ok := recorded[m.Version]
		if !ok {
			continue
		}
		m.AppliedAt = h.AppliedAt
		m.Status = domain.MigrationStatusApplied
		if h.Checksum != "" && h.Checksum != m.Checksum {
			m.Status = domain.MigrationStatusModified
		}
	}
	return list, bodies, nil
}

// ApplyMigrations は未適用マイグレーションを番号順に実行し、適用件数を返す。
// 適用済みファイルが書き換えられている場合は何も実行せず ErrMigrationModified を返す。
func (s *MigrationService) ApplyMigrations(ctx context.Context) (int, error) {
	list, bodies, err := s.status(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load migrations",
			"operation", "apply_migrations",
			"error", err,
		)
		return 0, err
	}

	for _, m := range list {
		if m.Status == domain.MigrationStatusModified {
			return 0, fmt.Errorf("%w: version %s (%s)", domain.ErrMigrationModified, m.Version, m.FileName)
		}
	}

	applied := 0
	for _, m := range list {
		if m.Status != domain.MigrationStatusPending {
			continue
		}
		if err := s.apply(ctx, m, bodies[m.Version]); err != nil {
			slog.ErrorContext(ctx, "failed to apply migration",
				"operation", "apply_migrations",
				"version", m.Version,
				"error", err,
			)
			return applied, fmt.Errorf("%w: version %s: %v", domain.ErrMigrationFailed, m.Version, err)
		}
		slog.InfoContext(ctx, "migration applied",
			"operation", "apply_migrations",
			"version", m.Version,
			"name", m.Name,
		)
		applied++
	}
	return applied, nil
}

// apply はSQLの実行と履歴の記録を1トランザクションで行う。
func (s *MigrationService) apply(ctx context.Context, m *domain.Migration, body []byte) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(string(body)).Error; err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
		if err := s.repo.RecordMigration(ctx, tx, m); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}

// GetMigrationStatus は現在のマイグレーション状況を取得する。
func (s *MigrationService) GetMigrationStatus(ctx context.Context) ([]*domain.Migration, error) {
	list, _, err := s.status(ctx)
	return list, err
}
