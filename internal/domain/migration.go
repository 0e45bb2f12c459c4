package domain

import "time"

// MigrationStatus はスキーママイグレーションの適用状態を表す
type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "pending"
	MigrationStatusApplied MigrationStatus = "applied"
	// MigrationStatusModified は適用後にSQLファイルの内容が変わったことを表す
	MigrationStatusModified MigrationStatus = "modified"
)

// Migration はユーザーストアのスキーマ変更1件を表す
type Migration struct {
	Version   string     // 例: "001"
	Name      string     // 例: "create_users"
	FileName  string     // マイグレーションソース内のファイル名
	Checksum  string     // SQL本文のSHA-256（hex）
	AppliedAt *time.Time // 未適用の場合はnil
	Status    MigrationStatus
}
