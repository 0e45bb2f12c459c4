// Package migrations はユーザーストアのスキーマ定義SQLを埋め込む。
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed mysql/*.sql sqlite/*.sql
var files embed.FS

// ForDialect は指定された方言のマイグレーションファイル群を返す。
func ForDialect(dialect string) (fs.FS, error) {
	switch dialect {
	case "mysql", "sqlite":
		return fs.Sub(files, dialect)
	default:
		return nil, fmt.Errorf("unsupported migration dialect: %s", dialect)
	}
}
