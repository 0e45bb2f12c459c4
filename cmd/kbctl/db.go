package main

import (
	"fmt"
	"log/slog"
	"os"

	"gorm.io/gorm"

	"github.com/ButasRafael/LLM-knowledge-base/internal/infra"
)

// openDB は環境変数DATABASE_URLのデータベースに接続する。
// 戻り値の関数でコネクションプールを閉じること。
func openDB() (*gorm.DB, func(), error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	db, err := infra.NewDB(dsn, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	closeDB := func() {
		sqlDB, err := db.DB()
		if err != nil {
			return
		}
		if err := sqlDB.Close(); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
	}
	return db, closeDB, nil
}
