// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// WriteAuditLog は認証に関する監査ログを出力する。
// attrs には key-value 形式で追加の属性を渡す。トークンやパスワードを含めてはならない。
func WriteAuditLog(ctx context.Context, operation string, userID int64, result string, attrs ...any) {
	args := []any{
		"operation", operation,
		"user_id", userID,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	}
	args = append(args, attrs...)

	if result == "SUCCESS" {
		slog.InfoContext(ctx, "auth operation completed", args...)
		return
	}
	slog.WarnContext(ctx, "auth operation completed", args...)
}
