package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ButasRafael/LLM-knowledge-base/internal/crypt"
	"github.com/ButasRafael/LLM-knowledge-base/internal/domain"
	"github.com/ButasRafael/LLM-knowledge-base/internal/infra"
	"github.com/ButasRafael/LLM-knowledge-base/internal/repository"
	"github.com/ButasRafael/LLM-knowledge-base/internal/usecase"
)

// setupStoreEnv はSQLiteファイルのストアを指す環境変数を設定し、DSNを返す。
func setupStoreEnv(t *testing.T) string {
	t.Helper()
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "kb.db")
	t.Setenv("DATABASE_URL", dsn)
	t.Setenv("MIGRATIONS_DIR", "")
	t.Setenv("KMS_KEY_NAME", "")
	t.Setenv("SERVICE_PWD_KEY", base64.RawURLEncoding.EncodeToString([]byte("pwd-key")))
	return dsn
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func openStore(t *testing.T, dsn string) *repository.UserRepository {
	t.Helper()
	db, err := infra.NewDB(dsn, false)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return repository.NewUserRepository(db)
}

func TestStoreCommands(t *testing.T) {
	ctx := context.Background()
	dsn := setupStoreEnv(t)

	out, err := runCmd(t, "migrate", "up")
	if err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}
	if !strings.Contains(out, "Applied 1 migration(s)") {
		t.Errorf("unexpected migrate output: %q", out)
	}

	t.Setenv("KBCTL_NEW_PASSWORD", "ops-pw")
	out, err = runCmd(t, "users", "create", "--username", "ops", "--role", "admin")
	if err != nil {
		t.Fatalf("users create failed: %v", err)
	}
	if !strings.Contains(out, `Created admin "ops"`) {
		t.Errorf("unexpected create output: %q", out)
	}

	repo := openStore(t, dsn)
	auth := usecase.NewAuthService(repo, crypt.NewPasswordHasher([]byte("pwd-key")))

	// 作成した管理者はサーバーと同じ鍵でログインできる
	user, err := auth.Login(ctx, "ops", "ops-pw")
	if err != nil {
		t.Fatalf("Login as created admin failed: %v", err)
	}
	if user.Role != domain.RoleAdmin {
		t.Errorf("expected role admin, got %s", user.Role)
	}
	saltBefore := user.TokenSalt

	out, err = runCmd(t, "sessions", "revoke", "--username", "ops")
	if err != nil {
		t.Fatalf("sessions revoke failed: %v", err)
	}
	if !strings.Contains(out, `Revoked all sessions of "ops"`) {
		t.Errorf("unexpected revoke output: %q", out)
	}
	after, err := repo.FirstByUsernameForAuth(ctx, "ops")
	if err != nil || after == nil {
		t.Fatalf("FirstByUsernameForAuth failed: %v", err)
	}
	if after.TokenSalt == saltBefore {
		t.Error("sessions revoke must rotate the token salt")
	}

	if _, err := runCmd(t, "sessions", "revoke", "--username", "nobody"); err == nil {
		t.Error("expected error for unknown user")
	}

	out, err = runCmd(t, "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status failed: %v", err)
	}
	if !strings.Contains(out, "create_users") || !strings.Contains(out, "applied") {
		t.Errorf("unexpected status output: %q", out)
	}
}

func TestUsersCreateCmd_Errors(t *testing.T) {
	setupStoreEnv(t)
	if _, err := runCmd(t, "migrate", "up"); err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}

	t.Setenv("KBCTL_NEW_PASSWORD", "x")
	if _, err := runCmd(t, "users", "create", "--username", "eve", "--role", "root"); err == nil {
		t.Error("expected error for root role")
	}

	if _, err := runCmd(t, "users", "create", "--username", "eve"); err != nil {
		t.Fatalf("users create failed: %v", err)
	}
	if _, err := runCmd(t, "users", "create", "--username", "eve"); err == nil {
		t.Error("expected error for duplicate username")
	}

	t.Setenv("KBCTL_NEW_PASSWORD", "")
	if _, err := runCmd(t, "users", "create", "--username", "frank"); err == nil {
		t.Error("expected error without KBCTL_NEW_PASSWORD")
	}
}
