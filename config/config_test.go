package config

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// setRequiredEnv は必須の環境変数を設定する。
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "sqlite:file::memory:")
	t.Setenv("SERVICE_PWD_KEY", b64("pwd-key"))
	t.Setenv("SERVICE_TOKEN_KEY", b64("token-key"))
	t.Setenv("SERVICE_TOKEN_DURATION_SEC", "1800")
	t.Setenv("KMS_KEY_NAME", "")
	t.Setenv("PORT", "")
	t.Setenv("AUTH_COOKIE_NAME", "")
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_SAMPLING_RATE", "")
	t.Setenv("OTEL_INSECURE", "")
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.CookieName != "auth-token" {
		t.Errorf("expected default cookie name, got %s", cfg.CookieName)
	}
	if !bytes.Equal(cfg.PwdKey, []byte("pwd-key")) {
		t.Errorf("unexpected pwd key: %q", cfg.PwdKey)
	}
	if !bytes.Equal(cfg.TokenKey, []byte("token-key")) {
		t.Errorf("unexpected token key: %q", cfg.TokenKey)
	}
	if cfg.TokenDuration != 30*time.Minute {
		t.Errorf("expected 30m, got %v", cfg.TokenDuration)
	}
	if cfg.OtelEnabled {
		t.Error("expected OTel disabled by default")
	}
	if cfg.OtelSamplingRate != 1.0 {
		t.Errorf("expected sampling rate 1.0, got %v", cfg.OtelSamplingRate)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("AUTH_COOKIE_NAME", "kb-session")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLING_RATE", "0.25")
	t.Setenv("OTEL_INSECURE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" || cfg.CookieName != "kb-session" {
		t.Errorf("unexpected overrides: port=%s cookie=%s", cfg.Port, cfg.CookieName)
	}
	if !cfg.OtelEnabled || cfg.OtelSamplingRate != 0.25 || !cfg.OtelInsecure {
		t.Errorf("unexpected otel settings: enabled=%v rate=%v insecure=%v", cfg.OtelEnabled, cfg.OtelSamplingRate, cfg.OtelInsecure)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{"missing database url", "DATABASE_URL", "", ErrMissingEnv},
		{"missing pwd key", "SERVICE_PWD_KEY", "", ErrMissingEnv},
		{"missing token key", "SERVICE_TOKEN_KEY", "", ErrMissingEnv},
		{"missing duration", "SERVICE_TOKEN_DURATION_SEC", "", ErrMissingEnv},
		{"pwd key not base64url", "SERVICE_PWD_KEY", "not base64!", ErrWrongFormat},
		{"duration not integer", "SERVICE_TOKEN_DURATION_SEC", "30m", ErrWrongFormat},
		{"duration not positive", "SERVICE_TOKEN_DURATION_SEC", "0", ErrWrongFormat},
		{"identical keys", "SERVICE_TOKEN_KEY", b64("pwd-key"), ErrWrongFormat},
		{"otel flag", "OTEL_ENABLED", "maybe", ErrWrongFormat},
		{"sampling rate", "OTEL_SAMPLING_RATE", "2", ErrWrongFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// mockDecrypter はテスト用のモック。"wrapped:" 接頭辞を外す。
type mockDecrypter struct {
	err error
}

func (m *mockDecrypter) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return bytes.TrimPrefix(ciphertext, []byte("wrapped:")), nil
}

func TestUnwrapKeys(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KMS_KEY_NAME", "projects/p/locations/l/keyRings/r/cryptoKeys/k")
	t.Setenv("SERVICE_PWD_KEY", b64("wrapped:pwd-key"))
	t.Setenv("SERVICE_TOKEN_KEY", b64("wrapped:token-key"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.UnwrapKeys(context.Background(), &mockDecrypter{}); err != nil {
		t.Fatalf("UnwrapKeys failed: %v", err)
	}
	if !bytes.Equal(cfg.PwdKey, []byte("pwd-key")) || !bytes.Equal(cfg.TokenKey, []byte("token-key")) {
		t.Errorf("unexpected unwrapped keys: %q %q", cfg.PwdKey, cfg.TokenKey)
	}
}

func TestUnwrapKeys_Errors(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KMS_KEY_NAME", "projects/p/locations/l/keyRings/r/cryptoKeys/k")
	t.Setenv("SERVICE_PWD_KEY", b64("wrapped:same"))
	t.Setenv("SERVICE_TOKEN_KEY", b64("wrapped:same"))

	// KMS利用時は復号後に同一性を検査する
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.UnwrapKeys(context.Background(), &mockDecrypter{}); !errors.Is(err, ErrWrongFormat) {
		t.Errorf("expected ErrWrongFormat, got %v", err)
	}

	kmsErr := errors.New("permission denied")
	cfg, _ = Load()
	if err := cfg.UnwrapKeys(context.Background(), &mockDecrypter{err: kmsErr}); !errors.Is(err, kmsErr) {
		t.Errorf("expected wrapped KMS error, got %v", err)
	}
}

func TestLoadKeyAndUnwrapKey(t *testing.T) {
	t.Setenv("SERVICE_PWD_KEY", b64("wrapped:pwd-key")+"==")

	key, err := LoadKey("SERVICE_PWD_KEY")
	if err != nil {
		t.Fatalf("LoadKey failed: %v", err)
	}
	plain, err := UnwrapKey(context.Background(), &mockDecrypter{}, "SERVICE_PWD_KEY", key)
	if err != nil {
		t.Fatalf("UnwrapKey failed: %v", err)
	}
	if !bytes.Equal(plain, []byte("pwd-key")) {
		t.Errorf("unexpected unwrapped key %q", plain)
	}

	// 復号結果が空の鍵は使えない
	if _, err := UnwrapKey(context.Background(), &mockDecrypter{}, "SERVICE_PWD_KEY", []byte("wrapped:")); !errors.Is(err, ErrWrongFormat) {
		t.Errorf("expected ErrWrongFormat, got %v", err)
	}

	t.Setenv("SERVICE_PWD_KEY", "")
	if _, err := LoadKey("SERVICE_PWD_KEY"); !errors.Is(err, ErrMissingEnv) {
		t.Errorf("expected ErrMissingEnv, got %v", err)
	}
}
