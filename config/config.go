// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingEnv は必須の環境変数が未設定の場合のエラー。
	ErrMissingEnv = errors.New("missing environment variable")
	// ErrWrongFormat は環境変数の値が解釈できない場合のエラー。
	ErrWrongFormat = errors.New("environment variable has wrong format")
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port               string
	DatabaseURL        string
	LogLevel           string
	KMSKeyName         string
	GoogleCloudProject string

	// PwdKey と TokenKey はHMAC鍵。KMSKeyName が設定されている場合は UnwrapKeys までKMS暗号文のまま。
	PwdKey        []byte
	TokenKey      []byte
	TokenDuration time.Duration
	CookieName    string

	OtelEnabled      bool
	OtelEndpoint     string
	OtelServiceName  string
	OtelSamplingRate float64
	// OtelInsecure はコレクターへTLSなしで接続する（ローカル開発用）。
	OtelInsecure bool
}

// KeyDecrypter はKMS暗号文のサービス鍵を復号するインターフェース。
type KeyDecrypter interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// Load は環境変数から設定を読み込む。
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		KMSKeyName:         os.Getenv("KMS_KEY_NAME"),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),
		CookieName:         getEnv("AUTH_COOKIE_NAME", "auth-token"),
		OtelEndpoint:       getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelServiceName:    getEnv("OTEL_SERVICE_NAME", "knowledge-base-service"),
	}

	var err error
	if cfg.DatabaseURL, err = requireEnv("DATABASE_URL"); err != nil {
		return nil, err
	}
	if cfg.PwdKey, err = loadKey("SERVICE_PWD_KEY"); err != nil {
		return nil, err
	}
	if cfg.TokenKey, err = loadKey("SERVICE_TOKEN_KEY"); err != nil {
		return nil, err
	}
	if cfg.TokenDuration, err = loadDuration("SERVICE_TOKEN_DURATION_SEC"); err != nil {
		return nil, err
	}
	if cfg.OtelEnabled, err = getBool("OTEL_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OtelSamplingRate, err = getRate("OTEL_SAMPLING_RATE", 1.0); err != nil {
		return nil, err
	}
	if cfg.OtelInsecure, err = getBool("OTEL_INSECURE", false); err != nil {
		return nil, err
	}

	if cfg.KMSKeyName == "" {
		if err := cfg.validateKeys(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// UnwrapKeys はKMS暗号文のサービス鍵を復号して置き換える。
func (c *Config) UnwrapKeys(ctx context.Context, d KeyDecrypter) error {
	pwdKey, err := UnwrapKey(ctx, d, "SERVICE_PWD_KEY", c.PwdKey)
	if err != nil {
		return err
	}
	tokenKey, err := UnwrapKey(ctx, d, "SERVICE_TOKEN_KEY", c.TokenKey)
	if err != nil {
		return err
	}
	c.PwdKey = pwdKey
	c.TokenKey = tokenKey
	return c.validateKeys()
}

// LoadKey は環境変数 name のbase64url鍵をデコードして返す。末尾の = は無視する。
// KMS_KEY_NAME が設定されている環境では戻り値はKMS暗号文のままなので UnwrapKey に渡すこと。
func LoadKey(name string) ([]byte, error) {
	return loadKey(name)
}

// UnwrapKey は name の鍵の暗号文をKMSで復号する。空の鍵はエラーとする。
func UnwrapKey(ctx context.Context, d KeyDecrypter, name string, ciphertext []byte) ([]byte, error) {
	plain, err := d.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("unwrapping %s: %w", name, err)
	}
	if len(plain) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrWrongFormat, name)
	}
	return plain, nil
}

// validateKeys は平文の鍵が使用可能か検査する。
func (c *Config) validateKeys() error {
	if len(c.PwdKey) == 0 {
		return fmt.Errorf("%w: SERVICE_PWD_KEY is empty", ErrWrongFormat)
	}
	if len(c.TokenKey) == 0 {
		return fmt.Errorf("%w: SERVICE_TOKEN_KEY is empty", ErrWrongFormat)
	}
	// 同じ鍵を使うとパスワードハッシュがトークン署名として流用できてしまう
	if bytes.Equal(c.PwdKey, c.TokenKey) {
		return fmt.Errorf("%w: SERVICE_PWD_KEY and SERVICE_TOKEN_KEY must differ", ErrWrongFormat)
	}
	return nil
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, key)
	}
	return val, nil
}

func loadKey(key string) ([]byte, error) {
	val, err := requireEnv(key)
	if err != nil {
		return nil, err
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(val, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not base64url", ErrWrongFormat, key)
	}
	return b, nil
}

func loadDuration(key string) (time.Duration, error) {
	val, err := requireEnv(key)
	if err != nil {
		return 0, err
	}
	sec, err := strconv.ParseInt(val, 10, 64)
	if err != nil || sec <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrWrongFormat, key)
	}
	return time.Duration(sec) * time.Second, nil
}

func getBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", ErrWrongFormat, key)
	}
	return b, nil
}

func getRate(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f < 0 || f > 1 {
		return 0, fmt.Errorf("%w: %s must be between 0 and 1", ErrWrongFormat, key)
	}
	return f, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
