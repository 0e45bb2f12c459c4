package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ButasRafael/LLM-knowledge-base/config"
	"github.com/ButasRafael/LLM-knowledge-base/internal/crypt"
	"github.com/ButasRafael/LLM-knowledge-base/internal/infra"
)

// newKeyDecrypter はKMS_KEY_NAMEの鍵で復号するクライアントと、その終了関数を返す。
var newKeyDecrypter = func(ctx context.Context, keyName string) (config.KeyDecrypter, func() error, error) {
	client, err := infra.NewKMSClient(ctx, keyName)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// passwordHasher はサーバーと同じ手順で SERVICE_PWD_KEY を読み込み、PasswordHasher を作る。
// KMS_KEY_NAME が設定されていれば環境変数の値をKMS暗号文として復号する。
func passwordHasher(ctx context.Context) (*crypt.PasswordHasher, error) {
	key, err := config.LoadKey("SERVICE_PWD_KEY")
	if err != nil {
		return nil, err
	}

	keyName := os.Getenv("KMS_KEY_NAME")
	if keyName == "" {
		if len(key) == 0 {
			return nil, fmt.Errorf("%w: SERVICE_PWD_KEY is empty", config.ErrWrongFormat)
		}
		return crypt.NewPasswordHasher(key), nil
	}

	d, closeFn, err := newKeyDecrypter(ctx, keyName)
	if err != nil {
		return nil, fmt.Errorf("failed to init KMS client: %w", err)
	}
	defer func() {
		if err := closeFn(); err != nil {
			slog.Warn("failed to close KMS client", "error", err)
		}
	}()

	key, err = config.UnwrapKey(ctx, d, "SERVICE_PWD_KEY", key)
	if err != nil {
		return nil, err
	}
	return crypt.NewPasswordHasher(key), nil
}
