package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// ServiceKeySize はサービス鍵（パスワード鍵・トークン鍵）のバイト長。HMAC-SHA512の出力長に合わせる。
const ServiceKeySize = 64

// ErrKMSNotConfigured はKMSを使う操作でKMSクライアントが未設定の場合のエラー。
var ErrKMSNotConfigured = errors.New("kms client is not configured")

// KMSClient は暗号化/復号のインターフェース。
type KMSClient interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// KeyService はサービス鍵の生成を提供する。
type KeyService struct {
	kmsClient KMSClient
}

// NewKeyService は新しいKeyServiceを生成する。kmsClient は nil でもよい。
func NewKeyService(kmsClient KMSClient) *KeyService {
	return &KeyService{kmsClient: kmsClient}
}

// generateServiceKey はランダムなサービス鍵を生成する。
func generateServiceKey() ([]byte, error) {
	key := make([]byte, ServiceKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating random key: %w", err)
	}
	return key, nil
}

// GenerateKey は新しいサービス鍵を生成し、環境変数に設定できるbase64url形式で返す。
// wrap が true の場合はKMSで暗号化した暗号文を返す。
func (s *KeyService) GenerateKey(ctx context.Context, wrap bool) (string, error) {
	if wrap && s.kmsClient == nil {
		return "", ErrKMSNotConfigured
	}

	key, err := generateServiceKey()
	if err != nil {
		return "", err
	}

	if wrap {
		key, err = s.kmsClient.Encrypt(ctx, key)
		if err != nil {
			return "", fmt.Errorf("encrypting key: %w", err)
		}
	}

	return base64.RawURLEncoding.EncodeToString(key), nil
}
