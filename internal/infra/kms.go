package infra

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"

	kms "cloud.google.com/go/kms/apiv1"
	kmspb "cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var (
	// ErrKMSKeyNameRequired はKMSキー名が未設定の場合のエラー。
	ErrKMSKeyNameRequired = errors.New("KMS_KEY_NAME is required")
	// ErrKMSIntegrity はKMSとの送受信でCRC32Cが一致しない場合のエラー。
	ErrKMSIntegrity = errors.New("kms payload integrity check failed")
)

// keyManager は KMSClient が使う Cloud KMS API の部分集合。
type keyManager interface {
	Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...gax.CallOption) (*kmspb.EncryptResponse, error)
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...gax.CallOption) (*kmspb.DecryptResponse, error)
	Close() error
}

// KMSClient はサービス鍵のラップとアンラップを行う。
// 送受信するペイロードはCRC32Cで検証する。
type KMSClient struct {
	api     keyManager
	keyName string
}

// NewKMSClient は暗号鍵 keyName を使うKMSClientを生成する。
func NewKMSClient(ctx context.Context, keyName string) (*KMSClient, error) {
	if keyName == "" {
		return nil, ErrKMSKeyNameRequired
	}

	api, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating KMS client: %w", err)
	}
	return newKMSClient(api, keyName), nil
}

func newKMSClient(api keyManager, keyName string) *KMSClient {
	return &KMSClient{api: api, keyName: keyName}
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func crc32c(b []byte) int64 {
	return int64(crc32.Checksum(b, castagnoli))
}

// Encrypt はサービス鍵をラップする。
func (c *KMSClient) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	resp, err := c.api.Encrypt(ctx, &kmspb.EncryptRequest{
		Name:            c.keyName,
		Plaintext:       plaintext,
		PlaintextCrc32C: wrapperspb.Int64(crc32c(plaintext)),
	})
	if err != nil {
		return nil, fmt.Errorf("wrapping key with %s: %w", c.keyName, err)
	}
	if !resp.GetVerifiedPlaintextCrc32C() {
		return nil, fmt.Errorf("%w: request corrupted in transit", ErrKMSIntegrity)
	}
	if resp.GetCiphertextCrc32C().GetValue() != crc32c(resp.GetCiphertext()) {
		return nil, fmt.Errorf("%w: response corrupted in transit", ErrKMSIntegrity)
	}
	return resp.GetCiphertext(), nil
}

// Decrypt はラップされたサービス鍵を復元する。
func (c *KMSClient) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	resp, err := c.api.Decrypt(ctx, &kmspb.DecryptRequest{
		Name:             c.keyName,
		Ciphertext:       ciphertext,
		CiphertextCrc32C: wrapperspb.Int64(crc32c(ciphertext)),
	})
	if err != nil {
		return nil, fmt.Errorf("unwrapping key with %s: %w", c.keyName, err)
	}
	if resp.GetPlaintextCrc32C().GetValue() != crc32c(resp.GetPlaintext()) {
		return nil, fmt.Errorf("%w: response corrupted in transit", ErrKMSIntegrity)
	}
	return resp.GetPlaintext(), nil
}

// Close は下位のgRPC接続を閉じる。
func (c *KMSClient) Close() error {
	return c.api.Close()
}
