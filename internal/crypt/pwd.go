package crypt

import (
	"crypto/subtle"

	"github.com/ButasRafael/LLM-knowledge-base/internal/domain"
)

// PasswordHasher はサーバー共通のパスワード鍵でパスワードハッシュを計算する。
type PasswordHasher struct {
	key []byte
}

// NewPasswordHasher は新しいPasswordHasherを生成する。
func NewPasswordHasher(key []byte) *PasswordHasher {
	return &PasswordHasher{key: key}
}

// Hash は保存用のパスワードハッシュを返す。Salt にはユーザーごとのパスワードソルトを渡す。
func (h *PasswordHasher) Hash(enc EncryptContent) (string, error) {
	return Sign(h.key, enc)
}

// Verify は再計算したハッシュと保存済みハッシュを定数時間で比較する。
// 不一致の場合は domain.ErrPwdNotMatching を返す。
func (h *PasswordHasher) Verify(enc EncryptContent, stored string) error {
	computed, err := h.Hash(enc)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) != 1 {
		return domain.ErrPwdNotMatching
	}
	return nil
}
