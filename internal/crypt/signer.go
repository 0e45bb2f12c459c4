// Package crypt は署名・パスワードハッシュ・セッショントークンを提供する。
package crypt

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"unicode/utf8"

	"github.com/ButasRafael/LLM-knowledge-base/internal/domain"
)

// EncryptContent は1回の署名対象を表す。
type EncryptContent struct {
	Content string
	Salt    string
}

// Sign は HMAC-SHA512(key, content || salt) を計算し、base64url（パディングなし）で返す。
// content と salt は区切り文字なしで連結する。
func Sign(key []byte, enc EncryptContent) (string, error) {
	if len(key) == 0 {
		return "", domain.ErrKeyFailHmac
	}

	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(enc.Content))
	mac.Write([]byte(enc.Salt))

	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// encode は文字列を base64url（パディングなし）でエンコードする。
func encode(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// decode は base64url 文字列をデコードし、UTF-8 として妥当な場合のみ返す。
func decode(s string) (string, bool) {
	b, err := base64.RawURLEncoding.Strict().DecodeString(s)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}
