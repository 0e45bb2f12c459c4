package crypt

import (
	"crypto/hmac"
	"strings"
	"time"

	"github.com/ButasRafael/LLM-knowledge-base/internal/domain"
)

// Token はセッショントークンを表す。
// Expiration は署名対象の文字列そのものであり、RFC3339 の書式を変えてはならない。
type Token struct {
	Identifier string
	Expiration string
	Signature  string
}

// String はトークンを "b64u(identifier):b64u(expiration):signature" 形式に直列化する。
func (t Token) String() string {
	return encode(t.Identifier) + ":" + encode(t.Expiration) + ":" + t.Signature
}

// ParseToken は直列化されたトークンを解析する。
func ParseToken(s string) (Token, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Token{}, domain.ErrTokenInvalidFormat
	}

	identifier, ok := decode(parts[0])
	if !ok {
		return Token{}, domain.ErrTokenCannotDecodeIdentifier
	}
	expiration, ok := decode(parts[1])
	if !ok {
		return Token{}, domain.ErrTokenCannotDecodeExpiration
	}

	return Token{
		Identifier: identifier,
		Expiration: expiration,
		Signature:  parts[2],
	}, nil
}

// TokenService はトークンの発行と検証を行う。
type TokenService struct {
	key      []byte
	duration time.Duration
	now      func() time.Time
}

// NewTokenService は新しいTokenServiceを生成する。
func NewTokenService(key []byte, duration time.Duration) *TokenService {
	return &TokenService{
		key:      key,
		duration: duration,
		now:      time.Now,
	}
}

// WithClock は現在時刻の取得関数を差し替えたコピーを返す。
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	c := *s
	c.now = now
	return &c
}

// Duration はトークンの有効期間を返す。
func (s *TokenService) Duration() time.Duration {
	return s.duration
}

// Generate は identifier に対して有効期間付きのトークンを発行する。
func (s *TokenService) Generate(identifier, salt string) (Token, error) {
	expiration := s.now().Add(s.duration).UTC().Format(time.RFC3339)

	signature, err := tokenSignature(identifier, expiration, salt, s.key)
	if err != nil {
		return Token{}, err
	}

	return Token{
		Identifier: identifier,
		Expiration: expiration,
		Signature:  signature,
	}, nil
}

// Validate は署名と有効期限を検証する。署名の検証を有効期限の解釈より先に行う。
func (s *TokenService) Validate(t Token, salt string) error {
	expected, err := tokenSignature(t.Identifier, t.Expiration, salt, s.key)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(t.Signature)) {
		return domain.ErrTokenSignatureNotMatching
	}

	expiration, err := time.Parse(time.RFC3339, t.Expiration)
	if err != nil {
		return domain.ErrTokenExpirationNotIso
	}
	if s.now().After(expiration) {
		return domain.ErrTokenExpired
	}

	return nil
}

func tokenSignature(identifier, expiration, salt string, key []byte) (string, error) {
	return Sign(key, EncryptContent{
		Content: encode(identifier) + ":" + encode(expiration),
		Salt:    salt,
	})
}
