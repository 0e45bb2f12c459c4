package crypt

import (
	"errors"
	"testing"
	"time"

	"github.com/ButasRafael/LLM-knowledge-base/internal/domain"
)

var testTokenKey = []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestTokenService(now time.Time, ttl time.Duration) *TokenService {
	return NewTokenService(testTokenKey, ttl).WithClock(fixedClock(now))
}

func TestToken_RoundTrip(t *testing.T) {
	tokens := []Token{
		{Identifier: "alice", Expiration: "2026-01-01T00:00:00Z", Signature: "sig"},
		{Identifier: "user:with:colons", Expiration: "2026-01-01T09:00:00+09:00", Signature: "abc_-"},
		{Identifier: "ユーザー", Expiration: "not-a-date", Signature: ""},
		{Identifier: "", Expiration: "", Signature: "x"},
	}

	for _, tok := range tokens {
		parsed, err := ParseToken(tok.String())
		if err != nil {
			t.Fatalf("ParseToken(%q) failed: %v", tok.String(), err)
		}
		if parsed != tok {
			t.Errorf("round trip mismatch: want %+v, got %+v", tok, parsed)
		}
	}
}

func TestParseToken_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "two parts", input: "YWxpY2U:c2ln", wantErr: domain.ErrTokenInvalidFormat},
		{name: "four parts", input: "a:b:c:d", wantErr: domain.ErrTokenInvalidFormat},
		{name: "empty", input: "", wantErr: domain.ErrTokenInvalidFormat},
		{name: "bad identifier", input: "!!!:" + encode("2026-01-01T00:00:00Z") + ":sig", wantErr: domain.ErrTokenCannotDecodeIdentifier},
		{name: "bad expiration", input: encode("alice") + ":***:sig", wantErr: domain.ErrTokenCannotDecodeExpiration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("want %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTokenService_GenerateAndValidate(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(now, time.Hour)

	tok, err := svc.Generate("alice", "s1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if tok.Identifier != "alice" {
		t.Errorf("want identifier alice, got %s", tok.Identifier)
	}
	if tok.Expiration != "2026-10-16T13:00:00Z" {
		t.Errorf("want expiration 2026-10-16T13:00:00Z, got %s", tok.Expiration)
	}
	if err := svc.Validate(tok, "s1"); err != nil {
		t.Errorf("want valid token, got %v", err)
	}
}

func TestTokenService_ExpirationBoundary(t *testing.T) {
	generatedAt := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	ttl := 3600 * time.Second

	tok, err := newTestTokenService(generatedAt, ttl).Generate("alice", "s1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	before := newTestTokenService(generatedAt.Add(ttl-time.Second), ttl)
	if err := before.Validate(tok, "s1"); err != nil {
		t.Errorf("want valid at ttl-1s, got %v", err)
	}

	after := newTestTokenService(generatedAt.Add(ttl+time.Second), ttl)
	if err := after.Validate(tok, "s1"); !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("want ErrTokenExpired at ttl+1s, got %v", err)
	}
}

func TestTokenService_SaltSensitivity(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(now, time.Hour)

	tok, err := svc.Generate("alice", "salt-of-alice")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if err := svc.Validate(tok, "salt-of-bob"); !errors.Is(err, domain.ErrTokenSignatureNotMatching) {
		t.Errorf("want ErrTokenSignatureNotMatching, got %v", err)
	}
}

func TestTokenService_KeySensitivity(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	tok, err := newTestTokenService(now, time.Hour).Generate("alice", "s1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	other := NewTokenService([]byte("another-key"), time.Hour).WithClock(fixedClock(now))
	if err := other.Validate(tok, "s1"); !errors.Is(err, domain.ErrTokenSignatureNotMatching) {
		t.Errorf("want ErrTokenSignatureNotMatching, got %v", err)
	}
}

func flip(s string, i int) string {
	b := []byte(s)
	b[i] ^= 0x01
	return string(b)
}

func TestTokenService_TamperedFields(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(now, time.Hour)

	tok, err := svc.Generate("alice", "s1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	for i := range tok.Identifier {
		tampered := tok
		tampered.Identifier = flip(tok.Identifier, i)
		if err := svc.Validate(tampered, "s1"); !errors.Is(err, domain.ErrTokenSignatureNotMatching) {
			t.Errorf("identifier byte %d: want ErrTokenSignatureNotMatching, got %v", i, err)
		}
	}
	for i := range tok.Expiration {
		tampered := tok
		tampered.Expiration = flip(tok.Expiration, i)
		if err := svc.Validate(tampered, "s1"); !errors.Is(err, domain.ErrTokenSignatureNotMatching) {
			t.Errorf("expiration byte %d: want ErrTokenSignatureNotMatching, got %v", i, err)
		}
	}
	for i := range tok.Signature {
		tampered := tok
		tampered.Signature = flip(tok.Signature, i)
		if err := svc.Validate(tampered, "s1"); !errors.Is(err, domain.ErrTokenSignatureNotMatching) {
			t.Errorf("signature byte %d: want ErrTokenSignatureNotMatching, got %v", i, err)
		}
	}
}

func TestTokenService_TamperedSerializedTokenNeverAccepted(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(now, time.Hour)

	tok, err := svc.Generate("alice", "s1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	serialized := tok.String()

	for i := 0; i < len(serialized); i++ {
		if serialized[i] == ':' {
			continue
		}
		b := []byte(serialized)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}

		parsed, err := ParseToken(string(b))
		if err != nil {
			continue
		}
		if err := svc.Validate(parsed, "s1"); err == nil {
			t.Errorf("tampered byte %d accepted", i)
		}
	}
}

func TestTokenService_SignatureCheckedBeforeExpiration(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(now, time.Hour)

	forged := Token{Identifier: "alice", Expiration: "garbage", Signature: "forged"}
	if err := svc.Validate(forged, "s1"); !errors.Is(err, domain.ErrTokenSignatureNotMatching) {
		t.Errorf("want ErrTokenSignatureNotMatching, got %v", err)
	}

	// 署名が正しい場合のみ有効期限の書式エラーが表に出る
	sig, err := tokenSignature("alice", "garbage", "s1", testTokenKey)
	if err != nil {
		t.Fatalf("tokenSignature failed: %v", err)
	}
	authentic := Token{Identifier: "alice", Expiration: "garbage", Signature: sig}
	if err := svc.Validate(authentic, "s1"); !errors.Is(err, domain.ErrTokenExpirationNotIso) {
		t.Errorf("want ErrTokenExpirationNotIso, got %v", err)
	}
}

func TestTokenService_EndToEnd(t *testing.T) {
	generatedAt := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(generatedAt, 3600*time.Second)

	tok, err := svc.Generate("alice", "s1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	parsed, err := ParseToken(tok.String())
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if err := svc.Validate(parsed, "s1"); err != nil {
		t.Fatalf("want valid token, got %v", err)
	}

	// 署名を1文字変更
	tampered := parsed
	if tampered.Signature[0] == 'A' {
		tampered.Signature = "B" + tampered.Signature[1:]
	} else {
		tampered.Signature = "A" + tampered.Signature[1:]
	}
	if err := svc.Validate(tampered, "s1"); !errors.Is(err, domain.ErrTokenSignatureNotMatching) {
		t.Errorf("want ErrTokenSignatureNotMatching, got %v", err)
	}

	// 3601秒後には元のトークンも期限切れ
	later := svc.WithClock(fixedClock(generatedAt.Add(3601 * time.Second)))
	if err := later.Validate(parsed, "s1"); !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("want ErrTokenExpired, got %v", err)
	}
}

func TestTokenService_EmptyKey(t *testing.T) {
	svc := NewTokenService(nil, time.Hour)

	if _, err := svc.Generate("alice", "s1"); !errors.Is(err, domain.ErrKeyFailHmac) {
		t.Errorf("want ErrKeyFailHmac, got %v", err)
	}
}
