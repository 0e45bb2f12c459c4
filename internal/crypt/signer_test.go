package crypt

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/ButasRafael/LLM-knowledge-base/internal/domain"
)

func TestSign_MatchesHMACSHA512(t *testing.T) {
	key := []byte("token-key")

	got, err := Sign(key, EncryptContent{Content: "hello", Salt: "pepper"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mac := hmac.New(sha512.New, key)
	mac.Write([]byte("hellopepper"))
	want := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	if got != want {
		t.Errorf("want %s, got %s", want, got)
	}
	// 512bit = 64バイト → パディングなしで86文字
	if len(got) != 86 {
		t.Errorf("want length 86, got %d", len(got))
	}
}

func TestSign_ContentThenSaltWithoutDelimiter(t *testing.T) {
	key := []byte("k")

	a, err := Sign(key, EncryptContent{Content: "ab", Salt: "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Sign(key, EncryptContent{Content: "a", Salt: "bc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Errorf("content and salt must be concatenated without delimiter: %s != %s", a, b)
	}
}

func TestSign_EmptyKey(t *testing.T) {
	_, err := Sign(nil, EncryptContent{Content: "c", Salt: "s"})
	if !errors.Is(err, domain.ErrKeyFailHmac) {
		t.Errorf("want ErrKeyFailHmac, got %v", err)
	}
}

func TestSign_KeySensitivity(t *testing.T) {
	enc := EncryptContent{Content: "c", Salt: "s"}

	a, _ := Sign([]byte("key-1"), enc)
	b, _ := Sign([]byte("key-2"), enc)
	if a == b {
		t.Error("different keys must produce different signatures")
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "valid", input: encode("alice"), want: "alice", wantOK: true},
		{name: "empty", input: "", want: "", wantOK: true},
		{name: "padded input rejected", input: "YWxpY2U=", wantOK: false},
		{name: "std alphabet rejected", input: "+/+/", wantOK: false},
		{name: "invalid utf8", input: base64.RawURLEncoding.EncodeToString([]byte{0xff, 0xfe}), wantOK: false},
		{name: "non canonical trailing bits", input: "YWxpY2V", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decode(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("want ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && got != tt.want {
				t.Errorf("want %q, got %q", tt.want, got)
			}
		})
	}
}
