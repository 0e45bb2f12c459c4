package middleware

import (
	"fmt"
	"net/http"

	"github.com/ButasRafael/LLM-knowledge-base/internal/crypt"
)

// DefaultCookieName はセッションクッキーの既定名。
const DefaultCookieName = "auth-token"

// TokenGenerator は identifier と salt に対する新しいトークンを発行する。
type TokenGenerator interface {
	Generate(identifier, salt string) (crypt.Token, error)
}

// SetTokenCookie は identifier に対する新しいトークンを発行し、HttpOnly クッキーとして設定する。
func SetTokenCookie(w http.ResponseWriter, tokens TokenGenerator, name, identifier, salt string) error {
	token, err := tokens.Generate(identifier, salt)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	cookie := &http.Cookie{
		Name:     name,
		Value:    token.String(),
		Path:     "/",
		HttpOnly: true,
	}
	// 不正なクッキーは http.SetCookie で黙って捨てられるため事前に検査する
	if err := cookie.Valid(); err != nil {
		return fmt.Errorf("invalid token cookie: %w", err)
	}

	http.SetCookie(w, cookie)
	return nil
}

// RemoveTokenCookie はセッションクッキーを失効させる。
func RemoveTokenCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
