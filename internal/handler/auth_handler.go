// Package handler はHTTPハンドラを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ButasRafael/LLM-knowledge-base/internal/crypt"
	"github.com/ButasRafael/LLM-knowledge-base/internal/domain"
	"github.com/ButasRafael/LLM-knowledge-base/internal/middleware"
	"github.com/ButasRafael/LLM-knowledge-base/internal/usecase"
	"github.com/ButasRafael/LLM-knowledge-base/pkg/httputil"
)

// AuthHandler はログイン・ログオフ・登録のHTTPハンドラを提供する。
type AuthHandler struct {
	service    *usecase.AuthService
	tokens     *crypt.TokenService
	cookieName string
}

// NewAuthHandler は新しいAuthHandlerを生成する。
func NewAuthHandler(service *usecase.AuthService, tokens *crypt.TokenService, cookieName string) *AuthHandler {
	if cookieName == "" {
		cookieName = middleware.DefaultCookieName
	}
	return &AuthHandler{
		service:    service,
		tokens:     tokens,
		cookieName: cookieName,
	}
}

// LoginRequest はログインのリクエスト形式。
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult はログイン結果。
type LoginResult struct {
	Success  bool   `json:"success"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// LoginResponse はログインのレスポンス形式。
type LoginResponse struct {
	Result LoginResult `json:"result"`
}

// LogoffRequest はログオフのリクエスト形式。
type LogoffRequest struct {
	Logoff bool `json:"logoff"`
}

// LogoffResponse はログオフのレスポンス形式。
type LogoffResponse struct {
	Result struct {
		LoggedOff bool `json:"logged_off"`
	} `json:"result"`
}

// RegisterRequest は登録のリクエスト形式。
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"pwd_clear"`
}

// RegisterResponse は登録のレスポンス形式。
type RegisterResponse struct {
	ID int64 `json:"id"`
}

// Login はパスワードを検証し、セッションクッキーを発行する。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, r, http.StatusBadRequest, "INVALID_PARAMS", "invalid request body")
		return
	}

	user, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrLoginFail) {
			middleware.WriteAuditLog(r.Context(), "LOGIN", 0, "FAILED")
			httputil.Error(w, r, http.StatusForbidden, "LOGIN_FAIL", "login failed")
			return
		}
		slog.ErrorContext(r.Context(), "failed to login",
			"operation", "login",
			"error", err,
		)
		httputil.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	if err := middleware.SetTokenCookie(w, h.tokens, h.cookieName, user.Username, user.TokenSalt); err != nil {
		slog.ErrorContext(r.Context(), "failed to set token cookie",
			"operation", "login",
			"user_id", user.ID,
			"error", err,
		)
		httputil.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "LOGIN", user.ID, "SUCCESS")
	httputil.JSON(w, http.StatusOK, LoginResponse{Result: LoginResult{
		Success:  true,
		UserID:   user.ID,
		Username: user.Username,
	}})
}

// Logoff は logoff が true の場合にセッションクッキーを失効させる。
func (h *AuthHandler) Logoff(w http.ResponseWriter, r *http.Request) {
	var req LogoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, r, http.StatusBadRequest, "INVALID_PARAMS", "invalid request body")
		return
	}

	if req.Logoff {
		middleware.RemoveTokenCookie(w, h.cookieName)
		var userID int64
		if c, err := middleware.CtxFromRequest(r); err == nil {
			userID = c.UserID()
		}
		middleware.WriteAuditLog(r.Context(), "LOGOFF", userID, "SUCCESS")
	}

	var resp LogoffResponse
	resp.Result.LoggedOff = req.Logoff
	httputil.JSON(w, http.StatusOK, resp)
}

// Register は一般ユーザーを登録する。セッションは発行しない。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, r, http.StatusBadRequest, "INVALID_PARAMS", "invalid request body")
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeCreateUserError(w, r, "REGISTER", err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "REGISTER", user.ID, "SUCCESS")
	httputil.JSON(w, http.StatusCreated, RegisterResponse{ID: user.ID})
}

// writeCreateUserError はユーザー作成の失敗をクライアント向けのエラーに変換する。
func writeCreateUserError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidUsername):
		httputil.Error(w, r, http.StatusBadRequest, "INVALID_PARAMS", "invalid username")
	case errors.Is(err, domain.ErrInvalidPassword):
		httputil.Error(w, r, http.StatusBadRequest, "INVALID_PARAMS", "invalid password")
	case errors.Is(err, domain.ErrInvalidRole):
		httputil.Error(w, r, http.StatusBadRequest, "INVALID_PARAMS", "invalid role")
	case errors.Is(err, domain.ErrUserAlreadyExists):
		middleware.WriteAuditLog(r.Context(), operation, 0, "FAILED", "reason", "already_exists")
		httputil.Error(w, r, http.StatusConflict, "USER_ALREADY_EXISTS", "user already exists")
	default:
		slog.ErrorContext(r.Context(), "failed to create user",
			"operation", strings.ToLower(operation),
			"error", err,
		)
		httputil.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
