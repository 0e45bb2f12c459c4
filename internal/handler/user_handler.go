package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ButasRafael/LLM-knowledge-base/internal/domain"
	"github.com/ButasRafael/LLM-knowledge-base/internal/middleware"
	"github.com/ButasRafael/LLM-knowledge-base/internal/usecase"
	"github.com/ButasRafael/LLM-knowledge-base/pkg/httputil"
)

// UserHandler は認証済みユーザー向けと管理者向けのHTTPハンドラを提供する。
// ゲート（RequireAuth / RequireAdmin）の内側にマウントされる前提。
type UserHandler struct {
	service    *usecase.AuthService
	cookieName string
}

// NewUserHandler は新しいUserHandlerを生成する。
func NewUserHandler(service *usecase.AuthService, cookieName string) *UserHandler {
	if cookieName == "" {
		cookieName = middleware.DefaultCookieName
	}
	return &UserHandler{service: service, cookieName: cookieName}
}

// UserResponse はユーザー情報のレスポンス形式。
type UserResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// UserListResponse はユーザー一覧のレスポンス形式。
type UserListResponse struct {
	Users []UserResponse `json:"users"`
}

// CreateUserRequest は管理者によるユーザー作成のリクエスト形式。role 省略時は user。
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"pwd_clear"`
	Role     string `json:"role"`
}

// ChangePasswordRequest はパスワード変更のリクエスト形式。
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func parseUserID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// actor はゲート通過済みのリクエストから認証コンテキストを取り出す。
func actor(w http.ResponseWriter, r *http.Request) (*domain.Ctx, bool) {
	c, err := middleware.CtxFromRequest(r)
	if err != nil {
		// ゲートの外にマウントされている
		slog.ErrorContext(r.Context(), "handler reached without auth context",
			"operation", "actor",
			"path", r.URL.Path,
			"error", err,
		)
		httputil.Error(w, r, http.StatusInternalServerError, "CTX_NOT_RESOLVED", "internal server error")
		return nil, false
	}
	return c, true
}

// Me は自分自身のユーザー情報を返す。
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	c, ok := actor(w, r)
	if !ok {
		return
	}

	user, err := h.service.Me(r.Context(), c)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, r, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get current user",
			"operation", "me",
			"user_id", c.UserID(),
			"error", err,
		)
		httputil.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	httputil.JSON(w, http.StatusOK, toUserResponse(user))
}

// ChangePassword は本人のパスワードを変更する。
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	c, ok := actor(w, r)
	if !ok {
		return
	}

	userID, ok := parseUserID(r)
	if !ok {
		httputil.Error(w, r, http.StatusBadRequest, "INVALID_PARAMS", "invalid user id")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, r, http.StatusBadRequest, "INVALID_PARAMS", "invalid request body")
		return
	}

	err := h.service.ChangePassword(r.Context(), c, userID, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrForbidden):
			middleware.WriteAuditLog(r.Context(), "CHANGE_PASSWORD", c.UserID(), "FAILED", "target_user_id", userID, "reason", "forbidden")
			httputil.Error(w, r, http.StatusForbidden, "FORBIDDEN", "forbidden")
		case errors.Is(err, domain.ErrPwdNotMatching), errors.Is(err, domain.ErrUserHasNoPwd):
			middleware.WriteAuditLog(r.Context(), "CHANGE_PASSWORD", c.UserID(), "FAILED", "reason", "pwd_not_matching")
			httputil.Error(w, r, http.StatusForbidden, "LOGIN_FAIL", "password not matching")
		case errors.Is(err, domain.ErrInvalidPassword):
			httputil.Error(w, r, http.StatusBadRequest, "INVALID_PARAMS", "invalid password")
		case errors.Is(err, domain.ErrUserNotFound):
			httputil.Error(w, r, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
		default:
			slog.ErrorContext(r.Context(), "failed to change password",
				"operation", "change_password",
				"user_id", c.UserID(),
				"error", err,
			)
			httputil.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	middleware.WriteAuditLog(r.Context(), "CHANGE_PASSWORD", c.UserID(), "SUCCESS")
	w.WriteHeader(http.StatusNoContent)
}

// RevokeMySessions は自分の全セッションを失効させ、このリクエストのクッキーも削除する。
func (h *UserHandler) RevokeMySessions(w http.ResponseWriter, r *http.Request) {
	c, ok := actor(w, r)
	if !ok {
		return
	}
	if !h.revoke(w, r, c, c.UserID()) {
		return
	}
	// リゾルバが更新したクッキーは古いソルトで署名されている
	middleware.RemoveTokenCookie(w, h.cookieName)
	w.WriteHeader(http.StatusNoContent)
}

// ListUsers は全ユーザーを返す。
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list users",
			"operation", "list_users",
			"error", err,
		)
		httputil.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	resp := UserListResponse{Users: make([]UserResponse, len(users))}
	for i, u := range users {
		resp.Users[i] = toUserResponse(u)
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// CreateUser は任意のロールのユーザーを作成する。
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	c, ok := actor(w, r)
	if !ok {
		return
	}
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, r, http.StatusBadRequest, "INVALID_PARAMS", "invalid request body")
		return
	}
	role := domain.RoleUser
	if req.Role != "" {
		role = domain.Role(req.Role)
	}

	user, err := h.service.CreateUser(r.Context(), req.Username, req.Password, role)
	if err != nil {
		writeCreateUserError(w, r, "CREATE_USER", err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "CREATE_USER", c.UserID(), "SUCCESS",
		"created_user_id", user.ID,
		"role", string(user.Role),
	)
	httputil.JSON(w, http.StatusCreated, RegisterResponse{ID: user.ID})
}

// RevokeUserSessions は指定ユーザーの全セッションを失効させる。
func (h *UserHandler) RevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	c, ok := actor(w, r)
	if !ok {
		return
	}
	userID, ok := parseUserID(r)
	if !ok {
		httputil.Error(w, r, http.StatusBadRequest, "INVALID_PARAMS", "invalid user id")
		return
	}
	if !h.revoke(w, r, c, userID) {
		return
	}
	if userID == c.UserID() {
		middleware.RemoveTokenCookie(w, h.cookieName)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) revoke(w http.ResponseWriter, r *http.Request, c *domain.Ctx, userID int64) bool {
	if err := h.service.RevokeSessions(r.Context(), userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, r, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
			return false
		}
		slog.ErrorContext(r.Context(), "failed to revoke sessions",
			"operation", "revoke_sessions",
			"user_id", userID,
			"error", err,
		)
		httputil.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return false
	}
	middleware.WriteAuditLog(r.Context(), "REVOKE_SESSIONS", c.UserID(), "SUCCESS", "target_user_id", userID)
	return true
}
