// Package httputil はHTTPレスポンス生成のユーティリティを提供する。
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse はエラーレスポンスの形式。
// 内部の失敗詳細（署名値・鍵・パースエラー等）は含めない。
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"req_id,omitempty"`
}

// JSON はJSONレスポンスを返す。
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// ヘッダーは送信済みのためログのみ
			slog.Error("failed to encode response", "operation", "write_json", "error", err)
		}
	}
}

// Error はエラーレスポンスを返す。リクエストIDがあれば付与する。
func Error(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	resp := ErrorResponse{
		Code:    code,
		Message: message,
	}
	if r != nil {
		resp.RequestID = chimiddleware.GetReqID(r.Context())
	}
	JSON(w, status, resp)
}
