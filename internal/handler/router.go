package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ButasRafael/LLM-knowledge-base/internal/middleware"
	"github.com/ButasRafael/LLM-knowledge-base/pkg/httputil"
)

// Dependencies はルーターが必要とするハンドラとミドルウェア。
type Dependencies struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Resolver *middleware.CtxResolver
	Metrics  *middleware.AuthMetrics
	Gatherer prometheus.Gatherer
}

// NewRouter はルーターを生成する。
func NewRouter(d Dependencies) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	// 全リクエストでコンテキストを解決する
	r.Use(d.Resolver.Handler)

	// 公開ルート
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/register", d.Auth.Register)
	r.Post("/api/login", d.Auth.Login)
	r.Post("/api/logoff", d.Auth.Logoff)

	// 認証済みユーザー
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Metrics))
		r.Get("/api/users/me", d.Users.Me)
		r.Delete("/api/users/me/sessions", d.Users.RevokeMySessions)
		r.Put("/api/users/{id}/password", d.Users.ChangePassword)
	})

	// 管理者
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(d.Metrics))
		r.Get("/users", d.Users.ListUsers)
		r.Post("/users", d.Users.CreateUser)
		r.Delete("/users/{id}/sessions", d.Users.RevokeUserSessions)
		if d.Gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
		}
	})

	return r
}
