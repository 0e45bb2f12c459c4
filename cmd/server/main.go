// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ButasRafael/LLM-knowledge-base/config"
	"github.com/ButasRafael/LLM-knowledge-base/internal/crypt"
	"github.com/ButasRafael/LLM-knowledge-base/internal/handler"
	"github.com/ButasRafael/LLM-knowledge-base/internal/infra"
	"github.com/ButasRafael/LLM-knowledge-base/internal/middleware"
	"github.com/ButasRafael/LLM-knowledge-base/internal/repository"
	"github.com/ButasRafael/LLM-knowledge-base/internal/usecase"
)

const version = "1.0.0"

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// トレーサー初期化（ロガー設定の前に実行）
	shutdownTracer, err := infra.InitTracer(ctx, cfg, version)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			slog.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg, os.Stdout)

	// KMS暗号文で渡されたサービス鍵を復号
	if cfg.KMSKeyName != "" {
		if err := unwrapKeys(ctx, cfg); err != nil {
			slog.Error("failed to unwrap service keys", "error", err)
			os.Exit(1)
		}
	}

	db, err := infra.NewDB(cfg.DatabaseURL, cfg.OtelEnabled)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}

	// メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewAuthMetrics(reg)

	// DI
	tokens := crypt.NewTokenService(cfg.TokenKey, cfg.TokenDuration)
	hasher := crypt.NewPasswordHasher(cfg.PwdKey)
	users := repository.NewUserRepository(db)
	auth := usecase.NewAuthService(users, hasher)

	router := handler.NewRouter(handler.Dependencies{
		Auth:     handler.NewAuthHandler(auth, tokens, cfg.CookieName),
		Users:    handler.NewUserHandler(auth, cfg.CookieName),
		Resolver: middleware.NewCtxResolver(users, tokens, cfg.CookieName, metrics),
		Metrics:  metrics,
		Gatherer: reg,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(router, "knowledge-base-service"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server",
		"port", cfg.Port,
		"token_duration_sec", int64(cfg.TokenDuration/time.Second),
		"cookie_name", cfg.CookieName,
		"db_dialect", infra.Dialect(db),
	)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func unwrapKeys(ctx context.Context, cfg *config.Config) error {
	kmsClient, err := infra.NewKMSClient(ctx, cfg.KMSKeyName)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := kmsClient.Close(); closeErr != nil {
			slog.Error("failed to close KMS client", "error", closeErr)
		}
	}()
	return cfg.UnwrapKeys(ctx, kmsClient)
}
