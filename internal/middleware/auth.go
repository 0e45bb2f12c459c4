package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ButasRafael/LLM-knowledge-base/internal/crypt"
	"github.com/ButasRafael/LLM-knowledge-base/internal/domain"
	"github.com/ButasRafael/LLM-knowledge-base/pkg/httputil"
)

const tracerName = "github.com/ButasRafael/LLM-knowledge-base/internal/middleware"

// UserFinder はセッション解決に使うユーザー検索のインターフェース。
// ユーザーが存在しない場合は (nil, nil) を返す。
type UserFinder interface {
	FirstByUsernameForAuth(ctx context.Context, username string) (*domain.UserForAuth, error)
}

// TokenIssuer はセッショントークンの検証と再発行を行う。*crypt.TokenService が実装する。
type TokenIssuer interface {
	TokenGenerator
	Validate(t crypt.Token, salt string) error
}

// resolution はリクエストごとのコンテキスト解決結果。成功時は ctx、失敗時は err のみを持つ。
type resolution struct {
	ctx *domain.Ctx
	err error
}

type resolutionKey struct{}

// CtxResolver はセッションクッキーから認証コンテキストを解決するミドルウェア。
type CtxResolver struct {
	users      UserFinder
	tokens     TokenIssuer
	cookieName string
	metrics    *AuthMetrics
}

// NewCtxResolver は新しいCtxResolverを生成する。
func NewCtxResolver(users UserFinder, tokens TokenIssuer, cookieName string, metrics *AuthMetrics) *CtxResolver {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &CtxResolver{
		users:      users,
		tokens:     tokens,
		cookieName: cookieName,
		metrics:    metrics,
	}
}

// Handler はリクエストごとに1回だけ解決を行い、結果をリクエストコンテキストに格納する。
// 失敗してもリクエストは中断せず、判断はゲートに委ねる。
func (m *CtxResolver) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := otel.Tracer(tracerName).Start(r.Context(), "auth.resolve")

		c, err := m.resolve(ctx, w, r)

		// クッキー未送信以外の失敗では、クライアントに同じトークンを再送させない
		if err != nil && !errors.Is(err, domain.ErrTokenNotInCookie) {
			RemoveTokenCookie(w, m.cookieName)
		}

		outcome := outcomeLabel(err)
		span.SetAttributes(attribute.String("auth.outcome", outcome))
		span.End()
		m.metrics.observeResolution(outcome)
		logResolution(ctx, c, err)

		ctx = context.WithValue(r.Context(), resolutionKey{}, &resolution{ctx: c, err: err})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *CtxResolver) resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) (*domain.Ctx, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return nil, domain.ErrTokenNotInCookie
	}

	token, err := crypt.ParseToken(cookie.Value)
	if err != nil {
		return nil, domain.ErrTokenWrongFormat
	}

	user, err := m.users.FirstByUsernameForAuth(ctx, token.Identifier)
	if err != nil {
		return nil, domain.NewCtxExtError(domain.KindModelAccessError, err.Error())
	}
	if user == nil {
		return nil, domain.ErrCtxUserNotFound
	}

	// 署名不一致・期限切れ・書式不正はクライアントから区別できないよう1種類にまとめる
	if err := m.tokens.Validate(token, user.TokenSalt); err != nil {
		return nil, domain.NewCtxExtError(domain.KindFailValidate, err.Error())
	}

	if err := SetTokenCookie(w, m.tokens, m.cookieName, user.Username, user.TokenSalt); err != nil {
		return nil, domain.NewCtxExtError(domain.KindCannotSetTokenCookie, err.Error())
	}

	c, err := domain.NewCtx(user.ID, user.Role)
	if err != nil {
		return nil, domain.NewCtxExtError(domain.KindCtxCreateFail, err.Error())
	}
	return c, nil
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	var ce *domain.CtxExtError
	if errors.As(err, &ce) {
		return string(ce.Kind)
	}
	return "unknown"
}

func logResolution(ctx context.Context, c *domain.Ctx, err error) {
	switch {
	case err == nil:
		slog.DebugContext(ctx, "auth context resolved",
			"operation", "ctx_resolve",
			"user_id", c.UserID(),
			"role", c.Role(),
		)
	case errors.Is(err, domain.ErrTokenNotInCookie):
		slog.DebugContext(ctx, "no session cookie", "operation", "ctx_resolve")
	case errors.Is(err, domain.ErrModelAccessError):
		slog.ErrorContext(ctx, "failed to load user for session",
			"operation", "ctx_resolve",
			"error", err,
		)
	default:
		slog.WarnContext(ctx, "session rejected",
			"operation", "ctx_resolve",
			"error", err,
		)
	}
}

// CtxFromContext はリゾルバが格納した認証コンテキストを取り出す。
// リゾルバが実行されていない場合は domain.ErrCtxNotInRequestExt、解決失敗時はその失敗を返す。
func CtxFromContext(ctx context.Context) (*domain.Ctx, error) {
	res, ok := ctx.Value(resolutionKey{}).(*resolution)
	if !ok {
		return nil, domain.ErrCtxNotInRequestExt
	}
	if res.err != nil {
		return nil, res.err
	}
	return res.ctx, nil
}

// CtxFromRequest は CtxFromContext のリクエスト版。
func CtxFromRequest(r *http.Request) (*domain.Ctx, error) {
	return CtxFromContext(r.Context())
}

// RequireAuth は認証済みでないリクエストを 401 で拒否するゲートを返す。
func RequireAuth(metrics *AuthMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := authorize(w, r, metrics, "require_auth"); !ok {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin は管理者以外のリクエストを拒否するゲートを返す。
// 未認証は 401、認証済みの非管理者は 403 とする。
func RequireAdmin(metrics *AuthMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := authorize(w, r, metrics, "require_admin")
			if !ok {
				return
			}
			if !c.IsAdmin() {
				metrics.observeRejection("require_admin", "not_admin")
				WriteAuditLog(r.Context(), "REQUIRE_ADMIN", c.UserID(), "FAILED", "reason", "not_admin")
				httputil.Error(w, r, http.StatusForbidden, "FORBIDDEN", "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authorize は解決結果を取り出し、失敗時はレスポンスを書き込んで false を返す。
func authorize(w http.ResponseWriter, r *http.Request, metrics *AuthMetrics, gate string) (*domain.Ctx, bool) {
	c, err := CtxFromRequest(r)
	if err == nil {
		return c, true
	}

	if errors.Is(err, domain.ErrCtxNotInRequestExt) {
		// 配線ミス。未認証として扱わず運用者に知らせる
		metrics.observeRejection(gate, string(domain.KindCtxNotInRequestExt))
		slog.ErrorContext(r.Context(), "auth context not resolved before gate",
			"operation", gate,
			"path", r.URL.Path,
		)
		httputil.Error(w, r, http.StatusInternalServerError, "CTX_NOT_RESOLVED", "internal server error")
		return nil, false
	}

	reason := outcomeLabel(err)
	metrics.observeRejection(gate, reason)
	WriteAuditLog(r.Context(), strings.ToUpper(gate), 0, "FAILED", "reason", reason)
	httputil.Error(w, r, http.StatusUnauthorized, "NO_AUTH", "not authenticated")
	return nil, false
}
