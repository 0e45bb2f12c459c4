package domain

// CtxExtErrorKind はコンテキスト解決の失敗種別を表す。
type CtxExtErrorKind string

const (
	KindTokenNotInCookie     CtxExtErrorKind = "TokenNotInCookie"
	KindTokenWrongFormat     CtxExtErrorKind = "TokenWrongFormat"
	KindUserNotFound         CtxExtErrorKind = "UserNotFound"
	KindModelAccessError     CtxExtErrorKind = "ModelAccessError"
	KindFailValidate         CtxExtErrorKind = "FailValidate"
	KindCannotSetTokenCookie CtxExtErrorKind = "CannotSetTokenCookie"
	KindCtxNotInRequestExt   CtxExtErrorKind = "CtxNotInRequestExt"
	KindCtxCreateFail        CtxExtErrorKind = "CtxCreateFail"
	KindCtxCannotNewRootCtx  CtxExtErrorKind = "CtxCannotNewRootCtx"
)

// CtxExtError はコンテキスト解決の失敗を表す型付きエラー。
// Detail は内部ログ用であり、クライアントへ返してはならない。
type CtxExtError struct {
	Kind   CtxExtErrorKind
	Detail string
}

func (e *CtxExtError) Error() string {
	if e.Detail == "" {
		return "ctx: " + string(e.Kind)
	}
	return "ctx: " + string(e.Kind) + ": " + e.Detail
}

// Is は Kind が一致すれば同一のエラーとみなす。
func (e *CtxExtError) Is(target error) bool {
	t, ok := target.(*CtxExtError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewCtxExtError は詳細付きの CtxExtError を生成する。
func NewCtxExtError(kind CtxExtErrorKind, detail string) *CtxExtError {
	return &CtxExtError{Kind: kind, Detail: detail}
}

var (
	ErrTokenNotInCookie     = &CtxExtError{Kind: KindTokenNotInCookie}
	ErrTokenWrongFormat     = &CtxExtError{Kind: KindTokenWrongFormat}
	ErrCtxUserNotFound      = &CtxExtError{Kind: KindUserNotFound}
	ErrModelAccessError     = &CtxExtError{Kind: KindModelAccessError}
	ErrFailValidate         = &CtxExtError{Kind: KindFailValidate}
	ErrCannotSetTokenCookie = &CtxExtError{Kind: KindCannotSetTokenCookie}
	ErrCtxNotInRequestExt   = &CtxExtError{Kind: KindCtxNotInRequestExt}
	ErrCtxCreateFail        = &CtxExtError{Kind: KindCtxCreateFail}
	ErrCtxCannotNewRootCtx  = &CtxExtError{Kind: KindCtxCannotNewRootCtx}
)
