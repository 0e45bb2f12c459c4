package domain

import "errors"

var (
	// ErrKeyFailHmac は署名鍵がHMACに受け付けられない場合のエラー。設定不備として扱う。
	ErrKeyFailHmac = errors.New("signing key rejected by hmac")

	// ErrPwdNotMatching はパスワードハッシュが一致しない場合のエラー。
	ErrPwdNotMatching = errors.New("password not matching")

	// ErrTokenInvalidFormat はトークンが3パートで構成されていない場合のエラー。
	ErrTokenInvalidFormat = errors.New("token has invalid format")

	// ErrTokenCannotDecodeIdentifier は識別子パートをデコードできない場合のエラー。
	ErrTokenCannotDecodeIdentifier = errors.New("token identifier cannot be decoded")

	// ErrTokenCannotDecodeExpiration は有効期限パートをデコードできない場合のエラー。
	ErrTokenCannotDecodeExpiration = errors.New("token expiration cannot be decoded")

	// ErrTokenSignatureNotMatching は署名が一致しない場合のエラー。
	ErrTokenSignatureNotMatching = errors.New("token signature not matching")

	// ErrTokenExpirationNotIso は有効期限がRFC3339として解釈できない場合のエラー。
	ErrTokenExpirationNotIso = errors.New("token expiration is not rfc3339")

	// ErrTokenExpired はトークンの有効期限切れを表すエラー。
	ErrTokenExpired = errors.New("token expired")

	// ErrLoginFail はログイン失敗を表すエラー。原因（ユーザー不在・不一致）は区別しない。
	ErrLoginFail = errors.New("login failed")

	// ErrUserNotFound は指定されたユーザーが存在しない場合のエラー。
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists は同名のユーザーが既に存在する場合のエラー。
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserHasNoPwd はパスワード未設定のユーザーに対する操作のエラー。
	ErrUserHasNoPwd = errors.New("user has no password")

	// ErrInvalidUsername はユーザー名の形式が不正な場合のエラー。
	ErrInvalidUsername = errors.New("invalid username")

	// ErrInvalidPassword はパスワードの形式が不正な場合のエラー。
	ErrInvalidPassword = errors.New("invalid password")

	// ErrInvalidRole はユーザーに割り当てられないロールが指定された場合のエラー。
	ErrInvalidRole = errors.New("invalid role")

	// ErrForbidden は権限不足を表すエラー。
	ErrForbidden = errors.New("forbidden")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")

	// ErrMigrationModified は適用済みマイグレーションのSQLが書き換えられた場合のエラー。
	ErrMigrationModified = errors.New("applied migration was modified")
)
