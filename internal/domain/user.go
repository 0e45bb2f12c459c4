// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import "time"

// Role はユーザーのロールを表す。
type Role string

const (
	// RoleUser は一般ユーザーを表す。
	RoleUser Role = "user"
	// RoleAdmin は管理者を表す。
	RoleAdmin Role = "admin"
	// RoleRoot は内部処理用の特権コンテキストを表す。ユーザーには割り当てない。
	RoleRoot Role = "root"
)

// ParseRole はユーザーに割り当て可能なロール名を解釈する。root は割り当てられない。
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	default:
		return "", ErrInvalidRole
	}
}

// User は外部に公開してよいユーザー情報を表す。
type User struct {
	ID        int64
	Username  string
	Role      Role
	CreatedAt time.Time
}

// UserForAuth はセッション解決に必要な最小限のユーザー情報を表す。
type UserForAuth struct {
	ID        int64
	Username  string
	TokenSalt string
	Role      Role
}

// UserForLogin はパスワード検証に必要なユーザー情報を表す。
type UserForLogin struct {
	ID        int64
	Username  string
	Pwd       *string // パスワード未設定のユーザーは nil
	PwdSalt   string
	TokenSalt string
	Role      Role
}

// UserForCreate はユーザー作成時の入力を表す。
type UserForCreate struct {
	Username string
	PwdHash  string
	PwdSalt  string
	Role     Role
}
