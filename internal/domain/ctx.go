package domain

// Ctx は認証済みリクエストの主体を表す。リクエストごとに生成される。
type Ctx struct {
	userID int64
	role   Role
}

// RootCtx は内部処理用の特権コンテキストを返す。
func RootCtx() *Ctx {
	return &Ctx{userID: 0, role: RoleRoot}
}

// NewCtx は通常ユーザーのコンテキストを生成する。
// userID が 0 の場合は root の偽装を防ぐためエラーを返す。
func NewCtx(userID int64, role Role) (*Ctx, error) {
	if userID == 0 {
		return nil, ErrCtxCannotNewRootCtx
	}
	return &Ctx{userID: userID, role: role}, nil
}

// UserID はユーザーIDを返す。
func (c *Ctx) UserID() int64 {
	return c.userID
}

// Role はロールを返す。
func (c *Ctx) Role() Role {
	return c.role
}

// IsAdmin は管理者ロールかどうかを返す。
func (c *Ctx) IsAdmin() bool {
	return c.role == RoleAdmin
}
