// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ButasRafael/LLM-knowledge-base/internal/domain"
)

// UserModel はgorm用のモデル定義。
type UserModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Username  string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_users_username"`
	Pwd       *string   `gorm:"type:varchar(128)"`
	PwdSalt   string    `gorm:"type:char(36);not null"`
	TokenSalt string    `gorm:"type:char(36);not null"`
	Role      string    `gorm:"type:varchar(16);not null;default:'user'"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (UserModel) TableName() string {
	return "users"
}

// BeforeCreate はレコード作成前に未設定のソルトを生成する。
func (u *UserModel) BeforeCreate(tx *gorm.DB) error {
	if u.PwdSalt == "" {
		u.PwdSalt = uuid.NewString()
	}
	if u.TokenSalt == "" {
		u.TokenSalt = uuid.NewString()
	}
	return nil
}

func (u *UserModel) toDomain() *domain.User {
	return &domain.User{
		ID:        u.ID,
		Username:  u.Username,
		Role:      domain.Role(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

// UserRepository はユーザーストアへのアクセスを提供する。
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository は新しいUserRepositoryを生成する。
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FirstByUsernameForAuth はセッション解決用にユーザーを取得する。存在しない場合は (nil, nil)。
func (r *UserRepository) FirstByUsernameForAuth(ctx context.Context, username string) (*domain.UserForAuth, error) {
	var model UserModel
	err := r.db.WithContext(ctx).
		Select("id", "username", "token_salt", "role").
		Where("username = ?", username).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find user for auth",
			"operation", "first_by_username_for_auth",
			"error", err,
		)
		return nil, err
	}
	return &domain.UserForAuth{
		ID:        model.ID,
		Username:  model.Username,
		TokenSalt: model.TokenSalt,
		Role:      domain.Role(model.Role),
	}, nil
}

// FirstByUsernameForLogin はパスワード検証用にユーザーを取得する。存在しない場合は (nil, nil)。
func (r *UserRepository) FirstByUsernameForLogin(ctx context.Context, username string) (*domain.UserForLogin, error) {
	return r.firstForLogin(ctx, "first_by_username_for_login", "username = ?", username)
}

// GetForLogin はIDを指定してパスワード検証用のユーザーを取得する。存在しない場合は (nil, nil)。
func (r *UserRepository) GetForLogin(ctx context.Context, id int64) (*domain.UserForLogin, error) {
	return r.firstForLogin(ctx, "get_for_login", "id = ?", id)
}

func (r *UserRepository) firstForLogin(ctx context.Context, operation string, query string, arg interface{}) (*domain.UserForLogin, error) {
	var model UserModel
	err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find user for login",
			"operation", operation,
			"error", err,
		)
		return nil, err
	}
	return &domain.UserForLogin{
		ID:        model.ID,
		Username:  model.Username,
		Pwd:       model.Pwd,
		PwdSalt:   model.PwdSalt,
		TokenSalt: model.TokenSalt,
		Role:      domain.Role(model.Role),
	}, nil
}

// GetByID は指定されたIDのユーザーを取得する。存在しない場合は (nil, nil)。
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).
		Select("id", "username", "role", "created_at").
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to get user",
			"operation", "get_by_id",
			"user_id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// List は全ユーザーをID順に取得する。
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	var models []UserModel
	err := r.db.WithContext(ctx).
		Select("id", "username", "role", "created_at").
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to list users",
			"operation", "list",
			"error", err,
		)
		return nil, err
	}

	users := make([]*domain.User, len(models))
	for i := range models {
		users[i] = models[i].toDomain()
	}
	return users, nil
}

// ExistsByUsername は同名のユーザーが存在するか確認する。
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("username = ?", username).
		Count(&count).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to count users by username",
			"operation", "exists_by_username",
			"error", err,
		)
		return false, err
	}
	return count > 0, nil
}

// Create は新しいユーザーを保存する。トークンソルトは自動生成される。
func (r *UserRepository) Create(ctx context.Context, in domain.UserForCreate) (*domain.User, error) {
	pwd := in.PwdHash
	model := &UserModel{
		Username: in.Username,
		Pwd:      &pwd,
		PwdSalt:  in.PwdSalt,
		Role:     string(in.Role),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		// 存在確認と作成の間に同名ユーザーが作られた場合（TranslateError が必要）
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrUserAlreadyExists
		}
		slog.ErrorContext(ctx, "failed to create user",
			"operation", "create",
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// UpdatePwd はパスワードハッシュを更新する。
func (r *UserRepository) UpdatePwd(ctx context.Context, id int64, pwdHash string) error {
	return r.updateColumn(ctx, "update_pwd", id, "pwd", pwdHash)
}

// UpdateTokenSalt はトークンソルトを更新する。発行済みの全トークンが無効になる。
func (r *UserRepository) UpdateTokenSalt(ctx context.Context, id int64, tokenSalt string) error {
	return r.updateColumn(ctx, "update_token_salt", id, "token_salt", tokenSalt)
}

func (r *UserRepository) updateColumn(ctx context.Context, operation string, id int64, column string, value string) error {
	err := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ?", id).
		Update(column, value).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to update user",
			"operation", operation,
			"user_id", id,
			"error", err,
		)
		return err
	}
	return nil
}
