// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ButasRafael/LLM-knowledge-base/internal/crypt"
	"github.com/ButasRafael/LLM-knowledge-base/internal/domain"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// UserRepository はユーザーストアのインターフェース。
// 取得系はユーザーが存在しない場合に (nil, nil) を返す。
type UserRepository interface {
	FirstByUsernameForLogin(ctx context.Context, username string) (*domain.UserForLogin, error)
	GetForLogin(ctx context.Context, id int64) (*domain.UserForLogin, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, in domain.UserForCreate) (*domain.User, error)
	UpdatePwd(ctx context.Context, id int64, pwdHash string) error
	UpdateTokenSalt(ctx context.Context, id int64, tokenSalt string) error
}

// AuthService はログイン・登録・パスワード変更・セッション失効のビジネスロジックを提供する。
type AuthService struct {
	repo   UserRepository
	hasher *crypt.PasswordHasher
}

// NewAuthService は新しいAuthServiceを生成する。
func NewAuthService(repo UserRepository, hasher *crypt.PasswordHasher) *AuthService {
	return &AuthService{
		repo:   repo,
		hasher: hasher,
	}
}

// Register は一般ユーザーを作成する。
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	return s.CreateUser(ctx, username, password, domain.RoleUser)
}

// CreateUser は指定ロールのユーザーを作成する。管理者の作成はこの経路のみ。
func (s *AuthService) CreateUser(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, domain.ErrInvalidUsername
	}
	if password == "" {
		return nil, domain.ErrInvalidPassword
	}

	exists, err := s.repo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("checking existing user: %w", err)
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	pwdSalt := uuid.NewString()
	pwdHash, err := s.hasher.Hash(crypt.EncryptContent{Content: password, Salt: pwdSalt})
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.repo.Create(ctx, domain.UserForCreate{
		Username: username,
		PwdHash:  pwdHash,
		PwdSalt:  pwdSalt,
		Role:     role,
	})
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// Login はユーザー名とパスワードを検証する。
// ユーザー不在・パスワード未設定・不一致はすべて domain.ErrLoginFail になる。
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.UserForLogin, error) {
	user, err := s.repo.FirstByUsernameForLogin(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if user == nil || user.Pwd == nil {
		return nil, domain.ErrLoginFail
	}

	err = s.hasher.Verify(crypt.EncryptContent{Content: password, Salt: user.PwdSalt}, *user.Pwd)
	if err != nil {
		if errors.Is(err, domain.ErrPwdNotMatching) {
			return nil, domain.ErrLoginFail
		}
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	return user, nil
}

// ChangePassword は本人のパスワードを変更する。ソルトは既存のものを使い続ける。
func (s *AuthService) ChangePassword(ctx context.Context, actor *domain.Ctx, userID int64, oldPassword, newPassword string) error {
	if actor == nil || actor.UserID() != userID {
		return domain.ErrForbidden
	}
	if newPassword == "" {
		return domain.ErrInvalidPassword
	}

	user, err := s.repo.GetForLogin(ctx, userID)
	if err != nil {
		return fmt.Errorf("finding user: %w", err)
	}
	if user == nil {
		return domain.ErrUserNotFound
	}
	if user.Pwd == nil {
		return domain.ErrUserHasNoPwd
	}

	if err := s.hasher.Verify(crypt.EncryptContent{Content: oldPassword, Salt: user.PwdSalt}, *user.Pwd); err != nil {
		return err
	}

	pwdHash, err := s.hasher.Hash(crypt.EncryptContent{Content: newPassword, Salt: user.PwdSalt})
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.repo.UpdatePwd(ctx, userID, pwdHash); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return nil
}

// RevokeSessions はトークンソルトを更新し、発行済みのセッションをすべて無効にする。
func (s *AuthService) RevokeSessions(ctx context.Context, userID int64) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("finding user: %w", err)
	}
	if user == nil {
		return domain.ErrUserNotFound
	}

	if err := s.repo.UpdateTokenSalt(ctx, userID, uuid.NewString()); err != nil {
		return fmt.Errorf("rotating token salt: %w", err)
	}
	return nil
}

// RevokeSessionsByUsername はユーザー名を指定してセッションを失効させる。
func (s *AuthService) RevokeSessionsByUsername(ctx context.Context, username string) (int64, error) {
	user, err := s.repo.FirstByUsernameForLogin(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("finding user: %w", err)
	}
	if user == nil {
		return 0, domain.ErrUserNotFound
	}
	if err := s.repo.UpdateTokenSalt(ctx, user.ID, uuid.NewString()); err != nil {
		return 0, fmt.Errorf("rotating token salt: %w", err)
	}
	return user.ID, nil
}

// Me は actor 自身のユーザー情報を返す。
func (s *AuthService) Me(ctx context.Context, actor *domain.Ctx) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, actor.UserID())
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

// ListUsers は全ユーザーを返す。
func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}
