// Package auth はメールアドレスとパスワードによる登録・ログインと、
// ベアラートークンの発行・検証・失効を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/todoapp/internal/model"
	"github.com/hitoshi/todoapp/internal/repository"
)

// UserID は検証済みトークンから得られたユーザー識別子。
// Verify以外では生成できないため、タスク操作に認証済みであることを型で要求できる。
type UserID struct {
	id string
}

// String はユーザーIDの文字列表現を返す。
func (u UserID) String() string { return u.id }

// IsZero は未認証のゼロ値かを返す。
func (u UserID) IsZero() bool { return u.id == "" }

// UserIDForTesting はテストで任意のUserIDを作るためのもの。
func UserIDForTesting(id string) UserID { return UserID{id: id} }

// LoginResult はログイン成功時にクライアントへ返す内容。
type LoginResult struct {
	Token string
	Email string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	tokens   *TokenManager
	revoker  TokenRevoker
	now      func() time.Time

	// dummyHash はユーザー不在時の照合に使う。初回のログイン失敗時に生成する。
	dummyOnce sync.Once
	dummyHash string
}

// NewService はServiceを生成する。revokerがnilの場合は失効リストなしで動作する。
func NewService(
	userRepo repository.UserRepository,
	hasher PasswordHasher,
	tokens *TokenManager,
	revoker TokenRevoker,
) *Service {
	if revoker == nil {
		revoker = NoopRevoker{}
	}
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		revoker:  revoker,
		now:      time.Now,
	}
}

// Register はユーザーを登録する。
// メールアドレスは入力のまま保存し、前後の空白は空判定にのみ使う。
func (s *Service) Register(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return model.NewValidationError("Email and password are required")
	}
	if len(password) > MaxPasswordBytes {
		return model.NewValidationError(fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes))
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		return model.NewUserExistsError()
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// 検索後に並行登録された場合も同じエラーにする
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.NewUserExistsError()
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	return nil
}

// Login は認証情報を照合し、トークンを発行する。
// ユーザー不在とパスワード不一致は同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return nil, model.NewValidationError("Email and password are required")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// 登録済みかどうかが応答時間から分からないよう、ダミーのハッシュと照合する
		s.hasher.Verify(s.dummy(), password)
		slog.Info("login failed", slog.String("reason", "unknown_email"))
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Info("login failed", slog.String("reason", "password_mismatch"), slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	token, _, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return &LoginResult{Token: token, Email: user.Email}, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			slog.Warn("failed to prepare dummy password hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// Verify はトークンを検証し、ユーザーIDを返す。
func (s *Service) Verify(ctx context.Context, token string) (UserID, error) {
	if token == "" {
		return UserID{}, model.NewUnauthenticatedError()
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return UserID{}, model.NewInvalidTokenError()
	}

	if claims.TokenID != "" {
		revoked, err := s.revoker.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return UserID{}, err
		}
		if revoked {
			return UserID{}, model.NewInvalidTokenError()
		}
	}

	return UserID{id: claims.UserID}, nil
}

// Logout はトークンを有効期限まで失効させる。
// 既に無効なトークンの場合は何もしない。
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil || claims.TokenID == "" {
		return nil
	}

	if err := s.revoker.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return err
	}

	slog.Info("user logged out", slog.String("user_id", claims.UserID))
	return nil
}
