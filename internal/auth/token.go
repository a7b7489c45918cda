package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken は署名不正・形式不正・発行者不一致のトークン。
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken は有効期限切れのトークン。
	ErrExpiredToken = errors.New("token has expired")
)

// TokenConfig はトークン発行の設定。
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// Claims は検証済みトークンから取り出した情報。
type Claims struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// TokenManager はHS256署名のJWTを発行・検証する。
type TokenManager struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenManager はTokenManagerを生成する。
func NewTokenManager(config TokenConfig) *TokenManager {
	return &TokenManager{config: config, now: time.Now}
}

// Issue はユーザーIDをsubに持つトークンを発行する。
// jtiには失効管理用のランダムなIDを設定する。
func (m *TokenManager) Issue(userID string) (string, *Claims, error) {
	now := m.now()
	jti := uuid.New().String()
	exp := now.Add(m.config.TTL)

	claims := jwt.RegisteredClaims{
		ID:        jti,
		Issuer:    m.config.Issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, &Claims{UserID: userID, TokenID: jti, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Parse はトークンの署名・有効期限・発行者を検証する。
// 期限切れはErrExpiredToken、それ以外の不正はErrInvalidTokenを返す。
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.Secret), nil
	},
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &Claims{
		UserID:    claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
