// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/todoapp/internal/auth"
	"github.com/hitoshi/todoapp/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// tokenContextKey は検証済みトークン文字列を格納するためのキー。ログアウトで使う。
	tokenContextKey = contextKey("bearer_token")
)

// TokenVerifier はトークン検証に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.UserID, error)
}

// NewBearerAuthMiddleware はAuthorizationヘッダーのトークンを検証するミドルウェアを返す。
// トークン未提示は401、不正・期限切れ・失効済みは400を返す。
// 認証済みユーザーIDをリクエストコンテキストに注入する。
func NewBearerAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			uid, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if model.HasCode(err, model.ErrCodeInvalidToken) || model.HasCode(err, model.ErrCodeUnauthenticated) {
					WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidTokenError())
					return
				}
				slog.Error("failed to verify token",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			setLoggedUserID(r.Context(), uid.String())
			ctx := context.WithValue(r.Context(), userIDContextKey, uid)
			ctx = context.WithValue(ctx, tokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken はAuthorizationヘッダーからトークンを取り出す。
// "Bearer "接頭辞のない値もトークンとして扱う。
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) >= 7 && strings.EqualFold(h[:7], "Bearer ") {
		h = h[7:]
	}
	return strings.TrimSpace(h)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (auth.UserID, error) {
	uid, ok := ctx.Value(userIDContextKey).(auth.UserID)
	if !ok || uid.IsZero() {
		return auth.UserID{}, fmt.Errorf("user ID not found in context")
	}
	return uid, nil
}

// TokenFromContext は認証ミドルウェアが検証したトークンを返す。
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, uid auth.UserID) context.Context {
	return context.WithValue(ctx, userIDContextKey, uid)
}
