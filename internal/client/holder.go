package client

import (
	"context"
	"fmt"
	"log/slog"
)

// AuthAPI はHolderが使う認証API。
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (Session, error)
	Logout(ctx context.Context, s Session) error
}

// Holder はログインで作成しログアウトで破棄するセッションのライフサイクルを管理する。
// 並行利用は想定しない。
type Holder struct {
	api     AuthAPI
	store   SessionStore
	current Session
}

// NewHolder はHolderを生成する。Restoreを呼ぶまでは未ログイン状態。
func NewHolder(api AuthAPI, store SessionStore) *Holder {
	return &Holder{api: api, store: store}
}

// Restore は保存済みのセッションを読み込む。
func (h *Holder) Restore() (Session, error) {
	s, err := h.store.Load()
	if err != nil {
		return Session{}, err
	}
	h.current = s
	return s, nil
}

// Login はAPIでログインし、成功したセッションを保存する。
// 失敗した場合は現在のセッションを変更しない。
func (h *Holder) Login(ctx context.Context, email, password string) (Session, error) {
	s, err := h.api.Login(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	if err := h.store.Save(s); err != nil {
		return Session{}, fmt.Errorf("failed to save session: %w", err)
	}
	h.current = s
	return s, nil
}

// Logout はサーバー側のトークン失効を試みた後、成否にかかわらずセッションを破棄する。
func (h *Holder) Logout(ctx context.Context) error {
	if !h.current.IsZero() {
		if err := h.api.Logout(ctx, h.current); err != nil {
			slog.Warn("server logout failed; clearing local session",
				slog.String("error", err.Error()),
			)
		}
	}
	h.current = Session{}
	return h.store.Clear()
}

// Current は現在のセッションを返す。
func (h *Holder) Current() Session { return h.current }
