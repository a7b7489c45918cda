// Package client はTodo APIのHTTPクライアントと、ログイン状態を保持するセッション管理を提供する。
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Session はログイン中のユーザーのトークンとメールアドレス。
type Session struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// IsZero は未ログイン状態かを返す。
func (s Session) IsZero() bool { return s.Token == "" }

// SessionStore はセッションの永続化先。
type SessionStore interface {
	// Load は保存済みのセッションを返す。未保存の場合はゼロ値を返す。
	Load() (Session, error)
	Save(s Session) error
	Clear() error
}

// FileSessionStore はセッションをJSONファイルに保存する。
// トークンを含むため、ファイルは所有者のみ読み書きできる権限で作成する。
type FileSessionStore struct {
	path string
}

// NewFileSessionStore はFileSessionStoreを生成する。
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// Path は保存先のファイルパスを返す。
func (f *FileSessionStore) Path() string { return f.path }

func (f *FileSessionStore) Load() (Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("セッションファイルの読み込みに失敗しました: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("セッションファイルのパースに失敗しました: %w", err)
	}
	return s, nil
}

func (f *FileSessionStore) Save(s Session) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("セッションディレクトリの作成に失敗しました: %w", err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("セッションのエンコードに失敗しました: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("セッションファイルの書き込みに失敗しました: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("セッションファイルの置き換えに失敗しました: %w", err)
	}
	return nil
}

func (f *FileSessionStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("セッションファイルの削除に失敗しました: %w", err)
	}
	return nil
}

var _ SessionStore = (*FileSessionStore)(nil)
