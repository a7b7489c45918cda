// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/todoapp/internal/model"
)

// ErrDuplicateEmail は同一メールアドレスのユーザーが既に存在する場合に返される。
var ErrDuplicateEmail = errors.New("repository: email already registered")

// UserRepository はユーザー（認証情報）の永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。大文字小文字を区別する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error
}

// TaskRepository はタスクの永続化インターフェース。
// すべての操作はowner_idをクエリ条件に含め、所有者以外のタスクには触れない。
type TaskRepository interface {
	// ListByOwner は所有者の全タスクを返す。並び順は保証しない。
	ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error)

	// FindByOwner は所有者のタスクをIDで取得する。見つからない場合はnilを返す。
	FindByOwner(ctx context.Context, ownerID, taskID string) (*model.Task, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// UpdateByOwner は所有者のタスクに部分更新を適用し、更新後のタスクを返す。
	// nilフィールドは変更しない。対象が見つからない場合はnilを返す。
	UpdateByOwner(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error)

	// DeleteByOwner は所有者のタスクを削除する。削除した場合はtrueを返す。
	DeleteByOwner(ctx context.Context, ownerID, taskID string) (bool, error)
}
