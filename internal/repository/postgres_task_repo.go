package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/todoapp/internal/model"
)

// taskColumns はtasksテーブルからの取得カラム。scanTaskの順序と一致させる。
const taskColumns = `id, owner_id, title, description, deadline, priority, category, is_completed, created_at`

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
// すべてのクエリにowner_id条件を付与し、所有者によるデータ分離をSQLで強制する。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(s rowScanner) (*model.Task, error) {
	t := &model.Task{}
	var deadline sql.NullTime
	var priority string
	if err := s.Scan(
		&t.ID, &t.OwnerID, &t.Title, &t.Description, &deadline,
		&priority, &t.Category, &t.IsCompleted, &t.CreatedAt,
	); err != nil {
		return nil, err
	}
	t.Priority = model.Priority(priority)
	if deadline.Valid {
		d := deadline.Time
		t.Deadline = &d
	}
	return t, nil
}

// ListByOwner は所有者の全タスクを返す。並び順は保証しない。
func (r *PostgresTaskRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = $1`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("タスクのスキャンに失敗しました: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タスク一覧の読み込み中にエラーが発生しました: %w", err)
	}

	return tasks, nil
}

// FindByOwner は所有者のタスクをIDで取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByOwner(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND owner_id = $2`,
		taskID, ownerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	return t, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID, task.OwnerID, task.Title, task.Description, task.Deadline,
		string(task.Priority), task.Category, task.IsCompleted, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateByOwner は所有者のタスクに部分更新を1文のUPDATEで適用する。
// id、owner_id、created_atはSET句に含めない。
// 対象が見つからない場合はnilを返す。
func (r *PostgresTaskRepo) UpdateByOwner(ctx context.Context, ownerID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	if patch.IsEmpty() {
		return r.FindByOwner(ctx, ownerID, taskID)
	}

	setClause, args := buildTaskSetClause(patch, 3)
	query := `UPDATE tasks SET ` + setClause +
		` WHERE id = $1 AND owner_id = $2 RETURNING ` + taskColumns

	t, err := scanTask(r.db.QueryRowContext(ctx, query, append([]any{taskID, ownerID}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	return t, nil
}

// buildTaskSetClause はパッチで指定されたフィールドだけのSET句を組み立てる。
// プレースホルダは$startから採番する。
func buildTaskSetClause(patch model.TaskPatch, start int) (string, []any) {
	var sets []string
	var args []any
	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, start+len(args)))
		args = append(args, value)
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.ClearDeadline {
		sets = append(sets, "deadline = NULL")
	} else if patch.Deadline != nil {
		add("deadline", *patch.Deadline)
	}
	if patch.Priority != nil {
		add("priority", string(*patch.Priority))
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.IsCompleted != nil {
		add("is_completed", *patch.IsCompleted)
	}

	return strings.Join(sets, ", "), args
}

// DeleteByOwner は所有者のタスクを削除する。削除した場合はtrueを返す。
func (r *PostgresTaskRepo) DeleteByOwner(ctx context.Context, ownerID, taskID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND owner_id = $2`,
		taskID, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
