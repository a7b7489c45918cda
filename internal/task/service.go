// Package task は認証済みユーザーが所有するタスクのCRUDを提供する。
package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/todoapp/internal/auth"
	"github.com/hitoshi/todoapp/internal/model"
	"github.com/hitoshi/todoapp/internal/repository"
	"github.com/hitoshi/todoapp/internal/security"
)

// Service はタスクに関するビジネスロジックを提供する。
// すべての操作は所有者で絞り込まれ、他ユーザーのタスクは存在しないものとして扱う。
type Service struct {
	repo   repository.TaskRepository
	markup security.MarkupDetector
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.TaskRepository, markup security.MarkupDetector) *Service {
	return &Service{
		repo:   repo,
		markup: markup,
		now:    time.Now,
	}
}

// List はユーザーの全タスクを返す。並び順は保証しない。
func (s *Service) List(ctx context.Context, uid auth.UserID) ([]model.Task, error) {
	tasks, err := s.repo.ListByOwner(ctx, uid.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Create はタスクを作成する。IDと作成日時はサーバー側で採番する。
func (s *Service) Create(ctx context.Context, uid auth.UserID, input model.TaskInput) (*model.Task, error) {
	input = input.Normalize()

	if strings.TrimSpace(input.Title) == "" {
		return nil, model.NewValidationError("Title is required")
	}
	if !input.Priority.Valid() {
		return nil, invalidPriority(input.Priority)
	}
	if err := s.checkText(input.Title, input.Description, input.Category); err != nil {
		return nil, err
	}

	category := input.Category
	if strings.TrimSpace(category) == "" {
		category = model.DefaultCategory
	}

	task := &model.Task{
		ID:          uuid.New().String(),
		OwnerID:     uid.String(),
		Title:       input.Title,
		Description: input.Description,
		Deadline:    input.Deadline,
		Priority:    input.Priority,
		Category:    category,
		IsCompleted: false,
		CreatedAt:   s.now(),
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// Update は指定されたフィールドだけを既存タスクにマージする。
// 所有するタスクが見つからない場合はTASK_NOT_FOUNDを返す。
func (s *Service) Update(ctx context.Context, uid auth.UserID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	if !isTaskID(taskID) {
		return nil, model.NewTaskNotFoundError(taskID)
	}

	patch, err := s.cleanPatch(patch)
	if err != nil {
		return nil, err
	}

	task, err := s.repo.UpdateByOwner(ctx, uid.String(), taskID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	return task, nil
}

// Delete は所有するタスクを削除する。
func (s *Service) Delete(ctx context.Context, uid auth.UserID, taskID string) error {
	if !isTaskID(taskID) {
		return model.NewTaskNotFoundError(taskID)
	}

	deleted, err := s.repo.DeleteByOwner(ctx, uid.String(), taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if !deleted {
		return model.NewTaskNotFoundError(taskID)
	}
	return nil
}

// cleanPatch はパッチで指定された値を検証する。テキストは書き換えない。
func (s *Service) cleanPatch(patch model.TaskPatch) (model.TaskPatch, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return patch, model.NewValidationError("Title must not be empty")
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return patch, invalidPriority(*patch.Priority)
	}
	if err := s.checkText(deref(patch.Title), deref(patch.Description), deref(patch.Category)); err != nil {
		return patch, err
	}
	if patch.Category != nil && strings.TrimSpace(*patch.Category) == "" {
		category := model.DefaultCategory
		patch.Category = &category
	}
	return patch, nil
}

// checkText はHTMLマークアップを含むテキストを拒否する。
func (s *Service) checkText(title, description, category string) error {
	fields := []struct {
		name, value string
	}{
		{"Title", title},
		{"Description", description},
		{"Category", category},
	}
	for _, f := range fields {
		if s.markup.ContainsMarkup(f.value) {
			return model.NewValidationError(f.name + " must not contain HTML markup")
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func invalidPriority(p model.Priority) *model.APIError {
	return model.NewValidationError(fmt.Sprintf("Priority must be one of Low, Medium, High (got %q)", string(p)))
}

// isTaskID はIDがUUID形式かを返す。形式外のIDはストアに問い合わせず未検出とする。
func isTaskID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
