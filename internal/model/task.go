// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Priority はタスクの優先度を表す。
type Priority string

const (
	// PriorityLow は低優先度。
	PriorityLow Priority = "Low"
	// PriorityMedium は中優先度。未指定時のデフォルト。
	PriorityMedium Priority = "Medium"
	// PriorityHigh は高優先度。
	PriorityHigh Priority = "High"
)

// Valid は優先度が定義済みの3値のいずれかであるかを返す。
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// DefaultCategory はカテゴリ未指定時に設定されるカテゴリ。
const DefaultCategory = "General"

// Categories はクライアントが選択肢として提示するカテゴリ一覧。
// カテゴリ自体は自由入力の文字列であり、この一覧外の値も保存できる。
var Categories = []string{"Work", "Personal", "Study", "Health", "Others", "General"}

// Task はユーザーが所有するタスクを表す。
// OwnerIDは作成時に確定し、以後変更されない。
type Task struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Deadline    *time.Time
	Priority    Priority
	Category    string
	IsCompleted bool
	CreatedAt   time.Time
}

// TaskInput はタスク作成時にクライアントが指定できる項目。
// ID、OwnerID、CreatedAt、IsCompletedはサーバー側で決定する。
type TaskInput struct {
	Title       string
	Description string
	Deadline    *time.Time
	Priority    Priority
	Category    string
}

// Normalize はデフォルト値を補完したTaskInputを返す。
func (in TaskInput) Normalize() TaskInput {
	out := in
	if out.Priority == "" {
		out.Priority = PriorityMedium
	}
	if strings.TrimSpace(out.Category) == "" {
		out.Category = DefaultCategory
	}
	return out
}

// TaskPatch はタスクの部分更新内容を表す。
// nilフィールドは変更せず、既存の値を維持する。
// ID、OwnerID、CreatedAtは更新対象に含めない。
type TaskPatch struct {
	Title       *string
	Description *string
	Deadline    *time.Time
	// ClearDeadline がtrueの場合は期限を削除する。Deadlineより優先する。
	ClearDeadline bool
	Priority      *Priority
	Category      *string
	IsCompleted   *bool
}

// IsEmpty は更新対象のフィールドが1つも指定されていないかを返す。
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil &&
		p.Description == nil &&
		p.Deadline == nil &&
		!p.ClearDeadline &&
		p.Priority == nil &&
		p.Category == nil &&
		p.IsCompleted == nil
}

// ApplyTo はパッチの内容をタスクにマージする。
func (p TaskPatch) ApplyTo(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.ClearDeadline {
		t.Deadline = nil
	} else if p.Deadline != nil {
		d := *p.Deadline
		t.Deadline = &d
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.IsCompleted != nil {
		t.IsCompleted = *p.IsCompleted
	}
}
