package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/todoapp/internal/auth"
	"github.com/hitoshi/todoapp/internal/metrics"
	"github.com/hitoshi/todoapp/internal/middleware"
	"github.com/hitoshi/todoapp/internal/model"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	List(ctx context.Context, uid auth.UserID) ([]model.Task, error)
	Create(ctx context.Context, uid auth.UserID, input model.TaskInput) (*model.Task, error)
	Update(ctx context.Context, uid auth.UserID, taskID string, patch model.TaskPatch) (*model.Task, error)
	Delete(ctx context.Context, uid auth.UserID, taskID string) error
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
	metrics metrics.MetricsCollector
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface, collector metrics.MetricsCollector) *TaskHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &TaskHandler{
		service: service,
		metrics: collector,
	}
}

// taskResponse はタスクのAPIレスポンス。
type taskResponse struct {
	ID          string  `json:"_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Deadline    *string `json:"deadline,omitempty"`
	Priority    string  `json:"priority"`
	Category    string  `json:"category"`
	IsCompleted bool    `json:"isCompleted"`
	CreatedAt   string  `json:"createdAt"`
}

func toTaskResponse(t model.Task) taskResponse {
	resp := taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Category:    t.Category,
		IsCompleted: t.IsCompleted,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.Deadline != nil {
		d := t.Deadline.UTC().Format(time.RFC3339)
		resp.Deadline = &d
	}
	return resp
}

// taskRequest は作成・更新リクエストのボディ。
// 省略されたフィールドはnil、deadlineのnullは期限削除を表す。
type taskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Deadline    json.RawMessage `json:"deadline"`
	Priority    *string         `json:"priority"`
	Category    *string         `json:"category"`
	IsCompleted *bool           `json:"isCompleted"`
}

// deadline はdeadlineフィールドを解釈する。
// 戻り値のclearがtrueの場合はnullまたは空文字が指定された。
func (req taskRequest) deadline() (value *time.Time, clear bool, err error) {
	raw := bytes.TrimSpace(req.Deadline)
	if len(raw) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(raw, []byte("null")) {
		return nil, true, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, model.NewValidationError("Deadline must be a date string")
	}
	if s == "" {
		return nil, true, nil
	}

	t, err := parseDeadline(s)
	if err != nil {
		return nil, false, err
	}
	return &t, false, nil
}

// parseDeadline はRFC 3339または日付のみ（UTCの0時）の文字列を解析する。
func parseDeadline(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, model.NewValidationError("Invalid deadline: " + s)
}

func decodeTaskRequest(w http.ResponseWriter, r *http.Request) (taskRequest, bool) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid request body"))
		return req, false
	}
	return req, true
}

// ListTasks は認証ユーザーの全タスクを返す。
// GET /api/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	uid, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	tasks, err := h.service.List(r.Context(), uid)
	h.metrics.RecordTaskOperation("list", outcomeOf(err))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, toTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateTask はタスクを作成する。
// POST /api/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	uid, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	req, ok := decodeTaskRequest(w, r)
	if !ok {
		return
	}

	deadline, _, err := req.deadline()
	if err != nil {
		h.metrics.RecordTaskOperation("create", metrics.OutcomeFailure)
		handleServiceError(w, err)
		return
	}

	input := model.TaskInput{
		Title:       deref(req.Title),
		Description: deref(req.Description),
		Deadline:    deadline,
		Priority:    model.Priority(deref(req.Priority)),
		Category:    deref(req.Category),
	}

	created, err := h.service.Create(r.Context(), uid, input)
	h.metrics.RecordTaskOperation("create", outcomeOf(err))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(*created))
}

// UpdateTask はタスクを部分更新する。
// 対象が存在しない場合は200でnullを返す。
// PUT /api/tasks/{id}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	uid, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	taskID := chi.URLParam(r, "id")

	req, ok := decodeTaskRequest(w, r)
	if !ok {
		return
	}

	deadline, clearDeadline, err := req.deadline()
	if err != nil {
		h.metrics.RecordTaskOperation("update", metrics.OutcomeFailure)
		handleServiceError(w, err)
		return
	}

	patch := model.TaskPatch{
		Title:         req.Title,
		Description:   req.Description,
		Deadline:      deadline,
		ClearDeadline: clearDeadline,
		Category:      req.Category,
		IsCompleted:   req.IsCompleted,
	}
	if req.Priority != nil {
		p := model.Priority(*req.Priority)
		patch.Priority = &p
	}

	updated, err := h.service.Update(r.Context(), uid, taskID, patch)
	if model.IsNotFound(err) {
		h.metrics.RecordTaskOperation("update", metrics.OutcomeFailure)
		writeJSON(w, http.StatusOK, nil)
		return
	}
	h.metrics.RecordTaskOperation("update", outcomeOf(err))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(*updated))
}

// DeleteTask はタスクを削除する。
// 対象が存在しない場合も同じレスポンスを返す。
// DELETE /api/tasks/{id}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	uid, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	taskID := chi.URLParam(r, "id")

	err = h.service.Delete(r.Context(), uid, taskID)
	if err != nil && !model.IsNotFound(err) {
		h.metrics.RecordTaskOperation("delete", metrics.OutcomeFailure)
		handleServiceError(w, err)
		return
	}
	h.metrics.RecordTaskOperation("delete", outcomeOf(err))

	writeJSON(w, http.StatusOK, messageResponse{Message: "Task deleted"})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
