package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/todoapp/internal/model"
)

// ErrTaskNotFound は更新対象のタスクが見つからなかった場合に返される。
var ErrTaskNotFound = errors.New("task not found")

// APIError はサーバーが2xx以外を返した場合のエラー。
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d [%s]: %s", e.Status, e.Code, e.Message)
}

// IsAuthError はトークンの再取得が必要なエラーかを返す。
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == model.ErrCodeUnauthenticated || apiErr.Code == model.ErrCodeInvalidToken
}

// Client はTodo APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	now        func() time.Time
}

// NewClient はClientを生成する。
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register はユーザーを登録する。
func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.do(ctx, http.MethodPost, "/api/register", Session{}, credentials{email, password}, nil)
}

// Login はトークンを取得してSessionを返す。
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var resp struct {
		Token string `json:"token"`
		Email string `json:"email"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/login", Session{}, credentials{email, password}, &resp); err != nil {
		return Session{}, err
	}
	if resp.Token == "" {
		return Session{}, fmt.Errorf("login response did not contain a token")
	}
	return Session{Token: resp.Token, Email: resp.Email}, nil
}

// Logout はサーバー側でトークンを失効させる。
func (c *Client) Logout(ctx context.Context, s Session) error {
	return c.do(ctx, http.MethodPost, "/api/logout", s, nil, nil)
}

// ListTasks は所有する全タスクを取得する。
func (c *Client) ListTasks(ctx context.Context, s Session) ([]model.Task, error) {
	var resp []wireTask
	if err := c.do(ctx, http.MethodGet, "/api/tasks", s, nil, &resp); err != nil {
		return nil, err
	}
	tasks := make([]model.Task, 0, len(resp))
	for _, w := range resp {
		tasks = append(tasks, w.toModel())
	}
	return tasks, nil
}

// CreateTask はタスクを作成する。
func (c *Client) CreateTask(ctx context.Context, s Session, input model.TaskInput) (*model.Task, error) {
	body := map[string]any{"title": input.Title}
	if input.Description != "" {
		body["description"] = input.Description
	}
	if input.Deadline != nil {
		body["deadline"] = input.Deadline.Format(time.RFC3339)
	}
	if input.Priority != "" {
		body["priority"] = input.Priority
	}
	if input.Category != "" {
		body["category"] = input.Category
	}

	var resp wireTask
	if err := c.do(ctx, http.MethodPost, "/api/tasks", s, body, &resp); err != nil {
		return nil, err
	}
	t := resp.toModel()
	return &t, nil
}

// UpdateTask はpatchで指定したフィールドだけを送信する。
// サーバーがnullを返した場合はErrTaskNotFoundを返す。
func (c *Client) UpdateTask(ctx context.Context, s Session, taskID string, patch model.TaskPatch) (*model.Task, error) {
	body := patchBody(patch)

	var resp *wireTask
	if err := c.do(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(taskID), s, body, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrTaskNotFound
	}
	t := resp.toModel()
	return &t, nil
}

// SetCompleted は完了状態だけを更新する。
func (c *Client) SetCompleted(ctx context.Context, s Session, taskID string, done bool) (*model.Task, error) {
	return c.UpdateTask(ctx, s, taskID, model.TaskPatch{IsCompleted: &done})
}

// DeleteTask はタスクを削除する。
func (c *Client) DeleteTask(ctx context.Context, s Session, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(taskID), s, nil, nil)
}

func patchBody(p model.TaskPatch) map[string]any {
	body := map[string]any{}
	if p.Title != nil {
		body["title"] = *p.Title
	}
	if p.Description != nil {
		body["description"] = *p.Description
	}
	if p.ClearDeadline {
		body["deadline"] = nil
	} else if p.Deadline != nil {
		body["deadline"] = p.Deadline.Format(time.RFC3339)
	}
	if p.Priority != nil {
		body["priority"] = *p.Priority
	}
	if p.Category != nil {
		body["category"] = *p.Category
	}
	if p.IsCompleted != nil {
		body["isCompleted"] = *p.IsCompleted
	}
	return body
}

// do はJSONリクエストを送信し、2xxならoutにデコードする。
func (c *Client) do(ctx context.Context, method, path string, s Session, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !s.IsZero() {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("APIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

func decodeAPIError(status int, data []byte) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		return &APIError{Status: status, Message: http.StatusText(status)}
	}
	return &APIError{Status: status, Code: body.Code, Message: body.Message}
}

// wireTask はAPIのタスク表現。日時は解析できなくてもエラーにしない。
type wireTask struct {
	ID          string          `json:"_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Deadline    json.RawMessage `json:"deadline"`
	Priority    string          `json:"priority"`
	Category    string          `json:"category"`
	IsCompleted bool            `json:"isCompleted"`
	CreatedAt   json.RawMessage `json:"createdAt"`
}

func (w wireTask) toModel() model.Task {
	t := model.Task{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		Deadline:    lenientTime(w.Deadline),
		Priority:    model.Priority(w.Priority),
		Category:    w.Category,
		IsCompleted: w.IsCompleted,
	}
	if created := lenientTime(w.CreatedAt); created != nil {
		t.CreatedAt = *created
	}
	return t
}

// lenientTime はRFC 3339または日付のみの文字列を解析する。
// null、空、解析不能な値はnilを返す。
func lenientTime(raw json.RawMessage) *time.Time {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil || s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
