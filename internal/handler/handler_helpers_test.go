package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/todoapp/internal/auth"
	"github.com/hitoshi/todoapp/internal/middleware"
)

// withUserID はテスト用に認証済みユーザーIDをコンテキストに注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), auth.UserIDForTesting(userID))
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// recordingCollector は記録されたイベントを保持するMetricsCollector。
type recordingCollector struct {
	mu     sync.Mutex
	auth   []string
	taskOp []string
}

func (c *recordingCollector) RecordHTTPRequest(string, string, int, time.Duration) {}

func (c *recordingCollector) RecordAuthEvent(event, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = append(c.auth, event+":"+outcome)
}

func (c *recordingCollector) RecordTaskOperation(operation, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taskOp = append(c.taskOp, operation+":"+outcome)
}

// stubVerifier は固定の結果を返すTokenVerifier。
type stubVerifier struct {
	uid auth.UserID
	err error
}

func (s stubVerifier) Verify(context.Context, string) (auth.UserID, error) {
	return s.uid, s.err
}

var bearerAuth = middleware.NewBearerAuthMiddleware
