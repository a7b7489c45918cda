package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/todoapp/internal/auth"
)

// newTestRouter は本番と同じ順序でミドルウェアを組んだchi.Routerを返す。
func newTestRouter(logger *slog.Logger, collector *mockCollector, verifier TokenVerifier) chi.Router {
	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(logger))
	r.Use(NewMetricsMiddleware(collector))
	r.Use(NewRecoveryMiddleware())
	r.Use(NewCORSMiddleware("*"))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	r.Group(func(r chi.Router) {
		r.Use(NewBearerAuthMiddleware(verifier))
		r.Get("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
			owner := ""
			if uid, err := UserIDFromContext(r.Context()); err == nil {
				owner = uid.String()
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"owner": owner})
		})
	})
	return r
}

// TestRouterIntegration_ProtectedRoute はBearer認証を通過したリクエストが
// ログとメトリクスの両方に記録されることを検証する。
func TestRouterIntegration_ProtectedRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	collector := &mockCollector{}
	verifier := &mockVerifier{uid: auth.UserIDForTesting("user-router")}

	r := newTestRouter(logger, collector, verifier)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer token-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["owner"] != "user-router" {
		t.Errorf("owner = %q, want %q", body["owner"], "user-router")
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v\nraw: %s", err, buf.String())
	}
	if entry["user_id"] != "user-router" {
		t.Errorf("logged user_id = %v, want user-router", entry["user_id"])
	}

	if len(collector.requests) != 1 || collector.requests[0].route != "/api/tasks" {
		t.Errorf("metrics = %+v, want one /api/tasks entry", collector.requests)
	}
}

// TestRouterIntegration_ProtectedRoute_NoToken は認証なしで401となり、
// 公開ルートは影響を受けないことを検証する。
func TestRouterIntegration_ProtectedRoute_NoToken(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	r := newTestRouter(logger, &mockCollector{}, &mockVerifier{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/health status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestRouterIntegration_PanicRecovered はpanicが500の統一レスポンスになり、
// アクセスログにも500として残ることを検証する。
func TestRouterIntegration_PanicRecovered(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	collector := &mockCollector{}
	r := newTestRouter(logger, collector, &mockVerifier{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := decodeErrorBody(t, w)
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
	if len(collector.requests) != 1 || collector.requests[0].status != http.StatusInternalServerError {
		t.Errorf("metrics = %+v, want one 500 entry", collector.requests)
	}
}

// TestRouterIntegration_Preflight はOPTIONSプリフライトが認証前に204で返ることを検証する。
func TestRouterIntegration_Preflight(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	r := newTestRouter(logger, &mockCollector{}, &mockVerifier{})

	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}
