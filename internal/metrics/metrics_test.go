package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は名前とラベルが一致するメトリクスを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestNewCollector_DoubleRegisterPanics は同一レジストリへの二重登録を検出することを検証する。
func TestNewCollector_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}

// TestRecordHTTPRequest はルート・ステータス別にカウントされることを検証する。
func TestRecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest("GET", "/api/tasks", 200, 10*time.Millisecond)
	c.RecordHTTPRequest("GET", "/api/tasks", 200, 20*time.Millisecond)
	c.RecordHTTPRequest("PUT", "/api/tasks/{id}", 400, time.Millisecond)

	m := findMetric(t, reg, "todoapp_http_requests_total", map[string]string{
		"method": "GET", "route": "/api/tasks", "status_code": "200",
	})
	if m == nil {
		t.Fatal("todoapp_http_requests_total{GET,/api/tasks,200} not found")
	}
	if v := m.GetCounter().GetValue(); v != 2 {
		t.Errorf("count = %v, want 2", v)
	}

	h := findMetric(t, reg, "todoapp_http_request_duration_seconds", map[string]string{
		"method": "GET", "route": "/api/tasks",
	})
	if h == nil {
		t.Fatal("latency histogram not found")
	}
	if n := h.GetHistogram().GetSampleCount(); n != 2 {
		t.Errorf("sample count = %d, want 2", n)
	}
}

// TestRecordAuthEvent は認証イベントが結果別に記録されることを検証する。
func TestRecordAuthEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthEvent("login", OutcomeFailure)
	c.RecordAuthEvent("login", OutcomeFailure)
	c.RecordAuthEvent("login", OutcomeSuccess)

	m := findMetric(t, reg, "todoapp_auth_events_total", map[string]string{"event": "login", "outcome": "failure"})
	if m == nil || m.GetCounter().GetValue() != 2 {
		t.Errorf("login failure metric = %v, want 2", m)
	}
}

// TestRecordTaskOperation はタスク操作が記録されることを検証する。
func TestRecordTaskOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTaskOperation("create", OutcomeSuccess)

	m := findMetric(t, reg, "todoapp_task_operations_total", map[string]string{"operation": "create", "outcome": "success"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("create metric = %v, want 1", m)
	}
}
