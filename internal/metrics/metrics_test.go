package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// counterValue はレジストリから指定ラベルのカウンタ値を取り出す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
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
			if matchLabels(m.GetLabel(), labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func matchLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	got := make(map[string]string, len(pairs))
	for _, p := range pairs {
		got[p.GetName()] = p.GetValue()
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
	if NewCollector(prometheus.NewRegistry()) == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordWebhook_CountsByKindAndOutcome はWebhook結果がラベル別に集計されることを検証する。
func TestRecordWebhook_CountsByKindAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordWebhook("mentee_matching", OutcomeSuccess, 20*time.Millisecond)
	c.RecordWebhook("mentee_matching", OutcomeSuccess, 30*time.Millisecond)
	c.RecordWebhook("mentee_matching", OutcomeDeliveryError, time.Second)

	if got := counterValue(t, reg, "mentwork_webhook_calls_total", map[string]string{"kind": "mentee_matching", "outcome": "success"}); got != 2 {
		t.Errorf("success = %v, want 2", got)
	}
	if got := counterValue(t, reg, "mentwork_webhook_calls_total", map[string]string{"kind": "mentee_matching", "outcome": "delivery_error"}); got != 1 {
		t.Errorf("delivery_error = %v, want 1", got)
	}
}

// TestRecordSagaAndGuard はフロー結果と登録拒否が集計されることを検証する。
func TestRecordSagaAndGuard(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSaga("register_and_connect", "failed")
	c.RecordGuardRejection("mentee")
	c.RecordGuardRejection("mentee")
	c.RecordMatching("degraded")
	c.RecordOrphansCompensated(3)
	c.RecordHTTPStatus(409)

	if got := counterValue(t, reg, "mentwork_saga_runs_total", map[string]string{"flow": "register_and_connect", "outcome": "failed"}); got != 1 {
		t.Errorf("saga failed = %v, want 1", got)
	}
	if got := counterValue(t, reg, "mentwork_registration_rejections_total", map[string]string{"kind": "mentee"}); got != 2 {
		t.Errorf("guard rejections = %v, want 2", got)
	}
	if got := counterValue(t, reg, "mentwork_matching_requests_total", map[string]string{"outcome": "degraded"}); got != 1 {
		t.Errorf("matching degraded = %v, want 1", got)
	}
	if got := counterValue(t, reg, "mentwork_orphan_mentees_compensated_total", nil); got != 3 {
		t.Errorf("orphans = %v, want 3", got)
	}
	if got := counterValue(t, reg, "mentwork_http_status_total", map[string]string{"status_code": "409"}); got != 1 {
		t.Errorf("http 409 = %v, want 1", got)
	}
}

// TestNop_ImplementsInterface はNopがMetricsCollectorを満たすことを検証する。
func TestNop_ImplementsInterface(t *testing.T) {
	var c MetricsCollector = Nop{}
	c.RecordWebhook("k", OutcomeSuccess, 0)
	c.RecordOrphansCompensated(1)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	NewCollector(reg1).RecordMatching("matches")
	c2 := NewCollector(reg2)
	c2.RecordMatching("matches")
	c2.RecordMatching("matches")

	if got := counterValue(t, reg1, "mentwork_matching_requests_total", map[string]string{"outcome": "matches"}); got != 1 {
		t.Errorf("reg1 = %v, want 1", got)
	}
	if got := counterValue(t, reg2, "mentwork_matching_requests_total", map[string]string{"outcome": "matches"}); got != 2 {
		t.Errorf("reg2 = %v, want 2", got)
	}
}

// TestSetupMetricsRoute_ServesMetrics は/metricsパスでメトリクスが返ることを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSaga("create_connection", "completed")

	w := httptest.NewRecorder()
	SetupMetricsRoute(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "mentwork_saga_runs_total") {
		t.Error("response should contain mentwork_saga_runs_total metric")
	}
}
