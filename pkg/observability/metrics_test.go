package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestObserveDecision(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveDecision("permission_denied", false, 25*time.Microsecond)
	m.ObserveDecision("granted", true, 10*time.Microsecond)
	m.ObserveDecision("granted", true, 12*time.Microsecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, `quizdeck_authz_decisions_total{granted="true",reason="granted"} 2`) {
		t.Errorf("granted counter missing or wrong:\n%s", body)
	}
	if !strings.Contains(body, `quizdeck_authz_decisions_total{granted="false",reason="permission_denied"} 1`) {
		t.Errorf("denied counter missing or wrong:\n%s", body)
	}
}

func TestHTTPMiddlewareRecordsRequests(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	handler := m.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	req := httptest.NewRequest(http.MethodPost, "/authz/check", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	m.Handler().ServeHTTP(metricsRec, metricsReq)

	if !strings.Contains(metricsRec.Body.String(), `status="403"`) {
		t.Error("expected 403 request to be recorded")
	}
}
