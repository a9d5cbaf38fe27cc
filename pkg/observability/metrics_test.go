package observability

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.LoginsTotal.WithLabelValues(LoginOutcomeSuccess).Inc()
	m.LoginsTotal.WithLabelValues(LoginOutcomeWrongCredentials).Inc()
	m.RegistrationsTotal.Inc()
	m.EmailsSentTotal.WithLabelValues("verification", "sent").Inc()
	m.SessionRevocationsTotal.WithLabelValues("logout").Inc()

	if got := testutil.CollectAndCount(m.LoginsTotal); got != 2 {
		t.Errorf("Expected 2 login series, got %d", got)
	}
	if got := testutil.ToFloat64(m.LoginsTotal.WithLabelValues(LoginOutcomeSuccess)); got != 1 {
		t.Errorf("Expected 1 successful login, got %v", got)
	}
	if got := testutil.ToFloat64(m.RegistrationsTotal); got != 1 {
		t.Errorf("Expected 1 registration, got %v", got)
	}
	if got := testutil.ToFloat64(m.EmailsSentTotal.WithLabelValues("verification", "sent")); got != 1 {
		t.Errorf("Expected 1 sent email, got %v", got)
	}
}

func TestNewMetricsDuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	defer func() {
		if recover() == nil {
			t.Error("Expected second registration on the same registry to panic")
		}
	}()
	NewMetrics(registry)
}

func TestUpdateDBStats(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.UpdateDBStats(sql.DBStats{
		OpenConnections: 7,
		InUse:           3,
		Idle:            4,
	})

	if got := testutil.ToFloat64(m.DBConnectionsOpen); got != 7 {
		t.Errorf("Expected 7 open connections, got %v", got)
	}
	if got := testutil.ToFloat64(m.DBConnectionsInUse); got != 3 {
		t.Errorf("Expected 3 connections in use, got %v", got)
	}
	if got := testutil.ToFloat64(m.DBConnectionsIdle); got != 4 {
		t.Errorf("Expected 4 idle connections, got %v", got)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/posts/{post_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"success"}`))
	}).Methods(http.MethodGet)

	req := httptest.NewRequest(http.MethodGet, "/posts/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	// The route label must be the template, not the raw path.
	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/posts/{post_id}", "200"))
	if got != 1 {
		t.Errorf("Expected 1 request recorded for the route template, got %v", got)
	}

	if got := testutil.CollectAndCount(m.HTTPRequestDuration); got != 1 {
		t.Errorf("Expected 1 duration series, got %d", got)
	}
	if got := testutil.CollectAndCount(m.HTTPResponseSize); got != 1 {
		t.Errorf("Expected 1 response size series, got %d", got)
	}
}

func TestHTTPMetricsMiddlewareCapturesStatus(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/missing", "404"))
	if got != 1 {
		t.Errorf("Expected a 404 to be recorded, got %v", got)
	}
}

func TestHTTPMetricsMiddlewareUnmatchedRoute(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	// Outside a mux router there is no matched route.
	handler := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/whatever/1/2/3", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "200"))
	if got != 1 {
		t.Errorf("Expected request counted under the unmatched label, got %v", got)
	}
}

func TestHTTPMetricsMiddlewareRequestSize(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPost)

	body := strings.NewReader(`{"content":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/echo", body)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.CollectAndCount(m.HTTPRequestSize); got != 1 {
		t.Errorf("Expected 1 request size series, got %d", got)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.RegistrationsTotal.Inc()

	opsMux := http.NewServeMux()
	RegisterMetricsEndpoint(opsMux, registry)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	opsMux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "quill_registrations_total 1") {
		t.Error("Expected scrape output to contain quill_registrations_total")
	}
}
