package observability

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAuthzDecision(true, "owner")
	m.RecordAuthzDecision(false, "no_membership")
	m.RecordAuthzDecision(false, "no_membership")
	m.RecordQuotaDenial("workspaces", "base")
	m.RecordInvitationEvent("invited")
	m.RecordNotificationFailure("smtp")
	m.RecordGeneration("ok", "user", 150*time.Millisecond)
	m.RecordRateLimited("memory")
	m.RecordDBStats(sql.DBStats{OpenConnections: 4, InUse: 1, Idle: 3})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("allow", "owner")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("deny", "no_membership")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuotaDenialsTotal.WithLabelValues("workspaces", "base")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvitationEventsTotal.WithLabelValues("invited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationFailuresTotal.WithLabelValues("smtp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationRequestsTotal.WithLabelValues("ok", "user")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal.WithLabelValues("memory")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.DBConnectionsOpen))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DBConnectionsIdle))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAuthzDecision(true, "owner")
		m.RecordQuotaDenial("members", "pro")
		m.RecordInvitationEvent("accepted")
		m.RecordNotificationFailure("log")
		m.RecordGeneration("error", "system", time.Second)
		m.RecordRateLimited("redis")
		m.RecordDBStats(sql.DBStats{})
	})
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/workspaces/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("{}"))
	}).Methods("GET")

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/workspaces/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/workspaces/{id}", "404")))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.RecordQuotaDenial("workspaces", "base")

	serveMux := http.NewServeMux()
	RegisterMetricsEndpoint(serveMux, registry)

	rec := httptest.NewRecorder()
	serveMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `inkwell_quota_denials_total{resource="workspaces",tier="base"} 1`)
}
