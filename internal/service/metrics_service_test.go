package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/busca-ativa-api/internal/models"
)

func gatherCounter(t *testing.T, m *MetricsService, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok {
			if want != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}

func TestMetricsServiceDomainCounters(t *testing.T) {
	m := NewMetricsService()

	m.RecordActionCreated(models.ActionAttempt1)
	m.RecordActionCreated(models.ActionAttempt1)
	m.RecordRejection("INVALID_TRANSITION")
	m.RecordDeletion(true)
	m.RecordDeletion(false)
	m.RecordEventPublished(models.RecordOccurrence, "local")
	m.RecordEventFailure()

	assert.Equal(t, 2.0, gatherCounter(t, m, "absence_actions_created_total", map[string]string{"action_type": "tentativa_1"}))
	assert.Equal(t, 1.0, gatherCounter(t, m, "absence_actions_rejected_total", map[string]string{"reason": "INVALID_TRANSITION"}))
	assert.Equal(t, 1.0, gatherCounter(t, m, "absence_actions_deleted_total", map[string]string{"mode": "cascade"}))
	assert.Equal(t, 1.0, gatherCounter(t, m, "absence_actions_deleted_total", map[string]string{"mode": "single"}))
	assert.Equal(t, 1.0, gatherCounter(t, m, "record_events_published_total", map[string]string{"transport": "local"}))
	assert.Equal(t, 1.0, gatherCounter(t, m, "record_events_failed_total", nil))
}

func TestMetricsServiceRequestsAndSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/students/:id", http.StatusOK, 5*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.Requests)
	assert.InDelta(t, 1.0/3.0, snap.CacheHitRatio, 0.001)
	assert.Positive(t, snap.Goroutines)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/api/v1/students/:id",status="200"} 1`)
}

func TestMetricsServiceNilIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	m.RecordActionCreated(models.ActionAnalysis)
	m.SetSubscribers(3)
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
