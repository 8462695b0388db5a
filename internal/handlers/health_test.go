package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
	"github.com/areebabashir/intrnecommerceproj1/internal/services"
)

type fakeHealthReporter struct {
	report services.SystemHealthReport
	err    error
}

func (f fakeHealthReporter) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return f.report, f.err
}

var _ services.SystemService = fakeHealthReporter{}

func TestHealthzReportsBuildAndUptime(t *testing.T) {
	started := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	h := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{Version: "2.4.1", CommitSHA: "9f1c0de", Environment: "stg", StartedAt: started}),
		WithHealthClock(func() time.Time { return started.Add(95 * time.Second) }),
	)

	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, domain.HealthStatusOK, body["status"])
	assert.Equal(t, "2.4.1", body["version"])
	assert.Equal(t, "9f1c0de", body["commitSha"])
	assert.Equal(t, "stg", body["environment"])
	assert.Equal(t, "1m35s", body["uptime"])
	assert.Equal(t, "2025-03-01T08:01:35Z", body["timestamp"])
}

type readyzBody struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"activeSessions"`
	Checks         map[string]struct {
		Status    string `json:"status"`
		LatencyMS int64  `json:"latencyMs"`
	} `json:"checks"`
	Details []string `json:"details"`
}

func TestReadyz(t *testing.T) {
	checkedAt := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		svc        services.SystemService
		wantStatus int
		check      func(t *testing.T, rr *httptest.ResponseRecorder)
	}{
		{
			name: "all dependencies ok",
			svc: fakeHealthReporter{report: services.SystemHealthReport{
				Status:         domain.HealthStatusOK,
				Uptime:         time.Hour,
				GeneratedAt:    checkedAt,
				ActiveSessions: 3,
				Checks: map[string]domain.SystemHealthCheck{
					"storage": {Status: domain.HealthStatusOK, Latency: 4 * time.Millisecond, CheckedAt: checkedAt},
					"catalog": {Status: domain.HealthStatusOK, Latency: 120 * time.Millisecond, CheckedAt: checkedAt},
				},
			}},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				var body readyzBody
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, domain.HealthStatusOK, body.Status)
				assert.Equal(t, 3, body.ActiveSessions)
				assert.Equal(t, int64(120), body.Checks["catalog"].LatencyMS)
				assert.Empty(t, body.Details)
			},
		},
		{
			name: "degraded catalog answers 503 with details",
			svc: fakeHealthReporter{report: services.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"storage": {Status: domain.HealthStatusOK},
					"catalog": {Status: domain.HealthStatusDegraded, Error: "upstream timeout"},
				},
			}},
			wantStatus: http.StatusServiceUnavailable,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				var body readyzBody
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, domain.HealthStatusDegraded, body.Status)
				assert.Equal(t, []string{"catalog: upstream timeout"}, body.Details)
			},
		},
		{
			name:       "report failure",
			svc:        fakeHealthReporter{err: errors.New("storage probe panicked")},
			wantStatus: http.StatusServiceUnavailable,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, "health_unavailable", body["error"])
			},
		},
		{
			name:       "no system service falls back to liveness",
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := []HealthOption{WithHealthClock(func() time.Time { return checkedAt })}
			if tc.svc != nil {
				opts = append(opts, WithHealthSystemService(tc.svc))
			}
			rr := httptest.NewRecorder()
			NewHealthHandlers(opts...).Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			require.Equal(t, tc.wantStatus, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
			if tc.check != nil {
				tc.check(t, rr)
			}
		})
	}
}
