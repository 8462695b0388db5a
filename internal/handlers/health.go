package handlers

import (
	"net/http"
	"sort"
	"time"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/httpx"
	"github.com/areebabashir/intrnecommerceproj1/internal/services"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	system services.SystemService
	build  services.BuildInfo
	now    func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthSystemService enables dependency checks on /readyz.
func WithHealthSystemService(svc services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = svc
	}
}

// WithHealthBuildInfo sets the metadata reported by /healthz.
func WithHealthBuildInfo(info services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthClock injects a custom clock, primarily for tests.
func WithHealthClock(now func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHealthHandlers constructs the probe handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.now()
	}
	return h
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type readinessPayload struct {
	Status         string                        `json:"status"`
	Version        string                        `json:"version,omitempty"`
	CommitSHA      string                        `json:"commitSha,omitempty"`
	Environment    string                        `json:"environment,omitempty"`
	Uptime         string                        `json:"uptime"`
	GeneratedAt    string                        `json:"generatedAt"`
	ActiveSessions int                           `json:"activeSessions"`
	Checks         map[string]healthCheckPayload `json:"checks"`
	Details        []string                      `json:"details,omitempty"`
}

// Healthz reports liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	setNoStoreHeaders(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":      domain.HealthStatusOK,
		"version":     h.build.Version,
		"commitSha":   h.build.CommitSHA,
		"environment": h.build.Environment,
		"uptime":      now.Sub(h.build.StartedAt).Round(time.Second).String(),
		"timestamp":   now.Format(time.RFC3339),
	})
}

// Readyz runs the storage and catalog probes. Anything but ok answers 503.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		h.Healthz(w, r)
		return
	}
	report, err := h.system.HealthReport(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("health_unavailable", err.Error(), http.StatusServiceUnavailable))
		return
	}

	payload := readinessPayload{
		Status:         report.Status,
		Version:        report.Version,
		CommitSHA:      report.CommitSHA,
		Environment:    report.Environment,
		Uptime:         report.Uptime.Round(time.Second).String(),
		GeneratedAt:    formatTime(report.GeneratedAt),
		ActiveSessions: report.ActiveSessions,
		Checks:         make(map[string]healthCheckPayload, len(report.Checks)),
	}
	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check := report.Checks[name]
		payload.Checks[name] = healthCheckPayload{
			Status:    check.Status,
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
			CheckedAt: formatTime(check.CheckedAt),
		}
		if check.Status != domain.HealthStatusOK && check.Error != "" {
			payload.Details = append(payload.Details, name+": "+check.Error)
		}
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	setNoStoreHeaders(w)
	httpx.WriteJSON(w, status, payload)
}
