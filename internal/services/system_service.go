package services

import (
	"cmp"
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
	"github.com/areebabashir/intrnecommerceproj1/internal/repositories"
)

var errHealthRepositoryRequired = errors.New("system service: health repository is required")

// BuildInfo is the release metadata echoed by /healthz and /readyz.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SessionCounter reports resident shopper sessions. *SessionRegistry satisfies it.
type SessionCounter interface {
	Len() int
}

type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Sessions         SessionCounter
	Clock            func() time.Time
	Build            BuildInfo
}

// readiness combines dependency probes with process facts the probes cannot see.
type readiness struct {
	probes   repositories.HealthRepository
	sessions SessionCounter
	now      func() time.Time
	build    BuildInfo
}

var _ SystemService = (*readiness)(nil)

func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errHealthRepositoryRequired
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	r := &readiness{
		probes:   deps.HealthRepository,
		sessions: deps.Sessions,
		now:      func() time.Time { return now().UTC() },
		build:    deps.Build,
	}
	if r.build.StartedAt.IsZero() {
		r.build.StartedAt = r.now()
	}
	return r, nil
}

// HealthReport runs the probes and fills in whatever the probe result left blank.
func (r *readiness) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	report, err := r.probes.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}
	r.stamp(&report)
	return report, nil
}

func (r *readiness) stamp(report *SystemHealthReport) {
	now := r.now()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	}
	report.GeneratedAt = report.GeneratedAt.UTC()
	report.Version = cmp.Or(report.Version, r.build.Version)
	report.CommitSHA = cmp.Or(report.CommitSHA, r.build.CommitSHA)
	report.Environment = cmp.Or(report.Environment, r.build.Environment)
	if report.Uptime <= 0 {
		report.Uptime = now.Sub(r.build.StartedAt)
	}
	if r.sessions != nil {
		report.ActiveSessions = r.sessions.Len()
	}
	if report.Checks == nil {
		report.Checks = map[string]domain.SystemHealthCheck{}
	}
	if strings.TrimSpace(report.Status) == "" {
		report.Status = overallStatus(report.Checks)
	}
}

// overallStatus: any error wins, then any status other than ok makes the report degraded.
func overallStatus(checks map[string]domain.SystemHealthCheck) string {
	degraded := false
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusError:
			return domain.HealthStatusError
		case domain.HealthStatusOK, "":
		default:
			degraded = true
		}
	}
	if degraded {
		return domain.HealthStatusDegraded
	}
	return domain.HealthStatusOK
}
