package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	domain "github.com/areebabashir/intrnecommerceproj1/internal/domain"
)

var errNoDependencyChecks = errors.New("health repository: at least one dependency check is required")

// DependencyCheck is one readiness probe. A failing Optional probe degrades the report instead of
// failing it, which is how the storefront treats the upstream catalog.
type DependencyCheck struct {
	Name     string
	Timeout  time.Duration
	Optional bool
	Check    func(context.Context) error
}

// DependencyHealthOption customises NewDependencyHealthRepository.
type DependencyHealthOption func(*probeSet)

// WithDependencyTimeout sets the timeout for checks that do not declare their own.
func WithDependencyTimeout(timeout time.Duration) DependencyHealthOption {
	return func(p *probeSet) {
		if timeout > 0 {
			p.fallbackTimeout = timeout
		}
	}
}

// WithDependencyClock overrides the clock used for latency and timestamps.
func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(p *probeSet) {
		if clock != nil {
			p.clock = clock
		}
	}
}

type probeSet struct {
	checks          []DependencyCheck
	fallbackTimeout time.Duration
	clock           func() time.Time
}

var _ HealthRepository = (*probeSet)(nil)

// NewDependencyHealthRepository returns a HealthRepository that runs every check in parallel on Collect.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errNoDependencyChecks
	}
	seen := make(map[string]bool, len(checks))
	for i, check := range checks {
		name := strings.TrimSpace(check.Name)
		switch {
		case name == "":
			return nil, fmt.Errorf("health repository: check %d has no name", i)
		case seen[name]:
			return nil, fmt.Errorf("health repository: duplicate check %q", name)
		case check.Check == nil:
			return nil, fmt.Errorf("health repository: check %q has no probe function", name)
		}
		seen[name] = true
	}

	p := &probeSet{
		checks:          append([]DependencyCheck(nil), checks...),
		fallbackTimeout: 1500 * time.Millisecond,
		clock:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Collect never fails because of a probe; probe failures are reported inside the checks.
func (p *probeSet) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("health repository: context is required")
	}

	results := make([]domain.SystemHealthCheck, len(p.checks))
	var group errgroup.Group
	for i, check := range p.checks {
		group.Go(func() error {
			results[i] = p.probe(ctx, check)
			return nil
		})
	}
	_ = group.Wait()

	report := domain.SystemHealthReport{
		Status:      domain.HealthStatusOK,
		Checks:      make(map[string]domain.SystemHealthCheck, len(results)),
		GeneratedAt: p.clock(),
	}
	for i, check := range p.checks {
		result := results[i]
		report.Checks[check.Name] = result
		if result.Status == domain.HealthStatusOK {
			continue
		}
		if check.Optional {
			if report.Status == domain.HealthStatusOK {
				report.Status = domain.HealthStatusDegraded
			}
			continue
		}
		report.Status = domain.HealthStatusError
	}
	return report, nil
}

func (p *probeSet) probe(ctx context.Context, check DependencyCheck) domain.SystemHealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = p.fallbackTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := p.clock()
	err := check.Check(probeCtx)
	finished := p.clock()

	result := domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   finished.Sub(started),
		CheckedAt: finished,
	}
	if err != nil {
		result.Status = domain.HealthStatusError
		result.Detail = probeFailure(err)
		result.Error = err.Error()
	}
	return result
}

func probeFailure(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case IsNotFound(err):
		return "not_found"
	}
	return "unavailable"
}
