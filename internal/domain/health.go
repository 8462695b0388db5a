package domain

import "time"

// Readiness states, from best to worst. A degraded storefront still serves carts but the catalog
// may be showing placeholders.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck is the outcome of one probe (storage or catalog).
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport is what /readyz renders.
type SystemHealthReport struct {
	Status string
	Checks map[string]SystemHealthCheck

	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time

	// ActiveSessions counts shopper sessions resident in this process.
	ActiveSessions int
}
