// Package health aggregates component health checks for the readiness endpoint.
package health

import "context"

// StoragePinger checks storage availability.
type StoragePinger interface {
	Ping(ctx context.Context) error
}

// WebhookChecker checks webhook endpoint reachability.
type WebhookChecker interface {
	HealthCheck(ctx context.Context) error
}

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	storage StoragePinger
	webhook WebhookChecker
}

// New creates a Service. webhook can be nil.
func New(storage StoragePinger, webhook WebhookChecker) *Service {
	return &Service{storage: storage, webhook: webhook}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.storage.Ping(ctx); err != nil {
		checks["storage"] = CheckError
	} else {
		checks["storage"] = CheckOK
	}

	if s.webhook != nil {
		if err := s.webhook.HealthCheck(ctx); err != nil {
			checks["webhook"] = CheckError
		} else {
			checks["webhook"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
