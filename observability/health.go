package observability

import (
	"context"
	"fmt"
	"sync"
)

// HealthStatus is the state of a component or of the whole service.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

// severity orders statuses so the worst component decides the service status.
func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusDown:
		return 2
	case HealthStatusDegraded:
		return 1
	default:
		return 0
	}
}

// Health is one component's report.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ServiceHealth aggregates component reports. It is the /health body.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// HealthChecker reports the health of one component.
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func(ctx context.Context) Health

func (f CheckerFunc) CheckHealth(ctx context.Context) Health { return f(ctx) }

// NewServiceHealth returns an up report without components.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{Service: service, Status: HealthStatusUp, Version: version}
}

// Check runs the checkers concurrently. Components are reported in checker
// order; a checker that panics is reported down.
func Check(ctx context.Context, service, version string, checkers ...HealthChecker) *ServiceHealth {
	results := make([]Health, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runCheck(ctx, i, c)
		}()
	}
	wg.Wait()

	sh := NewServiceHealth(service, version)
	for _, h := range results {
		sh.AddComponent(h)
	}
	return sh
}

func runCheck(ctx context.Context, i int, c HealthChecker) (h Health) {
	defer func() {
		if r := recover(); r != nil {
			h = Health{
				Name:    fmt.Sprintf("checker-%d", i),
				Status:  HealthStatusDown,
				Message: fmt.Sprintf("health check panicked: %v", r),
			}
		}
	}()
	h = c.CheckHealth(ctx)
	if h.Status == "" {
		h.Status = HealthStatusUp
	}
	return h
}

// AddComponent appends a report. The service status only ever worsens.
func (sh *ServiceHealth) AddComponent(h Health) {
	sh.Components = append(sh.Components, h)
	if h.Status.severity() > sh.Status.severity() {
		sh.Status = h.Status
	}
}
