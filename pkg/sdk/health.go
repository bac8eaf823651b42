package docingest

import (
	"context"
	"fmt"
	"time"

	healthuc "github.com/kailas-cloud/docingest/internal/usecase/health"
)

// HealthChecker is implemented by providers that can report their own reachability.
// Object stores, summarizers and embedders that implement it are included in Health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthStatus is the aggregated state of the client's dependencies.
type HealthStatus struct {
	// Status is "ok", "degraded" (an optional provider fails) or "error" (the database fails).
	Status string
	// Checks maps a component ("database", "object_store", "summarizer", "embedding") to "ok" or "error".
	Checks map[string]string
}

// Healthy reports whether every component passed.
func (h HealthStatus) Healthy() bool { return h.Status == string(healthuc.Healthy) }

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Health checks the database and every provider implementing HealthChecker.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.healthSvc.Check(ctx)

	var err error
	if report.Status != healthuc.Healthy {
		err = fmt.Errorf("health %s", report.Status)
	}
	c.obs.observe("health", start, err)

	out := HealthStatus{Status: string(report.Status), Checks: make(map[string]string, len(report.Checks))}
	for name, res := range report.Checks {
		out.Checks[name] = string(res)
	}
	return out
}

func newHealthService(pinger healthuc.DBPinger, providers map[string]any) *healthuc.Service {
	svc := healthuc.New(pinger)
	for name, p := range providers {
		if hc, ok := p.(HealthChecker); ok {
			svc.With(name, hc)
		}
	}
	return svc
}
