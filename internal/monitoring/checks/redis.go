package checks

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/charlesng35/inspectd/internal/monitoring"
)

// RedisPinger is the part of redis.UniversalClient the probe needs.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Redis probes the lock and rate-limit backend. A nil client means Redis is
// disabled and reports up. Redis only guards optional features, so a failed
// ping degrades instead of failing readiness.
func Redis(client RedisPinger, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if client == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "redis disabled"}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout))
		defer cancel()

		result := monitoring.ResultFromError(client.Ping(probeCtx).Err(), time.Since(start))
		if result.Status == monitoring.StatusDown {
			result.Status = monitoring.StatusDegraded
		}
		return result
	})
}
