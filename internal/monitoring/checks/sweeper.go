package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/charlesng35/inspectd/internal/app/maintenance"
	"github.com/charlesng35/inspectd/internal/monitoring"
)

// SweepReporter exposes the last session sweep, e.g. *maintenance.Scheduler.
type SweepReporter interface {
	LastSweep() maintenance.SweepStatus
}

// Sweeper degrades when the last sweep failed or none finished within maxAge.
// maxAge is counted from start-up until the first sweep completes.
func Sweeper(reporter SweepReporter, maxAge time.Duration, now func() time.Time) monitoring.Check {
	if now == nil {
		now = time.Now
	}
	startedAt := now()

	return monitoring.NewCheck("session_sweeper", func(context.Context) monitoring.ProbeResult {
		if reporter == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "sweeper disabled"}
		}

		last := reporter.LastSweep()
		if last.Err != nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: last.Err.Error()}
		}

		reference := last.At
		if reference.IsZero() {
			reference = startedAt
		}
		if maxAge > 0 && now().Sub(reference) > maxAge {
			return monitoring.ProbeResult{
				Status:  monitoring.StatusDegraded,
				Details: fmt.Sprintf("no sweep since %s", reference.UTC().Format(time.RFC3339)),
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	})
}
