package jobs

import (
	"time"

	"github.com/dmarrero/fanlink-backend/pkg/enums"
)

var defaultBackoff = []time.Duration{2 * time.Second, 10 * time.Second, 30 * time.Second}

// Mail delivery talks to an external provider, so its retries are spaced
// wider to ride out provider-side throttling.
var backoffByKind = map[enums.JobKind][]time.Duration{
	enums.JobMailDelivery: {5 * time.Second, 30 * time.Second, 2 * time.Minute},
}

// backoffDelay returns the wait before the next attempt given how many
// attempts have already completed. Attempts past the end of the schedule
// reuse the last step.
func backoffDelay(kind enums.JobKind, completedAttempts int) time.Duration {
	schedule := defaultBackoff
	if override, ok := backoffByKind[kind]; ok && len(override) > 0 {
		schedule = override
	}
	if completedAttempts < 1 {
		completedAttempts = 1
	}
	idx := completedAttempts - 1
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return schedule[idx]
}
