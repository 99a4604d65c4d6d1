package sweep

import "time"

// windowStart computes the fetch lower bound for one provider sweep. The
// window never looks back further than the lookback duration even when the
// checkpoint is stale, which bounds provider-side fetch cost. With no
// checkpoint the bound is simply now minus the lookback.
func windowStart(lastChecked time.Time, hasCheckpoint bool, now time.Time, lookback time.Duration) time.Time {
	floor := now.Add(-lookback)
	if hasCheckpoint && lastChecked.After(floor) {
		return lastChecked
	}
	return floor
}
