package sweep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowStart(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	lookback := 30 * time.Minute
	floor := now.Add(-lookback)

	tests := []struct {
		name          string
		lastChecked   time.Time
		hasCheckpoint bool
		want          time.Time
	}{
		{
			name: "no checkpoint uses the lookback floor",
			want: floor,
		},
		{
			name:          "fresh checkpoint wins over the floor",
			lastChecked:   now.Add(-10 * time.Minute),
			hasCheckpoint: true,
			want:          now.Add(-10 * time.Minute),
		},
		{
			name:          "stale checkpoint is clamped to the floor",
			lastChecked:   now.Add(-3 * time.Hour),
			hasCheckpoint: true,
			want:          floor,
		},
		{
			name:          "checkpoint exactly at the floor is clamped",
			lastChecked:   floor,
			hasCheckpoint: true,
			want:          floor,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := windowStart(tc.lastChecked, tc.hasCheckpoint, now, lookback)
			assert.Equal(t, tc.want, got)
			assert.False(t, got.Before(floor), "window must never open wider than the lookback")
		})
	}
}
