package download

import (
	"context"
	"time"
)

// Progress is a transient fetch sample.
type Progress struct {
	Percent         float64
	DownloadedBytes int64
	TotalBytes      int64
	Rate            float64
	ETA             time.Duration
}

// ProgressSink receives throttled samples for one job. Calls are serialized.
type ProgressSink func(ctx context.Context, p Progress)

// Throttle admits a sample only when at least Interval has passed since the
// last emission and the percent advanced by at least Delta. Emitted percents
// are therefore strictly increasing.
type Throttle struct {
	Interval time.Duration
	Delta    float64

	lastPercent float64
	lastAt      time.Time
	emitted     bool
}

// NewThrottle constructs a Throttle.
func NewThrottle(interval time.Duration, delta float64) *Throttle {
	return &Throttle{Interval: interval, Delta: delta}
}

// Allow reports whether p should be emitted at now and records the emission.
func (t *Throttle) Allow(p Progress, now time.Time) bool {
	if p.Percent < 0 {
		return false
	}
	if t.emitted && now.Sub(t.lastAt) < t.Interval {
		return false
	}
	if p.Percent < t.lastPercent+t.Delta {
		return false
	}
	t.lastPercent = p.Percent
	t.lastAt = now
	t.emitted = true
	return true
}

// Last returns the last emitted percent and whether anything was emitted.
func (t *Throttle) Last() (float64, bool) {
	return t.lastPercent, t.emitted
}
