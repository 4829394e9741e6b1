package monitor

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// AnomalyDetector is the caller-supplied heuristic consulted on every
// refresh attempt. A suspicious observation yields the indicator list to
// attach to the event.
type AnomalyDetector interface {
	ObserveRefreshAttempt(now time.Time) (indicators []string, suspicious bool)
}

// RefreshStormDetector flags refresh attempts exceeding a threshold within
// a sliding window. The token-bucket limiter holds the window: attempts
// beyond the burst drain faster than the refill rate and trip it.
type RefreshStormDetector struct {
	limiter *rate.Limiter
	max     int
	window  time.Duration
}

func NewRefreshStormDetector(maxAttempts int, window time.Duration) *RefreshStormDetector {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = time.Minute
	}

	return &RefreshStormDetector{
		limiter: rate.NewLimiter(rate.Every(window/time.Duration(maxAttempts)), maxAttempts),
		max:     maxAttempts,
		window:  window,
	}
}

func (d *RefreshStormDetector) ObserveRefreshAttempt(now time.Time) ([]string, bool) {
	if d.limiter.AllowN(now, 1) {
		return nil, false
	}

	indicator := fmt.Sprintf("more than %d refresh attempts within %s", d.max, d.window)
	return []string{indicator}, true
}
