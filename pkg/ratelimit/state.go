// Package ratelimit implements adaptive request pacing shared by every caller
// of one endpoint class. A single pacing cursor (the next allowed request time)
// spaces out permitted calls across all goroutines, and server back-off
// signals move that cursor and the interval for everyone at once.
package ratelimit

import (
	"time"
)

// DecayFactor is applied to an inflated interval on every successful call.
const DecayFactor = 0.9

// State is a point-in-time copy of a limiter's pacing state.
// It is never shared with the limiter; mutate the limiter through its methods.
type State struct {
	// Name identifies the endpoint class the limiter paces (e.g. "list", "detail").
	Name string `json:"name"`

	// BaseInterval is the configured minimum spacing between calls.
	BaseInterval time.Duration `json:"base_interval"`

	// CurrentInterval is the spacing in effect now. Always >= BaseInterval.
	CurrentInterval time.Duration `json:"current_interval"`

	// NextAllowedAt is the pacing cursor: no call is granted before it.
	NextAllowedAt time.Time `json:"next_allowed_at"`
}

// IsThrottled returns true if the current interval is inflated above base.
func (s State) IsThrottled() bool {
	return s.CurrentInterval > s.BaseInterval
}

// TimeUntilNext returns how long a caller arriving at now would wait.
// Returns 0 if the cursor has already passed.
func (s State) TimeUntilNext(now time.Time) time.Duration {
	d := s.NextAllowedAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
