package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Limiter paces calls to one endpoint class.
//
// All four operations serialize on one mutex that guards only the in-memory
// counters. Wait is the only method that sleeps, and it never sleeps while
// holding the mutex.
type Limiter struct {
	name   string
	logger zerolog.Logger

	mu      sync.Mutex
	base    time.Duration
	current time.Duration
	next    time.Time

	now     func() time.Time
	onGrant func(time.Time) // test hook, called under mu
}

// New creates a limiter enforcing at least base between granted calls.
// A non-positive base disables steady pacing; penalties still apply.
func New(name string, base time.Duration, logger zerolog.Logger) *Limiter {
	if base < 0 {
		base = 0
	}
	l := &Limiter{
		name:    name,
		logger:  logger.With().Str("limiter", name).Logger(),
		base:    base,
		current: base,
		now:     time.Now,
	}
	intervalSeconds.WithLabelValues(name).Set(base.Seconds())
	return l
}

// Wait blocks until the pacing cursor has passed, then advances it by the
// current interval. Callers woken early (e.g. after a Penalize moved the
// cursor) re-check and keep waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	defer func() {
		waitSeconds.WithLabelValues(l.name).Observe(time.Since(start).Seconds())
	}()

	for {
		l.mu.Lock()
		now := l.now()
		if !now.Before(l.next) {
			l.next = now.Add(l.current)
			if l.onGrant != nil {
				l.onGrant(now)
			}
			l.mu.Unlock()
			return nil
		}
		d := l.next.Sub(now)
		l.mu.Unlock()

		if err := sleepCtx(ctx, d); err != nil {
			return err
		}
	}
}

// Penalize pushes the pacing cursor to at least now+extra, delaying every
// caller including those already waiting.
func (l *Limiter) Penalize(extra time.Duration) {
	if extra <= 0 {
		return
	}
	l.mu.Lock()
	target := l.now().Add(extra)
	if target.After(l.next) {
		l.next = target
	}
	l.mu.Unlock()

	penaltiesTotal.WithLabelValues(l.name).Inc()
	l.logger.Warn().Dur("penalty", extra).Msg("Pacing cursor pushed forward")
}

// ThrottleTo raises the current interval to max(base, target). It never
// lowers the interval; only OnSuccess does that.
func (l *Limiter) ThrottleTo(target time.Duration) {
	l.mu.Lock()
	if target < l.base {
		target = l.base
	}
	raised := target > l.current
	if raised {
		l.current = target
	}
	current := l.current
	l.mu.Unlock()

	if raised {
		throttlesTotal.WithLabelValues(l.name).Inc()
		intervalSeconds.WithLabelValues(l.name).Set(current.Seconds())
		l.logger.Warn().Dur("interval", current).Msg("Request interval raised")
	}
}

// OnSuccess decays an inflated interval by 10% toward base.
func (l *Limiter) OnSuccess() {
	l.mu.Lock()
	if l.current <= l.base {
		l.current = l.base
		l.mu.Unlock()
		return
	}
	decayed := time.Duration(float64(l.current) * DecayFactor)
	if decayed < l.base {
		decayed = l.base
	}
	l.current = decayed
	l.mu.Unlock()

	intervalSeconds.WithLabelValues(l.name).Set(decayed.Seconds())
}

// State returns a snapshot of the pacing state.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		Name:            l.name,
		BaseInterval:    l.base,
		CurrentInterval: l.current,
		NextAllowedAt:   l.next,
	}
}

// Name returns the endpoint class this limiter paces.
func (l *Limiter) Name() string {
	return l.name
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
