// Package refresh owns the authoritative in-flight token refresh. All
// session writes funnel through here (and the logout path), so the store
// never holds a half-updated record.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"go-session-agent/internal/model"
	"go-session-agent/internal/provider"
	"go-session-agent/internal/store"
)

// Result reports whether a usable session exists after validation and, if
// so, the user snapshot it carries.
type Result struct {
	IsValid bool
	User    *model.User
}

// Coordinator validates stored sessions, performs silent refresh, and
// schedules the next refresh. Overlapping refresh requests collapse into
// one network call; the second caller waits for the first's result.
type Coordinator struct {
	store        store.Store
	provider     provider.Provider
	safetyMargin time.Duration
	logger       *slog.Logger

	now func() time.Time

	group singleflight.Group

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64

	// onScheduled receives the outcome of a timer-driven refresh so the
	// auth layer can apply it (or force a logout).
	onScheduled func(Result, error)
	// onAttempt fires once per network refresh attempt; the monitor's
	// anomaly detector consumes it.
	onAttempt func()
}

func NewCoordinator(s store.Store, p provider.Provider, safetyMargin time.Duration, logger *slog.Logger) *Coordinator {
	if safetyMargin <= 0 {
		safetyMargin = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		store:        s,
		provider:     p,
		safetyMargin: safetyMargin,
		logger:       logger,
		now:          time.Now,
	}
}

// OnScheduledRefresh registers the callback for timer-driven refresh
// outcomes.
func (c *Coordinator) OnScheduledRefresh(fn func(Result, error)) {
	c.mu.Lock()
	c.onScheduled = fn
	c.mu.Unlock()
}

// OnRefreshAttempt registers the per-attempt hook.
func (c *Coordinator) OnRefreshAttempt(fn func()) {
	c.mu.Lock()
	c.onAttempt = fn
	c.mu.Unlock()
}

// ValidateAndRefresh implements the validation contract:
//
//   - no stored session: {false, nil} with no error
//   - expiry more than the safety margin away: {true, user}, no network call
//   - otherwise: one refresh attempt; success persists the new record,
//     failure clears the store
//
// Expected unauthenticated outcomes are values, not errors; the returned
// error is non-nil only for tamper/transport/provider failures the caller
// should surface.
func (c *Coordinator) ValidateAndRefresh(ctx context.Context) (Result, error) {
	session, err := c.store.Get()
	if errors.Is(err, store.ErrNotFound) {
		return Result{}, nil
	}
	if errors.Is(err, store.ErrCorrupt) {
		// A record we cannot decode must not be trusted or retried.
		_ = c.store.Clear()
		return Result{}, err
	}
	if err != nil {
		return Result{}, err
	}

	if session.TimeUntilExpiry(c.now()) > c.safetyMargin {
		user := session.User
		return Result{IsValid: true, User: &user}, nil
	}

	return c.refresh(ctx, session.RefreshToken)
}

// refresh collapses concurrent callers into a single provider call.
func (c *Coordinator) refresh(ctx context.Context, refreshToken string) (Result, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		c.mu.Lock()
		attempt := c.onAttempt
		c.mu.Unlock()
		if attempt != nil {
			attempt()
		}

		session, err := c.provider.Refresh(ctx, refreshToken)
		if err != nil {
			// One attempt per trigger: a stale refresh token will not
			// succeed on retry. Clear so nothing half-updated remains.
			if clearErr := c.store.Clear(); clearErr != nil {
				c.logger.Error("failed to clear session after refresh failure", "error", clearErr)
			}
			return nil, err
		}

		if err := c.store.Set(session); err != nil {
			_ = c.store.Clear()
			return nil, err
		}

		user := session.User
		return Result{IsValid: true, User: &user}, nil
	})
	if err != nil {
		return Result{}, err
	}

	return v.(Result), nil
}

// SetupAutoRefresh schedules exactly one pending refresh timer keyed to the
// stored session's expiry minus the safety margin. Calling it again replaces
// the previous timer; at most one pending timer exists at any time.
func (c *Coordinator) SetupAutoRefresh() {
	session, err := c.store.Get()
	if err != nil {
		c.ClearAutoRefresh()
		return
	}

	delay := session.TimeUntilExpiry(c.now()) - c.safetyMargin
	if delay < 0 {
		delay = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.generation++
	gen := c.generation

	c.timer = time.AfterFunc(delay, func() {
		c.fire(gen)
	})

	c.logger.Debug("auto refresh scheduled", "delay", delay.String())
}

// ClearAutoRefresh cancels the pending timer. Idempotent.
func (c *Coordinator) ClearAutoRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// fire runs a scheduled refresh. The captured generation is compared at
// resolution time so a timer superseded while waiting or refreshing applies
// nothing.
func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	notify := c.onScheduled
	c.mu.Unlock()

	result, err := c.ValidateAndRefresh(context.Background())

	c.mu.Lock()
	stale := gen != c.generation
	c.mu.Unlock()
	if stale {
		return
	}

	if err != nil {
		c.logger.Warn("scheduled refresh failed", "error", err)
	}

	if notify != nil {
		notify(result, err)
	}

	if result.IsValid && err == nil {
		c.SetupAutoRefresh()
	}
}
