// Package authn ties the core together: provider, store, refresh
// coordinator, security monitor, and state machine. It is the only place
// that decides consequences for security events.
package authn

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go-session-agent/internal/event"
	"go-session-agent/internal/model"
	"go-session-agent/internal/monitor"
	"go-session-agent/internal/provider"
	"go-session-agent/internal/refresh"
	"go-session-agent/internal/state"
	"go-session-agent/internal/store"
	"go-session-agent/pkg/autherror"
)

// ErrSuperseded marks an async result that resolved after a newer operation
// replaced it; the result has been discarded and nothing was applied.
var ErrSuperseded = errors.New("operation superseded")

// Authenticator coordinates the session lifecycle. Safe for concurrent use.
type Authenticator struct {
	store       store.Store
	provider    provider.Provider
	coordinator *refresh.Coordinator
	monitor     *monitor.Monitor
	machine     *state.Machine
	bus         *event.Bus
	logger      *slog.Logger

	mu         sync.Mutex
	generation uint64

	unsubscribe []func()
}

func New(
	s store.Store,
	p provider.Provider,
	coordinator *refresh.Coordinator,
	mon *monitor.Monitor,
	machine *state.Machine,
	bus *event.Bus,
	logger *slog.Logger,
) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Authenticator{
		store:       s,
		provider:    p,
		coordinator: coordinator,
		monitor:     mon,
		machine:     machine,
		bus:         bus,
		logger:      logger,
	}

	coordinator.OnRefreshAttempt(mon.RecordRefreshAttempt)
	coordinator.OnScheduledRefresh(a.applyScheduledRefresh)

	// Timeout, idle, and invalidation all force a logout. Suspicious
	// activity is surfaced for observers but does not end the session by
	// itself.
	for _, t := range []event.Type{
		event.TypeSessionTimeout,
		event.TypeIdleTimeout,
		event.TypeSessionInvalidated,
	} {
		eventType := t
		a.unsubscribe = append(a.unsubscribe, bus.Subscribe(eventType, func(e event.Event) {
			a.forceLogout(string(eventType), autherror.KindSecurityViolation)
		}))
	}

	return a
}

// Login exchanges a provider code for a session, persists it, and starts
// monitoring and auto refresh. A login superseded by a newer login or a
// logout while the exchange was in flight is discarded.
func (a *Authenticator) Login(ctx context.Context, providerName string, code string) (*model.User, error) {
	gen := a.bumpGeneration()

	a.machine.Dispatch(state.LoginStart{})

	session, err := a.provider.ExchangeCode(ctx, providerName, code)
	if err != nil {
		if !a.generationCurrent(gen) {
			return nil, ErrSuperseded
		}
		a.machine.Dispatch(state.LoginFailure{Message: err.Error()})
		return nil, autherror.Authentication("login failed", err.Error())
	}

	if !a.generationCurrent(gen) {
		return nil, ErrSuperseded
	}

	if err := a.store.Set(session); err != nil {
		a.machine.Dispatch(state.LoginFailure{Message: "failed to persist session"})
		return nil, err
	}

	user := session.User
	a.machine.Dispatch(state.LoginSuccess{User: &user})
	a.monitor.Start(&user, false)
	a.coordinator.SetupAutoRefresh()

	a.logger.Info("login succeeded", "user_id", user.ID, "provider", user.Provider)

	return &user, nil
}

// Bootstrap restores a persisted session at startup, before any network
// access is guaranteed to work. A valid stored session authenticates
// immediately; an expired one triggers one silent refresh; a tampered one
// is invalidated.
func (a *Authenticator) Bootstrap(ctx context.Context) (*model.User, error) {
	a.bumpGeneration()
	a.machine.Dispatch(state.SetLoading{Loading: true})
	defer a.machine.Dispatch(state.SetLoading{Loading: false})

	result, err := a.coordinator.ValidateAndRefresh(ctx)
	if errors.Is(err, store.ErrCorrupt) {
		a.monitor.ReportInvalidated("stored session failed validation")
		a.machine.Dispatch(state.Logout{})
		return nil, autherror.SecurityViolation("stored session failed validation", err.Error())
	}
	if err != nil {
		a.machine.Dispatch(state.RefreshFailure{})
		a.cleanupSession("bootstrap refresh failed", autherror.KindRefresh)
		return nil, autherror.Refresh("session refresh failed during startup", err.Error())
	}

	if !result.IsValid {
		a.machine.Dispatch(state.Logout{})
		return nil, nil
	}

	a.machine.Dispatch(state.LoginSuccess{User: result.User})
	a.monitor.Start(result.User, true)
	a.coordinator.SetupAutoRefresh()

	a.logger.Info("session restored", "user_id", result.User.ID)

	return result.User, nil
}

// Refresh runs a manual silent refresh. Overlapping calls share one network
// attempt through the coordinator's single-flight guard.
func (a *Authenticator) Refresh(ctx context.Context) (*model.User, error) {
	gen := a.currentGeneration()

	result, err := a.coordinator.ValidateAndRefresh(ctx)

	if !a.generationCurrent(gen) {
		return nil, ErrSuperseded
	}

	if err != nil || !result.IsValid {
		a.machine.Dispatch(state.RefreshFailure{})
		a.cleanupSession("manual refresh failed", autherror.KindRefresh)
		details := ""
		if err != nil {
			details = err.Error()
		}
		return nil, autherror.Refresh("token refresh failed", details)
	}

	a.machine.Dispatch(state.RefreshSuccess{User: result.User})
	a.coordinator.SetupAutoRefresh()

	return result.User, nil
}

// Logout clears the pending refresh timer, stops monitoring, clears the
// store, and resets the state machine.
func (a *Authenticator) Logout(ctx context.Context) {
	a.bumpGeneration()

	a.coordinator.ClearAutoRefresh()
	a.monitor.Stop()

	if err := a.store.Clear(); err != nil {
		a.logger.Error("failed to clear stored session", "error", err)
	}

	a.machine.Dispatch(state.Logout{})
	a.logger.Info("logged out")
}

// Close tears down event subscriptions and background timers.
func (a *Authenticator) Close() {
	for _, unsub := range a.unsubscribe {
		unsub()
	}
	a.coordinator.ClearAutoRefresh()
	a.monitor.Stop()
}

// applyScheduledRefresh receives timer-driven refresh outcomes from the
// coordinator.
func (a *Authenticator) applyScheduledRefresh(result refresh.Result, err error) {
	if err != nil || !result.IsValid {
		a.machine.Dispatch(state.RefreshFailure{})
		a.cleanupSession("scheduled refresh failed", autherror.KindRefresh)
		return
	}

	a.machine.Dispatch(state.RefreshSuccess{User: result.User})
}

// forceLogout ends the session like a plain logout; the reason and kind are
// logged for diagnostics but not shown to the user.
func (a *Authenticator) forceLogout(reason string, kind autherror.Kind) {
	a.cleanupSession(reason, kind)
	a.machine.Dispatch(state.Logout{})
}

// cleanupSession tears down timers, monitoring, and the stored record
// without touching the state machine; callers dispatch the transition that
// fits their failure.
func (a *Authenticator) cleanupSession(reason string, kind autherror.Kind) {
	a.logger.Warn("session ended", "reason", reason, "kind", string(kind))

	a.bumpGeneration()
	a.coordinator.ClearAutoRefresh()
	a.monitor.Stop()

	if err := a.store.Clear(); err != nil {
		a.logger.Error("failed to clear stored session", "error", err)
	}
}

func (a *Authenticator) bumpGeneration() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.generation++
	return a.generation
}

func (a *Authenticator) currentGeneration() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.generation
}

func (a *Authenticator) generationCurrent(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return gen == a.generation
}
