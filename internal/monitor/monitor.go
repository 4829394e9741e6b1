// Package monitor runs the background session security loop: two
// independent countdowns (absolute age and idle time) racing to zero, with
// edge-triggered warnings before either one fires.
package monitor

import (
	"log/slog"
	"sync"
	"time"

	"go-session-agent/internal/event"
	"go-session-agent/internal/model"
)

// Config holds the monitor thresholds. Warning thresholds are separate from
// the hard ones and must be smaller.
type Config struct {
	AbsoluteTimeout time.Duration
	IdleTimeout     time.Duration
	TimeoutWarning  time.Duration
	IdleWarning     time.Duration
	TickInterval    time.Duration
}

// Countdowns is the recomputed-on-read view of the current session's
// clocks, rendered by warning banners.
type Countdowns struct {
	Monitoring       bool          `json:"monitoring"`
	SessionAge       time.Duration `json:"session_age"`
	IdleTime         time.Duration `json:"idle_time"`
	TimeUntilTimeout time.Duration `json:"time_until_timeout"`
	TimeUntilIdle    time.Duration `json:"time_until_idle"`
}

// Monitor owns derived timing state only; it never touches the session
// store. Observers decide consequences over the event bus.
type Monitor struct {
	cfg      Config
	bus      *event.Bus
	detector AnomalyDetector
	logger   *slog.Logger

	now func() time.Time

	mu            sync.Mutex
	monitoring    bool
	sessionStart  time.Time
	lastActivity  time.Time
	timeoutWarned bool
	idleWarned    bool
	stop          chan struct{}
}

func New(cfg Config, bus *event.Bus, detector AnomalyDetector, logger *slog.Logger) *Monitor {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		cfg:      cfg,
		bus:      bus,
		detector: detector,
		logger:   logger,
		now:      time.Now,
	}
}

// Start transitions to Monitoring for the given user, resetting both
// countdowns. restored marks a session loaded from persistence rather than
// freshly issued, and emits session.restored.
func (m *Monitor) Start(user *model.User, restored bool) {
	m.Stop()

	now := m.now()

	m.mu.Lock()
	m.monitoring = true
	m.sessionStart = now
	m.lastActivity = now
	m.timeoutWarned = false
	m.idleWarned = false
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	userID := ""
	if user != nil {
		userID = user.ID
	}
	m.logger.Debug("session monitoring started", "user_id", userID, "restored", restored)

	if restored {
		m.bus.Publish(event.TypeSessionRestored, event.ReasonPayload{Reason: "session restored from storage"})
	}

	go m.run(stop)
}

// Stop transitions back to Inactive and stops the tick loop. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}
	m.monitoring = false
	close(m.stop)
	m.stop = nil
	m.mu.Unlock()

	m.logger.Debug("session monitoring stopped")
}

// RecordActivity resets the idle countdown. The absolute countdown is
// independent of activity and keeps running.
func (m *Monitor) RecordActivity() {
	m.mu.Lock()
	if m.monitoring {
		m.lastActivity = m.now()
	}
	m.mu.Unlock()
}

// ExtendSession resets the idle countdown and clears pending warning flags.
// Used when the user confirms "stay logged in"; a later threshold crossing
// warns again.
func (m *Monitor) ExtendSession() {
	m.mu.Lock()
	if m.monitoring {
		m.lastActivity = m.now()
		m.timeoutWarned = false
		m.idleWarned = false
	}
	m.mu.Unlock()
}

// Snapshot recomputes the countdowns at call time.
func (m *Monitor) Snapshot() Countdowns {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.monitoring {
		return Countdowns{}
	}

	age := now.Sub(m.sessionStart)
	idle := now.Sub(m.lastActivity)

	return Countdowns{
		Monitoring:       true,
		SessionAge:       age,
		IdleTime:         idle,
		TimeUntilTimeout: clampZero(m.cfg.AbsoluteTimeout - age),
		TimeUntilIdle:    clampZero(m.cfg.IdleTimeout - idle),
	}
}

// ReportInvalidated emits session.invalidated for an externally detected
// failure (tampered record, decode failure) and stops monitoring.
func (m *Monitor) ReportInvalidated(reason string) {
	m.bus.Publish(event.TypeSessionInvalidated, event.ReasonPayload{Reason: reason})
	m.Stop()
}

// RecordRefreshAttempt feeds the anomaly heuristic. A suspicious result
// emits session.suspicious_activity but does not stop monitoring.
func (m *Monitor) RecordRefreshAttempt() {
	if m.detector == nil {
		return
	}

	indicators, suspicious := m.detector.ObserveRefreshAttempt(m.now())
	if !suspicious {
		return
	}

	m.logger.Warn("suspicious refresh activity", "indicators", indicators)
	m.bus.Publish(event.TypeSuspiciousActivity, event.IndicatorsPayload{Indicators: indicators})
}

func (m *Monitor) run(stop chan struct{}) {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

type emission struct {
	t       event.Type
	payload any
}

// tick evaluates both countdowns once. Emissions are collected under the
// lock and published after it is released; listeners may call back into the
// monitor (Stop, ExtendSession) without deadlocking.
func (m *Monitor) tick() {
	now := m.now()

	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}

	timeUntilTimeout := clampZero(m.cfg.AbsoluteTimeout - now.Sub(m.sessionStart))
	timeUntilIdle := clampZero(m.cfg.IdleTimeout - now.Sub(m.lastActivity))

	var emissions []emission

	switch {
	case timeUntilTimeout == 0:
		emissions = append(emissions, emission{event.TypeSessionTimeout, event.ReasonPayload{Reason: "absolute session timeout reached"}})
		m.stopLocked()
	case timeUntilIdle == 0:
		emissions = append(emissions, emission{event.TypeIdleTimeout, event.ReasonPayload{Reason: "idle timeout reached"}})
		m.stopLocked()
	default:
		// Warnings are edge-triggered: once per crossing, re-armed when the
		// countdown moves back above its threshold.
		if m.cfg.TimeoutWarning > 0 {
			if timeUntilTimeout <= m.cfg.TimeoutWarning && !m.timeoutWarned {
				m.timeoutWarned = true
				emissions = append(emissions, emission{event.TypeSessionWarning, event.WarningPayload{Countdown: "session", Remaining: timeUntilTimeout}})
			} else if timeUntilTimeout > m.cfg.TimeoutWarning {
				m.timeoutWarned = false
			}
		}
		if m.cfg.IdleWarning > 0 {
			if timeUntilIdle <= m.cfg.IdleWarning && !m.idleWarned {
				m.idleWarned = true
				emissions = append(emissions, emission{event.TypeSessionWarning, event.WarningPayload{Countdown: "idle", Remaining: timeUntilIdle}})
			} else if timeUntilIdle > m.cfg.IdleWarning {
				m.idleWarned = false
			}
		}
	}
	m.mu.Unlock()

	for _, e := range emissions {
		m.bus.Publish(e.t, e.payload)
	}
}

func (m *Monitor) stopLocked() {
	m.monitoring = false
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
}

func clampZero(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}

	return d
}
