package event

import "time"

// Type tags a session security event. The set is closed; observers switch
// on it to decide the consequence (forced logout, warning dialog).
type Type string

const (
	TypeSessionTimeout     Type = "session.timeout"
	TypeIdleTimeout        Type = "session.idle_timeout"
	TypeSuspiciousActivity Type = "session.suspicious_activity"
	TypeSessionInvalidated Type = "session.invalidated"
	TypeSessionWarning     Type = "session.warning"
	TypeSessionRestored    Type = "session.restored"
)

// Event is one emitted security event. Payload is event-specific: a reason
// for invalidations, an indicator list for suspicious activity, countdown
// detail for warnings.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReasonPayload carries the cause of an invalidation or timeout.
type ReasonPayload struct {
	Reason string `json:"reason"`
}

// IndicatorsPayload carries the heuristics that flagged suspicious activity.
type IndicatorsPayload struct {
	Indicators []string `json:"indicators"`
}

// WarningPayload identifies which countdown crossed its warning threshold
// and how much time remains.
type WarningPayload struct {
	Countdown string        `json:"countdown"`
	Remaining time.Duration `json:"remaining"`
}
