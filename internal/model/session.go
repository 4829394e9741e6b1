package model

import "time"

// SessionData is the persisted session record: the token pair, its absolute
// expiry, and the user snapshot it was issued for. ExpiresAt is an epoch
// timestamp in milliseconds, matching the wire format of the identity
// provider. An expired record must never authorize anything; it is only
// good for attempting a refresh.
type SessionData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// ExpiryTime converts the epoch-millisecond expiry to a time.Time.
func (s *SessionData) ExpiryTime() time.Time {
	return time.UnixMilli(s.ExpiresAt)
}

// IsExpired reports whether the session has passed its expiry at now.
func (s *SessionData) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiryTime())
}

// TimeUntilExpiry returns the remaining lifetime at now; negative once the
// session is expired.
func (s *SessionData) TimeUntilExpiry(now time.Time) time.Duration {
	return s.ExpiryTime().Sub(now)
}
