// Package store persists the single session record. Implementations hold no
// logic beyond get/set/clear; everything above funnels writes through the
// refresh coordinator and the logout path.
package store

import (
	"errors"

	"go-session-agent/internal/model"
)

var (
	// ErrNotFound is returned by Get when no session has been persisted.
	ErrNotFound = errors.New("no stored session")
	// ErrCorrupt is returned when the stored bytes cannot be decoded,
	// which includes failed authentication of an encrypted record.
	ErrCorrupt = errors.New("stored session is corrupt")
)

// Store is the session persistence port. All implementations must be safe
// to call before any network access and safe for concurrent use.
type Store interface {
	Get() (*model.SessionData, error)
	Set(session *model.SessionData) error
	Clear() error
}
