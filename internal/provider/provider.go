// Package provider is the identity-provider port: exchanging a login code
// for a session record and silently refreshing one. The agent never builds
// authorize/redirect URLs; that happens in the browser before the code
// reaches us.
package provider

import (
	"context"
	"fmt"

	"go-session-agent/internal/model"
)

// Cause is the machine-readable classification of a provider failure.
type Cause string

const (
	// CauseNetwork: the request never produced a provider response.
	CauseNetwork Cause = "network"
	// CauseInvalidGrant: the provider rejected the code or refresh token.
	CauseInvalidGrant Cause = "invalid_grant"
	// CauseServerError: the provider answered but with a failure or a
	// response we could not decode.
	CauseServerError Cause = "server_error"
)

// Error wraps a provider failure with its cause.
type Error struct {
	Cause   Cause
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Cause, e.Message, e.Err)
	}

	return fmt.Sprintf("provider %s: %s", e.Cause, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Provider exchanges credentials for session records.
type Provider interface {
	ExchangeCode(ctx context.Context, providerName string, code string) (*model.SessionData, error)
	Refresh(ctx context.Context, refreshToken string) (*model.SessionData, error)
}
