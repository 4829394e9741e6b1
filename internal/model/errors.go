package model

import "errors"

var (
	// Session related errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionTampered = errors.New("session record tampered or corrupt")

	// Authentication/authorization related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Refresh related errors
	ErrRefreshFailed   = errors.New("token refresh failed")
	ErrRefreshInFlight = errors.New("refresh already in flight")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
