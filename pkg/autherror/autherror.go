package autherror

import "fmt"

// Kind classifies a failure by how it is recovered from, not by where it
// happened.
type Kind string

const (
	// KindAuthentication: no valid session; recoverable by re-login.
	KindAuthentication Kind = "authentication"
	// KindAuthorization: valid session, insufficient permission;
	// recoverable by requesting access.
	KindAuthorization Kind = "authorization"
	// KindRefresh: network or provider failure during silent refresh;
	// triggers a forced logout and is not retried.
	KindRefresh Kind = "refresh"
	// KindSecurityViolation: anomaly or tamper detection; triggers a forced
	// logout and is surfaced for audit logging.
	KindSecurityViolation Kind = "security_violation"
)

type Error struct {
	Kind       Kind   `json:"kind"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(kind Kind, code string, message string, details string, status int) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Details: details, HTTPStatus: status}
}

func Authentication(message string, details string) *Error {
	return New(KindAuthentication, "UNAUTHORIZED", message, details, 401)
}

func Authorization(message string, details string) *Error {
	return New(KindAuthorization, "FORBIDDEN", message, details, 403)
}

func Refresh(message string, details string) *Error {
	return New(KindRefresh, "REFRESH_FAILED", message, details, 401)
}

func SecurityViolation(message string, details string) *Error {
	return New(KindSecurityViolation, "SECURITY_VIOLATION", message, details, 401)
}
