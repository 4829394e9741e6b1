package model

import "encoding/json"

// Wildcard matches any resource or any action in a Permission.
const Wildcard = "*"

// User is the immutable snapshot of an authenticated identity. It is
// replaced wholesale on login and refresh, never mutated in place, so it is
// safe to hand out to every reader without copying.
type User struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Provider    string         `json:"provider"`
	Attributes  UserAttributes `json:"attributes"`
	Permissions []Permission   `json:"permissions"`
}

// UserAttributes carries free-form claims from the identity provider.
// Roles keep provider order; everything else is optional.
type UserAttributes struct {
	Domain       string   `json:"domain,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	Department   string   `json:"department,omitempty"`
	Organization string   `json:"organization,omitempty"`
}

// Permission grants a set of actions on a resource. Resource and entries of
// Actions may be the literal "*". An empty Actions set grants nothing.
// Conditions is an opaque extension point reserved for attribute-based
// rules; nothing in the core evaluates it.
type Permission struct {
	Resource   string          `json:"resource"`
	Actions    []string        `json:"actions"`
	Conditions json.RawMessage `json:"conditions,omitempty"`
}
