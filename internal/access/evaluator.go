// Package access decides whether a user snapshot may perform an action on a
// resource. Every function is pure: no state, no I/O, callable on the hot
// path for conditional rendering.
package access

import (
	"fmt"

	"go-session-agent/internal/model"
)

// Decision is the outcome of one access check. Reason is populated on deny
// so the caller can display why.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Request names one (resource, action) pair for the batch variants.
type Request struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Check evaluates the user's permission set against one resource/action
// pair. Evaluation is a logical OR over all permissions with first-match
// short-circuit; the set is unordered, so there are no priority or
// deny-override semantics. allowWildcard=false disables the resource
// wildcard and the action wildcard together; the contract does not allow
// toggling them independently.
func Check(user *model.User, resource string, action string, allowWildcard bool) Decision {
	if user == nil {
		return Decision{Allowed: false, Reason: "no authenticated user"}
	}

	resourceMatched := false
	for _, p := range user.Permissions {
		if p.Resource != resource && !(allowWildcard && p.Resource == model.Wildcard) {
			continue
		}
		resourceMatched = true

		for _, a := range p.Actions {
			if a == action || (allowWildcard && a == model.Wildcard) {
				return Decision{Allowed: true}
			}
		}
	}

	if !resourceMatched {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("no permission matches resource %q", resource),
		}
	}

	return Decision{
		Allowed: false,
		Reason:  fmt.Sprintf("no permission on %q grants action %q", resource, action),
	}
}

// CheckAll evaluates every request and returns a decision per request.
func CheckAll(user *model.User, requests []Request, allowWildcard bool) map[Request]Decision {
	out := make(map[Request]Decision, len(requests))
	for _, req := range requests {
		out[req] = Check(user, req.Resource, req.Action, allowWildcard)
	}

	return out
}

// CheckAny short-circuits on the first allowed request. When nothing is
// allowed it returns the last deny decision so the reason is usable.
func CheckAny(user *model.User, requests []Request, allowWildcard bool) Decision {
	if len(requests) == 0 {
		return Decision{Allowed: false, Reason: "no requests to evaluate"}
	}

	last := Decision{Allowed: false}
	for _, req := range requests {
		last = Check(user, req.Resource, req.Action, allowWildcard)
		if last.Allowed {
			return last
		}
	}

	return last
}

// HasAnyRole reports whether the user's roles intersect the required list.
// Same allow-only, any-match semantics as the permission checks.
func HasAnyRole(user *model.User, required ...string) bool {
	if user == nil || len(required) == 0 {
		return false
	}

	roleSet := make(map[string]struct{}, len(user.Attributes.Roles))
	for _, role := range user.Attributes.Roles {
		roleSet[role] = struct{}{}
	}

	for _, role := range required {
		if _, ok := roleSet[role]; ok {
			return true
		}
	}

	return false
}
