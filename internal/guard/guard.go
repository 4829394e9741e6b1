// Package guard exposes the route-guard surface to router collaborators:
// authentication and permission checks as middleware, with redirect targets
// carried in the deny response.
package guard

import (
	"context"
	"encoding/json"
	"net/http"

	"go-session-agent/internal/access"
	"go-session-agent/internal/model"
	"go-session-agent/internal/state"
)

const (
	loginRedirect        = "/login"
	accessDeniedRedirect = "/access-denied"
)

type contextKey string

const userContextKey contextKey = "auth_user"

// Guard checks the current auth state before letting a request through.
type Guard struct {
	machine       *state.Machine
	allowWildcard bool
}

func New(machine *state.Machine, allowWildcard bool) *Guard {
	return &Guard{machine: machine, allowWildcard: allowWildcard}
}

// RequireAuth admits the request iff a user is authenticated, placing the
// user snapshot in the request context. Denials carry the login redirect.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snapshot := g.machine.Snapshot()
		if !snapshot.IsAuthenticated || snapshot.User == nil {
			writeDenied(w, http.StatusUnauthorized, &model.APIError{
				Code:     "UNAUTHORIZED",
				Message:  "authentication required",
				Redirect: loginRedirect,
			})
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, snapshot.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission admits the request iff the authenticated user may
// perform action on resource. Denials carry the access-denied redirect plus
// the missing resource/action so the page can display them. Chain after
// RequireAuth.
func (g *Guard) RequirePermission(resource string, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeDenied(w, http.StatusUnauthorized, &model.APIError{
					Code:     "UNAUTHORIZED",
					Message:  "authentication required",
					Redirect: loginRedirect,
				})
				return
			}

			decision := access.Check(user, resource, action, g.allowWildcard)
			if !decision.Allowed {
				writeDenied(w, http.StatusForbidden, &model.APIError{
					Code:     "FORBIDDEN",
					Message:  "insufficient permissions",
					Details:  decision.Reason,
					Redirect: accessDeniedRedirect,
					Resource: resource,
					Action:   action,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext returns the user snapshot placed by RequireAuth.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok
}

func writeDenied(w http.ResponseWriter, status int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   apiErr,
	})
}
