package guard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-session-agent/internal/model"
	"go-session-agent/internal/state"
)

func authenticatedMachine(user *model.User) *state.Machine {
	m := state.NewMachine()
	m.Dispatch(state.LoginSuccess{User: user})
	return m
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *model.APIError {
	t.Helper()

	var resp model.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)

	return resp.Error
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(user.ID))
	})

	t.Run("unauthenticated request is rejected with the login redirect", func(t *testing.T) {
		g := New(state.NewMachine(), true)

		rec := httptest.NewRecorder()
		g.RequireAuth(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		apiErr := decodeError(t, rec)
		assert.Equal(t, "UNAUTHORIZED", apiErr.Code)
		assert.Equal(t, "/login", apiErr.Redirect)
	})

	t.Run("authenticated request passes with the user in context", func(t *testing.T) {
		g := New(authenticatedMachine(&model.User{ID: "u-1"}), true)

		rec := httptest.NewRecorder()
		g.RequireAuth(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u-1", rec.Body.String())
	})
}

func TestRequirePermission(t *testing.T) {
	t.Parallel()

	user := &model.User{
		ID: "u-1",
		Permissions: []model.Permission{
			{Resource: "workflow", Actions: []string{"execute"}},
		},
	}

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	route := func(g *Guard, resource string, action string) http.Handler {
		return g.RequireAuth(g.RequirePermission(resource, action)(okHandler))
	}

	t.Run("matching permission is admitted", func(t *testing.T) {
		g := New(authenticatedMachine(user), true)

		rec := httptest.NewRecorder()
		route(g, "workflow", "execute").ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing permission carries resource and action", func(t *testing.T) {
		g := New(authenticatedMachine(user), true)

		rec := httptest.NewRecorder()
		route(g, "admin", "delete").ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin", nil))

		require.Equal(t, http.StatusForbidden, rec.Code)
		apiErr := decodeError(t, rec)
		assert.Equal(t, "FORBIDDEN", apiErr.Code)
		assert.Equal(t, "/access-denied", apiErr.Redirect)
		assert.Equal(t, "admin", apiErr.Resource)
		assert.Equal(t, "delete", apiErr.Action)
		assert.NotEmpty(t, apiErr.Details)
	})

	t.Run("without prior authentication the check rejects with 401", func(t *testing.T) {
		g := New(state.NewMachine(), true)

		rec := httptest.NewRecorder()
		g.RequirePermission("workflow", "execute")(okHandler).
			ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wildcard grants obey the evaluator toggle", func(t *testing.T) {
		admin := &model.User{
			ID: "root",
			Permissions: []model.Permission{
				{Resource: model.Wildcard, Actions: []string{model.Wildcard}},
			},
		}

		strict := New(authenticatedMachine(admin), false)
		rec := httptest.NewRecorder()
		route(strict, "workflow", "execute").ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		lenient := New(authenticatedMachine(admin), true)
		rec = httptest.NewRecorder()
		route(lenient, "workflow", "execute").ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
