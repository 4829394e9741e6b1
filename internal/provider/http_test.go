package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-session-agent/internal/model"
)

func tokenServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewHTTPClient(srv.URL, 5*time.Second)
}

func TestExchangeCodeSuccess(t *testing.T) {
	t.Parallel()

	var gotRequest map[string]any
	client := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "opaque-access",
			"refresh_token": "opaque-refresh",
			"expires_in":    900,
			"user": model.User{
				ID:    "u-1",
				Email: "u@example.com",
				Permissions: []model.Permission{
					{Resource: "workflow", Actions: []string{"execute"}},
				},
			},
		})
	})

	session, err := client.ExchangeCode(context.Background(), "acme", "code-123")

	require.NoError(t, err)
	assert.Equal(t, "authorization_code", gotRequest["grant_type"])
	assert.Equal(t, "acme", gotRequest["provider"])
	assert.Equal(t, "code-123", gotRequest["code"])

	assert.Equal(t, "opaque-access", session.AccessToken)
	assert.Equal(t, "opaque-refresh", session.RefreshToken)
	assert.Equal(t, "u-1", session.User.ID)
	assert.Equal(t, "acme", session.User.Provider)

	remaining := session.TimeUntilExpiry(time.Now())
	assert.Greater(t, remaining, 14*time.Minute)
	assert.LessOrEqual(t, remaining, 15*time.Minute)
}

func TestRefreshFallsBackToTokenClaims(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour)
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    "u-7",
		"email":  "seven@example.com",
		"name":   "Seven",
		"idp":    "acme",
		"domain": "example.com",
		"roles":  []string{"operator"},
		"permissions": []map[string]any{
			{"resource": "workflow", "actions": []string{"execute", "read"}},
		},
		"exp": exp.Unix(),
	}).SignedString([]byte("provider-side-secret"))
	require.NoError(t, err)

	client := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  accessToken,
			"refresh_token": "opaque-refresh",
		})
	})

	session, err := client.Refresh(context.Background(), "old-refresh")

	require.NoError(t, err)
	assert.Equal(t, "u-7", session.User.ID)
	assert.Equal(t, "seven@example.com", session.User.Email)
	assert.Equal(t, "acme", session.User.Provider)
	assert.Equal(t, []string{"operator"}, session.User.Attributes.Roles)
	require.Len(t, session.User.Permissions, 1)
	assert.Equal(t, "workflow", session.User.Permissions[0].Resource)
	assert.Equal(t, exp.Unix()*1000, session.ExpiresAt)
}

func TestProviderFailureCauses(t *testing.T) {
	t.Parallel()

	t.Run("rejection is invalid_grant", func(t *testing.T) {
		client := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":             "invalid_grant",
				"error_description": "refresh token revoked",
			})
		})

		_, err := client.Refresh(context.Background(), "revoked")

		var provErr *Error
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, CauseInvalidGrant, provErr.Cause)
		assert.Equal(t, "refresh token revoked", provErr.Message)
	})

	t.Run("5xx is server_error", func(t *testing.T) {
		client := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "server_error"})
		})

		_, err := client.Refresh(context.Background(), "whatever")

		var provErr *Error
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, CauseServerError, provErr.Cause)
	})

	t.Run("transport failure is network", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		client := NewHTTPClient(srv.URL, time.Second)

		_, err := client.Refresh(context.Background(), "whatever")

		var provErr *Error
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, CauseNetwork, provErr.Cause)
	})

	t.Run("missing tokens is server_error", func(t *testing.T) {
		client := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "only-access"})
		})

		_, err := client.Refresh(context.Background(), "whatever")

		var provErr *Error
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, CauseServerError, provErr.Cause)
	})
}
