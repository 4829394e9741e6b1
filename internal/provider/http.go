package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go-session-agent/internal/model"
)

// HTTPClient talks to the provider's token endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Provider     string `json:"provider,omitempty"`
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         *model.User `json:"user,omitempty"`

	ErrorCode        string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (c *HTTPClient) ExchangeCode(ctx context.Context, providerName string, code string) (*model.SessionData, error) {
	return c.token(ctx, tokenRequest{
		GrantType: "authorization_code",
		Provider:  providerName,
		Code:      code,
	})
}

func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*model.SessionData, error) {
	return c.token(ctx, tokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
	})
}

func (c *HTTPClient) token(ctx context.Context, payload tokenRequest) (*model.SessionData, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Cause: CauseServerError, Message: "encode token request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Cause: CauseServerError, Message: "build token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Cause: CauseNetwork, Message: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	var decoded tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &Error{Cause: CauseServerError, Message: "decode token response", Err: err}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &Error{Cause: CauseServerError, Message: providerMessage(decoded, resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &Error{Cause: CauseInvalidGrant, Message: providerMessage(decoded, resp.StatusCode)}
	}

	return c.buildSession(decoded, payload.Provider)
}

func providerMessage(decoded tokenResponse, status int) string {
	if decoded.ErrorDescription != "" {
		return decoded.ErrorDescription
	}
	if decoded.ErrorCode != "" {
		return decoded.ErrorCode
	}

	return fmt.Sprintf("provider returned status %d", status)
}

// buildSession turns a token response into a SessionData. The user snapshot
// and expiry prefer explicit response fields and fall back to the access
// token's claims. The token was signed by the provider and delivered over
// the provider's own TLS channel, so the claims are read without local
// signature verification.
func (c *HTTPClient) buildSession(decoded tokenResponse, providerName string) (*model.SessionData, error) {
	if decoded.AccessToken == "" {
		return nil, &Error{Cause: CauseServerError, Message: "token response missing access_token"}
	}
	if decoded.RefreshToken == "" {
		return nil, &Error{Cause: CauseServerError, Message: "token response missing refresh_token"}
	}

	session := &model.SessionData{
		AccessToken:  decoded.AccessToken,
		RefreshToken: decoded.RefreshToken,
	}

	claims := parseClaims(decoded.AccessToken)

	if decoded.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(decoded.ExpiresIn) * time.Second).UnixMilli()
	} else if exp, ok := claims["exp"].(float64); ok && exp > 0 {
		session.ExpiresAt = int64(exp) * 1000
	} else {
		return nil, &Error{Cause: CauseServerError, Message: "token response missing expiry"}
	}

	if decoded.User != nil {
		session.User = *decoded.User
	} else {
		user, err := userFromClaims(claims)
		if err != nil {
			return nil, err
		}
		session.User = *user
	}

	if session.User.Provider == "" {
		session.User.Provider = providerName
	}

	return session, nil
}

func parseClaims(accessToken string) jwt.MapClaims {
	parsed, _, err := jwt.NewParser().ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return jwt.MapClaims{}
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return jwt.MapClaims{}
	}

	return claims
}

func userFromClaims(claims jwt.MapClaims) (*model.User, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, &Error{Cause: CauseServerError, Message: "token response missing user and subject claim"}
	}

	user := &model.User{ID: sub}
	user.Email, _ = claims["email"].(string)
	user.Name, _ = claims["name"].(string)
	user.Provider, _ = claims["idp"].(string)
	user.Attributes.Domain, _ = claims["domain"].(string)
	user.Attributes.Roles = stringSlice(claims["roles"])

	if raw, ok := claims["permissions"]; ok {
		encoded, err := json.Marshal(raw)
		if err == nil {
			var perms []model.Permission
			if err := json.Unmarshal(encoded, &perms); err == nil {
				user.Permissions = perms
			}
		}
	}

	return user, nil
}

func stringSlice(raw any) []string {
	values, ok := raw.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}

	return out
}
