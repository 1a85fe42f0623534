package api

import (
	"context"
	"net/http"

	"github.com/tuankiet2640/mai-client/internal/domain"
	"github.com/tuankiet2640/mai-client/internal/transport"
)

// LoginResult is the server's response to a successful login.
type LoginResult struct {
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
	User         domain.UserProfile `json:"user"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login exchanges credentials for a token pair and profile. It bypasses the
// breaker and the 401 interception so re-authentication always reaches the
// server.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	ctx = transport.WithoutRetry(ctx)
	return do[LoginResult](ctx, c, http.MethodPost, "/api/auth/login",
		loginRequest{Username: username, Password: password},
		callOptions{bypassBreaker: true})
}

// Refresh exchanges the refresh token for a new access token. Interception
// is disabled: a 401 here means the refresh token itself was rejected and
// must surface to the session manager, not recurse into another refresh.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	ctx = transport.WithoutRetry(ctx)
	resp, err := do[refreshResponse](ctx, c, http.MethodPost, "/api/auth/refresh",
		refreshRequest{RefreshToken: refreshToken},
		callOptions{bypassBreaker: true})
	if err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Logout asks the server to invalidate the session. Callers treat failures
// as non-fatal; local teardown proceeds regardless.
func (c *Client) Logout(ctx context.Context) error {
	ctx = transport.WithoutRetry(ctx)
	_, err := do[struct{}](ctx, c, http.MethodPost, "/api/auth/logout", nil,
		callOptions{bypassBreaker: true})
	return err
}

// Profile fetches the current user, used when a valid token exists but no
// profile is cached locally.
func (c *Client) Profile(ctx context.Context) (domain.UserProfile, error) {
	return Get[domain.UserProfile](ctx, c, "/api/auth/profile")
}
