// Package transport decorates outbound requests with the session's bearer
// token and turns server-side credential rejections into a single
// refresh-and-retry, mirroring what an API gateway middleware does on the
// way in.
package transport

import (
	"context"
	"log/slog"
	"net/http"
)

// TokenSource supplies the current access token. Reads must be synchronous
// and non-blocking; the session manager's in-memory mirror satisfies this.
type TokenSource interface {
	AccessToken() string
}

// Refresher produces a fresh access token after the server rejected the
// current one. The session manager owns the decision whether to refresh or
// tear the session down; the transport only calls through.
type Refresher interface {
	RefreshAccessToken(ctx context.Context) (string, error)
}

type noRetryKey struct{}

// WithoutRetry marks a request context so the transport never intercepts a
// 401 for it. The auth endpoints themselves use this to avoid recursing
// into refresh.
func WithoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

func retryDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(noRetryKey{}).(bool)
	return v
}

// Authorized is an http.RoundTripper that attaches the Authorization header
// before every request and retries exactly once after a successful refresh
// when the server answers 401. It never clears the session itself.
type Authorized struct {
	Base      http.RoundTripper
	Source    TokenSource
	Refresher Refresher
	Logger    *slog.Logger
}

// NewAuthorized builds the interceptor. base may be nil, in which case
// http.DefaultTransport is used.
func NewAuthorized(base http.RoundTripper, source TokenSource, refresher Refresher, logger *slog.Logger) *Authorized {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorized{Base: base, Source: source, Refresher: refresher, Logger: logger}
}

func (a *Authorized) base() http.RoundTripper {
	if a.Base != nil {
		return a.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (a *Authorized) RoundTrip(req *http.Request) (*http.Response, error) {
	attempt := req.Clone(req.Context())
	if a.Source != nil {
		if tok := a.Source.AccessToken(); tok != "" {
			attempt.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := a.base().RoundTrip(attempt)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if a.Refresher == nil || retryDisabled(req.Context()) {
		return resp, nil
	}
	// A body without GetBody cannot be replayed; surface the 401 as is.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	newTok, refreshErr := a.Refresher.RefreshAccessToken(req.Context())
	if refreshErr != nil {
		a.Logger.Debug("refresh after 401 failed",
			slog.String("url", req.URL.Path),
			slog.String("error", refreshErr.Error()),
		)
		return resp, nil
	}

	// Retry exactly once with the new token. A second 401 is terminal for
	// this request but not for the session.
	resp.Body.Close()
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+newTok)
	return a.base().RoundTrip(retry)
}
