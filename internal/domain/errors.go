package domain

import "errors"

var (
	// ErrNotAuthenticated is returned when an operation requires a signed-in
	// session and none exists.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired is returned when the stored credentials can no longer
	// be refreshed and the session has been torn down.
	ErrSessionExpired = errors.New("session expired")
)
