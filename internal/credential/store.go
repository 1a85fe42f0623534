// Package credential owns the persistent credential record: the access
// token, refresh token, and cached user profile. The record is stored as
// three independent entries so partial states (tokens written before the
// profile fetch completes) stay representable.
package credential

import (
	"context"

	"github.com/tuankiet2640/mai-client/internal/domain"
)

// Record is a point-in-time snapshot of the stored credentials. Empty
// strings and a nil user mean the entry is absent.
type Record struct {
	AccessToken  string
	RefreshToken string
	User         *domain.UserProfile
}

// Empty reports whether no credential entry is present at all.
func (r Record) Empty() bool {
	return r.AccessToken == "" && r.RefreshToken == "" && r.User == nil
}

// Store is the durable key-value home of the credential record, shared by
// every process of the same deployment. Writers publish a change signal
// after each mutation; Watch exposes it so readers can reconcile without
// waiting for their next poll.
//
// Clear is idempotent: clearing an already-empty store succeeds.
type Store interface {
	Load(ctx context.Context) (Record, error)
	SaveTokens(ctx context.Context, accessToken, refreshToken string) error
	SaveUser(ctx context.Context, user *domain.UserProfile) error
	Clear(ctx context.Context) error

	// Watch returns a channel that receives a signal whenever any writer
	// (this process or another) changes the record. The channel is closed
	// when ctx is cancelled. Signals may be coalesced; receivers must
	// re-read the store rather than trust the event payload.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
