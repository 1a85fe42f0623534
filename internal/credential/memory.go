package credential

import (
	"context"
	"sync"

	"github.com/tuankiet2640/mai-client/internal/domain"
)

// MemoryStore is an in-process Store used by tests and single-binary
// deployments. Several components may share one instance; Watch fans the
// change signal out to every subscriber.
type MemoryStore struct {
	mu   sync.RWMutex
	rec  Record
	subs []chan struct{}
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a snapshot of the current record.
func (s *MemoryStore) Load(ctx context.Context) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec, nil
}

// SaveTokens stores the access and refresh token entries.
func (s *MemoryStore) SaveTokens(ctx context.Context, accessToken, refreshToken string) error {
	s.mu.Lock()
	s.rec.AccessToken = accessToken
	s.rec.RefreshToken = refreshToken
	s.mu.Unlock()
	s.notify()
	return nil
}

// SaveUser stores the cached profile entry.
func (s *MemoryStore) SaveUser(ctx context.Context, user *domain.UserProfile) error {
	s.mu.Lock()
	s.rec.User = user
	s.mu.Unlock()
	s.notify()
	return nil
}

// Clear removes all three entries. Tokens go first so a concurrent reader
// can never observe tokens without the rest of the teardown following.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.rec.AccessToken = ""
	s.rec.RefreshToken = ""
	s.rec.User = nil
	s.mu.Unlock()
	s.notify()
	return nil
}

// Watch subscribes to change signals until ctx is cancelled.
func (s *MemoryStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		for i, sub := range s.subs {
			if sub == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// notify signals every subscriber without blocking; a subscriber with a
// pending signal already has all the information it needs.
func (s *MemoryStore) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		select {
		case sub <- struct{}{}:
		default:
		}
	}
}
