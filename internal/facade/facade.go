// Package facade exposes one declarative data-access object per data
// domain. Each façade owns a tag-invalidated response cache and shares the
// authorized transport; queries dedupe concurrent identical fetches and
// mutations invalidate by tag, so a consumer never forces a refetch by hand.
package facade

import (
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tuankiet2640/mai-client/internal/api"
	"github.com/tuankiet2640/mai-client/internal/cache"
	"github.com/tuankiet2640/mai-client/internal/observability/metrics"
	"github.com/tuankiet2640/mai-client/internal/session"
	"github.com/tuankiet2640/mai-client/internal/transport"
)

// DefaultCacheTTL is the retention window for cached responses when the
// caller does not override it.
const DefaultCacheTTL = 5 * time.Minute

// base carries what every façade shares: its domain name (used as the tag
// type and metrics label), the API client, its own cache, and the
// query-dedup group.
type base struct {
	domain string
	api    *api.Client
	cache  *cache.TagCache
	flight singleflight.Group
	logger *slog.Logger
}

func newBase(domain string, client *api.Client, ttl time.Duration, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return base{
		domain: domain,
		api:    client,
		cache:  cache.New(ttl),
		logger: logger,
	}
}

// Facades bundles every domain façade over one session. Construction wires
// the sign-out listener: leaving the authenticated state drops all cached
// data so no façade ever serves authenticated results to a signed-out
// process.
type Facades struct {
	Users          *Users
	KnowledgeBases *KnowledgeBases
	Rag            *Rag
}

// New builds the façade set. ttl <= 0 selects DefaultCacheTTL.
func New(client *api.Client, sess *session.Manager, ttl time.Duration, logger *slog.Logger) *Facades {
	f := &Facades{
		Users:          NewUsers(client, ttl, logger),
		KnowledgeBases: NewKnowledgeBases(client, ttl, logger),
		Rag:            NewRag(client, sess, ttl, logger),
	}
	sess.OnChange(func(st session.State) {
		if st != session.StateAuthenticated {
			f.ClearCaches()
		}
	})
	return f
}

// ClearCaches drops every cached response across all domains.
func (f *Facades) ClearCaches() {
	f.Users.cache.Clear()
	f.KnowledgeBases.cache.Clear()
	f.Rag.cache.Clear()
}

// Close stops the cache janitors.
func (f *Facades) Close() {
	f.Users.cache.Close()
	f.KnowledgeBases.cache.Close()
	f.Rag.cache.Close()
}

// query serves from cache when possible, otherwise fetches through the
// dedup group and stores the tagged result. On a failed fetch any previous
// value is returned alongside the error with stale=true, so the caller can
// keep showing data next to an error instead of a blank view.
func query[T any](b *base, key string, tags func(T) []cache.Tag, fetch func() (T, error)) (T, bool, error) {
	if v, ok := b.cache.Get(key); ok {
		metrics.ObserveCacheLookup(b.domain, "hit")
		return v.(T), false, nil
	}

	v, err, _ := b.flight.Do(key, func() (any, error) {
		val, err := fetch()
		if err != nil {
			return nil, err
		}
		b.cache.Set(key, val, tags(val)...)
		return val, nil
	})
	if err != nil {
		if prior, _, ok := b.cache.GetStale(key); ok {
			metrics.ObserveCacheLookup(b.domain, "stale")
			return prior.(T), true, err
		}
		metrics.ObserveCacheLookup(b.domain, "miss")
		var zero T
		return zero, false, err
	}

	metrics.ObserveCacheLookup(b.domain, "miss")
	return v.(T), false, nil
}

// mutate runs a network write and, only on success, marks every cache entry
// carrying one of the affected tags as stale. A failed mutation leaves all
// caches untouched.
func mutate[T any](b *base, op func() (T, error), affected ...cache.Tag) (T, error) {
	res, err := op()
	if err != nil {
		var zero T
		return zero, err
	}
	if n := b.cache.InvalidateTags(affected...); n > 0 {
		metrics.ObserveInvalidation(b.domain, n)
		b.logger.Debug("cache entries invalidated",
			slog.String("domain", b.domain),
			slog.Int("count", n),
		)
	}
	return res, nil
}

// tokenSource is what streaming needs from the session: the same
// synchronous token snapshot the HTTP interceptor uses.
type tokenSource = transport.TokenSource
