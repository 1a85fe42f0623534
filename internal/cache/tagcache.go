// Package cache provides the tag-invalidated response cache backing each
// data-access façade. Entries are tagged with the entities their data
// depends on; a mutation invalidates by tag, marking entries stale rather
// than deleting them so callers can still show the last known value next to
// an error.
package cache

import (
	"sync"
	"time"
)

// Tag identifies an entity (or entity collection) a cache entry depends on.
type Tag struct {
	Type string
	ID   string
}

// ListID is the sentinel tag ID carried by every list-producing entry, so a
// creation (which has no prior id) can still invalidate the list.
const ListID = "LIST"

// ListTag builds the list sentinel tag for an entity type.
func ListTag(entityType string) Tag {
	return Tag{Type: entityType, ID: ListID}
}

type entry struct {
	value     any
	tags      []Tag
	fetchedAt time.Time
	stale     bool
}

// TagCache is a mutex-guarded in-memory cache keyed by query key. A janitor
// goroutine evicts entries older than the retention window.
type TagCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	done    chan struct{}
	closed  bool
}

// New creates a cache whose entries are retained for ttl after their fetch.
func New(ttl time.Duration) *TagCache {
	c := &TagCache{
		entries: make(map[string]*entry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Get returns the cached value for key. Stale or expired entries miss.
func (c *TagCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.stale || c.expired(e) {
		return nil, false
	}
	return e.value, true
}

// GetStale returns the last stored value for key even when it has been
// invalidated, along with its fetch time. Used to show stale data next to a
// fetch error instead of blanking the view.
func (c *TagCache) GetStale(key string) (any, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, time.Time{}, false
	}
	return e.value, e.fetchedAt, true
}

// Set stores a value under key with its dependency tags, replacing any
// previous entry and clearing its stale mark.
func (c *TagCache) Set(key string, value any, tags ...Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{
		value:     value,
		tags:      tags,
		fetchedAt: time.Now(),
	}
}

// InvalidateTags marks every entry carrying any of the given tags as stale
// and returns how many entries were affected.
func (c *TagCache) InvalidateTags(tags ...Tag) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, e := range c.entries {
		if e.stale {
			continue
		}
		if tagsIntersect(e.tags, tags) {
			e.stale = true
			count++
		}
	}
	return count
}

// Clear drops every entry. Called when the session signs out so stale
// authenticated data is never served afterwards.
func (c *TagCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Len returns the number of entries, including stale ones.
func (c *TagCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the janitor goroutine. Safe to call multiple times.
func (c *TagCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}

func (c *TagCache) expired(e *entry) bool {
	return c.ttl > 0 && time.Since(e.fetchedAt) > c.ttl
}

func (c *TagCache) janitor() {
	interval := c.ttl
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep evicts entries past the retention window.
func (c *TagCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
		}
	}
}

func tagsIntersect(a, b []Tag) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
