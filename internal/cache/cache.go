package cache

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Freshness tells callers whether a value came from the cache or a live extraction.
type Freshness string

const (
	FreshnessLive   Freshness = "live"
	FreshnessCached Freshness = "cached"
)

// Entry is one cached result. Entries are replaced wholesale, never mutated.
type Entry struct {
	Value     any
	CreatedAt time.Time
	ExpiresAt time.Time
	Freshness Freshness
}

// Expired reports whether the entry is past its expiry at now.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

type Stats struct {
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Evictions  int64     `json:"evictions"`
	Size       int       `json:"size"`
	Inflight   int       `json:"inflight"`
	LastAccess time.Time `json:"last_access"`
}

// call is one in-flight extraction.
type call struct {
	key   Fingerprint
	done  chan struct{}
	entry *Entry
	err   error
}

// Token is held by the single caller allowed to extract a fingerprint.
type Token struct {
	call *call
	once sync.Once
}

// Key returns the fingerprint the token leads.
func (t *Token) Key() Fingerprint { return t.call.key }

// Waiter returns a waiter on the token's own extraction.
func (t *Token) Waiter() *Waiter { return &Waiter{call: t.call} }

// Waiter lets a caller join an extraction already in flight.
type Waiter struct {
	call *call
}

// Wait blocks until the leader completes or ctx is done.
func (w *Waiter) Wait(ctx context.Context) (*Entry, error) {
	select {
	case <-w.call.done:
		if w.call.err != nil {
			return nil, w.call.err
		}
		return w.call.entry, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ResultCache stores extraction results with per-entry TTL and tracks
// in-flight extractions so each fingerprint has at most one.
type ResultCache struct {
	store    *cache.Cache
	maxSize  int
	now      func() time.Time
	mu       sync.Mutex
	stats    Stats
	inflight map[Fingerprint]*call
}

// New creates a cache holding at most maxSize entries. The janitor sweeps
// expired entries every cleanup interval; reads also expire lazily.
func New(maxSize int, cleanup time.Duration) *ResultCache {
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &ResultCache{
		store:    cache.New(cache.NoExpiration, cleanup),
		maxSize:  maxSize,
		now:      time.Now,
		inflight: make(map[Fingerprint]*call),
	}
}

// SetClock replaces the time source used for expiry decisions.
func (c *ResultCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Now returns the cache's current time.
func (c *ResultCache) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

// Get returns a live entry. Expired entries are removed and reported as misses.
func (c *ResultCache) Get(key Fingerprint) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.stats.LastAccess = now

	if v, found := c.store.Get(string(key)); found {
		if e, ok := v.(*Entry); ok {
			if !e.Expired(now) {
				c.stats.Hits++
				out := *e
				out.Freshness = FreshnessCached
				return &out, true
			}
			c.store.Delete(string(key))
		}
	}

	c.stats.Misses++
	return nil, false
}

// Put stores value under key for ttl, replacing any previous entry. A
// non-positive ttl stores nothing.
func (c *ResultCache) Put(key Fingerprint, value any, ttl time.Duration) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e := &Entry{
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Freshness: FreshnessLive,
	}
	if ttl <= 0 {
		return e
	}

	if _, exists := c.store.Get(string(key)); !exists && c.maxSize > 0 && c.store.ItemCount() >= c.maxSize {
		c.evict(now)
	}

	// go-cache expiry is a backstop for the janitor; reads use ExpiresAt
	c.store.Set(string(key), e, ttl+time.Minute)
	return e
}

// evict drops expired entries, or the soonest-expiring one when none are expired.
func (c *ResultCache) evict(now time.Time) {
	var victim string
	var soonest time.Time
	removed := false

	for k, item := range c.store.Items() {
		e, ok := item.Object.(*Entry)
		if !ok || e.Expired(now) {
			c.store.Delete(k)
			removed = true
			continue
		}
		if victim == "" || e.ExpiresAt.Before(soonest) {
			victim, soonest = k, e.ExpiresAt
		}
	}

	if !removed && victim != "" {
		c.store.Delete(victim)
		c.stats.Evictions++
	}
}

// BeginInflight registers interest in extracting key. Exactly one caller gets
// a Token; everyone else gets a Waiter until the token is completed.
func (c *ResultCache) BeginInflight(key Fingerprint) (*Token, *Waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.inflight[key]; ok {
		return nil, &Waiter{call: existing}
	}

	cl := &call{key: key, done: make(chan struct{})}
	c.inflight[key] = cl
	return &Token{call: cl}, nil
}

// CompleteInflight releases all waiters with the leader's outcome. Completing
// a token twice is a no-op.
func (c *ResultCache) CompleteInflight(token *Token, entry *Entry, err error) {
	if token == nil {
		return
	}
	token.once.Do(func() {
		c.mu.Lock()
		if c.inflight[token.call.key] == token.call {
			delete(c.inflight, token.call.key)
		}
		c.mu.Unlock()

		token.call.entry = entry
		token.call.err = err
		close(token.call.done)
	})
}

// IsInflight reports whether an extraction for key is running.
func (c *ResultCache) IsInflight(key Fingerprint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[key]
	return ok
}

// Delete removes one entry.
func (c *ResultCache) Delete(key Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Delete(string(key))
}

// Clear drops all entries and resets counters. In-flight extractions are not affected.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Flush()
	c.stats = Stats{}
}

func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.store.ItemCount()
	s.Inflight = len(c.inflight)
	return s
}
