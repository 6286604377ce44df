package auth

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultTTL is the session cache lifetime when none is configured.
const DefaultTTL = 300 * time.Second

// DefaultMaxEntries bounds the cache; the LRU entry is evicted beyond it.
const DefaultMaxEntries = 1024

// CacheStats reports hit/miss counters and the live entry count.
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

type cacheEntry struct {
	key       string
	ctx       *Context
	userID    string
	cachedAt  time.Time
	expiresAt time.Time // token exp; zero means no token expiry
}

// SessionCache maps token fingerprints to derived contexts. Entries expire
// at the earlier of cache TTL and the token's own exp claim.
type SessionCache struct {
	ttl time.Duration
	max int
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front = most recent
	hits    uint64
	misses  uint64
}

// NewSessionCache builds a cache. ttl <= 0 selects DefaultTTL; max <= 0
// selects DefaultMaxEntries.
func NewSessionCache(ttl time.Duration, max int) *SessionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &SessionCache{
		ttl:     ttl,
		max:     max,
		now:     time.Now,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// fingerprint hashes the raw token so the cache never holds token bytes.
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached context for a token, or nil on miss. Expired
// entries (by TTL or token exp) are evicted on read.
func (c *SessionCache) Get(token string) *Context {
	key := fingerprint(token)
	c.mu.Lock()
	defer c.mu.Unlock()
	el, okE := c.entries[key]
	if !okE {
		c.misses++
		return nil
	}
	entry := el.Value.(*cacheEntry)
	now := c.now()
	if !now.Before(entry.cachedAt.Add(c.ttl)) || (!entry.expiresAt.IsZero() && !now.Before(entry.expiresAt)) {
		c.removeLocked(el)
		c.misses++
		return nil
	}
	c.lru.MoveToFront(el)
	c.hits++
	return entry.ctx
}

// Put stores a derived context under the token fingerprint.
func (c *SessionCache) Put(token string, ctx *Context, tokenExp time.Time) {
	key := fingerprint(token)
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, okE := c.entries[key]; okE {
		entry := el.Value.(*cacheEntry)
		entry.ctx = ctx
		entry.userID = ctx.UserID
		entry.cachedAt = c.now()
		entry.expiresAt = tokenExp
		c.lru.MoveToFront(el)
		return
	}
	el := c.lru.PushFront(&cacheEntry{
		key:       key,
		ctx:       ctx,
		userID:    ctx.UserID,
		cachedAt:  c.now(),
		expiresAt: tokenExp,
	})
	c.entries[key] = el
	for c.lru.Len() > c.max {
		c.removeLocked(c.lru.Back())
	}
}

// Invalidate drops one token's entry.
func (c *SessionCache) Invalidate(token string) {
	key := fingerprint(token)
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, okE := c.entries[key]; okE {
		c.removeLocked(el)
	}
}

// InvalidateUser drops every entry derived for a user.
func (c *SessionCache) InvalidateUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var doomed []*list.Element
	for el := c.lru.Front(); el != nil; el = el.Next() {
		if el.Value.(*cacheEntry).userID == userID {
			doomed = append(doomed, el)
		}
	}
	for _, el := range doomed {
		c.removeLocked(el)
	}
}

// Clear empties the cache.
func (c *SessionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
}

// Stats returns the counters.
func (c *SessionCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: c.lru.Len()}
}

func (c *SessionCache) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	entry := el.Value.(*cacheEntry)
	delete(c.entries, entry.key)
	c.lru.Remove(el)
}

// Authenticate resolves a token through the cache and verifier.
func Authenticate(ctx *SessionCache, verifier Verifier, token string) *Context {
	if token == "" {
		return Anonymous(ErrMissingToken)
	}
	if ctx != nil {
		if cached := ctx.Get(token); cached != nil {
			return cached
		}
	}
	if verifier == nil {
		return Anonymous(ErrVerificationFailed)
	}
	claims, err := verifier.Verify(context.Background(), token)
	if err != nil {
		return Anonymous(KindOf(err))
	}
	derived := FromClaims(claims)
	if ctx != nil {
		ctx.Put(token, derived, claims.ExpiresAt)
	}
	return derived
}
