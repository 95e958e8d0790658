package saml

import (
	"sync"
	"time"
)

// RequestCache stores outstanding AuthnRequest IDs for InResponseTo
// correlation. IDs are single-use and expire after the configured TTL.
// This is the stateful half of the correlation hardening option; when
// correlation is off the cache is never constructed.
type RequestCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
}

func NewRequestCache(ttl time.Duration) *RequestCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RequestCache{
		ttl:     ttl,
		entries: make(map[string]time.Time),
	}
}

func (c *RequestCache) TTL() time.Duration { return c.ttl }

// Store registers a request ID with its expiry.
func (c *RequestCache) Store(requestID string, expiry time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[requestID] = expiry
}

// Valid consumes a request ID: it returns true exactly once for a known,
// unexpired ID and removes it either way.
func (c *RequestCache) Valid(requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.entries[requestID]
	if !ok {
		return false
	}
	delete(c.entries, requestID)
	return time.Now().Before(expiry)
}

// Sweep drops expired entries. Called periodically from main so abandoned
// login attempts do not accumulate.
func (c *RequestCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, expiry := range c.entries {
		if now.After(expiry) {
			delete(c.entries, id)
		}
	}
}

// Len reports the number of outstanding request IDs.
func (c *RequestCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
