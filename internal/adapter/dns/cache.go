package dns

import (
	"sync"
	"time"

	"github.com/miekg/dns"
)

// cacheEntry holds a resolved (or negatively-cached) answer plus the
// wall-clock time at which it stops being valid.
type cacheEntry struct {
	answers  []dns.RR
	negative bool
	expires  time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.After(e.expires)
}

// Cache is a TTL-respecting, per-question answer cache with negative
// caching for NXDOMAIN. Keys are (name, qtype) pairs;
// a single mutex protects the map since lookups are cheap and the
// cache is read far more often than written.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*cacheEntry
	// NegativeTTL bounds how long an NXDOMAIN is cached when the
	// response carries no usable SOA minimum TTL.
	NegativeTTL time.Duration
	Now         func() time.Time
}

type cacheKey struct {
	name  string
	qtype uint16
}

func NewCache(negativeTTL time.Duration) *Cache {
	if negativeTTL <= 0 {
		negativeTTL = 30 * time.Second
	}
	return &Cache{
		entries:     make(map[cacheKey]*cacheEntry),
		NegativeTTL: negativeTTL,
		Now:         time.Now,
	}
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Get returns the cached answers for (name, qtype), whether the entry
// is a negative (NXDOMAIN) cache, and whether a live entry was found at
// all. Expired entries are treated as a miss.
func (c *Cache) Get(name string, qtype uint16) (answers []dns.RR, negative bool, ok bool) {
	key := cacheKey{name: dns.Fqdn(name), qtype: qtype}

	c.mu.RLock()
	entry, found := c.entries[key]
	c.mu.RUnlock()

	if !found || entry.expired(c.now()) {
		return nil, false, false
	}
	return entry.answers, entry.negative, true
}

// Store records a successful answer set, keyed by each RR's own TTL
// floor (the minimum across the answer set), per standard DNS caching
// semantics.
func (c *Cache) Store(name string, qtype uint16, answers []dns.RR) {
	ttl := uint32(0)
	for i, rr := range answers {
		h := rr.Header().Ttl
		if i == 0 || h < ttl {
			ttl = h
		}
	}
	if len(answers) == 0 {
		ttl = uint32(c.NegativeTTL.Seconds())
	}

	c.put(name, qtype, answers, false, time.Duration(ttl)*time.Second)
}

// StoreNegative records an NXDOMAIN (or empty-answer NOERROR) result.
func (c *Cache) StoreNegative(name string, qtype uint16) {
	c.put(name, qtype, nil, true, c.NegativeTTL)
}

func (c *Cache) put(name string, qtype uint16, answers []dns.RR, negative bool, ttl time.Duration) {
	key := cacheKey{name: dns.Fqdn(name), qtype: qtype}
	entry := &cacheEntry{
		answers:  answers,
		negative: negative,
		expires:  c.now().Add(ttl),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}
