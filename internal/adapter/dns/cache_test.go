package dns

import (
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aRecord(name string, ttl uint32) *dns.A {
	return &dns.A{Hdr: dns.RR_Header{Name: dns.Fqdn(name), Rrtype: dns.TypeA, Ttl: ttl}}
}

func TestCache_MissInitially(t *testing.T) {
	c := NewCache(30 * time.Second)
	_, _, ok := c.Get("example.com", dns.TypeA)
	assert.False(t, ok)
}

func TestCache_StoreAndGet(t *testing.T) {
	c := NewCache(30 * time.Second)
	answers := []dns.RR{aRecord("example.com", 300)}
	c.Store("example.com", dns.TypeA, answers)

	got, negative, ok := c.Get("example.com", dns.TypeA)
	require.True(t, ok)
	assert.False(t, negative)
	require.Len(t, got, 1)
}

func TestCache_EntryExpires(t *testing.T) {
	now := time.Now()
	c := NewCache(30 * time.Second)
	c.Now = func() time.Time { return now }

	c.Store("example.com", dns.TypeA, []dns.RR{aRecord("example.com", 1)})
	_, _, ok := c.Get("example.com", dns.TypeA)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, _, ok = c.Get("example.com", dns.TypeA)
	assert.False(t, ok, "entry should have expired")
}

func TestCache_StoreNegative(t *testing.T) {
	c := NewCache(time.Second)
	c.StoreNegative("missing.example.com", dns.TypeA)

	answers, negative, ok := c.Get("missing.example.com", dns.TypeA)
	require.True(t, ok)
	assert.True(t, negative)
	assert.Nil(t, answers)
}

func TestCache_StoreEmptyAnswersUsesNegativeTTL(t *testing.T) {
	now := time.Now()
	c := NewCache(1 * time.Second)
	c.Now = func() time.Time { return now }

	c.Store("empty.example.com", dns.TypeA, nil)
	_, _, ok := c.Get("empty.example.com", dns.TypeA)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, _, ok = c.Get("empty.example.com", dns.TypeA)
	assert.False(t, ok)
}

func TestNewCache_NonPositiveNegativeTTLDefaults(t *testing.T) {
	c := NewCache(0)
	assert.Equal(t, 30*time.Second, c.NegativeTTL)
}

func TestCache_NameIsFQDNNormalised(t *testing.T) {
	c := NewCache(30 * time.Second)
	c.Store("example.com", dns.TypeA, []dns.RR{aRecord("example.com", 300)})

	_, _, ok := c.Get("example.com.", dns.TypeA)
	assert.True(t, ok, "trailing dot must resolve to the same cache key")
}
