package dns

import (
	"context"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// Resolver expands a bare question against a search-domain list,
// consulting Cache before dispatching to Client.
type Resolver struct {
	Client       *Client
	Cache        *Cache
	SearchDomain []string
	Ndots        int
}

func NewResolver(client *Client, cache *Cache, searchDomains []string, ndots int) *Resolver {
	if ndots <= 0 {
		ndots = 1
	}
	normalized := make([]string, len(searchDomains))
	for i, d := range searchDomains {
		normalized[i] = dns.Fqdn(d)
	}
	return &Resolver{
		Client:       client,
		Cache:        cache,
		SearchDomain: normalized,
		Ndots:        ndots,
	}
}

// Question asks for qtype records for name, trying each candidate name
// from candidates() in order and returning the first non-negative
// cache hit or live answer. A candidate that resolves to NXDOMAIN is
// negatively cached but resolution continues to the next candidate;
// only exhausting every candidate without a positive answer is a
// resolution failure.
func (r *Resolver) Question(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	for _, candidate := range r.candidates(name) {
		if answers, negative, ok := r.Cache.Get(candidate, qtype); ok {
			if negative {
				continue
			}
			return answers, nil
		}

		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(candidate), qtype)
		msg.RecursionDesired = true

		resp, err := r.Client.Exchange(ctx, msg)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			if len(resp.Answer) == 0 {
				r.Cache.StoreNegative(candidate, qtype)
				continue
			}
			r.Cache.Store(candidate, qtype, resp.Answer)
			return resp.Answer, nil
		case dns.RcodeNameError:
			r.Cache.StoreNegative(candidate, qtype)
			continue
		default:
			continue
		}
	}
	return nil, fmt.Errorf("dns: %s: no answer from any candidate", name)
}

// candidates implements search-domain expansion: a name
// with at least Ndots dots is tried absolute first, then qualified by
// each search domain; a name with fewer dots is qualified first, with
// the absolute form tried last.
func (r *Resolver) candidates(name string) []string {
	dots := strings.Count(strings.TrimSuffix(name, "."), ".")
	qualified := make([]string, 0, len(r.SearchDomain))
	for _, domain := range r.SearchDomain {
		qualified = append(qualified, dns.Fqdn(name)+domain)
	}

	if dots >= r.Ndots {
		return append([]string{name}, qualified...)
	}
	return append(qualified, name)
}
