package app

import (
	"context"
	"sync"
	"time"

	"github.com/miekg/dns"

	olladns "github.com/thushan/olla/internal/adapter/dns"
	"github.com/thushan/olla/internal/adapter/endpoint"
	"github.com/thushan/olla/internal/config"
	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/logger"
)

// dnsDiscoveryRefresher periodically re-resolves the hostnames named in
// discovery.static.endpoints (discovery.type: "dns" treats each
// endpoint's URL host as a name to expand, not a literal address) via
// the dns resolver, pushing the resulting A-record address set into a
// Dynamic endpoint group.
type dnsDiscoveryRefresher struct {
	resolver  *olladns.Resolver
	dyn       *endpoint.Dynamic
	seeds     []*domain.Endpoint
	interval  time.Duration
	log       *logger.StyledLogger
	stop      chan struct{}
	wg        sync.WaitGroup
}

func newDNSDiscoveryRefresher(cfg *config.Config, dyn *endpoint.Dynamic, log *logger.StyledLogger) *dnsDiscoveryRefresher {
	interval := cfg.Discovery.RefreshInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	seeds, _ := endpointsFromStatic(cfg.Discovery.Static)
	return &dnsDiscoveryRefresher{
		resolver: dnsResolverFor(cfg),
		dyn:      dyn,
		seeds:    seeds,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
	}
}

func (r *dnsDiscoveryRefresher) Start(ctx context.Context) {
	r.refreshOnce(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.refreshOnce(ctx)
			case <-r.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *dnsDiscoveryRefresher) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	r.wg.Wait()
}

func (r *dnsDiscoveryRefresher) refreshOnce(ctx context.Context) {
	resolved := make([]*domain.Endpoint, 0, len(r.seeds))
	for _, seed := range r.seeds {
		answers, err := r.resolver.Question(ctx, seed.Host, dns.TypeA)
		if err != nil {
			r.log.WarnWithEndpoint("dns refresh failed, keeping last known address", seed.Name, "error", err)
			resolved = append(resolved, seed)
			continue
		}
		for _, rr := range answers {
			a, ok := rr.(*dns.A)
			if !ok {
				continue
			}
			ep := domain.NewEndpoint(a.A.String(), seed.Port)
			ep.Name = seed.Name
			ep.Weight = seed.Weight
			ep.Attributes = seed.Attributes
			resolved = append(resolved, ep)
		}
	}
	if len(resolved) > 0 {
		r.dyn.Update(resolved)
	}
}
