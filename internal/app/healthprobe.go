package app

import (
	"context"
	"net/http"
	"time"

	"github.com/thushan/olla/internal/core/constants"
	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/util"
)

const (
	probeMaxRetries = 2
	probeBaseDelay  = 100 * time.Millisecond
	probeMaxDelay   = 2 * time.Second
)

// httpHealthProbe implements ports.HealthProbe by issuing an HTTP GET
// against the endpoint's configured health-check URL (or
// constants.DefaultHealthCheckEndpoint under the endpoint's own
// host:port when none was configured), treating any 2xx as healthy.
//
// A single network blip shouldn't flip an endpoint unhealthy, so a failed
// attempt is retried probeMaxRetries times with jittered exponential
// backoff before Probe reports false; this is separate from (and faster
// than) HealthChecked's own tick-to-tick backoff for endpoints that stay
// unhealthy across probes.
type httpHealthProbe struct {
	client *http.Client
}

func newHTTPHealthProbe(timeout time.Duration) *httpHealthProbe {
	return &httpHealthProbe{client: &http.Client{Timeout: timeout}}
}

func (p *httpHealthProbe) Probe(endpoint *domain.Endpoint) (bool, error) {
	url := endpoint.Attributes["health_check_url"]
	if url == "" {
		url = "http://" + endpoint.Key() + constants.DefaultHealthCheckEndpoint
	}

	var lastErr error
	for attempt := 0; attempt <= probeMaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(util.CalculateExponentialBackoff(attempt, probeBaseDelay, probeMaxDelay, 0.25))
		}

		healthy, err := p.attempt(url)
		if err == nil {
			return healthy, nil
		}
		lastErr = err
	}
	return false, lastErr
}

func (p *httpHealthProbe) attempt(url string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
