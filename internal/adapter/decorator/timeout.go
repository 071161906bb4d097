package decorator

import (
	"time"

	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// ResponseTimeout returns a Decorator enforcing a response timeout that
// applies across the full exchange (including, at the HTTP codec layer,
// the wait for 100-continue) and cancels the context on expiry rather
// than racing a bare select in every caller.
func ResponseTimeout(d time.Duration) ports.Decorator {
	return func(inner ports.Service) ports.Service {
		return ports.ServiceFunc(func(rc *domain.RequestContext, req domain.HttpObject) (domain.HttpObject, error) {
			rc.DeadlineIn(d)
			resp, err := inner.Serve(rc, req)
			if err != nil && rc.IsCancelled() {
				if cause := rc.CancelCause(); cause != nil {
					return resp, domain.NewPipelineError(domain.KindTimeout, "response-timeout", "", d, cause)
				}
			}
			return resp, err
		})
	}
}

// SelectionTimeout computes the timeout an endpoint group's Select call
// should honour for this attempt: min(groupTimeout, time remaining on
// rc's response deadline). A zero groupTimeout is returned unchanged
// (Static groups: immediate, pure selection, never bounded by the
// response deadline).
func SelectionTimeout(rc *domain.RequestContext, groupTimeout time.Duration) time.Duration {
	if groupTimeout == 0 {
		return 0
	}
	remaining := rc.Remaining()
	if remaining < groupTimeout {
		return remaining
	}
	return groupTimeout
}
