package endpoint

import (
	"time"

	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// Static is a fixed endpoint list; Select is pure, immediate, and never
// waits - selection timeout is always zero.
type Static struct {
	endpoints []*domain.Endpoint
	strategy  ports.SelectionStrategy
}

func NewStatic(endpoints []*domain.Endpoint, strategy ports.SelectionStrategy) *Static {
	return &Static{endpoints: endpoints, strategy: strategy}
}

func (s *Static) Select(rc *domain.RequestContext) (*domain.Endpoint, error) {
	e := s.strategy.Select(s.endpoints, rc)
	if e == nil {
		return nil, nil
	}
	return e, nil
}

func (s *Static) SelectionTimeout() time.Duration { return 0 }

func (s *Static) Endpoints() []*domain.Endpoint {
	out := make([]*domain.Endpoint, len(s.endpoints))
	copy(out, s.endpoints)
	return out
}
