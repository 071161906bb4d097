package endpoint

import (
	"time"

	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
)

// OrElse tries Primary first; Fallback is consulted only when Primary's
// endpoint set is empty at selection time. Selection timeout is the max
// of the two.
type OrElse struct {
	Primary  ports.EndpointGroup
	Fallback ports.EndpointGroup
}

func NewOrElse(primary, fallback ports.EndpointGroup) *OrElse {
	return &OrElse{Primary: primary, Fallback: fallback}
}

func (o *OrElse) SelectionTimeout() time.Duration {
	t := o.Primary.SelectionTimeout()
	if f := o.Fallback.SelectionTimeout(); f > t {
		t = f
	}
	return t
}

func (o *OrElse) Endpoints() []*domain.Endpoint {
	if primary := o.Primary.Endpoints(); len(primary) > 0 {
		return primary
	}
	return o.Fallback.Endpoints()
}

func (o *OrElse) Select(rc *domain.RequestContext) (*domain.Endpoint, error) {
	if len(o.Primary.Endpoints()) > 0 {
		return o.Primary.Select(rc)
	}
	return o.Fallback.Select(rc)
}
