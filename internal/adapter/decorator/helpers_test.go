package decorator

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/thushan/olla/internal/core/domain"
)

func newTestRC(t *testing.T) *domain.RequestContext {
	t.Helper()
	loop := domain.NewEventLoop(1)
	t.Cleanup(loop.Close)
	rc := domain.NewRequestContext(context.Background(), loop, time.Now().Add(time.Minute))
	t.Cleanup(func() { rc.LogBuilder().Complete(nil) })
	return rc
}

func headersObject(status int) domain.HttpObject {
	h := domain.NewHttpHeaders()
	if status > 0 {
		h.Set(":status", strconv.Itoa(status))
	}
	return domain.NewHeadersObject(h)
}
