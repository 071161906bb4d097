package endpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/olla/internal/core/domain"
)

func TestOrElse_PrefersPrimaryWhenNonEmpty(t *testing.T) {
	primaryEp := healthyEndpoint("primary", 1, 1)
	fallbackEp := healthyEndpoint("fallback", 2, 1)
	primary := NewStatic([]*domain.Endpoint{primaryEp}, &RoundRobinStrategy{})
	fallback := NewStatic([]*domain.Endpoint{fallbackEp}, &RoundRobinStrategy{})

	o := NewOrElse(primary, fallback)
	picked, err := o.Select(nil)
	require.NoError(t, err)
	assert.True(t, primaryEp.Equal(picked))
	assert.True(t, primaryEp.Equal(o.Endpoints()[0]))
}

func TestOrElse_FallsBackWhenPrimaryEmpty(t *testing.T) {
	fallbackEp := healthyEndpoint("fallback", 2, 1)
	primary := NewStatic(nil, &RoundRobinStrategy{})
	fallback := NewStatic([]*domain.Endpoint{fallbackEp}, &RoundRobinStrategy{})

	o := NewOrElse(primary, fallback)
	picked, err := o.Select(nil)
	require.NoError(t, err)
	assert.True(t, fallbackEp.Equal(picked))
	assert.True(t, fallbackEp.Equal(o.Endpoints()[0]))
}

func TestOrElse_SelectionTimeoutIsMax(t *testing.T) {
	primary := NewDynamic(&RoundRobinStrategy{}, time.Second)
	fallback := NewDynamic(&RoundRobinStrategy{}, 10*time.Millisecond)
	o := NewOrElse(primary, fallback)
	assert.Equal(t, time.Second, o.SelectionTimeout())
}
