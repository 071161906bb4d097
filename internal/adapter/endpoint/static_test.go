package endpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/olla/internal/core/domain"
)

func TestStatic_SelectDelegatesToStrategy(t *testing.T) {
	a := healthyEndpoint("a", 1, 1)
	s := NewStatic([]*domain.Endpoint{a}, &RoundRobinStrategy{})

	picked, err := s.Select(nil)
	require.NoError(t, err)
	assert.True(t, a.Equal(picked))
}

func TestStatic_SelectReturnsNilNilWhenStrategyFindsNone(t *testing.T) {
	unhealthy := domain.NewEndpoint("x", 1)
	unhealthy.Status = domain.StatusUnhealthy
	s := NewStatic([]*domain.Endpoint{unhealthy}, &RoundRobinStrategy{})

	picked, err := s.Select(nil)
	assert.NoError(t, err)
	assert.Nil(t, picked)
}

func TestStatic_SelectionTimeoutIsAlwaysZero(t *testing.T) {
	s := NewStatic(nil, &RoundRobinStrategy{})
	assert.Equal(t, time.Duration(0), s.SelectionTimeout())
}

func TestStatic_EndpointsReturnsACopy(t *testing.T) {
	a := healthyEndpoint("a", 1, 1)
	s := NewStatic([]*domain.Endpoint{a}, &RoundRobinStrategy{})

	out := s.Endpoints()
	require.Len(t, out, 1)
	out[0] = healthyEndpoint("mutated", 2, 1)

	out2 := s.Endpoints()
	assert.True(t, a.Equal(out2[0]), "mutating the returned slice must not affect internal state")
}
