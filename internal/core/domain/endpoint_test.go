package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEndpoint_Defaults(t *testing.T) {
	e := NewEndpoint("localhost", 8080)
	assert.Equal(t, "localhost", e.Host)
	assert.Equal(t, 8080, e.Port)
	assert.Equal(t, 1, e.Weight)
	assert.Equal(t, StatusUnknown, e.Status)
	assert.Equal(t, "localhost:8080", e.Key())
	assert.NotNil(t, e.Attributes)
}

func TestEndpoint_EqualIsHostPortOnly(t *testing.T) {
	a := NewEndpoint("10.0.0.1", 80)
	a.Weight = 5
	b := NewEndpoint("10.0.0.1", 80)
	b.Weight = 99
	c := NewEndpoint("10.0.0.2", 80)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestEndpoint_EqualNilHandling(t *testing.T) {
	var a, b *Endpoint
	assert.True(t, a.Equal(b))

	e := NewEndpoint("x", 1)
	assert.False(t, e.Equal(nil))
}

func TestHostPort_IPv6Bracketing(t *testing.T) {
	assert.Equal(t, "[::1]:8080", HostPort("::1", 8080))
	assert.Equal(t, "example.com", HostPort("example.com", 0))
}

func TestEndpointStatus_IsRoutable(t *testing.T) {
	assert.True(t, StatusHealthy.IsRoutable())
	assert.True(t, StatusBusy.IsRoutable())
	assert.True(t, StatusWarming.IsRoutable())
	assert.False(t, StatusUnhealthy.IsRoutable())
	assert.False(t, StatusUnknown.IsRoutable())
}

func TestEndpointStatus_GetTrafficWeight(t *testing.T) {
	assert.Equal(t, 1.0, StatusHealthy.GetTrafficWeight())
	assert.Equal(t, 0.3, StatusBusy.GetTrafficWeight())
	assert.Equal(t, 0.1, StatusWarming.GetTrafficWeight())
	assert.Equal(t, 0.0, StatusUnhealthy.GetTrafficWeight())
}

func TestErrEndpointNotFound_Error(t *testing.T) {
	err := &ErrEndpointNotFound{Key: "10.0.0.1:80"}
	assert.Contains(t, err.Error(), "10.0.0.1:80")
}
