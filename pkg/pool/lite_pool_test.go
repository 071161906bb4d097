package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resettableThing struct {
	value int
	reset bool
}

func (r *resettableThing) Reset() {
	r.value = 0
	r.reset = true
}

func TestLitePool_GetReturnsConstructedValue(t *testing.T) {
	p := NewLitePool(func() *resettableThing { return &resettableThing{value: 42} })
	v := p.Get()
	require.NotNil(t, v)
	assert.Equal(t, 42, v.value)
}

func TestLitePool_PutResetsResettableValues(t *testing.T) {
	p := NewLitePool(func() *resettableThing { return &resettableThing{} })
	v := p.Get()
	v.value = 7
	p.Put(v)

	assert.True(t, v.reset)
	assert.Equal(t, 0, v.value)
}

func TestLitePool_PutNonResettableDoesNotPanic(t *testing.T) {
	p := NewLitePool(func() *int { n := 1; return &n })
	v := p.Get()
	assert.NotPanics(t, func() { p.Put(v) })
}

func TestNewLitePool_PanicsOnNilConstructor(t *testing.T) {
	assert.Panics(t, func() {
		NewLitePool[*resettableThing](nil)
	})
}

func TestNewLitePool_PanicsOnNilConstructedValue(t *testing.T) {
	assert.Panics(t, func() {
		NewLitePool(func() *resettableThing { return nil })
	})
}
