package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishOrder(t *testing.T) {
	b := New()
	var order []int
	b.Subscribe("x", func(Event) { order = append(order, 1) })
	b.Subscribe("x", func(Event) { order = append(order, 2) })
	b.Subscribe("x", func(Event) { order = append(order, 3) })

	b.Publish(Event{Name: "x"})
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestBusUnsubscribeIdempotent(t *testing.T) {
	b := New()
	calls := 0
	sub := b.Subscribe("x", func(Event) { calls++ })
	b.Publish(Event{Name: "x"})
	sub.Unsubscribe()
	sub.Unsubscribe() // must not panic
	b.Publish(Event{Name: "x"})
	assert.Equal(t, 1, calls)
}

func TestBusSwallowsPanics(t *testing.T) {
	b := New()
	var panicked any
	b.OnPanic(func(name string, r any) { panicked = r })

	called := false
	b.Subscribe("x", func(Event) { panic("boom") })
	b.Subscribe("x", func(Event) { called = true })

	assert.NotPanics(t, func() { b.Publish(Event{Name: "x"}) })
	assert.True(t, called, "sibling subscriber must still run")
	assert.Equal(t, "boom", panicked)
}
