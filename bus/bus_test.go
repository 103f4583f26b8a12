package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	b := New(nil)

	var order []string
	b.Subscribe(TickUpdated, func(Kind, any) { order = append(order, "first") })
	b.Subscribe(TickUpdated, func(Kind, any) { order = append(order, "second") })
	b.Subscribe(TickUpdated, func(Kind, any) { order = append(order, "third") })

	b.Publish(TickUpdated, 42)

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestPublishOnlyMatchingKind(t *testing.T) {
	b := New(nil)

	var ticks, orders int
	b.Subscribe(TickUpdated, func(Kind, any) { ticks++ })
	b.Subscribe(OrderPlaced, func(Kind, any) { orders++ })

	b.Publish(TickUpdated, nil)
	b.Publish(TickUpdated, nil)
	b.Publish(OrderPlaced, nil)

	assert.Equal(t, 2, ticks)
	assert.Equal(t, 1, orders)
}

func TestPanickingHandlerDoesNotStopDelivery(t *testing.T) {
	b := New(zap.NewNop())

	var after bool
	b.Subscribe(OrderClosed, func(Kind, any) { panic("boom") })
	b.Subscribe(OrderClosed, func(Kind, any) { after = true })

	require.NotPanics(t, func() { b.Publish(OrderClosed, nil) })
	assert.True(t, after, "handler after the panicking one must still run")
}

func TestUnsubscribe(t *testing.T) {
	b := New(nil)

	var a, c int
	subA := b.Subscribe(AccountUpdated, func(Kind, any) { a++ })
	b.Subscribe(AccountUpdated, func(Kind, any) { c++ })

	b.Publish(AccountUpdated, nil)
	b.Unsubscribe(subA)
	b.Publish(AccountUpdated, nil)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, c)

	// Unsubscribing twice is harmless.
	b.Unsubscribe(subA)
	b.Publish(AccountUpdated, nil)
	assert.Equal(t, 1, a)
	assert.Equal(t, 3, c)
}

func TestHandlerMayPublishNestedEvents(t *testing.T) {
	b := New(nil)

	var got []Kind
	b.Subscribe(OrderClosed, func(k Kind, _ any) { got = append(got, k) })
	b.Subscribe(TickUpdated, func(Kind, any) {
		b.Publish(OrderClosed, nil)
	})

	require.NotPanics(t, func() { b.Publish(TickUpdated, nil) })
	assert.Equal(t, []Kind{OrderClosed}, got)
}

func TestPayloadReachesHandler(t *testing.T) {
	b := New(nil)

	var got any
	b.Subscribe(TickUpdated, func(_ Kind, p any) { got = p })
	b.Publish(TickUpdated, "payload")

	assert.Equal(t, "payload", got)
}
