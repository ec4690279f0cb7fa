package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := NewBus(nil)

	var got []Event
	sub := bus.Subscribe(TopicStateChanged, func(ev Event) {
		got = append(got, ev)
	})
	require.NotEmpty(t, sub.ID())
	assert.Equal(t, TopicStateChanged, sub.Topic())

	bus.Publish(TopicStateChanged, "payload-1")
	bus.Publish(TopicPhaseChanged, "other-topic")
	bus.Publish(TopicStateChanged, "payload-2")

	require.Len(t, got, 2)
	assert.Equal(t, "payload-1", got[0].Payload)
	assert.Equal(t, "payload-2", got[1].Payload)
	assert.False(t, got[0].Time.IsZero())
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := NewBus(nil)

	count := 0
	sub := bus.Subscribe(TopicWindowRefreshed, func(Event) { count++ })

	bus.Publish(TopicWindowRefreshed, nil)
	sub.Cancel()
	bus.Publish(TopicWindowRefreshed, nil)

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, bus.SubscriberCount(TopicWindowRefreshed))

	// Cancel is idempotent.
	sub.Cancel()
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus(nil)

	a, b := 0, 0
	subA := bus.Subscribe(TopicSettingsChanged, func(Event) { a++ })
	bus.Subscribe(TopicSettingsChanged, func(Event) { b++ })

	bus.Publish(TopicSettingsChanged, nil)
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)

	subA.Cancel()
	bus.Publish(TopicSettingsChanged, nil)
	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, bus.SubscriberCount(TopicSettingsChanged))
}
