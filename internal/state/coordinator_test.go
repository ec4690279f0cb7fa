package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notchd/notchd/internal/event"
)

func TestPriorityOrder(t *testing.T) {
	tests := []struct {
		name                      string
		calendar, hovering, media bool
		want                      NotchState
	}{
		{"all off", false, false, false, Collapsed},
		{"media only", false, false, true, MediaActivity},
		{"hover only", false, true, false, Expanded},
		{"hover beats media", false, true, true, Expanded},
		{"calendar only", true, false, false, CalendarActivity},
		{"calendar beats hover", true, true, false, CalendarActivity},
		{"calendar beats media", true, false, true, CalendarActivity},
		{"calendar beats all", true, true, true, CalendarActivity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCoordinator(nil, nil)
			c.SetCalendarLive(tt.calendar)
			c.SetHovering(tt.hovering)
			c.SetMediaPlaying(tt.media)
			assert.Equal(t, tt.want, c.State())
			assert.Equal(t, ConfigurationFor(tt.want, false, false), c.Config())
		})
	}
}

func TestPriorityIndependentOfArrivalOrder(t *testing.T) {
	// The same latest snapshot must yield the same state regardless of
	// the order in which the three inputs were applied.
	orders := [][]func(*Coordinator){
		{
			func(c *Coordinator) { c.SetHovering(true) },
			func(c *Coordinator) { c.SetMediaPlaying(true) },
			func(c *Coordinator) { c.SetCalendarLive(true) },
		},
		{
			func(c *Coordinator) { c.SetCalendarLive(true) },
			func(c *Coordinator) { c.SetHovering(true) },
			func(c *Coordinator) { c.SetMediaPlaying(true) },
		},
		{
			func(c *Coordinator) { c.SetMediaPlaying(true) },
			func(c *Coordinator) { c.SetCalendarLive(true) },
			func(c *Coordinator) { c.SetHovering(true) },
		},
	}

	for _, order := range orders {
		c := NewCoordinator(nil, nil)
		for _, step := range order {
			step(c)
		}
		assert.Equal(t, CalendarActivity, c.State())
	}
}

func TestRedundantChangesDoNotPublish(t *testing.T) {
	bus := event.NewBus(nil)
	changes := 0
	bus.Subscribe(event.TopicStateChanged, func(event.Event) { changes++ })

	c := NewCoordinator(bus, nil)
	c.SetHovering(true)
	require.Equal(t, 1, changes)

	// Same value again: no publish.
	c.SetHovering(true)
	c.Recompute()
	assert.Equal(t, 1, changes)

	c.SetHovering(false)
	assert.Equal(t, 2, changes)
	assert.Equal(t, Collapsed, c.State())
}

func TestSuppressionDuringIntro(t *testing.T) {
	bus := event.NewBus(nil)
	var last Change
	bus.Subscribe(event.TopicStateChanged, func(ev event.Event) {
		last = ev.Payload.(Change)
	})

	c := NewCoordinator(bus, nil)
	c.SetIntro(true)
	require.True(t, c.Suppressed())

	// Automatic recomputation is suspended: hover does not expand.
	c.SetHovering(true)
	assert.Equal(t, Collapsed, c.State())

	// The coordinator is externally driven instead.
	c.ApplyExternal(Expanded)
	assert.Equal(t, Expanded, c.State())
	assert.Equal(t, Expanded, last.State)
	assert.Equal(t, ConfigurationFor(Expanded, false, true), last.Config)

	// Leaving intro resumes automatic recomputation from current inputs.
	c.SetIntro(false)
	assert.Equal(t, Expanded, c.State())
	assert.Equal(t, ConfigurationFor(Expanded, false, false), c.Config())

	c.SetHovering(false)
	assert.Equal(t, Collapsed, c.State())
}

func TestApplyExternalIgnoredWhenNotSuppressed(t *testing.T) {
	c := NewCoordinator(nil, nil)
	c.ApplyExternal(MediaActivity)
	assert.Equal(t, Collapsed, c.State())
}

func TestOnboardingGeometryOverrides(t *testing.T) {
	c := NewCoordinator(nil, nil)
	c.SetOnboarding(true)

	assert.Equal(t, ConfigurationFor(Collapsed, true, false), c.Config())
	assert.NotEqual(t, ConfigurationFor(Collapsed, false, false), c.Config())
}

func TestConfigurationDeterminism(t *testing.T) {
	for _, s := range []NotchState{Collapsed, Expanded, MediaActivity, CalendarActivity} {
		assert.Equal(t, ConfigurationFor(s, false, false), ConfigurationFor(s, false, false))
		assert.NotEmpty(t, s.String())
	}
	assert.Equal(t, "unknown", NotchState(99).String())
}
