package state

import (
	"log/slog"

	"github.com/notchd/notchd/internal/event"
)

// Change is the payload published on event.TopicStateChanged.
type Change struct {
	State  NotchState
	Config Configuration
}

// Coordinator merges the hover, media and calendar signals into one
// authoritative NotchState and Configuration under a fixed priority order:
// calendar-activity > expanded (hover) > media-activity > collapsed.
//
// All methods must be called on the run loop; the coordinator is the only
// mutator of the state it owns, so it needs no locking.
type Coordinator struct {
	logger *slog.Logger
	bus    *event.Bus

	hovering     bool
	mediaPlaying bool
	calendarLive bool

	// Mode flags. While either is set, automatic recomputation is
	// suppressed and the state is externally driven via ApplyExternal.
	onboarding bool
	intro      bool

	state  NotchState
	config Configuration
}

// NewCoordinator creates a coordinator in the Collapsed state.
func NewCoordinator(bus *event.Bus, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		logger: logger,
		bus:    bus,
		state:  Collapsed,
		config: ConfigurationFor(Collapsed, false, false),
	}
}

// State returns the current NotchState.
func (c *Coordinator) State() NotchState { return c.state }

// Config returns the current Configuration.
func (c *Coordinator) Config() Configuration { return c.config }

// Hovering returns the current debounced hover flag.
func (c *Coordinator) Hovering() bool { return c.hovering }

// MediaPlaying returns the current media-playing flag.
func (c *Coordinator) MediaPlaying() bool { return c.mediaPlaying }

// CalendarLive returns whether a calendar live activity is showing.
func (c *Coordinator) CalendarLive() bool { return c.calendarLive }

// SetHovering updates the debounced hover flag and recomputes.
func (c *Coordinator) SetHovering(hovering bool) {
	if c.hovering == hovering {
		return
	}
	c.hovering = hovering
	c.Recompute()
}

// SetMediaPlaying updates the media-playing flag and recomputes.
func (c *Coordinator) SetMediaPlaying(playing bool) {
	if c.mediaPlaying == playing {
		return
	}
	c.mediaPlaying = playing
	c.Recompute()
}

// SetCalendarLive updates the calendar-activity flag and recomputes.
func (c *Coordinator) SetCalendarLive(live bool) {
	if c.calendarLive == live {
		return
	}
	c.calendarLive = live
	c.Recompute()
}

// SetOnboarding toggles the onboarding mode flag and recomputes.
func (c *Coordinator) SetOnboarding(on bool) {
	if c.onboarding == on {
		return
	}
	c.onboarding = on
	c.Recompute()
}

// SetIntro toggles the intro-sequence mode flag and recomputes.
func (c *Coordinator) SetIntro(on bool) {
	if c.intro == on {
		return
	}
	c.intro = on
	c.Recompute()
}

// Suppressed reports whether automatic recomputation is suspended.
func (c *Coordinator) Suppressed() bool { return c.onboarding || c.intro }

// ApplyExternal sets the state directly while the coordinator is suppressed
// (intro/onboarding sequences drive it step by step). Outside a suppressed
// mode it is ignored.
func (c *Coordinator) ApplyExternal(s NotchState) {
	if !c.Suppressed() {
		c.logger.Debug("external state ignored outside intro/onboarding", "state", s)
		return
	}
	c.apply(s, ConfigurationFor(s, c.onboarding, c.intro))
}

// Recompute re-derives the state from the current inputs. While a mode flag
// is set, the mode geometry is applied but the priority rule is not.
func (c *Coordinator) Recompute() {
	if c.Suppressed() {
		c.apply(c.state, ConfigurationFor(c.state, c.onboarding, c.intro))
		return
	}

	desired := Collapsed
	switch {
	case c.calendarLive:
		desired = CalendarActivity
	case c.hovering:
		desired = Expanded
	case c.mediaPlaying:
		desired = MediaActivity
	}

	c.apply(desired, ConfigurationFor(desired, false, false))
}

// apply commits a state/configuration pair, publishing only on value change.
func (c *Coordinator) apply(s NotchState, cfg Configuration) {
	if s == c.state && cfg == c.config {
		return
	}

	c.logger.Debug("state changed",
		"from", c.state.String(),
		"to", s.String(),
		"hovering", c.hovering,
		"media_playing", c.mediaPlaying,
		"calendar_live", c.calendarLive,
	)

	c.state = s
	c.config = cfg

	if c.bus != nil {
		c.bus.Publish(event.TopicStateChanged, Change{State: s, Config: cfg})
	}
}
