// Package alert implements the calendar live-activity scheduler: it tracks
// the next upcoming event, derives an alert phase from the time remaining,
// and owns the expiration timers for each phase.
package alert

import (
	"time"

	"github.com/notchd/notchd/internal/config"
)

// Phase is the current alert tier.
type Phase int

const (
	// PhaseNone means no alert is showing.
	PhaseNone Phase = iota
	// PhaseCountdown is the final minute before an event starts.
	PhaseCountdown
	// PhaseFiveMinute fires once when the 5-minute threshold is crossed.
	PhaseFiveMinute
	// PhaseFifteenMinute fires once when the 15-minute threshold is crossed.
	PhaseFifteenMinute
)

// String returns the string representation of Phase.
func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseCountdown:
		return "countdown"
	case PhaseFiveMinute:
		return "five-minute"
	case PhaseFifteenMinute:
		return "fifteen-minute"
	default:
		return "unknown"
	}
}

// Event is an upcoming calendar event as seen by the scheduler.
type Event struct {
	// Key is an opaque stable identifier for the event.
	Key string
	// Title is the human-readable event title.
	Title string
	// Start is the event start time.
	Start time.Time
}

// Provider is the calendar collaborator.
type Provider interface {
	// NextEventStartingSoon returns the next upcoming event, or nil when
	// there is none.
	NextEventStartingSoon() (*Event, error)
	// SuspendUpdates pauses background refreshing, e.g. across sleep.
	SuspendUpdates()
	// ReloadEvents refreshes calendar data, e.g. after wake.
	ReloadEvents() error
}

// Settings is the scheduler's view of the user settings.
type Settings struct {
	Enabled       bool
	AlertsEnabled bool
	OneMinute     bool
	FiveMinute    bool
	FifteenMinute bool
	PollInterval  time.Duration
}

// SettingsFromConfig derives scheduler settings from the calendar config.
func SettingsFromConfig(c config.CalendarConfig) Settings {
	return Settings{
		Enabled:       c.Enabled,
		AlertsEnabled: c.AlertsEnabled,
		OneMinute:     c.ThresholdEnabled(1),
		FiveMinute:    c.ThresholdEnabled(5),
		FifteenMinute: c.ThresholdEnabled(15),
		PollInterval:  c.PollInterval.Duration(),
	}
}

// Activity is the payload published on event.TopicPhaseChanged.
type Activity struct {
	Phase     Phase
	Remaining time.Duration
	EventKey  string
	Title     string
}

// Live reports whether the activity is visible.
func (a Activity) Live() bool { return a.Phase != PhaseNone }
