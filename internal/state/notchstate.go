// Package state holds the authoritative widget state and the coordinator
// that derives it from hover, media and calendar signals.
package state

// NotchState is the single visual state of the overlay. Exactly one is
// active at a time; only the Coordinator mutates it.
type NotchState int

const (
	// Collapsed is the resting state: nothing to show.
	Collapsed NotchState = iota
	// Expanded is the hover-revealed state.
	Expanded
	// MediaActivity shows the compact now-playing surface.
	MediaActivity
	// CalendarActivity shows a live calendar alert.
	CalendarActivity
)

// String returns the string representation of NotchState.
func (s NotchState) String() string {
	switch s {
	case Collapsed:
		return "collapsed"
	case Expanded:
		return "expanded"
	case MediaActivity:
		return "media-activity"
	case CalendarActivity:
		return "calendar-activity"
	default:
		return "unknown"
	}
}

// Configuration describes the overlay geometry for a NotchState. It has no
// independent lifecycle: it is recomputed on every state change and compared
// by value to suppress redundant animation triggers.
type Configuration struct {
	Width              float64
	Height             float64
	TopCornerRadius    float64
	BottomCornerRadius float64
	ShadowRadius       float64
}

// ConfigurationFor derives the overlay geometry from the state plus the two
// exceptional mode inputs.
func ConfigurationFor(s NotchState, onboarding, intro bool) Configuration {
	// Onboarding and the intro sequence override the state-derived shape
	// with their own fixed geometry.
	if onboarding {
		return Configuration{Width: 640, Height: 320, TopCornerRadius: 24, BottomCornerRadius: 24, ShadowRadius: 30}
	}
	if intro {
		return Configuration{Width: 320, Height: 40, TopCornerRadius: 12, BottomCornerRadius: 16, ShadowRadius: 20}
	}

	switch s {
	case Expanded:
		return Configuration{Width: 480, Height: 180, TopCornerRadius: 16, BottomCornerRadius: 24, ShadowRadius: 24}
	case MediaActivity:
		return Configuration{Width: 280, Height: 36, TopCornerRadius: 8, BottomCornerRadius: 14, ShadowRadius: 12}
	case CalendarActivity:
		return Configuration{Width: 360, Height: 80, TopCornerRadius: 12, BottomCornerRadius: 18, ShadowRadius: 18}
	default: // Collapsed
		return Configuration{Width: 200, Height: 32, TopCornerRadius: 6, BottomCornerRadius: 10, ShadowRadius: 8}
	}
}
