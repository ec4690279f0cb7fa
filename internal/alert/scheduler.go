package alert

import (
	"log/slog"
	"math"
	"time"

	"github.com/notchd/notchd/internal/event"
	"github.com/notchd/notchd/internal/runloop"
)

// noPrior marks the absence of a previous tick's remaining time. Treated as
// "infinitely far away" so the first tick inside a threshold window counts
// as an edge crossing.
const noPrior = time.Duration(math.MaxInt64)

const (
	countdownWindow = time.Minute
	fiveWindow      = 5 * time.Minute
	fifteenWindow   = 15 * time.Minute
)

// Scheduler polls the calendar provider on a fixed interval and drives the
// alert phase state machine. Threshold phases are edge-triggered: only the
// crossing into a window fires a new alert, never the ticks inside it.
//
// All methods must be called on the run loop.
type Scheduler struct {
	loop     *runloop.Loop
	bus      *event.Bus
	provider Provider
	logger   *slog.Logger

	settings Settings
	now      func() time.Time

	// onLive tells the coordinator whether a calendar activity is visible.
	onLive func(live bool)
	// onEnterPhase fires once per phase entry (chime hook).
	onEnterPhase func(Phase)

	poll             *runloop.Ticker
	expire           *runloop.Timer
	fade             *runloop.Timer
	settingsDebounce *runloop.Timer

	phase      Phase
	remaining  time.Duration
	eventKey   string
	eventTitle string

	// lastRemaining is the previous tick's remaining time, used for
	// edge-triggering the 5/15-minute thresholds.
	lastRemaining time.Duration
	// dismissedKey suppresses a just-expired event until the provider
	// returns a different one.
	dismissedKey string

	// Reentrancy guards: a tick arriving while an evaluation runs is
	// coalesced into a single follow-up run.
	processing        bool
	pendingEvaluation bool

	paused bool

	// Tunable delays, defaulted in NewScheduler.
	countdownGrace  time.Duration // added to remaining for the countdown expiry
	thresholdExpiry time.Duration // visibility of 5/15-minute alerts
	fadeDelay       time.Duration // deferral before zeroing visible state
	settingsDelay   time.Duration // debounce for settings bursts
}

// NewScheduler creates a scheduler. It does not start polling until Start.
func NewScheduler(loop *runloop.Loop, bus *event.Bus, provider Provider, settings Settings, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		loop:     loop,
		bus:      bus,
		provider: provider,
		logger:   logger,
		settings: settings,
		now:      time.Now,

		lastRemaining: noPrior,

		countdownGrace:  time.Second,
		thresholdExpiry: 12 * time.Second,
		fadeDelay:       250 * time.Millisecond,
		settingsDelay:   100 * time.Millisecond,
	}
}

// SetLiveCallback sets the coordinator hook for calendar-activity visibility.
func (s *Scheduler) SetLiveCallback(fn func(live bool)) { s.onLive = fn }

// SetEnterPhaseCallback sets the hook fired once per phase entry.
func (s *Scheduler) SetEnterPhaseCallback(fn func(Phase)) { s.onEnterPhase = fn }

// Activity returns the currently visible activity.
func (s *Scheduler) Activity() Activity {
	return Activity{Phase: s.phase, Remaining: s.remaining, EventKey: s.eventKey, Title: s.eventTitle}
}

// Paused reports whether the scheduler is suspended.
func (s *Scheduler) Paused() bool { return s.paused }

// Start begins polling and runs one evaluation immediately.
func (s *Scheduler) Start() {
	if s.poll != nil {
		return
	}
	s.poll = s.loop.Every(s.settings.PollInterval, s.Evaluate)
	s.Evaluate()
}

// Stop cancels all timers. The scheduler can be restarted with Start.
func (s *Scheduler) Stop() {
	s.poll.Stop()
	s.poll = nil
	s.expire.Stop()
	s.expire = nil
	s.fade.Stop()
	s.fade = nil
	s.settingsDebounce.Stop()
	s.settingsDebounce = nil
}

// Pause suspends polling and cancels any expiration timer. Only the
// sleep/wake orchestrator calls this.
func (s *Scheduler) Pause() {
	if s.paused {
		return
	}
	s.paused = true
	s.poll.Stop()
	s.poll = nil
	s.expire.Stop()
	s.expire = nil
	s.provider.SuspendUpdates()
	s.logger.Debug("alert scheduler paused")
}

// Resume reloads calendar data, restarts polling and forces one evaluation.
func (s *Scheduler) Resume() {
	if !s.paused {
		return
	}
	s.paused = false
	if err := s.provider.ReloadEvents(); err != nil {
		s.logger.Debug("calendar reload failed", "error", err)
	}
	s.poll.Stop()
	s.poll = s.loop.Every(s.settings.PollInterval, s.Evaluate)
	s.logger.Debug("alert scheduler resumed")
	s.Evaluate()
}

// SettingsChanged schedules a debounced re-evaluation with new settings,
// coalescing bursts of setting writes.
func (s *Scheduler) SettingsChanged(settings Settings) {
	s.settingsDebounce.Stop()
	s.settingsDebounce = s.loop.After(s.settingsDelay, func() {
		s.settingsDebounce = nil
		s.applySettings(settings)
	})
}

func (s *Scheduler) applySettings(settings Settings) {
	restartPoll := s.poll != nil && settings.PollInterval != s.settings.PollInterval
	s.settings = settings
	if restartPoll {
		s.poll.Stop()
		s.poll = s.loop.Every(s.settings.PollInterval, s.Evaluate)
	}
	s.logger.Debug("alert settings applied",
		"enabled", settings.Enabled,
		"alerts_enabled", settings.AlertsEnabled,
		"poll_interval", settings.PollInterval,
	)
	s.Evaluate()
}

// Evaluate runs one scheduler evaluation. A request arriving while an
// evaluation is in progress is coalesced into exactly one follow-up run.
func (s *Scheduler) Evaluate() {
	if s.paused {
		return
	}
	if s.processing {
		s.pendingEvaluation = true
		return
	}

	s.processing = true
	s.evaluateOnce()
	s.processing = false

	if s.pendingEvaluation {
		s.pendingEvaluation = false
		s.processing = true
		s.evaluateOnce()
		s.processing = false
	}
}

func (s *Scheduler) evaluateOnce() {
	if !s.settings.Enabled || !s.settings.AlertsEnabled {
		s.reset(false)
		return
	}

	ev, err := s.provider.NextEventStartingSoon()
	if err != nil {
		// Transient unavailability is a reset, never a failure.
		s.logger.Debug("calendar query failed", "error", err)
		s.reset(false)
		return
	}
	if ev == nil || ev.Key == s.dismissedKey {
		s.reset(false)
		return
	}

	remaining := ev.Start.Sub(s.now())
	prev := s.lastRemaining
	s.lastRemaining = remaining

	switch {
	case remaining < 0:
		// Event started: dismiss it so it cannot re-trigger.
		s.dismissedKey = ev.Key
		s.logger.Debug("event started, dismissing", "event_key", ev.Key)
		s.reset(false)

	case remaining < countdownWindow && s.settings.OneMinute:
		s.enterCountdown(ev, remaining)

	case remaining >= countdownWindow && remaining < fiveWindow && s.settings.FiveMinute && prev > fiveWindow:
		s.enterThreshold(PhaseFiveMinute, ev, remaining)

	case remaining >= fiveWindow && remaining < fifteenWindow && s.settings.FifteenMinute && prev > fifteenWindow:
		s.enterThreshold(PhaseFifteenMinute, ev, remaining)
	}
}

// enterCountdown shows (or updates) the final-minute countdown. The
// expiration timer is armed only on first entry, for remaining plus a
// grace period, and marks the event dismissed when it fires.
func (s *Scheduler) enterCountdown(ev *Event, remaining time.Duration) {
	firstEntry := s.phase != PhaseCountdown || s.eventKey != ev.Key

	s.fade.Stop()
	s.fade = nil
	s.phase = PhaseCountdown
	s.remaining = remaining
	s.eventKey = ev.Key
	s.eventTitle = ev.Title

	if firstEntry {
		s.expire.Stop()
		s.expire = s.loop.After(remaining+s.countdownGrace, func() {
			s.expire = nil
			s.reset(true)
		})
		s.logger.Info("countdown started", "event_key", ev.Key, "remaining", remaining)
		s.notifyEnter()
	}

	s.publish()
}

// enterThreshold shows an edge-triggered 5/15-minute alert with a fixed
// expiry that clears the phase only, so later thresholds can still fire
// for the same event.
func (s *Scheduler) enterThreshold(p Phase, ev *Event, remaining time.Duration) {
	s.fade.Stop()
	s.fade = nil
	s.phase = p
	s.remaining = remaining
	s.eventKey = ev.Key
	s.eventTitle = ev.Title

	s.expire.Stop()
	s.expire = s.loop.After(s.thresholdExpiry, func() {
		s.expire = nil
		s.clearVisible()
	})

	s.logger.Info("alert threshold crossed", "phase", p.String(), "event_key", ev.Key, "remaining", remaining)
	s.notifyEnter()
	s.publish()
}

// reset cancels the expiration timer and clears any visible state. When
// markDismissed is set, the current event key is remembered so it cannot
// re-trigger.
func (s *Scheduler) reset(markDismissed bool) {
	if markDismissed && s.eventKey != "" {
		s.dismissedKey = s.eventKey
	}
	s.expire.Stop()
	s.expire = nil
	s.lastRemaining = noPrior
	s.clearVisible()
}

// clearVisible defers zeroing visible state by the fade delay so an
// out-animation can complete. A no-op when nothing is visible.
func (s *Scheduler) clearVisible() {
	if s.phase == PhaseNone {
		return
	}
	if s.fade != nil && !s.fade.Stopped() {
		return // clear already deferred
	}
	s.fade = s.loop.After(s.fadeDelay, func() {
		s.fade = nil
		s.clearNow()
	})
}

func (s *Scheduler) clearNow() {
	s.phase = PhaseNone
	s.remaining = 0
	s.eventKey = ""
	s.eventTitle = ""
	if s.onLive != nil {
		s.onLive(false)
	}
	s.publish()
}

func (s *Scheduler) notifyEnter() {
	if s.onLive != nil {
		s.onLive(true)
	}
	if s.onEnterPhase != nil {
		s.onEnterPhase(s.phase)
	}
}

func (s *Scheduler) publish() {
	if s.bus != nil {
		s.bus.Publish(event.TopicPhaseChanged, s.Activity())
	}
}
