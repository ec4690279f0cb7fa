package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/notchd/notchd/internal/alert"
	"github.com/notchd/notchd/internal/audio"
	"github.com/notchd/notchd/internal/calendar"
	"github.com/notchd/notchd/internal/config"
	"github.com/notchd/notchd/internal/dbusctl"
	"github.com/notchd/notchd/internal/event"
	"github.com/notchd/notchd/internal/hover"
	"github.com/notchd/notchd/internal/lifecycle"
	"github.com/notchd/notchd/internal/media"
	"github.com/notchd/notchd/internal/power"
	"github.com/notchd/notchd/internal/runloop"
	"github.com/notchd/notchd/internal/state"
	"github.com/notchd/notchd/internal/window"
)

// Options configures a Runtime.
type Options struct {
	// Backend creates overlay windows. Required.
	Backend window.Backend
	// Provider supplies upcoming events. Nil selects the agenda file
	// provider configured in [calendar].
	Provider alert.Provider
	// ConfigPath is the config file to watch for changes. Empty disables
	// hot reload.
	ConfigPath string
	// Version is reported in GetStatus.
	Version string
	// DisableDBus skips the control server and the power/media bus
	// monitors. Used by tests that run without a session bus.
	DisableDBus bool
}

// Runtime owns every component of the daemon and the run loop they are
// confined to.
type Runtime struct {
	logger *slog.Logger
	opts   Options

	loop *runloop.Loop
	bus  *event.Bus

	cfg         *config.Config
	cfgWatcher  *config.Watcher
	coordinator *state.Coordinator
	hoverFilter *hover.Filter
	scheduler   *alert.Scheduler
	agenda      *calendar.AgendaProvider
	windows     *window.Manager
	orch        *lifecycle.Orchestrator
	powerMon    *power.Monitor
	mediaWatch  *media.Watcher
	sounds      *audio.Manager
	control     *dbusctl.Server

	stateSub     *event.Subscription
	stateWatcher *StateWatcher

	// Mutated on the loop only.
	enabled    bool
	mediaTrack media.TrackInfo
	startedAt  time.Time

	cancel context.CancelFunc
}

// New assembles a runtime from the given config and options. Nothing
// starts until Start is called.
func New(cfg *config.Config, opts Options, logger *slog.Logger) (*Runtime, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("window backend is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runtime{
		logger: logger,
		opts:   opts,
		cfg:    cfg,
		loop:   runloop.New(logger),
		bus:    event.NewBus(logger),
	}

	r.coordinator = state.NewCoordinator(r.bus, logger)

	r.hoverFilter = hover.NewFilter(r.loop, cfg.Hover.Delay.Duration(), r.coordinator.SetHovering, logger)

	provider := opts.Provider
	if provider == nil {
		agendaPath, err := cfg.AgendaPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve agenda path: %w", err)
		}
		r.agenda = calendar.NewAgendaProvider(agendaPath, 24*time.Hour, logger)
		provider = r.agenda
	}

	r.scheduler = alert.NewScheduler(r.loop, r.bus, provider, alert.SettingsFromConfig(cfg.Calendar), logger)
	r.scheduler.SetLiveCallback(r.coordinator.SetCalendarLive)

	r.windows = window.NewManager(r.loop, opts.Backend, r.bus, cfg.Window.PreferredScreen, logger)
	r.windows.SetChangeDebounce(cfg.Window.ChangeDebounce.Duration())
	r.windows.SetSettleDelay(cfg.Window.SettleDelay.Duration())
	r.windows.SetConfigurationFunc(r.coordinator.Config)

	r.orch = lifecycle.New(r.loop, r.windows, r.scheduler, r.coordinator.Recompute, logger)
	r.windows.SetSleepWakeActiveFunc(r.orch.Handling)

	r.sounds = audio.NewManager(cfg.Audio, logger)
	r.scheduler.SetEnterPhaseCallback(r.onEnterPhase)

	if !opts.DisableDBus {
		r.control = dbusctl.NewServer(r, logger)

		r.powerMon = power.NewMonitor(logger)
		r.powerMon.SetSleepHandler(func() { r.loop.Dispatch(r.orch.HandleSleep) })
		r.powerMon.SetWakeHandler(func() { r.loop.Dispatch(r.orch.HandleWake) })
		r.powerMon.SetDisplayChangeHandler(func() { r.loop.Dispatch(r.windows.HandleScreensChanged) })

		r.mediaWatch = media.NewWatcher(logger)
		r.mediaWatch.SetChangeHandler(func(playing bool, track media.TrackInfo) {
			r.loop.Dispatch(func() {
				r.mediaTrack = track
				r.coordinator.SetMediaPlaying(playing)
			})
		})
	}

	return r, nil
}

// Start brings every component up and shows the window if the widget is
// enabled.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)
	r.startedAt = time.Now()
	r.loop.Start()

	shared, err := config.LoadSharedState()
	if err != nil {
		r.logger.Warn("failed to load shared state, assuming enabled", "error", err)
		shared = config.DefaultSharedState()
	}

	if r.agenda != nil {
		if err := r.agenda.Start(); err != nil {
			return fmt.Errorf("failed to start agenda provider: %w", err)
		}
	}

	if err := r.sounds.Start(); err != nil {
		r.logger.Warn("audio startup failed, chimes disabled", "error", err)
	}

	r.stateSub = r.bus.Subscribe(event.TopicStateChanged, r.onStateChanged)

	r.loop.Call(func() {
		r.enabled = shared.Enabled
		r.scheduler.Start()
		if r.enabled {
			if err := r.windows.Show(""); err != nil {
				r.logger.Warn("initial window creation failed", "error", err)
			}
		}
	})

	if r.opts.ConfigPath != "" {
		watcher, err := config.NewWatcher(r.opts.ConfigPath, r.logger)
		if err != nil {
			r.logger.Warn("config watcher unavailable, hot reload disabled", "error", err)
		} else {
			r.cfgWatcher = watcher
			watcher.SetReloadCallback(func(newCfg *config.Config) {
				r.loop.Dispatch(func() { r.applyConfig(newCfg) })
			})
			watcher.SetErrorCallback(func(err error) {
				r.logger.Warn("config reload rejected", "error", err)
			})
			if err := watcher.Start(ctx, r.cfg); err != nil {
				r.logger.Warn("failed to start config watcher", "error", err)
			}
		}
	}

	if statePath, err := config.StateFilePath(); err == nil {
		r.stateWatcher = NewStateWatcher(statePath, r.logger)
		r.stateWatcher.SetChangeCallback(r.onSharedStateChanged)
		if err := r.stateWatcher.Start(ctx); err != nil {
			r.logger.Warn("failed to start state watcher", "error", err)
		}
	}

	if r.powerMon != nil {
		if err := r.powerMon.Start(); err != nil {
			r.logger.Warn("power monitor unavailable, sleep/wake recovery disabled", "error", err)
		}
	}
	if r.mediaWatch != nil {
		if err := r.mediaWatch.Start(); err != nil {
			r.logger.Warn("media watcher unavailable", "error", err)
		}
	}
	if r.control != nil {
		if err := r.control.Start(); err != nil {
			return fmt.Errorf("failed to start control server: %w", err)
		}
	}

	r.logger.Info("daemon started", "enabled", shared.Enabled, "version", r.opts.Version)
	return nil
}

// Stop tears everything down in reverse dependency order.
func (r *Runtime) Stop() {
	if r.cancel != nil {
		r.cancel()
	}

	if r.control != nil {
		if err := r.control.Stop(); err != nil {
			r.logger.Warn("control server stop failed", "error", err)
		}
	}
	if r.mediaWatch != nil {
		if err := r.mediaWatch.Stop(); err != nil {
			r.logger.Warn("media watcher stop failed", "error", err)
		}
	}
	if r.powerMon != nil {
		if err := r.powerMon.Stop(); err != nil {
			r.logger.Warn("power monitor stop failed", "error", err)
		}
	}
	if r.cfgWatcher != nil {
		r.cfgWatcher.Stop()
	}
	if r.stateWatcher != nil {
		r.stateWatcher.Stop()
	}
	if r.stateSub != nil {
		r.stateSub.Cancel()
	}

	r.loop.Call(func() {
		r.scheduler.Stop()
		r.orch.Stop()
		r.windows.Stop()
		r.hoverFilter.Stop()
	})
	r.loop.Stop()

	if r.agenda != nil {
		if err := r.agenda.Stop(); err != nil {
			r.logger.Warn("agenda provider stop failed", "error", err)
		}
	}
	r.sounds.Stop()

	r.logger.Info("daemon stopped")
}

// onSharedStateChanged re-reads the shared state file after an external
// edit and applies the enabled flag.
func (r *Runtime) onSharedStateChanged() {
	shared, err := config.LoadSharedState()
	if err != nil {
		r.logger.Warn("failed to reload shared state", "error", err)
		return
	}
	r.loop.Dispatch(func() {
		if shared.Enabled == r.enabled {
			return
		}
		r.enabled = shared.Enabled
		if r.enabled {
			if err := r.windows.Show(""); err != nil {
				r.logger.Warn("window creation after external enable failed", "error", err)
			}
		} else {
			r.windows.Hide()
		}
		r.logger.Info("enabled state changed externally", "enabled", r.enabled)
	})
}

// onStateChanged forwards coordinator changes to control-interface
// subscribers.
func (r *Runtime) onStateChanged(ev event.Event) {
	change, ok := ev.Payload.(state.Change)
	if !ok {
		return
	}
	if r.control != nil {
		if err := r.control.EmitStateChanged(change.State.String()); err != nil {
			r.logger.Warn("failed to emit StateChanged", "error", err)
		}
	}
}

// onEnterPhase plays the chime for a newly entered alert phase and
// notifies control-interface subscribers. Runs on the loop; playback is
// pushed off it.
func (r *Runtime) onEnterPhase(p alert.Phase) {
	activity := r.scheduler.Activity()
	go func() {
		if err := r.sounds.PlayForPhase(p); err != nil {
			r.logger.Warn("chime playback failed", "phase", p.String(), "error", err)
		}
	}()
	if r.control != nil {
		if err := r.control.EmitPhaseChanged(p.String(), int64(activity.Remaining.Seconds())); err != nil {
			r.logger.Warn("failed to emit PhaseChanged", "error", err)
		}
	}
}

// applyConfig applies a hot-reloaded config per category. Runs on the
// loop.
func (r *Runtime) applyConfig(newCfg *config.Config) {
	old := r.cfg
	r.cfg = newCfg

	if old.Hover.Delay != newCfg.Hover.Delay {
		r.hoverFilter.SetDelay(newCfg.Hover.Delay.Duration())
	}
	// The scheduler debounces settings internally, so always forward them.
	r.scheduler.SettingsChanged(alert.SettingsFromConfig(newCfg.Calendar))
	if old.Window.PreferredScreen != newCfg.Window.PreferredScreen {
		r.windows.SetPreferredScreen(newCfg.Window.PreferredScreen)
	}
	if old.Window.ChangeDebounce != newCfg.Window.ChangeDebounce {
		r.windows.SetChangeDebounce(newCfg.Window.ChangeDebounce.Duration())
	}
	if old.Window.SettleDelay != newCfg.Window.SettleDelay {
		r.windows.SetSettleDelay(newCfg.Window.SettleDelay.Duration())
	}
	if old.Audio != newCfg.Audio {
		r.sounds.UpdateConfig(newCfg.Audio)
	}

	r.bus.Publish(event.TopicSettingsChanged, newCfg)
	r.logger.Info("configuration reloaded")
}

// Show implements dbusctl.Controller.
func (r *Runtime) Show(screen string) error {
	var err error
	r.loop.Call(func() {
		err = r.windows.Show(screen)
	})
	return err
}

// Hide implements dbusctl.Controller.
func (r *Runtime) Hide() error {
	r.loop.Call(r.windows.Hide)
	return nil
}

// Enable turns the widget on and persists the choice.
func (r *Runtime) Enable() error {
	var err error
	r.loop.Call(func() {
		r.enabled = true
		err = r.windows.Show("")
	})
	if saveErr := config.SaveSharedState(&config.SharedState{
		Enabled:       true,
		SchemaVersion: config.CurrentSchemaVersion,
	}); saveErr != nil {
		r.logger.Warn("failed to persist enabled state", "error", saveErr)
	}
	return err
}

// Disable turns the widget off and persists the choice.
func (r *Runtime) Disable() error {
	r.loop.Call(func() {
		r.enabled = false
		r.windows.Hide()
	})
	if err := config.SaveSharedState(&config.SharedState{
		Enabled:       false,
		DisabledAt:    time.Now().Unix(),
		SchemaVersion: config.CurrentSchemaVersion,
	}); err != nil {
		r.logger.Warn("failed to persist disabled state", "error", err)
	}
	return nil
}

// RefreshWindow implements dbusctl.Controller.
func (r *Runtime) RefreshWindow() error {
	var err error
	r.loop.Call(func() {
		err = r.windows.Refresh()
	})
	return err
}

// HoverChanged feeds a raw hover transition through the debounce filter.
func (r *Runtime) HoverChanged(inside bool) {
	r.loop.Dispatch(func() {
		r.hoverFilter.Sample(inside)
	})
}

// State reports the coordinator's current merged state.
func (r *Runtime) State() state.NotchState {
	var s state.NotchState
	r.loop.Call(func() { s = r.coordinator.State() })
	return s
}

// Config reports the window configuration for the current state.
func (r *Runtime) Config() state.Configuration {
	var cfg state.Configuration
	r.loop.Call(func() { cfg = r.coordinator.Config() })
	return cfg
}

// IsMouseInside reports the debounced hover state.
func (r *Runtime) IsMouseInside() bool {
	var inside bool
	r.loop.Call(func() { inside = r.coordinator.Hovering() })
	return inside
}

// IsMediaPlaying reports whether any media player is active.
func (r *Runtime) IsMediaPlaying() bool {
	var playing bool
	r.loop.Call(func() { playing = r.coordinator.MediaPlaying() })
	return playing
}

// CalendarHasLiveActivity reports whether the alert scheduler is
// presenting an upcoming event.
func (r *Runtime) CalendarHasLiveActivity() bool {
	var live bool
	r.loop.Call(func() { live = r.coordinator.CalendarLive() })
	return live
}

// nowPlayingLabel formats the current track for status output. Empty when
// nothing is playing.
func nowPlayingLabel(playing bool, track media.TrackInfo) string {
	if !playing || track.Title == "" {
		return ""
	}
	if track.Artist == "" {
		return track.Title
	}
	return track.Artist + " - " + track.Title
}

// Status implements dbusctl.Controller.
func (r *Runtime) Status() dbusctl.Status {
	var st dbusctl.Status
	r.loop.Call(func() {
		activity := r.scheduler.Activity()
		st = dbusctl.Status{
			Enabled:          r.enabled,
			Visible:          r.windows.Visible(),
			State:            r.coordinator.State().String(),
			Phase:            activity.Phase.String(),
			RemainingSeconds: int64(activity.Remaining.Seconds()),
			EventTitle:       activity.Title,
			MediaPlaying:     r.coordinator.MediaPlaying(),
			NowPlaying:       nowPlayingLabel(r.coordinator.MediaPlaying(), r.mediaTrack),
			StartedAt:        r.startedAt,
			Version:          r.opts.Version,
		}
		if screen := r.windows.BoundScreen(); screen != nil {
			st.Screen = screen.Name
		}
	})
	return st
}
