// Package media detects playback activity by watching MPRIS players on
// the session bus.
package media

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	mprisPrefix       = "org.mpris.MediaPlayer2."
	mprisPath         = "/org/mpris/MediaPlayer2"
	playerInterface   = "org.mpris.MediaPlayer2.Player"
	propertiesChanged = "org.freedesktop.DBus.Properties.PropertiesChanged"
	nameOwnerChanged  = "org.freedesktop.DBus.NameOwnerChanged"
)

// TrackInfo describes what a player reports it is playing.
type TrackInfo struct {
	Title  string
	Artist string
	Album  string
}

// ChangeHandler receives the aggregated playback state: whether any
// player is playing, plus track details from one playing player.
type ChangeHandler func(playing bool, track TrackInfo)

type playerState struct {
	playing bool
	track   TrackInfo
}

// Watcher tracks PlaybackStatus across every MPRIS player on the bus and
// reports the aggregate. Callbacks run on the watcher's goroutine.
type Watcher struct {
	logger   *slog.Logger
	onChange ChangeHandler

	conn    *dbus.Conn
	signals chan *dbus.Signal

	mu      sync.Mutex
	players map[string]playerState
	running bool
	done    chan struct{}

	lastPlaying bool
	lastTrack   TrackInfo
	reported    bool
}

// NewWatcher creates an unstarted media watcher.
func NewWatcher(logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		logger:  logger,
		players: make(map[string]playerState),
		done:    make(chan struct{}),
	}
}

// SetChangeHandler sets the aggregate playback callback.
func (w *Watcher) SetChangeHandler(fn ChangeHandler) {
	w.onChange = fn
}

// Start connects to the session bus, scans the players already present,
// and begins following property changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	w.conn = conn

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(mprisPath),
	); err != nil {
		return fmt.Errorf("failed to subscribe to player properties: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg0Namespace("org.mpris.MediaPlayer2"),
	); err != nil {
		w.logger.Warn("NameOwnerChanged subscription failed, stale players may linger", "error", err)
	}

	w.signals = make(chan *dbus.Signal, 32)
	conn.Signal(w.signals)

	w.scanExistingPlayers()

	go w.processSignals()
	w.logger.Info("media watcher started")
	return nil
}

// scanExistingPlayers seeds the player map from names already on the bus.
func (w *Watcher) scanExistingPlayers() {
	var names []string
	if err := w.conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		w.logger.Warn("failed to list bus names", "error", err)
		return
	}

	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		obj := w.conn.Object(name, mprisPath)

		var st playerState
		if v, err := obj.GetProperty(playerInterface + ".PlaybackStatus"); err == nil {
			if status, ok := v.Value().(string); ok {
				st.playing = status == "Playing"
			}
		}
		if v, err := obj.GetProperty(playerInterface + ".Metadata"); err == nil {
			st.track = parseMetadata(v)
		}

		// PropertiesChanged arrives with the unique name as sender, so
		// the map is keyed by unique name. Fall back to the well-known
		// name if the owner lookup races with the player exiting.
		key := name
		var owner string
		if err := w.conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, name).Store(&owner); err == nil && owner != "" {
			key = owner
		}

		w.mu.Lock()
		w.players[key] = st
		w.mu.Unlock()
		w.logger.Debug("found media player", "name", name, "owner", key, "playing", st.playing)
	}
	w.emitIfChanged()
}

func (w *Watcher) processSignals() {
	for {
		select {
		case sig, ok := <-w.signals:
			if !ok {
				return
			}
			w.handleSignal(sig)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case propertiesChanged:
		w.handlePropertiesChanged(sig)
	case nameOwnerChanged:
		w.handleNameOwnerChanged(sig)
	}
}

// handlePropertiesChanged updates one player's state from a
// PropertiesChanged signal on the MPRIS object path.
func (w *Watcher) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok || iface != playerInterface {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	key := sig.Sender

	w.mu.Lock()
	st := w.players[key]
	if v, found := changed["PlaybackStatus"]; found {
		if status, ok := v.Value().(string); ok {
			st.playing = status == "Playing"
		}
	}
	if v, found := changed["Metadata"]; found {
		st.track = parseMetadata(v)
	}
	w.players[key] = st
	w.mu.Unlock()

	w.emitIfChanged()
}

// handleNameOwnerChanged drops players that left the bus. Entries may be
// keyed by the well-known name (initial scan fallback) or by the unique
// name PropertiesChanged reports as sender, so both are removed.
func (w *Watcher) handleNameOwnerChanged(sig *dbus.Signal) {
	if len(sig.Body) < 3 {
		return
	}
	name, _ := sig.Body[0].(string)
	oldOwner, _ := sig.Body[1].(string)
	newOwner, _ := sig.Body[2].(string)
	if !strings.HasPrefix(name, mprisPrefix) || newOwner != "" {
		return
	}

	w.mu.Lock()
	delete(w.players, name)
	if oldOwner != "" {
		delete(w.players, oldOwner)
	}
	w.mu.Unlock()

	w.logger.Debug("media player left", "name", name, "owner", oldOwner)
	w.emitIfChanged()
}

// emitIfChanged recomputes the aggregate and fires the callback when the
// playing flag or the reported track changed. Players are visited in key
// order so the reported track is stable while the same set is playing.
func (w *Watcher) emitIfChanged() {
	w.mu.Lock()
	keys := make([]string, 0, len(w.players))
	for key := range w.players {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	playing := false
	var track TrackInfo
	for _, key := range keys {
		if st := w.players[key]; st.playing {
			playing = true
			track = st.track
			break
		}
	}

	changed := !w.reported || playing != w.lastPlaying || track != w.lastTrack
	w.reported = true
	w.lastPlaying = playing
	w.lastTrack = track
	handler := w.onChange
	w.mu.Unlock()

	if changed && handler != nil {
		handler(playing, track)
	}
}

// parseMetadata extracts track details from an MPRIS Metadata variant.
func parseMetadata(v dbus.Variant) TrackInfo {
	var track TrackInfo
	meta, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return track
	}
	if t, ok := meta["xesam:title"].Value().(string); ok {
		track.Title = t
	}
	if artists, ok := meta["xesam:artist"].Value().([]string); ok && len(artists) > 0 {
		track.Artist = strings.Join(artists, ", ")
	}
	if a, ok := meta["xesam:album"].Value().(string); ok {
		track.Album = a
	}
	return track
}

// Stop unsubscribes from the bus. The session connection is shared with
// the rest of the process and stays open.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.done)

	if w.conn != nil {
		w.conn.RemoveSignal(w.signals)
		_ = w.conn.RemoveMatchSignal(
			dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
			dbus.WithMatchMember("PropertiesChanged"),
			dbus.WithMatchObjectPath(mprisPath),
		)
		_ = w.conn.RemoveMatchSignal(
			dbus.WithMatchInterface("org.freedesktop.DBus"),
			dbus.WithMatchMember("NameOwnerChanged"),
			dbus.WithMatchArg0Namespace("org.mpris.MediaPlayer2"),
		)
	}
	return nil
}
