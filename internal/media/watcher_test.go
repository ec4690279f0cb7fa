package media

import (
	"log/slog"
	"os"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emission struct {
	playing bool
	track   TrackInfo
}

func newTestWatcher() (*Watcher, *[]emission) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	w := NewWatcher(logger)
	var emissions []emission
	w.SetChangeHandler(func(playing bool, track TrackInfo) {
		emissions = append(emissions, emission{playing, track})
	})
	return w, &emissions
}

func playbackSignal(sender, status string) *dbus.Signal {
	return &dbus.Signal{
		Sender: sender,
		Name:   propertiesChanged,
		Body: []any{
			playerInterface,
			map[string]dbus.Variant{
				"PlaybackStatus": dbus.MakeVariant(status),
			},
			[]string{},
		},
	}
}

func metadataSignal(sender string, meta map[string]dbus.Variant) *dbus.Signal {
	return &dbus.Signal{
		Sender: sender,
		Name:   propertiesChanged,
		Body: []any{
			playerInterface,
			map[string]dbus.Variant{
				"Metadata": dbus.MakeVariant(meta),
			},
			[]string{},
		},
	}
}

func TestPlaybackStatusAggregation(t *testing.T) {
	w, emissions := newTestWatcher()

	w.handleSignal(playbackSignal(":1.10", "Playing"))
	require.Len(t, *emissions, 1)
	assert.True(t, (*emissions)[0].playing)

	// A second player starting changes nothing in the aggregate.
	w.handleSignal(playbackSignal(":1.20", "Playing"))
	assert.Len(t, *emissions, 1)

	// One stops, the other still plays.
	w.handleSignal(playbackSignal(":1.10", "Paused"))
	assert.Len(t, *emissions, 1)

	// Both stopped.
	w.handleSignal(playbackSignal(":1.20", "Stopped"))
	require.Len(t, *emissions, 2)
	assert.False(t, (*emissions)[1].playing)
}

func TestMetadataParsing(t *testing.T) {
	w, emissions := newTestWatcher()

	w.handleSignal(metadataSignal(":1.10", map[string]dbus.Variant{
		"xesam:title":  dbus.MakeVariant("Holding Pattern"),
		"xesam:artist": dbus.MakeVariant([]string{"First", "Second"}),
		"xesam:album":  dbus.MakeVariant("Departures"),
	}))
	w.handleSignal(playbackSignal(":1.10", "Playing"))

	require.NotEmpty(t, *emissions)
	last := (*emissions)[len(*emissions)-1]
	assert.True(t, last.playing)
	assert.Equal(t, "Holding Pattern", last.track.Title)
	assert.Equal(t, "First, Second", last.track.Artist)
	assert.Equal(t, "Departures", last.track.Album)
}

func TestParseMetadataMalformed(t *testing.T) {
	assert.Equal(t, TrackInfo{}, parseMetadata(dbus.MakeVariant("not a map")))
	assert.Equal(t, TrackInfo{}, parseMetadata(dbus.MakeVariant(map[string]dbus.Variant{
		"xesam:title": dbus.MakeVariant(42),
	})))
}

func TestNameOwnerChangedRemovesPlayer(t *testing.T) {
	w, emissions := newTestWatcher()

	w.handleSignal(playbackSignal(":1.10", "Playing"))
	require.Len(t, *emissions, 1)

	// Player owning :1.10 is tracked by sender, but NameOwnerChanged
	// reports the well-known name; simulate a player keyed by it.
	w.handleSignal(&dbus.Signal{
		Sender: mprisPrefix + "vlc",
		Name:   propertiesChanged,
		Body: []any{
			playerInterface,
			map[string]dbus.Variant{"PlaybackStatus": dbus.MakeVariant("Playing")},
			[]string{},
		},
	})

	w.handleSignal(&dbus.Signal{
		Name: nameOwnerChanged,
		Body: []any{mprisPrefix + "vlc", ":1.30", ""},
	})

	// The sender-keyed player still plays, so the aggregate is unchanged.
	w.mu.Lock()
	_, present := w.players[mprisPrefix+"vlc"]
	w.mu.Unlock()
	assert.False(t, present)

	// Remove the remaining player too.
	w.handleSignal(playbackSignal(":1.10", "Stopped"))
	last := (*emissions)[len(*emissions)-1]
	assert.False(t, last.playing)
}

func TestNameOwnerChangedRemovesUniqueNameEntry(t *testing.T) {
	w, emissions := newTestWatcher()

	// Property changes arrive with the unique name as sender, so that is
	// the map key even though the exit notice names the well-known name.
	w.handleSignal(playbackSignal(":1.42", "Playing"))
	require.Len(t, *emissions, 1)
	assert.True(t, (*emissions)[0].playing)

	w.handleSignal(&dbus.Signal{
		Name: nameOwnerChanged,
		Body: []any{mprisPrefix + "vlc", ":1.42", ""},
	})

	require.Len(t, *emissions, 2)
	last := (*emissions)[len(*emissions)-1]
	assert.False(t, last.playing)

	w.mu.Lock()
	_, present := w.players[":1.42"]
	w.mu.Unlock()
	assert.False(t, present)
}

func TestAggregateTrackIsStable(t *testing.T) {
	w, emissions := newTestWatcher()

	w.handleSignal(metadataSignal(":1.10", map[string]dbus.Variant{
		"xesam:title": dbus.MakeVariant("First Track"),
	}))
	w.handleSignal(playbackSignal(":1.10", "Playing"))
	w.handleSignal(metadataSignal(":1.20", map[string]dbus.Variant{
		"xesam:title": dbus.MakeVariant("Second Track"),
	}))
	w.handleSignal(playbackSignal(":1.20", "Playing"))

	// With both playing the lowest key wins, so repeated evaluation does
	// not flap between tracks.
	before := len(*emissions)
	for i := 0; i < 10; i++ {
		w.emitIfChanged()
	}
	assert.Len(t, *emissions, before)
	last := (*emissions)[len(*emissions)-1]
	assert.Equal(t, "First Track", last.track.Title)
}

func TestIgnoresOtherInterfaces(t *testing.T) {
	w, emissions := newTestWatcher()

	w.handleSignal(&dbus.Signal{
		Sender: ":1.10",
		Name:   propertiesChanged,
		Body: []any{
			"org.mpris.MediaPlayer2",
			map[string]dbus.Variant{"Fullscreen": dbus.MakeVariant(true)},
			[]string{},
		},
	})
	assert.Empty(t, *emissions)
}
