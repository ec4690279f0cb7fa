package dbusctl

import (
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	shows    []string
	hides    int
	enables  int
	disables int
	refreshS int
	hovers   []bool
	status   Status
	err      error
}

func (f *fakeController) Show(screen string) error { f.shows = append(f.shows, screen); return f.err }
func (f *fakeController) Hide() error              { f.hides++; return f.err }
func (f *fakeController) Enable() error            { f.enables++; return f.err }
func (f *fakeController) Disable() error           { f.disables++; return f.err }
func (f *fakeController) RefreshWindow() error     { f.refreshS++; return f.err }
func (f *fakeController) HoverChanged(inside bool) { f.hovers = append(f.hovers, inside) }
func (f *fakeController) Status() Status           { return f.status }

func TestMethodsDelegateToController(t *testing.T) {
	f := &fakeController{}
	s := NewServer(f, nil)

	require.Nil(t, s.Show("DP-1"))
	require.Nil(t, s.Hide())
	require.Nil(t, s.Enable())
	require.Nil(t, s.Disable())
	require.Nil(t, s.Refresh())
	require.Nil(t, s.HoverChanged(true))

	assert.Equal(t, []string{"DP-1"}, f.shows)
	assert.Equal(t, 1, f.hides)
	assert.Equal(t, 1, f.enables)
	assert.Equal(t, 1, f.disables)
	assert.Equal(t, 1, f.refreshS)
	assert.Equal(t, []bool{true}, f.hovers)
}

func TestMethodsWrapControllerErrors(t *testing.T) {
	f := &fakeController{err: errors.New("nope")}
	s := NewServer(f, nil)

	assert.NotNil(t, s.Show(""))
	assert.NotNil(t, s.Hide())
	assert.NotNil(t, s.Enable())
	assert.NotNil(t, s.Disable())
	assert.NotNil(t, s.Refresh())
}

func TestGetStatusRoundTrip(t *testing.T) {
	started := time.Unix(1756166400, 0)
	f := &fakeController{status: Status{
		Enabled:          true,
		Visible:          true,
		Screen:           "eDP-1",
		State:            "calendarActivity",
		Phase:            "fiveMinute",
		RemainingSeconds: 240,
		EventTitle:       "Standup",
		MediaPlaying:     true,
		NowPlaying:       "First, Second - Holding Pattern",
		StartedAt:        started,
		Version:          "1.2.3",
	}}
	s := NewServer(f, nil)

	raw, derr := s.GetStatus()
	require.Nil(t, derr)

	st := statusFromMap(raw)
	assert.Equal(t, f.status, st)
}

func TestStatusFromMapMissingKeys(t *testing.T) {
	st := statusFromMap(map[string]dbus.Variant{
		"enabled": dbus.MakeVariant(true),
	})
	assert.True(t, st.Enabled)
	assert.Empty(t, st.State)
	assert.True(t, st.StartedAt.IsZero())
}

func TestEmitBeforeStartIsNoOp(t *testing.T) {
	s := NewServer(&fakeController{}, nil)
	assert.NoError(t, s.EmitStateChanged("collapsed"))
	assert.NoError(t, s.EmitPhaseChanged("countdown", 42))
}
