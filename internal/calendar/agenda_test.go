package calendar

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAgenda(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestProvider(t *testing.T, path string, lookahead time.Duration) *AgendaProvider {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewAgendaProvider(path, lookahead, logger)
}

func TestLoadAgendaSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agenda.yaml")
	writeAgenda(t, path, `
events:
  - id: later
    title: Later meeting
    start: 2026-08-26T15:00:00Z
  - id: sooner
    title: Sooner meeting
    start: 2026-08-26T10:00:00Z
  - title: missing id, skipped
    start: 2026-08-26T11:00:00Z
`)

	events, err := loadAgenda(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "sooner", events[0].Key)
	assert.Equal(t, "later", events[1].Key)
}

func TestLoadAgendaMissingFile(t *testing.T) {
	events, err := loadAgenda(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestLoadAgendaInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agenda.yaml")
	writeAgenda(t, path, "events: [not: valid: yaml")

	_, err := loadAgenda(path)
	assert.Error(t, err)
}

func TestNextEventStartingSoon(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agenda.yaml")

	base := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	writeAgenda(t, path, `
events:
  - id: past
    title: Already started
    start: 2026-08-26T08:00:00Z
  - id: soon
    title: Standup
    start: 2026-08-26T09:10:00Z
  - id: far
    title: Way out
    start: 2026-08-27T09:00:00Z
`)

	p := newTestProvider(t, path, time.Hour)
	p.now = func() time.Time { return base }
	require.NoError(t, p.ReloadEvents())

	ev, err := p.NextEventStartingSoon()
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "soon", ev.Key)
	assert.Equal(t, "Standup", ev.Title)
}

func TestNextEventNoneWithinLookahead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agenda.yaml")
	writeAgenda(t, path, `
events:
  - id: far
    title: Way out
    start: 2026-08-27T09:00:00Z
`)

	p := newTestProvider(t, path, time.Hour)
	p.now = func() time.Time { return time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, p.ReloadEvents())

	ev, err := p.NextEventStartingSoon()
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestSuspendAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agenda.yaml")
	writeAgenda(t, path, `
events:
  - id: one
    title: First
    start: 2026-08-26T09:10:00Z
`)

	p := newTestProvider(t, path, time.Hour)
	p.now = func() time.Time { return time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, p.ReloadEvents())

	p.SuspendUpdates()

	writeAgenda(t, path, `
events:
  - id: two
    title: Second
    start: 2026-08-26T09:20:00Z
`)

	// File change callbacks are ignored while suspended.
	p.onFileChanged()
	ev, err := p.NextEventStartingSoon()
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "one", ev.Key)

	// ReloadEvents clears the suspension and picks up the new contents.
	require.NoError(t, p.ReloadEvents())
	ev, err = p.NextEventStartingSoon()
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "two", ev.Key)
}

func TestWatcherTriggersReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agenda.yaml")
	writeAgenda(t, path, `
events:
  - id: one
    title: First
    start: 2026-08-26T09:10:00Z
`)

	p := newTestProvider(t, path, time.Hour)
	p.now = func() time.Time { return time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, p.Start())
	defer p.Stop()

	writeAgenda(t, path, `
events:
  - id: two
    title: Second
    start: 2026-08-26T09:20:00Z
`)

	require.Eventually(t, func() bool {
		ev, err := p.NextEventStartingSoon()
		return err == nil && ev != nil && ev.Key == "two"
	}, 2*time.Second, 20*time.Millisecond)
}
