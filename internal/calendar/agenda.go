// Package calendar implements the calendar collaborator over a local
// agenda file. Desktop calendar sync tools can write the agenda; notchd
// only ever reads it.
package calendar

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/notchd/notchd/internal/alert"
)

// agendaEntry is one event in the agenda file.
type agendaEntry struct {
	ID    string    `yaml:"id"`
	Title string    `yaml:"title"`
	Start time.Time `yaml:"start"`
}

// agendaFile is the on-disk agenda document.
type agendaFile struct {
	Events []agendaEntry `yaml:"events"`
}

// AgendaProvider reads upcoming events from a YAML agenda file and keeps
// them fresh via a file watcher. It implements alert.Provider.
type AgendaProvider struct {
	mu     sync.RWMutex
	logger *slog.Logger

	path      string
	lookahead time.Duration
	now       func() time.Time

	events    []alert.Event
	suspended bool

	watcher *fileWatcher
}

// NewAgendaProvider creates a provider for the agenda file at path.
// Events further out than the lookahead are ignored.
func NewAgendaProvider(path string, lookahead time.Duration, logger *slog.Logger) *AgendaProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if lookahead <= 0 {
		lookahead = 24 * time.Hour
	}
	return &AgendaProvider{
		logger:    logger,
		path:      path,
		lookahead: lookahead,
		now:       time.Now,
	}
}

// Start loads the agenda and begins watching the file for changes.
// A missing agenda file is not an error; it simply yields no events.
func (p *AgendaProvider) Start() error {
	if err := p.ReloadEvents(); err != nil {
		p.logger.Warn("initial agenda load failed", "path", p.path, "error", err)
	}

	watcher, err := newFileWatcher(p.path, p.onFileChanged, p.logger)
	if err != nil {
		return fmt.Errorf("failed to create agenda watcher: %w", err)
	}
	p.watcher = watcher
	return watcher.Start()
}

// Stop stops the file watcher.
func (p *AgendaProvider) Stop() error {
	if p.watcher == nil {
		return nil
	}
	return p.watcher.Stop()
}

func (p *AgendaProvider) onFileChanged() {
	p.mu.RLock()
	suspended := p.suspended
	p.mu.RUnlock()
	if suspended {
		return
	}
	if err := p.ReloadEvents(); err != nil {
		p.logger.Warn("agenda reload failed", "path", p.path, "error", err)
	}
}

// NextEventStartingSoon returns the earliest event that has not started
// yet and is within the lookahead window, or nil.
func (p *AgendaProvider) NextEventStartingSoon() (*alert.Event, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := p.now()
	horizon := now.Add(p.lookahead)
	for i := range p.events {
		ev := p.events[i]
		if ev.Start.Before(now) {
			continue
		}
		if ev.Start.After(horizon) {
			break
		}
		return &ev, nil
	}
	return nil, nil
}

// SuspendUpdates pauses reacting to agenda file changes, e.g. across sleep.
func (p *AgendaProvider) SuspendUpdates() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspended = true
}

// ReloadEvents re-reads the agenda file and clears any suspension.
func (p *AgendaProvider) ReloadEvents() error {
	events, err := loadAgenda(p.path)

	p.mu.Lock()
	p.suspended = false
	if err == nil {
		p.events = events
	}
	p.mu.Unlock()

	if err != nil {
		return err
	}
	p.logger.Debug("agenda loaded", "path", p.path, "events", len(events))
	return nil
}

// loadAgenda parses the agenda file into events sorted by start time.
// A missing file yields an empty agenda.
func loadAgenda(path string) ([]alert.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read agenda: %w", err)
	}

	var doc agendaFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse agenda: %w", err)
	}

	events := make([]alert.Event, 0, len(doc.Events))
	for _, e := range doc.Events {
		if e.ID == "" || e.Start.IsZero() {
			continue
		}
		events = append(events, alert.Event{Key: e.ID, Title: e.Title, Start: e.Start})
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events, nil
}
