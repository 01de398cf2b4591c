package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcin-skalski/review-radar/internal/bus"
	"github.com/marcin-skalski/review-radar/internal/daemon"
	"github.com/marcin-skalski/review-radar/internal/github"
)

const requestTimeout = 30 * time.Second

type Options struct {
	RefreshInterval time.Duration
	// Events, when set, triggers a reload as soon as the daemon publishes.
	Events <-chan bus.Event
	// OpenURL defaults to OpenBrowser.
	OpenURL func(string) error
}

type Model struct {
	sender   Sender
	opts     Options
	keys     keyMap
	spinner  spinner.Model
	snapshot Snapshot
	tab      int
	selected int
	busy     bool
	status   string
	now      func() time.Time
}

type (
	tickMsg     time.Time
	snapshotMsg struct {
		snap Snapshot
		err  error
	}
	eventMsg   bus.Event
	refreshMsg struct {
		category github.Category
		err      error
	}
	dismissedMsg struct{ err error }
)

func NewModel(sender Sender, opts Options) Model {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 3 * time.Second
	}
	if opts.OpenURL == nil {
		opts.OpenURL = OpenBrowser
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	return Model{
		sender:  sender,
		opts:    opts,
		keys:    newKeyMap(),
		spinner: s,
		now:     time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), tickCmd(m.opts.RefreshInterval), m.waitEvent())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m, tea.Batch(m.loadCmd(), tickCmd(m.opts.RefreshInterval))

	case eventMsg:
		if msg.Type == bus.EventFetchError {
			m.status = "fetch failed: " + msg.Message
		}
		return m, tea.Batch(m.loadCmd(), m.waitEvent())

	case snapshotMsg:
		if msg.err != nil {
			m.status = "daemon unreachable: " + msg.err.Error()
			return m, nil
		}
		m.snapshot = msg.snap
		m.clampSelection()
		return m, nil

	case refreshMsg:
		m.busy = false
		if msg.err != nil {
			m.status = fmt.Sprintf("refresh %s failed: %v", msg.category, msg.err)
		} else {
			m.status = fmt.Sprintf("%s refreshed", msg.category)
		}
		return m, m.loadCmd()

	case dismissedMsg:
		if msg.err != nil {
			m.status = "dismiss failed: " + msg.err.Error()
		}
		return m, m.loadCmd()

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Refresh):
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.status = ""
		return m, tea.Batch(m.refreshCmd(m.category()), m.spinner.Tick)
	case key.Matches(msg, m.keys.Dismiss):
		if m.snapshot.LastError == nil {
			return m, nil
		}
		m.snapshot.LastError = nil
		return m, m.dismissCmd()
	case key.Matches(msg, m.keys.Open):
		prs := m.snapshot.Bucket(m.category()).PRs
		if m.selected < len(prs) {
			if err := m.opts.OpenURL(prs[m.selected].URL); err != nil {
				m.status = "open browser: " + err.Error()
			}
		}
	case key.Matches(msg, m.keys.NextTab):
		m.switchTab((m.tab + 1) % len(github.Categories))
	case key.Matches(msg, m.keys.PrevTab):
		m.switchTab((m.tab + len(github.Categories) - 1) % len(github.Categories))
	case key.Matches(msg, m.keys.Tab1):
		m.switchTab(0)
	case key.Matches(msg, m.keys.Tab2):
		m.switchTab(1)
	case key.Matches(msg, m.keys.Tab3):
		m.switchTab(2)
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.snapshot.Bucket(m.category()).PRs)-1 {
			m.selected++
		}
	}
	return m, nil
}

func (m Model) View() string {
	busy := ""
	if m.busy {
		busy = m.spinner.View()
	}
	return renderView(viewState{
		snap:     m.snapshot,
		tab:      m.category(),
		selected: m.selected,
		busy:     busy,
		status:   m.status,
		now:      m.now(),
	})
}

func (m Model) category() github.Category {
	return github.Categories[m.tab]
}

func (m *Model) switchTab(i int) {
	if i != m.tab {
		m.tab = i
		m.selected = 0
	}
}

func (m *Model) clampSelection() {
	n := len(m.snapshot.Bucket(m.category()).PRs)
	if m.selected >= n {
		m.selected = max(0, n-1)
	}
}

func (m Model) loadCmd() tea.Cmd {
	sender := m.sender
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := LoadSnapshot(ctx, sender)
		return snapshotMsg{snap: snap, err: err}
	}
}

// refreshCmd forces a fetch that bypasses the cache and stays silent.
func (m Model) refreshCmd(c github.Category) tea.Cmd {
	sender := m.sender
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := call(ctx, sender, daemon.FetchAction(c), daemon.FetchRequest{Force: true}, nil)
		return refreshMsg{category: c, err: err}
	}
}

func (m Model) dismissCmd() tea.Cmd {
	sender := m.sender
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return dismissedMsg{err: call(ctx, sender, daemon.ActionDismissError, nil, nil)}
	}
}

func (m Model) waitEvent() tea.Cmd {
	events := m.opts.Events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
