// Package tui provides the live status view shown during `devtrack run`.
// It doubles as the scheduler's display sink.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Teamial/devtrack/internal/tracker"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	countdownStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178")).
			Bold(true)

	flashStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// flashDuration is how long a flash message stays visible.
const flashDuration = 5 * time.Second

// ── Messages from the scheduler sink ─────────────────

type countdownMsg time.Duration

type pausedMsg bool

type flashMsg string

type refreshMsg time.Time

// ── Key bindings ─────────────────

type keyMap struct {
	Commit key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Commit: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "commit now"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Model is the live status view.
type Model struct {
	workDir   string
	trk       *tracker.Tracker
	commitNow func()

	remaining  time.Duration
	paused     bool
	flash      string
	flashUntil time.Time
	changes    int
	metrics    tracker.Metrics
	width      int
}

// NewModel creates the status view. commitNow is invoked asynchronously
// when the user presses the commit key.
func NewModel(workDir string, trk *tracker.Tracker, commitNow func()) Model {
	return Model{
		workDir:   workDir,
		trk:       trk,
		commitNow: commitNow,
	}
}

func (m Model) Init() tea.Cmd {
	return refreshTick()
}

func refreshTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		// Interacting with the status view counts as user activity.
		if m.trk != nil {
			m.trk.RecordKeystroke()
		}
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Commit):
			if m.commitNow != nil {
				go m.commitNow()
			}
			return m, nil
		}
		return m, nil

	case countdownMsg:
		m.remaining = time.Duration(msg)
		return m, nil

	case pausedMsg:
		m.paused = bool(msg)
		return m, nil

	case flashMsg:
		m.flash = string(msg)
		m.flashUntil = time.Now().Add(flashDuration)
		return m, nil

	case refreshMsg:
		m.changes = len(m.trk.GetChangedFiles())
		m.metrics = m.trk.GetActivityMetrics()
		if m.flash != "" && time.Now().After(m.flashUntil) {
			m.flash = ""
		}
		return m, refreshTick()
	}

	return m, nil
}

func (m Model) View() string {
	var lines []string

	lines = append(lines, titleStyle.Render("devtrack")+" "+dimStyle.Render(m.workDir))

	var countdown string
	if m.paused {
		countdown = pausedStyle.Render("paused (idle)")
	} else {
		countdown = countdownStyle.Render(formatCountdown(m.remaining))
	}
	lines = append(lines, labelStyle.Render("Next commit:")+" "+countdown)

	lines = append(lines, fmt.Sprintf("%s %d  %s %s  %s %d",
		labelStyle.Render("Changes:"), m.changes,
		labelStyle.Render("Active:"), formatActive(m.metrics.ActiveTimeSeconds),
		labelStyle.Render("Events:"), m.metrics.FileChangeEvents,
	))

	if m.flash != "" {
		lines = append(lines, flashStyle.Render(m.flash))
	}

	lines = append(lines, hintStyle.Render("c commit now · q quit"))

	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}

func formatCountdown(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	d = d.Round(time.Second)
	min := int(d.Minutes())
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", min, sec)
}

func formatActive(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}

// Sink adapts a running bubbletea program into the scheduler's display
// sink. Sends are asynchronous so the scheduler never blocks on the UI.
type Sink struct {
	p *tea.Program
}

// NewSink wraps a program started with the status Model.
func NewSink(p *tea.Program) *Sink {
	return &Sink{p: p}
}

func (s *Sink) UpdateCountdown(remaining time.Duration) {
	go s.p.Send(countdownMsg(remaining))
}

func (s *Sink) SetPaused(paused bool) {
	go s.p.Send(pausedMsg(paused))
}

func (s *Sink) Flash(message string) {
	go s.p.Send(flashMsg(message))
}
