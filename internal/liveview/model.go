// Package liveview renders the recognition session in the terminal with
// Bubble Tea.
package liveview

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/ayusman/verovision/internal/app"
)

const (
	defaultWidth = 60
	maxBarWidth  = 48
)

// Controller is the session surface the view drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	ClearSentence()
	Snapshot() app.Update
}

type updateMsg app.Update

type closedMsg struct{}

type errMsg struct{ err error }

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true).Padding(0, 2)
	idleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Padding(0, 2)
	sentenceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).
			Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#6E6E6E")).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

// Model implements the Bubble Tea live view.
type Model struct {
	ctrl    Controller
	updates <-chan app.Update
	bar     progress.Model

	width  int
	height int

	last   app.Update
	err    error
	closed bool
}

// NewModel constructs a live view over a session and its update stream.
func NewModel(ctrl Controller, updates <-chan app.Update) *Model {
	m := &Model{
		ctrl:    ctrl,
		updates: updates,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		last:    ctrl.Snapshot(),
	}
	m.resize(terminalWidth(), 0)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

func waitForUpdate(ch <-chan app.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return updateMsg(u)
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case updateMsg:
		m.last = app.Update(msg)
		if m.last.Running {
			m.err = nil
		}
		return m, waitForUpdate(m.updates)
	case closedMsg:
		m.closed = true
		return m, nil
	case errMsg:
		m.err = msg.err
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return tea.Quit
	case "s", "enter":
		ctrl := m.ctrl
		if m.last.Running {
			return func() tea.Msg {
				ctrl.Stop()
				return nil
			}
		}
		return func() tea.Msg {
			if err := ctrl.Start(context.Background()); err != nil {
				return errMsg{err: err}
			}
			return nil
		}
	case "c", "backspace":
		ctrl := m.ctrl
		return func() tea.Msg {
			ctrl.ClearSentence()
			return nil
		}
	}
	return nil
}

func (m *Model) resize(width, height int) {
	if width <= 0 {
		width = defaultWidth
	}
	m.width = width
	m.height = height
	m.bar.Width = min(maxBarWidth, max(10, width-8))
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("VeroVision"))
	b.WriteString("\n\n")

	u := m.last
	if u.Progress > 0 {
		b.WriteString(labelStyle.Render(u.Display))
	} else {
		b.WriteString(idleStyle.Render(u.Display))
	}
	b.WriteString("\n  ")
	b.WriteString(m.bar.ViewAs(u.Progress / 100))
	b.WriteString(fmt.Sprintf(" %3.0f%%\n\n", u.Progress))

	inner := max(1, m.width-6)
	b.WriteString(sentenceStyle.Render(tail(u.Sentence, inner)))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(statusStyle.Render(m.status()))
	b.WriteString("\n")
	return b.String()
}

func (m *Model) status() string {
	state := "stopped"
	switch {
	case m.closed:
		state = "disconnected"
	case m.last.Running:
		state = "running"
	}
	return fmt.Sprintf("%s · frame %d · s start/stop · c clear · q quit", state, m.last.Frame)
}

// tail keeps the end of the sentence that fits in width cells, so the most
// recent characters stay visible.
func tail(sentence string, width int) string {
	if sentence == "" {
		return strings.Repeat(" ", width)
	}
	shown := strings.ReplaceAll(sentence, " ", "·")
	if runewidth.StringWidth(shown) <= width {
		return runewidth.FillRight(shown, width)
	}
	runes := []rune(shown)
	for len(runes) > 0 && runewidth.StringWidth(string(runes))+1 > width {
		runes = runes[1:]
	}
	return "…" + string(runes)
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

// Run shows the live view until the user quits or ctx ends.
func Run(ctx context.Context, ctrl Controller, hub *app.Hub) error {
	updates, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(NewModel(ctrl, updates), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
