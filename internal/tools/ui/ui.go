package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).PaddingLeft(2)

	spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
)

var ErrCancelled = errors.New("cancelled by user")

type tickMsg struct{}

type doneMsg struct {
	details []string
	err     error
}

type model struct {
	title   string
	frame   int
	started time.Time
	done    bool
	details []string
	err     error
	cancel  context.CancelFunc
	work    tea.Cmd
}

func newModel(title string, cancel context.CancelFunc, work tea.Cmd) model {
	return model{title: title, started: time.Now(), cancel: cancel, work: work}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.work, tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			m.cancel()
			m.done = true
			m.err = ErrCancelled
			return m, tea.Quit
		}
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, tick()
	case doneMsg:
		m.done = true
		m.details = msg.details
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	elapsed := time.Since(m.started).Truncate(100 * time.Millisecond)
	switch {
	case !m.done:
		b.WriteString(fmt.Sprintf("%s %s (%s)\n", spinnerFrames[m.frame], titleStyle.Render(m.title), elapsed))
	case m.err != nil:
		b.WriteString(fmt.Sprintf("%s %s\n", failStyle.Render("✗"), titleStyle.Render(m.title)))
	default:
		b.WriteString(fmt.Sprintf("%s %s (%s)\n", okStyle.Render("✓"), titleStyle.Render(m.title), elapsed))
	}
	for _, d := range m.details {
		b.WriteString(detailStyle.Render(d))
		b.WriteString("\n")
	}
	if m.done && m.err != nil {
		b.WriteString(detailStyle.Render(failStyle.Render("error: " + m.err.Error())))
		b.WriteString("\n")
	}
	return b.String()
}

// Run executes fn behind an interactive spinner and returns its details and error.
func Run(title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	work := func() tea.Msg {
		details, err := fn(ctx)
		return doneMsg{details: details, err: err}
	}
	final, err := tea.NewProgram(newModel(title, cancel, work)).Run()
	if err != nil {
		return nil, fmt.Errorf("run ui: %w", err)
	}
	m, ok := final.(model)
	if !ok {
		return nil, fmt.Errorf("run ui: unexpected model %T", final)
	}
	return m.details, m.err
}
