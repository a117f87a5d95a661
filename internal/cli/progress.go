package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// errInterrupted is returned when the user quits the progress display.
var errInterrupted = errors.New("interrupted")

// episodeDoneMsg reports one more finished episode.
type episodeDoneMsg struct {
	done  int
	total int
}

// runDoneMsg ends the display with the run's result.
type runDoneMsg struct {
	err error
}

// progressModel is the bubbletea model for a linking run.
type progressModel struct {
	label    string
	done     int
	total    int
	progress progress.Model
	theme    Theme
	finished bool
	quitting bool
	err      error
}

func newProgressModel(label string, total, width int) progressModel {
	return progressModel{
		label: label,
		total: total,
		progress: progress.New(
			progress.WithDefaultBlend(),
			progress.WithWidth(width),
		),
		theme: defaultTheme,
	}
}

// Init returns no initial command; updates arrive from the run.
func (m progressModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case episodeDoneMsg:
		m.done, m.total = msg.done, msg.total

	case runDoneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	switch {
	case m.quitting:
		return m.theme.hintStyle().Render("Interrupted, nothing was written.") + "\n"
	case m.finished && m.err != nil:
		return m.theme.errorStyle().Render(fmt.Sprintf("✗ %s failed", m.label)) + "\n"
	case m.finished:
		return m.theme.completedStyle().Render(fmt.Sprintf("✓ %s: %d episodes", m.label, m.total)) + "\n"
	}

	var pct float64
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.label))
	counts := fmt.Sprintf("%d/%d episodes", m.done, m.total)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to abort")
	return fmt.Sprintf("%s %s %s\n%s\n", status, m.progress.ViewAs(pct), counts, hint)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// barWidth fits the bar to the terminal, leaving room for the label and counts.
func barWidth(w io.Writer) int {
	const preferred = 40
	f, ok := w.(*os.File)
	if !ok {
		return preferred
	}
	cols, _, err := term.GetSize(int(f.Fd()))
	if err != nil || cols <= 0 {
		return preferred
	}
	return max(10, min(preferred, cols-40))
}

// runWithProgress runs fn, showing a progress bar on out when it is a terminal.
// fn receives a callback to report finished episodes. Quitting the display cancels
// fn's context and returns errInterrupted.
func runWithProgress(ctx context.Context, out io.Writer, label string, total int, fn func(ctx context.Context, onProgress func(done, total int)) error) error {
	if !isTerminal(out) {
		return fn(ctx, nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(label, total, barWidth(out)), tea.WithOutput(out))

	result := make(chan error, 1)
	go func() {
		err := fn(ctx, func(done, total int) {
			p.Send(episodeDoneMsg{done: done, total: total})
		})
		result <- err
		p.Send(runDoneMsg{err: err})
	}()

	finalModel, uiErr := p.Run()
	if m, ok := finalModel.(progressModel); ok && m.quitting {
		cancel()
		<-result
		return errInterrupted
	}
	err := <-result
	if err == nil && uiErr != nil {
		return fmt.Errorf("progress UI error: %w", uiErr)
	}
	return err
}
