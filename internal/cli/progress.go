package cli

import (
	"context"
	"fmt"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/gafscrape/internal/service"
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

// resourceDoneMsg reports one finished resource pipeline.
type resourceDoneMsg service.Progress

// runDoneMsg is sent once the whole run has returned.
type runDoneMsg struct {
	err error
}

// progressModel is the bubbletea model for scrape progress.
type progressModel struct {
	progress progress.Model
	theme    Theme
	last     string
	done     int
	total    int
	failed   int
	finished bool
	quitting bool
	err      error
}

func newProgressModel() progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return progressModel{
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command.
func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
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

	case resourceDoneMsg:
		m.done = msg.Done
		m.total = msg.Total
		m.last = msg.Resource
		if msg.Err != nil {
			m.failed++
		}
		return m, nil

	case runDoneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.finished || m.quitting {
		return m.finalView()
	}

	if m.total == 0 {
		return m.theme.statusStyle().Render("Loading ontology and organism list...") + "\n"
	}

	pct := float64(m.done) / float64(m.total)
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.last))
	counts := fmt.Sprintf("%d/%d organisms", m.done, m.total)
	if m.failed > 0 {
		counts += m.theme.errorStyle().Render(fmt.Sprintf(" (%d failed)", m.failed))
	}
	hint := m.theme.hintStyle().Render("Press Ctrl+C to abort")

	return fmt.Sprintf("%s %s %s\n%s\n", status, m.progress.ViewAs(pct), counts, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render("\nAborting, no manifest written.\n")
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Scrape failed: %s\n", m.err))
	}
	return m.theme.completedStyle().Render(fmt.Sprintf("✓ Processed %d organisms\n", m.done))
}

// runWithProgress runs the scrape while rendering a progress bar. Quitting the
// UI cancels the run.
func runWithProgress(ctx context.Context, svc *service.ScrapeService, opts service.ScrapeOptions) (*service.ScrapeResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel())
	opts.Progress = func(pr service.Progress) {
		p.Send(resourceDoneMsg(pr))
	}

	var (
		result *service.ScrapeResult
		runErr error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		result, runErr = svc.Run(ctx, opts)
		p.Send(runDoneMsg{err: runErr})
	}()

	finalModel, err := p.Run()
	if m, ok := finalModel.(progressModel); ok && m.quitting {
		cancel()
	}
	if err != nil {
		cancel()
		<-finished
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	<-finished
	return result, runErr
}
