package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kpujjigit/productpulse/pkg/simulation"
)

// Config
const (
	daemonURL      = "http://localhost:8090"
	pollRate       = time.Second
	maxRuns        = 20
	viewportHeight = 14
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	runTimeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(20)
	runIDStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Width(38)

	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Red
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // Green
)

type tickMsg time.Time

type dataMsg struct {
	status simulation.Status
	runs   []simulation.RunRecord
	err    error
}

type model struct {
	spinner  spinner.Model
	viewport viewport.Model
	status   simulation.Status
	runs     []simulation.RunRecord
	err      error
	ready    bool
}

func initialModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		spinner: s,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(), tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.status = msg.status
			m.runs = msg.runs
			m.updateViewportContent()
		}

		if !m.ready {
			m.ready = true
		}

	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.viewport.Style = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				PaddingRight(2)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *model) updateViewportContent() {
	var sb strings.Builder

	for _, run := range m.runs {
		ts := run.EndedAt.Format("15:04:05")

		sessions := fmt.Sprintf("%d/%d sessions", run.Progress.Completed, run.SessionCount)
		var sessionsStr string
		if run.Progress.Failed > 0 {
			sessionsStr = failStyle.Render(sessions)
		} else {
			sessionsStr = passStyle.Render(sessions)
		}

		line := fmt.Sprintf("%s %s %s %s\n",
			runTimeStyle.Render(ts),
			runIDStyle.Render(run.ID),
			sessionsStr,
			subtleStyle.Render(fmt.Sprintf("%d reqs, avg %.0fms", run.Statistics.TotalRequests, run.Statistics.AvgResponseTimeMs)),
		)
		sb.WriteString(line)
	}

	if len(m.runs) == 0 {
		sb.WriteString(subtleStyle.Render("No finished runs yet."))
	}

	m.viewport.SetContent(sb.String())
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Initializing...", m.spinner.View())
	}

	// Top Pane: live simulation status
	var live strings.Builder
	live.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Traffic Simulation") + "\n\n")

	if m.status.IsRunning {
		p := m.status.Progress
		s := m.status.Statistics
		live.WriteString(okStyle.Render("RUNNING") + subtleStyle.Render(fmt.Sprintf("  run %s", m.status.ID)) + "\n")
		live.WriteString(fmt.Sprintf("Sessions: %d done, %d failed of %d\n", p.Completed, p.Failed, p.Total))
		live.WriteString(fmt.Sprintf("Requests: %d (%d ok, %d failed), avg %.1fms\n",
			s.TotalRequests, s.SuccessfulRequests, s.FailedRequests, s.AvgResponseTimeMs))
	} else {
		live.WriteString(subtleStyle.Render("IDLE — no simulation running.") + "\n")
	}

	topPane := paneStyle.Render(live.String())

	header := headerStyle.Render(fmt.Sprintf("%s Run History", m.spinner.View()))
	bottomPane := m.viewport.View()

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %d Runs", len(m.runs)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, bottomPane, footer)
}

// Commands

func fetchData() tea.Cmd {
	return func() tea.Msg {
		status, err := getStatus()
		if err != nil {
			return dataMsg{err: err}
		}

		runs, err := getRuns()
		if err != nil {
			return dataMsg{err: err}
		}

		return dataMsg{
			status: status,
			runs:   runs,
			err:    nil,
		}
	}
}

func getStatus() (simulation.Status, error) {
	c := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := c.Get(daemonURL + "/v1/simulation/status")
	if err != nil {
		return simulation.Status{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return simulation.Status{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	var status simulation.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return simulation.Status{}, err
	}
	return status, nil
}

func getRuns() ([]simulation.RunRecord, error) {
	c := &http.Client{Timeout: 500 * time.Millisecond}
	resp, err := c.Get(fmt.Sprintf("%s/v1/runs?limit=%d", daemonURL, maxRuns))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Run history may be disabled; show an empty list rather than erroring.
	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("runs status %d", resp.StatusCode)
	}

	var body struct {
		Runs []simulation.RunRecord `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Runs, nil
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
