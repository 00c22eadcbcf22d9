package timer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	sessiondto "devtrack/internal/modules/session/dto"
	apperrors "devtrack/internal/platform/errors"
	"devtrack/internal/ui/components"
	"devtrack/internal/ui/theme"
)

// sessionPort is the slice of the session CLI surface the timer drives.
type sessionPort interface {
	Start(ctx context.Context, project string) (sessiondto.StartOutput, error)
	Stop(ctx context.Context) (sessiondto.StopOutput, error)
	Status(ctx context.Context) (sessiondto.StatusOutput, error)
	ProjectReport(ctx context.Context) (sessiondto.ProjectReportOutput, error)
}

// refreshEvery re-reads the data file so edits from the web UI show up.
const refreshEvery = 15

type tickMsg time.Time

type statusLoadedMsg struct {
	status sessiondto.StatusOutput
	err    error
}

type projectsLoadedMsg struct {
	projects []string
}

type startedMsg struct {
	out sessiondto.StartOutput
	err error
}

type stoppedMsg struct {
	out sessiondto.StopOutput
	err error
}

type keyMap struct {
	Start key.Binding
	Stop  key.Binding
	Help  key.Binding
	Quit  key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Start: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
		Stop:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		Help:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:  key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Stop},
		{k.Help, k.Quit},
	}
}

// Model is the terminal timer. Business logic stays behind sessionPort;
// between refreshes the elapsed clock advances on local ticks.
type Model struct {
	session sessionPort
	now     func() time.Time

	status sessiondto.StatusOutput
	loaded bool
	ticks  int

	keys     keyMap
	help     help.Model
	showHelp bool
	bar      progress.Model
	prompt   components.Prompt
	message  string
	width    int
}

func NewModel(session sessionPort) Model {
	return Model{
		session: session,
		now:     time.Now,
		keys:    defaultKeys(),
		help:    help.New(),
		bar: progress.New(
			progress.WithGradient(string(theme.Sapphire), string(theme.Green)),
			progress.WithoutPercentage(),
		),
		prompt:  components.NewPrompt("Start session", "project name"),
		message: "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadStatusCmd(), m.loadProjectsCmd(), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The prompt owns the keyboard while open.
	if _, isKey := msg.(tea.KeyMsg); isKey && m.prompt.Visible() {
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.prompt.SetWidth(min(msg.Width-4, 64))
		m.bar.Width = max(10, min(msg.Width-8, 60))

	case tickMsg:
		m.ticks++
		cmds := []tea.Cmd{tick()}
		if m.ticks%refreshEvery == 0 {
			cmds = append(cmds, m.loadStatusCmd())
		}
		return m, tea.Batch(cmds...)

	case statusLoadedMsg:
		if msg.err != nil {
			m.message = "status: " + msg.err.Error()
			return m, nil
		}
		m.status = msg.status
		m.loaded = true

	case projectsLoadedMsg:
		m.prompt.SetRecent(msg.projects)

	case startedMsg:
		var active *sessiondto.ActiveSessionError
		switch {
		case errors.As(msg.err, &active):
			m.message = fmt.Sprintf("already tracking %q", active.Session.Project)
		case msg.err != nil:
			m.message = "start failed: " + msg.err.Error()
		default:
			m.message = "started " + msg.out.Session.Project
		}
		return m, m.loadStatusCmd()

	case stoppedMsg:
		switch {
		case errors.Is(msg.err, apperrors.ErrNoActiveSession):
			m.message = "no active session"
		case msg.err != nil:
			m.message = "stop failed: " + msg.err.Error()
		default:
			m.message = fmt.Sprintf("stopped %s after %d min", msg.out.Session.Project, msg.out.Minutes)
		}
		return m, tea.Batch(m.loadStatusCmd(), m.loadProjectsCmd())

	case components.PromptSubmitMsg:
		return m, m.startCmd(msg.Input)

	case components.PromptCancelMsg:
		m.message = "ready"

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
		case key.Matches(msg, m.keys.Start):
			if m.status.Active {
				m.message = fmt.Sprintf("already tracking %q", m.status.Session.Project)
				return m, nil
			}
			return m, m.prompt.Open()
		case key.Matches(msg, m.keys.Stop):
			return m, m.stopCmd()
		}
	}
	return m, nil
}

// elapsed is the running session's age on the local clock.
func (m Model) elapsed() time.Duration {
	if !m.status.Active {
		return 0
	}
	d := m.now().Sub(m.status.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// todayMinutes is completed work plus the running session.
func (m Model) todayMinutes() int {
	return int(m.status.TodaySeconds/60) + int(m.elapsed()/time.Minute)
}

func (m Model) progress() float64 {
	goal := m.status.DailyGoal * 60
	if goal <= 0 {
		return 0
	}
	return min(1, float64(m.todayMinutes())/goal)
}

func (m Model) View() string {
	if m.showHelp {
		return theme.App.Render(m.help.View(m.keys))
	}
	if m.prompt.Visible() {
		return m.prompt.View()
	}

	var sb strings.Builder
	sb.WriteString(theme.Title.Render("devtrack") + "\n\n")
	if m.status.Active {
		sb.WriteString(theme.Hot.Render("● "+m.status.Session.Project) + "\n")
		sb.WriteString(theme.Clock.Render(formatClock(m.elapsed())) + "\n")
		sb.WriteString(theme.Muted.Render("since "+m.status.StartedAt.Format("15:04")) + "\n\n")
	} else {
		sb.WriteString(theme.Muted.Render("no active session") + "\n")
		sb.WriteString(theme.Clock.Render(formatClock(0)) + "\n\n")
	}

	minutes := m.todayMinutes()
	sb.WriteString(m.bar.ViewAs(m.progress()) + "\n")
	sb.WriteString(fmt.Sprintf("%s / %gh today", formatMinutes(minutes), m.status.DailyGoal))
	if m.loaded && float64(minutes) >= m.status.DailyGoal*60 {
		sb.WriteString("  " + theme.Success.Render("goal achieved"))
	}
	sb.WriteString("\n\n")
	sb.WriteString(theme.Muted.Render(m.message) + "\n")
	sb.WriteString(m.help.View(m.keys))

	pane := theme.Pane
	if m.status.Active {
		pane = theme.PaneActive
	}
	return pane.Render(lipgloss.NewStyle().Width(max(m.bar.Width, 30)).Render(sb.String()))
}

func formatClock(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total/60%60, total%60)
}

func formatMinutes(minutes int) string {
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) loadStatusCmd() tea.Cmd {
	return func() tea.Msg {
		status, err := m.session.Status(context.Background())
		return statusLoadedMsg{status: status, err: err}
	}
}

func (m Model) loadProjectsCmd() tea.Cmd {
	return func() tea.Msg {
		report, err := m.session.ProjectReport(context.Background())
		if err != nil {
			return projectsLoadedMsg{}
		}
		names := make([]string, 0, len(report.Projects))
		for _, p := range report.Projects {
			names = append(names, p.Project)
		}
		return projectsLoadedMsg{projects: names}
	}
}

func (m Model) startCmd(project string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.session.Start(context.Background(), project)
		return startedMsg{out: out, err: err}
	}
}

func (m Model) stopCmd() tea.Cmd {
	return func() tea.Msg {
		out, err := m.session.Stop(context.Background())
		return stoppedMsg{out: out, err: err}
	}
}
