package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/five82/platesolve/internal/logtail"
	"github.com/five82/platesolve/internal/monitor"
	"github.com/five82/platesolve/internal/state"
)

const (
	defaultTick     = 250 * time.Millisecond
	defaultLogLines = 6
)

// Options configures the progress view.
type Options struct {
	Store     *state.Store
	Kill      func()          // called on q or ctrl+c
	Done      <-chan struct{} // closed when the solve returns
	LogFile   string          // tail shown under the progress; empty hides it
	LogLines  int
	ThemeName string
	Tick      time.Duration
}

// Model is the Bubble Tea model of the solve progress view.
type Model struct {
	store    *state.Store
	kill     func()
	done     <-chan struct{}
	logFile  string
	logLines int
	tick     time.Duration

	theme   Theme
	styles  Styles
	spinner spinner.Model
	width   int

	snapshot      state.Snapshot
	logs          []logtail.Entry
	killRequested bool
	finished      bool
}

// New creates the progress model.
func New(opts Options) Model {
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	logLines := opts.LogLines
	if logLines <= 0 {
		logLines = defaultLogLines
	}
	theme := GetTheme(opts.ThemeName)
	styles := theme.Styles()
	return Model{
		store:    opts.Store,
		kill:     opts.Kill,
		done:     opts.Done,
		logFile:  opts.LogFile,
		logLines: logLines,
		tick:     tick,
		theme:    theme,
		styles:   styles,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(styles.AccentText),
		),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.tick), m.spinner.Tick}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.done != nil {
		cmds = append(cmds, waitCmd(m.done))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		var cmds []tea.Cmd
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		if m.logFile != "" {
			cmds = append(cmds, readLogsCmd(m.logFile, m.logLines))
		}
		cmds = append(cmds, tickCmd(m.tick))
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		return m, nil

	case logsMsg:
		m.logs = msg
		return m, nil

	case doneMsg:
		m.finished = true
		if m.store != nil {
			m.snapshot = m.store.Snapshot()
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		if m.killRequested {
			// Second press detaches the view; the solve is already stopping.
			return m, tea.Quit
		}
		m.killRequested = true
		if m.kill != nil {
			m.kill()
		}
	case "t":
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.styles = m.theme.Styles()
		m.spinner.Style = m.styles.AccentText
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	snap := m.snapshot
	s := m.styles
	var b strings.Builder

	name := filepath.Base(snap.Path)
	if snap.Path == "" {
		name = "waiting for solve"
	}
	indicator := m.spinner.View()
	if snap.Done() || m.finished {
		indicator = " "
	}
	b.WriteString(s.Header.Render("platesolve"))
	b.WriteString(" ")
	b.WriteString(indicator)
	b.WriteString(" ")
	b.WriteString(s.Text.Render(name))
	b.WriteString(" ")
	b.WriteString(s.StateStyle(snap.State.String()).Render(snap.State.String()))
	b.WriteString("\n")

	b.WriteString(s.Panel.Render(m.renderDetails()))
	b.WriteString("\n")

	if len(m.logs) > 0 {
		for _, entry := range m.logs {
			b.WriteString(s.LevelStyle(entry.Level).Render(entry.Format()))
			b.WriteString("\n")
		}
	}

	b.WriteString(s.Footer.Render(m.footer()))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderDetails() string {
	snap := m.snapshot
	s := m.styles
	var lines []string

	if snap.Key != "" {
		lines = append(lines, s.MutedText.Render("key        ")+s.Text.Render(snap.Key.Short()))
	}
	if snap.SubmissionID != 0 {
		lines = append(lines, s.MutedText.Render("submission ")+s.Text.Render(fmt.Sprintf("%d", snap.SubmissionID)))
	}
	if snap.State == monitor.Polling || snap.Polls > 0 {
		lines = append(lines, s.MutedText.Render("polls      ")+s.Text.Render(fmt.Sprintf("%d", snap.Polls)))
	}
	if snap.JobID != 0 {
		job := fmt.Sprintf("%d", snap.JobID)
		if snap.Cached {
			job += " (cached)"
		}
		lines = append(lines, s.MutedText.Render("job        ")+s.SuccessText.Render(job))
	}
	if !snap.StartedAt.IsZero() {
		lines = append(lines, s.MutedText.Render("started    ")+s.FaintText.Render(humanize.Time(snap.StartedAt)))
	}
	if len(snap.History) > 1 {
		steps := make([]string, 0, len(snap.History))
		for _, tr := range snap.History {
			steps = append(steps, tr.State.String())
		}
		lines = append(lines, s.FaintText.Render(strings.Join(steps, " → ")))
	}
	if snap.IsStalled() {
		lines = append(lines, s.WarningText.Render(fmt.Sprintf("nova unreachable (%d failed polls)", snap.PollFailures)))
	}
	if snap.LastError != nil {
		lines = append(lines, s.DangerText.Render(snap.LastError.Error()))
	}
	if len(lines) == 0 {
		lines = append(lines, s.MutedText.Render("hashing input"))
	}
	return strings.Join(lines, "\n")
}

func (m Model) footer() string {
	switch {
	case m.finished || m.snapshot.Done():
		return "done"
	case m.killRequested:
		return "stopping… (q again to detach)"
	default:
		return "q stop · t theme"
	}
}

// KillRequested reports whether the user asked to stop the solve.
func (m Model) KillRequested() bool {
	return m.killRequested
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type logsMsg []logtail.Entry

type doneMsg struct{}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func readLogsCmd(path string, lines int) tea.Cmd {
	return func() tea.Msg {
		entries, err := logtail.ReadEntries(path, lines)
		if err != nil {
			return nil
		}
		return logsMsg(entries)
	}
}

func waitCmd(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return doneMsg{}
	}
}
