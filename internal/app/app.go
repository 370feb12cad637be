package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	pstatus "github.com/brensch/packgrab/internal/progress"
)

// --- Styles ---
var (
	titleStyle            = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	errorStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle             = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	progressBarStyle      = lipgloss.NewStyle().Padding(0, 1)
	packProgressHeadStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	packStatusStyle       = map[pstatus.Status]lipgloss.Style{
		pstatus.StatusQueued:      lipgloss.NewStyle().Foreground(lipgloss.Color("248")),
		pstatus.StatusDownloading: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		pstatus.StatusExtracting:  lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		pstatus.StatusFinished:    lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		pstatus.StatusFailed:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

type packRow struct {
	ID      int
	Status  pstatus.Status
	ErrMsg  string
	Start   time.Time
	Elapsed time.Duration
}

// Model renders one row per pack id and an overall bar that fills as ids
// reach a terminal status.
type Model struct {
	State           ViewState
	spinner         spinner.Model
	overallProgress progress.Model

	rows     map[int]*packRow
	order    []int
	total    int
	terminal int
	finished int
	failed   int
	summary  string

	termWidth  int
	termHeight int
}

// NewModel builds a view for a batch of total ids.
func NewModel(total int) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	prog := progress.New(progress.WithDefaultGradient())

	return &Model{
		State:           Running,
		spinner:         s,
		overallProgress: prog,
		rows:            make(map[int]*packRow),
		total:           total,
		termWidth:       defaultWidth,
		termHeight:      defaultHeight,
	}
}

func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.termWidth = msg.Width
		m.termHeight = msg.Height
		m.overallProgress.Width = max(0, m.termWidth-4)
	case StatusMsg:
		if cmd := m.applyStatus(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	case DoneMsg:
		m.State = Done
		m.summary = msg.Summary
		return m, tea.Quit
	case spinner.TickMsg:
		if m.State == Running {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	case progress.FrameMsg:
		progModel, frameCmd := m.overallProgress.Update(msg)
		if newModel, ok := progModel.(progress.Model); ok {
			m.overallProgress = newModel
			cmds = append(cmds, frameCmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) applyStatus(msg StatusMsg) tea.Cmd {
	at := msg.At
	if at.IsZero() {
		at = time.Now()
	}
	row, exists := m.rows[msg.ID]
	if !exists {
		row = &packRow{ID: msg.ID, Start: at}
		m.rows[msg.ID] = row
		m.order = append(m.order, msg.ID)
	}
	if row.Status.Terminal() {
		return nil
	}
	row.Status = msg.Status
	row.ErrMsg = msg.Detail
	if !msg.Status.Terminal() {
		return nil
	}

	row.Elapsed = at.Sub(row.Start)
	m.terminal++
	if msg.Status == pstatus.StatusFailed {
		m.failed++
	} else {
		m.finished++
	}
	if m.total <= 0 {
		return nil
	}
	return m.overallProgress.SetPercent(float64(m.terminal) / float64(m.total))
}

// Counts returns how many ids finished and failed so far.
func (m *Model) Counts() (finished, failed int) {
	return m.finished, m.failed
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("--- packgrab ---"))
	b.WriteString("\n\n")

	indicator := m.spinner.View()
	if m.State == Done {
		indicator = "✓"
	}
	b.WriteString(fmt.Sprintf("%s Packs: %d finished, %d failed\n", indicator, m.finished, m.failed))
	b.WriteString(progressBarStyle.Render(m.overallProgress.View()))
	b.WriteString(fmt.Sprintf(" (%d/%d)\n\n", m.terminal, m.total))
	b.WriteString(m.viewRows())

	if m.State == Done && m.summary != "" {
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(m.summary))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) viewRows() string {
	if len(m.order) == 0 {
		return ""
	}
	var b strings.Builder

	maxLines := max(1, m.termHeight-10)
	startIdx := 0
	if len(m.order) > maxLines {
		startIdx = len(m.order) - maxLines
	}

	b.WriteString(packProgressHeadStyle.Render(fmt.Sprintf("%-8s | %-12s | %s", "Pack", "Status", "Elapsed")))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", m.termWidth))
	b.WriteString("\n")
	for _, id := range m.order[startIdx:] {
		row := m.rows[id]
		style, ok := packStatusStyle[row.Status]
		if !ok {
			style = infoStyle
		}
		elapsed := ""
		if row.Elapsed > 0 {
			elapsed = row.Elapsed.Round(time.Millisecond).String()
		} else if !row.Status.Terminal() {
			elapsed = time.Since(row.Start).Round(time.Second).String() + "..."
		}
		b.WriteString(fmt.Sprintf("%-8d | %-12s | %s", row.ID, style.Render(row.Status.String()), elapsed))
		if row.Status == pstatus.StatusFailed && row.ErrMsg != "" {
			errMsg := fitWidth(fmt.Sprintf("  -> Error: %s", row.ErrMsg), m.termWidth)
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(errMsg))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// fitWidth cuts s so it occupies fewer than width terminal cells.
func fitWidth(s string, width int) string {
	if width <= 1 || ansi.StringWidth(s) < width {
		return s
	}
	return ansi.Truncate(s, width-1, "")
}
