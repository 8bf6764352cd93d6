package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// maxShownErrors bounds the error list rendered below the bars.
const maxShownErrors = 8

type startMsg struct{ total int }

type unitMsg struct {
	unit string
	err  error
}

type downloadStartMsg struct {
	name string
	size int64
}

type downloadProgressMsg struct {
	name string
	n    int64
}

type downloadFinishMsg struct{ name string }

type finishMsg struct{}

// ProgressModel renders the progress of a sync or reconcile run.
type ProgressModel struct {
	title    string
	spinner  spinner.Model
	units    progress.Model
	download progress.Model
	onQuit   func()

	total    int
	done     int
	failed   int
	lastUnit string
	errors   []string

	dlName string
	dlSize int64
	dlDone int64

	finished bool
}

func newProgressModel(title string, onQuit func()) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = s.Style.Foreground(colorOf(colorAccent))

	return ProgressModel{
		title:    title,
		spinner:  s,
		units:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		download: progress.New(progress.WithSolidFill("#5fafff"), progress.WithWidth(50)),
		onQuit:   onQuit,
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case startMsg:
		m.total, m.done, m.failed = msg.total, 0, 0

	case unitMsg:
		m.done++
		m.lastUnit = msg.unit
		if msg.err != nil {
			m.failed++
			m.errors = append(m.errors, fmt.Sprintf("%s: %v", msg.unit, msg.err))
		}

	case downloadStartMsg:
		m.dlName, m.dlSize, m.dlDone = msg.name, msg.size, 0

	case downloadProgressMsg:
		if msg.name == m.dlName {
			m.dlDone += msg.n
		}

	case downloadFinishMsg:
		if msg.name == m.dlName {
			m.dlName, m.dlSize, m.dlDone = "", 0, 0
		}

	case finishMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m ProgressModel) percent() float64 {
	if m.total == 0 {
		if m.finished {
			return 1
		}
		return 0
	}
	return float64(m.done) / float64(m.total)
}

func (m ProgressModel) View() string {
	var b strings.Builder

	symbol := m.spinner.View()
	if m.finished {
		symbol = Colorize("✓", colorSuccess)
	}
	fmt.Fprintf(&b, "\n %s %s\n\n", symbol, boldStyle.Render(m.title))
	fmt.Fprintf(&b, " %s %d/%d\n", m.units.ViewAs(m.percent()), m.done, m.total)
	if m.lastUnit != "" && !m.finished {
		fmt.Fprintf(&b, " %s\n", faintStyle.Render(m.lastUnit))
	}

	if m.dlName != "" {
		b.WriteString("\n " + boldStyle.Render("Downloading:") + " " + m.dlName + "\n")
		if m.dlSize > 0 {
			ratio := float64(m.dlDone) / float64(m.dlSize)
			if ratio > 1 {
				ratio = 1
			}
			fmt.Fprintf(&b, " %s %s / %s\n", m.download.ViewAs(ratio), humanBytes(m.dlDone), humanBytes(m.dlSize))
		} else {
			fmt.Fprintf(&b, " %s\n", humanBytes(m.dlDone))
		}
	}

	if len(m.errors) > 0 {
		b.WriteString("\n " + Colorize(fmt.Sprintf("Errors (%d):", m.failed), colorError) + "\n")
		start := 0
		if len(m.errors) > maxShownErrors {
			start = len(m.errors) - maxShownErrors
		}
		for _, e := range m.errors[start:] {
			fmt.Fprintf(&b, "  • %s\n", e)
		}
	}

	if m.finished {
		fmt.Fprintf(&b, "\n %s\n", boldStyle.Render(fmt.Sprintf("Done: %d succeeded, %d failed", m.done-m.failed, m.failed)))
	}
	b.WriteString("\n")
	return b.String()
}
