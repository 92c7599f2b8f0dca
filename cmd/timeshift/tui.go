package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/BYTE-6D65/timeshift/pkg/clock"
	"github.com/BYTE-6D65/timeshift/pkg/engine"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Live clock in every scale, corrected through the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		_, err = tea.NewProgram(initialModel(eng), tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
		return err
	},
}

// Message types
type messageType int

const (
	msgInfo messageType = iota
	msgWarning
	msgError
	msgSuccess
)

// userMessage is a dynamic message shown below the table
type userMessage struct {
	msgType messageType
	text    string
}

// scaleRow is one line of the live table.
type scaleRow struct {
	scale   clock.Scale
	coarse  clock.Epoch
	precise clock.Epoch
	tier    string
	err     error
}

// model holds the state of the TUI
type model struct {
	eng    *engine.Engine
	rows   []scaleRow
	cursor int
	source clock.Scale
	width  int
	height int

	userMessage *userMessage
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			PaddingLeft(2)

	menuItemStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	selectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(lipgloss.Color("#7D56F4")).
				Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingTop(1).
			PaddingLeft(2)

	resultsStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 2).
			MarginLeft(2)

	infoMessageStyle    = messageStyle("#00A9E0")
	warningMessageStyle = messageStyle("#FFB800")
	errorMessageStyle   = messageStyle("#FF5555")
	successMessageStyle = messageStyle("#50FA7B")
)

func messageStyle(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color)).
		Foreground(lipgloss.Color(color)).
		Padding(0, 2).
		MarginTop(1).
		MarginLeft(2)
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func initialModel(eng *engine.Engine) model {
	m := model{eng: eng, source: clock.UTC}
	m.refresh()
	n := 0
	for _, info := range eng.Stores() {
		if info.Name == eng.Config().DefaultStore {
			n = info.Len
		}
	}
	m.userMessage = &userMessage{
		msgType: msgInfo,
		text:    fmt.Sprintf("%d corrections loaded into %q", n, eng.Config().DefaultStore),
	}
	return m
}

// refresh reads the clock and converts the reading into every scale.
func (m *model) refresh() {
	now := m.eng.Clock().Now().ToScale(m.source)
	scales := clock.Scales()
	m.rows = make([]scaleRow, 0, len(scales))
	for _, s := range scales {
		row := scaleRow{scale: s, coarse: now.ToScale(s)}
		out, sol, err := m.eng.Correct("", now, s)
		if err != nil {
			row.err = err
		} else {
			row.precise = out
			row.tier = sol.Tier.String()
		}
		m.rows = append(m.rows, row)
	}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()
	}

	return m, nil
}

func (m model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		m.userMessage = nil

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		m.userMessage = nil

	case "enter", " ":
		m.source = m.rows[m.cursor].scale
		m.refresh()
		m.userMessage = &userMessage{
			msgType: msgSuccess,
			text:    fmt.Sprintf("Reading the clock as %s", m.source),
		}

	case "o":
		removed, err := m.eng.OutdateStale()
		if err != nil {
			m.userMessage = &userMessage{msgType: msgError, text: err.Error()}
			break
		}
		m.refresh()
		m.userMessage = &userMessage{
			msgType: msgWarning,
			text:    fmt.Sprintf("Dropped %d corrections older than a week", removed),
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("⏱  Timeshift - live clock read as %s", m.source)))
	b.WriteString("\n\n")

	for i, row := range m.rows {
		line := fmt.Sprintf("%-6s %s", row.scale, row.coarse)
		if i == m.cursor {
			b.WriteString(selectedItemStyle.Render("▶ " + line))
		} else {
			b.WriteString(menuItemStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(resultsStyle.Render(m.renderDetail()))

	b.WriteString(helpStyle.Render("\nUse ↑/↓ or j/k to navigate • Enter to read the clock in a scale • o to outdate • q to quit"))

	if m.userMessage != nil {
		b.WriteString("\n" + m.renderUserMessage())
	}
	return b.String()
}

// renderDetail shows the store-corrected instant for the selected scale.
func (m model) renderDetail() string {
	if len(m.rows) == 0 {
		return "No clock reading"
	}
	row := m.rows[m.cursor]
	if row.err != nil {
		return fmt.Sprintf("%s → %s\n%s", m.source, row.scale, dimStyle.Render("no correction: "+row.err.Error()))
	}
	drift := row.precise.Sub(row.coarse)
	return fmt.Sprintf("%s → %s via %s\n%s\ncorrection %s", m.source, row.scale, row.tier, row.precise, drift)
}

func (m model) renderUserMessage() string {
	if m.userMessage == nil {
		return ""
	}

	var style lipgloss.Style
	var icon string

	switch m.userMessage.msgType {
	case msgInfo:
		style = infoMessageStyle
		icon = "ℹ️ "
	case msgWarning:
		style = warningMessageStyle
		icon = "⚠️  "
	case msgError:
		style = errorMessageStyle
		icon = "❌ "
	case msgSuccess:
		style = successMessageStyle
		icon = "✅ "
	}

	return style.Render(icon + m.userMessage.text)
}
