package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/theme"
)

// Name identifies a palette command.
type Name string

const (
	CmdCheck   Name = "check"
	CmdReadAll Name = "read-all"
	CmdClear   Name = "clear"
	CmdNotify  Name = "notify"
	CmdCancel  Name = "cancel"
	CmdTheme   Name = "theme"
	CmdQuit    Name = "quit"
)

// Spec documents a palette command.
type Spec struct {
	Name    Name
	Usage   string
	Summary string
}

// Commands lists every palette command in help order.
var Commands = []Spec{
	{Name: CmdCheck, Usage: "check", Summary: "run the reminder due check now"},
	{Name: CmdReadAll, Usage: "read-all", Summary: "mark every notification read"},
	{Name: CmdClear, Usage: "clear", Summary: "delete every notification"},
	{Name: CmdNotify, Usage: "notify [success|error|warning|info] <message>", Summary: "post a notification"},
	{Name: CmdCancel, Usage: "cancel <reminder-id>", Summary: "cancel a scheduled reminder"},
	{Name: CmdTheme, Usage: "theme [dark|light]", Summary: "switch or toggle the color theme"},
	{Name: CmdQuit, Usage: "quit", Summary: "exit"},
}

// ErrUnknownCommand is returned by Parse for an unrecognized command.
var ErrUnknownCommand = errors.New("unknown command")

// CommandMsg is emitted when the user executes a command.
type CommandMsg struct {
	Name Name
	Args []string

	// Severity is set for notify commands.
	Severity model.Severity
}

// Parse turns palette input into a command.
func Parse(input string) (CommandMsg, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return CommandMsg{}, fmt.Errorf("%w: empty input", ErrUnknownCommand)
	}

	name := Name(strings.ToLower(fields[0]))
	args := fields[1:]

	switch name {
	case CmdCheck, CmdReadAll, CmdClear, CmdQuit:
		return CommandMsg{Name: name}, nil

	case CmdTheme:
		if len(args) > 1 || (len(args) == 1 && args[0] != "dark" && args[0] != "light") {
			return CommandMsg{}, fmt.Errorf("usage: theme [dark|light]")
		}
		return CommandMsg{Name: name, Args: args}, nil

	case CmdCancel:
		if len(args) != 1 {
			return CommandMsg{}, fmt.Errorf("usage: cancel <reminder-id>")
		}
		return CommandMsg{Name: name, Args: args}, nil

	case CmdNotify:
		severity := model.SeverityInfo
		if len(args) > 0 && model.Severity(args[0]).Valid() {
			severity = model.Severity(args[0])
			args = args[1:]
		}
		if len(args) == 0 {
			return CommandMsg{}, fmt.Errorf("usage: notify [severity] <message>")
		}
		return CommandMsg{Name: name, Args: []string{strings.Join(args, " ")}, Severity: severity}, nil
	}

	return CommandMsg{}, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
}

// ErrorMsg is emitted when palette input cannot be parsed.
type ErrorMsg struct{ Err error }

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "check, read-all, notify warning ..."
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6
	ti.ShowSuggestions = true
	suggestions := make([]string, 0, len(Commands))
	for _, c := range Commands {
		suggestions = append(suggestions, string(c.Name))
	}
	ti.SetSuggestions(suggestions)

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		input := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if input == "" {
			return m, nil
		}
		parsed, err := Parse(input)
		if err != nil {
			return m, func() tea.Msg { return ErrorMsg{Err: err} }
		}
		return m, func() tea.Msg { return parsed }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render("Command Palette"),
		m.input.View(),
	)

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
