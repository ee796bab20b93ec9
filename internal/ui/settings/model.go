// Package settings is the credential view: it lists the secrets delivery
// transports and the API read from the keyring and lets the user set,
// remove and test them.
package settings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ims-notify/internal/credential"
	"github.com/nhle/ims-notify/internal/keys"
	"github.com/nhle/ims-notify/internal/theme"
)

// verifyTimeout bounds a connection test.
const verifyTimeout = 20 * time.Second

// Mode represents the current state of the settings view.
type Mode int

const (
	ModeList          Mode = iota // credential list
	ModeForm                      // secret entry
	ModeVerifying                 // connection test in flight
	ModeVerifyResult              // connection test outcome
	ModeConfirmDelete             // confirm removal
)

// Credentials is the keyring subset the view needs.
type Credentials interface {
	Lookup(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Verifier tests a secret against the service it unlocks and returns the
// identity it authenticated as.
type Verifier func(ctx context.Context, secret string) (string, error)

// DoneMsg signals the view should close.
type DoneMsg struct{}

// SavedMsg is dispatched after a secret was stored.
type SavedMsg struct {
	Key   string
	Label string
	Err   error
}

// DeletedMsg is dispatched after a secret was removed.
type DeletedMsg struct {
	Key   string
	Label string
	Err   error
}

// VerifyResultMsg carries the outcome of a connection test.
type VerifyResultMsg struct {
	Key  string
	Name string
	Err  error
}

type statusLoadedMsg struct {
	set map[string]bool
	err error
}

// labels names the keys the view knows about.
var labels = map[string]string{
	credential.KeyIMAPPassword: "IMAP password",
	credential.KeySMSToken:     "SMS gateway token",
	credential.KeyJWTSecret:    "API signing secret",
}

// Label returns a display name for a credential key.
func Label(k string) string {
	if l, ok := labels[k]; ok {
		return l
	}
	return k
}

// formBindings holds form values on the heap so huh's Value() pointers
// survive Bubble Tea model copies.
type formBindings struct {
	secret  string
	confirm bool
}

// Model is the Bubble Tea model for the settings view.
type Model struct {
	mode      Mode
	creds     Credentials
	verifiers map[string]Verifier
	entries   []string
	set       map[string]bool

	selectedIdx int
	form        *huh.Form
	fb          *formBindings

	verifyName string
	verifyErr  error
	spinner    spinner.Model

	statusMsg string

	keys          *keys.KeyMap
	width, height int
}

// New creates the settings view. creds may be nil when no keyring is
// available; verifiers may be nil.
func New(creds Credentials, verifiers map[string]Verifier, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:      ModeList,
		creds:     creds,
		verifiers: verifiers,
		entries:   append([]string{}, credential.Known...),
		set:       make(map[string]bool),
		fb:        &formBindings{},
		spinner:   sp,
		keys:      k,
		width:     width,
		height:    height,
	}
}

// Init reads which credentials are present.
func (m Model) Init() tea.Cmd {
	return m.loadStatus()
}

// Typing reports whether a form owns the keyboard.
func (m Model) Typing() bool {
	return m.mode == ModeForm || m.mode == ModeConfirmDelete
}

// Mode returns the current mode.
func (m Model) Mode() Mode { return m.mode }

// Selected returns the key under the cursor.
func (m Model) Selected() string {
	if len(m.entries) == 0 {
		return ""
	}
	return m.entries[m.selectedIdx]
}

// IsSet reports whether a credential is stored.
func (m Model) IsSet(k string) bool { return m.set[k] }

// Update handles messages and dispatches based on the current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusLoadedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error reading keyring: %v", msg.err)
		}
		m.set = msg.set
		return m, nil

	case SavedMsg:
		m.mode = ModeList
		if msg.Err != nil {
			m.statusMsg = fmt.Sprintf("Error saving %s: %v", msg.Label, msg.Err)
			return m, nil
		}
		m.statusMsg = msg.Label + " saved"
		return m, m.loadStatus()

	case DeletedMsg:
		m.mode = ModeList
		if msg.Err != nil {
			m.statusMsg = fmt.Sprintf("Error removing %s: %v", msg.Label, msg.Err)
			return m, nil
		}
		m.statusMsg = msg.Label + " removed"
		return m, m.loadStatus()

	case VerifyResultMsg:
		if m.mode != ModeVerifying {
			return m, nil
		}
		m.verifyName = msg.Name
		m.verifyErr = msg.Err
		m.mode = ModeVerifyResult
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeVerifying {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m.updateForm(msg)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeList:
		return m.handleListKeys(msg)
	case ModeForm, ModeConfirmDelete:
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeList
			m.form = nil
			return m, nil
		}
		return m.updateForm(msg)
	case ModeVerifying:
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeList
		}
		return m, nil
	case ModeVerifyResult:
		switch msg.String() {
		case "enter", "esc":
			m.mode = ModeList
			m.verifyName = ""
			m.verifyErr = nil
		case "r":
			if m.verifyErr != nil {
				return m.startVerify()
			}
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleListKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return DoneMsg{} }

	case key.Matches(msg, m.keys.Down):
		m.selectedIdx = (m.selectedIdx + 1) % len(m.entries)
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.selectedIdx--
		if m.selectedIdx < 0 {
			m.selectedIdx = len(m.entries) - 1
		}
		return m, nil
	}

	if m.creds == nil {
		return m, nil
	}

	switch msg.String() {
	case "enter", "e":
		*m.fb = formBindings{}
		m.form = m.buildSecretForm(m.Selected())
		m.mode = ModeForm
		return m, m.form.Init()

	case "d":
		if !m.set[m.Selected()] {
			return m, nil
		}
		*m.fb = formBindings{}
		m.form = m.buildConfirmForm(m.Selected())
		m.mode = ModeConfirmDelete
		return m, m.form.Init()

	case "t":
		if m.verifiers[m.Selected()] == nil || !m.set[m.Selected()] {
			m.statusMsg = "No connection test for " + Label(m.Selected())
			return m, nil
		}
		return m.startVerify()
	}
	return m, nil
}

func (m Model) startVerify() (Model, tea.Cmd) {
	m.mode = ModeVerifying
	m.verifyErr = nil
	return m, tea.Batch(m.spinner.Tick, m.verify(m.Selected()))
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || (m.mode != ModeForm && m.mode != ModeConfirmDelete) {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		m.mode = ModeList
		m.form = nil
		return m, nil
	case huh.StateCompleted:
		k := m.Selected()
		m.form = nil
		if m.mode == ModeConfirmDelete {
			if !m.fb.confirm {
				m.mode = ModeList
				return m, nil
			}
			return m, m.remove(k)
		}
		return m, m.save(k, strings.TrimSpace(m.fb.secret))
	}

	return m, cmd
}

func (m Model) buildSecretForm(k string) *huh.Form {
	label := Label(k)
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(label).
				Description("Stored in the system keyring. Never written to the config file.").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.secret).
				Validate(validateRequired(label)),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m Model) buildConfirmForm(k string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Remove " + Label(k) + "?").
				Affirmative("Remove").
				Negative("Keep").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

// --- Commands ---

func (m Model) loadStatus() tea.Cmd {
	creds := m.creds
	entries := m.entries
	return func() tea.Msg {
		set := make(map[string]bool, len(entries))
		if creds == nil {
			return statusLoadedMsg{set: set}
		}
		var firstErr error
		for _, k := range entries {
			v, err := creds.Lookup(k)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			set[k] = v != ""
		}
		return statusLoadedMsg{set: set, err: firstErr}
	}
}

func (m Model) save(k, value string) tea.Cmd {
	creds := m.creds
	return func() tea.Msg {
		return SavedMsg{Key: k, Label: Label(k), Err: creds.Set(k, value)}
	}
}

func (m Model) remove(k string) tea.Cmd {
	creds := m.creds
	return func() tea.Msg {
		return DeletedMsg{Key: k, Label: Label(k), Err: creds.Delete(k)}
	}
}

func (m Model) verify(k string) tea.Cmd {
	creds := m.creds
	v := m.verifiers[k]
	return func() tea.Msg {
		secret, err := creds.Lookup(k)
		if err != nil {
			return VerifyResultMsg{Key: k, Err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
		defer cancel()
		name, err := v(ctx, secret)
		return VerifyResultMsg{Key: k, Name: name, Err: err}
	}
}

// --- View ---

// View renders the settings view for the current mode.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	switch m.mode {
	case ModeForm, ModeConfirmDelete:
		if m.form == nil {
			return ""
		}
		return style.Render(m.form.View())
	case ModeVerifying:
		return style.Render(fmt.Sprintf(
			"%s Testing %s...\n\nPress esc to cancel.",
			m.spinner.View(), Label(m.Selected()),
		))
	case ModeVerifyResult:
		return style.Render(m.viewVerifyResult())
	default:
		return style.Render(m.viewList())
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	b.WriteString(titleStyle.Render("Credentials"))
	b.WriteString("\n\n")

	if m.creds == nil {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true).Render(
			"No keyring available.\nSecrets are read from the config file and IMS_ environment variables.",
		))
		return b.String()
	}

	for i, k := range m.entries {
		state := lipgloss.NewStyle().Foreground(theme.ColorGray).Render("not set")
		if m.set[k] {
			state = lipgloss.NewStyle().Foreground(theme.ColorGreen).Render("set")
		}
		line := fmt.Sprintf("%-20s %s", Label(k), state)
		if m.verifiers[k] != nil {
			line += lipgloss.NewStyle().Foreground(theme.ColorGray).Render("  · testable")
		}
		if i == m.selectedIdx {
			b.WriteString(theme.SelectedItemStyle.Render(line))
		} else {
			b.WriteString(theme.ListItemStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorYellow).Italic(true).Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render(
		"enter set | d remove | t test | esc back",
	))
	return b.String()
}

func (m Model) viewVerifyResult() string {
	hint := lipgloss.NewStyle().Foreground(theme.ColorGray)
	if m.verifyErr != nil {
		return lipgloss.NewStyle().Bold(true).Foreground(theme.ColorRed).Render("Connection failed") +
			"\n\n" + m.verifyErr.Error() + "\n\n" + hint.Render("r retry | enter/esc back")
	}
	name := m.verifyName
	if name == "" {
		name = "OK"
	}
	return lipgloss.NewStyle().Bold(true).Foreground(theme.ColorGreen).Render("Connection successful") +
		"\n\n" + "Authenticated as: " + name + "\n\n" + hint.Render("enter/esc back")
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
