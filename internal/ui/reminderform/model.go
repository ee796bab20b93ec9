package reminderform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/reminder"
	"github.com/nhle/ims-notify/internal/theme"
)

const dateTimeLayout = "2006-01-02 15:04"

// SubmittedMsg is dispatched when a new reminder is submitted.
type SubmittedMsg struct {
	Spec reminder.Spec
}

// UpdatedMsg is dispatched when an existing reminder is edited.
type UpdatedMsg struct {
	ID    string
	Patch reminder.Patch
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	kind       string
	title      string
	message    string
	target     string
	recipients string
	channels   []string
	priority   string
	repeat     string
	interval   string
	until      string
	advance    string
}

// Model is the Bubble Tea model for the reminder create/edit form.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	editMode bool
	editID   string
	loc      *time.Location
	width    int
	height   int
}

// New creates a new reminder form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		loc:    time.Local,
		width:  width,
		height: height,
	}
}

// StartCreate initializes the form for a new reminder due at target.
func (m *Model) StartCreate(target time.Time) tea.Cmd {
	m.editMode = false
	m.editID = ""
	*m.fb = formBindings{
		kind:     string(model.ReminderMeeting),
		target:   target.In(m.loc).Format(dateTimeLayout),
		channels: []string{string(model.ChannelInApp)},
		priority: string(model.PriorityMedium),
		interval: "1",
		advance:  "60",
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// StartEdit initializes the form with an existing reminder.
func (m *Model) StartEdit(r *model.Reminder) tea.Cmd {
	m.editMode = true
	m.editID = r.ID

	channels := make([]string, len(r.Channels))
	for i, c := range r.Channels {
		channels[i] = string(c)
	}
	offsets := make([]string, len(r.AdvanceNotifications))
	for i, a := range r.AdvanceNotifications {
		offsets[i] = strconv.Itoa(a.MinutesBefore)
	}

	*m.fb = formBindings{
		kind:       string(r.Type),
		title:      r.Title,
		message:    r.Message,
		target:     r.TargetDate.In(m.loc).Format(dateTimeLayout),
		recipients: strings.Join(r.Recipients, ", "),
		channels:   channels,
		priority:   string(r.Priority),
		interval:   "1",
		advance:    strings.Join(offsets, ","),
	}
	if r.Recurring && r.RecurringPattern != nil {
		m.fb.repeat = string(r.RecurringPattern.Type)
		m.fb.interval = strconv.Itoa(r.RecurringPattern.Interval)
		if r.RecurringPattern.EndDate != nil {
			m.fb.until = r.RecurringPattern.EndDate.In(m.loc).Format("2006-01-02")
		}
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Reminder"
	if m.editMode {
		titleText = "Edit Reminder"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(titleStyle.Render(titleText) + "\n" + m.form.View())
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	typeOpts := make([]huh.Option[string], len(model.ReminderTypes))
	for i, t := range model.ReminderTypes {
		typeOpts[i] = huh.NewOption(strings.ReplaceAll(string(t), "_", " "), string(t))
	}
	chanOpts := make([]huh.Option[string], len(model.Channels))
	for i, c := range model.Channels {
		chanOpts[i] = huh.NewOption(string(c), string(c))
	}

	details := huh.NewGroup(
		huh.NewSelect[string]().
			Title("Type").
			Options(typeOpts...).
			Value(&m.fb.kind),
		huh.NewInput().
			Title("Title").
			Placeholder("What is this reminder about?").
			Value(&m.fb.title).
			Validate(validateRequired("Title")),
		huh.NewText().
			Title("Message").
			Placeholder("Optional details...").
			Value(&m.fb.message),
		huh.NewInput().
			Title("When").
			Placeholder("YYYY-MM-DD HH:MM").
			Value(&m.fb.target).
			Validate(m.validateDateTime),
		huh.NewSelect[string]().
			Title("Priority").
			Options(
				huh.NewOption("High", string(model.PriorityHigh)),
				huh.NewOption("Medium", string(model.PriorityMedium)),
				huh.NewOption("Low", string(model.PriorityLow)),
			).
			Value(&m.fb.priority),
	)

	delivery := huh.NewGroup(
		huh.NewInput().
			Title("Recipients").
			Placeholder("user ids or emails, comma separated").
			Value(&m.fb.recipients),
		huh.NewMultiSelect[string]().
			Title("Channels").
			Options(chanOpts...).
			Value(&m.fb.channels).
			Validate(func(s []string) error {
				if len(s) == 0 {
					return fmt.Errorf("pick at least one channel")
				}
				return nil
			}),
		huh.NewInput().
			Title("Advance notices").
			Description("Minutes before, comma separated").
			Placeholder("1440,60").
			Value(&m.fb.advance).
			Validate(func(s string) error {
				_, err := parseAdvance(s)
				return err
			}),
	)

	repeat := huh.NewGroup(
		huh.NewSelect[string]().
			Title("Repeat").
			Options(
				huh.NewOption("Never", ""),
				huh.NewOption("Daily", string(model.RecurDaily)),
				huh.NewOption("Weekly", string(model.RecurWeekly)),
				huh.NewOption("Monthly", string(model.RecurMonthly)),
				huh.NewOption("Yearly", string(model.RecurYearly)),
			).
			Value(&m.fb.repeat),
		huh.NewInput().
			Title("Every").
			Placeholder("1").
			Value(&m.fb.interval).
			Validate(validateInterval),
		huh.NewInput().
			Title("Until").
			Placeholder("YYYY-MM-DD (optional)").
			Value(&m.fb.until).
			Validate(validateOptionalDate),
	)

	return huh.NewForm(details, delivery, repeat).
		WithWidth(m.formWidth()).
		WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	spec, err := m.fb.spec(m.loc)
	if err != nil {
		// Field validators already reject bad input.
		return func() tea.Msg { return CancelMsg{} }
	}

	if !m.editMode {
		return func() tea.Msg { return SubmittedMsg{Spec: spec} }
	}

	recurring := spec.Recurring
	patch := reminder.Patch{
		Title:      &spec.Title,
		Message:    &spec.Message,
		TargetDate: &spec.TargetDate,
		Recipients: spec.Recipients,
		Channels:   spec.Channels,
		Priority:   &spec.Priority,
		Recurring:  &recurring,
		Pattern:    spec.Pattern,
		Advance:    spec.Advance,
	}
	id := m.editID
	return func() tea.Msg { return UpdatedMsg{ID: id, Patch: patch} }
}

// spec converts the bound field values into a reminder.Spec.
func (fb *formBindings) spec(loc *time.Location) (reminder.Spec, error) {
	target, err := time.ParseInLocation(dateTimeLayout, strings.TrimSpace(fb.target), loc)
	if err != nil {
		return reminder.Spec{}, fmt.Errorf("parsing target: %w", err)
	}
	advance, err := parseAdvance(fb.advance)
	if err != nil {
		return reminder.Spec{}, err
	}

	spec := reminder.Spec{
		Type:       model.ReminderType(fb.kind),
		Title:      strings.TrimSpace(fb.title),
		Message:    strings.TrimSpace(fb.message),
		TargetDate: target,
		Recipients: splitList(fb.recipients),
		Priority:   model.Priority(fb.priority),
		Advance:    advance,
	}
	for _, c := range fb.channels {
		spec.Channels = append(spec.Channels, model.Channel(c))
	}

	if fb.repeat != "" {
		interval, err := strconv.Atoi(strings.TrimSpace(fb.interval))
		if err != nil || interval < 1 {
			interval = 1
		}
		p := &model.RecurringPattern{Type: model.RecurrenceType(fb.repeat), Interval: interval}
		if u := strings.TrimSpace(fb.until); u != "" {
			end, err := time.ParseInLocation("2006-01-02", u, loc)
			if err != nil {
				return reminder.Spec{}, fmt.Errorf("parsing end date: %w", err)
			}
			end = end.Add(24*time.Hour - time.Second)
			p.EndDate = &end
		}
		spec.Recurring = true
		spec.Pattern = p
	}

	return spec, nil
}

func parseAdvance(s string) ([]reminder.Advance, error) {
	var out []reminder.Advance
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("advance %q must be a positive number of minutes", part)
		}
		out = append(out, reminder.Advance{MinutesBefore: n})
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
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

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func (m Model) validateDateTime(s string) error {
	if _, err := time.ParseInLocation(dateTimeLayout, strings.TrimSpace(s), m.loc); err != nil {
		return fmt.Errorf("invalid date, use YYYY-MM-DD HH:MM")
	}
	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateInterval(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err != nil || n < 1 {
		return fmt.Errorf("interval must be a positive number")
	}
	return nil
}

func validateOptionalDate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	return nil
}
