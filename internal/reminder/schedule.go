package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/ims-notify/internal/model"
)

// Interview describes an interview to remind participants about.
type Interview struct {
	Candidate  string    `json:"candidate" yaml:"candidate"`
	Position   string    `json:"position" yaml:"position"`
	At         time.Time `json:"at" yaml:"at"`
	Location   string    `json:"location,omitempty" yaml:"location"`
	Recipients []string  `json:"recipients" yaml:"recipients"`
}

// TaskDeadline describes an intern task with a due date.
type TaskDeadline struct {
	Task       string    `json:"task" yaml:"task"`
	Assignee   string    `json:"assignee,omitempty" yaml:"assignee"`
	Due        time.Time `json:"due" yaml:"due"`
	Recipients []string  `json:"recipients" yaml:"recipients"`
}

// Evaluation describes a performance evaluation that must be submitted.
type Evaluation struct {
	Intern     string    `json:"intern" yaml:"intern"`
	Period     string    `json:"period,omitempty" yaml:"period"`
	Due        time.Time `json:"due" yaml:"due"`
	Recipients []string  `json:"recipients" yaml:"recipients"`
}

// Training describes a training session. Sessions repeat weekly unless
// Pattern is set.
type Training struct {
	Program    string                  `json:"program" yaml:"program"`
	At         time.Time               `json:"at" yaml:"at"`
	Until      *time.Time              `json:"until,omitempty" yaml:"until"`
	Pattern    *model.RecurringPattern `json:"pattern,omitempty" yaml:"pattern"`
	Recipients []string                `json:"recipients" yaml:"recipients"`
}

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * minutesPerHour
)

// Spec reminds by email, in-app and push with high priority,
// one day, two hours and fifteen minutes ahead.
func (iv Interview) Spec() Spec {
	msg := fmt.Sprintf("Interview with %s for %s at %s", iv.Candidate, iv.Position, iv.At.Format("Jan 2 15:04"))
	if iv.Location != "" {
		msg += " (" + iv.Location + ")"
	}
	return Spec{
		Type:       model.ReminderInterview,
		Title:      "Interview: " + iv.Candidate,
		Message:    msg,
		TargetDate: iv.At,
		Recipients: iv.Recipients,
		Channels:   []model.Channel{model.ChannelEmail, model.ChannelInApp, model.ChannelPush},
		Priority:   model.PriorityHigh,
		Advance: []Advance{
			{MinutesBefore: minutesPerDay, Message: fmt.Sprintf("Interview with %s tomorrow", iv.Candidate)},
			{MinutesBefore: 2 * minutesPerHour, Message: fmt.Sprintf("Interview with %s in 2 hours", iv.Candidate)},
			{MinutesBefore: 15, Message: fmt.Sprintf("Interview with %s starts in 15 minutes", iv.Candidate)},
		},
	}
}

// Spec reminds in-app and by email with medium priority, one
// day and two hours before the due date.
func (td TaskDeadline) Spec() Spec {
	msg := fmt.Sprintf("Task %q is due %s", td.Task, td.Due.Format("Jan 2 15:04"))
	if td.Assignee != "" {
		msg = fmt.Sprintf("Task %q assigned to %s is due %s", td.Task, td.Assignee, td.Due.Format("Jan 2 15:04"))
	}
	return Spec{
		Type:       model.ReminderTaskDeadline,
		Title:      "Deadline: " + td.Task,
		Message:    msg,
		TargetDate: td.Due,
		Recipients: td.Recipients,
		Channels:   []model.Channel{model.ChannelInApp, model.ChannelEmail},
		Priority:   model.PriorityMedium,
		Advance: []Advance{
			{MinutesBefore: minutesPerDay, Message: fmt.Sprintf("%q is due tomorrow", td.Task)},
			{MinutesBefore: 2 * minutesPerHour, Message: fmt.Sprintf("%q is due in 2 hours", td.Task)},
		},
	}
}

// Spec reminds by email and in-app with medium priority, three
// days and one day before the due date.
func (ev Evaluation) Spec() Spec {
	subject := ev.Intern
	if ev.Period != "" {
		subject = fmt.Sprintf("%s (%s)", ev.Intern, ev.Period)
	}
	return Spec{
		Type:       model.ReminderEvaluation,
		Title:      "Evaluation due: " + subject,
		Message:    fmt.Sprintf("Submit the evaluation for %s by %s", subject, ev.Due.Format("Jan 2")),
		TargetDate: ev.Due,
		Recipients: ev.Recipients,
		Channels:   []model.Channel{model.ChannelEmail, model.ChannelInApp},
		Priority:   model.PriorityMedium,
		Advance: []Advance{
			{MinutesBefore: 3 * minutesPerDay, Message: fmt.Sprintf("Evaluation for %s is due in 3 days", subject)},
			{MinutesBefore: minutesPerDay, Message: fmt.Sprintf("Evaluation for %s is due tomorrow", subject)},
		},
	}
}

// Spec reminds in-app and by email with medium priority, one day
// and thirty minutes ahead, repeating weekly unless t.Pattern says otherwise.
func (t Training) Spec() Spec {
	pattern := t.Pattern
	if pattern == nil {
		pattern = &model.RecurringPattern{Type: model.RecurWeekly, Interval: 1}
	}
	if t.Until != nil && pattern.EndDate == nil {
		p := *pattern
		p.EndDate = t.Until
		pattern = &p
	}
	return Spec{
		Type:       model.ReminderTrainingSession,
		Title:      "Training: " + t.Program,
		Message:    fmt.Sprintf("%s session at %s", t.Program, t.At.Format("Mon Jan 2 15:04")),
		TargetDate: t.At,
		Recipients: t.Recipients,
		Channels:   []model.Channel{model.ChannelInApp, model.ChannelEmail},
		Priority:   model.PriorityMedium,
		Recurring:  true,
		Pattern:    pattern,
		Advance: []Advance{
			{MinutesBefore: minutesPerDay, Message: fmt.Sprintf("%s training tomorrow", t.Program)},
			{MinutesBefore: 30, Message: fmt.Sprintf("%s training starts in 30 minutes", t.Program)},
		},
	}
}

// ScheduleInterview schedules iv with its standard channels and notices.
func (e *Engine) ScheduleInterview(ctx context.Context, iv Interview) (*model.Reminder, error) {
	return e.Schedule(ctx, iv.Spec())
}

// ScheduleTaskDeadline schedules td with its standard channels and notices.
func (e *Engine) ScheduleTaskDeadline(ctx context.Context, td TaskDeadline) (*model.Reminder, error) {
	return e.Schedule(ctx, td.Spec())
}

// ScheduleEvaluation schedules ev with its standard channels and notices.
func (e *Engine) ScheduleEvaluation(ctx context.Context, ev Evaluation) (*model.Reminder, error) {
	return e.Schedule(ctx, ev.Spec())
}

// ScheduleTraining schedules t with its standard channels and notices.
func (e *Engine) ScheduleTraining(ctx context.Context, t Training) (*model.Reminder, error) {
	return e.Schedule(ctx, t.Spec())
}
