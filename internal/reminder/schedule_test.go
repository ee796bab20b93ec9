package reminder_test

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/reminder"
)

func offsets(r *model.Reminder) []int {
	var out []int
	for _, a := range r.AdvanceNotifications {
		out = append(out, a.MinutesBefore)
	}
	return out
}

func TestTypedConstructors(t *testing.T) {
	e, clock, _, _ := newEngine(t)
	ctx := t.Context()
	at := clock.Now().Add(72 * time.Hour)

	interview, err := e.ScheduleInterview(ctx, reminder.Interview{
		Candidate:  "Linh Tran",
		Position:   "Backend Intern",
		At:         at,
		Location:   "Room 4",
		Recipients: []string{"hr-1", "mentor-2"},
	})
	if err != nil {
		t.Fatalf("ScheduleInterview: %v", err)
	}
	deadline, err := e.ScheduleTaskDeadline(ctx, reminder.TaskDeadline{Task: "API docs", Assignee: "intern-7", Due: at})
	if err != nil {
		t.Fatalf("ScheduleTaskDeadline: %v", err)
	}
	evaluation, err := e.ScheduleEvaluation(ctx, reminder.Evaluation{Intern: "Minh", Period: "midterm", Due: at})
	if err != nil {
		t.Fatalf("ScheduleEvaluation: %v", err)
	}
	training, err := e.ScheduleTraining(ctx, reminder.Training{Program: "Git workflow", At: at})
	if err != nil {
		t.Fatalf("ScheduleTraining: %v", err)
	}

	tests := []struct {
		name     string
		got      *model.Reminder
		typ      model.ReminderType
		channels []model.Channel
		priority model.Priority
		offsets  []int
	}{
		{
			name:     "interview",
			got:      interview,
			typ:      model.ReminderInterview,
			channels: []model.Channel{model.ChannelEmail, model.ChannelInApp, model.ChannelPush},
			priority: model.PriorityHigh,
			offsets:  []int{24 * 60, 120, 15},
		},
		{
			name:     "task deadline",
			got:      deadline,
			typ:      model.ReminderTaskDeadline,
			channels: []model.Channel{model.ChannelInApp, model.ChannelEmail},
			priority: model.PriorityMedium,
			offsets:  []int{24 * 60, 120},
		},
		{
			name:     "evaluation",
			got:      evaluation,
			typ:      model.ReminderEvaluation,
			channels: []model.Channel{model.ChannelEmail, model.ChannelInApp},
			priority: model.PriorityMedium,
			offsets:  []int{3 * 24 * 60, 24 * 60},
		},
		{
			name:     "training",
			got:      training,
			typ:      model.ReminderTrainingSession,
			channels: []model.Channel{model.ChannelInApp, model.ChannelEmail},
			priority: model.PriorityMedium,
			offsets:  []int{24 * 60, 30},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got.Type != tc.typ {
				t.Errorf("Type = %q, want %q", tc.got.Type, tc.typ)
			}
			if !reflect.DeepEqual(tc.got.Channels, tc.channels) {
				t.Errorf("Channels = %v, want %v", tc.got.Channels, tc.channels)
			}
			if tc.got.Priority != tc.priority {
				t.Errorf("Priority = %q, want %q", tc.got.Priority, tc.priority)
			}
			if got := offsets(tc.got); !reflect.DeepEqual(got, tc.offsets) {
				t.Errorf("advance offsets = %v, want %v", got, tc.offsets)
			}
			for _, a := range tc.got.AdvanceNotifications {
				if a.Message == "" {
					t.Errorf("advance %d has no message", a.MinutesBefore)
				}
			}
		})
	}

	if !strings.Contains(interview.Message, "Room 4") {
		t.Errorf("interview message %q missing location", interview.Message)
	}
	if !reflect.DeepEqual(interview.Recipients, []string{"hr-1", "mentor-2"}) {
		t.Errorf("Recipients = %v", interview.Recipients)
	}
	if !training.Recurring || training.RecurringPattern == nil || training.RecurringPattern.Type != model.RecurWeekly {
		t.Errorf("training recurrence = %+v, want weekly", training.RecurringPattern)
	}
	if interview.Recurring || deadline.Recurring || evaluation.Recurring {
		t.Error("one-off constructors produced recurring reminders")
	}
}

func TestScheduleTraining_CustomPattern(t *testing.T) {
	e, clock, _, _ := newEngine(t)
	until := clock.Now().AddDate(0, 3, 0)

	r, err := e.ScheduleTraining(t.Context(), reminder.Training{
		Program: "Security basics",
		At:      clock.Now().Add(time.Hour),
		Until:   &until,
		Pattern: &model.RecurringPattern{Type: model.RecurMonthly, Interval: 1},
	})
	if err != nil {
		t.Fatalf("ScheduleTraining: %v", err)
	}

	p := r.RecurringPattern
	if p.Type != model.RecurMonthly {
		t.Errorf("Type = %q, want monthly", p.Type)
	}
	if p.EndDate == nil || !p.EndDate.Equal(until) {
		t.Errorf("EndDate = %v, want %v", p.EndDate, until)
	}
}
