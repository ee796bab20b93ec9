package model

import "time"

// ReminderType identifies what a reminder is about.
type ReminderType string

const (
	ReminderInterview          ReminderType = "interview"
	ReminderTaskDeadline       ReminderType = "task_deadline"
	ReminderEvaluation         ReminderType = "evaluation"
	ReminderMeeting            ReminderType = "meeting"
	ReminderDocumentSubmission ReminderType = "document_submission"
	ReminderTrainingSession    ReminderType = "training_session"
	ReminderSystemMaintenance  ReminderType = "system_maintenance"
)

// ReminderTypes lists every reminder type in display order.
var ReminderTypes = []ReminderType{
	ReminderInterview,
	ReminderTaskDeadline,
	ReminderEvaluation,
	ReminderMeeting,
	ReminderDocumentSubmission,
	ReminderTrainingSession,
	ReminderSystemMaintenance,
}

// Valid reports whether t is a known reminder type.
func (t ReminderType) Valid() bool {
	for _, known := range ReminderTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Channel is a delivery channel for reminders.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelInApp Channel = "in_app"
	ChannelPush  Channel = "push"
)

// Channels lists every delivery channel.
var Channels = []Channel{ChannelInApp, ChannelEmail, ChannelSMS, ChannelPush}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelInApp, ChannelPush:
		return true
	}
	return false
}

// Priority of a reminder.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ReminderStatus is the lifecycle state of a reminder.
type ReminderStatus string

const (
	ReminderScheduled ReminderStatus = "scheduled"
	ReminderSent      ReminderStatus = "sent"
	ReminderCancelled ReminderStatus = "cancelled"
)

// RecurrenceType is the unit of a recurring pattern.
type RecurrenceType string

const (
	RecurDaily   RecurrenceType = "daily"
	RecurWeekly  RecurrenceType = "weekly"
	RecurMonthly RecurrenceType = "monthly"
	RecurYearly  RecurrenceType = "yearly"
)

// Valid reports whether r is a known recurrence unit.
func (r RecurrenceType) Valid() bool {
	switch r {
	case RecurDaily, RecurWeekly, RecurMonthly, RecurYearly:
		return true
	}
	return false
}

// RecurringPattern describes how a recurring reminder repeats.
type RecurringPattern struct {
	Type     RecurrenceType `json:"type"`
	Interval int            `json:"interval"`

	// AnchorDay is the day of month monthly and yearly series aim for.
	// Occurrences in shorter months clamp to the last day without moving
	// the anchor.
	AnchorDay int `json:"anchorDay,omitempty"`

	// EndDate bounds the series; occurrences after it are not scheduled.
	EndDate *time.Time `json:"endDate,omitempty"`
}

// AdvanceNotification is an early heads-up sent before a reminder's target date.
type AdvanceNotification struct {
	MinutesBefore int    `json:"minutesBefore"`
	Message       string `json:"message,omitempty"`

	// ScheduledTime is TargetDate minus MinutesBefore.
	ScheduledTime time.Time `json:"scheduledTime"`
	Sent          bool      `json:"sent"`
}

// DeliveryKind distinguishes the main notification from advance notices.
type DeliveryKind string

const (
	DeliveryMain    DeliveryKind = "main"
	DeliveryAdvance DeliveryKind = "advance"
)

// SentNotification is one entry of a reminder's delivery history.
type SentNotification struct {
	Kind     DeliveryKind `json:"kind"`
	Title    string       `json:"title"`
	Message  string       `json:"message"`
	Channels []Channel    `json:"channels"`

	// Failed lists channels whose delivery returned an error.
	Failed []Channel  `json:"failed,omitempty"`
	SentAt time.Time `json:"sentAt"`
}

// Reminder is a scheduled future notification.
type Reminder struct {
	ID         string       `json:"id"`
	Type       ReminderType `json:"type"`
	Title      string       `json:"title"`
	Message    string       `json:"message"`
	TargetDate time.Time    `json:"targetDate"`
	Recipients []string     `json:"recipients"`
	Channels   []Channel    `json:"channels"`
	Priority   Priority     `json:"priority"`

	Recurring        bool              `json:"recurring"`
	RecurringPattern *RecurringPattern `json:"recurringPattern,omitempty"`

	AdvanceNotifications []AdvanceNotification `json:"advanceNotifications"`

	Status            ReminderStatus     `json:"status"`
	SentNotifications []SentNotification `json:"sentNotifications"`

	CreatedAt time.Time `json:"createdAt"`

	// PreviousID links a recurring occurrence to the one it succeeded.
	PreviousID string `json:"previousId,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Reminder) Clone() *Reminder {
	c := *r
	c.Recipients = append([]string(nil), r.Recipients...)
	c.Channels = append([]Channel(nil), r.Channels...)
	c.AdvanceNotifications = append([]AdvanceNotification(nil), r.AdvanceNotifications...)
	c.SentNotifications = make([]SentNotification, len(r.SentNotifications))
	for i, s := range r.SentNotifications {
		s.Channels = append([]Channel(nil), s.Channels...)
		s.Failed = append([]Channel(nil), s.Failed...)
		c.SentNotifications[i] = s
	}
	if r.RecurringPattern != nil {
		p := *r.RecurringPattern
		if p.EndDate != nil {
			end := *p.EndDate
			p.EndDate = &end
		}
		c.RecurringPattern = &p
	}
	return &c
}

// HasChannel reports whether the reminder delivers through ch.
func (r *Reminder) HasChannel(ch Channel) bool {
	for _, c := range r.Channels {
		if c == ch {
			return true
		}
	}
	return false
}
