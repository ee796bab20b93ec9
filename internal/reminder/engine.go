// Package reminder schedules future notifications and promotes them to the
// delivery fan-out once they fall due.
package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/store"
)

var (
	// ErrNotFound is returned for an unknown reminder id.
	ErrNotFound = errors.New("reminder not found")

	// ErrNotScheduled is returned when an operation needs a scheduled
	// reminder but the reminder was already sent or cancelled.
	ErrNotScheduled = errors.New("reminder is not scheduled")

	// ErrInvalidSpec wraps validation failures of Schedule and Update.
	ErrInvalidSpec = errors.New("invalid reminder")

	// ErrPersist wraps snapshot write failures. The change it reports is
	// already applied in memory.
	ErrPersist = errors.New("persisting reminders")
)

// Notice is a single due delivery handed to the Deliverer.
type Notice struct {
	ReminderID string
	Type       model.ReminderType
	Kind       model.DeliveryKind
	Title      string
	Message    string
	TargetDate time.Time
	Recipients []string
	Channels   []model.Channel
	Priority   model.Priority
}

// Deliverer sends a notice through its channels and reports the channels
// that failed.
type Deliverer interface {
	Dispatch(ctx context.Context, n Notice) []model.Channel
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, n Notice) []model.Channel

// Dispatch calls f.
func (f DelivererFunc) Dispatch(ctx context.Context, n Notice) []model.Channel { return f(ctx, n) }

// Advance requests an advance notice a number of minutes before the target.
type Advance struct {
	MinutesBefore int    `json:"minutesBefore"`
	Message       string `json:"message,omitempty"`
}

// Spec describes a reminder to schedule.
type Spec struct {
	Type       model.ReminderType
	Title      string
	Message    string
	TargetDate time.Time
	Recipients []string
	Channels   []model.Channel
	Priority   model.Priority
	Recurring  bool
	Pattern    *model.RecurringPattern
	Advance    []Advance
}

// Patch is a shallow update of a scheduled reminder. Nil fields are left
// unchanged.
type Patch struct {
	Title      *string
	Message    *string
	TargetDate *time.Time
	Recipients []string
	Channels   []model.Channel
	Priority   *model.Priority
	Recurring  *bool
	Pattern    *model.RecurringPattern

	// Advance replaces the advance notices. When TargetDate changes and
	// Advance is nil, unsent notices are moved with the target date.
	Advance []Advance
}

// CheckResult summarizes one pass of Check.
type CheckResult struct {
	// Notices are the deliveries made, in processing order.
	Notices []Notice

	// Successors are the ids of recurring occurrences scheduled.
	Successors []string

	// Failed counts channel deliveries that returned an error.
	Failed int
}

// Engine owns the reminder list. It is safe for concurrent use.
type Engine struct {
	kv        store.KV
	deliverer Deliverer
	now       func() time.Time

	checkMu gosync.Mutex

	mu        gosync.Mutex
	reminders []*model.Reminder
	pos       map[string]int
	queue     dueQueue
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine persisting to kv and delivering through d.
func New(kv store.KV, d Deliverer, opts ...Option) *Engine {
	e := &Engine{
		kv:        kv,
		deliverer: d,
		now:       time.Now,
		pos:       make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load reads the persisted reminder list and rebuilds the due queue.
// Malformed data is discarded.
func (e *Engine) Load(ctx context.Context) error {
	raw, ok, err := e.kv.Get(ctx, store.KeyScheduledReminders)
	if err != nil {
		return fmt.Errorf("loading reminders: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.reminders = nil
	e.pos = make(map[string]int)
	e.queue = nil
	if !ok {
		return nil
	}

	var list []*model.Reminder
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		log.Printf("reminder: discarding malformed %s snapshot: %v", store.KeyScheduledReminders, err)
		return nil
	}

	for _, r := range list {
		if r == nil || r.ID == "" {
			continue
		}
		e.appendLocked(r)
	}
	return nil
}

// Schedule validates spec, computes advance notice times, and stores the
// reminder. Target dates in the past are accepted and fire on the next Check.
func (e *Engine) Schedule(ctx context.Context, spec Spec) (*model.Reminder, error) {
	r, err := e.build(spec)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.appendLocked(r)
	if err := e.persistLocked(ctx); err != nil {
		return r.Clone(), err
	}
	return r.Clone(), nil
}

func (e *Engine) build(spec Spec) (*model.Reminder, error) {
	if spec.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidSpec)
	}
	if spec.TargetDate.IsZero() {
		return nil, fmt.Errorf("%w: target date is required", ErrInvalidSpec)
	}
	if !spec.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidSpec, spec.Type)
	}

	channels, err := normalizeChannels(spec.Channels)
	if err != nil {
		return nil, err
	}

	priority := spec.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidSpec, priority)
	}

	pattern, err := normalizePattern(spec.Recurring, spec.Pattern)
	if err != nil {
		return nil, err
	}

	target := spec.TargetDate.UTC()
	if pattern != nil && pattern.AnchorDay == 0 {
		anchorPattern(pattern, target)
	}
	advance, err := buildAdvance(target, spec.Advance, nil)
	if err != nil {
		return nil, err
	}

	return &model.Reminder{
		ID:                   uuid.NewString(),
		Type:                 spec.Type,
		Title:                spec.Title,
		Message:              spec.Message,
		TargetDate:           target,
		Recipients:           append([]string{}, spec.Recipients...),
		Channels:             channels,
		Priority:             priority,
		Recurring:            spec.Recurring,
		RecurringPattern:     pattern,
		AdvanceNotifications: advance,
		Status:               model.ReminderScheduled,
		SentNotifications:    []model.SentNotification{},
		CreatedAt:            e.now().UTC(),
	}, nil
}

// Cancel moves a scheduled reminder to cancelled. Delivery history is kept.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.findLocked(id)
	if !ok {
		return ErrNotFound
	}
	if r.Status != model.ReminderScheduled {
		return fmt.Errorf("cancelling %s (%s): %w", id, r.Status, ErrNotScheduled)
	}
	r.Status = model.ReminderCancelled
	return e.persistLocked(ctx)
}

// Update applies p to a scheduled reminder and returns the result.
func (e *Engine) Update(ctx context.Context, id string, p Patch) (*model.Reminder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.findLocked(id)
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != model.ReminderScheduled {
		return nil, fmt.Errorf("updating %s (%s): %w", id, r.Status, ErrNotScheduled)
	}

	next := r.Clone()
	if p.Title != nil {
		if *p.Title == "" {
			return nil, fmt.Errorf("%w: title is required", ErrInvalidSpec)
		}
		next.Title = *p.Title
	}
	if p.Message != nil {
		next.Message = *p.Message
	}
	if p.Recipients != nil {
		next.Recipients = append([]string{}, p.Recipients...)
	}
	if p.Channels != nil {
		channels, err := normalizeChannels(p.Channels)
		if err != nil {
			return nil, err
		}
		next.Channels = channels
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidSpec, *p.Priority)
		}
		next.Priority = *p.Priority
	}
	if p.Recurring != nil {
		next.Recurring = *p.Recurring
	}
	if p.Pattern != nil {
		next.RecurringPattern = p.Pattern
	}
	if p.Recurring != nil || p.Pattern != nil {
		pattern, err := normalizePattern(next.Recurring, next.RecurringPattern)
		if err != nil {
			return nil, err
		}
		next.RecurringPattern = pattern
	}

	targetChanged := false
	if p.TargetDate != nil {
		if p.TargetDate.IsZero() {
			return nil, fmt.Errorf("%w: target date is required", ErrInvalidSpec)
		}
		t := p.TargetDate.UTC()
		targetChanged = !t.Equal(next.TargetDate)
		next.TargetDate = t
	}

	switch {
	case p.Advance != nil:
		advance, err := buildAdvance(next.TargetDate, p.Advance, r.AdvanceNotifications)
		if err != nil {
			return nil, err
		}
		next.AdvanceNotifications = advance
	case targetChanged:
		for i := range next.AdvanceNotifications {
			a := &next.AdvanceNotifications[i]
			if !a.Sent {
				a.ScheduledTime = next.TargetDate.Add(-time.Duration(a.MinutesBefore) * time.Minute)
			}
		}
	}
	if next.RecurringPattern != nil && (targetChanged || p.Pattern != nil) {
		anchorPattern(next.RecurringPattern, next.TargetDate)
	}

	*r = *next
	e.enqueueLocked(r, e.pos[r.ID])
	if err := e.persistLocked(ctx); err != nil {
		return r.Clone(), err
	}
	return r.Clone(), nil
}

// Get returns a copy of the reminder with the given id.
func (e *Engine) Get(id string) (*model.Reminder, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.findLocked(id)
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// List returns copies of all reminders in insertion order.
func (e *Engine) List() []*model.Reminder {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*model.Reminder, len(e.reminders))
	for i, r := range e.reminders {
		out[i] = r.Clone()
	}
	return out
}

type dueItem struct {
	pos      int
	reminder *model.Reminder
	advance  []int
	main     bool
}

// Check delivers every advance notice and reminder that is due, marks them
// sent, and schedules the next occurrence of recurring reminders.
// Reminders are processed in insertion order. Delivery runs without holding
// the engine lock.
func (e *Engine) Check(ctx context.Context) (CheckResult, error) {
	e.checkMu.Lock()
	defer e.checkMu.Unlock()

	items := e.collectDue()

	var result CheckResult
	type outcome struct {
		item   dueItem
		sent   []model.SentNotification
		failed int
	}
	outcomes := make([]outcome, 0, len(items))

	for _, it := range items {
		o := outcome{item: it}
		r := it.reminder

		for _, idx := range it.advance {
			a := r.AdvanceNotifications[idx]
			n := noticeFor(r, model.DeliveryAdvance)
			n.Message = advanceMessage(r, a)
			o.sent = append(o.sent, e.dispatch(ctx, n, &result))
		}
		if it.main {
			o.sent = append(o.sent, e.dispatch(ctx, noticeFor(r, model.DeliveryMain), &result))
		}
		outcomes = append(outcomes, o)
	}

	if len(outcomes) == 0 {
		return result, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, o := range outcomes {
		r, ok := e.findLocked(o.item.reminder.ID)
		if !ok {
			continue
		}
		for _, idx := range o.item.advance {
			markAdvanceSent(r, o.item.reminder.AdvanceNotifications[idx])
		}
		r.SentNotifications = append(r.SentNotifications, o.sent...)

		// A target moved by Update during dispatch is due again later.
		if !o.item.main || r.Status != model.ReminderScheduled || !r.TargetDate.Equal(o.item.reminder.TargetDate) {
			continue
		}
		r.Status = model.ReminderSent
		if succ := e.successorLocked(r); succ != nil {
			result.Successors = append(result.Successors, succ.ID)
		}
	}

	return result, e.persistLocked(ctx)
}

// markAdvanceSent flags the entry of r matching delivered. Entries are
// matched by offset and time since Update may have replaced the slice.
func markAdvanceSent(r *model.Reminder, delivered model.AdvanceNotification) {
	for i := range r.AdvanceNotifications {
		a := &r.AdvanceNotifications[i]
		if a.MinutesBefore == delivered.MinutesBefore && a.ScheduledTime.Equal(delivered.ScheduledTime) {
			a.Sent = true
			return
		}
	}
}

// collectDue pops due entries from the queue, drops stale ones, and returns
// snapshots of the affected reminders in insertion order.
func (e *Engine) collectDue() []dueItem {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	byID := make(map[string]*dueItem)
	seen := make(map[dueEntry]bool)

	for _, entry := range e.queue.popDue(now) {
		key := dueEntry{reminderID: entry.reminderID, advance: entry.advance}
		if seen[key] {
			continue
		}
		r, ok := e.findLocked(entry.reminderID)
		if !ok || r.Status == model.ReminderCancelled || !entryValid(r, entry) {
			continue
		}
		seen[key] = true

		it, ok := byID[r.ID]
		if !ok {
			it = &dueItem{pos: e.pos[r.ID], reminder: r.Clone()}
			byID[r.ID] = it
		}
		if entry.advance == mainDelivery {
			it.main = true
		} else {
			it.advance = append(it.advance, entry.advance)
		}
	}

	items := make([]dueItem, 0, len(byID))
	for _, it := range byID {
		sort.Ints(it.advance)
		items = append(items, *it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].pos < items[j].pos })
	return items
}

func entryValid(r *model.Reminder, e dueEntry) bool {
	if e.advance == mainDelivery {
		return r.Status == model.ReminderScheduled && r.TargetDate.Equal(e.due)
	}
	if e.advance >= len(r.AdvanceNotifications) {
		return false
	}
	a := r.AdvanceNotifications[e.advance]
	return !a.Sent && a.ScheduledTime.Equal(e.due)
}

func (e *Engine) dispatch(ctx context.Context, n Notice, result *CheckResult) model.SentNotification {
	var failed []model.Channel
	if e.deliverer != nil {
		failed = e.deliverer.Dispatch(ctx, n)
	}
	if len(failed) > 0 {
		log.Printf("reminder: %s %s delivered with failed channels %v", n.ReminderID, n.Kind, failed)
	}
	result.Notices = append(result.Notices, n)
	result.Failed += len(failed)

	return model.SentNotification{
		Kind:     n.Kind,
		Title:    n.Title,
		Message:  n.Message,
		Channels: append([]model.Channel{}, n.Channels...),
		Failed:   failed,
		SentAt:   e.now().UTC(),
	}
}

// successorLocked appends the next occurrence of a recurring reminder, or
// returns nil when the series has ended.
func (e *Engine) successorLocked(r *model.Reminder) *model.Reminder {
	if !r.Recurring || r.RecurringPattern == nil {
		return nil
	}
	next := NextOccurrence(r.TargetDate, *r.RecurringPattern)
	if !next.After(r.TargetDate) || !HasNext(next, *r.RecurringPattern) {
		return nil
	}

	succ := r.Clone()
	succ.ID = uuid.NewString()
	succ.TargetDate = next
	succ.Status = model.ReminderScheduled
	succ.SentNotifications = []model.SentNotification{}
	succ.CreatedAt = e.now().UTC()
	succ.PreviousID = r.ID
	for i := range succ.AdvanceNotifications {
		a := &succ.AdvanceNotifications[i]
		a.Sent = false
		a.ScheduledTime = next.Add(-time.Duration(a.MinutesBefore) * time.Minute)
	}

	e.appendLocked(succ)
	return succ
}

func (e *Engine) appendLocked(r *model.Reminder) {
	pos := len(e.reminders)
	e.reminders = append(e.reminders, r)
	e.pos[r.ID] = pos
	e.enqueueLocked(r, pos)
}

func (e *Engine) enqueueLocked(r *model.Reminder, pos int) {
	if r.Status != model.ReminderScheduled {
		return
	}
	for i, a := range r.AdvanceNotifications {
		if !a.Sent {
			e.queue.add(dueEntry{due: a.ScheduledTime, pos: pos, reminderID: r.ID, advance: i})
		}
	}
	e.queue.add(dueEntry{due: r.TargetDate, pos: pos, reminderID: r.ID, advance: mainDelivery})
}

func (e *Engine) findLocked(id string) (*model.Reminder, bool) {
	pos, ok := e.pos[id]
	if !ok {
		return nil, false
	}
	return e.reminders[pos], true
}

func (e *Engine) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(e.reminders)
	if err != nil {
		return fmt.Errorf("marshaling reminders: %w", err)
	}
	if err := e.kv.Set(ctx, store.KeyScheduledReminders, string(data)); err != nil {
		log.Printf("reminder: persisting snapshot: %v", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func noticeFor(r *model.Reminder, kind model.DeliveryKind) Notice {
	return Notice{
		ReminderID: r.ID,
		Type:       r.Type,
		Kind:       kind,
		Title:      r.Title,
		Message:    r.Message,
		TargetDate: r.TargetDate,
		Recipients: append([]string{}, r.Recipients...),
		Channels:   append([]model.Channel{}, r.Channels...),
		Priority:   r.Priority,
	}
}

func normalizeChannels(in []model.Channel) ([]model.Channel, error) {
	if len(in) == 0 {
		return []model.Channel{model.ChannelInApp}, nil
	}
	out := make([]model.Channel, 0, len(in))
	seen := make(map[model.Channel]bool, len(in))
	for _, c := range in {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidSpec, c)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

func normalizePattern(recurring bool, p *model.RecurringPattern) (*model.RecurringPattern, error) {
	if p == nil {
		if recurring {
			return nil, fmt.Errorf("%w: recurring reminder needs a pattern", ErrInvalidSpec)
		}
		return nil, nil
	}
	if !p.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown recurrence %q", ErrInvalidSpec, p.Type)
	}
	out := *p
	if out.Interval < 1 {
		out.Interval = 1
	}
	if out.AnchorDay < 0 || out.AnchorDay > 31 {
		return nil, fmt.Errorf("%w: anchor day %d out of range", ErrInvalidSpec, out.AnchorDay)
	}
	if out.EndDate != nil {
		end := out.EndDate.UTC()
		out.EndDate = &end
	}
	return &out, nil
}

// buildAdvance computes advance notices for target. An entry from prev with
// the same offset and scheduled time keeps its sent flag.
func buildAdvance(target time.Time, in []Advance, prev []model.AdvanceNotification) ([]model.AdvanceNotification, error) {
	out := make([]model.AdvanceNotification, 0, len(in))
	for _, a := range in {
		if a.MinutesBefore < 0 {
			return nil, fmt.Errorf("%w: negative advance offset %d", ErrInvalidSpec, a.MinutesBefore)
		}
		at := target.Add(-time.Duration(a.MinutesBefore) * time.Minute)
		sent := false
		for _, p := range prev {
			if p.MinutesBefore == a.MinutesBefore && p.ScheduledTime.Equal(at) {
				sent = p.Sent
				break
			}
		}
		out = append(out, model.AdvanceNotification{
			MinutesBefore: a.MinutesBefore,
			Message:       a.Message,
			ScheduledTime: at,
			Sent:          sent,
		})
	}
	return out, nil
}

func advanceMessage(r *model.Reminder, a model.AdvanceNotification) string {
	if a.Message != "" {
		return a.Message
	}
	return fmt.Sprintf("%s %s", r.Title, humanizeLead(a.MinutesBefore))
}

// humanizeLead renders an advance offset such as "in 2 hours".
func humanizeLead(minutes int) string {
	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("in 1 %s", unit)
		}
		return fmt.Sprintf("in %d %ss", n, unit)
	}
	switch {
	case minutes <= 0:
		return "now"
	case minutes%(24*60) == 0:
		return plural(minutes/(24*60), "day")
	case minutes%60 == 0:
		return plural(minutes/60, "hour")
	default:
		return plural(minutes, "minute")
	}
}
