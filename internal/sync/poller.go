// Package sync runs the reminder engine's due check in the background and
// reports results to the Bubble Tea runtime.
package sync

import (
	"context"
	"log"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/ims-notify/internal/reminder"
)

// PollState represents the current state of the poll loop.
type PollState int

const (
	PollIdle PollState = iota
	PollRunning
	PollError
)

// PollStatus holds the state of the poll loop.
type PollStatus struct {
	State     PollState
	LastCheck time.Time
	Delivered int
	Error     error
}

// CheckResultMsg is a tea.Msg sent when a due check completes.
type CheckResultMsg struct {
	Result reminder.CheckResult
	Error  error
}

// DefaultInterval is the time between due checks.
const DefaultInterval = 60 * time.Second

// checkTimeout is the maximum time allowed for a single check, including
// channel deliveries.
const checkTimeout = 2 * time.Minute

// Checker runs one due check.
type Checker interface {
	Check(ctx context.Context) (reminder.CheckResult, error)
}

// Poller calls Check once at start and then on every tick.
type Poller struct {
	checker   Checker
	interval  time.Duration
	status    PollStatus
	resultCh  chan CheckResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// New creates a Poller. A non-positive interval uses DefaultInterval.
func New(c Checker, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		checker:   c,
		interval:  interval,
		resultCh:  make(chan CheckResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the polling goroutine and returns a tea.Cmd that waits
// for the first result.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForResult()
}

// Stop halts the polling goroutine and waits for an in-flight check to
// finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.running = false
	p.mu.Unlock()

	<-p.doneCh
}

// Trigger requests an immediate check.
func (p *Poller) Trigger() tea.Cmd {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A check is already pending.
	}
	return nil
}

// Status returns the current state of the poll loop.
func (p *Poller) Status() PollStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Results exposes check results for callers outside the Bubble Tea runtime.
func (p *Poller) Results() <-chan CheckResultMsg {
	return p.resultCh
}

func (p *Poller) loop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Run an initial check immediately
	p.check()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.check()
		case <-p.triggerCh:
			p.check()
		}
	}
}

func (p *Poller) check() {
	p.setStatus(PollRunning, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	result, err := p.checker.Check(ctx)
	if err != nil {
		log.Printf("poller: reminder check: %v", err)
		p.setStatus(PollError, len(result.Notices), err)
	} else {
		p.setStatus(PollIdle, len(result.Notices), nil)
	}

	p.sendResult(CheckResultMsg{Result: result, Error: err})
}

func (p *Poller) setStatus(state PollState, delivered int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state != PollRunning {
		p.status.LastCheck = time.Now()
		p.status.Delivered += delivered
	}
}

// sendResult sends a result without blocking.
func (p *Poller) sendResult(msg CheckResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next check result.
// Call it after handling a CheckResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
