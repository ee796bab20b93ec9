package sync_test

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/nhle/ims-notify/internal/reminder"
	"github.com/nhle/ims-notify/internal/sync"
)

type countingChecker struct {
	mu    gosync.Mutex
	calls int
	err   error
}

func (c *countingChecker) Check(context.Context) (reminder.CheckResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return reminder.CheckResult{Notices: []reminder.Notice{{ReminderID: "r"}}}, c.err
}

func (c *countingChecker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func waitResult(t *testing.T, p *sync.Poller) sync.CheckResultMsg {
	t.Helper()
	select {
	case msg := <-p.Results():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for check result")
		return sync.CheckResultMsg{}
	}
}

func TestPoller_InitialCheckAndTrigger(t *testing.T) {
	c := &countingChecker{}
	p := sync.New(c, time.Hour)
	p.Start()
	t.Cleanup(p.Stop)

	first := waitResult(t, p)
	if first.Error != nil || len(first.Result.Notices) != 1 {
		t.Errorf("first result = %+v", first)
	}

	p.Trigger()
	waitResult(t, p)
	if c.count() != 2 {
		t.Errorf("checks = %d, want initial + triggered", c.count())
	}

	st := p.Status()
	if st.State != sync.PollIdle || st.Delivered != 2 || st.LastCheck.IsZero() {
		t.Errorf("status = %+v", st)
	}
}

func TestPoller_Ticks(t *testing.T) {
	c := &countingChecker{}
	p := sync.New(c, 10*time.Millisecond)
	p.Start()

	for i := 0; i < 3; i++ {
		waitResult(t, p)
	}
	p.Stop()

	after := c.count()
	time.Sleep(50 * time.Millisecond)
	if c.count() != after {
		t.Errorf("checks continued after Stop: %d -> %d", after, c.count())
	}
}

func TestPoller_ReportsErrors(t *testing.T) {
	boom := errors.New("store unavailable")
	p := sync.New(&countingChecker{err: boom}, time.Hour)
	p.Start()
	t.Cleanup(p.Stop)

	msg := waitResult(t, p)
	if !errors.Is(msg.Error, boom) {
		t.Errorf("Error = %v, want %v", msg.Error, boom)
	}
	if st := p.Status(); st.State != sync.PollError {
		t.Errorf("State = %v, want PollError", st.State)
	}
}

func TestPoller_StartTwiceIsNoop(t *testing.T) {
	p := sync.New(&countingChecker{}, time.Hour)
	if p.Start() == nil {
		t.Fatal("first Start returned nil cmd")
	}
	t.Cleanup(p.Stop)
	if p.Start() != nil {
		t.Error("second Start returned a cmd")
	}
}
