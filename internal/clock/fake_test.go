package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AfterFunc(t *testing.T) {
	c := NewFake(epoch)
	fired := 0
	c.AfterFunc(2*time.Second, func() { fired++ })

	c.Advance(time.Second)
	if fired != 0 {
		t.Fatalf("fired early")
	}
	if c.Pending() != 1 {
		t.Fatalf("expected 1 pending, got %d", c.Pending())
	}

	c.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("expected 1 call, got %d", fired)
	}
	c.Advance(time.Hour)
	if fired != 1 {
		t.Fatalf("one-shot timer fired twice")
	}
}

func TestFake_Stop(t *testing.T) {
	c := NewFake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("expected Stop to report an active timer")
	}
	if timer.Stop() {
		t.Fatal("second Stop should report false")
	}
	c.Advance(time.Minute)
	if fired {
		t.Fatal("stopped timer fired")
	}
	if c.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", c.Pending())
	}
}

func TestFake_CallbackSchedulesWithinWindow(t *testing.T) {
	c := NewFake(epoch)
	var order []time.Duration
	c.AfterFunc(time.Second, func() {
		order = append(order, c.Now().Sub(epoch))
		c.AfterFunc(time.Second, func() {
			order = append(order, c.Now().Sub(epoch))
		})
	})

	// The nested timer's deadline is computed from the advanced time, so
	// it lands after the window.
	c.Advance(time.Second)
	if len(order) != 1 {
		t.Fatalf("expected 1 call, got %d", len(order))
	}
	if d, ok := c.NextDeadline(); !ok || d != time.Second {
		t.Fatalf("expected next deadline in 1s, got %v (%v)", d, ok)
	}
	c.Advance(time.Second)
	if len(order) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(order))
	}
}

func TestFake_Ticker(t *testing.T) {
	c := NewFake(epoch)
	ticker := c.NewTicker(5 * time.Second)

	c.Advance(5 * time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("expected a tick")
	}

	ticker.Stop()
	c.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker ticked")
	default:
	}
}

func TestFake_WaitForTimers(t *testing.T) {
	c := NewFake(epoch)
	done := make(chan struct{})
	go func() {
		c.AfterFunc(time.Second, func() { close(done) })
	}()
	c.WaitForTimers(1)
	c.Advance(time.Second)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}
