// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowStandsStill(t *testing.T) {
	c := Fake(epoch)
	if !c.Now().Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", c.Now(), epoch)
	}
	c.Advance(90 * time.Second)
	if want := epoch.Add(90 * time.Second); !c.Now().Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", c.Now(), want)
	}
}

func TestFakeAfterFiresAtDeadline(t *testing.T) {
	c := Fake(epoch)
	channel := c.After(time.Second)

	c.Advance(999 * time.Millisecond)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	c.Advance(time.Millisecond)
	select {
	case fired := <-channel:
		if want := epoch.Add(time.Second); !fired.Equal(want) {
			t.Fatalf("fired at %v, want %v", fired, want)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}

	if c.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d after firing, want 0", c.PendingCount())
	}
}

func TestFakeAfterNonPositiveIsImmediate(t *testing.T) {
	c := Fake(epoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) should be ready immediately")
	}
	if c.PendingCount() != 0 {
		t.Fatalf("After(0) registered a waiter")
	}
}

func TestFakeSleepWithWaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		c.Sleep(5 * time.Second)
		close(done)
	}()

	c.WaitForTimers(1)
	if d, ok := c.NextDeadline(); !ok || d != 5*time.Second {
		t.Fatalf("NextDeadline() = %v, %v; want 5s, true", d, ok)
	}
	c.Advance(5 * time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestFakeAdvanceFiresInDeadlineOrder(t *testing.T) {
	c := Fake(epoch)
	late := c.After(3 * time.Second)
	early := c.After(time.Second)

	c.Advance(2 * time.Second)
	select {
	case <-early:
	default:
		t.Fatal("early waiter did not fire")
	}
	select {
	case <-late:
		t.Fatal("late waiter fired too soon")
	default:
	}
	if c.PendingCount() != 1 {
		t.Fatalf("PendingCount() = %d, want 1", c.PendingCount())
	}
}
