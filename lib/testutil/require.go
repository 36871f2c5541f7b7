// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// TB is the subset of testing.TB the helpers need.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed.
//
//	line := testutil.RequireReceive(t, lines, 5*time.Second, "waiting for line %d", i)
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while %s", describe(msgAndArgs))
		}
		return v
	case <-time.After(timeout): //nolint:realclock test hang prevention
		t.Fatalf("no value after %v while %s", timeout, describe(msgAndArgs))
	}
	panic("unreachable")
}

// RequireClosed fails the test unless ch is closed (or delivers a
// value) within timeout.
func RequireClosed(t TB, ch <-chan struct{}, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout): //nolint:realclock test hang prevention
		t.Fatalf("channel still open after %v while %s", timeout, describe(msgAndArgs))
	}
}

// Eventually polls condition until it returns true, failing the test
// after timeout. Use it for state reached by another goroutine that
// offers no channel to wait on, such as a counter.
func Eventually(t TB, condition func() bool, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	deadline := time.After(timeout) //nolint:realclock test hang prevention
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for !condition() {
		select {
		case <-tick.C:
		case <-deadline:
			t.Fatalf("condition not met after %v while %s", timeout, describe(msgAndArgs))
			return
		}
	}
}

func describe(msgAndArgs []any) string {
	switch {
	case len(msgAndArgs) == 0:
		return "waiting"
	case len(msgAndArgs) == 1:
		return fmt.Sprint(msgAndArgs[0])
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs...)
}
