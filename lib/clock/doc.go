// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the
// metrics push client.
//
// The writer goroutine waits in three places: the bounded queue pop,
// the pacing sleep between sends, and the reconnect backoff. All three
// go through a Clock so that tests can drive them with [Fake] instead
// of sleeping for real. Production code uses [Real].
//
// # FakeClock Synchronization
//
// A goroutine that calls After or Sleep on a FakeClock registers a
// pending waiter. Tests call WaitForTimers to block until the waiter
// exists, then Advance to fire it:
//
//	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go writer.run()
//	fakeClock.WaitForTimers(1)
//	fakeClock.Advance(time.Second)
package clock
