// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tsdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bureau-foundation/clustermetrics/lib/clock"
)

// Queue is a bounded FIFO of wire lines between the producer (Log) and
// the writer goroutine. Push never blocks: when the queue is full the
// oldest line is evicted to make room. Pop blocks up to a timeout.
//
// The notify channel has capacity 1 and is signaled on every Push, so
// a waiting Pop wakes without polling.
//
// Safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	ring    []Line
	head    int
	count   int
	dropped uint64
	notify  chan struct{}
	clock   clock.Clock
}

// NewQueue returns a Queue holding at most capacity lines. Pop
// timeouts are measured on clk. capacity must be positive.
func NewQueue(capacity int, clk clock.Clock) *Queue {
	if capacity <= 0 {
		panic(fmt.Sprintf("tsdb: queue capacity must be positive, got %d", capacity))
	}
	return &Queue{
		ring:   make([]Line, capacity),
		notify: make(chan struct{}, 1),
		clock:  clk,
	}
}

// Push appends line, evicting the oldest entry if the queue is full.
// It reports whether an entry was evicted.
func (q *Queue) Push(line Line) (evicted bool) {
	q.mu.Lock()
	if q.count == len(q.ring) {
		q.ring[q.head] = ""
		q.head = (q.head + 1) % len(q.ring)
		q.count--
		q.dropped++
		evicted = true
	}
	q.ring[(q.head+q.count)%len(q.ring)] = line
	q.count++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return evicted
}

// TryPop removes and returns the oldest line without waiting.
func (q *Queue) TryPop() (Line, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return "", false
	}
	line := q.ring[q.head]
	q.ring[q.head] = ""
	q.head = (q.head + 1) % len(q.ring)
	q.count--
	return line, true
}

// Pop removes and returns the oldest line, waiting up to timeout for
// one to arrive. It returns false on timeout or when ctx is done. A
// line that is already queued is returned even if ctx is done.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (Line, bool) {
	if line, ok := q.TryPop(); ok {
		return line, true
	}
	if ctx.Err() != nil {
		return "", false
	}

	expired := q.clock.After(timeout)
	for {
		select {
		case <-q.notify:
			if line, ok := q.TryPop(); ok {
				return line, true
			}
		case <-expired:
			return q.TryPop()
		case <-ctx.Done():
			return q.TryPop()
		}
	}
}

// Discard empties the queue and returns how many lines were removed.
// Discarded lines are not counted as dropped.
func (q *Queue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.count
	clear(q.ring)
	q.head = 0
	q.count = 0
	return n
}

// Snapshot returns the queued lines, oldest first, without removing
// them.
func (q *Queue) Snapshot() []Line {
	q.mu.Lock()
	defer q.mu.Unlock()
	lines := make([]Line, 0, q.count)
	for i := 0; i < q.count; i++ {
		lines = append(lines, q.ring[(q.head+i)%len(q.ring)])
	}
	return lines
}

// Len returns the number of queued lines.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return len(q.ring) }

// Dropped returns how many lines have been evicted by overflow since
// creation.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
