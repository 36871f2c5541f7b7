// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tsdb

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bureau-foundation/clustermetrics/lib/clock"
	"github.com/bureau-foundation/clustermetrics/lib/netutil"
)

// Dialer opens the TCP connection to the destination. *net.Dialer
// satisfies it; tests substitute fakes.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

const (
	// popTimeout bounds each wait on the queue so the writer
	// re-checks its exit condition at least once a second.
	popTimeout = 1 * time.Second

	// dialTimeout is the per-attempt connect timeout of the default
	// dialer.
	dialTimeout = 2 * time.Second

	// writeTimeout bounds a single line write on a connection that
	// stopped draining.
	writeTimeout = 10 * time.Second
)

// counters are written by the producer and the writer and read by
// Stats, so they are atomic.
type counters struct {
	queued          atomic.Uint64
	sent            atomic.Uint64
	duplicates      atomic.Uint64
	sendFailures    atomic.Uint64
	connectFailures atomic.Uint64
	discarded       atomic.Uint64
}

// writer is the single consumer of the queue. It owns the connection
// and the pending retry line; nothing else touches them.
type writer struct {
	queue   *Queue
	dialer  Dialer
	address string
	clock   clock.Clock
	random  func() float64
	mps     float64

	testMode bool
	sink     func(Line)

	logger *slog.Logger
	stats  *counters

	// closing is done once a graceful close was requested (or a stop,
	// since it derives from stopping). stopping is done on hard stop.
	closing  context.Context
	stopping context.Context
	done     chan struct{}

	conn    net.Conn
	backoff *backoff.ExponentialBackOff

	// pendingRetry holds a line whose send failed. It goes out
	// before anything newer is taken from the queue.
	pendingRetry *Line
}

func (w *writer) run() {
	defer close(w.done)
	defer w.disconnect()

	for {
		if w.stopping.Err() != nil {
			w.abandon()
			return
		}

		// Pacing counts the whole iteration, including the wait for a
		// line and any reconnecting.
		started := w.clock.Now()
		line, ok := w.next()
		if ok && w.stopping.Err() != nil {
			w.pendingRetry = &line
			continue
		}
		if !ok {
			if w.closing.Err() != nil && w.queue.Len() == 0 && w.pendingRetry == nil {
				w.logger.Debug("queue drained, writer exiting")
				return
			}
			continue
		}

		if err := w.send(line); err != nil {
			w.pendingRetry = &line
			continue
		}
		w.stats.sent.Add(1)
		w.pace(started)
	}
}

// next returns the pending retry line if there is one, otherwise the
// next queued line.
func (w *writer) next() (Line, bool) {
	if w.pendingRetry != nil {
		line := *w.pendingRetry
		w.pendingRetry = nil
		return line, true
	}
	return w.queue.Pop(w.closing, popTimeout)
}

// send transmits one line, connecting first if needed. An error means
// the line was not delivered and must be retried; after a stop the
// error is the stop itself.
func (w *writer) send(line Line) error {
	if w.testMode {
		if w.sink != nil {
			w.sink(line)
		}
		return nil
	}

	if w.conn == nil {
		if err := w.connect(); err != nil {
			return err
		}
	}

	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:realclock socket deadline
	if _, err := io.WriteString(w.conn, string(line)); err != nil {
		w.stats.sendFailures.Add(1)
		w.logger.Warn("send failed, reconnecting",
			"error", err,
			"cause", failureCause(err),
			"queue_length", w.queue.Len(),
		)
		w.disconnect()
		return err
	}
	w.logger.Debug("sent", "line", string(line))
	return nil
}

// connect dials until it succeeds or the writer is stopped, backing
// off 1s, 2s, 4s, ... up to 30s between attempts.
func (w *writer) connect() error {
	w.backoff.Reset()
	for attempt := 1; ; attempt++ {
		conn, err := w.dialer.DialContext(w.stopping, "tcp", w.address)
		if err == nil {
			w.conn = conn
			w.logger.Info("connected", "attempts", attempt)
			return nil
		}
		if w.stopping.Err() != nil {
			return w.stopping.Err()
		}

		w.stats.connectFailures.Add(1)
		wait := w.backoff.NextBackOff()
		w.logger.Warn("connect failed, will retry",
			"error", err,
			"attempt", attempt,
			"backoff", wait,
		)
		select {
		case <-w.clock.After(wait):
		case <-w.stopping.Done():
			return w.stopping.Err()
		}
	}
}

// pace sleeps so that sends average mps per second. The target delay
// is drawn from U(0, 2/mps), which keeps the mean at 1/mps while
// letting bursts through; time already spent in this iteration,
// waiting on the queue included, counts toward it.
func (w *writer) pace(started time.Time) {
	if w.mps <= 0 {
		return
	}
	delay := time.Duration(w.random() * 2 / w.mps * float64(time.Second))
	remaining := delay - w.clock.Now().Sub(started)
	if remaining <= 0 {
		return
	}
	select {
	case <-w.clock.After(remaining):
	case <-w.stopping.Done():
	}
}

// abandon discards everything still waiting after a hard stop.
func (w *writer) abandon() {
	discarded := w.queue.Discard()
	if w.pendingRetry != nil {
		discarded++
		w.pendingRetry = nil
	}
	if discarded > 0 {
		w.stats.discarded.Add(uint64(discarded))
		w.logger.Warn("stopped with unsent points", "discarded", discarded)
	}
}

func (w *writer) disconnect() {
	if w.conn == nil {
		return
	}
	if err := w.conn.Close(); err != nil {
		w.logger.Debug("closing connection", "error", err)
	}
	w.conn = nil
}

func failureCause(err error) string {
	switch {
	case netutil.IsTimeout(err):
		return "timeout"
	case netutil.IsPeerClosed(err):
		return "peer closed"
	case netutil.IsLocallyClosed(err):
		return "closed locally"
	default:
		return "other"
	}
}
