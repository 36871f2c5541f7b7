// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tsdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/bureau-foundation/clustermetrics/lib/clock"
)

const (
	// DefaultPort is the OpenTSDB telnet-protocol port.
	DefaultPort = 4242

	// DefaultQueueSize is the queue capacity used when
	// Options.QueueSize is zero.
	DefaultQueueSize = 100000

	probeTimeout = 3 * time.Second
)

// HostTagMode selects how the host tag is filled in. The zero value
// is HostTagAuto.
type HostTagMode struct {
	disabled bool
	value    string
}

var (
	// HostTagAuto tags every point with the local hostname.
	HostTagAuto = HostTagMode{}

	// HostTagNone adds no host tag.
	HostTagNone = HostTagMode{disabled: true}
)

// HostTagValue tags every point with the given host name. An empty
// name is HostTagAuto.
func HostTagValue(name string) HostTagMode {
	return HostTagMode{value: name}
}

// Enabled reports whether a host tag is added at all.
func (m HostTagMode) Enabled() bool { return !m.disabled }

func (m HostTagMode) String() string {
	switch {
	case m.disabled:
		return "none"
	case m.value == "":
		return "auto"
	default:
		return m.value
	}
}

// Options configures a Client. Host is required; everything else has
// a usable zero value.
type Options struct {
	Host string
	// Port defaults to DefaultPort.
	Port int
	// QueueSize defaults to DefaultQueueSize.
	QueueSize int

	HostTag HostTagMode

	// MaxPointsPerSecond paces the writer. Zero means unlimited.
	MaxPointsPerSecond float64

	// CheckHost makes New connect to the destination once and fail
	// with ErrUnreachable if that does not work. Ignored in test mode.
	CheckHost bool

	// TestMode disables all network I/O. Lines are handed to TestSink,
	// if set, instead of being written to a socket.
	TestMode bool
	TestSink func(Line)

	// Dedup is shared by clients that should suppress each other's
	// duplicates. Nil gives the client a window of its own.
	Dedup *DedupWindow

	// Clock defaults to clock.Real().
	Clock clock.Clock
	// Dialer defaults to a net.Dialer with a 2s timeout.
	Dialer Dialer
	// Random returns values in [0, 1) for send pacing. Defaults to
	// math/rand/v2.Float64.
	Random func() float64
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// State is the lifecycle state of a Client.
type State int

const (
	StateRunning State = iota
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Stats is a point-in-time snapshot of client counters.
type Stats struct {
	Queued          uint64
	Sent            uint64
	Dropped         uint64
	Discarded       uint64
	Duplicates      uint64
	SendFailures    uint64
	ConnectFailures uint64
	QueueLength     int
}

// Client pushes points to one OpenTSDB endpoint. Log may be called
// from any number of goroutines; a single background writer drains
// the queue onto the connection.
type Client struct {
	address string
	clock   clock.Clock
	dedup   *DedupWindow
	queue   *Queue
	host    string // empty when no host tag is added
	logger  *slog.Logger
	stats   counters

	// mu orders Log against Close and Stop: Log holds it shared from
	// the closed check through the push, so a line accepted before
	// Close returns is always in the queue when the writer drains it.
	mu      sync.RWMutex
	closed  bool
	stopped bool

	requestClose context.CancelFunc
	requestStop  context.CancelFunc
	done         chan struct{}
}

// New starts a client and its background writer. The writer runs
// until Close (after draining) or Stop, or until ctx is cancelled,
// which acts like Stop.
func New(ctx context.Context, options Options) (*Client, error) {
	if options.Host == "" {
		return nil, errors.New("tsdb: host is required")
	}
	if options.Port == 0 {
		options.Port = DefaultPort
	}
	if options.Port < 0 || options.Port > 65535 {
		return nil, fmt.Errorf("tsdb: port %d out of range", options.Port)
	}
	if options.QueueSize == 0 {
		options.QueueSize = DefaultQueueSize
	}
	if options.QueueSize < 0 {
		return nil, fmt.Errorf("tsdb: queue size %d must be positive", options.QueueSize)
	}
	if options.MaxPointsPerSecond < 0 {
		return nil, fmt.Errorf("tsdb: max points per second %v must not be negative", options.MaxPointsPerSecond)
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Dialer == nil {
		options.Dialer = &net.Dialer{Timeout: dialTimeout}
	}
	if options.Random == nil {
		options.Random = rand.Float64
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Dedup == nil {
		options.Dedup = NewDedupWindow()
	}

	var host string
	if options.HostTag.Enabled() {
		host = options.HostTag.value
		if host == "" {
			hostname, err := os.Hostname()
			if err != nil {
				return nil, fmt.Errorf("tsdb: determining host tag: %w", err)
			}
			host = hostname
		}
	}

	address := net.JoinHostPort(options.Host, strconv.Itoa(options.Port))
	logger := options.Logger.With("component", "tsdb", "destination", address)

	if options.CheckHost && !options.TestMode {
		if err := probe(ctx, options.Dialer, address); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnreachable, address, err)
		}
	}

	stopping, requestStop := context.WithCancel(ctx)
	closing, requestClose := context.WithCancel(stopping)

	client := &Client{
		address:      address,
		clock:        options.Clock,
		dedup:        options.Dedup,
		queue:        NewQueue(options.QueueSize, options.Clock),
		host:         host,
		logger:       logger,
		requestClose: requestClose,
		requestStop:  requestStop,
		done:         make(chan struct{}),
	}

	w := &writer{
		queue:    client.queue,
		dialer:   options.Dialer,
		address:  address,
		clock:    options.Clock,
		random:   options.Random,
		mps:      options.MaxPointsPerSecond,
		testMode: options.TestMode,
		sink:     options.TestSink,
		logger:   logger,
		stats:    &client.stats,
		closing:  closing,
		stopping: stopping,
		done:     client.done,
		backoff:  newConnectBackoff(),
	}
	go w.run()

	// Cancellation goes through Stop so that it serializes with Log:
	// a line pushed while the writer is abandoning the queue is still
	// discarded and counted.
	go func() {
		select {
		case <-ctx.Done():
			client.Stop()
		case <-client.done:
		}
	}()

	logger.Info("client started",
		"queue_size", options.QueueSize,
		"host_tag", options.HostTag.String(),
		"max_points_per_second", options.MaxPointsPerSecond,
		"test_mode", options.TestMode,
	)
	return client, nil
}

// probe connects once and closes the connection.
func probe(ctx context.Context, dialer Dialer, address string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Address returns the destination as host:port.
func (c *Client) Address() string { return c.address }

// Log encodes a point and queues it for sending. The timestamp is
// taken from a "timestamp" tag if present (which is then removed),
// otherwise from the clock. The host tag is added unless the caller
// set one or the client was created with HostTagNone.
//
// A point identical to one already sent for the current timestamp is
// dropped: Log returns an empty line and a nil error. Errors all wrap
// ErrPrecondition. The caller's tags are not modified.
func (c *Client) Log(metric string, value float64, tags Tags) (Line, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return "", ErrClosed
	}
	select {
	case <-c.done:
		// The context passed to New was cancelled.
		return "", ErrClosed
	default:
	}
	if !ValidMetricName(metric) {
		return "", fmt.Errorf("%w %q", ErrInvalidMetricName, metric)
	}

	tags = tags.Clone()
	var timestamp int64
	if raw, ok := tags.Get(TimestampTag); ok {
		parsed, err := parseTimestamp(raw)
		if err != nil {
			return "", err
		}
		timestamp = parsed
		tags = tags.Delete(TimestampTag)
	} else {
		timestamp = c.clock.Now().Unix()
	}
	if c.host != "" {
		if _, ok := tags.Get(HostTag); !ok {
			tags = append(tags, Tag{Key: HostTag, Value: c.host})
		}
	}

	line, err := Encode(Point{Metric: metric, Timestamp: timestamp, Value: value, Tags: tags})
	if err != nil {
		return "", err
	}

	if !c.dedup.Admit(timestamp, NewFingerprint(metric, timestamp, tags, c.address)) {
		c.stats.duplicates.Add(1)
		c.logger.Debug("duplicate point discarded", "metric", metric, "timestamp", timestamp)
		return "", nil
	}

	if c.queue.Push(line) {
		c.logger.Warn("queue full, dropped oldest point",
			"capacity", c.queue.Cap(),
			"dropped", c.queue.Dropped(),
		)
	}
	c.stats.queued.Add(1)
	return line, nil
}

// Send is Log under the name the accounting registry calls.
func (c *Client) Send(metric string, value float64, tags Tags) (Line, error) {
	return c.Log(metric, value, tags)
}

// LogPoint logs p. A non-zero p.Timestamp takes precedence over the
// clock but not over a "timestamp" tag.
func (c *Client) LogPoint(p Point) (Line, error) {
	tags := p.Tags
	if p.Timestamp != 0 {
		if _, ok := tags.Get(TimestampTag); !ok {
			tags = append(tags.Clone(), Tag{Key: TimestampTag, Value: strconv.FormatInt(p.Timestamp, 10)})
		}
	}
	return c.Log(p.Metric, p.Value, tags)
}

// Close asks the writer to exit once everything queued so far has
// been sent. It does not block and may be called more than once.
// Log fails with ErrClosed afterwards.
//
// There is no timeout: a writer that cannot reach the destination
// keeps retrying. Pair Close with a timer that calls Stop when a
// deadline is needed, or use WaitContext.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.requestClose()
	c.logger.Info("close requested", "queue_length", c.queue.Len())
}

// Wait closes the client and blocks until the writer has exited.
func (c *Client) Wait() {
	c.Close()
	<-c.done
}

// WaitContext closes the client and blocks until the writer exits or
// ctx is done. On ctx expiry the client is stopped, unsent points are
// discarded, and the ctx error is returned once the writer is gone.
func (c *Client) WaitContext(ctx context.Context) error {
	c.Close()
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		c.Stop()
		<-c.done
		return ctx.Err()
	}
}

// Stop makes the writer exit as soon as possible, abandoning connect
// attempts and discarding queued points. It does not wait for the
// writer; call Wait for that.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.closed = true
	c.stopped = true
	c.requestStop()
	c.requestClose()
	if discarded := c.queue.Discard(); discarded > 0 {
		c.stats.discarded.Add(uint64(discarded))
		c.logger.Warn("stop requested, discarding unsent points", "discarded", discarded)
	} else {
		c.logger.Info("stop requested")
	}
}

// Done is closed when the writer has exited.
func (c *Client) Done() <-chan struct{} { return c.done }

// State reports where the client is in its lifecycle.
func (c *Client) State() State {
	select {
	case <-c.done:
		return StateStopped
	default:
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.stopped:
		return StateStopped
	case c.closed:
		return StateDraining
	default:
		return StateRunning
	}
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	return Stats{
		Queued:          c.stats.queued.Load(),
		Sent:            c.stats.sent.Load(),
		Dropped:         c.queue.Dropped(),
		Discarded:       c.stats.discarded.Load(),
		Duplicates:      c.stats.duplicates.Load(),
		SendFailures:    c.stats.sendFailures.Load(),
		ConnectFailures: c.stats.connectFailures.Load(),
		QueueLength:     c.queue.Len(),
	}
}
