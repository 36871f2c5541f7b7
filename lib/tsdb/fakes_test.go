// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tsdb

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

var errRefused = errors.New("connection refused")

// fakeConn records writes. Only the methods the writer calls are
// implemented; the embedded nil net.Conn panics on anything else.
type fakeConn struct {
	net.Conn

	mu       sync.Mutex
	lines    []string
	closed   bool
	failNext int // number of upcoming writes that fail

	written chan string
}

func newFakeConn() *fakeConn {
	return &fakeConn{written: make(chan string, 64)}
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, net.ErrClosed
	}
	if c.failNext > 0 {
		c.failNext--
		c.mu.Unlock()
		return 0, errors.New("broken pipe")
	}
	c.lines = append(c.lines, string(p))
	c.mu.Unlock()
	c.written <- string(p)
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer fails the first failures attempts, then hands out conns
// from conns (or fresh ones once those run out). Every attempt is
// signaled on attempted.
type fakeDialer struct {
	mu        sync.Mutex
	failures  int // negative fails forever
	conns     []*fakeConn
	attempts  int
	addresses []string

	attempted chan struct{}
}

func newFakeDialer(failures int, conns ...*fakeConn) *fakeDialer {
	return &fakeDialer{
		failures:  failures,
		conns:     conns,
		attempted: make(chan struct{}, 256),
	}
}

func (d *fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.attempts++
	d.addresses = append(d.addresses, address)
	var conn *fakeConn
	var err error
	switch {
	case ctx.Err() != nil:
		err = ctx.Err()
	case d.failures != 0:
		if d.failures > 0 {
			d.failures--
		}
		err = errRefused
	case len(d.conns) > 0:
		conn = d.conns[0]
		d.conns = d.conns[1:]
	default:
		conn = newFakeConn()
	}
	d.mu.Unlock()

	select {
	case d.attempted <- struct{}{}:
	default:
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (d *fakeDialer) attemptCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}
