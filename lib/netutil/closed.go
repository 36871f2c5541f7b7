// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies network errors.
package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsPeerClosed reports whether err means the remote end went away:
// EOF, a reset connection or a broken pipe. The line in flight was
// probably lost and goes out again on a fresh connection.
func IsPeerClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}

// IsLocallyClosed reports whether err came from using a connection
// this process already closed, which happens when a write races with
// shutdown. It says nothing about the destination.
func IsLocallyClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// IsTimeout reports whether err is a deadline or timeout error, such as
// a write that exceeded its deadline on a stalled connection.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
