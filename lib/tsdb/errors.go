// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tsdb

import (
	"errors"
	"fmt"
)

// ErrPrecondition is wrapped by every error Log can return. These are
// caller mistakes, not transient conditions; retrying the same call
// fails the same way.
var ErrPrecondition = errors.New("tsdb: precondition violated")

var (
	ErrClosed            = fmt.Errorf("%w: client has been closed", ErrPrecondition)
	ErrInvalidMetricName = fmt.Errorf("%w: invalid metric name", ErrPrecondition)
	ErrInvalidTag        = fmt.Errorf("%w: invalid tag", ErrPrecondition)
	ErrNoTags            = fmt.Errorf("%w: at least one tag is required", ErrPrecondition)
	ErrInvalidTimestamp  = fmt.Errorf("%w: invalid timestamp", ErrPrecondition)
	ErrInvalidValue      = fmt.Errorf("%w: value is not a finite number", ErrPrecondition)
)

// ErrUnreachable is returned by New when Options.CheckHost is set and
// the probe connection fails.
var ErrUnreachable = errors.New("tsdb: destination unreachable")

// ErrMalformedLine is returned by ParseLine for text that is not a
// point in either accepted form.
var ErrMalformedLine = errors.New("tsdb: malformed line")
