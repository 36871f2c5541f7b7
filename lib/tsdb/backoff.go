// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tsdb

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Reconnect backoff: 1s doubling to a 30s cap, no jitter, no overall
// deadline. The writer retries until it connects or is stopped.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

func newConnectBackoff() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialBackoff
	policy.MaxInterval = maxBackoff
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0
	policy.Reset()
	return policy
}
