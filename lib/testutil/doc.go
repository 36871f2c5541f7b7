// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the timeout safety valves shared by tests.
//
// [RequireReceive], [RequireClosed] and [Eventually] wrap the select
// with a wall-clock fallback so that individual tests never sleep or
// call time.After themselves. Everything time-dependent in the code
// under test runs on a fake clock; these helpers only bound how long a
// broken test may hang.
//
// All helpers call t.Fatalf on failure.
package testutil
