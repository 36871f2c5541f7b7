// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry aggregates accounting values before they are
// pushed to OpenTSDB.
//
// A [Registry] maps a metric name to a list of entries. Adding a value
// whose tag set already has an entry under that metric sums into it,
// so per-job records collapse into one point per (group, user, state,
// queue) combination. Tag order does not matter for that comparison.
//
// [Registry.Push] sends every entry through a [Sender], normally a
// *tsdb.Client. [Registry.Export] and [Registry.Import] store the
// registry as text, one "metric value k=v ..." line per entry, and the
// File variants add compression by extension via lib/compressio.
package registry
