// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// tsdb-push reads data points from files or standard input and pushes
// them to OpenTSDB over the telnet line protocol.
//
// Each input line is either a wire line or its timestamp-less short
// form:
//
//	put hpc_wtime_used 1700000000 3600 group=tg user=alice queue=batch
//	hpc_wtime_used 3600 group=tg user=alice queue=batch
//
// Short-form points are stamped with the time they are read. Blank
// lines and lines starting with '#' are ignored. Files ending in .gz,
// .zst or .lz4 are decompressed.
//
// With --aggregate, points with the same metric and tag set are summed
// before anything is sent, and --export writes the aggregated result
// to a file in the same short form (optionally compressed).
//
// After the input is exhausted tsdb-push waits for the queue to drain.
// --timeout bounds that wait; when it expires, or on SIGINT/SIGTERM,
// unsent points are discarded. When a push gateway is configured, the
// client counters are pushed to it before exiting.
//
// Settings come from the config file (--config or
// CLUSTERMETRICS_CONFIG) and are overridden by flags.
package main
