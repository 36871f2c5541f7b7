// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tsdb is a buffered client for the OpenTSDB telnet line
// protocol. Cluster collectors hand it (metric, value, tags) tuples;
// it validates and encodes them, suppresses duplicates within the
// current timestamp bucket, and queues the encoded lines for a
// background writer that owns a persistent TCP connection.
//
// Data flow:
//
//	Client.Log → Encode → DedupWindow → Queue → writer goroutine → TCP
//
// The queue is bounded. When it is full the oldest line is dropped to
// admit the newest, and the drop is logged at warn level; producers
// never block. The writer reconnects forever with exponential backoff
// (1s, 2s, 4s, 8s, 16s, then 30s), retries a line whose send failed
// before taking the next one, and optionally paces itself to an
// average points-per-second budget.
//
// Shutdown has two forms. [Client.Close] asks the writer to drain the
// queue and exit; [Client.Wait] does the same and blocks until the
// writer is gone. [Client.Stop] abandons any reconnect or pacing wait
// and discards whatever is still queued. A caller that needs a hard
// deadline pairs Close with a timer that calls Stop, or uses
// [Client.WaitContext].
//
// Errors returned by Log are always precondition violations (closed
// client, bad metric name, bad or missing tags) and wrap
// [ErrPrecondition]. Network failures are never surfaced to the
// caller; they show up in logs and in [Client.Stats].
//
// # Deduplication
//
// OpenTSDB rejects a second point with the same metric, timestamp and
// tags. The client keeps a [DedupWindow] holding fingerprints for the
// most recent timestamp only: a point with a different timestamp
// clears the window. Memory stays bounded at the cost of missing
// duplicates whose timestamps interleave. Each client gets its own
// window unless [Options.Dedup] supplies a shared one; fingerprints
// include the destination, so sharing only couples the tracked
// timestamp across clients.
package tsdb
