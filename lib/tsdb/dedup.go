// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tsdb

import (
	"encoding/binary"
	"sync"

	"github.com/zeebo/blake3"
)

// Fingerprint identifies a point for duplicate suppression. It is the
// keyed BLAKE3 hash of metric, timestamp, canonical tags and
// destination, so the window holds fixed-size keys no matter how long
// the tag sets are.
type Fingerprint [32]byte

// fingerprintKey separates dedup fingerprints from any other BLAKE3
// use. Changing it only affects in-memory state.
var fingerprintKey = [32]byte{
	'c', 'l', 'u', 's', 't', 'e', 'r', 'm', 'e', 't', 'r', 'i', 'c', 's', '.', 't',
	's', 'd', 'b', '.', 'd', 'e', 'd', 'u', 'p', 0, 0, 0, 0, 0, 0, 0,
}

// NewFingerprint computes the fingerprint of a point bound for
// destination (host:port). Tag order does not matter.
func NewFingerprint(metric string, timestamp int64, tags Tags, destination string) Fingerprint {
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		// Only a wrong key length fails, and the key is a fixed array.
		panic("tsdb: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	writeField(hasher, metric)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(timestamp))
	hasher.Write(buf[:])
	writeField(hasher, tags.Canonical())
	writeField(hasher, destination)

	var fingerprint Fingerprint
	copy(fingerprint[:], hasher.Sum(nil))
	return fingerprint
}

// writeField appends a length-prefixed string so that field
// boundaries are unambiguous.
func writeField(hasher *blake3.Hasher, s string) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(s)))
	hasher.Write(length[:])
	hasher.Write([]byte(s))
}

// DedupWindow tracks the fingerprints emitted for the most recent
// timestamp. Safe for concurrent use, so several clients may share
// one.
type DedupWindow struct {
	mu        sync.Mutex
	tracking  bool
	timestamp int64
	seen      map[Fingerprint]struct{}
}

// NewDedupWindow returns an empty window that tracks no timestamp.
func NewDedupWindow() *DedupWindow {
	return &DedupWindow{seen: make(map[Fingerprint]struct{})}
}

// Admit reports whether a point should be sent. A timestamp different
// from the tracked one resets the window to that timestamp; within the
// tracked timestamp each fingerprint is admitted once.
func (w *DedupWindow) Admit(timestamp int64, fingerprint Fingerprint) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tracking && timestamp != w.timestamp {
		clear(w.seen)
	} else if _, duplicate := w.seen[fingerprint]; duplicate {
		return false
	}
	w.tracking = true
	w.timestamp = timestamp
	w.seen[fingerprint] = struct{}{}
	return true
}

// Timestamp returns the tracked timestamp, and false if no point has
// been admitted yet.
func (w *DedupWindow) Timestamp() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timestamp, w.tracking
}

// Len returns the number of fingerprints in the current window.
func (w *DedupWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
