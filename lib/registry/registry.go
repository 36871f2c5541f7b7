// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/bureau-foundation/clustermetrics/lib/compressio"
	"github.com/bureau-foundation/clustermetrics/lib/tsdb"
)

// Sender is where Push delivers points. *tsdb.Client implements it.
type Sender interface {
	Log(metric string, value float64, tags tsdb.Tags) (tsdb.Line, error)
}

// Entry is one aggregated value.
type Entry struct {
	Tags  tsdb.Tags
	Value float64
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	metrics map[string][]*entry
}

type entry struct {
	canonical string
	Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{metrics: make(map[string][]*entry)}
}

// Add sums value into the entry for metric whose tags equal tags, or
// appends a new entry. tags is copied.
func (r *Registry) Add(metric string, tags tsdb.Tags, value float64) {
	canonical := tags.Canonical()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.metrics[metric] {
		if existing.canonical == canonical {
			existing.Value += value
			return
		}
	}
	r.metrics[metric] = append(r.metrics[metric], &entry{
		canonical: canonical,
		Entry:     Entry{Tags: tags.Clone(), Value: value},
	})
}

// Metrics returns the metric names in sorted order.
func (r *Registry) Metrics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns a copy of the entries for metric in insertion
// order.
func (r *Registry) Entries(metric string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]Entry, 0, len(r.metrics[metric]))
	for _, e := range r.metrics[metric] {
		entries = append(entries, Entry{Tags: e.Tags.Clone(), Value: e.Value})
	}
	return entries
}

// Len returns the total number of entries across all metrics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, entries := range r.metrics {
		total += len(entries)
	}
	return total
}

// Reset removes every entry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.metrics)
}

// Push sends every entry, metrics in sorted order and entries in
// insertion order. A positive timestamp is attached as a "timestamp"
// tag so all points share it; otherwise the sender stamps them.
//
// Push returns how many points the sender accepted (duplicates it
// suppressed are not counted) and the rejections joined into one
// error. A rejected entry does not stop the others.
func (r *Registry) Push(sender Sender, timestamp int64) (int, error) {
	sent := 0
	var errs []error
	for _, metric := range r.Metrics() {
		for _, e := range r.Entries(metric) {
			tags := e.Tags
			if timestamp > 0 {
				tags = tags.Set(tsdb.TimestampTag, strconv.FormatInt(timestamp, 10))
			}
			line, err := sender.Log(metric, e.Value, tags)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", metric, e.Tags, err))
				continue
			}
			if line != "" {
				sent++
			}
		}
	}
	return sent, errors.Join(errs...)
}

// Export writes one "metric value k=v ..." line per entry, in the
// order Push would send them.
func (r *Registry) Export(w io.Writer) error {
	buffered := bufio.NewWriter(w)
	for _, metric := range r.Metrics() {
		for _, e := range r.Entries(metric) {
			buffered.WriteString(metric)
			buffered.WriteByte(' ')
			buffered.WriteString(tsdb.FormatValue(e.Value))
			if len(e.Tags) > 0 {
				buffered.WriteByte(' ')
				buffered.WriteString(e.Tags.String())
			}
			buffered.WriteByte('\n')
		}
	}
	return buffered.Flush()
}

// Import adds every point read from r, in either form tsdb.ParseLine
// accepts. The timestamp of a "put" line is not kept: the registry
// aggregates values, and Push supplies the timestamp.
func (r *Registry) Import(reader io.Reader) error {
	return tsdb.ReadPoints(reader, func(p tsdb.Point) error {
		r.Add(p.Metric, p.Tags, p.Value)
		return nil
	})
}

// ExportFile writes the registry to path, compressed according to
// its extension.
func (r *Registry) ExportFile(path string) (err error) {
	w, err := compressio.Create(path)
	if err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("export %s: %w", path, closeErr)
		}
	}()
	if err := r.Export(w); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}

// ImportFile reads a file written by ExportFile.
func (r *Registry) ImportFile(path string) error {
	reader, err := compressio.Open(path)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	defer reader.Close()
	if err := r.Import(reader); err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	return nil
}
