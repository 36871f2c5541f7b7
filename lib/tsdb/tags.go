// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tsdb

import (
	"fmt"
	"sort"
	"strings"
)

// Reserved tag keys. TimestampTag is consumed by Log and never
// rendered; HostTag is injected according to Options.HostTag.
const (
	TimestampTag = "timestamp"
	HostTag      = "host"
)

// Tag is a single key=value pair.
type Tag struct {
	Key   string
	Value string
}

// Tags is an ordered tag list. Lines render tags in slice order, so
// callers control the layout of the wire line.
type Tags []Tag

// NewTags builds Tags from alternating keys and values. It panics on
// an odd argument count.
func NewTags(keyValues ...string) Tags {
	if len(keyValues)%2 != 0 {
		panic(fmt.Sprintf("tsdb.NewTags: odd number of arguments (%d)", len(keyValues)))
	}
	tags := make(Tags, 0, len(keyValues)/2)
	for i := 0; i < len(keyValues); i += 2 {
		tags = append(tags, Tag{Key: keyValues[i], Value: keyValues[i+1]})
	}
	return tags
}

// TagsFromMap converts a map to Tags sorted by key.
func TagsFromMap(m map[string]string) Tags {
	tags := make(Tags, 0, len(m))
	for key, value := range m {
		tags = append(tags, Tag{Key: key, Value: value})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Key < tags[j].Key })
	return tags
}

// Get returns the value of the first tag with the given key.
func (t Tags) Get(key string) (string, bool) {
	for _, tag := range t {
		if tag.Key == key {
			return tag.Value, true
		}
	}
	return "", false
}

// Set replaces the value of an existing key in place, or appends a new
// tag. The receiver may be modified; use the returned slice.
func (t Tags) Set(key, value string) Tags {
	for i := range t {
		if t[i].Key == key {
			t[i].Value = value
			return t
		}
	}
	return append(t, Tag{Key: key, Value: value})
}

// Delete removes every tag with the given key, preserving the order of
// the rest.
func (t Tags) Delete(key string) Tags {
	kept := t[:0]
	for _, tag := range t {
		if tag.Key != key {
			kept = append(kept, tag)
		}
	}
	return kept
}

// Clone returns a copy that shares no storage with t.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	return append(make(Tags, 0, len(t)), t...)
}

// String renders the tags as they appear on the wire: "k=v k=v".
func (t Tags) String() string {
	var builder strings.Builder
	for i, tag := range t {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(tag.Key)
		builder.WriteByte('=')
		builder.WriteString(tag.Value)
	}
	return builder.String()
}

// Canonical renders the tags sorted by key, then value. Two tag sets
// that differ only in order have the same canonical form.
func (t Tags) Canonical() string {
	sorted := t.Clone()
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Key != sorted[j].Key {
			return sorted[i].Key < sorted[j].Key
		}
		return sorted[i].Value < sorted[j].Value
	})
	return sorted.String()
}
