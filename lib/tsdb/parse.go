// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tsdb

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ParseLine parses text in one of two forms:
//
//	put <metric> <timestamp> <value> k=v ...
//	<metric> <value> k=v ...
//
// The second form leaves Timestamp zero so that Log stamps it with the
// current time. A "timestamp" tag in either form is kept in Tags and
// handled by Log, not here. A trailing newline is ignored.
func ParseLine(text string) (Point, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Point{}, fmt.Errorf("%w: empty", ErrMalformedLine)
	}

	var point Point
	if fields[0] == "put" {
		if len(fields) < 4 {
			return Point{}, fmt.Errorf("%w: put needs metric, timestamp and value: %q", ErrMalformedLine, text)
		}
		timestamp, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return Point{}, fmt.Errorf("%w: timestamp %q", ErrMalformedLine, fields[2])
		}
		point.Metric = fields[1]
		point.Timestamp = timestamp
		fields = fields[3:]
	} else {
		if len(fields) < 2 {
			return Point{}, fmt.Errorf("%w: need metric and value: %q", ErrMalformedLine, text)
		}
		point.Metric = fields[0]
		fields = fields[1:]
	}

	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return Point{}, fmt.Errorf("%w: value %q", ErrMalformedLine, fields[0])
	}
	point.Value = value

	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key == "" || value == "" {
			return Point{}, fmt.Errorf("%w: tag %q is not key=value", ErrMalformedLine, field)
		}
		if _, repeated := point.Tags.Get(key); repeated {
			return Point{}, fmt.Errorf("%w: tag key %q repeated", ErrMalformedLine, key)
		}
		point.Tags = append(point.Tags, Tag{Key: key, Value: value})
	}
	return point, nil
}

// ReadPoints calls fn for every point in r, one per line. Blank lines
// and lines starting with '#' are skipped. Parse errors carry the line
// number. Reading stops at the first error from parsing or from fn.
func ReadPoints(r io.Reader, fn func(Point) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		point, err := ParseLine(text)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNumber, err)
		}
		if err := fn(point); err != nil {
			return fmt.Errorf("line %d: %w", lineNumber, err)
		}
	}
	return scanner.Err()
}
