// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tsdb

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Point is a single data point before encoding.
type Point struct {
	Metric    string
	Timestamp int64 // unix seconds; zero means "now" when logged
	Value     float64
	Tags      Tags
}

// Line is an encoded, newline-terminated wire line. It is what the
// queue and the socket carry; the Point is not retained.
type Line string

// ValidMetricName reports whether name is non-empty and consists only
// of ASCII letters, digits, and '-', '_', '.', '/'.
func ValidMetricName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == '/':
		default:
			return false
		}
	}
	return true
}

// validTagPart rejects anything that would break the space-separated
// key=value layout of a line.
func validTagPart(s string, isKey bool) bool {
	if s == "" {
		return false
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return false
	}
	return !isKey || !strings.Contains(s, "=")
}

// FormatValue renders v the way OpenTSDB expects it: integral values
// without a decimal point, everything else as the shortest decimal
// that round-trips.
func FormatValue(v float64) string {
	if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 {
		return strconv.FormatInt(int64(v), 10)
	}
	if math.Abs(v) >= 1e21 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Encode validates p and renders its wire line:
//
//	put <metric> <timestamp> <value> <k1=v1> <k2=v2> ...\n
//
// Encode does not inject or strip any tags.
func Encode(p Point) (Line, error) {
	if !ValidMetricName(p.Metric) {
		return "", fmt.Errorf("%w %q", ErrInvalidMetricName, p.Metric)
	}
	if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
		return "", fmt.Errorf("%w: %v", ErrInvalidValue, p.Value)
	}
	if len(p.Tags) == 0 {
		return "", ErrNoTags
	}
	for i, tag := range p.Tags {
		if !validTagPart(tag.Key, true) || !validTagPart(tag.Value, false) {
			return "", fmt.Errorf("%w %q=%q", ErrInvalidTag, tag.Key, tag.Value)
		}
		if _, repeated := p.Tags[:i].Get(tag.Key); repeated {
			return "", fmt.Errorf("%w: key %q repeated", ErrInvalidTag, tag.Key)
		}
	}

	var builder strings.Builder
	builder.Grow(len(p.Metric) + 48 + 16*len(p.Tags))
	builder.WriteString("put ")
	builder.WriteString(p.Metric)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatInt(p.Timestamp, 10))
	builder.WriteByte(' ')
	builder.WriteString(FormatValue(p.Value))
	builder.WriteByte(' ')
	builder.WriteString(p.Tags.String())
	builder.WriteByte('\n')
	return Line(builder.String()), nil
}

// parseTimestamp accepts an integer number of seconds, or a decimal
// which is truncated.
func parseTimestamp(raw string) (int64, error) {
	if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ts, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w %q", ErrInvalidTimestamp, raw)
	}
	return int64(f), nil
}
