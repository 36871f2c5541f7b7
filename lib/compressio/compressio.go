// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compressio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Stdio is the path that selects standard input or output.
const Stdio = "-"

// Format identifies a stream compression format.
type Format uint8

const (
	None Format = iota
	Gzip
	Zstd
	LZ4
)

func (f Format) String() string {
	switch f {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", f)
	}
}

// Extension returns the file extension for f, with the leading dot,
// or "" for None.
func (f Format) Extension() string {
	switch f {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	case LZ4:
		return ".lz4"
	default:
		return ""
	}
}

// ParseFormat parses a format name as returned by String.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "none", "":
		return None, nil
	case "gzip", "gz":
		return Gzip, nil
	case "zstd", "zst":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return None, fmt.Errorf("unknown compression format %q", name)
	}
}

// FormatForPath returns the format implied by path's extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return Gzip
	case ".zst":
		return Zstd
	case ".lz4":
		return LZ4
	default:
		return None
	}
}

// NewWriter wraps w with a compressor for format. Closing the result
// flushes the compressor but does not close w.
func NewWriter(w io.Writer, format Format) (io.WriteCloser, error) {
	switch format {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return encoder, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported compression format %v", format)
	}
}

// NewReader wraps r with a decompressor for format. Closing the
// result releases the decompressor but does not close r.
func NewReader(r io.Reader, format Format) (io.ReadCloser, error) {
	switch format {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		reader, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return reader, nil
	case Zstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return decoder.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression format %v", format)
	}
}

// Create creates (or truncates) path and returns a writer that
// compresses according to its extension.
func Create(path string) (io.WriteCloser, error) {
	if path == Stdio {
		return NewWriter(os.Stdout, None)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	compressor, err := NewWriter(file, FormatForPath(path))
	if err != nil {
		file.Close()
		return nil, err
	}
	return &stackedWriter{WriteCloser: compressor, file: file}, nil
}

// Open opens path and returns a reader that decompresses according to
// its extension.
func Open(path string) (io.ReadCloser, error) {
	if path == Stdio {
		return io.NopCloser(os.Stdin), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	decompressor, err := NewReader(file, FormatForPath(path))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &stackedReader{ReadCloser: decompressor, file: file}, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// stackedWriter closes the compressor, then the file underneath it.
type stackedWriter struct {
	io.WriteCloser
	file *os.File
}

func (s *stackedWriter) Close() error {
	return errors.Join(s.WriteCloser.Close(), s.file.Close())
}

type stackedReader struct {
	io.ReadCloser
	file *os.File
}

func (s *stackedReader) Close() error {
	return errors.Join(s.ReadCloser.Close(), s.file.Close())
}
