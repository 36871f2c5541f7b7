// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compressio

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = "put cluster.jobs 1700000000 12 queue=batch\nput cluster.jobs 1700000000 3 queue=long\n"

func TestCreateOpenByExtension(t *testing.T) {
	directory := t.TempDir()
	for _, name := range []string{"points.txt", "points.gz", "points.zst", "points.lz4", "POINTS.GZ"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(directory, name)
			writer, err := Create(path)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			// Make the stream compressible enough to tell formats apart.
			payload := strings.Repeat(sample, 50)
			if _, err := io.WriteString(writer, payload); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := writer.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if FormatForPath(path) != None && bytes.Equal(raw, []byte(payload)) {
				t.Errorf("%s was written uncompressed", name)
			}

			reader, err := Open(path)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer reader.Close()
			got, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(got) != payload {
				t.Errorf("read back %d bytes, want %d matching bytes", len(got), len(payload))
			}
		})
	}
}

func TestNewWriterLeavesUnderlyingOpen(t *testing.T) {
	for _, format := range []Format{None, Gzip, Zstd, LZ4} {
		var buf bytes.Buffer
		writer, err := NewWriter(&buf, format)
		if err != nil {
			t.Fatalf("%v: NewWriter: %v", format, err)
		}
		io.WriteString(writer, sample)
		if err := writer.Close(); err != nil {
			t.Fatalf("%v: Close: %v", format, err)
		}
		reader, err := NewReader(&buf, format)
		if err != nil {
			t.Fatalf("%v: NewReader: %v", format, err)
		}
		got, err := io.ReadAll(reader)
		reader.Close()
		if err != nil || string(got) != sample {
			t.Errorf("%v: read back %q, %v", format, got, err)
		}
	}
}

func TestOpenCorruptGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.gz")
	if err := os.WriteFile(path, []byte("not gzip at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("Open of a corrupt gzip file succeeded")
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent.zst")); !os.IsNotExist(err) {
		t.Errorf("Open of a missing file = %v, want not-exist", err)
	}
}

func TestParseFormat(t *testing.T) {
	for _, format := range []Format{None, Gzip, Zstd, LZ4} {
		parsed, err := ParseFormat(format.String())
		if err != nil || parsed != format {
			t.Errorf("ParseFormat(%q) = %v, %v", format.String(), parsed, err)
		}
		if FormatForPath("x"+format.Extension()) != format {
			t.Errorf("FormatForPath(%q) != %v", "x"+format.Extension(), format)
		}
	}
	if _, err := ParseFormat("brotli"); err == nil {
		t.Error("ParseFormat(brotli) succeeded")
	}
}
