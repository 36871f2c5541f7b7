// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compressio opens files for streaming reads and writes with
// compression chosen by file extension:
//
//   - .gz  -- gzip (klauspost/compress/gzip)
//   - .zst -- zstd (klauspost/compress/zstd)
//   - .lz4 -- LZ4 frame format (pierrec/lz4)
//   - anything else -- uncompressed
//
// The path "-" means standard input for [Open] and standard output
// for [Create]. Closing the returned stream flushes the compressor
// but never closes the process's standard streams.
package compressio
