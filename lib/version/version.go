// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"runtime"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/bureau-foundation/clustermetrics/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// Info returns "<version> (<commit>[-dirty], <build time>)".
func Info() string {
	commit := GitCommit
	if GitDirty == "true" {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, BuildTime)
}

// Print writes the --version output for binary to w.
func Print(w io.Writer, binary string) {
	fmt.Fprintf(w, "%s %s\n  go: %s %s/%s\n", binary, Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
