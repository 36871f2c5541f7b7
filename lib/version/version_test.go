// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"bytes"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	saved := [...]string{GitCommit, GitDirty, BuildTime, Version}
	t.Cleanup(func() {
		GitCommit, GitDirty, BuildTime, Version = saved[0], saved[1], saved[2], saved[3]
	})

	GitCommit, GitDirty, BuildTime, Version = "abc1234", "false", "2026-10-01T00:00:00Z", "1.2.0"
	if got, want := Info(), "1.2.0 (abc1234, 2026-10-01T00:00:00Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}

	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() = %q, want dirty marker", got)
	}
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, "tsdb-push")
	out := buf.String()
	if !strings.HasPrefix(out, "tsdb-push "+Info()) {
		t.Errorf("Print output %q does not start with binary and Info", out)
	}
	if !strings.Contains(out, "go: ") {
		t.Errorf("Print output %q is missing the Go version", out)
	}
}
