// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/bureau-foundation/clustermetrics/lib/config"
	"github.com/bureau-foundation/clustermetrics/lib/registry"
	"github.com/bureau-foundation/clustermetrics/lib/testutil"
)

const input = `# accounting for 2026-10-13
put hpc_wtime_used 1760313600 3600 user=alice queue=batch
put hpc_wtime_used 1760313600 60 user=bob queue=batch

put hpc_mem_used 1760313600 2048 user=alice queue=batch
`

func runCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvironmentVariable, "")
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestTestModePrintsLines(t *testing.T) {
	stdout, stderr, err := runCommand(t, input, "--test-mode", "--host", "tsdb.cluster", "--host-tag", "none")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}
	want := "put hpc_wtime_used 1760313600 3600 user=alice queue=batch\n" +
		"put hpc_wtime_used 1760313600 60 user=bob queue=batch\n" +
		"put hpc_mem_used 1760313600 2048 user=alice queue=batch\n"
	if stdout != want {
		t.Errorf("stdout =\n%s\nwant\n%s", stdout, want)
	}
}

type brokenPipe struct{}

func (brokenPipe) Write([]byte) (int, error) { return 0, syscall.EPIPE }

func TestTestModeReportsOutputFailureOnce(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	var stderr bytes.Buffer
	err := run(context.Background(), []string{"--test-mode", "--host", "tsdb.cluster", "--host-tag", "none"},
		strings.NewReader(input), brokenPipe{}, &stderr)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr.String())
	}
	if count := strings.Count(stderr.String(), "writing test-mode output failed"); count != 1 {
		t.Errorf("output failure logged %d times, want once:\n%s", count, stderr.String())
	}
	if !strings.Contains(stderr.String(), "broken pipe") {
		t.Errorf("warning does not carry the write error:\n%s", stderr.String())
	}
}

func TestHostTagFlag(t *testing.T) {
	stdout, _, err := runCommand(t, "put m 5 1 user=a\n", "--test-mode", "--host", "h", "--host-tag", "head01")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout != "put m 5 1 user=a host=head01\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRejectedPointsFailTheRun(t *testing.T) {
	stdout, stderr, err := runCommand(t, "put bad:name 5 1 user=a\nput good 5 1 user=a\n",
		"--test-mode", "--host", "h", "--host-tag", "none")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 points rejected") {
		t.Fatalf("run error = %v, want one rejected point", err)
	}
	if stdout != "put good 5 1 user=a\n" {
		t.Errorf("valid point not sent; stdout = %q", stdout)
	}
	if !strings.Contains(stderr, "point rejected") {
		t.Errorf("rejection not logged:\n%s", stderr)
	}
}

func TestMalformedInputStops(t *testing.T) {
	_, _, err := runCommand(t, "put m 5 1 a=b\nnot a point\n", "--test-mode", "--host", "h")
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("run error = %v, want a line 2 parse error", err)
	}
}

func TestAggregateAndExport(t *testing.T) {
	exportPath := filepath.Join(t.TempDir(), "accounting.txt.gz")
	points := "hpc_wtime_used 10 user=alice queue=batch\n" +
		"hpc_wtime_used 5 queue=batch user=alice\n" +
		"hpc_wtime_used 1 user=bob queue=batch\n"

	stdout, stderr, err := runCommand(t, points,
		"--test-mode", "--host", "h", "--host-tag", "none", "--aggregate", "--export", exportPath)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("aggregated output %q, want 2 lines", stdout)
	}
	if !strings.HasPrefix(lines[0], "put hpc_wtime_used ") || !strings.HasSuffix(lines[0], " 15 user=alice queue=batch") {
		t.Errorf("first aggregated line = %q", lines[0])
	}

	exported := registry.New()
	if err := exported.ImportFile(exportPath); err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	entries := exported.Entries("hpc_wtime_used")
	if len(entries) != 2 || entries[0].Value != 15 || entries[1].Value != 1 {
		t.Errorf("exported entries = %+v", entries)
	}
}

func TestExportRequiresAggregate(t *testing.T) {
	if _, _, err := runCommand(t, "", "--host", "h", "--export", "out.txt"); err == nil {
		t.Error("--export without --aggregate was accepted")
	}
}

func TestReadsCompressedFiles(t *testing.T) {
	directory := t.TempDir()
	source := registry.New()
	source.Import(strings.NewReader("jobs.queued 7 queue=long\n"))
	path := filepath.Join(directory, "points.zst")
	if err := source.ExportFile(path); err != nil {
		t.Fatalf("ExportFile: %v", err)
	}
	plain := filepath.Join(directory, "more.txt")
	if err := os.WriteFile(plain, []byte("put jobs.queued 9 3 queue=short\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, err := runCommand(t, "", "--test-mode", "--host", "h", "--host-tag", "none", path, plain)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], " 7 queue=long") || lines[1] != "put jobs.queued 9 3 queue=short" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestConfigFileWithFlagOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.yaml")
	content := "opentsdb:\n  host: from-file\n  host_tag: filehost\n  test_mode: true\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, err := runCommand(t, "put m 5 1 a=b\n", "--config", path, "--log-level", "warn")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}
	if stdout != "put m 5 1 a=b host=filehost\n" {
		t.Errorf("stdout = %q", stdout)
	}
	if strings.Contains(stderr, "level=INFO") || strings.Contains(stderr, "level=DEBUG") {
		t.Errorf("--log-level warn did not override the file:\n%s", stderr)
	}

	stdout, _, err = runCommand(t, "put m 6 1 a=b\n", "--config", path, "--host-tag", "none")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout != "put m 6 1 a=b\n" {
		t.Errorf("--host-tag did not override the file; stdout = %q", stdout)
	}
}

func TestInvalidConfiguration(t *testing.T) {
	_, _, err := runCommand(t, "", "--test-mode", "--port", "0", "--queue-size", "0")
	if err == nil {
		t.Fatal("run accepted an invalid configuration")
	}
	for _, fragment := range []string{"opentsdb.host", "opentsdb.port", "opentsdb.queue_size"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error does not mention %s: %v", fragment, err)
		}
	}
}

func TestVersionFlag(t *testing.T) {
	stdout, _, err := runCommand(t, "", "--version")
	if err != nil || !strings.HasPrefix(stdout, "tsdb-push ") {
		t.Errorf("--version = %q, %v", stdout, err)
	}
}

func TestHelpFlag(t *testing.T) {
	_, stderr, err := runCommand(t, "", "--help")
	if err != nil {
		t.Fatalf("--help returned %v", err)
	}
	if !strings.Contains(stderr, "Usage:") || !strings.Contains(stderr, "--aggregate") {
		t.Errorf("help output missing usage or flags:\n%s", stderr)
	}
}

func TestPushesToOpenTSDB(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	received := make(chan []string, 1)
	go func() {
		var lines []string
		// The startup probe connects and closes first; read until a
		// connection carries data.
		for len(lines) == 0 {
			conn, err := listener.Accept()
			if err != nil {
				break
			}
			scanner := bufio.NewScanner(conn)
			for scanner.Scan() {
				lines = append(lines, scanner.Text())
			}
			conn.Close()
		}
		received <- lines
	}()

	port := strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)
	_, stderr, err := runCommand(t, input, "--host", "127.0.0.1", "--port", port, "--check-host", "--host-tag", "none", "--timeout", "10s")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}
	lines := testutil.RequireReceive(t, received, 10*time.Second, "waiting for the OpenTSDB listener")
	if len(lines) != 3 || lines[2] != "put hpc_mem_used 1760313600 2048 user=alice queue=batch" {
		t.Errorf("listener received %q", lines)
	}
}

func TestUnreachableHostFailsFast(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	port := strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)
	listener.Close()

	_, _, err = runCommand(t, input, "--host", "127.0.0.1", "--port", port, "--check-host")
	if err == nil || !strings.Contains(err.Error(), "unreachable") {
		t.Errorf("run error = %v, want unreachable destination", err)
	}
}

func TestTimeoutDiscardsUnsentPoints(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	port := strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)
	listener.Close()

	_, stderr, err := runCommand(t, input, "--host", "127.0.0.1", "--port", port,
		"--check-host=false", "--timeout", "50ms")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stderr, "gave up waiting") {
		t.Errorf("timeout not logged:\n%s", stderr)
	}
}

func TestPushGateway(t *testing.T) {
	var mu sync.Mutex
	var method, path string
	var body []byte
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method, path = r.Method, r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	_, stderr, err := runCommand(t, input, "--test-mode", "--host", "h",
		"--pushgateway", gateway.URL, "--job", "accounting", "--instance", "head01")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Errorf("push method = %q, want PUT", method)
	}
	if path != "/metrics/job/accounting/instance/head01" {
		t.Errorf("push path = %q", path)
	}
	if !bytes.Contains(body, []byte("tsdb_client_points_sent_total")) {
		t.Error("pushed body does not contain the sent counter")
	}
}
