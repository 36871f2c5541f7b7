// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"io"
	"strconv"

	"github.com/lars-t-hansen/ini"
)

// parseINI reads the INI layout:
//
//	[opentsdb]
//	host = tsdb.example.org
//	port = 4242
//	queue-size = 100000
//	host-tag = true
//	max-points-per-second = 0
//	check-host = true
//	test-mode = false
//
//	[prometheus]
//	pushgateway = http://pushgateway:9091
//	job = tsdb-push
//	instance = ${HOSTNAME}
//
//	[log]
//	level = info
//	format = text
//
// Keys that are absent leave the current values alone.
func (c *Config) parseINI(r io.Reader) error {
	parser := ini.NewParser()

	opentsdb := parser.AddSection("opentsdb")
	host := opentsdb.AddString("host")
	port := opentsdb.AddUint64("port")
	queueSize := opentsdb.AddUint64("queue-size")
	hostTag := opentsdb.AddString("host-tag")
	maxPointsPerSecond := opentsdb.AddString("max-points-per-second")
	checkHost := opentsdb.AddBool("check-host")
	testMode := opentsdb.AddBool("test-mode")

	prometheus := parser.AddSection("prometheus")
	pushGateway := prometheus.AddString("pushgateway")
	job := prometheus.AddString("job")
	instance := prometheus.AddString("instance")

	logSection := parser.AddSection("log")
	level := logSection.AddString("level")
	format := logSection.AddString("format")

	store, err := parser.Parse(r)
	if err != nil {
		return err
	}

	if host.Present(store) {
		c.TSDB.Host = host.StringVal(store)
	}
	if port.Present(store) {
		c.TSDB.Port = int(port.Uint64Val(store))
	}
	if queueSize.Present(store) {
		c.TSDB.QueueSize = int(queueSize.Uint64Val(store))
	}
	if hostTag.Present(store) {
		c.TSDB.HostTag = ParseHostTag(hostTag.StringVal(store))
	}
	if maxPointsPerSecond.Present(store) {
		raw := maxPointsPerSecond.StringVal(store)
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("opentsdb.max-points-per-second: %q is not a number", raw)
		}
		c.TSDB.MaxPointsPerSecond = rate
	}
	if checkHost.Present(store) {
		c.TSDB.CheckHost = checkHost.BoolVal(store)
	}
	if testMode.Present(store) {
		c.TSDB.TestMode = testMode.BoolVal(store)
	}

	if pushGateway.Present(store) {
		c.Prometheus.PushGateway = pushGateway.StringVal(store)
	}
	if job.Present(store) {
		c.Prometheus.Job = job.StringVal(store)
	}
	if instance.Present(store) {
		c.Prometheus.Instance = instance.StringVal(store)
	}

	if level.Present(store) {
		c.Log.Level = level.StringVal(store)
	}
	if format.Present(store) {
		c.Log.Format = format.StringVal(store)
	}
	return nil
}
