// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tsdb

import "github.com/prometheus/client_golang/prometheus"

// StatsSource is anything with client counters. *Client implements it.
type StatsSource interface {
	Stats() Stats
}

// Collector exposes a client's counters as Prometheus metrics. Values
// are read from the source on every scrape.
type Collector struct {
	source StatsSource

	queued          *prometheus.Desc
	sent            *prometheus.Desc
	dropped         *prometheus.Desc
	discarded       *prometheus.Desc
	duplicates      *prometheus.Desc
	sendFailures    *prometheus.Desc
	connectFailures *prometheus.Desc
	queueLength     *prometheus.Desc
}

// NewCollector returns a collector for source. constLabels are
// attached to every metric; nil is fine.
func NewCollector(source StatsSource, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("tsdb_client_"+name, help, nil, constLabels)
	}
	return &Collector{
		source:          source,
		queued:          desc("points_queued_total", "Points accepted by Log and queued for sending."),
		sent:            desc("points_sent_total", "Points written to the destination."),
		dropped:         desc("points_dropped_total", "Queued points evicted because the queue was full."),
		discarded:       desc("points_discarded_total", "Queued points abandoned by a hard stop."),
		duplicates:      desc("points_duplicates_total", "Points suppressed as duplicates of the current timestamp."),
		sendFailures:    desc("send_failures_total", "Failed line writes; each one forces a reconnect."),
		connectFailures: desc("connect_failures_total", "Failed connection attempts."),
		queueLength:     desc("queue_length", "Points currently waiting in the queue."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queued
	ch <- c.sent
	ch <- c.dropped
	ch <- c.discarded
	ch <- c.duplicates
	ch <- c.sendFailures
	ch <- c.connectFailures
	ch <- c.queueLength
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	counter := func(desc *prometheus.Desc, value uint64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(value))
	}
	counter(c.queued, stats.Queued)
	counter(c.sent, stats.Sent)
	counter(c.dropped, stats.Dropped)
	counter(c.discarded, stats.Discarded)
	counter(c.duplicates, stats.Duplicates)
	counter(c.sendFailures, stats.SendFailures)
	counter(c.connectFailures, stats.ConnectFailures)
	ch <- prometheus.MustNewConstMetric(c.queueLength, prometheus.GaugeValue, float64(stats.QueueLength))
}
