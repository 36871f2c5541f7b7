// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/bureau-foundation/clustermetrics/lib/compressio"
	"github.com/bureau-foundation/clustermetrics/lib/config"
	"github.com/bureau-foundation/clustermetrics/lib/registry"
	"github.com/bureau-foundation/clustermetrics/lib/tsdb"
	"github.com/bureau-foundation/clustermetrics/lib/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// options holds the flags that are not config file settings.
type options struct {
	configPath string
	aggregate  bool
	exportPath string
	timeout    time.Duration
	logLevel   string
	hostTag    string
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var opts options
	cfg := config.Default()

	flagSet := pflag.NewFlagSet("tsdb-push", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.configPath, "config", "", "config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&cfg.TSDB.Host, "host", "", "OpenTSDB host")
	flagSet.IntVar(&cfg.TSDB.Port, "port", cfg.TSDB.Port, "OpenTSDB telnet port")
	flagSet.IntVar(&cfg.TSDB.QueueSize, "queue-size", cfg.TSDB.QueueSize, "points buffered before the oldest is dropped")
	flagSet.StringVar(&opts.hostTag, "host-tag", "auto", `host tag: "auto" (local hostname), "none", or a host name`)
	flagSet.Float64Var(&cfg.TSDB.MaxPointsPerSecond, "mps", 0, "maximum points per second (0 = unlimited)")
	flagSet.BoolVar(&cfg.TSDB.CheckHost, "check-host", cfg.TSDB.CheckHost, "fail at startup if the host is unreachable")
	flagSet.BoolVar(&cfg.TSDB.TestMode, "test-mode", false, "print lines to stdout instead of sending them")
	flagSet.BoolVar(&opts.aggregate, "aggregate", false, "sum points with equal metric and tags before sending")
	flagSet.StringVar(&opts.exportPath, "export", "", "with --aggregate, write the aggregated points to this file")
	flagSet.StringVar(&cfg.Prometheus.PushGateway, "pushgateway", "", "Prometheus push gateway URL for client statistics")
	flagSet.StringVar(&cfg.Prometheus.Job, "job", cfg.Prometheus.Job, "push gateway job name")
	flagSet.StringVar(&cfg.Prometheus.Instance, "instance", "", "push gateway instance label")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	flagSet.DurationVar(&opts.timeout, "timeout", 0, "give up on unsent points this long after input ends (0 = wait forever)")
	showVersion := flagSet.Bool("version", false, "print version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stderr, flagSet)
		return nil
	}
	if *showVersion {
		version.Print(stdout, "tsdb-push")
		return nil
	}
	if opts.exportPath != "" && !opts.aggregate {
		return errors.New("--export requires --aggregate")
	}

	cfg, err := loadConfig(opts.configPath, cfg, flagSet)
	if err != nil {
		return err
	}
	if flagSet.Changed("host-tag") {
		cfg.TSDB.HostTag = config.ParseHostTag(opts.hostTag)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := cfg.Logger(stderr)
	if err != nil {
		return err
	}
	logger = logger.With("component", "tsdb-push")

	inputs := flagSet.Args()
	if len(inputs) == 0 {
		inputs = []string{compressio.Stdio}
	}
	for _, input := range inputs {
		if input == compressio.Stdio && isTerminal(stdin) {
			return errors.New("refusing to read points from a terminal; pass files or pipe input")
		}
	}

	clientOptions := cfg.ClientOptions()
	clientOptions.Logger = logger
	if cfg.TSDB.TestMode {
		var reportWrite sync.Once
		clientOptions.TestSink = func(line tsdb.Line) {
			if _, err := io.WriteString(stdout, string(line)); err != nil {
				reportWrite.Do(func() {
					logger.Warn("writing test-mode output failed, further errors suppressed", "error", err)
				})
			}
		}
	}
	client, err := tsdb.New(ctx, clientOptions)
	if err != nil {
		return err
	}

	pusher := &pointPusher{
		client:    client,
		stdin:     stdin,
		logger:    logger,
		aggregate: opts.aggregate,
	}
	if opts.aggregate {
		pusher.registry = registry.New()
		pusher.exportPath = opts.exportPath
	}

	group, groupCtx := errgroup.WithContext(ctx)
	fed := make(chan struct{})
	group.Go(func() error {
		defer close(fed)
		return pusher.feed(inputs)
	})
	group.Go(func() error {
		select {
		case <-fed:
		case <-groupCtx.Done():
			logger.Warn("interrupted, discarding unsent points")
			client.Stop()
			return nil
		}
		waitCtx := groupCtx
		if opts.timeout > 0 {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(groupCtx, opts.timeout)
			defer cancel()
		}
		if err := client.WaitContext(waitCtx); err != nil {
			logger.Warn("gave up waiting for the queue to drain", "error", err)
		}
		return nil
	})
	feedErr := group.Wait()
	client.Stop()
	<-client.Done()

	stats := client.Stats()
	logger.Info("finished",
		"read", pusher.read,
		"rejected", pusher.rejected,
		"queued", stats.Queued,
		"sent", stats.Sent,
		"dropped", stats.Dropped,
		"discarded", stats.Discarded,
		"duplicates", stats.Duplicates,
	)

	var errs []error
	if feedErr != nil {
		errs = append(errs, feedErr)
	}
	if cfg.Prometheus.PushGateway != "" {
		if err := pushStatistics(cfg.Prometheus, client); err != nil {
			errs = append(errs, err)
		} else {
			logger.Debug("pushed client statistics", "pushgateway", cfg.Prometheus.PushGateway)
		}
	}
	if pusher.rejected > 0 {
		errs = append(errs, fmt.Errorf("%d of %d points rejected", pusher.rejected, pusher.read))
	}
	return errors.Join(errs...)
}

// loadConfig reads the config file, if any, and reapplies every flag
// the user set on top of it.
func loadConfig(path string, flagged *config.Config, flagSet *pflag.FlagSet) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case path != "":
		cfg, err = config.LoadFile(path)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		return flagged, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	overrides := map[string]func(){
		"host":        func() { cfg.TSDB.Host = flagged.TSDB.Host },
		"port":        func() { cfg.TSDB.Port = flagged.TSDB.Port },
		"queue-size":  func() { cfg.TSDB.QueueSize = flagged.TSDB.QueueSize },
		"mps":         func() { cfg.TSDB.MaxPointsPerSecond = flagged.TSDB.MaxPointsPerSecond },
		"check-host":  func() { cfg.TSDB.CheckHost = flagged.TSDB.CheckHost },
		"test-mode":   func() { cfg.TSDB.TestMode = flagged.TSDB.TestMode },
		"pushgateway": func() { cfg.Prometheus.PushGateway = flagged.Prometheus.PushGateway },
		"job":         func() { cfg.Prometheus.Job = flagged.Prometheus.Job },
		"instance":    func() { cfg.Prometheus.Instance = flagged.Prometheus.Instance },
	}
	for name, apply := range overrides {
		if flagSet.Changed(name) {
			apply()
		}
	}
	return cfg, nil
}

func isTerminal(r io.Reader) bool {
	file, ok := r.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// pushStatistics sends the client counters to the push gateway,
// replacing the previous values for the job and instance.
func pushStatistics(settings config.PrometheusConfig, client *tsdb.Client) error {
	pusher := push.New(settings.PushGateway, settings.Job).
		Collector(tsdb.NewCollector(client, nil))
	if settings.Instance != "" {
		pusher = pusher.Grouping("instance", settings.Instance)
	}
	if err := pusher.Push(); err != nil {
		return fmt.Errorf("pushing statistics to %s: %w", settings.PushGateway, err)
	}
	return nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `tsdb-push sends data points to OpenTSDB.

Usage:
  tsdb-push [flags] [file...]

Reads points from the files (or standard input) one per line, as
"put <metric> <timestamp> <value> k=v..." or "<metric> <value> k=v...".

Examples:
  # Push nightly accounting, summing per user and queue
  tsdb-push --host tsdb.cluster --aggregate accounting.txt.gz

  # Check what would be sent
  tsdb-push --test-mode --host tsdb.cluster < points.txt

Flags:
`)
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}

// pointPusher reads points and hands them to the client, directly or
// through the aggregation registry.
type pointPusher struct {
	client    *tsdb.Client
	stdin     io.Reader
	logger    *slog.Logger
	aggregate bool

	registry   *registry.Registry
	exportPath string

	read     int
	rejected int
}

func (p *pointPusher) feed(inputs []string) error {
	for _, input := range inputs {
		if err := p.readInput(input); err != nil {
			return err
		}
	}
	if !p.aggregate {
		return nil
	}

	if p.exportPath != "" {
		if err := p.registry.ExportFile(p.exportPath); err != nil {
			return err
		}
		p.logger.Info("exported aggregated points", "path", p.exportPath, "entries", p.registry.Len())
	}
	sent, err := p.registry.Push(p.client, 0)
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		p.rejected += len(joined.Unwrap())
		p.logger.Warn("aggregated points rejected", "error", err)
	}
	p.logger.Debug("pushed aggregated points", "entries", p.registry.Len(), "sent", sent)
	return nil
}

func (p *pointPusher) readInput(input string) error {
	var reader io.Reader
	if input == compressio.Stdio {
		reader = p.stdin
	} else {
		file, err := compressio.Open(input)
		if err != nil {
			return err
		}
		defer file.Close()
		reader = file
	}

	err := tsdb.ReadPoints(reader, func(point tsdb.Point) error {
		p.read++
		if p.aggregate {
			p.registry.Add(point.Metric, point.Tags, point.Value)
			return nil
		}
		if _, err := p.client.LogPoint(point); err != nil {
			if errors.Is(err, tsdb.ErrClosed) {
				return err
			}
			p.rejected++
			p.logger.Warn("point rejected", "input", input, "metric", point.Metric, "error", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	return nil
}
