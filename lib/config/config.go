// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/clustermetrics/lib/tsdb"
)

// EnvironmentVariable names the config file for Load.
const EnvironmentVariable = "CLUSTERMETRICS_CONFIG"

// Config is the configuration of a clustermetrics command.
type Config struct {
	TSDB       TSDBConfig       `yaml:"opentsdb" json:"opentsdb"`
	Prometheus PrometheusConfig `yaml:"prometheus" json:"prometheus"`
	Log        LogConfig        `yaml:"log" json:"log"`
}

// TSDBConfig describes the OpenTSDB destination and the client
// behavior. See tsdb.Options for the meaning of each field.
type TSDBConfig struct {
	Host               string  `yaml:"host" json:"host"`
	Port               int     `yaml:"port" json:"port"`
	QueueSize          int     `yaml:"queue_size" json:"queue_size"`
	HostTag            HostTag `yaml:"host_tag" json:"host_tag"`
	MaxPointsPerSecond float64 `yaml:"max_points_per_second" json:"max_points_per_second"`
	CheckHost          bool    `yaml:"check_host" json:"check_host"`
	TestMode           bool    `yaml:"test_mode" json:"test_mode"`
}

// PrometheusConfig configures pushing client statistics to a
// Prometheus push gateway. An empty PushGateway disables it.
type PrometheusConfig struct {
	PushGateway string `yaml:"pushgateway" json:"pushgateway"`
	Job         string `yaml:"job" json:"job"`
	Instance    string `yaml:"instance" json:"instance"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" json:"level"`
	// Format is text or json.
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used for everything the file does
// not set. Host has no default.
func Default() *Config {
	return &Config{
		TSDB: TSDBConfig{
			Port:      tsdb.DefaultPort,
			QueueSize: tsdb.DefaultQueueSize,
			CheckHost: true,
		},
		Prometheus: PrometheusConfig{
			Job: "tsdb-push",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads the file named by CLUSTERMETRICS_CONFIG. It fails when the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of a config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, choosing the format by
// extension. The result is not validated; call Validate once flags
// have been applied.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	switch extension := strings.ToLower(filepath.Ext(path)); extension {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), cfg)
	case ".ini":
		err = cfg.parseINI(strings.NewReader(string(data)))
	default:
		return nil, fmt.Errorf("%s: unsupported config format %q (want .yaml, .json, .jsonc or .ini)", path, extension)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.TSDB.Host = expandVars(c.TSDB.Host)
	c.Prometheus.PushGateway = expandVars(c.Prometheus.PushGateway)
	c.Prometheus.Instance = expandVars(c.Prometheus.Instance)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} with the environment value, or with the
// default in ${VAR:-default} when VAR is unset or empty.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.TSDB.Host == "" {
		errs = append(errs, errors.New("opentsdb.host is required"))
	}
	if c.TSDB.Port <= 0 || c.TSDB.Port > 65535 {
		errs = append(errs, fmt.Errorf("opentsdb.port %d is out of range", c.TSDB.Port))
	}
	if c.TSDB.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("opentsdb.queue_size must be positive, got %d", c.TSDB.QueueSize))
	}
	if c.TSDB.MaxPointsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("opentsdb.max_points_per_second must not be negative, got %v", c.TSDB.MaxPointsPerSecond))
	}

	if c.Prometheus.PushGateway != "" {
		parsed, err := url.Parse(c.Prometheus.PushGateway)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("prometheus.pushgateway %q is not an absolute URL", c.Prometheus.PushGateway))
		}
		if c.Prometheus.Job == "" {
			errs = append(errs, errors.New("prometheus.job is required when prometheus.pushgateway is set"))
		}
	}

	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", logLevels))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", logFormats))
	}

	return errors.Join(errs...)
}

// ClientOptions converts the OpenTSDB section into client options.
// Injection points (clock, dialer, logger) are left for the caller.
func (c *Config) ClientOptions() tsdb.Options {
	return tsdb.Options{
		Host:               c.TSDB.Host,
		Port:               c.TSDB.Port,
		QueueSize:          c.TSDB.QueueSize,
		HostTag:            c.TSDB.HostTag.Mode(),
		MaxPointsPerSecond: c.TSDB.MaxPointsPerSecond,
		CheckHost:          c.TSDB.CheckHost,
		TestMode:           c.TSDB.TestMode,
	}
}

// Logger builds the slog logger described by the log section, writing
// to w.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	options := &slog.HandlerOptions{Level: level}
	switch c.Log.Format {
	case "text":
		return slog.New(slog.NewTextHandler(w, options)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, options)), nil
	default:
		return nil, fmt.Errorf("log.format %q must be one of: %v", c.Log.Format, logFormats)
	}
}
