// Package config resolves diskly settings from defaults, DISKLY_*
// environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sadopc/diskly/internal/cache"
	"github.com/sadopc/diskly/internal/logging"
	"github.com/sadopc/diskly/internal/scanner"
	"go.uber.org/zap"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "DISKLY_"

// Config holds all process settings.
type Config struct {
	// ExportPath writes the completed scan as ncdu JSON ("-" for stdout)
	// instead of opening the interactive view.
	ExportPath string
	// ImportPath views or re-exports a previous export instead of scanning.
	ImportPath string

	Accounting     string // apparent, disk
	Dedup          string // linked, all, off
	ProgressEvery  int
	CacheSize      int
	WorkerFraction float64

	LogLevel  string
	LogFormat string
	LogFile   string

	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090".
	MetricsAddr string

	SSHPort    int
	SSHBatch   bool
	SSHTimeout time.Duration

	ShowVersion bool
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Accounting:     scanner.AccountApparent.String(),
		Dedup:          scanner.DedupLinked.String(),
		ProgressEvery:  scanner.DefaultProgressEvery,
		CacheSize:      cache.DefaultCapacity,
		WorkerFraction: 0.8,
		LogLevel:       "info",
		LogFormat:      "console",
		SSHPort:        22,
		SSHTimeout:     15 * time.Second,
	}
}

// Load returns defaults overlaid with the process environment.
func Load() (Config, error) {
	return FromEnv(Default(), os.LookupEnv)
}

// FromEnv overlays DISKLY_* variables found through lookup onto cfg.
// Malformed values are reported together rather than silently ignored.
func FromEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	str("EXPORT", &cfg.ExportPath)
	str("IMPORT", &cfg.ImportPath)
	str("ACCOUNTING", &cfg.Accounting)
	str("DEDUP", &cfg.Dedup)
	num("PROGRESS_EVERY", &cfg.ProgressEvery)
	num("CACHE", &cfg.CacheSize)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("LOG_FILE", &cfg.LogFile)
	str("METRICS_ADDR", &cfg.MetricsAddr)
	num("SSH_PORT", &cfg.SSHPort)

	if v, ok := lookup(EnvPrefix + "WORKERS_FRACTION"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sWORKERS_FRACTION: %w", EnvPrefix, err))
		} else {
			cfg.WorkerFraction = f
		}
	}
	if v, ok := lookup(EnvPrefix + "SSH_BATCH"); ok && v != "" {
		b, err := parseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSSH_BATCH: %w", EnvPrefix, err))
		} else {
			cfg.SSHBatch = b
		}
	}
	if v, ok := lookup(EnvPrefix + "SSH_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSSH_TIMEOUT: %w", EnvPrefix, err))
		} else {
			cfg.SSHTimeout = d
		}
	}

	return cfg, errors.Join(errs...)
}

// parseBool accepts strconv.ParseBool values plus yes/no.
func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return strconv.ParseBool(v)
}

// BindFlags registers flags on fs using the current values as defaults.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ExportPath, "export", c.ExportPath, "Export scan results to JSON file (headless mode, use '-' for stdout)")
	fs.StringVar(&c.ImportPath, "import", c.ImportPath, "Import and view scan results from JSON file")
	fs.StringVar(&c.Accounting, "accounting", c.Accounting, "Size accounting: apparent or disk")
	fs.StringVar(&c.Dedup, "dedup", c.Dedup, "Hard link de-duplication: linked, all or off")
	fs.IntVar(&c.ProgressEvery, "progress-every", c.ProgressEvery, "Report progress every N completed directories")
	fs.IntVar(&c.CacheSize, "cache", c.CacheSize, "Number of completed scans kept in memory")
	fs.Float64Var(&c.WorkerFraction, "workers-fraction", c.WorkerFraction, "Share of CPUs used for scan workers (0-1]")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format: console or json")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Write logs to a rotated file")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Serve Prometheus metrics on this address")
	fs.IntVar(&c.SSHPort, "ssh-port", c.SSHPort, "SSH port for remote scans")
	fs.BoolVar(&c.SSHBatch, "ssh-batch", c.SSHBatch, "Disable SSH prompts (key/agent auth only)")
	fs.DurationVar(&c.SSHTimeout, "ssh-timeout", c.SSHTimeout, "SSH connection timeout")
	fs.BoolVar(&c.ShowVersion, "version", c.ShowVersion, "Show version")
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if _, err := scanner.ParseAccounting(c.Accounting); err != nil {
		errs = append(errs, err)
	}
	if _, err := scanner.ParseDedupMode(c.Dedup); err != nil {
		errs = append(errs, err)
	}
	if c.ProgressEvery < 1 {
		errs = append(errs, fmt.Errorf("progress-every must be at least 1, got %d", c.ProgressEvery))
	}
	if c.CacheSize < 1 {
		errs = append(errs, fmt.Errorf("cache must hold at least 1 scan, got %d", c.CacheSize))
	}
	if c.WorkerFraction <= 0 || c.WorkerFraction > 1 {
		errs = append(errs, fmt.Errorf("workers-fraction must be in (0, 1], got %g", c.WorkerFraction))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log-format must be console or json, got %q", c.LogFormat))
	}
	if c.SSHPort < 1 || c.SSHPort > 65535 {
		errs = append(errs, fmt.Errorf("ssh-port must be between 1 and 65535, got %d", c.SSHPort))
	}
	if c.SSHTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ssh-timeout must be positive, got %s", c.SSHTimeout))
	}
	return errors.Join(errs...)
}

// EngineOptions converts the scan settings. Call after Validate.
func (c Config) EngineOptions(log *zap.Logger) scanner.Options {
	opts := scanner.DefaultOptions()
	if a, err := scanner.ParseAccounting(c.Accounting); err == nil {
		opts.Accounting = a
	}
	if d, err := scanner.ParseDedupMode(c.Dedup); err == nil {
		opts.Dedup = d
	}
	opts.ProgressEvery = c.ProgressEvery
	opts.Logger = log
	return opts
}

// Logging returns the logger settings.
func (c Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Format = c.LogFormat
	lc.File = c.LogFile
	return lc
}
