// Package config loads and validates the YAML-driven configuration that
// governs a host's maybenot runtime: wire-format limits, default
// padding/blocking fractions, and the optional rate limiter.
package config

import "time"

// Config is the root configuration for a maybenot host integration.
type Config struct {
	// Wire contains limits on machine serialization/parsing.
	Wire WireConfig `yaml:"wire"`

	// Budget contains the framework-wide padding/blocking fraction defaults
	// applied when a host doesn't specify its own.
	Budget BudgetConfig `yaml:"budget"`

	// RateLimit contains the optional sliding-window action rate limiter
	// settings. Disabled unless explicitly enabled.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Telemetry contains logging/metrics/audit toggles.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// WireConfig bounds the resources spent parsing an untrusted machine string.
type WireConfig struct {
	// MaxDecompressedSize is the configured ceiling, in bytes, on how far a
	// parsed machine's deflate stream may expand. machine.Parse does not
	// read it; it always applies the fixed machine.MaxDecompressedSize.
	// Default: 16777216 (16 MiB)
	MaxDecompressedSize int64 `yaml:"max_decompressed_size"`

	// AllowLegacyV1 records whether the v1 wire format should be accepted.
	// machine.Parse does not read it; whether v1 strings parse depends only
	// on the maybenot_legacy_v1 build tag.
	// Default: false
	AllowLegacyV1 bool `yaml:"allow_legacy_v1"`
}

// BudgetConfig holds framework-wide padding/blocking fraction defaults.
type BudgetConfig struct {
	// MaxPaddingFrac is the default framework-wide ceiling on the fraction
	// of traffic that may be padding, applied when a host does not supply
	// its own.
	// Default: 1.0 (unrestricted)
	MaxPaddingFrac float64 `yaml:"max_padding_frac"`

	// MaxBlockingFrac is the default framework-wide ceiling on the
	// fraction of elapsed time traffic may be blocked.
	// Default: 1.0 (unrestricted)
	MaxBlockingFrac float64 `yaml:"max_blocking_frac"`
}

// RateLimitConfig configures the optional sliding-window action limiter.
type RateLimitConfig struct {
	// Enabled controls whether TriggerEvents output passes through a
	// RateLimitedFramework at all.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Window is the sliding window duration.
	// Default: 1s
	Window time.Duration `yaml:"window"`

	// MaxActionsPerWindow is the maximum number of non-Cancel actions
	// permitted within Window.
	// Default: 100
	MaxActionsPerWindow int `yaml:"max_actions_per_window"`
}

// TelemetryConfig toggles the optional observability sinks a Framework can
// be constructed with.
type TelemetryConfig struct {
	// LoggingLevel is the minimum slog level the framework logs at.
	// Default: "info"
	LoggingLevel string `yaml:"logging_level"`

	// MetricsEnabled controls whether a Prometheus-backed MetricsSink is
	// wired into the framework.
	// Default: true
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// AuditEnabled controls whether a SQLite-backed AuditSink is wired
	// into the framework.
	// Default: false
	AuditEnabled bool `yaml:"audit_enabled"`

	// AuditPath is the filesystem path to the audit database when
	// AuditEnabled is true.
	// Default: "data/maybenot-audit.db"
	AuditPath string `yaml:"audit_path"`
}
