package config

import "time"

// Default values for configuration fields.
const (
	// Wire defaults
	DefaultMaxDecompressedSize = 16 * 1024 * 1024 // 16 MiB
	DefaultAllowLegacyV1       = false

	// Budget defaults
	DefaultMaxPaddingFrac  = 1.0
	DefaultMaxBlockingFrac = 1.0

	// Rate limit defaults
	DefaultRateLimitEnabled             = false
	DefaultRateLimitWindow              = 1 * time.Second
	DefaultRateLimitMaxActionsPerWindow = 100

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultMetricsEnabled = true
	DefaultAuditEnabled   = false
	DefaultAuditPath      = "data/maybenot-audit.db"
)

// Default returns a Config populated entirely with default values.
func Default() *Config {
	cfg := &Config{Telemetry: TelemetryConfig{MetricsEnabled: DefaultMetricsEnabled}}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills the zero-valued fields of cfg with defaults. It is
// idempotent and safe to call multiple times, matching the zero-value
// detection idiom used throughout this configuration layer: a field that a
// host has genuinely set to its zero value is indistinguishable from an
// unset one and is replaced by its default. In particular, a padding or
// blocking fraction explicitly set to 0 becomes 1.0.
func ApplyDefaults(cfg *Config) {
	if cfg.Wire.MaxDecompressedSize == 0 {
		cfg.Wire.MaxDecompressedSize = DefaultMaxDecompressedSize
	}

	if cfg.Budget.MaxPaddingFrac == 0 {
		cfg.Budget.MaxPaddingFrac = DefaultMaxPaddingFrac
	}
	if cfg.Budget.MaxBlockingFrac == 0 {
		cfg.Budget.MaxBlockingFrac = DefaultMaxBlockingFrac
	}

	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = DefaultRateLimitWindow
	}
	if cfg.RateLimit.MaxActionsPerWindow == 0 {
		cfg.RateLimit.MaxActionsPerWindow = DefaultRateLimitMaxActionsPerWindow
	}

	if cfg.Telemetry.LoggingLevel == "" {
		cfg.Telemetry.LoggingLevel = DefaultLoggingLevel
	}
	if cfg.Telemetry.AuditPath == "" {
		cfg.Telemetry.AuditPath = DefaultAuditPath
	}
	// MetricsEnabled defaults true, unlike the other booleans here, so it
	// can't be defaulted via a zero-value check without also making
	// "explicitly disabled" indistinguishable from "unset" — callers that
	// build a Config directly rather than through Default() must set it.
}
