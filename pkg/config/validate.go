package config

import (
	"fmt"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "wire.max_decompressed_size").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is
// valid. All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateWire(&cfg.Wire)...)
	errs = append(errs, validateBudget(&cfg.Budget)...)
	errs = append(errs, validateRateLimit(&cfg.RateLimit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateWire(cfg *WireConfig) []FieldError {
	var errs []FieldError
	if cfg.MaxDecompressedSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "wire.max_decompressed_size",
			Message: "must be positive",
		})
	}
	return errs
}

func validateBudget(cfg *BudgetConfig) []FieldError {
	var errs []FieldError
	if cfg.MaxPaddingFrac < 0 || cfg.MaxPaddingFrac > 1 {
		errs = append(errs, FieldError{
			Field:   "budget.max_padding_frac",
			Message: "must be between 0 and 1",
		})
	}
	if cfg.MaxBlockingFrac < 0 || cfg.MaxBlockingFrac > 1 {
		errs = append(errs, FieldError{
			Field:   "budget.max_blocking_frac",
			Message: "must be between 0 and 1",
		})
	}
	return errs
}

func validateRateLimit(cfg *RateLimitConfig) []FieldError {
	var errs []FieldError
	if !cfg.Enabled {
		return errs
	}
	if cfg.Window <= 0 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.window",
			Message: "must be positive when rate limiting is enabled",
		})
	}
	if cfg.MaxActionsPerWindow < 0 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.max_actions_per_window",
			Message: "must not be negative",
		})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError
	switch cfg.LoggingLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging_level",
			Message: fmt.Sprintf("unknown logging level %q", cfg.LoggingLevel),
		})
	}
	if cfg.AuditEnabled && cfg.AuditPath == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.audit_path",
			Message: "required when audit is enabled",
		})
	}
	return errs
}
