package config

import (
	"fmt"
	"os"
	"strconv"
)

// EventRetentionConfig controls pruning of the event database. Without it
// a long-lived watcher accumulates heartbeats forever.
type EventRetentionConfig struct {
	// RetentionDays is the retention period for regular events (in days).
	// Default: 30, Range: 1-365
	RetentionDays int

	// RetentionAlertDays is the retention period for violation alerts (in
	// days). Alerts are kept longer than heartbeats so rule-violation
	// history survives routine pruning. Must be >= RetentionDays.
	// Default: 90, Range: 1-730
	RetentionAlertDays int

	// GlobalLimitEvents caps the total number of stored events. When the
	// cap is exceeded, the oldest non-alert events go first.
	// Default: 100000, Range: 1000-1000000
	GlobalLimitEvents int

	// Enabled controls whether pruning runs at watcher startup.
	// Default: true
	Enabled bool
}

// DefaultEventRetentionConfig returns the default retention configuration:
// a month of heartbeat noise, a quarter of alert history, and a total cap
// of 100k events (roughly 50 MB).
func DefaultEventRetentionConfig() EventRetentionConfig {
	return EventRetentionConfig{
		RetentionDays:      30,
		RetentionAlertDays: 90,
		GlobalLimitEvents:  100000,
		Enabled:            true,
	}
}

// Validate checks if the configuration has valid values.
func (c EventRetentionConfig) Validate() error {
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		return fmt.Errorf("retention days must be between 1 and 365 (got %d)", c.RetentionDays)
	}
	if c.RetentionAlertDays < 1 || c.RetentionAlertDays > 730 {
		return fmt.Errorf("alert retention days must be between 1 and 730 (got %d)",
			c.RetentionAlertDays)
	}
	if c.RetentionAlertDays < c.RetentionDays {
		return fmt.Errorf("alert retention days (%d) must be >= retention days (%d)",
			c.RetentionAlertDays, c.RetentionDays)
	}
	if c.GlobalLimitEvents < 1000 {
		return fmt.Errorf("global event limit must be at least 1000 (got %d)",
			c.GlobalLimitEvents)
	}
	if c.GlobalLimitEvents > 1000000 {
		return fmt.Errorf("global event limit too large (got %d, max 1000000)",
			c.GlobalLimitEvents)
	}
	return nil
}

// EventRetentionFromEnv creates an EventRetentionConfig from environment
// variables, falling back to defaults.
//
// Environment variables:
//   - SHEPHERD_EVENT_RETENTION_DAYS: retention for regular events (default: 30)
//   - SHEPHERD_EVENT_RETENTION_ALERT_DAYS: retention for alerts (default: 90)
//   - SHEPHERD_EVENT_GLOBAL_LIMIT: maximum total events (default: 100000)
//   - SHEPHERD_EVENT_CLEANUP_ENABLED: enable pruning (default: true)
//
// Returns an error if any environment variable has an invalid value.
func EventRetentionFromEnv() (EventRetentionConfig, error) {
	cfg := DefaultEventRetentionConfig()

	if err := parseEnvInt("SHEPHERD_EVENT_RETENTION_DAYS", &cfg.RetentionDays); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("SHEPHERD_EVENT_RETENTION_ALERT_DAYS", &cfg.RetentionAlertDays); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("SHEPHERD_EVENT_GLOBAL_LIMIT", &cfg.GlobalLimitEvents); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("SHEPHERD_EVENT_CLEANUP_ENABLED", &cfg.Enabled); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid event retention configuration from environment: %w", err)
	}
	return cfg, nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
