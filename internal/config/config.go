// Package config provides configuration types and defaults for fingerlock.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all configuration for fingerlock.
type Config struct {
	Sensor      SensorConfig      `yaml:"sensor" mapstructure:"sensor"`
	Lockout     LockoutConfig     `yaml:"lockout" mapstructure:"lockout"`
	UI          UIConfig          `yaml:"ui" mapstructure:"ui"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	Pinentry    PinentryConfig    `yaml:"pinentry" mapstructure:"pinentry"`
}

// SensorConfig selects and tunes the sensor backend.
type SensorConfig struct {
	Backend         string        `yaml:"backend" mapstructure:"backend"`                   // "fprintd" or "mock"
	Finger          string        `yaml:"finger" mapstructure:"finger"`                     // fprintd finger name, "any" lets fprintd pick
	Username        string        `yaml:"username" mapstructure:"username"`                 // empty = current user
	VerifyTimeout   time.Duration `yaml:"verify_timeout" mapstructure:"verify_timeout"`     // one sensor interaction
	TeardownTimeout time.Duration `yaml:"teardown_timeout" mapstructure:"teardown_timeout"` // wait for workers on exit
}

// LockoutConfig holds the wrong-attempt policy.
type LockoutConfig struct {
	FailedAttemptsBeforeLockout int           `yaml:"failed_attempts_before_lockout" mapstructure:"failed_attempts_before_lockout"`
	Cooldown                    time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
	TickInterval                time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
}

// UIConfig holds caller-supplied texts.
type UIConfig struct {
	HeaderText       string `yaml:"header_text" mapstructure:"header_text"`
	EnrollHeaderText string `yaml:"enroll_header_text" mapstructure:"enroll_header_text"`
	FooterText       string `yaml:"footer_text" mapstructure:"footer_text"`
	HeaderWrongText  string `yaml:"header_wrong_text" mapstructure:"header_wrong_text"`
	FooterWrongText  string `yaml:"footer_wrong_text" mapstructure:"footer_wrong_text"` // replaces "N attempts remaining" when set
}

// PathsConfig holds file paths for state, logs, socket and the slot flag.
type PathsConfig struct {
	State  string `yaml:"state" mapstructure:"state"`
	Log    string `yaml:"log" mapstructure:"log"`
	Socket string `yaml:"socket" mapstructure:"socket"`
	Slot   string `yaml:"slot" mapstructure:"slot"`
}

// LogRotationConfig holds lumberjack rotation settings shared by the TUI
// debug log and the JSONL event log.
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// PinentryConfig controls passcode collection for enrollment.
type PinentryConfig struct {
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`
	Program     string        `yaml:"program" mapstructure:"program"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Title       string        `yaml:"title" mapstructure:"title"`
	Description string        `yaml:"description" mapstructure:"description"`
	Prompt      string        `yaml:"prompt" mapstructure:"prompt"`
}

// Known sensor backends.
const (
	BackendFprintd = "fprintd"
	BackendMock    = "mock"
)

// Default returns a Config with the stock policy: four bad swipes lock the
// sensor for thirty seconds.
func Default() *Config {
	return &Config{
		Sensor: SensorConfig{
			Backend:         BackendFprintd,
			Finger:          "any",
			VerifyTimeout:   30 * time.Second,
			TeardownTimeout: 5 * time.Second,
		},
		Lockout: LockoutConfig{
			FailedAttemptsBeforeLockout: 4,
			Cooldown:                    30 * time.Second,
			TickInterval:                time.Second,
		},
		UI: UIConfig{
			HeaderText:       "Touch the fingerprint sensor",
			EnrollHeaderText: "Touch the sensor to enroll your fingerprint",
			HeaderWrongText:  "Fingerprint not recognized",
		},
		Paths: PathsConfig{
			State:  ".fingerlock/state.json",
			Log:    ".fingerlock/events.jsonl",
			Socket: ".fingerlock/fingerlock.sock",
			Slot:   ".fingerlock/slot.json",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9477",
		},
		Pinentry: PinentryConfig{
			Enabled:     false,
			Program:     "pinentry",
			Timeout:     time.Minute,
			Title:       "fingerlock",
			Description: "Enter a backup passcode for this fingerprint",
			Prompt:      "Passcode:",
		},
	}
}

// Validate reports the first setting that cannot drive a workflow.
func (c *Config) Validate() error {
	switch c.Sensor.Backend {
	case BackendFprintd, BackendMock:
	default:
		return fmt.Errorf("sensor.backend: unknown backend %q", c.Sensor.Backend)
	}
	if c.Sensor.VerifyTimeout <= 0 {
		return errors.New("sensor.verify_timeout must be positive")
	}
	if c.Sensor.TeardownTimeout <= 0 {
		return errors.New("sensor.teardown_timeout must be positive")
	}
	if c.Lockout.FailedAttemptsBeforeLockout < 1 {
		return fmt.Errorf("lockout.failed_attempts_before_lockout must be at least 1, got %d",
			c.Lockout.FailedAttemptsBeforeLockout)
	}
	if c.Lockout.Cooldown <= 0 {
		return errors.New("lockout.cooldown must be positive")
	}
	if c.Lockout.TickInterval <= 0 {
		return errors.New("lockout.tick_interval must be positive")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	if c.Pinentry.Enabled && c.Pinentry.Program == "" {
		return errors.New("pinentry.program is required when pinentry is enabled")
	}
	return nil
}
