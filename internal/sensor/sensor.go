// Package sensor defines the contract of the external fingerprint subsystem
// and provides its backends.
package sensor

import (
	"context"
	"fmt"
	"log/slog"
)

// Session identifies the UI surface the sensor layer renders feedback on.
type Session struct {
	ID     string
	Prompt string
}

// Sensor is the fingerprint subsystem as seen by the workflow. Verify and
// Enroll block until the hardware interaction finishes and return a raw
// status code (see package status). Canceling ctx is the UI-dismiss
// notification; the call still returns a status, usually USER_CANCELED.
type Sensor interface {
	Verify(ctx context.Context, s Session) int
	// Enroll registers a new credential. passcode is hex-encoded by the
	// caller; empty means none was supplied.
	Enroll(ctx context.Context, s Session, passcode string) int
	HasStoredCredential(ctx context.Context) (bool, error)
	SetCredentialSlotEnabled(ctx context.Context, enabled bool) error
	CredentialSlotEnabled(ctx context.Context) (bool, error)
}

// Backend names accepted by New.
const (
	BackendFprintd = "fprintd"
	BackendMock    = "mock"
)

// Options configures a backend created by New.
type Options struct {
	Backend  string
	SlotPath string
	Logger   *slog.Logger
	FprintdOptions
}

// New returns the sensor backend named by opts.Backend.
func New(opts Options) (Sensor, error) {
	slots := NewSlotStore(opts.SlotPath)
	switch opts.Backend {
	case BackendFprintd, "":
		return NewFprintd(slots, opts.Logger, opts.FprintdOptions), nil
	case BackendMock:
		m := NewMockSensor()
		m.Slots = slots
		return m, nil
	default:
		return nil, fmt.Errorf("unknown sensor backend %q", opts.Backend)
	}
}
