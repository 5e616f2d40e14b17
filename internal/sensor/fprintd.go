package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/user"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/npratt/fingerlock/internal/status"
)

const (
	fprintdService      = "net.reactivated.Fprint"
	fprintdPath         = "/net/reactivated/Fprint/Manager"
	fprintdInterface    = "net.reactivated.Fprint.Manager"
	fprintdDevInterface = "net.reactivated.Fprint.Device"

	fprintdErrNoEnrolledPrints = "net.reactivated.Fprint.Error.NoEnrolledPrints"
	fprintdErrNoSuchDevice     = "net.reactivated.Fprint.Error.NoSuchDevice"
)

// VerifyStatus and EnrollStatus results reported by fprintd.
const (
	verifyMatch        = "verify-match"
	verifyNoMatch      = "verify-no-match"
	verifyDisconnected = "verify-disconnected"
	verifyUnknown      = "verify-unknown-error"

	enrollCompleted    = "enroll-completed"
	enrollFailed       = "enroll-failed"
	enrollDataFull     = "enroll-data-full"
	enrollDisconnected = "enroll-disconnected"
	enrollUnknown      = "enroll-unknown-error"
)

// FprintdOptions tunes the fprintd backend.
type FprintdOptions struct {
	// Finger passed to VerifyStart/EnrollStart ("any" lets fprintd choose).
	Finger string
	// VerifyTimeout bounds one interaction; elapsing reports UI_TIMEOUT for
	// verification and TIMEOUT for enrollment.
	VerifyTimeout time.Duration
	// Username whose prints are used. Empty means the current user.
	Username string
}

type operation int

const (
	opVerify operation = iota
	opEnroll
)

func (o operation) String() string {
	if o == opEnroll {
		return "enroll"
	}
	return "verify"
}

// Fprintd talks to the fprintd daemon over the D-Bus system bus.
type Fprintd struct {
	slots   *SlotStore
	logger  *slog.Logger
	opts    FprintdOptions
	connect func() (*dbus.Conn, error)
}

// NewFprintd creates an fprintd backend. The credential slot flag lives in
// slots since fprintd has no notion of it.
func NewFprintd(slots *SlotStore, logger *slog.Logger, opts FprintdOptions) *Fprintd {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Finger == "" {
		opts.Finger = "any"
	}
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = 30 * time.Second
	}
	return &Fprintd{
		slots:   slots,
		logger:  logger,
		opts:    opts,
		connect: dbus.SystemBus,
	}
}

// Verify implements Sensor.
func (f *Fprintd) Verify(ctx context.Context, s Session) int {
	return f.run(ctx, s, opVerify)
}

// Enroll implements Sensor. fprintd has no passcode input, so a supplied
// passcode is only noted in the debug log.
func (f *Fprintd) Enroll(ctx context.Context, s Session, passcode string) int {
	if passcode != "" {
		f.logger.Debug("fprintd ignores pre-supplied passcode", "session", s.ID)
	}
	return f.run(ctx, s, opEnroll)
}

// HasStoredCredential implements Sensor.
func (f *Fprintd) HasStoredCredential(ctx context.Context) (bool, error) {
	conn, err := f.connect()
	if err != nil {
		return false, fmt.Errorf("connect system bus: %w", err)
	}
	username, err := f.username()
	if err != nil {
		return false, err
	}
	devicePath, err := defaultDevice(conn)
	if err != nil {
		return false, err
	}

	var fingers []string
	err = conn.Object(fprintdService, devicePath).CallWithContext(ctx,
		fprintdDevInterface+".ListEnrolledFingers", 0, username).Store(&fingers)
	if err != nil {
		if dbusErrorName(err) == fprintdErrNoEnrolledPrints {
			return false, nil
		}
		return false, fmt.Errorf("list enrolled fingers: %w", err)
	}
	return len(fingers) > 0, nil
}

// SetCredentialSlotEnabled implements Sensor.
func (f *Fprintd) SetCredentialSlotEnabled(ctx context.Context, enabled bool) error {
	return f.slots.SetEnabled(enabled)
}

// CredentialSlotEnabled implements Sensor.
func (f *Fprintd) CredentialSlotEnabled(ctx context.Context) (bool, error) {
	return f.slots.Enabled()
}

func (f *Fprintd) username() (string, error) {
	if f.opts.Username != "" {
		return f.opts.Username, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("get current user: %w", err)
	}
	return u.Username, nil
}

// run claims the default device, starts the operation and waits for the
// final status signal, the timeout, or dismissal.
func (f *Fprintd) run(ctx context.Context, s Session, op operation) int {
	logger := f.logger.With("session", s.ID, "op", op.String())

	conn, err := f.connect()
	if err != nil {
		logger.Error("connect system bus", "error", err)
		return status.CodeLibraryNotAvailable
	}
	username, err := f.username()
	if err != nil {
		logger.Error("resolve user", "error", err)
		return status.CodeUnknownError
	}
	devicePath, err := defaultDevice(conn)
	if err != nil {
		logger.Error("no fingerprint device", "error", err)
		return status.CodeLibraryNotAvailable
	}
	device := conn.Object(fprintdService, devicePath)

	// Subscribe before claiming so no status signal is missed.
	matchOpts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(devicePath),
		dbus.WithMatchInterface(fprintdDevInterface),
	}
	if err := conn.AddMatchSignal(matchOpts...); err != nil {
		logger.Error("add signal match", "error", err)
		return status.CodeLibraryNotAvailable
	}
	signals := make(chan *dbus.Signal, 10)
	conn.Signal(signals)
	defer func() {
		conn.RemoveSignal(signals)
		_ = conn.RemoveMatchSignal(matchOpts...)
	}()

	if err := device.Call(fprintdDevInterface+".Claim", 0, username).Err; err != nil {
		logger.Error("claim device", "error", err)
		return status.CodeUnknownError
	}
	defer func() {
		if err := device.Call(fprintdDevInterface+".Release", 0).Err; err != nil {
			logger.Warn("release device", "error", err)
		}
	}()

	startMethod, stopMethod := ".VerifyStart", ".VerifyStop"
	if op == opEnroll {
		startMethod, stopMethod = ".EnrollStart", ".EnrollStop"
	}
	if err := device.Call(fprintdDevInterface+startMethod, 0, f.opts.Finger).Err; err != nil {
		logger.Error("start operation", "error", err)
		return startErrorCode(err)
	}
	stop := func() {
		if err := device.Call(fprintdDevInterface+stopMethod, 0).Err; err != nil {
			logger.Debug("stop operation", "error", err)
		}
	}

	logger.Info("fingerprint operation started", "device", devicePath, "user", username)

	timeout := time.NewTimer(f.opts.VerifyTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			stop()
			logger.Info("fingerprint operation dismissed")
			return status.CodeUserCanceled

		case <-timeout.C:
			stop()
			logger.Warn("fingerprint operation timed out", "timeout", f.opts.VerifyTimeout)
			if op == opEnroll {
				return status.CodeTimeout
			}
			return status.CodeUITimeout

		case sig, ok := <-signals:
			if !ok {
				return status.CodeUnknownError
			}
			result, done, ok := parseStatusSignal(sig, op)
			if !ok {
				continue
			}
			logger.Debug("fingerprint status", "result", result, "done", done)

			var code int
			var finished bool
			if op == opEnroll {
				code, finished = enrollStatusCode(result, done)
			} else {
				code, finished = verifyStatusCode(result, done)
			}
			if finished {
				stop()
				return code
			}
		}
	}
}

func defaultDevice(conn *dbus.Conn) (dbus.ObjectPath, error) {
	var devicePath dbus.ObjectPath
	err := conn.Object(fprintdService, dbus.ObjectPath(fprintdPath)).
		Call(fprintdInterface+".GetDefaultDevice", 0).Store(&devicePath)
	if err != nil {
		return "", fmt.Errorf("get default device: %w", err)
	}
	if devicePath == "" || devicePath == "/" {
		return "", errors.New("no fingerprint readers available")
	}
	return devicePath, nil
}

// parseStatusSignal extracts (result, done) from a VerifyStatus or
// EnrollStatus signal matching op.
func parseStatusSignal(sig *dbus.Signal, op operation) (string, bool, bool) {
	want := fprintdDevInterface + ".VerifyStatus"
	if op == opEnroll {
		want = fprintdDevInterface + ".EnrollStatus"
	}
	if sig == nil || sig.Name != want || len(sig.Body) < 2 {
		return "", false, false
	}
	result, ok := sig.Body[0].(string)
	if !ok {
		return "", false, false
	}
	done, ok := sig.Body[1].(bool)
	if !ok {
		return "", false, false
	}
	return result, done, true
}

// verifyStatusCode maps a VerifyStatus result to a raw code. finished is
// false for intermediate results such as verify-retry-scan.
func verifyStatusCode(result string, done bool) (code int, finished bool) {
	switch result {
	case verifyMatch:
		return status.CodeOK, true
	case verifyNoMatch:
		return status.CodeCredentialLocked, true
	case verifyDisconnected, verifyUnknown:
		return status.CodeUnknownError, true
	}
	if done {
		return status.CodeUnknownError, true
	}
	return 0, false
}

// enrollStatusCode maps an EnrollStatus result to a raw code.
func enrollStatusCode(result string, done bool) (code int, finished bool) {
	switch result {
	case enrollCompleted:
		return status.CodeOK, true
	case enrollDataFull:
		return status.CodeDatabaseFull, true
	case enrollFailed, enrollDisconnected, enrollUnknown:
		return status.CodeUnknownError, true
	}
	if done {
		return status.CodeUnknownError, true
	}
	return 0, false
}

// startErrorCode maps a VerifyStart/EnrollStart failure to a raw code.
func startErrorCode(err error) int {
	switch dbusErrorName(err) {
	case fprintdErrNoEnrolledPrints:
		return status.CodeNoStoredCredential
	case fprintdErrNoSuchDevice:
		return status.CodeLibraryNotAvailable
	default:
		return status.CodeUnknownError
	}
}

func dbusErrorName(err error) string {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		return dbusErr.Name
	}
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) && dbusErrPtr != nil {
		return dbusErrPtr.Name
	}
	return ""
}

var _ Sensor = (*Fprintd)(nil)
