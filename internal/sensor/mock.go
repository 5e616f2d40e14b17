package sensor

import (
	"context"
	"sync"

	"github.com/npratt/fingerlock/internal/status"
)

// EnrollCall records an Enroll invocation.
type EnrollCall struct {
	Session  Session
	Passcode string
}

// MockSensor is a scriptable Sensor for tests and demos.
//
// Without Hold, Verify and Enroll return the next queued code (VerifyCodes or
// EnrollCodes) and DefaultCode once the queue is empty. With Hold, every call
// blocks until Release supplies a code or ctx is canceled, in which case it
// returns USER_CANCELED like a dismissed sensor dialog.
type MockSensor struct {
	mu sync.Mutex

	// Configured responses
	VerifyCodes  []int
	EnrollCodes  []int
	DefaultCode  int
	Hold         bool
	Stored       bool
	StoredErr    error
	SetSlotError error
	Slots        *SlotStore

	// Call tracking
	VerifyCalls []Session
	EnrollCalls []EnrollCall
	SlotCalls   []bool
	inFlight    int
	maxInFlight int

	release chan int
	started chan Session
}

// NewMockSensor creates a MockSensor that accepts every attempt and reports
// an enrolled credential.
func NewMockSensor() *MockSensor {
	return &MockSensor{
		DefaultCode: status.CodeOK,
		Stored:      true,
		Slots:       NewSlotStore(""),
		release:     make(chan int),
		started:     make(chan Session, 64),
	}
}

// Verify implements Sensor.
func (m *MockSensor) Verify(ctx context.Context, s Session) int {
	m.mu.Lock()
	m.VerifyCalls = append(m.VerifyCalls, s)
	code := m.nextLocked(&m.VerifyCodes)
	m.mu.Unlock()

	return m.call(ctx, s, code)
}

// Enroll implements Sensor.
func (m *MockSensor) Enroll(ctx context.Context, s Session, passcode string) int {
	m.mu.Lock()
	m.EnrollCalls = append(m.EnrollCalls, EnrollCall{Session: s, Passcode: passcode})
	code := m.nextLocked(&m.EnrollCodes)
	m.mu.Unlock()

	return m.call(ctx, s, code)
}

// HasStoredCredential implements Sensor.
func (m *MockSensor) HasStoredCredential(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Stored, m.StoredErr
}

// SetCredentialSlotEnabled implements Sensor.
func (m *MockSensor) SetCredentialSlotEnabled(ctx context.Context, enabled bool) error {
	m.mu.Lock()
	m.SlotCalls = append(m.SlotCalls, enabled)
	err := m.SetSlotError
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return m.Slots.SetEnabled(enabled)
}

// CredentialSlotEnabled implements Sensor.
func (m *MockSensor) CredentialSlotEnabled(ctx context.Context) (bool, error) {
	return m.Slots.Enabled()
}

// Release unblocks one held call with the given code. It blocks until a
// call is waiting.
func (m *MockSensor) Release(code int) {
	m.release <- code
}

// Started returns a channel that receives the session of every call as it
// begins.
func (m *MockSensor) Started() <-chan Session {
	return m.started
}

// InFlight returns the number of calls currently executing.
func (m *MockSensor) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// MaxInFlight returns the highest number of concurrent calls observed.
func (m *MockSensor) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// CallCount returns the total number of Verify and Enroll calls.
func (m *MockSensor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.VerifyCalls) + len(m.EnrollCalls)
}

func (m *MockSensor) nextLocked(queue *[]int) int {
	if len(*queue) == 0 {
		return m.DefaultCode
	}
	code := (*queue)[0]
	*queue = (*queue)[1:]
	return code
}

func (m *MockSensor) call(ctx context.Context, s Session, code int) int {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	hold := m.Hold
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	select {
	case m.started <- s:
	default:
	}

	if !hold {
		return code
	}
	select {
	case code := <-m.release:
		return code
	case <-ctx.Done():
		return status.CodeUserCanceled
	}
}

var _ Sensor = (*MockSensor)(nil)
