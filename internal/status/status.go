// Package status translates raw sensor status codes into workflow outcomes.
package status

import "fmt"

// Raw status codes returned by the sensor subsystem.
const (
	CodeOK                  = 0
	CodeNoStoredCredential  = 1
	CodeLibraryNotAvailable = 2
	CodeUserCanceled        = 3
	CodeUITimeout           = 4
	CodeCredentialLocked    = 5
	CodeTimeout             = 6
	CodeUnknownError        = 7
	CodeDatabaseFull        = 8
)

// Kind identifies an Outcome variant.
type Kind int

// Outcome kinds.
const (
	KindOther Kind = iota
	KindAccepted
	KindNoStoredCredential
	KindLibraryUnavailable
	KindUserCanceled
	KindUITimeout
	KindCredentialLocked
)

// Class groups outcomes by how the workflow reacts to them.
type Class int

const (
	// ClassSuccess finishes the workflow with acceptance.
	ClassSuccess Class = iota
	// ClassCounted counts toward lockout and keeps the workflow alive.
	ClassCounted
	// ClassTerminal finishes the workflow with rejection.
	ClassTerminal
)

func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassCounted:
		return "counted"
	default:
		return "terminal"
	}
}

// Outcome is the semantic result of one verify or enroll attempt.
// Code is the raw status the outcome was translated from; it is only
// meaningful to callers for KindOther.
type Outcome struct {
	Kind Kind
	Code int
}

// Translate maps a raw status code to an Outcome. It is total: codes it
// does not recognize become KindOther carrying the code.
func Translate(code int) Outcome {
	switch code {
	case CodeOK:
		return Outcome{Kind: KindAccepted, Code: code}
	case CodeNoStoredCredential:
		return Outcome{Kind: KindNoStoredCredential, Code: code}
	case CodeLibraryNotAvailable:
		return Outcome{Kind: KindLibraryUnavailable, Code: code}
	case CodeUserCanceled:
		return Outcome{Kind: KindUserCanceled, Code: code}
	case CodeUITimeout:
		return Outcome{Kind: KindUITimeout, Code: code}
	case CodeCredentialLocked:
		return Outcome{Kind: KindCredentialLocked, Code: code}
	default:
		return Outcome{Kind: KindOther, Code: code}
	}
}

// Class reports how the workflow should react to the outcome.
func (o Outcome) Class() Class {
	switch o.Kind {
	case KindAccepted, KindNoStoredCredential:
		return ClassSuccess
	case KindUITimeout, KindCredentialLocked:
		return ClassCounted
	default:
		return ClassTerminal
	}
}

// String returns a stable label for logs and metrics.
func (o Outcome) String() string {
	switch o.Kind {
	case KindAccepted:
		return "accepted"
	case KindNoStoredCredential:
		return "no_stored_credential"
	case KindLibraryUnavailable:
		return "library_unavailable"
	case KindUserCanceled:
		return "user_canceled"
	case KindUITimeout:
		return "ui_timeout"
	case KindCredentialLocked:
		return "credential_locked"
	default:
		return fmt.Sprintf("other(%d)", o.Code)
	}
}

// Label returns the outcome label without the raw code, for bounded
// metric cardinality.
func (o Outcome) Label() string {
	if o.Kind == KindOther {
		return "other"
	}
	return o.String()
}

// EnrollMessage returns the text shown to the user after an enrollment
// attempt finishes with the given outcome.
func EnrollMessage(o Outcome) string {
	switch o.Kind {
	case KindAccepted:
		return "Fingerprint enrollment succeeded"
	case KindLibraryUnavailable:
		return "Fingerprint library is not available"
	case KindUserCanceled:
		return "Fingerprint enrollment canceled"
	case KindUITimeout:
		return "Fingerprint enrollment timed out"
	}
	switch o.Code {
	case CodeTimeout:
		return "Fingerprint enrollment timed out"
	case CodeUnknownError:
		return "Fingerprint enrollment failed with an unknown error"
	case CodeDatabaseFull:
		return "Fingerprint database is full"
	}
	return fmt.Sprintf("Fingerprint enrollment failed (code %d)", o.Code)
}
