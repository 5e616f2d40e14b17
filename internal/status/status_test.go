package status

import (
	"strings"
	"testing"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		want  Kind
		class Class
	}{
		{"ok", CodeOK, KindAccepted, ClassSuccess},
		{"no stored credential", CodeNoStoredCredential, KindNoStoredCredential, ClassSuccess},
		{"library not available", CodeLibraryNotAvailable, KindLibraryUnavailable, ClassTerminal},
		{"user canceled", CodeUserCanceled, KindUserCanceled, ClassTerminal},
		{"ui timeout", CodeUITimeout, KindUITimeout, ClassCounted},
		{"credential locked", CodeCredentialLocked, KindCredentialLocked, ClassCounted},
		{"unrecognized", 999, KindOther, ClassTerminal},
		{"negative", -3, KindOther, ClassTerminal},
		{"enroll timeout", CodeTimeout, KindOther, ClassTerminal},
		{"database full", CodeDatabaseFull, KindOther, ClassTerminal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(tt.code)
			if got.Kind != tt.want {
				t.Errorf("Translate(%d).Kind = %v, want %v", tt.code, got.Kind, tt.want)
			}
			if got.Class() != tt.class {
				t.Errorf("Translate(%d).Class() = %v, want %v", tt.code, got.Class(), tt.class)
			}
			if got.Code != tt.code {
				t.Errorf("Translate(%d).Code = %d", tt.code, got.Code)
			}
		})
	}
}

func TestTranslate_Deterministic(t *testing.T) {
	for code := -50; code < 1050; code++ {
		a, b := Translate(code), Translate(code)
		if a != b {
			t.Fatalf("Translate(%d) not deterministic: %v vs %v", code, a, b)
		}
	}
}

func TestOutcome_String(t *testing.T) {
	if got := Translate(999).String(); got != "other(999)" {
		t.Errorf("String() = %q, want other(999)", got)
	}
	if got := Translate(999).Label(); got != "other" {
		t.Errorf("Label() = %q, want other", got)
	}
	if got := Translate(CodeCredentialLocked).Label(); got != "credential_locked" {
		t.Errorf("Label() = %q, want credential_locked", got)
	}
}

func TestEnrollMessage(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{CodeOK, "succeeded"},
		{CodeLibraryNotAvailable, "not available"},
		{CodeUserCanceled, "canceled"},
		{CodeTimeout, "timed out"},
		{CodeUnknownError, "unknown error"},
		{CodeDatabaseFull, "database is full"},
		{42, "code 42"},
	}
	for _, tt := range tests {
		got := EnrollMessage(Translate(tt.code))
		if !strings.Contains(got, tt.want) {
			t.Errorf("EnrollMessage(%d) = %q, want substring %q", tt.code, got, tt.want)
		}
	}
}
