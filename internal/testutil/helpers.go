// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// DefaultWait bounds WaitFor when no timeout is given.
const DefaultWait = 2 * time.Second

// TempDir creates a temporary directory and returns it along with a cleanup function.
func TempDir(t *testing.T) (string, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "fingerlock-test-*")
	if err != nil {
		t.Fatal(err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }
}

// WriteFile writes content to name under dir, creating parent directories,
// and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ReadFile reads a file and fails the test if it cannot.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// FileExists reports whether path exists.
func FileExists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	return err == nil
}

// SetupTestDir creates a temp directory containing an empty .fingerlock
// directory.
func SetupTestDir(t *testing.T) (string, func()) {
	t.Helper()
	dir, cleanup := TempDir(t)

	if err := os.MkdirAll(filepath.Join(dir, ".fingerlock"), 0o755); err != nil {
		cleanup()
		t.Fatal(err)
	}
	return dir, cleanup
}

// SetupTestDirWithState is SetupTestDir plus a .fingerlock/state.json.
func SetupTestDirWithState(t *testing.T, stateJSON string) (string, func()) {
	t.Helper()
	dir, cleanup := SetupTestDir(t)
	WriteFile(t, dir, ".fingerlock/state.json", stateJSON)
	return dir, cleanup
}

// WaitFor polls cond every few milliseconds until it returns true or the
// timeout elapses, failing the test with msg in the latter case. A zero
// timeout means DefaultWait.
func WaitFor(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()
	if timeout <= 0 {
		timeout = DefaultWait
	}
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %v waiting for %s", timeout, msg)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// Eventually is WaitFor without failing: it reports whether cond became
// true within timeout.
func Eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(2 * time.Millisecond)
	}
}
