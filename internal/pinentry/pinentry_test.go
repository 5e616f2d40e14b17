package pinentry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/npratt/fingerlock/internal/config"
)

// fakePinentry answers the Assuan commands a Prompter sends. GETPIN replies
// with pin, or with an error when pin is "!cancel".
func fakePinentry(t *testing.T, pin string) string {
	t.Helper()

	getpin := `echo "D ` + pin + `"; echo "OK"`
	if pin == "!cancel" {
		getpin = `echo "ERR 83886179 Operation cancelled <Pinentry>"`
	}
	script := `#!/bin/sh
echo "OK Pleased to meet you"
while read -r cmd rest; do
  case "$cmd" in
    GETPIN) ` + getpin + ` ;;
    BYE) echo "OK closing connection"; exit 0 ;;
    *) echo "OK" ;;
  esac
done
`
	path := filepath.Join(t.TempDir(), "pinentry-fake")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(program string) config.PinentryConfig {
	cfg := config.Default().Pinentry
	cfg.Enabled = true
	cfg.Program = program
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestPasscode(t *testing.T) {
	p := New(testConfig(fakePinentry(t, "4321")), nil)

	got, err := p.Passcode(context.Background())
	if err != nil {
		t.Fatalf("Passcode: %v", err)
	}
	if got != "4321" {
		t.Errorf("passcode = %q, want 4321", got)
	}
}

func TestPasscode_Canceled(t *testing.T) {
	p := New(testConfig(fakePinentry(t, "!cancel")), nil)

	if _, err := p.Passcode(context.Background()); err == nil {
		t.Error("a canceled dialog should return an error")
	}
}

func TestPasscode_MissingProgram(t *testing.T) {
	p := New(testConfig(filepath.Join(t.TempDir(), "no-such-pinentry")), nil)

	_, err := p.Passcode(context.Background())
	if err == nil {
		t.Fatal("expected a launch error")
	}
	if errors.Is(err, ErrNoPasscode) {
		t.Errorf("err = %v, want a launch error", err)
	}
}

func TestResolveProgram(t *testing.T) {
	t.Run("explicit program", func(t *testing.T) {
		if got := ResolveProgram("/opt/bin/pinentry-curses"); got != "/opt/bin/pinentry-curses" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("gui candidate on PATH", func(t *testing.T) {
		dir := t.TempDir()
		gui := filepath.Join(dir, "pinentry-qt")
		if err := os.WriteFile(gui, []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
		t.Setenv("PATH", dir)

		if got := ResolveProgram(DefaultProgram); got != gui {
			t.Errorf("got %q, want %q", got, gui)
		}
		if got := ResolveProgram(""); got != gui {
			t.Errorf("empty program: got %q, want %q", got, gui)
		}
	})

	t.Run("fallback", func(t *testing.T) {
		t.Setenv("PATH", t.TempDir())
		if got := ResolveProgram(""); got != DefaultProgram {
			t.Errorf("got %q, want %q", got, DefaultProgram)
		}
	})
}
