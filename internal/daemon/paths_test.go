package daemon

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/npratt/fingerlock/internal/config"
	"github.com/npratt/fingerlock/internal/testutil"
)

func TestResolvePaths(t *testing.T) {
	tmp := t.TempDir()
	home := t.TempDir()
	t.Setenv("HOME", home)

	paths := config.PathsConfig{
		State:  ".fingerlock/state.json",
		Log:    "/var/log/fingerlock/../fingerlock/events.jsonl",
		Socket: ".fingerlock/fingerlock.sock",
		Slot:   "~/fingerlock/slot.json",
	}

	resolved, err := ResolvePaths(paths, tmp)
	if err != nil {
		t.Fatalf("ResolvePaths() error: %v", err)
	}

	tests := []struct {
		name, got, want string
	}{
		{"state", resolved.State, filepath.Join(tmp, ".fingerlock/state.json")},
		{"absolute log is cleaned", resolved.Log, "/var/log/fingerlock/events.jsonl"},
		{"socket", resolved.Socket, filepath.Join(tmp, ".fingerlock/fingerlock.sock")},
		{"home slot", resolved.Slot, filepath.Join(home, "fingerlock/slot.json")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestResolvePaths_EmptyUsesDefaults(t *testing.T) {
	tmp := t.TempDir()
	resolved, err := ResolvePaths(config.PathsConfig{}, tmp)
	if err != nil {
		t.Fatalf("ResolvePaths() error: %v", err)
	}
	def := config.Default().Paths
	if resolved.Slot != filepath.Join(tmp, def.Slot) || resolved.State != filepath.Join(tmp, def.State) {
		t.Errorf("resolved = %+v", resolved)
	}
}

func TestResolvePaths_LongSocketMovesToRuntimeDir(t *testing.T) {
	runtime := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtime)

	deep := filepath.Join("/srv", strings.Repeat("project-", 16))
	paths := config.PathsConfig{Socket: ".fingerlock/fingerlock.sock"}

	first, err := ResolvePaths(paths, deep)
	if err != nil {
		t.Fatalf("ResolvePaths() error: %v", err)
	}
	if filepath.Dir(first.Socket) != runtime || len(first.Socket) > maxSocketPath {
		t.Errorf("Socket = %q, want a short path in %s", first.Socket, runtime)
	}

	second, _ := ResolvePaths(paths, deep)
	if second.Socket != first.Socket {
		t.Errorf("socket path not stable: %q then %q", first.Socket, second.Socket)
	}
	other, _ := ResolvePaths(paths, deep+"-other")
	if other.Socket == first.Socket {
		t.Error("different projects should not share a socket")
	}
}

func TestFindProjectRoot(t *testing.T) {
	for _, marker := range []string{".git", ".fingerlock"} {
		t.Run(marker, func(t *testing.T) {
			tmp := t.TempDir()
			if err := os.Mkdir(filepath.Join(tmp, marker), 0755); err != nil {
				t.Fatal(err)
			}
			sub := filepath.Join(tmp, "a", "b")
			if err := os.MkdirAll(sub, 0755); err != nil {
				t.Fatal(err)
			}

			if root := FindProjectRoot(sub); root != tmp {
				t.Errorf("root = %q, want %q", root, tmp)
			}
		})
	}

	t.Run("state dir", func(t *testing.T) {
		dir, cleanup := testutil.SetupTestDir(t)
		defer cleanup()
		sub := testutil.WriteFile(t, dir, "nested/file.txt", "x")
		if root := FindProjectRoot(filepath.Dir(sub)); root != dir {
			t.Errorf("root = %q, want %q", root, dir)
		}
		if got := DaemonInfoPath(dir); got != filepath.Join(dir, ".fingerlock", "daemon.json") {
			t.Errorf("DaemonInfoPath = %q", got)
		}
	})

	t.Run("no marker", func(t *testing.T) {
		tmp := t.TempDir()
		if root := FindProjectRoot(tmp); root != tmp {
			t.Errorf("root = %q, want start dir %q", root, tmp)
		}
	})
}

func TestDaemonInfo_RoundTrip(t *testing.T) {
	tmp := t.TempDir()
	path := DaemonInfoPath(tmp)

	sockPath := shortSocketPath(t)
	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = listener.Close() }()

	info := &DaemonInfo{
		SocketPath: sockPath,
		WorkflowID: "wf-1",
		Mode:       "enroll",
		StartTime:  time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		PID:        4242,
	}
	if err := WriteDaemonInfo(path, info); err != nil {
		t.Fatalf("WriteDaemonInfo: %v", err)
	}

	sub := filepath.Join(tmp, "nested")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	got, err := FindDaemonInfo(sub)
	if err != nil {
		t.Fatalf("FindDaemonInfo: %v", err)
	}
	if got.SocketPath != info.SocketPath || got.Mode != "enroll" || got.PID != 4242 || !got.StartTime.Equal(info.StartTime) {
		t.Errorf("info = %+v", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left next to daemon.json: %v", entries)
	}

	if err := RemoveDaemonInfo(path); err != nil {
		t.Fatalf("RemoveDaemonInfo: %v", err)
	}
	if err := RemoveDaemonInfo(path); err != nil {
		t.Errorf("removing a missing file should succeed: %v", err)
	}
	if _, err := FindDaemonInfo(sub); !errors.Is(err, ErrNotRunning) {
		t.Errorf("after removal err = %v, want ErrNotRunning", err)
	}
}

func TestFindDaemonInfo_StaleSocket(t *testing.T) {
	dir, cleanup := testutil.SetupTestDir(t)
	defer cleanup()

	info := &DaemonInfo{SocketPath: shortSocketPath(t), WorkflowID: "wf-crashed"}
	if err := WriteDaemonInfo(DaemonInfoPath(dir), info); err != nil {
		t.Fatalf("WriteDaemonInfo: %v", err)
	}

	_, err := FindDaemonInfo(dir)
	if !errors.Is(err, ErrNotRunning) || !strings.Contains(err.Error(), "stale") {
		t.Errorf("err = %v, want a stale ErrNotRunning", err)
	}
}

func TestReadDaemonInfo_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.json")
	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadDaemonInfo(path); err == nil {
		t.Error("expected an unmarshal error")
	}
}
