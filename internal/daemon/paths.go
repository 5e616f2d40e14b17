package daemon

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/npratt/fingerlock/internal/config"
)

// DaemonInfo is written next to the socket so control commands can find the
// running workflow from any subdirectory of the project.
type DaemonInfo struct {
	SocketPath string    `json:"socket_path"`
	StatePath  string    `json:"state_path"`
	LogPath    string    `json:"log_path"`
	WorkflowID string    `json:"workflow_id"`
	Mode       string    `json:"mode"`
	StartTime  time.Time `json:"start_time"`
	PID        int       `json:"pid"`
}

const daemonInfoFile = "daemon.json"

// maxSocketPath is the usable length of a unix socket address (sun_path
// minus its terminating NUL).
const maxSocketPath = 107

// projectMarkers are directories that indicate project root.
var projectMarkers = []string{".git", config.ProjectConfigDir}

// ResolvePaths makes every path in paths absolute against basePath (the
// working directory when empty). Unset paths take their defaults, a
// leading "~/" is the home directory, and a socket path too long for a
// unix address is moved to the runtime directory under a stable name.
func ResolvePaths(paths config.PathsConfig, basePath string) (config.PathsConfig, error) {
	if basePath == "" {
		var err error
		basePath, err = os.Getwd()
		if err != nil {
			return paths, fmt.Errorf("get working directory: %w", err)
		}
	}
	defaults := config.Default().Paths

	resolve := func(p, def string) (string, error) {
		if p == "" {
			p = def
		}
		if rest, ok := strings.CutPrefix(p, "~/"); ok {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("expand %s: %w", p, err)
			}
			return filepath.Join(home, rest), nil
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p), nil
		}
		return filepath.Join(basePath, p), nil
	}

	var out config.PathsConfig
	for _, f := range []struct {
		dst      *string
		val, def string
	}{
		{&out.State, paths.State, defaults.State},
		{&out.Log, paths.Log, defaults.Log},
		{&out.Socket, paths.Socket, defaults.Socket},
		{&out.Slot, paths.Slot, defaults.Slot},
	} {
		p, err := resolve(f.val, f.def)
		if err != nil {
			return paths, err
		}
		*f.dst = p
	}
	out.Socket = shortenSocketPath(out.Socket)
	return out, nil
}

// shortenSocketPath keeps sock if it fits in a unix address and otherwise
// maps it to $XDG_RUNTIME_DIR (or the temp dir) keyed by a hash of sock, so
// every command resolving the same config agrees on the result.
func shortenSocketPath(sock string) string {
	if len(sock) <= maxSocketPath {
		return sock
	}
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(sock))
	return filepath.Join(dir, fmt.Sprintf("fingerlock-%016x.sock", h.Sum64()))
}

// FindProjectRoot walks up from startDir to the nearest directory holding a
// project marker, or returns startDir if there is none.
func FindProjectRoot(startDir string) string {
	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return "."
		}
	}

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return startDir
	}

	for dir := absDir; ; {
		for _, marker := range projectMarkers {
			if info, err := os.Stat(filepath.Join(dir, marker)); err == nil && info.IsDir() {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir
		}
		dir = parent
	}
}

// FindDaemonInfo reads daemon.json from the project root above startDir.
// A file whose socket nobody answers on is left over from a crash and is
// reported as ErrNotRunning.
func FindDaemonInfo(startDir string) (*DaemonInfo, error) {
	infoPath := DaemonInfoPath(FindProjectRoot(startDir))
	info, err := ReadDaemonInfo(infoPath)
	if err != nil {
		return nil, fmt.Errorf("%w (no %s)", ErrNotRunning, infoPath)
	}
	if !NewClient(info.SocketPath).IsRunning() {
		return nil, fmt.Errorf("%w (stale %s)", ErrNotRunning, infoPath)
	}
	return info, nil
}

// WriteDaemonInfo atomically replaces the daemon info file at path.
func WriteDaemonInfo(path string, info *DaemonInfo) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal daemon info: %w", err)
	}

	tmp, err := os.CreateTemp(dir, daemonInfoFile+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write daemon info: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close daemon info: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace daemon info: %w", err)
	}
	return nil
}

// ReadDaemonInfo reads daemon connection info from the specified path.
func ReadDaemonInfo(path string) (*DaemonInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read daemon info: %w", err)
	}

	var info DaemonInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("unmarshal daemon info: %w", err)
	}
	return &info, nil
}

// RemoveDaemonInfo removes the daemon.json file.
func RemoveDaemonInfo(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove daemon info: %w", err)
	}
	return nil
}

// DaemonInfoPath returns the path to daemon.json under projectRoot.
func DaemonInfoPath(projectRoot string) string {
	return filepath.Join(projectRoot, config.ProjectConfigDir, daemonInfoFile)
}
