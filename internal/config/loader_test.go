package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// isolate points the global and project config lookups at empty temp dirs.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dir := t.TempDir()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig(viper.New())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Lockout.Cooldown != 30*time.Second {
		t.Errorf("Cooldown = %v, want 30s", cfg.Lockout.Cooldown)
	}
	if cfg.Sensor.VerifyTimeout != 30*time.Second {
		t.Errorf("VerifyTimeout = %v, want 30s", cfg.Sensor.VerifyTimeout)
	}
	if cfg.UI.HeaderText != Default().UI.HeaderText {
		t.Errorf("HeaderText = %q", cfg.UI.HeaderText)
	}
}

func TestLoadConfig_ProjectFile(t *testing.T) {
	isolate(t)

	writeFile(t, filepath.Join(ProjectConfigDir, ProjectConfigFile), `
sensor:
  backend: mock
  verify_timeout: 10s
lockout:
  failed_attempts_before_lockout: 5
  cooldown: 1m
ui:
  header_text: "Confirm it's you"
`)

	cfg, err := LoadConfig(viper.New())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Sensor.Backend != BackendMock {
		t.Errorf("Backend = %q, want mock", cfg.Sensor.Backend)
	}
	if cfg.Sensor.VerifyTimeout != 10*time.Second {
		t.Errorf("VerifyTimeout = %v, want 10s", cfg.Sensor.VerifyTimeout)
	}
	if cfg.Lockout.FailedAttemptsBeforeLockout != 5 {
		t.Errorf("threshold = %d, want 5", cfg.Lockout.FailedAttemptsBeforeLockout)
	}
	if cfg.Lockout.Cooldown != time.Minute {
		t.Errorf("Cooldown = %v, want 1m", cfg.Lockout.Cooldown)
	}
	// Unset keys keep their defaults.
	if cfg.Lockout.TickInterval != time.Second {
		t.Errorf("TickInterval = %v, want 1s", cfg.Lockout.TickInterval)
	}
	if cfg.UI.HeaderText != "Confirm it's you" {
		t.Errorf("HeaderText = %q", cfg.UI.HeaderText)
	}
}

func TestLoadConfig_GlobalThenProject(t *testing.T) {
	isolate(t)

	writeFile(t, filepath.Join(os.Getenv("XDG_CONFIG_HOME"), GlobalConfigDir, GlobalConfigFile), `
lockout:
  cooldown: 45s
  tick_interval: 500ms
`)
	writeFile(t, filepath.Join(ProjectConfigDir, ProjectConfigFile), `
lockout:
  cooldown: 10s
`)

	cfg, err := LoadConfig(viper.New())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Lockout.Cooldown != 10*time.Second {
		t.Errorf("Cooldown = %v, want project value 10s", cfg.Lockout.Cooldown)
	}
	if cfg.Lockout.TickInterval != 500*time.Millisecond {
		t.Errorf("TickInterval = %v, want global value 500ms", cfg.Lockout.TickInterval)
	}
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, "metrics:\n  enabled: true\n  addr: \":9999\"\n")

	v := viper.New()
	v.Set("config", path)

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != ":9999" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	isolate(t)

	v := viper.New()
	v.Set("config", "/nonexistent/path/config.yaml")

	if _, err := LoadConfig(v); err == nil {
		t.Error("LoadConfig should fail for missing explicit config")
	}
}

func TestLoadConfig_OverrideWinsOverFile(t *testing.T) {
	isolate(t)

	writeFile(t, filepath.Join(ProjectConfigDir, ProjectConfigFile), "sensor:\n  finger: right-index-finger\n")

	v := viper.New()
	v.SetEnvPrefix("FINGERLOCK")
	v.AutomaticEnv()
	// Env binding happens in the CLI; a direct Set stands in for it.
	v.Set("sensor.finger", "left-thumb")

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Sensor.Finger != "left-thumb" {
		t.Errorf("Finger = %q, want left-thumb", cfg.Sensor.Finger)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	isolate(t)

	writeFile(t, filepath.Join(ProjectConfigDir, ProjectConfigFile), "lockout:\n  cooldown: 10s\n")
	t.Setenv("FINGERLOCK_LOCKOUT_COOLDOWN", "2m")
	t.Setenv("FINGERLOCK_SENSOR_BACKEND", "mock")

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Lockout.Cooldown != 2*time.Minute {
		t.Errorf("Cooldown = %v, want env value 2m", cfg.Lockout.Cooldown)
	}
	if cfg.Sensor.Backend != BackendMock {
		t.Errorf("Backend = %q, want mock", cfg.Sensor.Backend)
	}
}

func TestLoadConfig_InvalidRejected(t *testing.T) {
	isolate(t)

	writeFile(t, filepath.Join(ProjectConfigDir, ProjectConfigFile), "lockout:\n  failed_attempts_before_lockout: 0\n")

	if _, err := LoadConfig(viper.New()); err == nil {
		t.Error("LoadConfig should reject a zero lockout threshold")
	}
}

func TestLoadConfig_DurationParsing(t *testing.T) {
	dir := isolate(t)

	tests := []struct {
		name string
		yaml string
		want time.Duration
	}{
		{"seconds", "lockout:\n  cooldown: 30s", 30 * time.Second},
		{"minutes", "lockout:\n  cooldown: 5m", 5 * time.Minute},
		{"combined", "lockout:\n  cooldown: 1m30s", 90 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			writeFile(t, path, tt.yaml)

			v := viper.New()
			v.Set("config", path)
			cfg, err := LoadConfig(v)
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			if cfg.Lockout.Cooldown != tt.want {
				t.Errorf("Cooldown = %v, want %v", cfg.Lockout.Cooldown, tt.want)
			}
		})
	}
}
