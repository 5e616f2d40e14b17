package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// GlobalConfigDir is the directory under $XDG_CONFIG_HOME.
	GlobalConfigDir = "fingerlock"
	// GlobalConfigFile is the file name inside GlobalConfigDir.
	GlobalConfigFile = "config.yaml"
	// ProjectConfigDir holds project-local config, state and logs.
	ProjectConfigDir = ".fingerlock"
	// ProjectConfigFile is the file name inside ProjectConfigDir.
	ProjectConfigFile = "config.yaml"

	// EnvPrefix prefixes environment overrides, e.g. FINGERLOCK_LOCKOUT_COOLDOWN.
	EnvPrefix = "FINGERLOCK"
)

// EnvKeyReplacer maps config and flag keys to environment variable suffixes.
var EnvKeyReplacer = strings.NewReplacer("-", "_", ".", "_")

// fileSource is one YAML layer merged over the defaults.
type fileSource struct {
	path     string
	required bool
}

// LoadConfig resolves the configuration. Later sources win:
//  1. Default() values
//  2. $XDG_CONFIG_HOME/fingerlock/config.yaml
//  3. .fingerlock/config.yaml
//  4. the file named by --config, which must exist
//  5. FINGERLOCK_* environment variables and bound flags
//
// The result is validated before it is returned.
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := Default()

	defaults, err := toSettings(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	if err := v.MergeConfigMap(defaults); err != nil {
		return nil, fmt.Errorf("merge defaults: %w", err)
	}

	for _, src := range fileSources(v.GetString("config")) {
		if err := mergeFile(v, src); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileSources lists the config files in merge order.
func fileSources(explicit string) []fileSource {
	var srcs []fileSource
	if dir := userConfigDir(); dir != "" {
		srcs = append(srcs, fileSource{path: filepath.Join(dir, GlobalConfigDir, GlobalConfigFile)})
	}
	srcs = append(srcs, fileSource{path: filepath.Join(ProjectConfigDir, ProjectConfigFile)})
	if explicit != "" {
		srcs = append(srcs, fileSource{path: explicit, required: true})
	}
	return srcs
}

func userConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config")
}

// mergeFile reads one YAML file into a scratch viper and merges its
// settings. Optional files that do not exist are skipped.
func mergeFile(v *viper.Viper, src fileSource) error {
	data, err := os.ReadFile(src.path)
	if err != nil {
		if os.IsNotExist(err) && !src.required {
			return nil
		}
		return fmt.Errorf("config file: %w", err)
	}

	layer := viper.New()
	layer.SetConfigType("yaml")
	if err := layer.ReadConfig(strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("read %s: %w", src.path, err)
	}
	return v.MergeConfigMap(layer.AllSettings())
}

// toSettings flattens cfg into the nested map viper merges, with durations
// written the way they appear in YAML.
func toSettings(cfg *Config) (map[string]any, error) {
	out := make(map[string]any)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  &out,
		DecodeHook: func(from, _ reflect.Type, data any) (any, error) {
			if d, ok := data.(time.Duration); ok && from == reflect.TypeOf(time.Duration(0)) {
				return d.String(), nil
			}
			return data, nil
		},
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	return out, nil
}
