package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	configFileBaseName = ".karva"
	configFileType     = "toml"
	envPrefix          = "KARVA"

	// envConfigFile overrides the config file path, per spec.md §6.
	envConfigFile = "KARVA_CONFIG_FILE"
	// envSnapshotUpdate, when "1" or "true", behaves like --snapshot-update.
	envSnapshotUpdate = "KARVA_SNAPSHOT_UPDATE"
)

// Load builds a Config by layering, lowest precedence first: built-in
// defaults, a config file (explicit path, or discovered by name in the
// current directory and the user's home directory), and environment
// variables. explicitPath, if non-empty, corresponds to --config-file and
// takes precedence over KARVA_CONFIG_FILE.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configFileType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := explicitPath
	if path == "" {
		path = os.Getenv(envConfigFile)
	}

	switch {
	case path != "":
		v.SetConfigFile(path)
	default:
		v.SetConfigName(configFileBaseName)
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	cfg := Default()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	cfg.ConfigFile = v.ConfigFileUsed()

	if update := os.Getenv(envSnapshotUpdate); update == "1" || strings.EqualFold(update, "true") {
		cfg.SnapshotUpdate = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults seeds v with Default()'s values so that an absent config
// file and absent environment variables still unmarshal to a fully-formed
// Config.
func applyDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("test_prefix", d.TestPrefix)
	v.SetDefault("output_format", string(d.OutputFormat))
	v.SetDefault("color", string(d.Color))
	v.SetDefault("capture_output", d.CaptureOutput)
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("no_ignore", false)
	v.SetDefault("fail_fast", false)
	v.SetDefault("retries", 0)
	v.SetDefault("no_progress", false)
	v.SetDefault("try_import_fixtures", false)
	v.SetDefault("snapshot_update", false)
	v.SetDefault("workers", 0)
	v.SetDefault("no_parallel", false)
	v.SetDefault("no_cache", false)
	v.SetDefault("dry_run", false)
	v.SetDefault("watch", false)
}
