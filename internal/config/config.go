// Package config provides configuration management for cardkeep using Viper.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/thoreinstein/cardkeep/internal/paths"
)

// SupportedVersion is the config schema version this build understands.
const SupportedVersion = 1

// Config represents the top-level configuration structure.
type Config struct {
	Version            int    `mapstructure:"version" yaml:"version"`
	DestinationRoot    string `mapstructure:"destination_root" yaml:"destination_root"`
	PreserveTimestamps bool   `mapstructure:"preserve_timestamps" yaml:"preserve_timestamps"`
}

// Init initializes Viper with default configuration.
// Call this once at application startup before accessing config values.
// Calling it again discards any previously loaded state.
func Init() {
	viper.Reset()

	// Config file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Search path: CARDKEEP_CONFIG_DIR overrides the user config directory.
	if dir := os.Getenv("CARDKEEP_CONFIG_DIR"); dir != "" {
		viper.AddConfigPath(dir)
	} else {
		viper.AddConfigPath(paths.ConfigDir())
	}

	// Environment variable support
	viper.SetEnvPrefix("CARDKEEP")
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("version", SupportedVersion)
	viper.SetDefault("destination_root", paths.DefaultDestinationRoot())
	viper.SetDefault("preserve_timestamps", true)
}

// Load reads the configuration file.
// If path is provided, it reads from that specific file.
// If path is empty, it searches in the default locations.
// Returns the loaded configuration or default values if no file is found (when path is empty).
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		// If config file not found...
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// If user specified a path, this is an error
			if path != "" {
				return nil, errors.Wrapf(err, "config file not found at %s", path)
			}
			// Otherwise (implicit load), it's fine to use defaults
		} else {
			// Real read error (parsing, permissions, etc)
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}

	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}

	return &cfg, nil
}

// ResolvedDestinationRoot returns DestinationRoot with a leading tilde
// expanded to the user's home directory.
func (c *Config) ResolvedDestinationRoot() (string, error) {
	return paths.ExpandHome(c.DestinationRoot)
}

// FileUsed returns the path of the config file read by Load, or an
// empty string when running on defaults.
func FileUsed() string {
	return viper.ConfigFileUsed()
}
