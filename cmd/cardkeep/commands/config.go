package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/cardkeep/internal/errors"
	"github.com/thoreinstein/cardkeep/internal/paths"
	"github.com/thoreinstein/cardkeep/pkg/fileutil"
)

var configInitForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false,
		"overwrite an existing config file")
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage cardkeep configuration",
	Long: `Manage cardkeep configuration stored in the user config directory.

Without a subcommand, lists all configuration values.`,
	Example: `  # List all configuration
  cardkeep config

  # Get a specific value
  cardkeep config get destination_root

  # Write a fresh config file with defaults
  cardkeep config init

See Also: cardkeep doctor`,
	RunE: runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long:  `Get a single configuration value by key.`,
	Example: `  # Get the destination root
  cardkeep config get destination_root

  # Get timestamp preservation
  cardkeep config get preserve_timestamps

See Also: cardkeep config list`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration",
	Long:  `List all configuration values in YAML format.`,
	Example: `  # List all configuration
  cardkeep config list

See Also: cardkeep config get`,
	RunE: runConfigList,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	Long: `Create the cardkeep config file populated with default values.

Fails if a config file already exists unless --force is given.`,
	Example: `  # Create the config file
  cardkeep config init

  # Replace a broken config file
  cardkeep config init --force

See Also: cardkeep config list, cardkeep doctor`,
	RunE: runConfigInit,
}

func runConfigGet(c *cobra.Command, args []string) error {
	return runConfigGetWithWriter(c.OutOrStdout(), args[0])
}

func runConfigGetWithWriter(w io.Writer, key string) error {
	if !viper.IsSet(key) {
		fmt.Fprintln(w, "not set")
		return nil
	}
	fmt.Fprintln(w, viper.GetString(key))
	return nil
}

func runConfigList(c *cobra.Command, _ []string) error {
	return runConfigListWithWriter(c.OutOrStdout())
}

func runConfigListWithWriter(w io.Writer) error {
	data, err := yaml.Marshal(currentConfigValues())
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	fmt.Fprint(w, string(data))
	return nil
}

func runConfigInit(c *cobra.Command, _ []string) error {
	return runConfigInitWithWriter(c.OutOrStdout())
}

func runConfigInitWithWriter(w io.Writer) error {
	configPath := filepath.Join(configDirPath(), "config.yaml")

	if _, err := os.Stat(configPath); err == nil && !configInitForce {
		return errors.NewUserError(
			errors.Newf("config file already exists at %s", configPath),
			"use --force to overwrite it")
	}

	if err := paths.EnsureDir(filepath.Dir(configPath), 0o755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	if err := fileutil.AtomicWriteYAML(configPath, currentConfigValues()); err != nil {
		return errors.Wrap(err, "writing config file")
	}

	fmt.Fprintf(w, "Wrote %s\n", configPath)
	return nil
}

// currentConfigValues snapshots the effective configuration, which is
// the defaults merged with any loaded file and environment overrides.
func currentConfigValues() map[string]any {
	return map[string]any{
		"version":             viper.GetInt("version"),
		"destination_root":    viper.GetString("destination_root"),
		"preserve_timestamps": viper.GetBool("preserve_timestamps"),
	}
}

// configDirPath mirrors the search directory used by config.Init.
func configDirPath() string {
	if dir := os.Getenv("CARDKEEP_CONFIG_DIR"); dir != "" {
		return dir
	}
	return paths.ConfigDir()
}
