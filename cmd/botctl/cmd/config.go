package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Rohianon/chatcommerce/cmd/botctl/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
	Long:  "View and modify CLI configuration.",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Available keys:
  api_url          - Bot service URL (default: http://localhost:8080)
  format           - Default output format: table, json (default: table)
  currency_symbol  - Symbol used when printing amounts (default: ₦)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	RunE:  runConfigPath,
}

var configKeys = []string{"api_url", "format", "currency_symbol"}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	settings := make(map[string]any, len(configKeys))
	pairs := make([][]string, 0, len(configKeys))
	for _, key := range configKeys {
		settings[key] = viper.GetString(key)
		pairs = append(pairs, []string{key, viper.GetString(key)})
	}

	if getFormat() == "json" {
		return output.JSON(settings)
	}

	output.Header("Configuration")
	fmt.Println()
	output.KeyValue(pairs)

	if viper.ConfigFileUsed() != "" {
		fmt.Println()
		output.Info("Config file: " + viper.ConfigFileUsed())
	}

	return nil
}

// validateSetting rejects unknown keys and bad values before they reach disk.
func validateSetting(key, value string) error {
	known := false
	for _, k := range configKeys {
		if k == key {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown config key: %s", key)
	}
	if key == "format" && value != "table" && value != "json" {
		return fmt.Errorf("format must be 'table' or 'json'")
	}
	if key == "api_url" && value == "" {
		return fmt.Errorf("api_url cannot be empty")
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	if err := validateSetting(key, value); err != nil {
		output.Error(err.Error())
		output.Info("Valid keys: api_url, format, currency_symbol")
		return nil
	}

	viper.Set(key, value)

	dir, err := configDir()
	if err != nil {
		output.Error("Could not find home directory: " + err.Error())
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		output.Error("Could not create config directory: " + err.Error())
		return nil
	}

	if err := viper.WriteConfigAs(filepath.Join(dir, "config.yaml")); err != nil {
		output.Error("Could not save config: " + err.Error())
		return nil
	}

	output.Success(fmt.Sprintf("Set %s = %s", key, value))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	dir, err := configDir()
	if err != nil {
		output.Error("Could not find home directory: " + err.Error())
		return nil
	}

	configFile := filepath.Join(dir, "config.yaml")

	if getFormat() == "json" {
		return output.JSON(map[string]string{
			"config_file": configFile,
			"config_dir":  dir,
		})
	}

	fmt.Println(configFile)
	return nil
}
