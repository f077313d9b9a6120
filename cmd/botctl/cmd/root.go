package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	format  string

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

var rootCmd = &cobra.Command{
	Use:   "botctl",
	Short: "botctl - operate the WhatsApp commerce bot",
	Long: titleStyle.Render(`
╔═══════════════════════════════════════════════════════════╗
║  botctl - Admin console for the WhatsApp commerce bot     ║
╚═══════════════════════════════════════════════════════════╝
`) + `
Review gift card trades, settle wallet funding and look up customers
from your terminal.

Get started:
  botctl auth login              Login with your admin account
  botctl review pending          List gift cards awaiting review
  botctl wallet credit           Credit a customer's wallet
  botctl --help                  Show all commands`,
	Version: "1.0.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.botctl/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "table", "output format: table, json")

	viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".botctl"), nil
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
			os.Exit(1)
		}

		if err := os.MkdirAll(dir, 0700); err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Error creating config dir: ")+err.Error())
		}

		viper.AddConfigPath(dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetDefault("api_url", "http://localhost:8080")
	viper.SetDefault("format", "table")
	viper.SetDefault("currency_symbol", "₦")

	viper.SetEnvPrefix("BOTCTL")
	viper.AutomaticEnv()

	// A missing config file is fine; defaults apply.
	_ = viper.ReadInConfig()
}

func getFormat() string {
	if format != "" && format != "table" {
		return format
	}
	return viper.GetString("format")
}

func currency() string {
	return viper.GetString("currency_symbol")
}
