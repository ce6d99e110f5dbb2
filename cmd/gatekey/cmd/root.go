package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "gatekey",
	Short: "GateKey is a client-side credential engine",
	Long: `A client-side authentication engine managing local PIN/biometric factors,
an encrypted credential vault, and provider-backed session login.
Complete documentation is available at https://github.com/jmcleod/gatekey`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the configuration file")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return home + "/.gatekey/config.toml"
}
