package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"wosexport/pkg/config"
	"wosexport/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage wosexport configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (WOSEXPORT_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write the default configuration to ` + config.DefaultPath() + `,
or to the path given with --config.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. The channel password
is masked.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Run:   runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists", path)
		fmt.Fprintf(ui.Output, "\nTo overwrite, first remove the existing file:\n  rm %s\n", path)
		os.Exit(1)
	}

	exitOnError("Failed to write configuration", config.DefaultConfig().Save(path))
	ui.PrintSuccess("Configuration written to " + path)
	ui.PrintDim("Store the channel password with 'wosexport auth login' rather than in this file.")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, _ := loadConfig(nil)

	data, err := yaml.Marshal(cfg.Masked())
	exitOnError("Failed to encode configuration", err)
	fmt.Fprint(ui.Output, string(data))
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	cfg := config.DefaultConfig()
	exitOnError("Failed to read configuration", cfg.LoadFromFile(configFile))
	exitOnError("Failed to read environment", cfg.LoadFromEnv())

	if err := cfg.Validate(); err != nil {
		ui.PrintError("Configuration is invalid", err)
		os.Exit(1)
	}
	ui.PrintSuccess("Configuration is valid")
}
