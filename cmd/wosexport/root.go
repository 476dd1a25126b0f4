package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"wosexport/pkg/config"
	"wosexport/pkg/logger"
	"wosexport/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	logFile       string
	notifications bool
	quiet         bool
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wosexport",
	Short: "Export Web of Science search results in 500-record batches",
	Long: `wosexport drives a real Chrome window through an institutional login and
exports the full records of an advanced search, 500 records at a time.

Features:
  - Human-paced clicks, typing and scrolling
  - Institutional channel login with a manually solved captcha
  - Range planning, per-range task logs and resumable runs
  - Failure reports for ranges that never exported
  - Relocation of finished exports into per-journal folders`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.Output = io.Discard
		}
		if verbose && !cmd.Flags().Changed("log-level") {
			logLevel = "debug"
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", true, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug logs")

	rootCmd.SetVersionTemplate(`wosexport {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags returns the persistent flags as config overrides
func globalFlags() map[string]interface{} {
	return map[string]interface{}{
		"log-level": logLevel,
		"log-file":  logFile,
	}
}

// loadConfig merges the config file, the environment and flags, then sets
// up the global logger
func loadConfig(flags map[string]interface{}) (*config.Config, logger.Logger) {
	merged := globalFlags()
	for k, v := range flags {
		merged[k] = v
	}

	cfg, err := config.Load(configFile, merged)
	if err != nil {
		ui.PrintError("Failed to load configuration", err)
		os.Exit(1)
	}
	if !notifications {
		cfg.Notifications.Enabled = false
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err)
		os.Exit(1)
	}
	return cfg, logger.GetLogger()
}

// exitOnError prints msg with err and exits when err is not nil
func exitOnError(msg string, err error) {
	if err == nil {
		return
	}
	ui.PrintError(msg, err)
	os.Exit(1)
}
