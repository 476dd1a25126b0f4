package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"wosexport/pkg/checkpoint"
	"wosexport/pkg/failures"
	"wosexport/pkg/tasklog"
	"wosexport/pkg/ui"
)

var failuresWrite bool

// failuresCmd represents the failures command
var failuresCmd = &cobra.Command{
	Use:   "failures <query>",
	Short: "List the ranges of a query that never exported",
	Long: `Read every task log in the log directory and report the ranges of the
query that have no successful export. When a manifest exists the whole plan
is checked; otherwise only recorded failures are listed.`,
	Example: `  wosexport failures 'SO=(Water Research)'
  wosexport failures 'SO=(Water Research)' --write`,
	Args: cobra.ExactArgs(1),
	Run:  runFailures,
}

func init() {
	rootCmd.AddCommand(failuresCmd)
	failuresCmd.Flags().BoolVar(&failuresWrite, "write", false, "save the report next to the task logs")
	failuresCmd.Flags().String("log-dir", "", "directory for task logs and manifests")
}

func runFailures(cmd *cobra.Command, args []string) {
	cfg, log := loadConfig(changedFlags(cmd))

	store, err := tasklog.NewStore(cfg.Paths.LogDir, cfg.Export.LogPrefix, log)
	exitOnError("Failed to open task logs", err)
	manifests, err := checkpoint.NewManager(cfg.Paths.LogDir, log)
	exitOnError("Failed to open manifests", err)

	report, err := failures.NewAggregator(store, manifests, log).Aggregate(args[0])
	exitOnError("Failed to aggregate failures", err)

	ui.PrintInfo("Query", report.Query)
	ui.PrintInfo("Source", string(report.Source))
	if report.Planned > 0 {
		ui.PrintInfo("Exported", fmt.Sprintf("%d of %d ranges", report.Succeeded, report.Planned))
	}

	if report.Complete() {
		ui.PrintSuccess("No missing ranges")
	} else {
		names := make([]string, len(report.Missing))
		for i, r := range report.Missing {
			names[i] = r.String()
		}
		ui.PrintWarning(fmt.Sprintf("%d missing ranges", len(report.Missing)), strings.Join(names, ", "))
	}

	if failuresWrite {
		path, err := failures.WriteReport(cfg.Paths.LogDir, report)
		exitOnError("Failed to write report", err)
		ui.PrintInfo("Report", path)
	}
}
