package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wosexport/pkg/plan"
	"wosexport/pkg/ui"
)

var (
	planTotal int
	planStart int
	planEnd   int
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the export ranges for a result count",
	Long: `Print the ranges an export would request for a search with the given
number of results, without opening a browser.`,
	Example: `  wosexport plan --total 12345
  wosexport plan --total 12345 --start 5001 --end 8000`,
	Args: cobra.NoArgs,
	Run:  runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().IntVar(&planTotal, "total", 0, "number of search results")
	planCmd.Flags().IntVar(&planStart, "start", 1, "first record")
	planCmd.Flags().IntVar(&planEnd, "end", 0, "last record (0 means the last result)")
	planCmd.Flags().Int("records-per-export", 0, "records per export file")
	_ = planCmd.MarkFlagRequired("total")
}

func runPlan(cmd *cobra.Command, args []string) {
	cfg, _ := loadConfig(changedFlags(cmd))

	ranges, err := plan.Window(planStart, planEnd, planTotal, cfg.Export.RecordsPerExport)
	exitOnError("Invalid range", err)

	ui.PrintInfo("Results", fmt.Sprint(planTotal))
	ui.PrintInfo("Ranges", fmt.Sprintf("%d of up to %d records", len(ranges), cfg.Export.RecordsPerExport))
	for i, r := range ranges {
		fmt.Fprintf(ui.Output, "  %s %s\n", ui.Dim(fmt.Sprintf("%4d", i)), r)
	}
	ui.PrintDim(fmt.Sprintf("%d records in total", plan.Records(ranges)))
}
