package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wosexport/pkg/checkpoint"
	"wosexport/pkg/ui"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show saved export runs",
	Long:  `List the manifests in the log directory with how far each run got.`,
	Args:  cobra.NoArgs,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("log-dir", "", "directory for task logs and manifests")
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, log := loadConfig(changedFlags(cmd))

	manifests, err := checkpoint.NewManager(cfg.Paths.LogDir, log)
	exitOnError("Failed to open manifests", err)
	list, err := manifests.List()
	exitOnError("Failed to list manifests", err)

	if len(list) == 0 {
		ui.PrintInfo("No saved runs", cfg.Paths.LogDir)
		return
	}

	for _, m := range list {
		ranges, err := m.Ranges()
		if err != nil {
			ui.PrintWarning("Unreadable plan for "+m.Query, err)
			continue
		}
		state := ui.Yellow(fmt.Sprintf("%d/%d ranges", m.NextIndex, len(ranges)))
		if m.Done() {
			state = ui.Green("done")
		}
		fmt.Fprintf(ui.Output, "%s %s\n", ui.Cyan(m.Query), state)
		fmt.Fprintf(ui.Output, "  %s\n", ui.Dim(fmt.Sprintf("run %s, %d results, updated %s",
			m.RunID, m.TotalRecords, m.UpdatedAt.Format("2006-01-02 15:04:05"))))
	}
}
