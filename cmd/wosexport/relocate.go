package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wosexport/pkg/archive"
	"wosexport/pkg/config"
	"wosexport/pkg/logger"
	"wosexport/pkg/query"
	"wosexport/pkg/ui"
)

var relocateDryRun bool

// relocateCmd represents the relocate command
var relocateCmd = &cobra.Command{
	Use:   "relocate <journal | query>",
	Short: "Move finished exports of a journal into the archive",
	Long: `Move every export whose SO tag names the journal, together with the task
logs, manifests and failure reports of its queries, into a folder of the
archive directory named after the journal and its ISSN.

The argument is either a journal name or an advanced search query with an
SO=(...) clause.`,
	Example: `  wosexport relocate 'Water Research'
  wosexport relocate 'SO=(Water Research)' --dry-run`,
	Args: cobra.ExactArgs(1),
	Run:  runRelocate,
}

func init() {
	rootCmd.AddCommand(relocateCmd)
	f := relocateCmd.Flags()
	f.BoolVar(&relocateDryRun, "dry-run", false, "list the moves without making them")
	f.String("download-dir", "", "directory holding the exports")
	f.String("log-dir", "", "directory holding task logs and manifests")
	f.String("archive-dir", "", "directory receiving the journal folders")
}

func runRelocate(cmd *cobra.Command, args []string) {
	cfg, log := loadConfig(changedFlags(cmd))
	if !relocateQuery(cfg, log, args[0], relocateDryRun) {
		os.Exit(1)
	}
}

// relocateQuery moves the files of the journal named by arg, which may be a
// bare journal name or a query with a source clause
func relocateQuery(cfg *config.Config, log logger.Logger, arg string, dryRun bool) bool {
	journal := query.ExtractSource(arg)
	if journal == "" {
		journal = arg
	}
	if cfg.Paths.ArchiveDir == "" {
		ui.PrintError("No archive directory configured", "set paths.archive_dir or --archive-dir")
		return false
	}

	res, err := archive.NewRelocator(log).Relocate(archive.Request{
		Journal: journal,
		Exports: []string{cfg.Paths.DownloadDir},
		Logs:    []string{cfg.Paths.LogDir},
		Target:  cfg.Paths.ArchiveDir,
		DryRun:  dryRun,
	})
	if err != nil {
		ui.PrintError("Relocation failed", err)
		return false
	}

	if res.Moved == 0 {
		ui.PrintWarning("Nothing to move for " + journal)
		return true
	}
	for _, entry := range res.Entries {
		ui.PrintDim("  " + entry)
	}
	verb := "Moved"
	if dryRun {
		verb = "Would move"
	}
	ui.PrintSuccess(fmt.Sprintf("%s %d files (%d exports, %d logs) to %s",
		verb, res.Moved, res.ExportsFound, res.LogsFound, res.FolderPath))
	if res.LogPath != "" {
		ui.PrintInfo("Migration log", res.LogPath)
	}
	return true
}
