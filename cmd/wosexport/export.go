package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"wosexport/pkg/auth"
	"wosexport/pkg/config"
	"wosexport/pkg/exporter"
	"wosexport/pkg/logger"
	"wosexport/pkg/navigate"
	"wosexport/pkg/pacing"
	"wosexport/pkg/session"
	"wosexport/pkg/ui"
)

var (
	exportResume     bool
	exportStart      int
	exportEnd        int
	exportStartIndex int
	exportRelocate   bool
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <query> [query...]",
	Short: "Export the full records of one or more advanced searches",
	Long: `Log in through the institutional channel, run each advanced search and
export its results as plain text, 500 records per file.

Every range is recorded in a task log next to a resumable manifest. Ranges
that fail after all attempts are retried in re-export passes and listed in
a failure report when the run ends.

Press Ctrl+C to stop; the range in progress is not recorded and --resume
continues from it.`,
	Example: `  # Export everything a journal published
  wosexport export 'SO=(Water Research)'

  # Continue an interrupted run
  wosexport export 'SO=(Water Research)' --resume

  # Export records 5001-10000 only
  wosexport export 'SO=(Water Research)' --start 5001 --end 10000`,
	Args: cobra.MinimumNArgs(1),
	Run:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	f := exportCmd.Flags()
	f.BoolVar(&exportResume, "resume", false, "continue from the saved manifest")
	f.IntVar(&exportStart, "start", 1, "first record to export")
	f.IntVar(&exportEnd, "end", 0, "last record to export (0 means the last result)")
	f.IntVar(&exportStartIndex, "start-index", 0, "skip the first N planned ranges")
	f.BoolVar(&exportRelocate, "relocate", false, "move the finished exports into the archive directory")

	addSessionFlags(exportCmd)
	f.Int("records-per-export", 0, "records per export file")
	f.Int("max-attempts", 0, "attempts per range before it is recorded as failed")
	f.Int("reexport-passes", 0, "extra passes over failed ranges")
}

// addSessionFlags registers the flags that shape the browser session
func addSessionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("channel", "", "institutional channel ("+strings.Join(session.Names(), ", ")+")")
	f.StringP("username", "u", "", "channel account")
	f.String("chrome-path", "", "Chrome executable")
	f.String("profile-dir", "", "Chrome profile directory")
	f.String("download-dir", "", "directory Chrome downloads into")
	f.String("log-dir", "", "directory for task logs and manifests")
	f.Bool("headless", false, "run Chrome without a window")
}

// changedFlags collects the flags the user actually set, so that defaults
// never override the config file
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	for _, name := range []string{"channel", "username", "chrome-path", "profile-dir", "download-dir", "log-dir", "archive-dir"} {
		if cmd.Flags().Changed(name) {
			flags[name], _ = cmd.Flags().GetString(name)
		}
	}
	for _, name := range []string{"records-per-export", "max-attempts", "reexport-passes"} {
		if cmd.Flags().Changed(name) {
			flags[name], _ = cmd.Flags().GetInt(name)
		}
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"], _ = cmd.Flags().GetBool("headless")
	}
	return flags
}

func runExport(cmd *cobra.Command, args []string) {
	cfg, log := loadConfig(changedFlags(cmd))
	notifier := ui.NewNotifier(cfg.Notifications)

	ui.PrintBanner()
	logger.LogComponentStart(log, "export", map[string]interface{}{
		"channel":   cfg.Channel.Name,
		"queries":   len(args),
		"downloads": cfg.Paths.DownloadDir,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := resolveCredentials(cfg, nil, promptPassword)
	exitOnError("Failed to resolve credentials", err)

	sessions, err := session.NewManager(cfg, pacing.New(), log)
	exitOnError("Failed to set up the session", err)

	auth.ShowLoginGuide(ui.Output, sessions.Channel().Name)

	sess, err := sessions.Open(ctx, creds)
	if err != nil {
		notifier.SendError("Login failed", err.Error())
		exitOnError("Failed to log in", err)
	}
	defer sess.Close()

	if err := sess.GotoDatabase(ctx, 3); err != nil {
		sess.Close()
		notifier.SendError("Database unreachable", err.Error())
		exitOnError("Failed to reach the database", err)
	}

	nav := navigate.New(sess.Actor(), cfg.Timeouts, log)
	if err := nav.SwitchEnglish(ctx); err != nil {
		ui.PrintWarning("Could not switch the interface to English", err)
	}

	progress := ui.NewProgressDisplay(nil, verbose)
	exp, err := exporter.New(sess.Actor(), nav, cfg,
		exporter.WithLogger(log),
		exporter.WithProgress(progress),
	)
	if err != nil {
		sess.Close()
		exitOnError("Failed to set up the exporter", err)
	}

	failed := false
	for _, q := range args {
		job := exporter.Job{
			Query:      q,
			Start:      exportStart,
			End:        exportEnd,
			StartIndex: exportStartIndex,
			Resume:     exportResume,
		}
		ui.PrintInfo("Query", q)

		summary, err := exp.Run(ctx, job)
		ui.PrintSummary(nil, summary)

		if errors.Is(err, context.Canceled) {
			ui.PrintWarning("Interrupted; run again with --resume to continue")
			logger.LogComponentStop(log, "export", "interrupted")
			sess.Close()
			os.Exit(130)
		}
		if err != nil {
			failed = true
			ui.PrintError("Export failed", err)
			notifier.SendError("Export failed", fmt.Sprintf("%s: %v", q, err))
			continue
		}

		if len(summary.Missing) > 0 {
			failed = true
			notifier.SendError("Export incomplete",
				fmt.Sprintf("%s: %d ranges missing", q, len(summary.Missing)))
		} else {
			notifier.SendSuccess("Export complete",
				fmt.Sprintf("%s: %d records in %d files", q, summary.Total, summary.Succeeded))
		}

		if exportRelocate {
			relocateQuery(cfg, log, q, false)
		}
	}

	logger.LogComponentStop(log, "export", "finished")
	if failed {
		sess.Close()
		os.Exit(1)
	}
}

// accountSource is the part of auth.Manager credential resolution needs
type accountSource interface {
	Retrieve(channel, username string) (*auth.Account, error)
	Default(channel string) (*auth.Account, error)
}

// resolveCredentials picks the account to log in with: a password in the
// configuration, then a stored account, then a prompt. With no username at
// all the operator fills the login form by hand.
func resolveCredentials(cfg *config.Config, accounts accountSource, prompt func(string) (string, error)) (session.Credentials, error) {
	ch := cfg.Channel
	if ch.Username != "" && ch.Password != "" {
		return session.Credentials{Username: ch.Username, Password: ch.Password}, nil
	}

	if accounts == nil {
		if m, err := auth.NewManager(""); err == nil {
			accounts = m
		}
	}
	if accounts != nil {
		var account *auth.Account
		var err error
		if ch.Username != "" {
			account, err = accounts.Retrieve(ch.Name, ch.Username)
		} else {
			account, err = accounts.Default(ch.Name)
		}
		if err == nil {
			return session.Credentials{Username: account.Username, Password: account.Password}, nil
		}
		if !errors.Is(err, auth.ErrCredentialsNotFound) {
			return session.Credentials{}, err
		}
	}

	if ch.Username == "" {
		return session.Credentials{}, nil
	}
	password, err := prompt(fmt.Sprintf("Password for %s on %s: ", ch.Username, ch.Name))
	if err != nil {
		return session.Credentials{}, err
	}
	return session.Credentials{Username: ch.Username, Password: password}, nil
}

func promptPassword(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	defer fmt.Fprintln(os.Stderr)
	return readPassword()
}

// readPassword reads a line without echo when stdin is a terminal
func readPassword() (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		var line string
		_, err := fmt.Fscanln(os.Stdin, &line)
		return strings.TrimSpace(line), err
	}
	password, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(password)), nil
}
