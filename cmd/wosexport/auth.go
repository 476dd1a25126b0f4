package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"wosexport/pkg/auth"
	"wosexport/pkg/session"
	"wosexport/pkg/ui"
)

var authChannel string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage institutional channel accounts",
	Long: `Manage the accounts used to log in through institutional channels.

Accounts are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (WOSEXPORT_USERNAME, WOSEXPORT_PASSWORD)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store a channel account securely",
	Example: `  # Interactive login
  wosexport auth login

  # Store an account for a specific channel
  wosexport auth login alice --channel sunshine`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove a stored account",
	Args:  cobra.ExactArgs(1),
	Run:   runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Long:  `List stored accounts with masked passwords.`,
	Args:  cobra.NoArgs,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.PersistentFlags().StringVar(&authChannel, "channel", "sunshine",
		"institutional channel ("+strings.Join(session.Names(), ", ")+")")
}

func credentialManager() *auth.Manager {
	manager, err := auth.NewManager("")
	exitOnError("Failed to initialize credential manager", err)
	return manager
}

func runLogin(cmd *cobra.Command, args []string) {
	if _, err := session.Lookup(authChannel); err != nil {
		exitOnError("Unknown channel", err)
	}
	manager := credentialManager()
	reader := bufio.NewReader(os.Stdin)

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Fprint(os.Stderr, "Username: ")
		input, err := reader.ReadString('\n')
		exitOnError("Failed to read username", err)
		username = strings.TrimSpace(input)
	}
	if username == "" {
		ui.PrintError("Username is required")
		os.Exit(1)
	}

	if existing, _ := manager.Retrieve(authChannel, username); existing != nil {
		fmt.Fprintf(os.Stderr, "Account '%s' already exists on %s. Update it? (y/N): ", username, authChannel)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	password, err := promptPassword("Password (hidden): ")
	exitOnError("Failed to read password", err)
	if password == "" {
		ui.PrintError("Password is required")
		os.Exit(1)
	}

	err = manager.Store(&auth.Account{Channel: authChannel, Username: username, Password: password})
	exitOnError("Failed to store credentials", err)

	ui.PrintSuccess(fmt.Sprintf("Account saved: %s on %s", username, authChannel))
	ui.PrintDim("The captcha still has to be solved in the browser at every login.")
}

func runLogout(cmd *cobra.Command, args []string) {
	err := credentialManager().Delete(authChannel, args[0])
	exitOnError("Failed to remove account", err)
	ui.PrintSuccess("Account removed: " + args[0])
}

func runList(cmd *cobra.Command, args []string) {
	accounts, err := credentialManager().List()
	exitOnError("Failed to list accounts", err)

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'wosexport auth login' to add one")
		return
	}

	for i, account := range accounts {
		masked := auth.SanitizeAccount(account)
		fmt.Fprintf(ui.Output, "%d. %s on %s\n", i+1, ui.Yellow(masked.Username), ui.Cyan(masked.Channel))
		fmt.Fprintf(ui.Output, "   Password: %s\n", masked.Password)
		if !masked.LastModified.IsZero() {
			fmt.Fprintf(ui.Output, "   Last Modified: %s\n", masked.LastModified.Format("2006-01-02 15:04:05"))
		}
	}
}
