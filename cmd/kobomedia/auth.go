package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"kobomedia/pkg/auth"
	"kobomedia/pkg/kobo"
	"kobomedia/pkg/logger"
	"kobomedia/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage KoboToolbox API tokens",
	Long: `Manage stored KoboToolbox API tokens, one per server.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation

A token given in kobo.json, KOBOMEDIA_TOKEN or --token takes precedence.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [server]",
	Short: "Store an API token securely",
	Long: `Store the API token for a server. The server defaults to the configured
kf_url. The token is checked against the server before it is saved unless
--no-verify is given.`,
	Example: `  kobomedia auth login
  kobomedia auth login https://kf.kobotoolbox.org`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [server]",
	Short: "Remove a stored token",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored tokens",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	loginCmd.Flags().Bool("no-verify", false, "store the token without checking it")
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

// stdin is shared by every prompt
var stdin = bufio.NewReader(os.Stdin)

// serverArg returns the server named on the command line or the configured one
func serverArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return auth.NormalizeServer(args[0]), nil
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	return auth.NormalizeServer(cfg.Kobo.KFURL), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	server, err := serverArg(cmd, args)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	auth.ShowTokenGuide(ui.Out, server)

	if existing, _ := manager.Retrieve(server); existing != nil {
		fmt.Fprintf(ui.Out, "A token for %s is already stored. Replace it? (y/N): ", server)
		input, _ := stdin.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Fprint(ui.Out, "API token (hidden): ")
	token, err := readPassword()
	if err != nil {
		ui.PrintError("Failed to read token", err.Error())
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		ui.PrintError("Token is required")
		return errors.New("empty token")
	}

	if noVerify, _ := cmd.Flags().GetBool("no-verify"); !noVerify {
		client := kobo.NewClient(token, 30*time.Second, logger.GetLogger())
		count, err := client.Verify(cmd.Context(), server)
		if err != nil {
			ui.PrintError("Token was rejected", err.Error())
			return err
		}
		ui.PrintInfo("Token accepted, assets visible", fmt.Sprint(count))
	}

	if err := manager.Store(server, token); err != nil {
		ui.PrintError("Failed to store token", err.Error())
		return err
	}

	ui.PrintSuccess("Token stored for " + server)
	fmt.Fprintln(ui.Out, "\nDownload the media of an asset with:")
	fmt.Fprintln(ui.Out, "  $ kobomedia <asset_uid>")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	server, err := serverArg(cmd, args)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	if err := manager.Delete(server); err != nil {
		ui.PrintError("Failed to remove token", err.Error())
		return err
	}
	ui.PrintSuccess("Token removed for " + server)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return err
	}

	creds, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list tokens", err.Error())
		return err
	}
	if len(creds) == 0 {
		ui.PrintInfo("No stored tokens", "use 'kobomedia auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Tokens")
	for _, cred := range creds {
		fmt.Fprintf(ui.Out, "  %s  %s  (saved %s)\n",
			cred.Server, auth.MaskToken(cred.Token), cred.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(ui.Out)
		if err == nil {
			return string(secret), nil
		}
	}

	// Fallback to regular input
	input, err := stdin.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
