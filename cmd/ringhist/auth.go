package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ringhist/pkg/auth"
	"ringhist/pkg/config"
	"ringhist/pkg/logger"
	"ringhist/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Ring account tokens",
	Long: `Manage stored Ring account tokens securely.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (RINGHIST_REFRESH_TOKEN)

Never share your refresh token or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Sign in to Ring and store the refresh token",
	Long: `Sign in with your Ring account credentials and store the resulting
refresh token securely. Your password is used once for the OAuth
exchange and never stored.

Accounts with two-factor authentication receive a verification code
during login; enter it when prompted.`,
	Example: `  # Interactive login
  ringhist auth login

  # Login with a known email
  ringhist auth login user@example.com`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [email]",
	Short: "Remove stored tokens",
	Long: `Remove stored Ring tokens.

If no email is provided, all stored accounts are removed.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored accounts",
	Long:  `List stored Ring accounts with sanitized token information.`,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize token manager", err.Error())
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)

	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		fmt.Print("Ring account email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read email", err.Error())
			os.Exit(1)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		ui.PrintError("Email is required")
		os.Exit(1)
	}

	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		ui.PrintError("Failed to read password", err.Error())
		os.Exit(1)
	}
	password := string(passwordBytes)

	authenticator := auth.NewAuthenticator(cfg.Ring.UserAgent, logger.GetLogger())
	ctx := context.Background()

	token, err := authenticator.Login(ctx, email, password, "")

	var tfa *auth.TwoFactorRequiredError
	if errors.As(err, &tfa) {
		fmt.Printf("%s: ", tfa.Prompt)
		line, readErr := reader.ReadString('\n')
		if readErr != nil {
			ui.PrintError("Failed to read verification code", readErr.Error())
			os.Exit(1)
		}
		code := strings.TrimSpace(line)

		token, err = authenticator.Login(ctx, email, password, code)
	}

	if err != nil {
		ui.PrintError("Login failed", err.Error())
		os.Exit(1)
	}

	if err := manager.Store(token); err != nil {
		ui.PrintError("Failed to store token", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Signed in as " + email)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize token manager", err.Error())
		os.Exit(1)
	}

	if len(args) > 0 {
		if err := manager.Delete(args[0]); err != nil {
			ui.PrintError("Failed to remove token", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("Removed token for " + args[0])
		return
	}

	if err := manager.DeleteAll(); err != nil {
		ui.PrintError("Failed to remove tokens", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("All stored tokens removed")
}

func runStatus(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize token manager", err.Error())
		os.Exit(1)
	}

	tokens, err := manager.List()
	if err != nil || len(tokens) == 0 {
		ui.PrintWarning("No stored accounts")
		auth.ShowLoginGuide()
		return
	}

	for _, token := range tokens {
		masked := auth.SanitizeToken(token)
		ui.PrintInfo(masked.Email, fmt.Sprintf("refresh token %s (updated %s)",
			masked.RefreshToken, token.LastModified.Format("2006-01-02 15:04")))
	}
}
