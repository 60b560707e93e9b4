package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// errLoginFailed covers wrong credentials and an unreachable server alike
var errLoginFailed = errors.New("login failed: invalid username or password, or server unreachable")

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var username, password, serverAlias string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with a painel server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), username, password,
				WithServerAlias(serverAlias),
				WithOutput(cmd.OutOrStdout()),
			)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username (or set PAINEL_USERNAME)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set PAINEL_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses selected server if not specified)")

	return cmd
}

func runLogin(ctx context.Context, username, password string, opts ...Option) error {
	// Environment variables are useful for CI/CD
	if username == "" {
		username = os.Getenv("PAINEL_USERNAME")
	}
	if password == "" {
		password = os.Getenv("PAINEL_PASSWORD")
	}

	if username == "" {
		return fmt.Errorf("username is required (use --username flag or PAINEL_USERNAME env var)")
	}

	if password == "" {
		if !term.IsTerminal(int(syscall.Stdin)) {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or PAINEL_PASSWORD env var)")
		}
		fmt.Print("Password: ")
		bytePassword, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(bytePassword)
		fmt.Println()
	}

	t, err := openTab(opts...)
	if err != nil {
		return err
	}
	defer t.Close()

	fmt.Fprintf(t.out, "Logging in to %s (%s)...\n", t.server.Alias, t.server.URL)

	if ctx == nil {
		ctx = context.Background()
	}
	if !t.session.Login(ctx, username, password) {
		return errLoginFailed
	}

	fmt.Fprintln(t.out, "✓ Login successful!")
	if user := t.session.User(); user != nil {
		fmt.Fprintf(t.out, "  User: %s\n", user.Username)
		if user.ExpiresAt != nil {
			fmt.Fprintf(t.out, "  Expires: %s\n", user.ExpiresAt.Local().Format("2006-01-02 15:04"))
		}
	}

	return nil
}
