package admin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/painel-dev/painel/internal/catalog"
)

func newCreateUserCmd(e *env) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "create-user <username>",
		Short: "Create a dashboard account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("PAINEL_ADMIN_PASSWORD")
			}
			if password == "" {
				p, err := promptPassword()
				if err != nil {
					return err
				}
				password = p
			}
			return runCreateUser(cmd.Context(), e, args[0], password)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password (or set PAINEL_ADMIN_PASSWORD, will prompt if not provided)")

	return cmd
}

func newDeactivateUserCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate-user <username>",
		Short: "Disable an account; its tokens stop working immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeactivateUser(cmd.Context(), e, args[0])
		},
	}
}

func promptPassword() (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or PAINEL_ADMIN_PASSWORD env var)")
	}

	fmt.Print("Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Print("Confirm password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}

func runCreateUser(ctx context.Context, e *env, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}

	user, err := e.catalog().CreateUser(ctx, username, password)
	if err != nil {
		if errors.Is(err, catalog.ErrUserExists) {
			return fmt.Errorf("user '%s' already exists", username)
		}
		return err
	}

	fmt.Fprintf(e.out, "✓ User '%s' created (id %s)\n", user.Username, user.ID)
	return nil
}

func runDeactivateUser(ctx context.Context, e *env, username string) error {
	if err := e.catalog().SetUserActive(ctx, username, false); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("user '%s' not found", username)
		}
		return err
	}

	fmt.Fprintf(e.out, "✓ User '%s' deactivated\n", username)
	return nil
}
