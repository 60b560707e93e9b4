package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/painel-dev/painel/internal/session"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	var serverAlias string
	var verify bool

	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"whoami"},
		Short:   "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), verify, WithServerAlias(serverAlias), WithOutput(cmd.OutOrStdout()))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses selected server if not specified)")
	cmd.Flags().BoolVar(&verify, "verify", false, "Confirm the token with the server")

	return cmd
}

func runStatus(ctx context.Context, verify bool, opts ...Option) error {
	t, err := openTab(opts...)
	if err != nil {
		return err
	}
	defer t.Close()

	fmt.Fprintf(t.out, "Server: %s (%s)\n", t.server.Alias, t.server.URL)

	if !t.session.IsAuthenticated() {
		fmt.Fprintln(t.out, "Status: logged out")
		return nil
	}

	user := t.session.User()
	if user == nil {
		fmt.Fprintln(t.out, "Status: logged in (token claims unavailable)")
	} else {
		fmt.Fprintf(t.out, "Status: logged in as %s\n", user.Username)
		if user.ExpiresAt != nil {
			fmt.Fprintf(t.out, "Expires: %s\n", user.ExpiresAt.Local().Format("2006-01-02 15:04"))
		}
	}

	if !verify {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	me, err := t.api.Me(ctx)
	if err != nil {
		if !t.session.IsAuthenticated() {
			return session.ErrNotAuthenticated
		}
		return fmt.Errorf("failed to verify session: %w", err)
	}
	fmt.Fprintf(t.out, "Verified: %s (active: %t)\n", me.Username, me.IsActive)

	return nil
}
