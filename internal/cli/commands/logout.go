package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session on this machine and in every open painel process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(WithServerAlias(serverAlias), WithOutput(cmd.OutOrStdout()))
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses selected server if not specified)")

	return cmd
}

func runLogout(opts ...Option) error {
	t, err := openTab(opts...)
	if err != nil {
		return err
	}
	defer t.Close()

	wasAuthenticated := t.session.IsAuthenticated()
	t.session.Logout(true)

	if wasAuthenticated {
		fmt.Fprintf(t.out, "✓ Logged out from %s\n", t.server.Alias)
	} else {
		fmt.Fprintf(t.out, "Not logged in to %s\n", t.server.Alias)
	}
	return nil
}
