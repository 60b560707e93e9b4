package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/painel-dev/painel/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd assembles the painel command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "painel",
		Short: "painel - stock and sales dashboard in your terminal",
		Long: `painel CLI - Browse stock coverage, sales KPIs and ad-hoc analyses.

Each painel process keeps its own session for the selected server. Logging out,
or being rejected by the server, ends the session in every painel process on
this machine.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("painel version {{.Version}}\n")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "painel version %s\n", version)
		},
	})

	root.AddGroup(
		&cobra.Group{ID: "session", Title: "Session Commands:"},
		&cobra.Group{ID: "data", Title: "Dashboard Commands:"},
	)
	for _, cmd := range []*cobra.Command{
		commands.NewInitCmd(),
		commands.NewSelectServerCmd(),
		commands.NewLoginCmd(),
		commands.NewLogoutCmd(),
		commands.NewStatusCmd(),
		commands.NewWatchCmd(),
	} {
		cmd.GroupID = "session"
		root.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{
		commands.NewProductCmd(),
		commands.NewKPIsCmd(),
		commands.NewQueryCmd(),
	} {
		cmd.GroupID = "data"
		root.AddCommand(cmd)
	}

	return root
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
