package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/painel-dev/painel/internal/cli/config"
	"github.com/painel-dev/painel/internal/cli/serverselect"
	"github.com/painel-dev/painel/internal/cli/userconfig"
)

// NewSelectServerCmd creates the select-server command
func NewSelectServerCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "select-server [url-or-alias]",
		Short: "Choose the painel server later commands talk to",
		Long: `Choose the painel server later commands talk to. Each server keeps its
own session, so switching servers does not log you out of the previous one.

Without an argument an interactive prompt is shown.

Examples:
  $ painel select-server                          # Interactive selection
  $ painel select-server https://bi.example.com   # Select by URL
  $ painel select-server production               # Select by alias
  $ painel select-server --list                   # Show servers, * marks the selected one`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				return runListServers(cmd.OutOrStdout())
			}
			var urlOrAlias string
			if len(args) > 0 {
				urlOrAlias = args[0]
			}
			return runSelectServer(urlOrAlias, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List configured servers instead of selecting one")

	return cmd
}

func loadProjectConfig() (*config.Config, error) {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'painel init' to create a configuration file", err)
	}
	return cfg, nil
}

func runSelectServer(urlOrAlias string, out io.Writer) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	var server *config.Server
	if urlOrAlias != "" {
		server, err = serverselect.GetServerByURLOrAlias(cfg, urlOrAlias)
	} else {
		server, err = serverselect.PromptServerSelection(cfg)
	}
	if err != nil {
		return err
	}

	if err := userconfig.SetSelectedServer(server.URL); err != nil {
		return fmt.Errorf("failed to save selected server: %w", err)
	}

	fmt.Fprintf(out, "Selected server: %s (%s)\n", server.Alias, server.URL)
	return nil
}

func runListServers(out io.Writer) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	selected, err := userconfig.GetSelectedServer()
	if err != nil {
		return fmt.Errorf("failed to load user config: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, s := range cfg.Servers {
		marker := " "
		if s.URL == selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", marker, s.Alias, s.URL)
	}
	return w.Flush()
}
