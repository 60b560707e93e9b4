package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/painel-dev/painel/internal/cli/client"
	"github.com/painel-dev/painel/internal/cli/config"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	var alias string

	cmd := &cobra.Command{
		Use:   "init <api-url>",
		Short: "Add a painel server to ./painel.json",
		Long: `Add a painel server to ./painel.json, creating the file if needed.

Examples:
  $ painel init https://bi.example.com
  $ painel init http://localhost:8000 --alias dev`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args[0], alias, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "Server alias (defaults to production, then server-N)")

	return cmd
}

func runInit(apiURL, alias string, out io.Writer) error {
	if _, err := client.Origin(apiURL); err != nil {
		return err
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	configPath := filepath.Join(currentDir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		fmt.Fprintf(out, "Found existing %s\n", config.ConfigFileName)
	} else {
		cfg = config.NewConfig()
		isNewConfig = true
	}

	server, err := cfg.AddServer(apiURL, alias)
	if errors.Is(err, config.ErrServerExists) {
		fmt.Fprintf(out, "Server %s already exists in %s\n", apiURL, config.ConfigFileName)
		return nil
	}
	if err != nil {
		return err
	}
	alias = server.Alias

	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if isNewConfig {
		fmt.Fprintf(out, "✓ Created ./%s with server %s (%s)\n", config.ConfigFileName, apiURL, alias)
	} else {
		fmt.Fprintf(out, "✓ Added server %s (%s) to ./%s\n", apiURL, alias, config.ConfigFileName)
	}

	fmt.Fprintln(out, "\nNext step:")
	fmt.Fprintln(out, "  Run 'painel login' to authenticate")

	return nil
}
