// Package serverselect decides which configured painel server a command talks
// to. Every server is its own origin, so the choice also decides which
// persisted session and which logout channel the command joins.
package serverselect

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"github.com/painel-dev/painel/internal/cli/config"
	"github.com/painel-dev/painel/internal/cli/userconfig"
)

// ErrNoServerSelected is returned when the choice is ambiguous and there is no
// terminal to ask on
var ErrNoServerSelected = errors.New("several servers are configured and none is selected; run 'painel select-server' or pass --server")

// isInteractive reports whether a prompt can be shown
var isInteractive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ResolveServer picks, in order: the server named by alias, the server
// remembered in the user config, the only configured server, or the one the
// user chooses at a prompt. The last two choices are remembered.
func ResolveServer(projectConfig *config.Config, alias string) (*config.Server, error) {
	if alias != "" {
		return projectConfig.GetServerByAlias(alias)
	}

	selectedURL, err := userconfig.GetSelectedServer()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	if selectedURL != "" {
		if server := findByURL(projectConfig, selectedURL); server != nil {
			return server, nil
		}
		// removed from painel.json since it was selected
		_ = userconfig.SetSelectedServer("")
	}

	var server *config.Server
	switch {
	case len(projectConfig.Servers) == 1:
		server = &projectConfig.Servers[0]
	case !isInteractive():
		return nil, ErrNoServerSelected
	default:
		server, err = PromptServerSelection(projectConfig)
		if err != nil {
			return nil, err
		}
	}

	if err := userconfig.SetSelectedServer(server.URL); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to remember selected server: %v\n", err)
	}
	return server, nil
}

// PromptServerSelection asks the user to pick one of the configured servers
func PromptServerSelection(projectConfig *config.Config) (*config.Server, error) {
	if len(projectConfig.Servers) == 0 {
		return nil, fmt.Errorf("no servers configured in %s", config.ConfigFileName)
	}

	prompt := promptui.Select{
		Label: "Select a painel server",
		Items: projectConfig.Servers,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "> {{ .Alias | cyan }} ({{ .URL }})",
			Inactive: "  {{ .Alias }} ({{ .URL }})",
			Selected: "Server: {{ .Alias | green }}",
		},
		Size: 10,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("server selection cancelled: %w", err)
	}

	return &projectConfig.Servers[index], nil
}

// GetServerByURLOrAlias finds a server by URL or alias
func GetServerByURLOrAlias(cfg *config.Config, urlOrAlias string) (*config.Server, error) {
	if server := findByURL(cfg, urlOrAlias); server != nil {
		return server, nil
	}
	if server, err := cfg.GetServerByAlias(urlOrAlias); err == nil {
		return server, nil
	}
	return nil, fmt.Errorf("server with URL or alias '%s' not found", urlOrAlias)
}

// findByURL matches URLs the way origins compare: case-insensitive, trailing
// slash ignored
func findByURL(cfg *config.Config, url string) *config.Server {
	want := normalizeURL(url)
	for i := range cfg.Servers {
		if normalizeURL(cfg.Servers[i].URL) == want {
			return &cfg.Servers[i]
		}
	}
	return nil
}

func normalizeURL(url string) string {
	return strings.ToLower(strings.TrimRight(url, "/"))
}
