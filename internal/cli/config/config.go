package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

const ConfigFileName = "painel.json"

// Channel backends for the cross-tab logout channel
const (
	ChannelBackendFile  = "file"
	ChannelBackendRedis = "redis"
)

// ErrServerExists is returned by AddServer for a URL that is already listed.
var ErrServerExists = errors.New("server already configured")

// Server represents a painel API the CLI can talk to
type Server struct {
	URL   string `json:"url"`
	Alias string `json:"alias"`
}

// ChannelConfig selects how logout broadcasts reach other painel processes
type ChannelConfig struct {
	Backend      string `json:"backend,omitempty"`      // "file" (default) or "redis"
	RedisAddress string `json:"redisAddress,omitempty"` // host:port, required for redis
}

// Config represents the CLI configuration file
type Config struct {
	Servers []Server      `json:"servers"`
	Channel ChannelConfig `json:"channel,omitempty"`
}

// NewConfig returns an empty configuration using the file channel
func NewConfig() *Config {
	return &Config{
		Servers: []Server{},
		Channel: ChannelConfig{Backend: ChannelBackendFile},
	}
}

// Validate checks the server list and the channel settings
func (c *Config) Validate() error {
	aliases := make(map[string]bool, len(c.Servers))
	for _, s := range c.Servers {
		if err := validateServerURL(s.URL); err != nil {
			return err
		}
		if s.Alias == "" {
			continue
		}
		if aliases[s.Alias] {
			return fmt.Errorf("duplicate server alias '%s'", s.Alias)
		}
		aliases[s.Alias] = true
	}

	switch c.Channel.Backend {
	case "", ChannelBackendFile:
		return nil
	case ChannelBackendRedis:
		if c.Channel.RedisAddress == "" {
			return fmt.Errorf("channel.redisAddress is required when channel.backend is %q", ChannelBackendRedis)
		}
		return nil
	default:
		return fmt.Errorf("invalid channel backend '%s', must be one of: file, redis", c.Channel.Backend)
	}
}

func validateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid server url '%s', expected http(s)://host[:port]", raw)
	}
	return nil
}

// AddServer appends a server. An empty alias becomes "production" for the
// first server and "server-N" after that.
func (c *Config) AddServer(rawURL, alias string) (*Server, error) {
	if err := validateServerURL(rawURL); err != nil {
		return nil, err
	}
	for i := range c.Servers {
		if c.Servers[i].URL == rawURL {
			return &c.Servers[i], ErrServerExists
		}
	}

	if alias == "" {
		alias = "production"
		if len(c.Servers) > 0 {
			alias = fmt.Sprintf("server-%d", len(c.Servers)+1)
		}
	}
	if _, err := c.GetServerByAlias(alias); err == nil {
		return nil, fmt.Errorf("alias '%s' is already used in %s", alias, ConfigFileName)
	}

	c.Servers = append(c.Servers, Server{URL: rawURL, Alias: alias})
	return &c.Servers[len(c.Servers)-1], nil
}

// FindConfigFile searches for painel.json in current directory and parent directories
func FindConfigFile() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	// Search upwards until we find painel.json or reach root
	dir := currentDir
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%s not found in %s or any parent directory", ConfigFileName, currentDir)
}

// Load reads and validates the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromCurrentDir loads config from current directory or parent directories
func LoadFromCurrentDir() (*Config, error) {
	configPath, err := FindConfigFile()
	if err != nil {
		return nil, err
	}

	return Load(configPath)
}

// Save writes the configuration to a file
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetServerByAlias returns a server by its alias
func (c *Config) GetServerByAlias(alias string) (*Server, error) {
	for i := range c.Servers {
		if c.Servers[i].Alias == alias {
			return &c.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("server with alias '%s' not found", alias)
}
