package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/painel-dev/painel/internal/broadcast"
	"github.com/painel-dev/painel/internal/cli/auth"
	"github.com/painel-dev/painel/internal/cli/client"
	"github.com/painel-dev/painel/internal/cli/config"
	"github.com/painel-dev/painel/internal/cli/serverselect"
	"github.com/painel-dev/painel/internal/cli/userconfig"
	"github.com/painel-dev/painel/internal/logger"
	"github.com/painel-dev/painel/internal/session"
)

// options carries the dependencies of a command. Tests override them through
// the With* functions; anything left unset is resolved from painel.json, the
// OS keyring and the configured channel backend.
type options struct {
	serverAlias string
	server      *config.Server
	store       session.TokenStore
	channel     broadcast.Channel
	httpClient  *http.Client
	output      io.Writer
	logger      *zerolog.Logger
	sessionOpts []session.Option
}

// Option configures a command run
type Option func(*options)

// WithServerAlias selects a server from painel.json by alias
func WithServerAlias(alias string) Option {
	return func(o *options) {
		o.serverAlias = alias
	}
}

// WithServer bypasses painel.json and uses the given server
func WithServer(server *config.Server) Option {
	return func(o *options) {
		o.server = server
	}
}

// WithTokenStore replaces the OS keyring
func WithTokenStore(store session.TokenStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithChannel replaces the configured logout channel. The caller keeps
// ownership and closes it.
func WithChannel(channel broadcast.Channel) Option {
	return func(o *options) {
		o.channel = channel
	}
}

// WithHTTPClient sets the HTTP client used for API calls
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

// WithOutput redirects command output
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithLogger sets the logger passed to the session
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

func withSessionOption(opt session.Option) Option {
	return func(o *options) {
		o.sessionOpts = append(o.sessionOpts, opt)
	}
}

func newOptions(opts []Option) *options {
	o := &options{output: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// tab is one authenticated view onto a server: the API client, the session
// manager guarding it and the channel it listens on
type tab struct {
	server  *config.Server
	origin  string
	api     *client.Client
	session *session.Manager
	out     io.Writer

	ownedChannel broadcast.Channel
}

// openTab resolves the server, hydrates the session and subscribes to logout
// broadcasts. Callers must Close the returned tab.
func openTab(opts ...Option) (*tab, error) {
	o := newOptions(opts)

	var projectConfig *config.Config
	server := o.server
	if server == nil {
		cfg, err := config.LoadFromCurrentDir()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w\nRun 'painel init' to create a configuration file", err)
		}
		projectConfig = cfg

		server, err = serverselect.ResolveServer(cfg, o.serverAlias)
		if err != nil {
			return nil, err
		}
	}

	if server.URL == "" {
		return nil, fmt.Errorf("server URL is empty. Please edit %s and add a valid URL", config.ConfigFileName)
	}

	origin, err := client.Origin(server.URL)
	if err != nil {
		return nil, err
	}

	zlog := cliLogger()
	if o.logger != nil {
		zlog = *o.logger
	}

	api := client.New(server.URL)
	if o.httpClient != nil {
		api.SetHTTPClient(o.httpClient)
	}

	store := o.store
	if store == nil {
		store = auth.Default
	}

	t := &tab{server: server, origin: origin, api: api, out: o.output}

	channel := o.channel
	if channel == nil {
		channel, err = openChannel(projectConfig, origin, zlog)
		if err != nil {
			return nil, err
		}
		t.ownedChannel = channel
	}

	sessionOpts := append([]session.Option{session.WithLogger(zlog)}, o.sessionOpts...)
	mgr, err := session.New(origin, store, api, channel, sessionOpts...)
	if err != nil {
		t.closeChannel()
		return nil, err
	}
	t.session = mgr

	return t, nil
}

// Close detaches the session and closes the channel if openTab opened it
func (t *tab) Close() error {
	if t.session != nil {
		t.session.Close()
	}
	return t.closeChannel()
}

func (t *tab) closeChannel() error {
	if t.ownedChannel == nil {
		return nil
	}
	return t.ownedChannel.Close()
}

// openChannel opens the logout channel for origin using the backend chosen in
// painel.json. Without a project config the file backend is used.
func openChannel(cfg *config.Config, origin string, zlog zerolog.Logger) (broadcast.Channel, error) {
	backend := config.ChannelBackendFile
	if cfg != nil && cfg.Channel.Backend != "" {
		backend = cfg.Channel.Backend
	}

	switch backend {
	case config.ChannelBackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Channel.RedisAddress})
		ch, err := broadcast.OpenRedis(context.Background(), rdb, broadcast.RedisKey(origin, broadcast.ChannelName), zlog)
		if err != nil {
			rdb.Close()
			return nil, err
		}
		return &ownedRedis{RedisChannel: ch, rdb: rdb}, nil
	default:
		dir, err := userconfig.GetChannelDir(origin)
		if err != nil {
			return nil, err
		}
		return broadcast.OpenFile(dir, broadcast.ChannelName, zlog)
	}
}

// ownedRedis closes the redis client together with the channel
type ownedRedis struct {
	*broadcast.RedisChannel
	rdb *redis.Client
}

func (o *ownedRedis) Close() error {
	err := o.RedisChannel.Close()
	if cerr := o.rdb.Close(); err == nil {
		err = cerr
	}
	return err
}

// cliLogger writes human readable logs to stderr, quiet unless PAINEL_LOG_LEVEL asks otherwise
func cliLogger() zerolog.Logger {
	level := os.Getenv("PAINEL_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	return logger.New(os.Stderr, strings.ToLower(level), "console")
}
